// Package id hands out ULIDs for batches and runs.
package id

import (
	cryptoRand "crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader = ulid.Monotonic(cryptoRand.Reader, 0)
)

// New returns a ULID string. IDs created within the same millisecond stay
// lexicographically increasing, so runs of a batch sort in creation order.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID carrying the timestamp t.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// only on entropy exhaustion or a clock before 1970
		panic(err)
	}
	return id.String()
}

// Time returns the creation time encoded in a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("id: %q: %w", s, err)
	}
	return ulid.Time(u.Time()).UTC(), nil
}

// Valid reports whether s is a well-formed ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
