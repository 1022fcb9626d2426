package returns

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// ErrBadPrice is returned for a price row that cannot be read.
var ErrBadPrice = errors.New("returns: bad price row")

// PricePoint is one closing price of the price history.
type PricePoint struct {
	Time  time.Time
	Close float64
}

// LoadPrices reads a price history CSV. Files ending in .xz or .gz are
// decompressed.
func LoadPrices(path string) ([]PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".xz"):
		if r, err = xz.NewReader(f); err != nil {
			return nil, fmt.Errorf("returns: %s: %w", path, err)
		}
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("returns: %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	prices, err := ReadPrices(r)
	if err != nil {
		return nil, fmt.Errorf("returns: %s: %w", path, err)
	}
	return prices, nil
}

// ReadPrices reads rows of
//
//	date,close
//
// where date is YYYY-MM-DD or RFC3339. A header row ("date,...") is allowed
// and empty or short rows are skipped. The result is ordered by time.
func ReadPrices(r io.Reader) ([]PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []PricePoint
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "date") {
			continue
		}
		p, ok, err := parsePriceRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrBadPrice, line, err)
		}
		if ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// parsePriceRow never quotes the row in its errors; price files may come
// from untrusted plans.
func parsePriceRow(row []string) (PricePoint, bool, error) {
	if len(row) < 2 {
		return PricePoint{}, false, nil
	}
	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return PricePoint{}, false, nil
	}
	t, err := time.Parse(time.DateOnly, ts)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, ts); err != nil {
			return PricePoint{}, false, errors.New("date is neither YYYY-MM-DD nor RFC3339")
		}
	}

	c, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return PricePoint{}, false, errors.New("close is not a number")
	}
	if !finite(c) || c <= 0 {
		return PricePoint{}, false, errors.New("close must be positive")
	}
	return PricePoint{Time: t, Close: c}, true, nil
}

// LogReturns returns log(p[i]/p[i-1]) for consecutive prices.
func LogReturns(prices []PricePoint) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: need at least two prices, got %d", ErrInvalidParams, len(prices))
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = math.Log(prices[i].Close / prices[i-1].Close)
	}
	return out, nil
}

// Bootstrap resamples historical log returns in blocks of consecutive months,
// wrapping around the end of the history. Block 1 is a plain i.i.d.
// bootstrap.
type Bootstrap struct {
	hist  []float64
	block int
	src   *rand.PCG
	rng   *rand.Rand

	pos  int // next index inside the current block
	left int // values left in the current block
}

func NewBootstrap(history []float64, block int, seed uint64) (*Bootstrap, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty return history", ErrInvalidParams)
	}
	if block <= 0 {
		block = 1
	}
	src := rand.NewPCG(seed, seed)
	return &Bootstrap{
		hist:  append([]float64(nil), history...),
		block: block,
		src:   src,
		rng:   rand.New(src),
	}, nil
}

func (b *Bootstrap) Generate(n int) []float64 {
	return draw(b.next, n)
}

func (b *Bootstrap) next() float64 {
	if b.left == 0 {
		b.pos = b.rng.IntN(len(b.hist))
		b.left = b.block
	}
	v := b.hist[b.pos%len(b.hist)]
	b.pos++
	b.left--
	return v
}

func (b *Bootstrap) Reseed(seed uint64) {
	b.src.Seed(seed, seed)
	b.left = 0
}
