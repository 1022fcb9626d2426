package sim

import (
	"fmt"
	"strings"
	"time"
)

// CapScope selects which inflows the investment cap applies to.
type CapScope int

const (
	// CapAll caps the surplus of all inflows.
	CapAll CapScope = iota
	// CapRecurringOnly caps the surplus of recurring inflows and invests
	// one-off inflows such as an inheritance in full.
	CapRecurringOnly
)

func (c CapScope) String() string {
	switch c {
	case CapAll:
		return "all"
	case CapRecurringOnly:
		return "recurring"
	}
	return fmt.Sprintf("CapScope(%d)", int(c))
}

func ParseCapScope(s string) (CapScope, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return CapAll, nil
	case "recurring", "recurring-only":
		return CapRecurringOnly, nil
	}
	return 0, fmt.Errorf("sim: unknown cap scope %q", s)
}

// ExemptionPolicy decides the exemption available at the start of a period.
// current is the balance carried over from the previous period.
type ExemptionPolicy interface {
	Exemption(period int, month time.Time, current float64) float64
}

// NoReset carries the exemption over unchanged, so it is only ever used up.
type NoReset struct{}

func (NoReset) Exemption(_ int, _ time.Time, current float64) float64 { return current }

// AnnualReset restores the exemption to Amount in the given calendar month of
// every year after the first period.
type AnnualReset struct {
	Amount float64
	Month  time.Month
}

func (p AnnualReset) Exemption(period int, month time.Time, current float64) float64 {
	if period > 0 && month.Month() == p.Month {
		return p.Amount
	}
	return current
}
