// Package tax tracks the capital-gains allowance of an investor: the remaining
// annual tax exemption, the carried-forward loss pot and the taxes withheld so
// far. It converts hypothetical sales into tax liabilities and solves the
// inverse problem of how many shares must be sold to net a target amount.
package tax

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidArgument is returned for negative or non-finite numeric input
	// where a valid value is required.
	ErrInvalidArgument = errors.New("tax: invalid argument")

	// ErrInvalidSolution is returned when the inverse solver produces a share
	// count that is negative, non-finite or does not reproduce the target.
	ErrInvalidSolution = errors.New("tax: invalid solution")

	// ErrNegativeExemption is returned when an adjustment would drive the
	// exemption below zero.
	ErrNegativeExemption = errors.New("tax: exemption may not become negative")
)

const (
	// DefaultRate is the German flat capital-gains tax including the
	// solidarity surcharge.
	DefaultRate = 0.26375

	// DefaultExemption is the annual saver's allowance.
	DefaultExemption = 1000.0

	// RoundTripTolerance is the relative tolerance the inverse solver must meet.
	RoundTripTolerance = 1e-4
)

// Tax is the liability of a single sale.
type Tax struct {
	Abs float64 // absolute tax
	Rel float64 // tax relative to the gross transaction volume
}

// Base is the running tax state of one investor for one simulation run.
type Base struct {
	exemption float64
	lossPot   float64
	withheld  float64
	rate      float64
}

// New returns a tax base with the given exemption, loss pot and rate.
func New(exemption, lossPot, rate float64) (*Base, error) {
	if !finite(exemption) || exemption < 0 {
		return nil, fmt.Errorf("%w: exemption %v", ErrInvalidArgument, exemption)
	}
	if !finite(lossPot) || lossPot < 0 {
		return nil, fmt.Errorf("%w: loss pot %v", ErrInvalidArgument, lossPot)
	}
	if err := ValidateRate(rate); err != nil {
		return nil, err
	}
	return &Base{exemption: exemption, lossPot: lossPot, rate: rate}, nil
}

// Default returns a tax base with the default exemption and rate and an empty
// loss pot.
func Default() *Base {
	return &Base{exemption: DefaultExemption, rate: DefaultRate}
}

// ValidateRate checks that rate lies in [0, 1).
func ValidateRate(rate float64) error {
	if !finite(rate) {
		return fmt.Errorf("%w: tax rate %v", ErrInvalidArgument, rate)
	}
	if rate >= 1 {
		return fmt.Errorf("%w: tax rate %v is 100%% or more", ErrInvalidArgument, rate)
	}
	if rate < 0 {
		return fmt.Errorf("%w: tax rate %v is below 0%%", ErrInvalidArgument, rate)
	}
	return nil
}

func (b *Base) Exemption() float64 { return b.exemption }
func (b *Base) LossPot() float64   { return b.lossPot }
func (b *Base) Withheld() float64  { return b.withheld }
func (b *Base) Rate() float64      { return b.rate }

// Snapshot returns a copy of the current state.
func (b *Base) Snapshot() Base { return *b }

// Restore resets the state to a snapshot taken earlier.
func (b *Base) Restore(s Base) { *b = s }

// TaxableAmount returns the part of the gain of a hypothetical sale that would
// be taxed after the loss pot and the exemption have been used up. Losses are
// never taxable.
func (b *Base) TaxableAmount(salePrice, costBasis, shares float64) float64 {
	gain := shares * (salePrice - costBasis)
	residual := math.Max(0, gain-b.lossPot)
	if residual <= 0 {
		return 0
	}
	return math.Max(0, residual-b.exemption)
}

// ComputeTax converts a taxable amount into absolute and relative taxes. The
// relative tax of an empty transaction is zero.
func (b *Base) ComputeTax(taxable, salePrice, shares float64) Tax {
	abs := taxable * b.rate
	volume := salePrice * shares
	if volume == 0 {
		return Tax{Abs: abs}
	}
	return Tax{Abs: abs, Rel: abs / volume}
}

// NetProceeds returns the proceeds of a hypothetical sale after taxes.
func (b *Base) NetProceeds(shares, salePrice, costBasis float64) float64 {
	taxable := b.TaxableAmount(salePrice, costBasis, shares)
	return shares*salePrice - b.ComputeTax(taxable, salePrice, shares).Abs
}

// ApplySale realizes a sale: the tax is withheld, the loss pot absorbs gains
// (or grows by losses) and the exemption is depleted by the gain left over
// after the loss pot. Both adjustments derive from the same pre-sale gain.
func (b *Base) ApplySale(salePrice, costBasis, shares float64) Tax {
	taxable := b.TaxableAmount(salePrice, costBasis, shares)
	t := b.ComputeTax(taxable, salePrice, shares)

	gain := shares * (salePrice - costBasis)
	residual := math.Max(0, gain-b.lossPot)

	b.withheld += t.Abs
	b.lossPot = math.Max(0, b.lossPot-gain)
	b.exemption = math.Max(0, b.exemption-residual)
	return t
}

// AdjustExemption changes the exemption by delta.
func (b *Base) AdjustExemption(delta float64) error {
	if !finite(delta) {
		return fmt.Errorf("%w: adjustment must be a number", ErrInvalidArgument)
	}
	if delta < -b.exemption {
		return fmt.Errorf("%w: adjustment %v on %v", ErrNegativeExemption, delta, b.exemption)
	}
	b.exemption += delta
	return nil
}

// SharesForNetProceeds returns how many shares bought at costBasis must be sold
// at salePrice so that the proceeds after tax equal target.
//
// Shares sold at a loss are never taxed. For gains, shares are first sold
// tax-free until exemption plus loss pot are used up; the remainder is sold at
// the tax-adjusted price salePrice - (salePrice-costBasis)*rate.
func (b *Base) SharesForNetProceeds(target, salePrice, costBasis float64) (float64, error) {
	if err := positive("target net proceeds", target); err != nil {
		return 0, err
	}
	if err := positive("sale price", salePrice); err != nil {
		return 0, err
	}
	if err := positive("cost basis", costBasis); err != nil {
		return 0, err
	}

	var shares float64
	if salePrice < costBasis {
		shares = target / salePrice
	} else {
		untaxed := target / salePrice
		allowance := b.exemption + b.lossPot
		if untaxed*(salePrice-costBasis) <= allowance {
			shares = untaxed
		} else {
			shares = allowance / (salePrice - costBasis)
			remaining := target - shares*salePrice
			shares += remaining / (salePrice - (salePrice-costBasis)*b.rate)
		}
	}

	if shares < 0 || !finite(shares) {
		return 0, fmt.Errorf("%w: %v shares", ErrInvalidSolution, shares)
	}
	net := b.NetProceeds(shares, salePrice, costBasis)
	if !closeRel(net, target, RoundTripTolerance) {
		return 0, fmt.Errorf("%w: net proceeds %v do not match target %v", ErrInvalidSolution, net, target)
	}
	return shares, nil
}

// Taxes returns the absolute and relative taxes of a stand-alone sale given an
// explicit exemption and loss pot, without touching any running state.
func Taxes(salePrice, costBasis, shares, rate, exemption, lossPot float64) (Tax, error) {
	if exemption < 0 {
		return Tax{}, fmt.Errorf("%w: exemption %v", ErrInvalidArgument, exemption)
	}
	if lossPot < 0 {
		return Tax{}, fmt.Errorf("%w: loss pot %v", ErrInvalidArgument, lossPot)
	}
	if err := ValidateRate(rate); err != nil {
		return Tax{}, err
	}
	b := Base{exemption: exemption, lossPot: lossPot, rate: rate}
	return b.ComputeTax(b.TaxableAmount(salePrice, costBasis, shares), salePrice, shares), nil
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a valid number", ErrInvalidArgument, name)
	}
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidArgument, name, v)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func closeRel(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(math.Abs(a), math.Abs(b))
}
