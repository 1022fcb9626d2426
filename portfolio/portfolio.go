// Package portfolio keeps the FIFO inventory of purchase lots of a single
// security and realizes sales against a tax.Base.
package portfolio

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/runway/tax"
	"github.com/shopspring/decimal"
)

// ErrInsufficientShares is returned when a sale asks for more than the
// inventory holds.
var ErrInsufficientShares = errors.New("portfolio: insufficient shares")

// BasePrice is the share price every simulation starts from.
const BasePrice = 100.0

// shareEpsilon absorbs floating point dust left over after a lot is consumed.
const shareEpsilon = 1e-9

// Lot is a single purchase.
type Lot struct {
	ID        int
	Shares    float64
	CostBasis float64
}

// Portfolio is a FIFO ledger of lots. The oldest lot is always sold first and
// lot order never changes.
type Portfolio struct {
	lots   []Lot
	nextID int
	tax    *tax.Base
}

// New returns an empty portfolio whose sales are taxed against tb.
func New(tb *tax.Base) *Portfolio {
	return &Portfolio{tax: tb}
}

// NewWithInitialValue returns a portfolio holding a single lot worth value at
// BasePrice, bought at a price percGain below it.
func NewWithInitialValue(tb *tax.Base, value, percGain float64) (*Portfolio, error) {
	p := New(tb)
	if value == 0 {
		return p, nil
	}
	if !finite(value) || value < 0 {
		return nil, fmt.Errorf("%w: initial value %v", tax.ErrInvalidArgument, value)
	}
	if !finite(percGain) || percGain <= -1 {
		return nil, fmt.Errorf("%w: initial gain %v", tax.ErrInvalidArgument, percGain)
	}
	if err := p.Buy(value/BasePrice, BasePrice/(1+percGain)); err != nil {
		return nil, err
	}
	return p, nil
}

// TaxBase returns the tax state the portfolio sells against.
func (p *Portfolio) TaxBase() *tax.Base { return p.tax }

// Lots returns a copy of the current lots in FIFO order.
func (p *Portfolio) Lots() []Lot {
	out := make([]Lot, len(p.lots))
	copy(out, p.lots)
	return out
}

// Buy appends a new lot.
func (p *Portfolio) Buy(shares, price float64) error {
	if !finite(shares) || shares <= 0 {
		return fmt.Errorf("%w: shares %v", tax.ErrInvalidArgument, shares)
	}
	if !finite(price) || price <= 0 {
		return fmt.Errorf("%w: price %v", tax.ErrInvalidArgument, price)
	}
	p.nextID++
	p.lots = append(p.lots, Lot{ID: p.nextID, Shares: shares, CostBasis: price})
	return nil
}

// AvailableShares returns the number of shares across all lots.
func (p *Portfolio) AvailableShares() float64 {
	var n float64
	for _, l := range p.lots {
		n += l.Shares
	}
	return n
}

// Value returns the market value of all lots at price.
func (p *Portfolio) Value(price float64) (float64, error) {
	if math.IsNaN(price) || price < 0 {
		return 0, fmt.Errorf("%w: share price %v", tax.ErrInvalidArgument, price)
	}
	return p.AvailableShares() * price, nil
}

// SellShares sells shares head-first at salePrice. A lot that covers the
// remainder is shrunk in place; otherwise it is consumed and the next lot is
// used. Every close is realized against the tax base before the next one, so
// the exemption and loss pot can run out midway through a sale.
func (p *Portfolio) SellShares(shares, salePrice float64) (Transactions, error) {
	if !finite(shares) || shares < 0 {
		return nil, fmt.Errorf("%w: shares %v", tax.ErrInvalidArgument, shares)
	}
	if !finite(salePrice) || salePrice <= 0 {
		return nil, fmt.Errorf("%w: sale price %v", tax.ErrInvalidArgument, salePrice)
	}
	available := p.AvailableShares()
	if shares > available+shareEpsilon {
		return nil, fmt.Errorf("%w: want %v, have %v", ErrInsufficientShares, shares, available)
	}

	var txs Transactions
	remaining := shares
	for remaining > shareEpsilon && len(p.lots) > 0 {
		head := &p.lots[0]
		sold := head.Shares
		if head.Shares > remaining+shareEpsilon {
			sold = remaining
			head.Shares -= sold
		} else {
			p.lots = p.lots[1:]
		}
		remaining -= sold
		txs = append(txs, p.close(head.ID, sold, head.CostBasis, salePrice))
	}
	if len(p.lots) == 0 {
		p.lots = nil
	}
	return txs, nil
}

// SellGrossVolume sells shares worth gross at salePrice.
func (p *Portfolio) SellGrossVolume(gross, salePrice float64) (Transactions, error) {
	if !finite(salePrice) || salePrice <= 0 {
		return nil, fmt.Errorf("%w: sale price %v", tax.ErrInvalidArgument, salePrice)
	}
	return p.SellShares(gross/salePrice, salePrice)
}

// SellNetVolume sells lots head-first until the proceeds after tax reach
// target. The lot that satisfies the target is sold only as far as needed,
// using the inverse tax solve against that lot's cost basis.
//
// When the inventory runs out first, a partial sale returns what was sold.
// Otherwise every sale of this call is rolled back, lots and tax base are
// restored exactly, and ErrInsufficientShares is returned.
func (p *Portfolio) SellNetVolume(target, salePrice float64, partial bool) (Transactions, error) {
	if !finite(target) || target < 0 {
		return nil, fmt.Errorf("%w: target net proceeds %v", tax.ErrInvalidArgument, target)
	}
	if !finite(salePrice) || salePrice <= 0 {
		return nil, fmt.Errorf("%w: sale price %v", tax.ErrInvalidArgument, salePrice)
	}

	lotsBefore := p.Lots()
	taxBefore := p.tax.Snapshot()

	var txs Transactions
	var net float64
	goal := cents(target)
	for cents(net).LessThan(goal) {
		if len(p.lots) == 0 {
			if partial {
				return txs, nil
			}
			p.lots = lotsBefore
			p.tax.Restore(taxBefore)
			return nil, fmt.Errorf("%w: net proceeds %v short of %v", ErrInsufficientShares, net, target)
		}

		head := p.lots[0]
		available := p.tax.NetProceeds(head.Shares, salePrice, head.CostBasis)
		if cents(net + available).LessThan(goal) {
			sold, err := p.SellShares(head.Shares, salePrice)
			if err != nil {
				p.lots = lotsBefore
				p.tax.Restore(taxBefore)
				return nil, err
			}
			txs = append(txs, sold...)
			net += sold.NetProceeds()
			continue
		}

		shares, err := p.tax.SharesForNetProceeds(target-net, salePrice, head.CostBasis)
		if err != nil {
			p.lots = lotsBefore
			p.tax.Restore(taxBefore)
			return nil, err
		}
		sold, err := p.SellShares(math.Min(shares, head.Shares), salePrice)
		if err != nil {
			p.lots = lotsBefore
			p.tax.Restore(taxBefore)
			return nil, err
		}
		txs = append(txs, sold...)
		net += sold.NetProceeds()
		break
	}
	return txs, nil
}

func (p *Portfolio) close(lotID int, shares, costBasis, salePrice float64) Transaction {
	t := p.tax.ApplySale(salePrice, costBasis, shares)
	return Transaction{
		LotID:     lotID,
		Shares:    shares,
		CostBasis: costBasis,
		SalePrice: salePrice,
		Tax:       t.Abs,
	}
}

// cents rounds an amount to two decimals.
func cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
