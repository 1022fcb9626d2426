package portfolio

import "fmt"

// Transaction is the sale of shares out of one lot.
type Transaction struct {
	LotID     int
	Shares    float64
	CostBasis float64
	SalePrice float64
	Tax       float64
}

func (t Transaction) Gross() float64      { return t.Shares * t.SalePrice }
func (t Transaction) GainOrLoss() float64 { return t.Shares * (t.SalePrice - t.CostBasis) }
func (t Transaction) Net() float64        { return t.Gross() - t.Tax }

func (t Transaction) String() string {
	return fmt.Sprintf("lot %d: %.4f @ %.2f (cost %.2f, tax %.2f)",
		t.LotID, t.Shares, t.SalePrice, t.CostBasis, t.Tax)
}

// Transactions is the ordered result of one sale call, oldest lot first.
type Transactions []Transaction

// Shares returns the total number of shares sold.
func (ts Transactions) Shares() float64 {
	var n float64
	for _, t := range ts {
		n += t.Shares
	}
	return n
}

// Gross returns the total sale volume before taxes.
func (ts Transactions) Gross() float64 {
	var v float64
	for _, t := range ts {
		v += t.Gross()
	}
	return v
}

// GainOrLoss returns the total realized gain, negative for a net loss.
func (ts Transactions) GainOrLoss() float64 {
	var v float64
	for _, t := range ts {
		v += t.GainOrLoss()
	}
	return v
}

// Taxes returns the sum of the taxes withheld per lot.
func (ts Transactions) Taxes() float64 {
	var v float64
	for _, t := range ts {
		v += t.Tax
	}
	return v
}

// NetProceeds returns the gross volume minus taxes.
func (ts Transactions) NetProceeds() float64 {
	return ts.Gross() - ts.Taxes()
}

// RelativeTaxes returns taxes relative to the gross volume, or zero when
// nothing was sold.
func (ts Transactions) RelativeTaxes() float64 {
	gross := ts.Gross()
	if gross == 0 {
		return 0
	}
	return ts.Taxes() / gross
}
