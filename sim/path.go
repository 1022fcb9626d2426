package sim

import (
	"math"
	"time"

	"github.com/rustyeddy/runway/journal"
)

// Row is the state of one simulated month.
type Row struct {
	Period      int
	Month       time.Time
	InvestorAge float64

	CashInflow       float64
	RecurringInflow  float64
	OneOffInflow     float64
	LivingExpenses   float64
	CashNeed         float64
	TargetInvestment float64
	TargetNet        float64 // net proceeds the month's sale aims for

	PfBegin       float64
	Investment    float64
	Disinvestment float64 // gross sale volume
	GainOrLoss    float64
	TaxesAbs      float64
	TaxesRel      float64
	NetProceeds   float64
	Shortfall     float64 // part of TargetNet the ledger could not cover
	PfEnd         float64

	LogReturn       float64
	SharePrice      float64
	AvailableShares float64

	ExemptionBegin float64
	ExemptionEnd   float64
	LossPot        float64
	WithheldTaxes  float64
}

// Record converts the row for the journal.
func (r Row) Record(runID string) journal.PeriodRecord {
	return journal.PeriodRecord{
		RunID:           runID,
		Period:          r.Period,
		Month:           r.Month,
		InvestorAge:     r.InvestorAge,
		CashInflow:      r.CashInflow,
		LivingExpenses:  r.LivingExpenses,
		CashNeed:        r.CashNeed,
		TargetNet:       r.TargetNet,
		PfBegin:         r.PfBegin,
		Investment:      r.Investment,
		Disinvestment:   r.Disinvestment,
		GainOrLoss:      r.GainOrLoss,
		TaxesAbs:        r.TaxesAbs,
		TaxesRel:        r.TaxesRel,
		NetProceeds:     r.NetProceeds,
		Shortfall:       r.Shortfall,
		PfEnd:           r.PfEnd,
		LogReturn:       r.LogReturn,
		SharePrice:      r.SharePrice,
		AvailableShares: r.AvailableShares,
		ExemptionBegin:  r.ExemptionBegin,
		ExemptionEnd:    r.ExemptionEnd,
		LossPot:         r.LossPot,
		WithheldTaxes:   r.WithheldTaxes,
	}
}

// Path is the ordered rows of one run.
type Path struct {
	RunID string
	Seed  uint64
	Rows  []Row
}

// Values returns the end-of-period portfolio values.
func (p Path) Values() []float64 {
	out := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.PfEnd
	}
	return out
}

// Final returns the last end-of-period value, or 0 for an empty path.
func (p Path) Final() float64 {
	if len(p.Rows) == 0 {
		return 0
	}
	return p.Rows[len(p.Rows)-1].PfEnd
}

// Min returns the lowest end-of-period value, or 0 for an empty path.
func (p Path) Min() float64 {
	if len(p.Rows) == 0 {
		return 0
	}
	m := math.Inf(1)
	for _, r := range p.Rows {
		m = math.Min(m, r.PfEnd)
	}
	return m
}

// TotalTaxes returns the taxes withheld over the whole run.
func (p Path) TotalTaxes() float64 {
	if len(p.Rows) == 0 {
		return 0
	}
	return p.Rows[len(p.Rows)-1].WithheldTaxes
}
