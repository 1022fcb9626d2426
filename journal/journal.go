// journal/journal.go
package journal

import (
	"time"
)

// PeriodRecord is one simulated month of one run.
type PeriodRecord struct {
	RunID           string
	Period          int
	Month           time.Time
	InvestorAge     float64
	CashInflow      float64
	LivingExpenses  float64
	CashNeed        float64
	TargetNet       float64
	PfBegin         float64
	Investment      float64
	Disinvestment   float64
	GainOrLoss      float64
	TaxesAbs        float64
	TaxesRel        float64
	NetProceeds     float64
	Shortfall       float64
	PfEnd           float64
	LogReturn       float64
	SharePrice      float64
	AvailableShares float64
	ExemptionBegin  float64
	ExemptionEnd    float64
	LossPot         float64
	WithheldTaxes   float64
}

// RunRecord summarizes one simulated path.
type RunRecord struct {
	RunID      string
	BatchID    string
	Seed       uint64
	Periods    int
	Survived   bool
	RuinPeriod int // -1 when the path never went negative
	FinalValue float64
	MinValue   float64
	TotalTaxes float64
}

type Journal interface {
	RecordPeriod(PeriodRecord) error
	RecordRun(RunRecord) error
	RecordBatch(Batch) error
	Close() error
}

// BatchWriter is implemented by journals that store a finished batch in one
// step, leaving nothing behind when the write fails.
type BatchWriter interface {
	WriteBatch(periods []PeriodRecord, runs []RunRecord, b Batch) error
}

// Discard is a Journal that drops every record.
type Discard struct{}

func (Discard) RecordPeriod(PeriodRecord) error { return nil }
func (Discard) RecordRun(RunRecord) error       { return nil }
func (Discard) RecordBatch(Batch) error         { return nil }
func (Discard) Close() error                    { return nil }
