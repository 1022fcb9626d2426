package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/runway/cashflow"
	"github.com/rustyeddy/runway/journal"
	"github.com/rustyeddy/runway/portfolio"
	"github.com/rustyeddy/runway/returns"
	"github.com/rustyeddy/runway/tax"
	"github.com/shopspring/decimal"
)

// Params is everything a single run needs apart from its return stream.
type Params struct {
	Investor     Investor
	Inflation    float64 // annual, applied monthly
	TaxRate      float64
	LossPot      float64 // loss carryforward at start
	InitialValue float64
	InitialGain  float64 // unrealized gain of the initial holding, 0.1 = 10%

	// CashFlows is the month grid of the simulation. One period is
	// simulated per entry.
	CashFlows cashflow.Series

	CapScope  CapScope
	Exemption ExemptionPolicy // nil means NoReset
}

func (p Params) Validate() error {
	if err := p.Investor.Validate(); err != nil {
		return err
	}
	if err := tax.ValidateRate(p.TaxRate); err != nil {
		return err
	}
	if math.IsNaN(p.Inflation) || math.IsInf(p.Inflation, 0) || p.Inflation <= -1 {
		return fmt.Errorf("sim: invalid inflation %v", p.Inflation)
	}
	if len(p.CashFlows) == 0 {
		return errors.New("sim: no months to simulate")
	}
	return nil
}

type Engine struct {
	params    Params
	gen       returns.Generator
	tb        *tax.Base
	pf        *portfolio.Portfolio
	exemption ExemptionPolicy

	journal journal.Journal
	runID   string
}

// NewEngine sets up the tax base and ledger of one run. An Engine runs once.
func NewEngine(p Params, gen returns.Generator) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, errors.New("sim: return generator is required")
	}
	tb, err := tax.New(p.Investor.TaxExemption, p.LossPot, p.TaxRate)
	if err != nil {
		return nil, err
	}
	pf, err := portfolio.NewWithInitialValue(tb, p.InitialValue, p.InitialGain)
	if err != nil {
		return nil, err
	}
	policy := p.Exemption
	if policy == nil {
		policy = NoReset{}
	}
	return &Engine{params: p, gen: gen, tb: tb, pf: pf, exemption: policy}, nil
}

// SetJournal records every period under runID as it is simulated.
func (e *Engine) SetJournal(j journal.Journal, runID string) {
	e.journal = j
	e.runID = runID
}

func (e *Engine) Portfolio() *portfolio.Portfolio { return e.pf }
func (e *Engine) TaxBase() *tax.Base              { return e.tb }

// Run simulates every month of the grid. On error the rows simulated so far
// are returned with it; the run is not resumable.
func (e *Engine) Run(ctx context.Context) (Path, error) {
	path := Path{RunID: e.runID, Rows: make([]Row, 0, len(e.params.CashFlows))}

	var prev Row
	for t, cf := range e.params.CashFlows {
		if err := ctx.Err(); err != nil {
			return path, fmt.Errorf("sim: period %d: %w", t, err)
		}
		row, err := e.step(t, cf, prev)
		if err != nil {
			return path, fmt.Errorf("sim: period %d (%s): %w", t, cf.Month.Format(time.DateOnly), err)
		}
		if e.journal != nil {
			if err := e.journal.RecordPeriod(row.Record(e.runID)); err != nil {
				return path, fmt.Errorf("sim: journal period %d: %w", t, err)
			}
		}
		path.Rows = append(path.Rows, row)
		prev = row
	}
	return path, nil
}

func (e *Engine) step(t int, cf cashflow.Period, prev Row) (Row, error) {
	inv := e.params.Investor
	mult := math.Pow(1+e.params.Inflation/12, float64(t))

	row := Row{Period: t, Month: cf.Month}
	age, err := inv.Age(cf.Month)
	if err != nil {
		return row, err
	}
	row.InvestorAge = age

	carried := inv.TaxExemption
	if t == 0 {
		row.SharePrice = portfolio.BasePrice
		if row.PfBegin, err = e.pf.Value(row.SharePrice); err != nil {
			return row, err
		}
	} else {
		draws := e.gen.Generate(1)
		if len(draws) != 1 {
			return row, errors.New("return generator yielded no value")
		}
		row.LogReturn = draws[0]
		row.SharePrice = prev.SharePrice * math.Exp(row.LogReturn)
		row.PfBegin = prev.PfEnd
		carried = prev.ExemptionEnd
	}

	row.ExemptionBegin = e.exemption.Exemption(t, cf.Month, carried)
	if err := e.tb.AdjustExemption(row.ExemptionBegin - e.tb.Exemption()); err != nil {
		return row, err
	}

	row.CashInflow = cf.Net
	row.RecurringInflow = cf.Recurring
	row.OneOffInflow = cf.OneOff
	row.LivingExpenses = inv.LivingExpenses * mult
	row.CashNeed = DetermineCashNeed(cf.Net, row.LivingExpenses)
	row.TargetInvestment = inv.TargetInvestment * mult
	row.Investment = e.investment(cf, row.LivingExpenses, row.TargetInvestment)

	row.TargetNet = row.CashNeed
	if inv.SafetyBuffer {
		remaining := float64(len(e.params.CashFlows) - t)
		row.TargetNet = math.Min(row.CashNeed, math.Max(0, row.PfBegin)/remaining)
	}

	if row.PfBegin < 0 {
		err = e.stepNegative(&row)
	} else {
		err = e.stepInvested(&row)
	}
	if err != nil {
		return row, err
	}

	row.AvailableShares = e.pf.AvailableShares()
	row.LossPot = e.tb.LossPot()
	row.WithheldTaxes = e.tb.Withheld()
	return row, nil
}

// stepInvested buys the investment, then sells enough to net the target.
func (e *Engine) stepInvested(row *Row) error {
	if row.Investment > 0 {
		if err := e.pf.Buy(row.Investment/row.SharePrice, row.SharePrice); err != nil {
			return err
		}
	}

	var txs portfolio.Transactions
	if row.TargetNet > 0 {
		var err error
		txs, err = e.pf.SellNetVolume(row.TargetNet, row.SharePrice, true)
		if err != nil {
			return err
		}
	}
	row.Disinvestment = txs.Gross()
	row.GainOrLoss = txs.GainOrLoss()
	row.TaxesAbs = txs.Taxes()
	row.TaxesRel = txs.RelativeTaxes()
	row.ExemptionEnd = math.Max(0, row.ExemptionBegin-math.Max(0, row.GainOrLoss))
	row.NetProceeds = row.Disinvestment - row.TaxesAbs

	// a remaining position means the sale met its target
	if e.pf.AvailableShares() == 0 {
		row.Shortfall = math.Max(0, round2(row.TargetNet-row.NetProceeds))
	}
	value, err := e.pf.Value(row.SharePrice)
	if err != nil {
		return err
	}
	row.PfEnd = value - row.Shortfall
	return nil
}

// stepNegative handles a period that starts below zero. The balance does not
// compound: inflows and withdrawals are added to it, and a positive result is
// bought back into the ledger.
func (e *Engine) stepNegative(row *Row) error {
	row.Shortfall = round2(row.TargetNet)
	row.ExemptionEnd = row.ExemptionBegin
	row.PfEnd = row.PfBegin + row.Investment - row.TargetNet
	if row.PfEnd > 0 {
		return e.pf.Buy(row.PfEnd/row.SharePrice, row.SharePrice)
	}
	return nil
}

func (e *Engine) investment(cf cashflow.Period, living, target float64) float64 {
	capped := e.params.Investor.InvestmentCap
	if capped && e.params.CapScope == CapRecurringOnly {
		return math.Max(math.Min(cf.Recurring-living, target)+cf.OneOff, 0)
	}
	return DetermineInvestment(cf.Net, living, target, capped)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
