// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	periodHeader = []string{
		"run_id", "period", "month", "investor_age", "cash_inflow", "living_expenses", "cash_need",
		"target_net", "pf_begin", "investment", "disinvestment", "gain_or_loss", "taxes_abs",
		"taxes_rel", "net_proceeds", "shortfall", "pf_end", "log_return", "share_price",
		"available_shares", "exemption_begin", "exemption_end", "loss_pot", "withheld_taxes",
	}
	runHeader = []string{
		"run_id", "batch_id", "seed", "periods", "survived", "ruin_period", "final_value",
		"min_value", "total_taxes",
	}
	batchHeader = []string{
		"batch_id", "created", "plan", "model", "start_date", "end_date", "runs", "seed",
		"initial_value", "survival", "ruined", "earliest_ruin", "mean_final", "p10_final",
		"p50_final", "p90_final",
	}
)

type CSVJournal struct {
	periods *csv.Writer
	runs    *csv.Writer
	batches *csv.Writer
	files   []*os.File
}

func NewCSV(periodsPath, runsPath, batchesPath string) (*CSVJournal, error) {
	j := &CSVJournal{}
	var err error
	if j.periods, err = j.create(periodsPath, periodHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.runs, err = j.create(runsPath, runHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.batches, err = j.create(batchesPath, batchHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) create(path string, header []string) (*csv.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	return w, w.Error()
}

func (j *CSVJournal) RecordPeriod(p PeriodRecord) error {
	return write(j.periods, []string{
		p.RunID,
		strconv.Itoa(p.Period),
		p.Month.Format(time.DateOnly),
		f(p.InvestorAge),
		f(p.CashInflow),
		f(p.LivingExpenses),
		f(p.CashNeed),
		f(p.TargetNet),
		f(p.PfBegin),
		f(p.Investment),
		f(p.Disinvestment),
		f(p.GainOrLoss),
		f(p.TaxesAbs),
		f(p.TaxesRel),
		f(p.NetProceeds),
		f(p.Shortfall),
		f(p.PfEnd),
		f(p.LogReturn),
		f(p.SharePrice),
		f(p.AvailableShares),
		f(p.ExemptionBegin),
		f(p.ExemptionEnd),
		f(p.LossPot),
		f(p.WithheldTaxes),
	})
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	return write(j.runs, []string{
		r.RunID,
		r.BatchID,
		strconv.FormatUint(r.Seed, 10),
		strconv.Itoa(r.Periods),
		strconv.FormatBool(r.Survived),
		strconv.Itoa(r.RuinPeriod),
		f(r.FinalValue),
		f(r.MinValue),
		f(r.TotalTaxes),
	})
}

func (j *CSVJournal) RecordBatch(b Batch) error {
	return write(j.batches, []string{
		b.BatchID,
		b.Created.Format(time.RFC3339),
		b.Plan,
		b.Model,
		b.Start.Format(time.DateOnly),
		b.End.Format(time.DateOnly),
		strconv.Itoa(b.Runs),
		strconv.FormatUint(b.Seed, 10),
		f(b.InitialValue),
		f(b.Survival),
		strconv.Itoa(b.Ruined),
		strconv.Itoa(b.EarliestRuin),
		f(b.MeanFinal),
		f(b.P10Final),
		f(b.P50Final),
		f(b.P90Final),
	})
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.periods, j.runs, j.batches} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
