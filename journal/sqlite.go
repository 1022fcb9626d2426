package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const (
	insertPeriod = `
		INSERT INTO periods
		(run_id, period, month, investor_age, cash_inflow, living_expenses, cash_need, target_net,
		 pf_begin, investment, disinvestment, gain_or_loss, taxes_abs, taxes_rel, net_proceeds,
		 shortfall, pf_end, log_return, share_price, available_shares, exemption_begin,
		 exemption_end, loss_pot, withheld_taxes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertRun = `
		INSERT INTO runs
		(run_id, batch_id, seed, periods, survived, ruin_period, final_value, min_value, total_taxes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertBatch = `
		INSERT INTO batches
		(batch_id, created, plan, model, start_date, end_date, runs, seed, initial_value,
		 survival, ruined, earliest_ruin, mean_final, p10_final, p50_final, p90_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func periodArgs(p PeriodRecord) []any {
	return []any{
		p.RunID, p.Period, p.Month, p.InvestorAge, p.CashInflow, p.LivingExpenses, p.CashNeed,
		p.TargetNet, p.PfBegin, p.Investment, p.Disinvestment, p.GainOrLoss, p.TaxesAbs,
		p.TaxesRel, p.NetProceeds, p.Shortfall, p.PfEnd, p.LogReturn, p.SharePrice,
		p.AvailableShares, p.ExemptionBegin, p.ExemptionEnd, p.LossPot, p.WithheldTaxes,
	}
}

func runArgs(r RunRecord) []any {
	return []any{
		r.RunID, r.BatchID, int64(r.Seed), r.Periods, r.Survived, r.RuinPeriod,
		r.FinalValue, r.MinValue, r.TotalTaxes,
	}
}

func batchArgs(b Batch) []any {
	return []any{
		b.BatchID, b.Created, b.Plan, b.Model, b.Start, b.End, b.Runs, int64(b.Seed),
		b.InitialValue, b.Survival, b.Ruined, b.EarliestRuin, b.MeanFinal, b.P10Final,
		b.P50Final, b.P90Final,
	}
}

func (j *SQLite) RecordPeriod(p PeriodRecord) error {
	_, err := j.db.Exec(insertPeriod, periodArgs(p)...)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(insertRun, runArgs(r)...)
	return err
}

func (j *SQLite) RecordBatch(b Batch) error {
	_, err := j.db.Exec(insertBatch, batchArgs(b)...)
	return err
}

// WriteBatch stores a finished batch in one transaction. Either every row
// is written or none is.
func (j *SQLite) WriteBatch(periods []PeriodRecord, runs []RunRecord, b Batch) (err error) {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ps, err := tx.Prepare(insertPeriod)
	if err != nil {
		return err
	}
	defer ps.Close()
	for _, p := range periods {
		if _, err = ps.Exec(periodArgs(p)...); err != nil {
			return fmt.Errorf("period %s/%d: %w", p.RunID, p.Period, err)
		}
	}

	rs, err := tx.Prepare(insertRun)
	if err != nil {
		return err
	}
	defer rs.Close()
	for _, r := range runs {
		if _, err = rs.Exec(runArgs(r)...); err != nil {
			return fmt.Errorf("run %s: %w", r.RunID, err)
		}
	}

	if _, err = tx.Exec(insertBatch, batchArgs(b)...); err != nil {
		return fmt.Errorf("batch %s: %w", b.BatchID, err)
	}
	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
