package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a batch or run id is unknown.
var ErrNotFound = errors.New("journal: not found")

const batchColumns = `batch_id, created, plan, model, start_date, end_date, runs, seed, initial_value,
	survival, ruined, earliest_ruin, mean_final, p10_final, p50_final, p90_final`

const runColumns = `run_id, batch_id, seed, periods, survived, ruin_period, final_value, min_value, total_taxes`

const periodColumns = `run_id, period, month, investor_age, cash_inflow, living_expenses, cash_need, target_net,
	pf_begin, investment, disinvestment, gain_or_loss, taxes_abs, taxes_rel, net_proceeds,
	shortfall, pf_end, log_return, share_price, available_shares, exemption_begin,
	exemption_end, loss_pot, withheld_taxes`

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (Batch, error) {
	var b Batch
	var seed int64
	err := s.Scan(
		&b.BatchID, &b.Created, &b.Plan, &b.Model, &b.Start, &b.End, &b.Runs, &seed,
		&b.InitialValue, &b.Survival, &b.Ruined, &b.EarliestRuin, &b.MeanFinal,
		&b.P10Final, &b.P50Final, &b.P90Final,
	)
	b.Seed = uint64(seed)
	return b, err
}

func scanRun(s scanner) (RunRecord, error) {
	var r RunRecord
	var seed int64
	err := s.Scan(
		&r.RunID, &r.BatchID, &seed, &r.Periods, &r.Survived, &r.RuinPeriod,
		&r.FinalValue, &r.MinValue, &r.TotalTaxes,
	)
	r.Seed = uint64(seed)
	return r, err
}

func scanPeriod(s scanner) (PeriodRecord, error) {
	var p PeriodRecord
	err := s.Scan(
		&p.RunID, &p.Period, &p.Month, &p.InvestorAge, &p.CashInflow, &p.LivingExpenses,
		&p.CashNeed, &p.TargetNet, &p.PfBegin, &p.Investment, &p.Disinvestment,
		&p.GainOrLoss, &p.TaxesAbs, &p.TaxesRel, &p.NetProceeds, &p.Shortfall, &p.PfEnd,
		&p.LogReturn, &p.SharePrice, &p.AvailableShares, &p.ExemptionBegin,
		&p.ExemptionEnd, &p.LossPot, &p.WithheldTaxes,
	)
	return p, err
}

// GetBatch returns a single batch by ID.
func (j *SQLite) GetBatch(batchID string) (Batch, error) {
	row := j.db.QueryRow(`SELECT `+batchColumns+` FROM batches WHERE batch_id = ?`, batchID)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, fmt.Errorf("%w: batch %q", ErrNotFound, batchID)
		}
		return Batch{}, err
	}
	return b, nil
}

// ListBatches returns the most recent batches first, at most limit of them
// (all when limit <= 0).
func (j *SQLite) ListBatches(limit int) ([]Batch, error) {
	q := `SELECT ` + batchColumns + ` FROM batches ORDER BY created DESC, batch_id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("%w: run %q", ErrNotFound, runID)
		}
		return RunRecord{}, err
	}
	return r, nil
}

// ListRunsByBatch returns the runs of a batch ordered by run id.
func (j *SQLite) ListRunsByBatch(batchID string) ([]RunRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+runColumns+`
		FROM runs
		WHERE batch_id = ?
		ORDER BY run_id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPeriodsByRun returns the rows of one run in period order.
func (j *SQLite) ListPeriodsByRun(runID string) ([]PeriodRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+periodColumns+`
		FROM periods
		WHERE run_id = ?
		ORDER BY period ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PeriodRecord
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportBatchOrg loads a batch with its runs and returns the Org block.
func (j *SQLite) ExportBatchOrg(batchID string) (string, error) {
	b, err := j.GetBatch(batchID)
	if err != nil {
		return "", err
	}
	runs, err := j.ListRunsByBatch(batchID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := b.RenderOrg(&sb); err != nil {
		return "", err
	}
	if len(runs) > 0 {
		sb.WriteString("\n** Runs\n")
		sb.WriteString(FormatRunsOrg(runs))
	}
	return sb.String(), nil
}
