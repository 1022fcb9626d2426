// Package montecarlo runs a plan many times over independent return paths and
// summarizes how often the portfolio survived.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/runway/internal/id"
	"github.com/rustyeddy/runway/internal/metrics"
	"github.com/rustyeddy/runway/journal"
	"github.com/rustyeddy/runway/outcome"
	"github.com/rustyeddy/runway/returns"
	"github.com/rustyeddy/runway/sim"
)

// Plan is one investor scenario: the simulation parameters and the return
// model the paths are drawn from.
type Plan struct {
	Name    string
	Params  sim.Params
	Returns returns.Spec
}

// Runner drives a batch of runs over the same plan.
type Runner struct {
	Plan    Plan
	Runs    int
	Workers int    // 0 means GOMAXPROCS
	Seed    uint64 // run i draws from Seed+i

	Journal journal.Journal // optional
	OrgDir  string          // optional, one Org file per batch
	Logger  *slog.Logger    // optional
}

// Result is a finished batch. Paths are in run order.
type Result struct {
	BatchID string
	Plan    string
	Model   string
	Seed    uint64
	Created time.Time
	Elapsed time.Duration
	Paths   []sim.Path
	Summary outcome.Summary
	Start   time.Time
	End     time.Time
	Initial float64
	OrgPath string
}

func (r *Runner) validate() error {
	if r.Runs <= 0 {
		return fmt.Errorf("montecarlo: runs must be positive, got %d", r.Runs)
	}
	if r.Workers < 0 {
		return fmt.Errorf("montecarlo: workers must not be negative, got %d", r.Workers)
	}
	if err := r.Plan.Params.Validate(); err != nil {
		return fmt.Errorf("montecarlo: %w", err)
	}
	if err := r.Plan.Returns.Validate(); err != nil {
		return fmt.Errorf("montecarlo: %w", err)
	}
	return nil
}

// Run simulates every run of the batch. The first failing run cancels the
// others and its error is returned. Journal records are written once all runs
// have finished.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if err := r.validate(); err != nil {
		return Result{}, err
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	plan := r.Plan
	spec, err := plan.Returns.Resolve()
	if err != nil {
		return Result{}, fmt.Errorf("montecarlo: %w", err)
	}
	plan.Returns = spec

	workers := r.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	created := time.Now().UTC()
	batchID := id.NewAt(created)
	runIDs := make([]string, r.Runs)
	for i := range runIDs {
		runIDs[i] = id.New()
	}

	log.Info("batch started", "batch", batchID, "plan", r.Plan.Name, "runs", r.Runs, "workers", workers, "seed", r.Seed)

	paths := make([]sim.Path, r.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range r.Runs {
		g.Go(func() error {
			path, err := runOne(gctx, plan, runIDs[i], r.Seed+uint64(i))
			if err != nil {
				log.Error("run failed", "batch", batchID, "run", runIDs[i], "err", err)
				return fmt.Errorf("montecarlo: run %d: %w", i, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.BatchesTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	values := make([][]float64, len(paths))
	for i, p := range paths {
		values[i] = p.Values()
	}
	summary, err := outcome.Summarize(values)
	if err != nil {
		return Result{}, err
	}

	cf := r.Plan.Params.CashFlows
	res := Result{
		BatchID: batchID,
		Plan:    r.Plan.Name,
		Model:   modelName(r.Plan.Returns),
		Seed:    r.Seed,
		Created: created,
		Elapsed: time.Since(created),
		Paths:   paths,
		Summary: summary,
		Start:   cf[0].Month,
		End:     cf[len(cf)-1].Month,
		Initial: r.Plan.Params.InitialValue,
	}

	if r.OrgDir != "" {
		if res.OrgPath, err = writeOrg(r.OrgDir, res); err != nil {
			metrics.BatchesTotal.WithLabelValues("failed").Inc()
			return res, fmt.Errorf("montecarlo: org file: %w", err)
		}
	}
	if r.Journal != nil {
		if err := record(r.Journal, res); err != nil {
			metrics.BatchesTotal.WithLabelValues("failed").Inc()
			return res, fmt.Errorf("montecarlo: journal batch %s: %w", batchID, err)
		}
	}

	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	metrics.LastSurvival.Set(summary.Survival)
	log.Info("batch finished", "batch", batchID, "survival", summary.Survival,
		"ruined", summary.Ruined, "elapsed", res.Elapsed)
	return res, nil
}

// runOne owns its generator, tax base and ledger.
func runOne(ctx context.Context, plan Plan, runID string, seed uint64) (sim.Path, error) {
	start := time.Now()
	gen, err := plan.Returns.New(seed)
	if err != nil {
		return sim.Path{}, err
	}
	eng, err := sim.NewEngine(plan.Params, gen)
	if err != nil {
		return sim.Path{}, err
	}
	path, err := eng.Run(ctx)
	if err != nil {
		return sim.Path{}, err
	}
	path.RunID = runID
	path.Seed = seed
	metrics.ObserveRun(outcome.Survived(path.Values()), len(path.Rows), time.Since(start))
	return path, nil
}

// record journals the finished batch. Journals implementing
// journal.BatchWriter get it in one atomic write; others record row by row
// with the batch last.
func record(j journal.Journal, res Result) error {
	periods, runs := records(res)
	if w, ok := j.(journal.BatchWriter); ok {
		return w.WriteBatch(periods, runs, res.Batch())
	}
	for _, p := range periods {
		if err := j.RecordPeriod(p); err != nil {
			return err
		}
	}
	for _, r := range runs {
		if err := j.RecordRun(r); err != nil {
			return err
		}
	}
	return j.RecordBatch(res.Batch())
}

func records(res Result) ([]journal.PeriodRecord, []journal.RunRecord) {
	var periods []journal.PeriodRecord
	runs := make([]journal.RunRecord, 0, len(res.Paths))
	for _, p := range res.Paths {
		for _, row := range p.Rows {
			periods = append(periods, row.Record(p.RunID))
		}
		ruin, ruined := outcome.TimeOfRuin(p.Values())
		if !ruined {
			ruin = -1
		}
		runs = append(runs, journal.RunRecord{
			RunID:      p.RunID,
			BatchID:    res.BatchID,
			Seed:       p.Seed,
			Periods:    len(p.Rows),
			Survived:   !ruined,
			RuinPeriod: ruin,
			FinalValue: p.Final(),
			MinValue:   p.Min(),
			TotalTaxes: p.TotalTaxes(),
		})
	}
	return periods, runs
}

// Batch converts the result for the journal.
func (res Result) Batch() journal.Batch {
	s := res.Summary
	return journal.Batch{
		BatchID:      res.BatchID,
		Created:      res.Created,
		Plan:         res.Plan,
		Model:        res.Model,
		Start:        res.Start,
		End:          res.End,
		Runs:         s.Runs,
		Seed:         res.Seed,
		InitialValue: res.Initial,
		Survival:     s.Survival,
		Ruined:       s.Ruined,
		EarliestRuin: s.EarliestRuin,
		MeanFinal:    s.MeanFinal,
		P10Final:     s.P10Final,
		P50Final:     s.P50Final,
		P90Final:     s.P90Final,
		OrgPath:      res.OrgPath,
		Notes:        res.notes(),
	}
}

// notes describes when runs were ruined, in calendar months.
func (res Result) notes() []string {
	s := res.Summary
	if s.Runs == 0 {
		return nil
	}
	if s.Ruined == 0 {
		return []string{fmt.Sprintf("No run was ruined within %d months", res.periods())}
	}
	notes := []string{
		fmt.Sprintf("%d of %d runs ruined, the first in period %d (%s)",
			s.Ruined, s.Runs, s.EarliestRuin, res.month(s.EarliestRuin)),
		fmt.Sprintf("Median ruin in period %.0f (%s)", s.MedianRuin, res.month(int(math.Round(s.MedianRuin)))),
	}
	if s.P50Final < res.Initial {
		notes = append(notes, "The median run ends below the initial value")
	}
	return notes
}

func (res Result) periods() int {
	if len(res.Paths) == 0 {
		return 0
	}
	return len(res.Paths[0].Rows)
}

// month returns the calendar month of period t.
func (res Result) month(t int) string {
	return time.Date(res.Start.Year(), res.Start.Month()+time.Month(t), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func writeOrg(dir string, res Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	b := res.Batch()
	b.OrgPath = filepath.Join(dir, res.BatchID+".org")
	if err := b.WriteOrg(); err != nil {
		return "", err
	}
	return b.OrgPath, nil
}

func modelName(s returns.Spec) string {
	if s.Model == "" {
		return returns.ModelGBM
	}
	return strings.ToLower(s.Model)
}

// ErrNoRuns is returned by Single when the plan has no months.
var ErrNoRuns = errors.New("montecarlo: nothing to run")

// Single runs the plan once with seed and journals its periods as they are
// simulated. It is the deterministic counterpart of Runner.Run.
func Single(ctx context.Context, plan Plan, seed uint64, j journal.Journal) (sim.Path, error) {
	if len(plan.Params.CashFlows) == 0 {
		return sim.Path{}, ErrNoRuns
	}
	gen, err := plan.Returns.New(seed)
	if err != nil {
		return sim.Path{}, err
	}
	eng, err := sim.NewEngine(plan.Params, gen)
	if err != nil {
		return sim.Path{}, err
	}
	runID := id.New()
	if j != nil {
		eng.SetJournal(j, runID)
	}
	path, err := eng.Run(ctx)
	path.RunID = runID
	path.Seed = seed
	return path, err
}
