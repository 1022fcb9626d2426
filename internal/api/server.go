// Package api serves simulation batches over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rustyeddy/runway/config"
	"github.com/rustyeddy/runway/internal/metrics"
	"github.com/rustyeddy/runway/journal"
	"github.com/rustyeddy/runway/returns"
)

const maxPlanBytes = 1 << 20

// BatchStore is the read side of a journal.
type BatchStore interface {
	GetBatch(batchID string) (journal.Batch, error)
	ListBatches(limit int) ([]journal.Batch, error)
}

// Options configures a Server. Zero values are usable.
type Options struct {
	Logger  *slog.Logger
	MaxRuns int             // upper bound on runs per request, default 10000
	Workers int             // per batch, 0 means GOMAXPROCS
	Journal journal.Journal // records every batch when set
	Store   BatchStore      // enables the batch endpoints when set
	Timeout time.Duration   // per request, default 60s

	// DataDir holds the price histories plans may name in market.path.
	// Without it such plans are rejected.
	DataDir string
}

type Server struct {
	opts   Options
	log    *slog.Logger
	router chi.Router
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = 10000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	s := &Server{opts: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(opts.Timeout))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"runway"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/simulations", s.CreateSimulation)
		if opts.Store != nil {
			r.Get("/batches", s.ListBatches)
			r.Get("/batches/{batchID}", s.GetBatch)
		}
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// SimulationResponse summarizes a finished batch.
type SimulationResponse struct {
	BatchID      string    `json:"batch_id"`
	Plan         string    `json:"plan,omitempty"`
	Model        string    `json:"model"`
	Seed         uint64    `json:"seed"`
	Runs         int       `json:"runs"`
	Periods      int       `json:"periods"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Survival     float64   `json:"survival"`
	Ruined       int       `json:"ruined"`
	EarliestRuin int       `json:"earliest_ruin"`
	MedianRuin   float64   `json:"median_ruin"`
	MeanFinal    float64   `json:"mean_final"`
	P10Final     float64   `json:"p10_final"`
	P50Final     float64   `json:"p50_final"`
	P90Final     float64   `json:"p90_final"`
	ElapsedMS    int64     `json:"elapsed_ms"`
}

// CreateSimulation runs a batch for the plan in the request body. The body is
// a plan document in YAML or JSON; the runs and seed query parameters
// override the plan.
func (s *Server) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPlanBytes))
	if err != nil {
		writeError(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	cfg, err := config.Parse(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.Market.Path != "" {
		if cfg.Market, err = s.resolveHistory(cfg.Market); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	runner, err := cfg.Runner()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	if v := q.Get("runs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "runs must be a positive integer", http.StatusBadRequest)
			return
		}
		runner.Runs = n
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, "seed must be an unsigned integer", http.StatusBadRequest)
			return
		}
		runner.Seed = seed
	}
	if runner.Runs > s.opts.MaxRuns {
		writeError(w, "runs exceeds limit of "+strconv.Itoa(s.opts.MaxRuns), http.StatusBadRequest)
		return
	}
	runner.Workers = s.opts.Workers
	runner.Journal = s.opts.Journal
	runner.Logger = s.log.With("request", middleware.GetReqID(r.Context()))

	res, err := runner.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if r.Context().Err() != nil {
			status = http.StatusServiceUnavailable
		}
		s.log.Error("simulation failed", "err", err)
		writeError(w, "simulation failed", status)
		return
	}

	sum := res.Summary
	resp := SimulationResponse{
		BatchID:      res.BatchID,
		Plan:         res.Plan,
		Model:        res.Model,
		Seed:         res.Seed,
		Runs:         sum.Runs,
		Periods:      len(runner.Plan.Params.CashFlows),
		Start:        res.Start,
		End:          res.End,
		Survival:     sum.Survival,
		Ruined:       sum.Ruined,
		EarliestRuin: sum.EarliestRuin,
		MedianRuin:   sum.MedianRuin,
		MeanFinal:    sum.MeanFinal,
		P10Final:     sum.P10Final,
		P50Final:     sum.P50Final,
		P90Final:     sum.P90Final,
		ElapsedMS:    res.Elapsed.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// resolveHistory loads a price history named by a plan from the data
// directory. Errors never carry file content or server paths.
func (s *Server) resolveHistory(spec returns.Spec) (returns.Spec, error) {
	if s.opts.DataDir == "" {
		return spec, errors.New("market.path is not accepted, send the returns as market.sequence")
	}
	if !filepath.IsLocal(spec.Path) {
		return spec, errors.New("market.path must be a relative path inside the data directory")
	}
	name := spec.Path
	spec.Path = filepath.Join(s.opts.DataDir, name)
	resolved, err := spec.Resolve()
	if err != nil {
		s.log.Warn("price history", "path", spec.Path, "err", err)
		if errors.Is(err, returns.ErrBadPrice) {
			return spec, fmt.Errorf("market.path %s is not a price history", name)
		}
		return spec, fmt.Errorf("market.path %s cannot be read", name)
	}
	return resolved, nil
}

// ListBatches returns the newest batches, at most limit (default 20).
func (s *Server) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	batches, err := s.opts.Store.ListBatches(limit)
	if err != nil {
		s.log.Error("list batches", "err", err)
		writeError(w, "failed to list batches", http.StatusInternalServerError)
		return
	}
	if batches == nil {
		batches = []journal.Batch{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(batches)
}

func (s *Server) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	b, err := s.opts.Store.GetBatch(batchID)
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, "batch not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get batch", "batch", batchID, "err", err)
		writeError(w, "failed to load batch", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
