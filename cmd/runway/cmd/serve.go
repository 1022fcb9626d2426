package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/runway/internal/api"
	"github.com/rustyeddy/runway/journal"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulations over HTTP",
	Long: `Start an HTTP server that runs simulation batches on request.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/simulations     (plan document as body)
  GET  /api/v1/batches         (with --db)
  GET  /api/v1/batches/{id}    (with --db)

Example:
  runway serve --addr :8080 --db runway.db --data-dir ./prices`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr    string
	serveDBPath  string
	serveMaxRuns int
	serveWorkers int
	serveDataDir string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVarP(&serveDBPath, "db", "d", "", "SQLite journal for batches (optional)")
	serveCmd.Flags().IntVar(&serveMaxRuns, "max-runs", 10000, "largest batch a request may ask for")
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "w", 0, "parallel workers per batch (0 = all CPUs)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "directory of price histories plans may name in market.path")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := api.Options{
		Logger:  slog.Default(),
		MaxRuns: serveMaxRuns,
		Workers: serveWorkers,
		DataDir: serveDataDir,
	}
	if serveDBPath != "" {
		j, err := journal.NewSQLite(serveDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		opts.Journal = j
		opts.Store = j
	}

	srv := &http.Server{
		Addr:         serveAddr,
		Handler:      api.New(opts).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("runway listening", "addr", serveAddr, "journal", serveDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down runway...")
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
