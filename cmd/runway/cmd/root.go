package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runway",
	Short: "A portfolio survival simulator for retirement withdrawals",
	Long: `Runway simulates how long a taxable portfolio lasts while it pays for
living expenses.

It provides tools for:
  - Monte Carlo batches over GBM, Student-t or fixed return paths
  - FIFO tax-lot accounting with exemption and loss carryforward
  - Recurring and one-off cash flows
  - Journaling periods, runs and batches to CSV or SQLite
  - Serving simulations over HTTP with Prometheus metrics

Complete documentation is available at https://github.com/rustyeddy/runway`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var (
	logLevel string
	logJSON  bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
