package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/runway/config"
	"github.com/rustyeddy/runway/montecarlo"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation batch from a plan file",
	Long: `Run a Monte Carlo batch using settings from a plan file.

The plan specifies the investor, the initial portfolio, the return model, the
cash flows and where results are journaled. Flags override the plan's batch
settings.

Example:
  runway run -f plan.yaml --runs 5000 --seed 42`,
	RunE: runRun,
}

var (
	runConfigPath string
	runRuns       int
	runWorkers    int
	runSeed       uint64
	runSingle     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to plan file (YAML or JSON) (required)")
	runCmd.Flags().IntVarP(&runRuns, "runs", "n", 0, "number of runs (overrides plan)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "parallel workers (overrides plan)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "base seed (overrides plan)")
	runCmd.Flags().BoolVar(&runSingle, "single", false, "simulate one run and journal it period by period")
	runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	r, err := cfg.Runner()
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}
	if r.Plan.Name == "" {
		r.Plan.Name = runConfigPath
	}
	flags := cmd.Flags()
	if flags.Changed("runs") {
		r.Runs = runRuns
	}
	if flags.Changed("workers") {
		r.Workers = runWorkers
	}
	if flags.Changed("seed") {
		r.Seed = runSeed
	}

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if runSingle {
		path, err := montecarlo.Single(ctx, r.Plan, r.Seed, j)
		if err != nil {
			return fmt.Errorf("simulate: %w", err)
		}
		fmt.Fprintf(out, "Run %s (seed %d): %d periods, final value %s\n",
			path.RunID, path.Seed, len(path.Rows), montecarlo.Money(path.Final(), cfg.Currency))
		return nil
	}

	r.Journal = j
	r.OrgDir = cfg.Journal.OrgDir
	r.Logger = slog.Default().With("plan", r.Plan.Name)

	res, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	montecarlo.PrintResult(out, res, cfg.Currency)
	if res.OrgPath != "" {
		fmt.Fprintf(out, "Org file:      %s\n", res.OrgPath)
	}
	return nil
}
