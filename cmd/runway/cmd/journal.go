package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/runway/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query simulation journal data",
	Long: `Query and display simulation records from a SQLite journal.

Subcommands:
  batches - List the most recent batches
  runs    - List the runs of a batch
  periods - List the periods of a run
  org     - Export a batch and its runs as Org-mode

Examples:
  runway journal batches --limit 5
  runway journal runs <batch-id>
  runway journal periods <run-id>
  runway journal org <batch-id>`,
}

var journalBatchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List the most recent batches",
	Args:  cobra.NoArgs,
	RunE:  runJournalBatches,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs <batch-id>",
	Short: "List the runs of a batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRuns,
}

var journalPeriodsCmd = &cobra.Command{
	Use:   "periods <run-id>",
	Short: "List the simulated months of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalPeriods,
}

var journalOrgCmd = &cobra.Command{
	Use:   "org <batch-id>",
	Short: "Export a batch as Org-mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrg,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalBatchesCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalPeriodsCmd)
	journalCmd.AddCommand(journalOrgCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./runway.db", "path to SQLite journal DB")
	journalBatchesCmd.Flags().IntVarP(&journalLimit, "limit", "l", 20, "number of batches (0 = all)")
}

func runJournalBatches(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	batches, err := j.ListBatches(journalLimit)
	if err != nil {
		return fmt.Errorf("query batches: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tCREATED\tPLAN\tMODEL\tRUNS\tSURVIVAL\tP50 FINAL")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f%%\t%.2f\n",
			b.BatchID, b.Created.Format(time.DateTime), b.Plan, b.Model, b.Runs, b.Survival*100, b.P50Final)
	}
	return tw.Flush()
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	if _, err := j.GetBatch(args[0]); err != nil {
		return fmt.Errorf("get batch: %w", err)
	}
	runs, err := j.ListRunsByBatch(args[0])
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRunsOrg(runs))
	return nil
}

func runJournalPeriods(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	if _, err := j.GetRun(args[0]); err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	periods, err := j.ListPeriodsByRun(args[0])
	if err != nil {
		return fmt.Errorf("query periods: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PERIOD\tMONTH\tAGE\tPF BEGIN\tINFLOW\tNEED\tNET\tTAXES\tSHORTFALL\tPF END\t")
	for _, p := range periods {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			p.Period, p.Month.Format("2006-01"), p.InvestorAge, p.PfBegin, p.CashInflow,
			p.CashNeed, p.NetProceeds, p.TaxesAbs, p.Shortfall, p.PfEnd)
	}
	return tw.Flush()
}

func runJournalOrg(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	org, err := j.ExportBatchOrg(args[0])
	if err != nil {
		return fmt.Errorf("export batch: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), org)
	return nil
}
