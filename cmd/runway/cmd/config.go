package cmd

import (
	"fmt"

	"github.com/rustyeddy/runway/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate plan files",
	Long: `Manage plan files for simulations.

Subcommands:
  init     - Generate a default plan file
  validate - Validate an existing plan file

Examples:
  runway config init -o plan.yaml
  runway config validate -f plan.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default plan file",
	Long: `Create a new plan file with default settings.

Example:
  runway config init -o plan.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a plan file",
	Long: `Check if a plan file is valid and can be loaded.

Example:
  runway config validate -f plan.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "plan.yaml", "output plan file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to plan file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default plan: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  runway run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	plan, err := cfg.Plan()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Plan valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Period: %s to %s (%d months)\n", cfg.Simulation.Start, cfg.Simulation.End, len(plan.Params.CashFlows))
	fmt.Fprintf(out, "  Portfolio: %.2f %s\n", cfg.Portfolio.InitialValue, cfg.Currency)
	fmt.Fprintf(out, "  Market: %s (return %.2f%%, volatility %.2f%%)\n",
		plan.Returns.Model, cfg.Market.AnnualReturn*100, cfg.Market.AnnualVol*100)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}
