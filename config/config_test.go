package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/runway/journal"
	"github.com/rustyeddy/runway/returns"
	"github.com/rustyeddy/runway/sim"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, 400000.0, cfg.Portfolio.InitialValue)
	assert.Equal(t, returns.ModelGBM, cfg.Market.Model)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing currency", func(c *Config) { c.Currency = "" }, "currency is required"},
		{"unknown currency", func(c *Config) { c.Currency = "XYZ" }, "unknown currency"},
		{"missing birthdate", func(c *Config) { c.Investor.Birthdate = "" }, "investor.birthdate is required"},
		{"bad birthdate", func(c *Config) { c.Investor.Birthdate = "15.06.1980" }, "investor.birthdate"},
		{"negative living expenses", func(c *Config) { c.Investor.LivingExpenses = -1 }, "investor.living_expenses"},
		{"negative initial value", func(c *Config) { c.Portfolio.InitialValue = -1 }, "portfolio.initial_value"},
		{"total loss gain", func(c *Config) { c.Portfolio.InitialGain = -1 }, "portfolio.initial_gain"},
		{"unknown model", func(c *Config) { c.Market.Model = "cauchy" }, "market"},
		{"end before start", func(c *Config) { c.Simulation.End = "2029-12-31" }, "simulation.end must not be before"},
		{"no month end", func(c *Config) {
			c.Simulation.Start = "2030-01-15"
			c.Simulation.End = "2030-01-20"
		}, "contains no month end"},
		{"start before birth", func(c *Config) { c.Simulation.Start = "1970-01-01" }, "simulation.start must not be before"},
		{"tax rate of one", func(c *Config) { c.Simulation.TaxRate = 1 }, "simulation.tax_rate"},
		{"deflation below -1", func(c *Config) { c.Simulation.Inflation = -1 }, "simulation.inflation"},
		{"negative runs", func(c *Config) { c.Simulation.Runs = -5 }, "simulation.runs"},
		{"unknown cap scope", func(c *Config) { c.Policies.CapScope = "some" }, "policies.cap_scope"},
		{"reset month", func(c *Config) { c.Policies.ExemptionReset.Month = 13 }, "policies.exemption_reset.month"},
		{"unknown kind", func(c *Config) { c.CashFlows[0].Kind = "lottery" }, "cashflows[0]: unknown cash flow kind"},
		{"recurring end before date", func(c *Config) { c.CashFlows[0].End = "2040-01-01" }, "cashflows[0]: end must not be before date"},
		{"csv without files", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }, "required for CSV type"},
		{"sqlite without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }, "db_path required"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "postgres" }, "journal.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	doc := `
name: retire-early
currency: USD
investor:
  birthdate: "1985-03-01"
  living_expenses: 3000
  target_investment: 1000
  investment_cap: true
portfolio:
  initial_value: 250000
market:
  model: student-t
  annual_return: 0.06
  annual_volatility: 0.18
  dof: 4
simulation:
  start: "2035-01-01"
  end: "2035-12-31"
  tax_rate: 0.25
  runs: 50
  seed: 7
policies:
  cap_scope: recurring
cashflows:
  - kind: income
    amount: 2000
    date: "2035-01-15"
    end: "2035-06-15"
  - kind: other
    label: inheritance
    amount: 50000
    date: "2035-03-10"
journal:
  type: none
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "retire-early", cfg.Name)
	assert.Equal(t, returns.ModelStudentT, cfg.Market.Model)
	assert.Equal(t, 4.0, cfg.Market.DOF)

	plan, err := cfg.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Params.CashFlows, 12)
	assert.Equal(t, sim.CapRecurringOnly, plan.Params.CapScope)
	assert.Equal(t, sim.NoReset{}, plan.Params.Exemption)

	march := plan.Params.CashFlows[2]
	assert.Equal(t, 52000.0, march.Net)
	assert.Equal(t, 2000.0, march.Recurring)
	assert.Equal(t, 50000.0, march.OneOff)
	assert.Zero(t, plan.Params.CashFlows[6].Net)

	r, err := cfg.Runner()
	require.NoError(t, err)
	assert.Equal(t, 50, r.Runs)
	assert.Equal(t, uint64(7), r.Seed)
}

func TestParseJSON(t *testing.T) {
	doc := `{"currency": "EUR", "investor": {"birthdate": "1980-01-01"},
		"market": {"model": "fixed", "sequence": [0.01]},
		"simulation": {"start": "2030-01-01", "end": "2030-03-31", "tax_rate": 0.2},
		"journal": {"type": "none"}}`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01}, cfg.Market.Sequence)

	r, err := cfg.Runner()
	require.NoError(t, err)
	assert.Equal(t, 1000, r.Runs, "runs default")
}

func TestDefaultPlan(t *testing.T) {
	plan, err := Default().Plan()
	require.NoError(t, err)

	cf := plan.Params.CashFlows
	require.Len(t, cf, 360)
	assert.Equal(t, time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC), cf[0].Month)
	assert.Equal(t, time.Date(2059, 12, 31, 0, 0, 0, 0, time.UTC), cf[359].Month)

	// retirement starts July 2047 and grows 1% after a year
	assert.Zero(t, cf[209].Net)
	assert.Equal(t, 1800.0, cf[210].Net)
	assert.InDelta(t, 1818.0, cf[222].Net, 1e-9)

	assert.Equal(t, sim.AnnualReset{Amount: 1000, Month: time.January}, plan.Params.Exemption)
	assert.Equal(t, 0.26375, plan.Params.TaxRate)
	assert.Equal(t, 1000.0, plan.Params.Investor.TaxExemption)
}

func TestSimInvestor(t *testing.T) {
	cfg := Default()
	inv, err := cfg.SimInvestor()
	require.NoError(t, err)
	assert.Equal(t, sim.Investor{
		Birthdate:        time.Date(1980, 6, 15, 0, 0, 0, 0, time.UTC),
		LivingExpenses:   cfg.Investor.LivingExpenses,
		TargetInvestment: cfg.Investor.TargetInvestment,
		InvestmentCap:    cfg.Investor.InvestmentCap,
		SafetyBuffer:     cfg.Investor.SafetyBuffer,
		TaxExemption:     1000,
	}, inv)

	cfg.Investor.Birthdate = "june"
	_, err = cfg.SimInvestor()
	assert.ErrorContains(t, err, "investor.birthdate")
}

func TestOpenJournal(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Journal = JournalConfig{Type: "none"}
	j, err := cfg.OpenJournal()
	require.NoError(t, err)
	assert.Equal(t, journal.Discard{}, j)

	cfg.Journal = JournalConfig{
		Type:        "csv",
		PeriodsFile: filepath.Join(dir, "periods.csv"),
		RunsFile:    filepath.Join(dir, "runs.csv"),
		BatchesFile: filepath.Join(dir, "batches.csv"),
	}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.FileExists(t, filepath.Join(dir, "runs.csv"))

	cfg.Journal = JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "runway.db")}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	assert.IsType(t, &journal.SQLite{}, j)
	require.NoError(t, j.Close())
}
