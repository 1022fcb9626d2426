package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/rustyeddy/runway/cashflow"
	"github.com/rustyeddy/runway/journal"
	"github.com/rustyeddy/runway/montecarlo"
	"github.com/rustyeddy/runway/returns"
	"github.com/rustyeddy/runway/sim"
	"gopkg.in/yaml.v3"
)

// Config represents a complete simulation plan
type Config struct {
	Name       string           `json:"name,omitempty" yaml:"name,omitempty"`
	Investor   InvestorConfig   `json:"investor" yaml:"investor"`
	Portfolio  PortfolioConfig  `json:"portfolio" yaml:"portfolio"`
	Market     returns.Spec     `json:"market" yaml:"market"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Policies   PolicyConfig     `json:"policies" yaml:"policies"`
	CashFlows  []CashFlowConfig `json:"cashflows,omitempty" yaml:"cashflows,omitempty"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Currency   string           `json:"currency" yaml:"currency"`
}

// InvestorConfig describes the person the plan is simulated for
type InvestorConfig struct {
	Birthdate        string  `json:"birthdate" yaml:"birthdate"` // YYYY-MM-DD
	LivingExpenses   float64 `json:"living_expenses" yaml:"living_expenses"`
	TargetInvestment float64 `json:"target_investment" yaml:"target_investment"`
	InvestmentCap    bool    `json:"investment_cap" yaml:"investment_cap"`
	SafetyBuffer     bool    `json:"safety_buffer" yaml:"safety_buffer"`
	TaxExemption     float64 `json:"tax_exemption" yaml:"tax_exemption"`
}

// PortfolioConfig contains the holding at simulation start
type PortfolioConfig struct {
	InitialValue float64 `json:"initial_value" yaml:"initial_value"`
	InitialGain  float64 `json:"initial_gain" yaml:"initial_gain"` // 0.2 = 20% unrealized gain
}

// SimulationConfig contains the time range and batch parameters
type SimulationConfig struct {
	Start     string  `json:"start" yaml:"start"` // YYYY-MM-DD
	End       string  `json:"end" yaml:"end"`
	Inflation float64 `json:"inflation" yaml:"inflation"`
	TaxRate   float64 `json:"tax_rate" yaml:"tax_rate"`
	LossPot   float64 `json:"loss_pot,omitempty" yaml:"loss_pot,omitempty"`
	Runs      int     `json:"runs" yaml:"runs"`
	Workers   int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	Seed      uint64  `json:"seed" yaml:"seed"`
}

// PolicyConfig selects the exemption and investment cap policies
type PolicyConfig struct {
	CapScope       string          `json:"cap_scope,omitempty" yaml:"cap_scope,omitempty"` // "all" or "recurring"
	ExemptionReset *ExemptionReset `json:"exemption_reset,omitempty" yaml:"exemption_reset,omitempty"`
}

// ExemptionReset restores the exemption to Amount every year in Month
type ExemptionReset struct {
	Amount float64 `json:"amount" yaml:"amount"`
	Month  int     `json:"month" yaml:"month"` // 1-12
}

// CashFlowConfig is a one-off or, when End is set, a monthly recurring cash flow
type CashFlowConfig struct {
	Kind           string  `json:"kind" yaml:"kind"`
	Amount         float64 `json:"amount" yaml:"amount"`
	Date           string  `json:"date" yaml:"date"`
	End            string  `json:"end,omitempty" yaml:"end,omitempty"`
	YearlyIncrease float64 `json:"yearly_increase,omitempty" yaml:"yearly_increase,omitempty"`
	Label          string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Cash flow kinds
const (
	KindIncome          = "income"
	KindPrivatePension  = "private_pension"
	KindRetirement      = "retirement"
	KindOther           = "other"
	KindLivingExpenses  = "living_expenses"
	defaultRunsPerBatch = 1000
)

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type        string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	PeriodsFile string `json:"periods_file,omitempty" yaml:"periods_file,omitempty"`
	RunsFile    string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	BatchesFile string `json:"batches_file,omitempty" yaml:"batches_file,omitempty"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgDir      string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document. YAML is tried
// first, JSON second.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = &Config{}
		if err = json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if money.GetCurrency(strings.ToUpper(c.Currency)) == nil {
		return fmt.Errorf("unknown currency %q", c.Currency)
	}
	birth, err := parseDate("investor.birthdate", c.Investor.Birthdate)
	if err != nil {
		return err
	}
	if c.Investor.LivingExpenses < 0 {
		return fmt.Errorf("investor.living_expenses must not be negative")
	}
	if c.Investor.TargetInvestment < 0 {
		return fmt.Errorf("investor.target_investment must not be negative")
	}
	if c.Investor.TaxExemption < 0 {
		return fmt.Errorf("investor.tax_exemption must not be negative")
	}
	if c.Portfolio.InitialValue < 0 {
		return fmt.Errorf("portfolio.initial_value must not be negative")
	}
	if c.Portfolio.InitialGain <= -1 {
		return fmt.Errorf("portfolio.initial_gain must be above -1")
	}
	if err := c.Market.Validate(); err != nil {
		return fmt.Errorf("market: %w", err)
	}

	start, err := parseDate("simulation.start", c.Simulation.Start)
	if err != nil {
		return err
	}
	end, err := parseDate("simulation.end", c.Simulation.End)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("simulation.end must not be before simulation.start")
	}
	if months, _ := cashflow.Months(start, end); len(months) == 0 {
		return fmt.Errorf("simulation %s to %s contains no month end", c.Simulation.Start, c.Simulation.End)
	}
	if start.Before(birth) {
		return fmt.Errorf("simulation.start must not be before investor.birthdate")
	}
	if c.Simulation.Inflation <= -1 {
		return fmt.Errorf("simulation.inflation must be above -1")
	}
	if c.Simulation.TaxRate < 0 || c.Simulation.TaxRate >= 1 {
		return fmt.Errorf("simulation.tax_rate must be between 0 and 1")
	}
	if c.Simulation.LossPot < 0 {
		return fmt.Errorf("simulation.loss_pot must not be negative")
	}
	if c.Simulation.Runs < 0 {
		return fmt.Errorf("simulation.runs must not be negative")
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}

	if _, err := sim.ParseCapScope(c.Policies.CapScope); err != nil {
		return fmt.Errorf("policies.cap_scope: %w", err)
	}
	if r := c.Policies.ExemptionReset; r != nil {
		if r.Month < 1 || r.Month > 12 {
			return fmt.Errorf("policies.exemption_reset.month must be between 1 and 12")
		}
		if r.Amount < 0 {
			return fmt.Errorf("policies.exemption_reset.amount must not be negative")
		}
	}

	for i, cf := range c.CashFlows {
		if _, err := cf.entry(); err != nil {
			return fmt.Errorf("cashflows[%d]: %w", i, err)
		}
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.PeriodsFile == "" || c.Journal.RunsFile == "" || c.Journal.BatchesFile == "" {
			return fmt.Errorf("journal periods_file, runs_file and batches_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

// SimInvestor builds the simulated investor.
func (c *Config) SimInvestor() (sim.Investor, error) {
	birth, err := parseDate("investor.birthdate", c.Investor.Birthdate)
	if err != nil {
		return sim.Investor{}, err
	}
	return sim.Investor{
		Birthdate:        birth,
		LivingExpenses:   c.Investor.LivingExpenses,
		TargetInvestment: c.Investor.TargetInvestment,
		InvestmentCap:    c.Investor.InvestmentCap,
		SafetyBuffer:     c.Investor.SafetyBuffer,
		TaxExemption:     c.Investor.TaxExemption,
	}, nil
}

// Schedule builds the cash-flow schedule, expanding recurring entries.
func (c *Config) Schedule() (*cashflow.Schedule, error) {
	s := &cashflow.Schedule{}
	for i, cf := range c.CashFlows {
		e, err := cf.entry()
		if err != nil {
			return nil, fmt.Errorf("cashflows[%d]: %w", i, err)
		}
		if cf.End == "" {
			err = s.Add(e)
		} else {
			end, perr := parseDate("end", cf.End)
			if perr != nil {
				return nil, fmt.Errorf("cashflows[%d]: %w", i, perr)
			}
			err = s.AddRecurring(cashflow.Recurring{Entry: e, End: end, YearlyIncrease: cf.YearlyIncrease})
		}
		if err != nil {
			return nil, fmt.Errorf("cashflows[%d]: %w", i, err)
		}
	}
	return s, nil
}

// ReturnSpec returns the market model.
func (c *Config) ReturnSpec() returns.Spec {
	return c.Market
}

// Plan assembles everything a batch needs.
func (c *Config) Plan() (montecarlo.Plan, error) {
	inv, err := c.SimInvestor()
	if err != nil {
		return montecarlo.Plan{}, err
	}
	s, err := c.Schedule()
	if err != nil {
		return montecarlo.Plan{}, err
	}
	start, err := parseDate("simulation.start", c.Simulation.Start)
	if err != nil {
		return montecarlo.Plan{}, err
	}
	end, err := parseDate("simulation.end", c.Simulation.End)
	if err != nil {
		return montecarlo.Plan{}, err
	}
	series, err := s.Aggregate(start, end)
	if err != nil {
		return montecarlo.Plan{}, err
	}
	scope, err := sim.ParseCapScope(c.Policies.CapScope)
	if err != nil {
		return montecarlo.Plan{}, err
	}

	var exemption sim.ExemptionPolicy = sim.NoReset{}
	if r := c.Policies.ExemptionReset; r != nil {
		exemption = sim.AnnualReset{Amount: r.Amount, Month: time.Month(r.Month)}
	}

	return montecarlo.Plan{
		Name: c.Name,
		Params: sim.Params{
			Investor:     inv,
			Inflation:    c.Simulation.Inflation,
			TaxRate:      c.Simulation.TaxRate,
			LossPot:      c.Simulation.LossPot,
			InitialValue: c.Portfolio.InitialValue,
			InitialGain:  c.Portfolio.InitialGain,
			CashFlows:    series,
			CapScope:     scope,
			Exemption:    exemption,
		},
		Returns: c.Market,
	}, nil
}

// Runner returns a batch runner for the plan. Runs defaults to 1000.
func (c *Config) Runner() (*montecarlo.Runner, error) {
	plan, err := c.Plan()
	if err != nil {
		return nil, err
	}
	runs := c.Simulation.Runs
	if runs == 0 {
		runs = defaultRunsPerBatch
	}
	return &montecarlo.Runner{
		Plan:    plan,
		Runs:    runs,
		Workers: c.Simulation.Workers,
		Seed:    c.Simulation.Seed,
	}, nil
}

// OpenJournal opens the configured journal. "none" yields journal.Discard.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "csv":
		j, err := journal.NewCSV(c.Journal.PeriodsFile, c.Journal.RunsFile, c.Journal.BatchesFile)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "", "none":
		return journal.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
}

func (cf CashFlowConfig) entry() (cashflow.Entry, error) {
	date, err := parseDate("date", cf.Date)
	if err != nil {
		return cashflow.Entry{}, err
	}
	if cf.Amount < 0 {
		return cashflow.Entry{}, fmt.Errorf("amount must not be negative")
	}
	if cf.End != "" {
		end, err := parseDate("end", cf.End)
		if err != nil {
			return cashflow.Entry{}, err
		}
		if end.Before(date) {
			return cashflow.Entry{}, fmt.Errorf("end must not be before date")
		}
	}

	switch strings.ToLower(cf.Kind) {
	case KindIncome:
		return cashflow.Income(cf.Amount, date), nil
	case KindPrivatePension:
		return cashflow.PrivatePension(cf.Amount, date), nil
	case KindRetirement:
		return cashflow.Retirement(cf.Amount, date), nil
	case KindOther:
		return cashflow.Other(cf.Amount, cf.Label, date), nil
	case KindLivingExpenses:
		return cashflow.AdditionalLivingExpenses(cf.Amount, date), nil
	}
	return cashflow.Entry{}, fmt.Errorf("unknown cash flow kind %q", cf.Kind)
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Name: "default",
		Investor: InvestorConfig{
			Birthdate:        "1980-06-15",
			LivingExpenses:   2500,
			TargetInvestment: 500,
			InvestmentCap:    true,
			TaxExemption:     1000,
		},
		Portfolio: PortfolioConfig{
			InitialValue: 400000,
			InitialGain:  0.2,
		},
		Market: returns.Spec{
			Model:        returns.ModelGBM,
			AnnualReturn: 0.05,
			AnnualVol:    0.15,
		},
		Simulation: SimulationConfig{
			Start:     "2030-01-01",
			End:       "2059-12-31",
			Inflation: 0.02,
			TaxRate:   0.26375,
			Runs:      defaultRunsPerBatch,
			Seed:      1,
		},
		Policies: PolicyConfig{
			CapScope:       "all",
			ExemptionReset: &ExemptionReset{Amount: 1000, Month: 1},
		},
		CashFlows: []CashFlowConfig{
			{Kind: KindRetirement, Amount: 1800, Date: "2047-07-01", End: "2059-12-31", YearlyIncrease: 0.01},
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./runway.db",
			OrgDir: "./org",
		},
		Currency: "EUR",
	}
}
