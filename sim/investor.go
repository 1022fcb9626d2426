package sim

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrBeforeBirth is returned when an age is asked for a date before the
// investor was born.
var ErrBeforeBirth = errors.New("sim: date before birthdate")

// Investor is the profile a run is simulated for. It does not change during
// a run.
type Investor struct {
	Birthdate        time.Time
	LivingExpenses   float64 // monthly, at simulation start
	TargetInvestment float64 // monthly savings goal, at simulation start
	InvestmentCap    bool    // invest at most TargetInvestment per month
	SafetyBuffer     bool    // spread the portfolio over the remaining months
	TaxExemption     float64 // exemption available in the first period
}

func (inv Investor) Validate() error {
	if inv.Birthdate.IsZero() {
		return errors.New("sim: investor birthdate is required")
	}
	for name, v := range map[string]float64{
		"living expenses":   inv.LivingExpenses,
		"target investment": inv.TargetInvestment,
		"tax exemption":     inv.TaxExemption,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("sim: investor %s must be a non-negative number, got %v", name, v)
		}
	}
	return nil
}

// Age returns the investor's age at t in years, rounded to one decimal.
func (inv Investor) Age(t time.Time) (float64, error) {
	if t.Before(inv.Birthdate) {
		return 0, fmt.Errorf("%w: %s before %s", ErrBeforeBirth,
			t.Format(time.DateOnly), inv.Birthdate.Format(time.DateOnly))
	}
	days := math.Floor(t.Sub(inv.Birthdate).Hours() / 24)
	return math.Round(days/365.25*10) / 10, nil
}

// DetermineCashNeed returns the part of the living expenses the inflow does
// not cover.
func DetermineCashNeed(cashInflow, livingExpenses float64) float64 {
	return math.Max(0, livingExpenses-cashInflow)
}

// DetermineInvestment returns the amount invested from the inflow left after
// living expenses. With capped set it never exceeds target.
func DetermineInvestment(cashInflow, livingExpenses, target float64, capped bool) float64 {
	surplus := cashInflow - livingExpenses
	if capped {
		return math.Max(math.Min(surplus, target), 0)
	}
	return math.Max(surplus, 0)
}
