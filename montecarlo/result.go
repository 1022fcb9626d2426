package montecarlo

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money converts v into the currency's minor units and formats it.
func Money(v float64, currency string) string {
	code := strings.ToUpper(currency)
	if code == "" {
		code = "EUR"
	}
	fraction := 2
	if c := money.GetCurrency(code); c != nil {
		fraction = c.Fraction
	}
	minor := decimal.NewFromFloat(v).Shift(int32(fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

func PrintResult(w io.Writer, r Result, currency string) {
	s := r.Summary
	m := func(v float64) string { return Money(v, currency) }

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Simulation Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Batch ID:      %s\n", r.BatchID)
	fmt.Fprintf(w, "Created:       %s\n", r.Created.Format(time.RFC3339))
	if r.Plan != "" {
		fmt.Fprintf(w, "Plan:          %s\n", r.Plan)
	}
	fmt.Fprintf(w, "Model:         %s\n", r.Model)
	fmt.Fprintf(w, "Seed:          %d\n", r.Seed)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.DateOnly))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.DateOnly))
	fmt.Fprintf(w, "Initial Value: %s\n", m(r.Initial))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Survival")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Runs:          %d\n", s.Runs)
	fmt.Fprintf(w, "Survived:      %.2f%%\n", s.Survival*100)
	fmt.Fprintf(w, "Ruined:        %d\n", s.Ruined)
	if s.EarliestRuin >= 0 {
		fmt.Fprintf(w, "First Ruin:    period %d\n", s.EarliestRuin)
		fmt.Fprintf(w, "Median Ruin:   period %.0f\n", s.MedianRuin)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Final Value")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Mean:          %s\n", m(s.MeanFinal))
	fmt.Fprintf(w, "P10:           %s\n", m(s.P10Final))
	fmt.Fprintf(w, "P50:           %s\n", m(s.P50Final))
	fmt.Fprintf(w, "P90:           %s\n", m(s.P90Final))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Elapsed:       %s\n", r.Elapsed.Round(time.Millisecond))
}
