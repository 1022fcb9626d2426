// Package cashflow turns dated cash events into the monthly net inflow series
// a simulation consumes.
package cashflow

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrInvalidDirection = errors.New("cashflow: unknown direction")
	ErrInvalidAmount    = errors.New("cashflow: invalid amount")
	ErrInvalidRange     = errors.New("cashflow: end before start")
)

// Direction is the sign of a cash flow from the investor's point of view.
type Direction int

const (
	Inflow  Direction = 1
	Outflow Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Inflow:
		return "inflow"
	case Outflow:
		return "outflow"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts "inflow" and "outflow".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "inflow", "in", "":
		return Inflow, nil
	case "outflow", "out":
		return Outflow, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Entry is a single dated cash event. Amount is never negative; the sign comes
// from Direction.
type Entry struct {
	Date      time.Time
	Amount    float64
	Direction Direction
	Label     string
	Recurring bool
}

// Signed returns the amount with the sign of its direction.
func (e Entry) Signed() float64 {
	return float64(e.Direction) * e.Amount
}

func (e Entry) validate() error {
	if e.Direction != Inflow && e.Direction != Outflow {
		return fmt.Errorf("%w: %d", ErrInvalidDirection, int(e.Direction))
	}
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) || e.Amount < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, e.Amount)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("cashflow: entry %q has no date", e.Label)
	}
	return nil
}

// Kinds of cash flows an investor plan knows about.

func Income(amount float64, date time.Time) Entry {
	return Entry{Date: date, Amount: amount, Direction: Inflow, Label: "Income"}
}

func PrivatePension(amount float64, date time.Time) Entry {
	return Entry{Date: date, Amount: amount, Direction: Inflow, Label: "Private Pension"}
}

func Retirement(amount float64, date time.Time) Entry {
	return Entry{Date: date, Amount: amount, Direction: Inflow, Label: "Retirement"}
}

// Other is a labelled one-off inflow such as an inheritance.
func Other(amount float64, label string, date time.Time) Entry {
	return Entry{Date: date, Amount: amount, Direction: Inflow, Label: label}
}

// AdditionalLivingExpenses is an outflow on top of the regular living expenses.
func AdditionalLivingExpenses(amount float64, date time.Time) Entry {
	return Entry{Date: date, Amount: amount, Direction: Outflow, Label: "Additional living expenses"}
}

// Recurring repeats an entry every month from its date up to and including
// End. The amount grows by YearlyIncrease once every 12 months.
type Recurring struct {
	Entry
	End            time.Time
	YearlyIncrease float64
}

// Expand returns one entry per month.
func (r Recurring) Expand() ([]Entry, error) {
	if err := r.Entry.validate(); err != nil {
		return nil, err
	}
	if r.End.Before(r.Date) {
		return nil, fmt.Errorf("%w: %s before %s", ErrInvalidRange, day(r.End), day(r.Date))
	}
	if math.IsNaN(r.YearlyIncrease) || math.IsInf(r.YearlyIncrease, 0) || r.YearlyIncrease <= -1 {
		return nil, fmt.Errorf("%w: yearly increase %v", ErrInvalidAmount, r.YearlyIncrease)
	}

	var out []Entry
	for i := 0; ; i++ {
		d := addMonths(r.Date, i)
		if d.After(r.End) {
			break
		}
		e := r.Entry
		e.Date = d
		e.Amount = r.Amount * math.Pow(1+r.YearlyIncrease, float64(i/12))
		e.Recurring = true
		out = append(out, e)
	}
	return out, nil
}

// Schedule is the set of cash events of one investor.
type Schedule struct {
	entries []Entry
}

// Add validates and records one-off entries.
func (s *Schedule) Add(entries ...Entry) error {
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return err
		}
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// AddRecurring expands r and records every occurrence.
func (s *Schedule) AddRecurring(r Recurring) error {
	entries, err := r.Expand()
	if err != nil {
		return err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// Entries returns the entries ordered by date.
func (s *Schedule) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Period is the net cash flow of one calendar month, keyed by its last day.
type Period struct {
	Month     time.Time
	Net       float64
	Recurring float64
	OneOff    float64
}

// Series is a gap-free sequence of months.
type Series []Period

// Net returns the net amounts in month order.
func (s Series) Net() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Net
	}
	return out
}

// Aggregate sums the schedule into the month-end grid of [start, end]. Months
// without entries are zero; entries outside the grid are dropped.
func (s *Schedule) Aggregate(start, end time.Time) (Series, error) {
	months, err := Months(start, end)
	if err != nil {
		return nil, err
	}
	series := make(Series, len(months))
	index := make(map[monthKey]int, len(months))
	for i, m := range months {
		series[i].Month = m
		index[keyOf(m)] = i
	}
	for _, e := range s.entries {
		i, ok := index[keyOf(e.Date)]
		if !ok {
			continue
		}
		v := e.Signed()
		series[i].Net += v
		if e.Recurring {
			series[i].Recurring += v
		} else {
			series[i].OneOff += v
		}
	}
	return series, nil
}

// Months returns the last day of every month whose last day lies within
// [start, end].
func Months(start, end time.Time) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s before %s", ErrInvalidRange, day(end), day(start))
	}
	start, end = truncate(start), truncate(end)
	var out []time.Time
	for m := MonthEnd(start); !m.After(end); m = MonthEnd(m.AddDate(0, 0, 1)) {
		out = append(out, m)
	}
	return out, nil
}

// MonthEnd returns the last day of t's month at midnight UTC.
func MonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// addMonths moves t by n months, clamping the day to the target month's end.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := MonthEnd(first)
	d := t.Day()
	if d > last.Day() {
		d = last.Day()
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

type monthKey struct {
	year  int
	month time.Month
}

func keyOf(t time.Time) monthKey { return monthKey{t.Year(), t.Month()} }

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func day(t time.Time) string { return t.Format(time.DateOnly) }
