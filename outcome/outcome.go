// Package outcome evaluates simulated portfolio value series: whether they
// survived, when they were ruined and how their final values are distributed.
//
// A value survives when it is zero or above. A series survives when every
// one of its values does.
package outcome

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when no series are given.
var ErrEmptyInput = errors.New("outcome: empty input")

// Survived reports whether no value of series is negative.
func Survived(series []float64) bool {
	_, ruined := TimeOfRuin(series)
	return !ruined
}

// TimeOfRuin returns the index of the first negative value. ok is false when
// the series never goes negative.
func TimeOfRuin(series []float64) (period int, ok bool) {
	for i, v := range series {
		if v < 0 {
			return i, true
		}
	}
	return 0, false
}

// SurvivalProbability returns the share of series that survived.
func SurvivalProbability(paths [][]float64) (float64, error) {
	if len(paths) == 0 {
		return 0, ErrEmptyInput
	}
	var n int
	for _, p := range paths {
		if Survived(p) {
			n++
		}
	}
	return float64(n) / float64(len(paths)), nil
}

// EarliestRuin returns the smallest time of ruin over all ruined series.
func EarliestRuin(paths [][]float64) (period int, ok bool) {
	for _, p := range paths {
		if t, ruined := TimeOfRuin(p); ruined && (!ok || t < period) {
			period, ok = t, true
		}
	}
	return period, ok
}

// Summary describes a set of series.
type Summary struct {
	Runs     int
	Survival float64
	Ruined   int

	EarliestRuin int // -1 when nothing was ruined
	MedianRuin   float64

	MeanFinal float64
	P10Final  float64
	P50Final  float64
	P90Final  float64
}

// Summarize computes survival, ruin timing and final value quantiles. Empty
// series count as survived with a final value of zero.
func Summarize(paths [][]float64) (Summary, error) {
	if len(paths) == 0 {
		return Summary{}, ErrEmptyInput
	}

	s := Summary{Runs: len(paths), EarliestRuin: -1}
	finals := make([]float64, len(paths))
	var ruins []float64
	for i, p := range paths {
		if len(p) > 0 {
			finals[i] = p[len(p)-1]
		}
		if t, ruined := TimeOfRuin(p); ruined {
			ruins = append(ruins, float64(t))
			if s.EarliestRuin < 0 || t < s.EarliestRuin {
				s.EarliestRuin = t
			}
		}
	}
	s.Ruined = len(ruins)
	s.Survival = float64(s.Runs-s.Ruined) / float64(s.Runs)

	sort.Float64s(finals)
	s.MeanFinal = stat.Mean(finals, nil)
	s.P10Final = stat.Quantile(0.1, stat.Empirical, finals, nil)
	s.P50Final = stat.Quantile(0.5, stat.Empirical, finals, nil)
	s.P90Final = stat.Quantile(0.9, stat.Empirical, finals, nil)

	if len(ruins) > 0 {
		sort.Float64s(ruins)
		s.MedianRuin = stat.Quantile(0.5, stat.Empirical, ruins, nil)
	}
	return s, nil
}
