// Package returns produces monthly log returns for the simulated security.
package returns

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrUnknownModel is returned for a model name Spec.New does not know.
var ErrUnknownModel = errors.New("returns: unknown model")

// ErrInvalidParams is returned for parameters a model cannot draw from.
var ErrInvalidParams = errors.New("returns: invalid parameters")

// Model names accepted by Spec.
const (
	ModelGBM      = "gbm"
	ModelStudentT = "student-t"
	ModelFixed    = "fixed"

	// ModelHistorical bootstraps the log returns of a price history.
	ModelHistorical = "historical"
)

// Generator yields monthly log returns. Each call continues the same stream.
type Generator interface {
	Generate(n int) []float64
}

// Reseeder is implemented by generators whose stream can be restarted.
type Reseeder interface {
	Reseed(seed uint64)
}

// Spec describes a return model with annualized parameters.
type Spec struct {
	Model        string    `yaml:"model" json:"model"`
	AnnualReturn float64   `yaml:"annual_return" json:"annual_return"`
	AnnualVol    float64   `yaml:"annual_volatility" json:"annual_volatility"`
	DOF          float64   `yaml:"dof,omitempty" json:"dof,omitempty"`
	Sequence     []float64 `yaml:"sequence,omitempty" json:"sequence,omitempty"`

	// Historical model: a price history CSV, resampled in blocks of Block months.
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Block int    `yaml:"block,omitempty" json:"block,omitempty"`
}

// Validate checks the parameters of the model.
func (s Spec) Validate() error {
	if !finite(s.AnnualReturn) {
		return fmt.Errorf("%w: annual return %v", ErrInvalidParams, s.AnnualReturn)
	}
	switch strings.ToLower(s.Model) {
	case ModelGBM, "":
		if !finite(s.AnnualVol) || s.AnnualVol < 0 {
			return fmt.Errorf("%w: annual volatility %v", ErrInvalidParams, s.AnnualVol)
		}
	case ModelStudentT:
		if !finite(s.AnnualVol) || s.AnnualVol < 0 {
			return fmt.Errorf("%w: annual volatility %v", ErrInvalidParams, s.AnnualVol)
		}
		if !finite(s.DOF) || s.DOF <= 0 {
			return fmt.Errorf("%w: degrees of freedom %v", ErrInvalidParams, s.DOF)
		}
	case ModelFixed, ModelHistorical:
		if len(s.Sequence) == 0 && (strings.EqualFold(s.Model, ModelFixed) || s.Path == "") {
			return fmt.Errorf("%w: %s model needs a sequence or price file", ErrInvalidParams, s.Model)
		}
		for _, r := range s.Sequence {
			if !finite(r) {
				return fmt.Errorf("%w: sequence value %v", ErrInvalidParams, r)
			}
		}
		if s.Block < 0 {
			return fmt.Errorf("%w: block %d", ErrInvalidParams, s.Block)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownModel, s.Model)
	}
	return nil
}

// New builds a generator for the model seeded with seed. An empty model name
// selects GBM.
func (s Spec) New(seed uint64) (Generator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(s.Model) {
	case ModelStudentT:
		return NewStudentT(s.AnnualReturn, s.AnnualVol, s.DOF, seed), nil
	case ModelFixed:
		return NewFixed(s.Sequence...), nil
	case ModelHistorical:
		r, err := s.Resolve()
		if err != nil {
			return nil, err
		}
		b, err := NewBootstrap(r.Sequence, r.Block, seed)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return NewGBM(s.AnnualReturn, s.AnnualVol, seed), nil
	}
}

// Resolve loads the log returns of a historical model's price file into
// Sequence, so that generators built from the result do not read the file.
// Other models are returned unchanged.
func (s Spec) Resolve() (Spec, error) {
	if strings.ToLower(s.Model) != ModelHistorical || len(s.Sequence) > 0 {
		return s, nil
	}
	prices, err := LoadPrices(s.Path)
	if err != nil {
		return s, err
	}
	if s.Sequence, err = LogReturns(prices); err != nil {
		return s, err
	}
	return s, nil
}

// Monthly converts annual return and volatility into the monthly drift and
// volatility of a log-normal model.
func Monthly(annualReturn, annualVol float64) (drift, vol float64) {
	vol = annualVol / math.Sqrt(12)
	drift = annualReturn/12 - vol*vol/2
	return drift, vol
}

// GBM draws normally distributed log returns (geometric Brownian motion).
type GBM struct {
	dist distuv.Normal
	src  *rand.PCG
}

func NewGBM(annualReturn, annualVol float64, seed uint64) *GBM {
	drift, vol := Monthly(annualReturn, annualVol)
	src := rand.NewPCG(seed, seed)
	return &GBM{
		dist: distuv.Normal{Mu: drift, Sigma: vol, Src: src},
		src:  src,
	}
}

func (g *GBM) Generate(n int) []float64 {
	return draw(g.dist.Rand, n)
}

func (g *GBM) Reseed(seed uint64) { g.src.Seed(seed, seed) }

// StudentT draws heavy-tailed log returns: drift plus a t(dof) variate scaled
// by the monthly volatility.
type StudentT struct {
	dist distuv.StudentsT
	src  *rand.PCG
}

func NewStudentT(annualReturn, annualVol, dof float64, seed uint64) *StudentT {
	drift, vol := Monthly(annualReturn, annualVol)
	src := rand.NewPCG(seed, seed)
	return &StudentT{
		dist: distuv.StudentsT{Mu: drift, Sigma: vol, Nu: dof, Src: src},
		src:  src,
	}
}

func (g *StudentT) Generate(n int) []float64 {
	return draw(g.dist.Rand, n)
}

func (g *StudentT) Reseed(seed uint64) { g.src.Seed(seed, seed) }

// Fixed replays a sequence, starting over when it runs out.
type Fixed struct {
	seq []float64
	pos int
}

func NewFixed(seq ...float64) *Fixed {
	return &Fixed{seq: append([]float64(nil), seq...)}
}

func (f *Fixed) Generate(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if len(f.seq) == 0 {
		return out
	}
	for i := range out {
		out[i] = f.seq[f.pos%len(f.seq)]
		f.pos++
	}
	return out
}

// Reseed rewinds the sequence.
func (f *Fixed) Reseed(uint64) { f.pos = 0 }

func draw(next func() float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = next()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
