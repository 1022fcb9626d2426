package tax

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBase(t *testing.T, exemption, lossPot, rate float64) *Base {
	t.Helper()
	b, err := New(exemption, lossPot, rate)
	require.NoError(t, err)
	return b
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exemption float64
		lossPot   float64
		rate      float64
		wantErr   bool
	}{
		{"valid", 1000, 0, 0.26375, false},
		{"zero rate", 0, 0, 0, false},
		{"negative exemption", -1, 0, 0.2, true},
		{"negative loss pot", 0, -1, 0.2, true},
		{"rate of one", 0, 0, 1, true},
		{"negative rate", 0, 0, -0.1, true},
		{"nan rate", 0, 0, math.NaN(), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.exemption, tt.lossPot, tt.rate)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdjustExemption(t *testing.T) {
	t.Parallel()

	b := Default()
	require.NoError(t, b.AdjustExemption(100))
	assert.Equal(t, 1100.0, b.Exemption())

	assert.ErrorIs(t, b.AdjustExemption(math.NaN()), ErrInvalidArgument)
	assert.ErrorIs(t, b.AdjustExemption(math.Inf(-1)), ErrInvalidArgument)

	err := b.AdjustExemption(-1101)
	assert.ErrorIs(t, err, ErrNegativeExemption)
	assert.Equal(t, 1100.0, b.Exemption(), "failed adjustment must not change state")

	require.NoError(t, b.AdjustExemption(-1100))
	assert.Equal(t, 0.0, b.Exemption())
}

func TestTaxableAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exemption float64
		lossPot   float64
		sale      float64
		cost      float64
		shares    float64
		want      float64
	}{
		{"plain gain", 0, 0, 120, 100, 2, 40},
		{"gain within exemption", 801, 0, 120, 100, 2, 0},
		{"gain partly exempt", 30, 0, 120, 100, 2, 10},
		{"loss pot first", 30, 20, 120, 100, 2, 0},
		{"loss pot then exemption", 10, 20, 120, 100, 2, 10},
		{"loss", 0, 0, 80, 100, 2, 0},
		{"flat", 0, 0, 100, 100, 2, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := newBase(t, tt.exemption, tt.lossPot, 0.1)
			assert.InDelta(t, tt.want, b.TaxableAmount(tt.sale, tt.cost, tt.shares), 1e-9)
		})
	}
}

func TestTaxableAmountNeverNegative(t *testing.T) {
	t.Parallel()

	b := newBase(t, 250, 75, DefaultRate)
	for _, sale := range []float64{1, 50, 99.99, 100, 100.01, 150, 1000} {
		for _, shares := range []float64{0, 0.5, 1, 10, 1000} {
			got := b.TaxableAmount(sale, 100, shares)
			assert.GreaterOrEqual(t, got, 0.0)
			if sale <= 100 {
				assert.Zero(t, got)
			}
		}
	}
}

func TestComputeTax(t *testing.T) {
	t.Parallel()

	b := newBase(t, 0, 0, DefaultRate)
	got := b.ComputeTax(b.TaxableAmount(120, 100, 2), 120, 2)
	assert.InDelta(t, 10.55, got.Abs, 1e-9)
	assert.InDelta(t, 0.0439583333, got.Rel, 1e-9)

	zero := b.ComputeTax(0, 120, 0)
	assert.Zero(t, zero.Abs)
	assert.Zero(t, zero.Rel)
}

func TestTaxes(t *testing.T) {
	t.Parallel()

	got, err := Taxes(120, 100, 2, 0.1, 30, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.Abs, 1e-9)
	assert.InDelta(t, 0.004166666666666667, got.Rel, 1e-12)

	got, err = Taxes(120, 100, 2, 0.1, 801, 0)
	require.NoError(t, err)
	assert.Zero(t, got.Abs)

	_, err = Taxes(120, 100, 2, 0.1, -100, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApplySale(t *testing.T) {
	t.Parallel()

	t.Run("gain depletes loss pot then exemption", func(t *testing.T) {
		t.Parallel()
		b := newBase(t, 100, 50, 0.25)
		got := b.ApplySale(120, 100, 10) // gain 200
		assert.InDelta(t, 12.5, got.Abs, 1e-9)
		assert.InDelta(t, 12.5, b.Withheld(), 1e-9)
		assert.Zero(t, b.LossPot())
		assert.Zero(t, b.Exemption())
	})

	t.Run("loss grows the loss pot", func(t *testing.T) {
		t.Parallel()
		b := newBase(t, 100, 50, 0.25)
		got := b.ApplySale(80, 100, 10) // loss 200
		assert.Zero(t, got.Abs)
		assert.InDelta(t, 250, b.LossPot(), 1e-9)
		assert.InDelta(t, 100, b.Exemption(), 1e-9)
	})

	t.Run("small gain only uses loss pot", func(t *testing.T) {
		t.Parallel()
		b := newBase(t, 100, 50, 0.25)
		b.ApplySale(102, 100, 10) // gain 20
		assert.InDelta(t, 30, b.LossPot(), 1e-9)
		assert.InDelta(t, 100, b.Exemption(), 1e-9)
		assert.Zero(t, b.Withheld())
	})
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	b := newBase(t, 100, 0, 0.25)
	snap := b.Snapshot()
	b.ApplySale(200, 100, 10)
	require.NotEqual(t, snap, *b)

	b.Restore(snap)
	assert.Equal(t, snap, *b)
}

func TestSharesForNetProceeds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exemption float64
		lossPot   float64
		rate      float64
		target    float64
		sale      float64
		cost      float64
		want      float64
	}{
		{"gain within default exemption", DefaultExemption, 0, DefaultRate, 1000, 10, 5, 100},
		{"gain equal to default exemption", DefaultExemption, 0, DefaultRate, 2000, 20, 10, 100},
		{"high net proceeds", 1000, 200, DefaultRate, 10000, 150, 100, 70.77935130196437},
		{"medium net proceeds", 1000, 200, DefaultRate, 7157.125, 150, 100, 50},
		{"low net proceeds", 1000, 200, DefaultRate, 2000, 150, 100, 13.333333333333334},
		{"loss sale", 0, 0, DefaultRate, 3000, 50, 100, 60},
		{"no allowance", 0, 0, 0.1, 2750, 150, 120, 18.707482993197278},
		{"flat price", 0, 0, DefaultRate, 500, 100, 100, 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := newBase(t, tt.exemption, tt.lossPot, tt.rate)
			got, err := b.SharesForNetProceeds(tt.target, tt.sale, tt.cost)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSharesForNetProceedsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	b := Default()
	for _, args := range [][3]float64{
		{-200, 20, 10},
		{0, 20, 10},
		{100, 0, 10},
		{100, 20, -1},
		{math.NaN(), 20, 10},
		{100, math.Inf(1), 10},
	} {
		_, err := b.SharesForNetProceeds(args[0], args[1], args[2])
		assert.ErrorIs(t, err, ErrInvalidArgument, "args %v", args)
	}
}

func TestSharesForNetProceedsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, exemption := range []float64{0, 10, 801, 1000} {
		for _, lossPot := range []float64{0, 35, 500} {
			for _, cost := range []float64{10, 63.5, 100} {
				for _, sale := range []float64{100, 101, 150, 400} {
					for _, target := range []float64{0.5, 100, 2500, 1e6} {
						b := newBase(t, exemption, lossPot, DefaultRate)
						shares, err := b.SharesForNetProceeds(target, sale, cost)
						require.NoError(t, err)

						taxable := b.TaxableAmount(sale, cost, shares)
						net := shares*sale - b.ComputeTax(taxable, sale, shares).Abs
						assert.InEpsilon(t, target, net, RoundTripTolerance)
					}
				}
			}
		}
	}
}
