package returns

import (
	"compress/gzip"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const history = `date,close
2020-03-31,110
2020-01-31,100

2020-02-29,95
2020-04-30
2020-05-31T00:00:00Z,121
`

func TestReadPrices(t *testing.T) {
	t.Parallel()

	prices, err := ReadPrices(strings.NewReader(history))
	require.NoError(t, err)
	require.Len(t, prices, 4)

	assert.Equal(t, time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), prices[0].Time, "sorted by date")
	assert.Equal(t, []float64{100, 95, 110, 121},
		[]float64{prices[0].Close, prices[1].Close, prices[2].Close, prices[3].Close})
}

func TestReadPricesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"bad date", "31/01/2020,100\n"},
		{"bad close", "2020-01-31,abc\n"},
		{"zero close", "2020-01-31,0\n"},
		{"negative close", "2020-01-31,-5\n"},
		{"not a price file", "API_KEY=hunter2,x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPrices(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrBadPrice)
			assert.Contains(t, err.Error(), "line 1")

			field, _, _ := strings.Cut(strings.TrimSpace(tt.doc), ",")
			assert.NotContains(t, err.Error(), field)
		})
	}
}

func TestLogReturns(t *testing.T) {
	t.Parallel()

	prices, err := ReadPrices(strings.NewReader(history))
	require.NoError(t, err)
	rs, err := LogReturns(prices)
	require.NoError(t, err)

	require.Len(t, rs, 3)
	assert.InDelta(t, math.Log(0.95), rs[0], 1e-12)
	assert.InDelta(t, math.Log(110.0/95), rs[1], 1e-12)
	assert.InDelta(t, math.Log(1.1), rs[2], 1e-12)

	_, err = LogReturns(prices[:1])
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func writeCompressed(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(path) {
	case ".xz":
		w, err := xz.NewWriter(f)
		require.NoError(t, err)
		_, err = w.Write([]byte(history))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case ".gz":
		w := gzip.NewWriter(f)
		_, err = w.Write([]byte(history))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		_, err = f.WriteString(history)
		require.NoError(t, err)
	}
}

func TestLoadPrices(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"prices.csv", "prices.csv.xz", "prices.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeCompressed(t, path)

			prices, err := LoadPrices(path)
			require.NoError(t, err)
			assert.Len(t, prices, 4)
		})
	}

	_, err := LoadPrices(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestBootstrapDrawsFromHistory(t *testing.T) {
	t.Parallel()

	hist := []float64{0.01, 0.02, 0.03, 0.04, 0.05}
	b, err := NewBootstrap(hist, 1, 3)
	require.NoError(t, err)

	for _, v := range b.Generate(200) {
		assert.Contains(t, hist, v)
	}
}

func TestBootstrapBlocksAreConsecutive(t *testing.T) {
	t.Parallel()

	hist := []float64{0, 1, 2, 3, 4, 5, 6}
	b, err := NewBootstrap(hist, 4, 11)
	require.NoError(t, err)

	xs := b.Generate(40)
	for blk := 0; blk < len(xs); blk += 4 {
		for i := blk + 1; i < blk+4; i++ {
			assert.Equal(t, math.Mod(xs[i-1]+1, 7), xs[i], "block starting at %d wraps around", blk)
		}
	}
}

func TestBootstrapReseed(t *testing.T) {
	t.Parallel()

	b, err := NewBootstrap([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 5)
	require.NoError(t, err)
	first := b.Generate(9)
	b.Reseed(5)
	assert.Equal(t, first, b.Generate(9))

	_, err = NewBootstrap(nil, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestSpecResolveHistorical(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prices.csv.xz")
	writeCompressed(t, path)

	spec := Spec{Model: ModelHistorical, Path: path, Block: 2}
	require.NoError(t, spec.Validate())

	resolved, err := spec.Resolve()
	require.NoError(t, err)
	assert.Len(t, resolved.Sequence, 3)

	g, err := resolved.New(1)
	require.NoError(t, err)
	assert.Len(t, g.Generate(12), 12)

	gbm := Spec{AnnualVol: 0.1}
	same, err := gbm.Resolve()
	require.NoError(t, err)
	assert.Equal(t, gbm, same)

	_, err = Spec{Model: ModelHistorical, Path: "/does/not/exist.csv"}.New(1)
	assert.Error(t, err)
}
