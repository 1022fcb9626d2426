package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('batches','runs','periods')`)
	assert.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["batches"])
	assert.True(t, found["runs"])
	assert.True(t, found["periods"])
}

func TestSQLiteRecordPeriod(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	month := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	rec := PeriodRecord{
		RunID:          "R1",
		Period:         1,
		Month:          month,
		CashNeed:       2500.25,
		PfEnd:          99000.5,
		SharePrice:     101.234567891,
		ExemptionBegin: 1000,
		ExemptionEnd:   750,
	}

	assert.NoError(t, j.RecordPeriod(rec))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		runID     string
		period    int
		gotMonth  time.Time
		cashNeed  float64
		pfEnd     float64
		price     float64
		exemption float64
	)
	err = db.QueryRow(`
        SELECT run_id, period, month, cash_need, pf_end, share_price, exemption_end
        FROM periods LIMIT 1`).Scan(
		&runID, &period, &gotMonth, &cashNeed, &pfEnd, &price, &exemption,
	)
	assert.NoError(t, err)

	assert.Equal(t, rec.RunID, runID)
	assert.Equal(t, rec.Period, period)
	assert.True(t, gotMonth.Equal(month))
	assert.InDelta(t, rec.CashNeed, cashNeed, 1e-9)
	assert.InDelta(t, rec.PfEnd, pfEnd, 1e-9)
	assert.InDelta(t, rec.SharePrice, price, 1e-12)
	assert.InDelta(t, rec.ExemptionEnd, exemption, 1e-9)
}

func TestSQLiteRecordPeriodDuplicate(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := PeriodRecord{RunID: "R1", Period: 0, Month: time.Now().UTC()}
	require.NoError(t, j.RecordPeriod(rec))
	assert.Error(t, j.RecordPeriod(rec))
}

func TestSQLiteRecordRunLargeSeed(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := RunRecord{RunID: "R1", BatchID: "B1", Seed: 1<<63 + 5, RuinPeriod: -1, Survived: true}
	require.NoError(t, j.RecordRun(rec))

	got, err := j.GetRun("R1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func countRows(t *testing.T, j *SQLite, table string) int {
	t.Helper()
	var n int
	require.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func testBatch(id string) ([]PeriodRecord, []RunRecord, Batch) {
	month := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	var periods []PeriodRecord
	var runs []RunRecord
	for _, run := range []string{"R1", "R2"} {
		for p := 0; p < 3; p++ {
			periods = append(periods, PeriodRecord{RunID: run, Period: p, Month: month.AddDate(0, p, 0), PfEnd: 100})
		}
		runs = append(runs, RunRecord{RunID: run, BatchID: id, Seed: 1, Periods: 3, Survived: true, RuinPeriod: -1})
	}
	b := Batch{BatchID: id, Created: month, Plan: "p", Model: "gbm", Start: month, End: month.AddDate(0, 2, 0), Runs: 2, Survival: 1, EarliestRuin: -1}
	return periods, runs, b
}

func TestSQLiteWriteBatch(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	periods, runs, b := testBatch("B1")
	require.NoError(t, j.WriteBatch(periods, runs, b))

	assert.Equal(t, 6, countRows(t, j, "periods"))
	assert.Equal(t, 2, countRows(t, j, "runs"))

	got, err := j.GetBatch("B1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Runs)

	rs, err := j.ListRunsByBatch("B1")
	require.NoError(t, err)
	assert.Len(t, rs, 2)
}

func TestSQLiteWriteBatchRollsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		corrupt func(periods []PeriodRecord, runs []RunRecord, b *Batch) []PeriodRecord
	}{
		{"duplicate period", func(periods []PeriodRecord, _ []RunRecord, _ *Batch) []PeriodRecord {
			return append(periods, periods[0])
		}},
		{"duplicate run", func(periods []PeriodRecord, runs []RunRecord, _ *Batch) []PeriodRecord {
			runs[1].RunID = runs[0].RunID
			return periods
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, _ := newTestSQLite(t)
			t.Cleanup(func() { _ = j.Close() })

			periods, runs, b := testBatch("B1")
			periods = tt.corrupt(periods, runs, &b)
			assert.Error(t, j.WriteBatch(periods, runs, b))

			assert.Zero(t, countRows(t, j, "periods"))
			assert.Zero(t, countRows(t, j, "runs"))
			assert.Zero(t, countRows(t, j, "batches"))
		})
	}

	t.Run("existing batch", func(t *testing.T) {
		j, _ := newTestSQLite(t)
		t.Cleanup(func() { _ = j.Close() })

		_, _, first := testBatch("B1")
		require.NoError(t, j.RecordBatch(first))

		periods, runs, b := testBatch("B1")
		assert.Error(t, j.WriteBatch(periods, runs, b))
		assert.Zero(t, countRows(t, j, "periods"))
		assert.Zero(t, countRows(t, j, "runs"))
		assert.Equal(t, 1, countRows(t, j, "batches"))
	})
}
