package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunOrg(t *testing.T) {
	t.Parallel()

	run := RunRecord{
		RunID:      "01JBATCHRUN0000000000000001",
		BatchID:    "01JBATCH",
		Seed:       7,
		Periods:    360,
		Survived:   false,
		RuinPeriod: 212,
		FinalValue: -15000.256,
		MinValue:   -15000.256,
		TotalTaxes: 8123.4,
	}

	result := FormatRunOrg(run)

	// Check heading
	assert.Contains(t, result, "** Run: 01JBATCH (ruined in period 212)")

	// Check properties drawer
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":RUN_ID: 01JBATCHRUN0000000000000001")
	assert.Contains(t, result, ":SEED: 7")
	assert.Contains(t, result, ":PERIODS: 360")
	assert.Contains(t, result, ":SURVIVED: false")
	assert.Contains(t, result, ":FINAL_VALUE: -15000.26")
	assert.Contains(t, result, ":TOTAL_TAXES: 8123.40")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Review")
}

func TestFormatRunOrgSurvived(t *testing.T) {
	t.Parallel()

	result := FormatRunOrg(RunRecord{RunID: "short", Survived: true, RuinPeriod: -1})
	assert.Contains(t, result, "** Run: short (survived)")
}

func TestFormatRunsOrg(t *testing.T) {
	t.Parallel()

	runs := []RunRecord{
		{RunID: "run-001", Survived: true, RuinPeriod: -1},
		{RunID: "run-002", Survived: false, RuinPeriod: 3},
	}

	result := FormatRunsOrg(runs)
	assert.Contains(t, result, "run-001")
	assert.Contains(t, result, "run-002")

	parts := strings.Split(result, "\n\n\n")
	assert.Len(t, parts, 2, "Expected two runs separated by blank lines")

	assert.Empty(t, FormatRunsOrg(nil))
}

func TestBatchRenderOrg(t *testing.T) {
	t.Parallel()

	b := Batch{
		BatchID:      "B1",
		Created:      time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC),
		Plan:         "retire-2040",
		Model:        "student-t",
		Start:        time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2070, 12, 31, 0, 0, 0, 0, time.UTC),
		Runs:         1000,
		Seed:         42,
		InitialValue: 250000,
		Survival:     0.873,
		Ruined:       127,
		EarliestRuin: -1,
		MeanFinal:    512345.678,
		Notes:        []string{"heavy tails hurt early"},
	}

	var sb strings.Builder
	require.NoError(t, b.RenderOrg(&sb))
	out := sb.String()

	assert.Contains(t, out, "* SIMULATION: retire-2040 student-t")
	assert.Contains(t, out, ":START_DATE:  2030-01-01")
	assert.Contains(t, out, ":SURVIVAL:    87.30")
	assert.Contains(t, out, ":FIRST_RUIN:  (none)")
	assert.Contains(t, out, ":CREATED:     [2026-10-15 Thu 08:30]")
	assert.Contains(t, out, "| Mean      | 512345.68 |")
	assert.Contains(t, out, "- heavy tails hurt early")
	assert.Contains(t, out, "** Observations")
}

func TestBatchWriteOrg(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch.org")
	b := Batch{BatchID: "B1", OrgPath: path, EarliestRuin: 12}
	require.NoError(t, b.WriteOrg())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":FIRST_RUIN:  12")
	assert.Contains(t, string(data), "(plan?)")
}
