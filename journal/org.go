package journal

import (
	"fmt"
	"strings"
)

// FormatRunOrg renders a RunRecord as an Org-mode block suitable for pasting
// into a journal. Facts go into the PROPERTIES drawer; a Review heading is
// left for notes.
func FormatRunOrg(r RunRecord) string {
	outcome := "survived"
	if !r.Survived {
		outcome = fmt.Sprintf("ruined in period %d", r.RuinPeriod)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "** Run: %s (%s)\n", shortID(r.RunID), outcome)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", r.RunID)
	fmt.Fprintf(&b, ":BATCH_ID: %s\n", r.BatchID)
	fmt.Fprintf(&b, ":SEED: %d\n", r.Seed)
	fmt.Fprintf(&b, ":PERIODS: %d\n", r.Periods)
	fmt.Fprintf(&b, ":SURVIVED: %t\n", r.Survived)
	fmt.Fprintf(&b, ":RUIN_PERIOD: %d\n", r.RuinPeriod)
	fmt.Fprintf(&b, ":FINAL_VALUE: %.2f\n", r.FinalValue)
	fmt.Fprintf(&b, ":MIN_VALUE: %.2f\n", r.MinValue)
	fmt.Fprintf(&b, ":TOTAL_TAXES: %.2f\n", r.TotalTaxes)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatRunsOrg renders multiple runs separated by blank lines.
func FormatRunsOrg(runs []RunRecord) string {
	var b strings.Builder
	for i, r := range runs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatRunOrg(r))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
