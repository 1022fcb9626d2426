package journal

import (
	"bytes"
	"io"
	"os"
	"text/template"
	"time"
)

// Batch mirrors the batches table: one Monte Carlo batch of runs over the
// same plan.
type Batch struct {
	BatchID string
	Created time.Time
	Plan    string // plan file or label
	Model   string // return model

	Start time.Time
	End   time.Time

	Runs         int
	Seed         uint64
	InitialValue float64

	// Results
	Survival     float64
	Ruined       int
	EarliestRuin int // -1 when no run was ruined

	MeanFinal float64
	P10Final  float64
	P50Final  float64
	P90Final  float64

	OrgPath string

	// Notes are observations rendered into the org file only.
	Notes []string
}

var batchOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var batchOrg = template.Must(template.New("batch").Funcs(batchOrgFuncs).Parse(BatchOrgTemplate))

// RenderOrg writes the batch as an Org-mode entry.
func (b *Batch) RenderOrg(w io.Writer) error {
	return batchOrg.Execute(w, b)
}

// WriteOrg renders the batch into OrgPath.
func (b *Batch) WriteOrg() error {
	buf := new(bytes.Buffer)
	if err := b.RenderOrg(buf); err != nil {
		return err
	}
	return os.WriteFile(b.OrgPath, buf.Bytes(), 0644)
}

const BatchOrgTemplate = `
* SIMULATION: {{if .Plan}}{{.Plan}}{{else}}(plan?){{end}} {{.Model}}
:PROPERTIES:
:BATCH_ID:    {{if .BatchID}}{{.BatchID}}{{else}}(batch-id?){{end}}
:MODEL:       {{if .Model}}{{.Model}}{{else}}(model?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:RUNS:        {{.Runs}}
:SEED:        {{.Seed}}
:INITIAL:     {{printf "%.2f" .InitialValue}}
:SURVIVAL:    {{printf "%.2f" (mul100 .Survival)}}
:RUINED:      {{.Ruined}}
:FIRST_RUIN:  {{if ge .EarliestRuin 0}}{{.EarliestRuin}}{{else}}(none){{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Final Portfolio Value
| Statistic | Value |
|-----------+-------|
| Mean      | {{printf "%.2f" .MeanFinal}} |
| P10       | {{printf "%.2f" .P10Final}} |
| Median    | {{printf "%.2f" .P50Final}} |
| P90       | {{printf "%.2f" .P90Final}} |

** Outcome
- Survival probability: *{{printf "%.2f" (mul100 .Survival)}}%*
- Ruined runs:          *{{.Ruined}} of {{.Runs}}*

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
