package report

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/born-ml/statedict/internal/statedict"
)

// Row statuses in the diff detail table.
const (
	StatusMissing    = "missing"
	StatusSize       = "size mismatch"
	StatusUnexpected = "unexpected"
	StatusExcluded   = "excluded"
)

// Diff is the outcome of reconciling one checkpoint against a reference.
type Diff struct {
	Reference  string                `json:"reference" yaml:"reference"`
	Checkpoint string                `json:"checkpoint" yaml:"checkpoint"`
	Output     string                `json:"output,omitempty" yaml:"output,omitempty"`
	Strict     bool                  `json:"strict" yaml:"strict"`
	Report     *statedict.DiffReport `json:"report" yaml:"report"`
}

// Tables implements Tabular.
func (d *Diff) Tables() []string {
	r := d.Report
	if r == nil {
		r = &statedict.DiffReport{}
	}

	summary := newPlainTable(false, nil, lipgloss.Right, lipgloss.Left)
	summary.Row("reference", d.Reference)
	summary.Row("checkpoint", d.Checkpoint)
	if d.Output != "" {
		summary.Row("output", d.Output)
	}
	summary.Row("match", humanize.Comma(int64(r.Match)))
	summary.Row("name_not_same", humanize.Comma(int64(len(r.NameNotSame))))
	summary.Row("size_not_same", humanize.Comma(int64(len(r.SizeNotSame))))
	summary.Row("both_not_same", humanize.Comma(int64(len(r.BothNotSame))))
	summary.Row("excluded", humanize.Comma(int64(len(r.Excluded))))
	summary.Row("unexpected", humanize.Comma(int64(len(r.Unexpected))))
	tables := []string{summary.Render()}

	if len(r.BothNotSame)+len(r.Unexpected)+len(r.Excluded) == 0 {
		return tables
	}

	reds := make(map[int]bool)
	var rows [][]string
	for _, name := range r.BothNotSame {
		if pair, ok := r.SizeNotSame[name]; ok {
			rows = append(rows, []string{name, StatusSize, pair.Expected.String(), pair.Actual.String()})
		} else {
			rows = append(rows, []string{name, StatusMissing, "", ""})
		}
		reds[len(rows)-1] = true
	}
	for _, name := range r.Unexpected {
		rows = append(rows, []string{name, StatusUnexpected, "", ""})
	}
	for _, name := range r.Excluded {
		rows = append(rows, []string{name, StatusExcluded, "", ""})
	}

	details := newPlainTable(true, reds, lipgloss.Left)
	details.Headers("Name", "Status", "Expected", "Actual")
	details.Rows(rows...)
	return append(tables, details.Render())
}
