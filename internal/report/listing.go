package report

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/born-ml/statedict/internal/checkpoint"
	"github.com/born-ml/statedict/internal/tensor"
)

// TensorRow describes one tensor of a checkpoint.
type TensorRow struct {
	Scope    string       `json:"scope,omitempty" yaml:"scope,omitempty"`
	Name     string       `json:"name" yaml:"name"`
	DType    string       `json:"dtype" yaml:"dtype"`
	Shape    tensor.Shape `json:"shape" yaml:"shape"`
	Elements int          `json:"elements" yaml:"elements"`
	Bytes    int          `json:"bytes" yaml:"bytes"`
	Preview  []float32    `json:"preview,omitempty" yaml:"preview,omitempty"`
}

// Listing is the content of a checkpoint as shown by inspect.
type Listing struct {
	Source        string         `json:"source" yaml:"source"`
	Format        string         `json:"format" yaml:"format"`
	Meta          map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Tensors       []TensorRow    `json:"tensors" yaml:"tensors"`
	TotalElements int64          `json:"total_elements" yaml:"total_elements"`
	TotalBytes    int64          `json:"total_bytes" yaml:"total_bytes"`
}

// NewListing lists the tensors of c. Top-level tensors come first, then
// each child container in name order with the child name as scope.
// preview > 0 decodes up to that many leading values of each tensor.
func NewListing(source string, format checkpoint.Format, c *checkpoint.Container, preview int) *Listing {
	l := &Listing{
		Source:  source,
		Format:  format.String(),
		Tensors: []TensorRow{},
	}
	if c == nil {
		return l
	}
	if len(c.Meta) > 0 {
		l.Meta = maps.Clone(c.Meta)
	}

	l.addTensors("", c.Tensors, preview)
	for _, name := range slices.Sorted(maps.Keys(c.Children)) {
		if child := c.Children[name]; child != nil {
			l.addTensors(name, child.Tensors, preview)
		}
	}
	return l
}

func (l *Listing) addTensors(scope string, sd *tensor.StateDict, preview int) {
	for name, raw := range sd.All() {
		row := TensorRow{
			Scope:    scope,
			Name:     name,
			DType:    raw.DType().String(),
			Shape:    raw.Shape().Clone(),
			Elements: raw.NumElements(),
			Bytes:    raw.ByteSize(),
		}
		if preview > 0 {
			row.Preview = raw.HeadFloat32s(preview)
		}
		l.Tensors = append(l.Tensors, row)
		l.TotalElements += int64(row.Elements)
		l.TotalBytes += int64(row.Bytes)
	}
}

// Tables implements Tabular.
func (l *Listing) Tables() []string {
	summary := newPlainTable(false, nil, lipgloss.Right, lipgloss.Left)
	summary.Row("checkpoint", l.Source)
	summary.Row("format", l.Format)
	summary.Row("# tensors", humanize.Comma(int64(len(l.Tensors))))
	summary.Row("# parameters", humanize.Comma(l.TotalElements))
	summary.Row("# bytes", humanize.Bytes(uint64(l.TotalBytes)))
	for _, key := range slices.Sorted(maps.Keys(l.Meta)) {
		summary.Row(key, fmt.Sprintf("%v", l.Meta[key]))
	}

	withPreview := slices.ContainsFunc(l.Tensors, func(r TensorRow) bool { return len(r.Preview) > 0 })
	headers := []string{"Scope", "Name", "DType", "Shape", "Size", "Bytes"}
	if withPreview {
		headers = append(headers, "Values")
	}
	tensors := newPlainTable(true, nil, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Left)
	tensors.Headers(headers...)
	for _, r := range l.Tensors {
		row := []string{
			r.Scope,
			r.Name,
			r.DType,
			r.Shape.String(),
			humanize.Comma(int64(r.Elements)),
			humanize.Bytes(uint64(r.Bytes)),
		}
		if withPreview {
			row = append(row, formatValues(r.Preview, r.Elements))
		}
		tensors.Row(row...)
	}

	return []string{summary.Render(), tensors.Render()}
}

func formatValues(values []float32, total int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	s := "[" + strings.Join(parts, " ")
	if total > len(values) {
		s += " ..."
	}
	return s + "]"
}
