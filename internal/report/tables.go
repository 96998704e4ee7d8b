package report

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F44")).
			PaddingLeft(1).PaddingRight(1)
)

// newPlainTable creates a bordered table. alignments apply per column; the
// last one repeats for the remaining columns. Rows listed in reds are
// highlighted.
func newPlainTable(withHeader bool, reds map[int]bool, alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			switch {
			case reds[row]:
				s = redRowStyle
			case row%2 == 0:
				s = evenRowStyle
			default:
				s = oddRowStyle
			}
			switch {
			case len(alignments) == 0:
				s = s.Align(lipgloss.Left)
			case col < len(alignments):
				s = s.Align(alignments[col])
			default:
				s = s.Align(alignments[len(alignments)-1])
			}
			return s
		})
}
