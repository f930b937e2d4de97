package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorder = lipgloss.NewStyle().Foreground(ColorDimGray)
	tableHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).PaddingRight(1)
	tableCell   = lipgloss.NewStyle().PaddingRight(1)
)

// Table collects rows for a bordered listing. Cells of the status column,
// when one is set, are colored by status word.
type Table struct {
	headers   []string
	rows      [][]string
	statusCol int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, statusCol: -1}
}

// Row appends a row. Missing trailing cells render empty.
func (t *Table) Row(cells ...string) *Table {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return t
}

// StatusColumn marks the column holding status words.
func (t *Table) StatusColumn(col int) *Table {
	t.statusCol = col
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) cellStyle(row, col int) lipgloss.Style {
	switch {
	case row == table.HeaderRow:
		return tableHeader
	case col == t.statusCol && row >= 0 && row < len(t.rows):
		return statusStyle(t.rows[row][col]).PaddingRight(1)
	case col == 0:
		return tableCell.Foreground(ColorCyan)
	default:
		return tableCell
	}
}

// String renders the table.
func (t *Table) String() string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorder).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(t.cellStyle).
		String()
}
