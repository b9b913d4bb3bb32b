package table

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/rdebug/tui/theme"
)

// SelectionMarker is drawn to the left of the selected row.
const SelectionMarker = "▶"

// NewStyledTable creates a new lipgloss table with rdebug's default styling
func NewStyledTable(t *theme.Theme) *ltable.Table {
	if t == nil {
		t = theme.DefaultTheme
	}
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.TableHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// SimpleTable creates a basic table with headers and rows
func SimpleTable(headers []string, rows [][]string) string {
	table := NewStyledTable(nil).Headers(headers...)
	for _, r := range rows {
		table = table.Row(r...)
	}
	return table.String()
}

// SelectableTable renders rows with the selected one highlighted and
// marked on the left, outside the border.
func SelectableTable(t *theme.Theme, headers []string, rows [][]string, selected int) string {
	if t == nil {
		t = theme.DefaultTheme
	}

	table := ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.TableHeader.Padding(0, 1)
			}
			// Data rows are numbered from 0 once headers are set.
			if row == selected {
				return t.SelectedRow.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range rows {
		table = table.Row(r...)
	}

	// Line 0 is the top border; with headers, a header row and its
	// separator come before the first data row.
	selectedLine := 1 + selected
	if len(headers) > 0 {
		selectedLine = 3 + selected
	}

	lines := strings.Split(table.String(), "\n")
	marker := t.Cursor.Render(SelectionMarker)
	for i, line := range lines {
		if i == selectedLine {
			lines[i] = marker + " " + line
		} else {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}
