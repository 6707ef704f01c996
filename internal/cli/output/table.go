package output

import (
	"fmt"
	"io"
	"strings"
)

type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
}

func NewTable(out io.Writer, headers ...string) *Table {
	return &Table{out: out, headers: headers}
}

func (t *Table) Append(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *Table) Len() int { return len(t.rows) }

// Render pads every column to its widest cell.
func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i < len(widths) && i < len(cells)-1 {
				parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
			} else {
				parts[i] = cell
			}
		}
		fmt.Fprintln(t.out, strings.Join(parts, "  "))
	}

	line(t.headers)
	for _, row := range t.rows {
		line(row)
	}
}
