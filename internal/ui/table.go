package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"logq/internal/results"
)

type lineKind int

const (
	lineGroup lineKind = iota
	lineRow
	lineDetail
)

// tableLine identifies what a body line of the results table shows.
type tableLine struct {
	kind  lineKind
	group string
	row   int
}

func (l tableLine) selectable() bool {
	return l.kind != lineDetail
}

// tableLayout is the horizontal geometry of the visible columns, in cells.
type tableLayout struct {
	cols   []int
	widths []int
	// borders[i] is the x offset of the separator right of cols[i].
	borders []int
}

var expandCells = results.Cells(results.ExpandWidth)

func layoutTable(e *results.Engine, firstCol, width int) tableLayout {
	var l tableLayout
	x := expandCells
	cols := e.Columns()
	for i := firstCol; i < len(cols); i++ {
		w := results.Cells(e.Width(cols[i].Name))
		if len(l.cols) > 0 && x+1+w > width {
			break
		}
		l.cols = append(l.cols, i)
		l.widths = append(l.widths, w)
		x += 1 + w
		l.borders = append(l.borders, x)
	}
	return l
}

// borderAt returns the visible column whose right border is within one cell
// of x.
func (l tableLayout) borderAt(x int) (int, bool) {
	for i, b := range l.borders {
		if x >= b-1 && x <= b+1 {
			return l.cols[i], true
		}
	}
	return 0, false
}

// columnAt returns the visible column under x.
func (l tableLayout) columnAt(x int) (int, bool) {
	start := expandCells
	for i, b := range l.borders {
		if x > start && x < b {
			return l.cols[i], true
		}
		start = b
	}
	return 0, false
}

func fit(s string, w int) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
	s = ansi.Truncate(s, w, "…")
	if pad := w - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func renderHeader(e *results.Engine, l tableLayout, selCol int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", expandCells))
	state := e.State()
	cols := e.Columns()
	for i, c := range l.cols {
		name := cols[c].Name
		if name == state.SortColumn {
			if state.SortOrder == results.Ascending {
				name += " ▲"
			} else {
				name += " ▼"
			}
		}
		cell := fit(name, l.widths[i])
		if c == selCol {
			cell = selectedColumnStyle.Render(cell)
		} else {
			cell = headerStyle.Render(cell)
		}
		b.WriteString(separatorStyle.Render("│"))
		b.WriteString(cell)
	}
	b.WriteString(separatorStyle.Render("│"))
	return b.String()
}

// renderBody draws every group, row and expanded detail, one entry in meta
// per returned line.
func renderBody(e *results.Engine, l tableLayout, width int) ([]string, []tableLine) {
	var (
		lines []string
		meta  []tableLine
	)
	for _, g := range e.Groups() {
		if g.Grouped {
			marker := "▾"
			if g.Collapsed {
				marker = "▸"
			}
			label := fmt.Sprintf("%s Tenant: %s · %d rows", marker, g.Key, len(g.Rows))
			lines = append(lines, groupStyle.Render(ansi.Truncate(label, width, "…")))
			meta = append(meta, tableLine{kind: lineGroup, group: g.Key})
			if g.Collapsed {
				continue
			}
		}
		for _, r := range g.Rows {
			lines = append(lines, renderRow(r, l))
			meta = append(meta, tableLine{kind: lineRow, group: g.Key, row: r.Index})
			if !r.Expanded {
				continue
			}
			for _, f := range e.Detail(r.Index) {
				for i, part := range strings.Split(f.Value, "\n") {
					prefix := strings.Repeat(" ", expandCells+2)
					if i == 0 {
						part = detailKeyStyle.Render(f.Name+":") + " " + part
					} else {
						prefix += "  "
					}
					lines = append(lines, ansi.Truncate(prefix+part, width, "…"))
					meta = append(meta, tableLine{kind: lineDetail, group: g.Key, row: r.Index})
				}
			}
		}
	}
	return lines, meta
}

func renderRow(r results.DisplayRow, l tableLayout) string {
	var b strings.Builder
	marker := "▸"
	if r.Expanded {
		marker = "▾"
	}
	b.WriteString(fit(" "+marker, expandCells))
	for i, c := range l.cols {
		var v any
		if c < len(r.Cells) {
			v = r.Cells[c]
		}
		b.WriteString(separatorStyle.Render("│"))
		b.WriteString(fit(results.CellString(v), l.widths[i]))
	}
	b.WriteString(separatorStyle.Render("│"))
	return b.String()
}
