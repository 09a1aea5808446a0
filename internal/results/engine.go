// Package results owns a loaded result set and the view state derived from
// it: tenant grouping, group collapse, row expansion, per-group sorting and
// column widths. Nothing here re-fetches data.
package results

import (
	"slices"

	"logq/internal/query"
)

const (
	// GroupColumn is the column whose values partition rows into groups.
	GroupColumn = "TenantId"
	// TimeColumn is the preferred default sort column.
	TimeColumn = "TimeGenerated"
)

// Order is a sort direction.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

type rowKey struct {
	group string
	row   int
}

// ViewState is everything the user changed about how the result looks.
type ViewState struct {
	GroupByTenant bool
	SortColumn    string
	SortOrder     Order

	collapsed map[string]bool
	expanded  map[rowKey]bool
	widths    map[string]int
}

// DisplayRow is a row as rendered. Index is the row's position in the loaded
// result and stays stable across sorts.
type DisplayRow struct {
	Index    int
	Cells    query.Row
	Expanded bool
}

// Group is a run of rows sharing a TenantId, or every row when ungrouped.
type Group struct {
	Key       string
	Grouped   bool
	Collapsed bool
	Rows      []DisplayRow
}

// Field is one line of an expanded row.
type Field struct {
	Name  string
	Value string
}

// Engine holds one loaded result and its view state.
type Engine struct {
	result  *query.Result
	state   ViewState
	gesture *ResizeGesture
}

// New returns an engine with an empty result.
func New() *Engine {
	e := &Engine{result: &query.Result{}}
	e.resetView()
	return e
}

// Load replaces the result wholesale and resets the view: every execution
// produces new columns, and old indices and widths would describe other rows.
// Grouping preference survives.
func (e *Engine) Load(res *query.Result) {
	if res == nil {
		res = &query.Result{}
	}
	e.result = res
	if e.gesture != nil {
		e.gesture.End()
	}
	e.resetView()
}

func (e *Engine) resetView() {
	e.state.collapsed = map[string]bool{}
	e.state.expanded = map[rowKey]bool{}
	e.state.widths = map[string]int{}
	e.state.SortColumn = defaultSortColumn(e.result.Columns)
	e.state.SortOrder = Descending
}

// defaultSortColumn picks TimeGenerated, else the first datetime column in
// declaration order, else nothing (server order).
func defaultSortColumn(cols []query.Column) string {
	for _, c := range cols {
		if c.Name == TimeColumn {
			return c.Name
		}
	}
	for _, c := range cols {
		if c.Type == "datetime" {
			return c.Name
		}
	}
	return ""
}

func (e *Engine) Result() *query.Result {
	return e.result
}

func (e *Engine) Columns() []query.Column {
	return e.result.Columns
}

func (e *Engine) Empty() bool {
	return len(e.result.Columns) == 0
}

// State returns a snapshot of the public view state.
func (e *Engine) State() ViewState {
	return e.state
}

// CanGroup reports whether the result carries the grouping column.
func (e *Engine) CanGroup() bool {
	return e.result.ColumnIndex(GroupColumn) >= 0
}

func (e *Engine) Grouping() bool {
	return e.state.GroupByTenant && e.CanGroup()
}

func (e *Engine) SetGroupByTenant(on bool) {
	e.state.GroupByTenant = on
}

func (e *Engine) ToggleGrouping() bool {
	e.state.GroupByTenant = !e.state.GroupByTenant
	return e.state.GroupByTenant
}

func (e *Engine) ToggleGroup(key string) bool {
	e.state.collapsed[key] = !e.state.collapsed[key]
	return e.state.collapsed[key]
}

func (e *Engine) IsCollapsed(key string) bool {
	return e.state.collapsed[key]
}

func (e *Engine) ToggleRow(group string, row int) bool {
	k := rowKey{group: group, row: row}
	e.state.expanded[k] = !e.state.expanded[k]
	return e.state.expanded[k]
}

func (e *Engine) IsExpanded(group string, row int) bool {
	return e.state.expanded[rowKey{group: group, row: row}]
}

// SetSort flips the direction when col is already the sort column and sorts
// ascending by col otherwise. Unknown columns are ignored.
func (e *Engine) SetSort(col string) bool {
	if e.result.ColumnIndex(col) < 0 {
		return false
	}
	if e.state.SortColumn == col {
		if e.state.SortOrder == Ascending {
			e.state.SortOrder = Descending
		} else {
			e.state.SortOrder = Ascending
		}
		return true
	}
	e.state.SortColumn = col
	e.state.SortOrder = Ascending
	return true
}

// Groups derives what to render: the partition, each group sorted on its own.
func (e *Engine) Groups() []Group {
	rows := e.result.Rows
	groupCol := -1
	if e.Grouping() {
		groupCol = e.result.ColumnIndex(GroupColumn)
	}
	sortCol := e.result.ColumnIndex(e.state.SortColumn)

	parts := Partition(rows, groupCol)
	out := make([]Group, 0, len(parts))
	for _, p := range parts {
		idx := sortIndexes(rows, p.Rows, sortCol, e.state.SortOrder)
		g := Group{
			Key:       p.Key,
			Grouped:   groupCol >= 0,
			Collapsed: e.state.collapsed[p.Key],
			Rows:      make([]DisplayRow, 0, len(idx)),
		}
		for _, i := range idx {
			g.Rows = append(g.Rows, DisplayRow{
				Index:    i,
				Cells:    rows[i],
				Expanded: e.state.expanded[rowKey{group: p.Key, row: i}],
			})
		}
		out = append(out, g)
	}
	return out
}

// Detail is the key/value breakdown of an expanded row, in column order.
func (e *Engine) Detail(row int) []Field {
	if row < 0 || row >= len(e.result.Rows) {
		return nil
	}
	cells := e.result.Rows[row]
	out := make([]Field, 0, len(e.result.Columns))
	for i, c := range e.result.Columns {
		var v any
		if i < len(cells) {
			v = cells[i]
		}
		out = append(out, Field{Name: c.Name, Value: CellString(v)})
	}
	return out
}

// Partitioned rows, by index into the result.
type Part struct {
	Key  string
	Rows []int
}

// Partition splits rows by the text of column col in first-seen order. A
// negative col yields one ungrouped part keyed "".
func Partition(rows []query.Row, col int) []Part {
	if col < 0 {
		all := make([]int, len(rows))
		for i := range rows {
			all[i] = i
		}
		return []Part{{Key: "", Rows: all}}
	}
	var parts []Part
	pos := map[string]int{}
	for i, r := range rows {
		var v any
		if col < len(r) {
			v = r[col]
		}
		key := CellString(v)
		at, ok := pos[key]
		if !ok {
			at = len(parts)
			pos[key] = at
			parts = append(parts, Part{Key: key})
		}
		parts[at].Rows = append(parts[at].Rows, i)
	}
	return parts
}

// sortIndexes returns a stably sorted copy of idx. It always starts from the
// partition order, so repeated sorts agree.
func sortIndexes(rows []query.Row, idx []int, col int, order Order) []int {
	out := slices.Clone(idx)
	if col < 0 {
		return out
	}
	slices.SortStableFunc(out, func(a, b int) int {
		c := compareCells(rows[a][col], rows[b][col])
		if order == Descending {
			return -c
		}
		return c
	})
	return out
}
