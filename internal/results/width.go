package results

const (
	MinWidth     = 50
	DefaultWidth = 160
	// ExpandWidth is the fixed leading column holding the expand indicator.
	ExpandWidth = 32
	// UnitsPerCell converts terminal cells into width units.
	UnitsPerCell = 8
)

func (e *Engine) Width(col string) int {
	if w, ok := e.state.widths[col]; ok {
		return w
	}
	return DefaultWidth
}

// SetWidth stores w clamped to MinWidth and returns the stored value.
func (e *Engine) SetWidth(col string, w int) int {
	if w < MinWidth {
		w = MinWidth
	}
	e.state.widths[col] = w
	return w
}

// AdjustWidth grows or shrinks col by delta units.
func (e *Engine) AdjustWidth(col string, delta int) int {
	return e.SetWidth(col, e.Width(col)+delta)
}

// TotalWidth is the sum of column widths plus the expand column.
func (e *Engine) TotalWidth() int {
	total := ExpandWidth
	for _, c := range e.result.Columns {
		total += e.Width(c.Name)
	}
	return total
}

// Cells converts a width to terminal cells.
func Cells(units int) int {
	c := units / UnitsPerCell
	if c < 1 {
		return 1
	}
	return c
}

// ResizeGesture is one drag of a column border. It holds the pointer
// capture from BeginResize until End; at most one is live per engine.
type ResizeGesture struct {
	engine     *Engine
	column     string
	startX     int
	startWidth int
	done       bool
}

// BeginResize captures the pointer for col at horizontal position x. A
// gesture still live from an earlier press is released first.
func (e *Engine) BeginResize(col string, x int) *ResizeGesture {
	if e.gesture != nil {
		e.gesture.End()
	}
	g := &ResizeGesture{engine: e, column: col, startX: x, startWidth: e.Width(col)}
	e.gesture = g
	return g
}

// ActiveResize returns the live gesture, or nil.
func (e *Engine) ActiveResize() *ResizeGesture {
	return e.gesture
}

func (g *ResizeGesture) Column() string {
	return g.column
}

// Move applies the displacement since the gesture began.
func (g *ResizeGesture) Move(x int) int {
	if g.done {
		return g.engine.Width(g.column)
	}
	return g.engine.SetWidth(g.column, g.startWidth+(x-g.startX)*UnitsPerCell)
}

// End releases the pointer capture. Calling it twice is harmless.
func (g *ResizeGesture) End() {
	if g.done {
		return
	}
	g.done = true
	if g.engine.gesture == g {
		g.engine.gesture = nil
	}
}

func (g *ResizeGesture) Done() bool {
	return g.done
}
