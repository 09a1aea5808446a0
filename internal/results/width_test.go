package results

import "testing"

func TestSetWidthClampsToMinimum(t *testing.T) {
	e := New()
	e.Load(scenario())

	if got := e.Width("Message"); got != DefaultWidth {
		t.Fatalf("default width = %d", got)
	}
	for _, w := range []int{49, 0, -1000} {
		if got := e.SetWidth("Message", w); got != MinWidth {
			t.Fatalf("SetWidth(%d) = %d, want %d", w, got, MinWidth)
		}
	}
	if got := e.AdjustWidth("Message", 40); got != 90 {
		t.Fatalf("AdjustWidth = %d, want 90", got)
	}
}

func TestTotalWidthIncludesExpandColumn(t *testing.T) {
	e := New()
	e.Load(scenario())
	e.SetWidth("Message", 200)
	want := ExpandWidth + 2*DefaultWidth + 200
	if got := e.TotalWidth(); got != want {
		t.Fatalf("TotalWidth = %d, want %d", got, want)
	}
}

func TestResizeGesture(t *testing.T) {
	e := New()
	e.Load(scenario())

	g := e.BeginResize("Message", 40)
	if e.ActiveResize() != g {
		t.Fatalf("gesture not active")
	}
	if got := g.Move(45); got != DefaultWidth+5*UnitsPerCell {
		t.Fatalf("Move right = %d", got)
	}
	// Displacement is measured from the press, not the previous move.
	if got := g.Move(38); got != DefaultWidth-2*UnitsPerCell {
		t.Fatalf("Move left = %d", got)
	}
	if got := g.Move(-10000); got != MinWidth {
		t.Fatalf("large negative drag = %d, want %d", got, MinWidth)
	}

	g.End()
	g.End()
	if e.ActiveResize() != nil || !g.Done() {
		t.Fatalf("gesture still active after End")
	}
	if got := g.Move(100); got != MinWidth {
		t.Fatalf("released gesture changed width to %d", got)
	}
}

func TestBeginResizeReleasesPrevious(t *testing.T) {
	e := New()
	e.Load(scenario())

	first := e.BeginResize("Message", 10)
	second := e.BeginResize("TenantId", 20)
	if !first.Done() || e.ActiveResize() != second {
		t.Fatalf("expected only the newest gesture to be live")
	}
	first.End()
	if e.ActiveResize() != second {
		t.Fatalf("ending a stale gesture released the live one")
	}
	second.Move(21)
	if got := e.Width("TenantId"); got != DefaultWidth+UnitsPerCell {
		t.Fatalf("TenantId width = %d", got)
	}
	if got := e.Width("Message"); got != DefaultWidth {
		t.Fatalf("Message width = %d", got)
	}
}

func TestLoadEndsGesture(t *testing.T) {
	e := New()
	e.Load(scenario())
	g := e.BeginResize("Message", 0)
	e.Load(scenario())
	if !g.Done() || e.ActiveResize() != nil {
		t.Fatalf("load should release the gesture")
	}
}

func TestCells(t *testing.T) {
	if got := Cells(DefaultWidth); got != 20 {
		t.Fatalf("Cells(default) = %d", got)
	}
	if got := Cells(MinWidth); got != 6 {
		t.Fatalf("Cells(min) = %d", got)
	}
	if got := Cells(3); got != 1 {
		t.Fatalf("Cells(3) = %d", got)
	}
}
