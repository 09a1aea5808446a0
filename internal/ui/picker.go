package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"logq/internal/workspace"
)

func (m Model) selectAllLabel() string {
	if len(m.selected) > 0 {
		return "Clear All"
	}
	return "Select All"
}

func (m *Model) openPicker() {
	m.picking = true
	if m.pickCursor >= len(m.available) {
		m.pickCursor = 0
	}
}

// closePicker persists the selection when it changed while the picker was
// open.
func (m *Model) closePicker() tea.Cmd {
	m.picking = false
	if sameWorkspaces(m.savedSelection, m.selected) {
		return nil
	}
	m.savedSelection = append([]workspace.Workspace(nil), m.selected...)
	return m.persistSelectionCmd(m.selected)
}

func (m *Model) updatePicker(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter", "ctrl+o":
		return m.closePicker()
	case "up", "k":
		if m.pickCursor > 0 {
			m.pickCursor--
		}
	case "down", "j":
		if m.pickCursor < len(m.available)-1 {
			m.pickCursor++
		}
	case " ", "x":
		if m.pickCursor < len(m.available) {
			m.selected = workspace.Toggle(m.selected, m.available[m.pickCursor])
		}
	case "a":
		m.selected = workspace.SelectAllOrClear(m.selected, m.available)
	case "ctrl+c":
		return tea.Quit
	}
	return nil
}

func (m Model) pickerView() string {
	width := m.viewport.Width
	var b strings.Builder
	b.WriteString(headerStyle.Render("Workspaces"))
	b.WriteString(dimStyle.Render("  space toggle · a " + strings.ToLower(m.selectAllLabel()) + " · enter done"))
	b.WriteString("\n")
	if m.discovering && len(m.available) == 0 {
		b.WriteString(m.spinner.View() + " discovering workspaces...")
		return b.String()
	}
	if len(m.available) == 0 {
		b.WriteString(dimStyle.Render("No workspaces available"))
		return b.String()
	}
	b.WriteString(dimStyle.Render("[" + m.selectAllLabel() + "]"))
	b.WriteString("\n")

	// keep the cursor in view
	rows := m.viewport.Height - 1
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.pickCursor >= rows {
		start = m.pickCursor - rows + 1
	}
	end := start + rows
	if end > len(m.available) {
		end = len(m.available)
	}
	for i := start; i < end; i++ {
		w := m.available[i]
		mark := "[ ]"
		if workspace.Contains(m.selected, w.CustomerID) {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s  %s", mark, w.Name, dimStyle.Render(w.CustomerID))
		line = ansi.Truncate(line, width-2, "…")
		if i == m.pickCursor {
			b.WriteString(cursorStyle.Render("> " + ansi.Strip(line)))
		} else {
			b.WriteString("  " + line)
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func sameWorkspaces(a, b []workspace.Workspace) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].CustomerID != b[i].CustomerID {
			return false
		}
	}
	return true
}
