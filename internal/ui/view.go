package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"logq/internal/query"
	"logq/internal/workspace"
)

const (
	editorLines = 6
	// editor pane: textarea, toolbar line and the border
	editorOuter = editorLines + 1 + 2
	minSidebar  = 28
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	searchMatchStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("16")).
				Background(lipgloss.Color("220"))
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))
	selectedColumnStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("16")).
				Background(lipgloss.Color("39"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	groupStyle     = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))
	detailKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	cursorStyle    = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("238"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	toolbarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
)

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.NormalBorder()
	if active {
		return lipgloss.NewStyle().
			Border(border, true).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(border, true).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
}

// resize recomputes widget sizes and the screen origin of the results table,
// which mouse handling depends on.
func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()
	bodyHeight := m.bodyHeight()

	m.history.SetSize(left-4, bodyHeight-2)
	m.editor.SetWidth(right - 4)
	m.editor.SetHeight(editorLines)

	resultsOuter := bodyHeight - editorOuter
	vpHeight := resultsOuter - 2 - 1
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = right - 4
	m.viewport.Height = vpHeight
	m.find.Width = right - 10

	// status line, editor pane, then the results border
	m.resultsX = left + 2
	m.resultsY = 1 + editorOuter + 1
	m.refreshResults()
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < editorOuter+6 {
		h = editorOuter + 6
	}
	return h
}

func (m Model) paneWidths() (int, int) {
	left := m.width / 4
	if left < minSidebar {
		left = minSidebar
	}
	if left > m.width-40 {
		left = m.width - 40
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left
	if right < 30 {
		right = 30
	}
	return left, right
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	left, right := m.paneWidths()
	bodyHeight := m.bodyHeight()

	sidebar := panelStyle(m.focus == focusHistory).
		Width(left - 2).
		Height(bodyHeight - 2).
		Render(m.history.View())

	editorPane := panelStyle(m.focus == focusEditor).
		Width(right - 2).
		Height(editorOuter - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, m.editor.View(), m.toolbar(right-4)))

	resultsPane := panelStyle(m.focus == focusResults || m.picking).
		Width(right - 2).
		Height(bodyHeight - editorOuter - 2).
		Render(m.resultsView())

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebar,
		lipgloss.JoinVertical(lipgloss.Left, editorPane, resultsPane),
	)

	helpView := m.help.View(m.keys)
	if m.findMode {
		helpView = m.find.View() + "  " + helpView
	} else if m.findTerm != "" {
		helpView = "find: " + m.findTerm + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		helpView,
	)
}

func (m Model) toolbar(width int) string {
	names := workspace.Names(m.selected)
	ws := "none"
	if len(names) > 0 {
		ws = strings.Join(names, ", ")
	}
	line := fmt.Sprintf("Workspaces: %s · Time range: %s", ws, query.TimespanLabel(m.timespan))
	return toolbarStyle.Render(ansi.Truncate(line, width, "…"))
}

func (m Model) resultsView() string {
	switch {
	case m.picking:
		return m.pickerView()
	case m.running:
		return m.spinner.View() + " Running query..."
	case m.failure != nil:
		if m.failureRendered == "" {
			return failureMarkdown(m.failure)
		}
		return m.viewport.View()
	case m.engine.Empty() && m.lastEntry.Query == "":
		return dimStyle.Render("Run a query to get started")
	case len(m.engine.Columns()) == 0:
		return dimStyle.Render("No results")
	}
	header := renderHeader(m.engine, m.layout, m.selCol)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View())
}

func (m Model) statusLine() string {
	var parts []string
	if m.discovering {
		parts = append(parts, m.spinner.View()+" discovering workspaces...")
	}
	if m.running {
		parts = append(parts, m.spinner.View()+" running...")
	}
	parts = append(parts, fmt.Sprintf("workspaces=%d/%d", len(m.selected), len(m.available)))
	if res := m.engine.Result(); res != nil && len(res.Columns) > 0 {
		rows := fmt.Sprintf("rows=%d", len(res.Rows))
		if res.Truncated() {
			rows += "+"
		}
		parts = append(parts, rows)
		state := m.engine.State()
		if state.SortColumn != "" {
			parts = append(parts, fmt.Sprintf("sort=%s %s", state.SortColumn, state.SortOrder))
		}
		if m.engine.Grouping() {
			parts = append(parts, "[by tenant]")
		}
	}
	if m.findTerm != "" {
		if m.matches.Count > 0 {
			cur := m.matchIndex + 1
			if cur < 1 {
				cur = 1
			}
			parts = append(parts, fmt.Sprintf("[match %d/%d]", cur, len(m.matches.Lines)))
		} else {
			parts = append(parts, "[match 0]")
		}
	}
	if s := strings.TrimSpace(m.status); s != "" {
		parts = append(parts, shorten(s, 80))
	}
	line := strings.Join(parts, "  ")
	if m.width > 2 {
		line = ansi.Truncate(line, m.width-2, "…")
	}
	return statusStyle.Render(line)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
