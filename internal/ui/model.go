package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"logq/internal/auth"
	"logq/internal/clipboard"
	"logq/internal/config"
	"logq/internal/export"
	"logq/internal/highlight"
	"logq/internal/history"
	"logq/internal/logging"
	"logq/internal/query"
	"logq/internal/results"
	"logq/internal/workspace"
)

const (
	discoverTimeout = time.Minute
	widthStep       = 5 * results.UnitsPerCell
)

// Runner executes a query. *query.Client satisfies it.
type Runner interface {
	Execute(ctx context.Context, text string, workspaces []workspace.Workspace, timespan string) (*query.Result, error)
}

// Store persists what the shell changes. *store.Store satisfies it.
type Store interface {
	SaveHistory(ctx context.Context, e history.Entry, limit int) error
	SaveSelectedWorkspaces(ctx context.Context, ws []workspace.Workspace) error
}

type Options struct {
	Config   config.AppConfig
	Runner   Runner
	Source   workspace.Source
	Store    Store
	Exporter *export.Exporter
	Login    LoginFunc
	Logger   *slog.Logger
	// History seeds the sidebar, most recent first.
	History []history.Entry
	// Selection is the persisted workspace selection, reconciled once
	// discovery completes.
	Selection []workspace.Workspace
}

type focusPane int

const (
	focusEditor focusPane = iota
	focusResults
	focusHistory
)

type Model struct {
	cfg      config.AppConfig
	runner   Runner
	source   workspace.Source
	store    Store
	exporter *export.Exporter
	login    LoginFunc
	logger   *slog.Logger

	history  list.Model
	editor   textarea.Model
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	find     textinput.Model
	keys     keyMap

	width    int
	height   int
	focus    focusPane
	resultsX int
	resultsY int

	ledger         *history.Ledger
	engine         *results.Engine
	available      []workspace.Workspace
	selected       []workspace.Workspace
	savedSelection []workspace.Workspace
	timespan       string

	discovering     bool
	running         bool
	loggingIn       bool
	queryGen        int
	renderNonce     int
	lastEntry       history.Entry
	failure         *query.Failure
	failureRendered string

	picking    bool
	pickCursor int

	layout   tableLayout
	lines    []tableLine
	cursor   int
	selCol   int
	firstCol int

	findMode   bool
	findTerm   string
	matches    highlight.Result
	matchIndex int

	status string
	err    error
}

type workspacesMsg struct {
	available []workspace.Workspace
	// fallback is set when discovery failed and available is the configured list.
	fallback bool
	err      error
}
type queryMsg struct {
	gen    int
	entry  history.Entry
	result *query.Result
	err    error
}
type persistMsg struct {
	what string
	err  error
}
type exportMsg struct {
	path string
	err  error
}
type copyMsg struct {
	err error
}

type historyItem struct {
	e history.Entry
}

func (i historyItem) Title() string {
	first, _, _ := strings.Cut(strings.TrimSpace(i.e.Query), "\n")
	return i.e.Clock() + "  " + shorten(first, 60)
}

func (i historyItem) Description() string {
	n := len(i.e.Workspaces)
	desc := fmt.Sprintf("%d workspaces", n)
	if n == 1 {
		desc = "1 workspace"
	}
	if i.e.Timespan != "" {
		desc += " · " + query.TimespanLabel(i.e.Timespan)
	}
	return desc
}

func (i historyItem) FilterValue() string {
	return strings.ToLower(i.e.Query)
}

func NewModel(opts Options) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 30, 20)
	l.Title = "Past queries"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	ta := textarea.New()
	ta.Placeholder = "Enter a KQL query, e.g. Heartbeat | take 10"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(editorLines)
	ta.Focus()

	vp := viewport.New(60, 20)

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.Placeholder = "Find in results..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	m := Model{
		cfg:      opts.Config,
		runner:   opts.Runner,
		source:   opts.Source,
		store:    opts.Store,
		exporter: opts.Exporter,
		login:    opts.Login,
		logger:   logger,

		history:  l,
		editor:   ta,
		viewport: vp,
		help:     h,
		spinner:  sp,
		find:     ti,
		keys:     defaultKeys(),

		focus:          focusEditor,
		ledger:         history.NewLedger(opts.Config.HistoryLimit, opts.History...),
		engine:         results.New(),
		savedSelection: append([]workspace.Workspace(nil), opts.Selection...),
		selected:       append([]workspace.Workspace(nil), opts.Selection...),
		timespan:       opts.Config.Timespan,
		discovering:    true,
		matchIndex:     -1,
	}
	m.refreshHistory()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.discoverCmd(), textarea.Blink)
}

func (m Model) discoverCmd() tea.Cmd {
	src, static, logger := m.source, m.cfg.Workspaces, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), discoverTimeout)
		defer cancel()
		ws, fallback, err := workspace.Available(ctx, src, static, logger)
		return workspacesMsg{available: ws, fallback: fallback, err: err}
	}
}

// queryCmd executes entry. The completion carries gen so a superseded run can
// be recognized and dropped.
func (m Model) queryCmd(entry history.Entry, gen int) tea.Cmd {
	runner, timeout := m.runner, m.cfg.Timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := runner.Execute(ctx, entry.Query, entry.Workspaces, entry.Timespan)
		return queryMsg{gen: gen, entry: entry, result: res, err: err}
	}
}

func (m Model) persistCmd(entry history.Entry) tea.Cmd {
	if m.store == nil {
		return nil
	}
	st, limit := m.store, m.cfg.HistoryLimit
	return func() tea.Msg {
		return persistMsg{what: "history", err: st.SaveHistory(context.Background(), entry, limit)}
	}
}

func (m Model) persistSelectionCmd(ws []workspace.Workspace) tea.Cmd {
	if m.store == nil {
		return nil
	}
	st := m.store
	ws = append([]workspace.Workspace(nil), ws...)
	return func() tea.Msg {
		return persistMsg{what: "workspace selection", err: st.SaveSelectedWorkspaces(context.Background(), ws)}
	}
}

func (m Model) exportCmd(format export.Format) tea.Cmd {
	if m.exporter == nil {
		return func() tea.Msg { return exportMsg{err: errors.New("export is not configured")} }
	}
	exp := m.exporter
	// Groups are computed here; the engine is owned by Update.
	view := export.View{Columns: m.engine.Columns(), Groups: m.engine.Groups()}
	meta := export.Meta{
		Query:      m.lastEntry.Query,
		Workspaces: workspace.Names(m.lastEntry.Workspaces),
		Timespan:   m.lastEntry.Timespan,
	}
	return func() tea.Msg {
		path, err := exp.Export(view, meta, format)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return copyMsg{err: clipboard.Copy(ctx, text)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		if m.failure != nil {
			cmds = append(cmds, m.renderFailure())
		}

	case workspacesMsg:
		m.discovering = false
		m.available = msg.available
		if msg.fallback && len(m.savedSelection) > 0 {
			// Not a fresh list: keep the saved choice rather than pruning it.
			m.selected = append([]workspace.Workspace(nil), m.savedSelection...)
		} else {
			m.selected = workspace.Reconcile(m.savedSelection, m.available)
		}
		if m.pickCursor >= len(m.available) {
			m.pickCursor = 0
		}
		if msg.err != nil {
			if auth.IsRedirect(msg.err) {
				cmds = append(cmds, m.startLogin())
				break
			}
			m.err = msg.err
			m.status = "Workspace discovery failed: " + msg.err.Error()
			break
		}
		if msg.fallback {
			m.status = fmt.Sprintf("Workspace discovery failed, %d configured workspaces", len(m.available))
			break
		}
		if !sameWorkspaces(m.savedSelection, m.selected) {
			m.savedSelection = append([]workspace.Workspace(nil), m.selected...)
			cmds = append(cmds, m.persistSelectionCmd(m.selected))
		}
		m.status = fmt.Sprintf("%d workspaces available", len(m.available))

	case queryMsg:
		if msg.gen != m.queryGen {
			m.logger.Debug("discarding stale query completion", "gen", msg.gen, "latest", m.queryGen)
			break
		}
		m.running = false
		cmds = append(cmds, m.applyQuery(msg))

	case failureRenderMsg:
		if msg.nonce != m.renderNonce || m.failure == nil {
			break
		}
		m.failureRendered = msg.rendered
		m.viewport.SetContent(msg.rendered)
		m.viewport.GotoTop()

	case loginDoneMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Sign-in failed: " + msg.err.Error()
			break
		}
		m.err = nil
		m.status = "Signed in. Press ctrl+r to run the query again"
		if m.source != nil {
			m.discovering = true
			cmds = append(cmds, m.discoverCmd(), m.spinner.Tick)
		}

	case persistMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Could not save " + msg.what + ": " + msg.err.Error()
			m.logger.Warn("persist failed", "what", msg.what, "error", msg.err)
		}

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied row to clipboard"
		}

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	if m.discovering || m.running {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}

	if m.focus == focusEditor && !m.picking && !m.findMode {
		if _, ok := msg.(tea.KeyMsg); !ok {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// applyQuery handles the latest completion. Only successful runs reach the
// history.
func (m *Model) applyQuery(msg queryMsg) tea.Cmd {
	switch {
	case msg.err == nil:
		m.err = nil
		m.failure = nil
		m.failureRendered = ""
		m.lastEntry = msg.entry
		m.engine.Load(msg.result)
		m.cursor, m.firstCol, m.selCol = 0, 0, 0
		m.viewport.GotoTop()
		m.ledger.Record(msg.entry)
		m.refreshHistory()
		m.refreshResults()

		res := m.engine.Result()
		m.status = fmt.Sprintf("%d rows in %s", len(res.Rows), res.Elapsed.Round(time.Millisecond))
		if res.Truncated() {
			m.status += " (row limit reached)"
		}
		m.logger.Info("query succeeded", "rows", len(res.Rows), "workspaces", len(msg.entry.Workspaces))
		return m.persistCmd(msg.entry)

	case auth.IsRedirect(msg.err):
		return m.startLogin()

	default:
		m.err = msg.err
		m.failure = query.Describe(msg.err)
		m.failureRendered = ""
		m.status = "Query failed"
		m.logger.Warn("query failed", "error", msg.err)
		return m.renderFailure()
	}
}

func (m *Model) renderFailure() tea.Cmd {
	m.renderNonce++
	return renderFailureCmd(m.failure, m.cfg.GlamourStyle, m.viewport.Width, m.renderNonce)
}

// run dispatches the editor contents against the current selection.
func (m *Model) run() tea.Cmd {
	text := strings.TrimSpace(m.editor.Value())
	if text == "" {
		m.status = "Enter a query first"
		return nil
	}
	if len(m.selected) == 0 {
		m.status = "Select at least one workspace (ctrl+o)"
		return nil
	}
	if m.runner == nil {
		m.status = "No query client configured"
		return nil
	}
	m.queryGen++
	m.running = true
	m.status = ""
	entry := history.Entry{
		RanAt:      time.Now(),
		Query:      text,
		Workspaces: append([]workspace.Workspace(nil), m.selected...),
		Timespan:   m.timespan,
	}
	return tea.Batch(m.queryCmd(entry, m.queryGen), m.spinner.Tick)
}

func (m *Model) refreshHistory() {
	entries := m.ledger.Entries()
	items := make([]list.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{e: e})
	}
	m.history.SetItems(items)
}

// loadHistory restores a past query together with the workspaces and time
// range it ran with.
func (m *Model) loadHistory() tea.Cmd {
	item, ok := m.history.SelectedItem().(historyItem)
	if !ok {
		return nil
	}
	m.editor.SetValue(item.e.Query)
	m.timespan = item.e.Timespan
	ws := item.e.Workspaces
	if len(m.available) > 0 {
		ws = workspace.Reconcile(ws, m.available)
	}
	m.selected = append([]workspace.Workspace(nil), ws...)
	m.setFocus(focusEditor)
	m.status = "Loaded query from " + item.e.Clock()
	if sameWorkspaces(m.savedSelection, m.selected) {
		return nil
	}
	m.savedSelection = append([]workspace.Workspace(nil), m.selected...)
	return m.persistSelectionCmd(m.selected)
}

func (m *Model) setFocus(f focusPane) {
	m.focus = f
	if f == focusEditor {
		m.editor.Focus()
	} else {
		m.editor.Blur()
	}
	m.refreshResults()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.findMode {
		return m.updateFind(msg)
	}
	if m.picking {
		return m.updatePicker(msg)
	}

	// Printable keys belong to the editor while it has focus.
	inEditor := m.focus == focusEditor
	if inEditor && (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace || msg.Type == tea.KeyEnter) {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Run):
		return m.run()
	case key.Matches(msg, m.keys.Workspaces):
		m.openPicker()
		return nil
	case key.Matches(msg, m.keys.Timespan):
		m.timespan = query.NextTimespan(m.timespan)
		m.status = "Time range: " + query.TimespanLabel(m.timespan)
		return nil
	case key.Matches(msg, m.keys.Tab):
		m.setFocus((m.focus + 1) % 3)
		return nil
	case key.Matches(msg, m.keys.Esc):
		if inEditor {
			m.setFocus(focusResults)
		} else if m.findTerm != "" {
			m.clearFind()
		}
		return nil
	}

	switch m.focus {
	case focusEditor:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return cmd
	case focusHistory:
		if msg.Type == tea.KeyEnter {
			return m.loadHistory()
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return cmd
	default:
		return m.updateResults(msg)
	}
}

func (m *Model) updateResults(msg tea.KeyMsg) tea.Cmd {
	if m.failure != nil {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.viewport.LineUp(1)
		case key.Matches(msg, m.keys.Down):
			m.viewport.LineDown(1)
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
		}
		return nil
	}

	cols := m.engine.Columns()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.viewport.Height)
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.viewport.Height)
	case key.Matches(msg, m.keys.Toggle):
		m.toggleAtCursor()
	case key.Matches(msg, m.keys.Left):
		m.selectColumn(m.selCol - 1)
	case key.Matches(msg, m.keys.Right):
		m.selectColumn(m.selCol + 1)
	case key.Matches(msg, m.keys.Sort):
		if m.selCol < len(cols) {
			m.engine.SetSort(cols[m.selCol].Name)
			m.refreshResults()
		}
	case key.Matches(msg, m.keys.Group):
		if !m.engine.CanGroup() {
			m.status = "No " + results.GroupColumn + " column to group by"
			break
		}
		m.engine.ToggleGrouping()
		m.refreshResults()
	case key.Matches(msg, m.keys.Wider):
		m.adjustSelectedWidth(widthStep)
	case key.Matches(msg, m.keys.Narrower):
		m.adjustSelectedWidth(-widthStep)
	case key.Matches(msg, m.keys.Find):
		m.findMode = true
		m.find.SetValue(m.findTerm)
		m.find.CursorEnd()
		return m.find.Focus()
	case key.Matches(msg, m.keys.NextMatch):
		m.jumpToMatch(1)
	case key.Matches(msg, m.keys.PrevMatch):
		m.jumpToMatch(-1)
	case key.Matches(msg, m.keys.Export):
		if len(cols) > 0 {
			return m.exportCmd(export.Markdown)
		}
	case key.Matches(msg, m.keys.ExportCSV):
		if len(cols) > 0 {
			return m.exportCmd(export.CSV)
		}
	case key.Matches(msg, m.keys.Copy):
		if line, ok := m.currentLine(); ok && line.kind != lineGroup {
			fields := m.engine.Detail(line.row)
			names := make([]string, len(fields))
			values := make([]string, len(fields))
			for i, f := range fields {
				names[i], values[i] = f.Name, f.Value
			}
			return m.copyCmd(clipboard.FormatFields(names, values))
		}
	}
	return nil
}

func (m *Model) updateFind(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.findMode = false
		m.find.Blur()
		m.clearFind()
		return nil
	case "enter":
		m.findMode = false
		m.find.Blur()
		m.jumpToMatch(1)
		return nil
	}
	var cmd tea.Cmd
	m.find, cmd = m.find.Update(msg)
	if term := strings.TrimSpace(m.find.Value()); term != m.findTerm {
		m.findTerm = term
		m.matchIndex = -1
		m.refreshResults()
	}
	return cmd
}

func (m *Model) clearFind() {
	m.findTerm = ""
	m.find.SetValue("")
	m.matchIndex = -1
	m.refreshResults()
}

// jumpToMatch moves to the next (delta > 0) or previous match line, wrapping.
func (m *Model) jumpToMatch(delta int) {
	if len(m.matches.Lines) == 0 {
		return
	}
	var (
		line int
		ok   bool
	)
	if delta > 0 {
		line, ok = m.matches.Next(m.cursor)
	} else {
		line, ok = m.matches.Prev(m.cursor)
	}
	if !ok {
		return
	}
	for i, l := range m.matches.Lines {
		if l == line {
			m.matchIndex = i
		}
	}
	if line >= len(m.lines) {
		return
	}
	// detail lines are not selectable; land on the row they belong to
	for line > 0 && !m.lines[line].selectable() {
		line--
	}
	m.cursor = line
	m.refreshResults()
}

func (m *Model) currentLine() (tableLine, bool) {
	if m.cursor < 0 || m.cursor >= len(m.lines) {
		return tableLine{}, false
	}
	return m.lines[m.cursor], true
}

func (m *Model) moveCursor(delta int) {
	if len(m.lines) == 0 {
		return
	}
	step := 1
	if delta < 0 {
		step = -1
	}
	target := m.cursor
	for n := delta * step; n > 0; n-- {
		next := target + step
		for next >= 0 && next < len(m.lines) && !m.lines[next].selectable() {
			next += step
		}
		if next < 0 || next >= len(m.lines) {
			break
		}
		target = next
	}
	m.cursor = target
	m.refreshResults()
}

func (m *Model) toggleAtCursor() {
	line, ok := m.currentLine()
	if !ok {
		return
	}
	switch line.kind {
	case lineGroup:
		m.engine.ToggleGroup(line.group)
	case lineRow:
		m.engine.ToggleRow(line.group, line.row)
	}
	m.refreshResults()
}

func (m *Model) selectColumn(col int) {
	n := len(m.engine.Columns())
	if n == 0 {
		return
	}
	if col < 0 {
		col = 0
	}
	if col >= n {
		col = n - 1
	}
	m.selCol = col
	m.ensureColumnVisible()
	m.refreshResults()
}

func (m *Model) ensureColumnVisible() {
	if m.selCol < m.firstCol {
		m.firstCol = m.selCol
		return
	}
	for m.firstCol < m.selCol {
		l := layoutTable(m.engine, m.firstCol, m.viewport.Width)
		if len(l.cols) > 0 && l.cols[len(l.cols)-1] >= m.selCol {
			return
		}
		m.firstCol++
	}
}

func (m *Model) adjustSelectedWidth(delta int) {
	cols := m.engine.Columns()
	if m.selCol >= len(cols) {
		return
	}
	w := m.engine.AdjustWidth(cols[m.selCol].Name, delta)
	m.status = fmt.Sprintf("%s width %d", cols[m.selCol].Name, w)
	m.ensureColumnVisible()
	m.refreshResults()
}

// refreshResults re-renders the table into the viewport, keeping the cursor
// on the same group or row when it is still shown.
func (m *Model) refreshResults() {
	if m.failure != nil {
		if m.failureRendered != "" {
			m.viewport.SetContent(m.failureRendered)
		}
		return
	}
	prev, hadPrev := m.currentLine()

	width := m.viewport.Width
	m.layout = layoutTable(m.engine, m.firstCol, width)
	lines, meta := renderBody(m.engine, m.layout, width)
	m.lines = meta

	if hadPrev {
		for i, l := range meta {
			if l == prev {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(meta) {
		m.cursor = len(meta) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	for m.cursor > 0 && !meta[m.cursor].selectable() {
		m.cursor--
	}
	if len(lines) > 0 && m.focus == focusResults {
		lines[m.cursor] = cursorStyle.Render(ansi.Strip(lines[m.cursor]))
	}

	content := strings.Join(lines, "\n")
	m.matches = highlight.Result{}
	if m.findTerm != "" {
		m.matches = highlight.Mark(content, m.findTerm, func(s string) string { return searchMatchStyle.Render(s) })
		content = m.matches.Text
	}
	m.viewport.SetContent(content)
	m.ensureCursorVisible()
}

func (m *Model) ensureCursorVisible() {
	h := m.viewport.Height
	if h <= 0 {
		return
	}
	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if m.cursor >= m.viewport.YOffset+h {
		m.viewport.SetYOffset(m.cursor - h + 1)
	}
}

// handleMouse drives focus changes, header sort clicks, row toggles and
// column resize drags. A drag starts on a header border and lasts until the
// button is released.
func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Action {
	case tea.MouseActionMotion:
		if g := m.engine.ActiveResize(); g != nil {
			g.Move(msg.X)
			m.refreshResults()
		}
		return nil
	case tea.MouseActionRelease:
		if g := m.engine.ActiveResize(); g != nil {
			w := g.Move(msg.X)
			g.End()
			m.status = fmt.Sprintf("%s width %d", g.Column(), w)
			m.refreshResults()
		}
		return nil
	case tea.MouseActionPress:
	default:
		return nil
	}

	left, _ := m.paneWidths()
	inResults := msg.X >= left && msg.Y >= m.resultsY-1
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if inResults {
			m.moveCursor(-3)
		}
		return nil
	case tea.MouseButtonWheelDown:
		if inResults {
			m.moveCursor(3)
		}
		return nil
	case tea.MouseButtonLeft:
	default:
		return nil
	}

	switch {
	case msg.X < left:
		m.setFocus(focusHistory)
		return nil
	case !inResults:
		m.setFocus(focusEditor)
		return nil
	}
	m.setFocus(focusResults)
	if m.picking || m.failure != nil || len(m.engine.Columns()) == 0 {
		m.refreshResults()
		return nil
	}

	x, y := msg.X-m.resultsX, msg.Y-m.resultsY
	cols := m.engine.Columns()
	if y == 0 {
		if col, ok := m.layout.borderAt(x); ok {
			m.engine.BeginResize(cols[col].Name, msg.X)
			return nil
		}
		if col, ok := m.layout.columnAt(x); ok {
			m.selCol = col
			m.engine.SetSort(cols[col].Name)
		}
		m.refreshResults()
		return nil
	}

	line := y - 1 + m.viewport.YOffset
	if y < 1 || line >= len(m.lines) {
		m.refreshResults()
		return nil
	}
	for line > 0 && !m.lines[line].selectable() {
		line--
	}
	m.cursor = line
	if col, ok := m.layout.columnAt(x); ok {
		m.selCol = col
	}
	if x < expandCells || m.lines[line].kind == lineGroup {
		m.toggleAtCursor()
		return nil
	}
	m.refreshResults()
	return nil
}
