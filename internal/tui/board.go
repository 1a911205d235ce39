package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/filter"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/store"
)

// Layout constants
const (
	minColumnWidth = 20
	maxColumnWidth = 35
	headerLines    = 1
	pageJumpSize   = 10 // Rows jumped by Ctrl+D/U
)

// exprPrefix marks filter text that is an expression rather than a substring.
const exprPrefix = "="

// Styles for the board view. Width and height are set while rendering.
var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	moveModeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("205")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)
)

// BoardModel shows the reconciled issues of one project as status columns.
type BoardModel struct {
	// Dependencies
	store  *store.Store
	engine *reconcile.Engine
	client *jira.Client
	ctx    context.Context
	feed   *feed[domain.Issue]

	project domain.Project
	params  reconcile.IssueParams

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model

	// Board state
	result       reconcile.Result[domain.Issue]
	issues       map[string]domain.Issue // Issue ID -> issue
	columns      []string                // Status names in display order
	columnIssues map[string][]string     // Status -> issue IDs after filtering
	selectedCol  int
	columnOffset int            // First visible column
	selectedRow  map[string]int // Status -> selected row
	scrollOffset map[string]int // Status -> first visible row

	// View state
	width      int
	height     int
	showHelp   bool
	filterMode bool
	filterText string
	filter     *filter.Filter
	localOnly  bool
	moveMode   bool
	errorToast string
}

// NewBoardModel creates a board for project. A nil engine shows only what is
// delivered through issue result messages.
func NewBoardModel(s *store.Store, engine *reconcile.Engine, client *jira.Client, ctx context.Context, project domain.Project, params reconcile.IssueParams) BoardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "text, or =expression"
	ti.Prompt = "/ "

	m := BoardModel{
		store:        s,
		engine:       engine,
		client:       client,
		ctx:          ctx,
		project:      project,
		params:       params,
		keymap:       DefaultKeyMap(),
		help:         NewHelpModel(DefaultKeyMap()),
		spinner:      sp,
		filterInput:  ti,
		issues:       make(map[string]domain.Issue),
		columnIssues: make(map[string][]string),
		selectedRow:  make(map[string]int),
		scrollOffset: make(map[string]int),
	}
	if engine != nil {
		m.feed = watchQuery(engine.IssueQuery())
	}
	return m
}

// boardInitMsg triggers the initial column build.
type boardInitMsg struct{}

// Init starts listening for results and runs the issue query.
func (m BoardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		tea.WindowSize(),
		func() tea.Msg { return boardInitMsg{} },
	}
	if m.engine != nil {
		cmds = append(cmds, m.feed.next(wrapIssues), m.runQuery(false))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardInitMsg:
		if m.engine != nil {
			(&m).setResult(m.engine.IssueQuery().Snapshot())
		}
		return m, nil

	case issuesResultMsg:
		(&m).setResult(msg.result)
		return m, m.feed.next(wrapIssues)

	case moveSuccessMsg:
		m.moveMode = false
		return m, nil

	case moveErrorMsg:
		m.moveMode = false
		m.errorToast = fmt.Sprintf("Move failed: %v", msg.err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// setResult replaces the displayed issues with r.
func (m *BoardModel) setResult(r reconcile.Result[domain.Issue]) {
	m.result = r
	m.issues = make(map[string]domain.Issue, len(r.Data))
	for _, issue := range r.Data {
		m.issues[issue.ID] = issue
	}
	switch {
	case r.IsError:
		m.errorToast = r.Err.Error()
	case m.errorToast != "" && !r.IsLoading:
		m.errorToast = ""
	}
	m.rebuildColumns()
	m.applyFilter()
}

// handleKeyPress processes keyboard input
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		if msg.String() == "?" || msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if m.filterMode {
		switch msg.String() {
		case "enter":
			m.filterMode = false
			(&m).setFilter(m.filterInput.Value())
			return m, nil
		case "esc":
			m.filterMode = false
			m.filterInput.SetValue(m.filterText)
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	if m.moveMode {
		return m.handleMoveMode(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = true
	case "/":
		m.filterMode = true
		m.filterInput.Focus()
	case "h", "left":
		if m.selectedCol > 0 {
			m.selectedCol--
			(&m).adjustColumnScroll()
		}
	case "l", "right":
		if m.selectedCol < len(m.columns)-1 {
			m.selectedCol++
			(&m).adjustColumnScroll()
		}
	case "j", "down":
		(&m).moveSelection(1)
	case "k", "up":
		(&m).moveSelection(-1)
	case "g":
		(&m).jumpTo(0)
	case "G":
		(&m).jumpTo(-1)
	case "ctrl+d":
		(&m).moveSelection(pageJumpSize)
	case "ctrl+u":
		(&m).moveSelection(-pageJumpSize)
	case "m":
		issue := m.selectedIssue()
		switch {
		case issue == nil:
		case issue.Origin != domain.OriginLocal:
			m.errorToast = "Remote issues are read-only"
		default:
			m.moveMode = true
		}
	case "o":
		issue := m.selectedIssue()
		if issue == nil {
			break
		}
		if u := m.browseURL(*issue); u != "" {
			_ = browser.OpenURL(u)
		} else {
			m.errorToast = "Local issues have no web page"
		}
	case "r":
		return m, m.runQuery(true)
	case "p":
		return m, func() tea.Msg { return changeProjectMsg{} }
	case "a":
		m.localOnly = !m.localOnly
		(&m).applyFilter()
	case "enter":
		if issue := m.selectedIssue(); issue != nil {
			selected := *issue
			return m, func() tea.Msg { return openDetailMsg{issue: selected} }
		}
	}

	return m, nil
}

// setFilter installs text as the active filter. Text starting with "=" is
// compiled as an expression; a compile error keeps the previous filter.
func (m *BoardModel) setFilter(text string) {
	text = strings.TrimSpace(text)
	if src, ok := strings.CutPrefix(text, exprPrefix); ok {
		f, err := filter.Compile(src)
		if err != nil {
			m.errorToast = err.Error()
			return
		}
		m.filter = f
	} else {
		m.filter = nil
	}
	m.filterText = text
	m.errorToast = ""
	m.applyFilter()
}

// handleMoveMode handles key presses in move mode
func (m BoardModel) handleMoveMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.moveMode = false
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.Runes[0] - '1')
		if idx >= 0 && idx < len(m.columns) {
			return m, m.moveIssueTo(domain.Status(m.columns[idx]))
		}
	}
	return m, nil
}

// View renders the board to fill the terminal.
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	var sections []string
	sections = append(sections, m.renderHeader(width))
	sections = append(sections, m.renderSecondHeader(width))

	if m.filterMode {
		sections = append(sections, m.filterInput.View())
	}
	if m.moveMode {
		moveBar := moveModeStyle.Render("MOVE") + " Press 1-9 to select column, ESC to cancel"
		sections = append(sections, moveBar)
	}

	boardHeight := height - 2
	if m.filterMode {
		boardHeight--
	}
	if m.moveMode {
		boardHeight--
	}
	boardHeight = max(boardHeight, 5)

	var mainContent string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > boardHeight {
			helpLines = helpLines[:boardHeight]
		}
		mainContent = strings.Join(helpLines, "\n")
	case m.result.IsLoading && len(m.issues) == 0:
		loadingMsg := m.spinner.View() + " Loading..."
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, loadingMsg)
	case len(m.issues) == 0:
		emptyMsg := "No issues. Press 'r' to refresh."
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, emptyMsg)
	default:
		mainContent = m.renderBoard(width, boardHeight)
	}
	sections = append(sections, mainContent)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderSecondHeader renders navigation hints and position info
func (m BoardModel) renderSecondHeader(width int) string {
	left := "h/l:col j/k:issue enter:view o:open m:move p:project"

	right := ""
	if m.errorToast != "" {
		right = errorStyle.Render(m.errorToast)
	} else if len(m.columns) > 0 {
		status := m.columns[m.selectedCol]
		ids := m.columnIssues[status]
		colPos := fmt.Sprintf("col %d/%d", m.selectedCol+1, len(m.columns))
		if len(ids) > 0 {
			right = fmt.Sprintf("%s | issue %d/%d", colPos, m.selectedRow[status]+1, len(ids))
		} else {
			right = colPos
		}
	}

	padding := max(width-len(left)-lipgloss.Width(right)-2, 1)
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + right
}

// renderHeader renders the project title on the left and status on the right.
func (m BoardModel) renderHeader(width int) string {
	title := m.project.Name
	if m.project.Key != "" {
		title = fmt.Sprintf("%s - %s", m.project.Key, m.project.Name)
	}
	if m.params.JQL != "" {
		title += " (jql)"
	}

	var statusParts []string
	if m.result.IsLoading {
		statusParts = append(statusParts, m.spinner.View()+"loading")
	}
	if !m.params.Enabled {
		statusParts = append(statusParts, "offline")
	}

	total := 0
	for _, ids := range m.columnIssues {
		total += len(ids)
	}
	statusParts = append(statusParts, fmt.Sprintf("%d issues", total))
	statusParts = append(statusParts, fmt.Sprintf("remote %d · local %d", len(m.result.RemotePortion), len(m.result.LocalPortion)))

	if m.localOnly {
		statusParts = append(statusParts, "@local")
	}
	if m.filterText != "" {
		statusParts = append(statusParts, "/"+m.filterText)
	}
	statusParts = append(statusParts, "[?]help")

	status := strings.Join(statusParts, " | ")
	padding := max(width-lipgloss.Width(title)-lipgloss.Width(status)-2, 1)
	return ProjectStyle(m.project).Inherit(titleStyle).Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderBoard renders the visible columns, scrolling horizontally when they
// do not all fit.
func (m BoardModel) renderBoard(totalWidth, totalHeight int) string {
	numCols := len(m.columns)
	if numCols == 0 {
		return ""
	}

	// Borders add two lines to the content height.
	colContentHeight := max(totalHeight-2, 3)

	visibleCols := min(max(totalWidth/minColumnWidth, 1), numCols)
	colWidth := min(max(totalWidth/visibleCols, minColumnWidth), maxColumnWidth)

	// Border and padding take four columns.
	innerWidth := max(colWidth-4, 10)
	maxRowLines := max(colContentHeight-1, 1)

	startCol := m.columnOffset
	endCol := startCol + visibleCols
	if endCol > numCols {
		endCol = numCols
		startCol = max(endCol-visibleCols, 0)
	}

	columnViews := make([]string, 0, visibleCols+2)
	if startCol > 0 {
		columnViews = append(columnViews, scrollArrow("◀", colContentHeight+2))
	}
	for i := startCol; i < endCol; i++ {
		columnViews = append(columnViews, m.renderColumn(m.columns[i], i == m.selectedCol, colWidth, colContentHeight, innerWidth, maxRowLines, i+1))
	}
	if endCol < numCols {
		columnViews = append(columnViews, scrollArrow("▶", colContentHeight+2))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

func scrollArrow(glyph string, height int) string {
	return lipgloss.NewStyle().
		Width(2).
		Height(height).
		Foreground(lipgloss.Color("205")).
		Align(lipgloss.Center, lipgloss.Center).
		Render(glyph)
}

// renderColumn renders one status column. innerHeight excludes the border;
// maxRowLines excludes the header.
func (m BoardModel) renderColumn(status string, selected bool, width, innerHeight, innerWidth, maxRowLines, colNum int) string {
	ids := m.columnIssues[status]

	headerText := fmt.Sprintf("[%d] %s (%d)", colNum, status, len(ids))
	headerText = truncate.StringWithTail(headerText, uint(innerWidth), "…")

	scrollOffset := m.scrollOffset[status]
	selectedIdx := m.selectedRow[status]

	slots := max(maxRowLines-1, 1)
	needUp := scrollOffset > 0
	needDown := false
	if needUp {
		slots--
	}

	endIdx := min(scrollOffset+slots, len(ids))
	if endIdx < len(ids) {
		needDown = true
		slots--
		endIdx = min(scrollOffset+slots, len(ids))
	}

	lines := []string{columnHeaderStyle.Render(headerText)}
	if needUp {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↑ %d more", scrollOffset)))
	}

	for i := scrollOffset; i < endIdx; i++ {
		issue, ok := m.issues[ids[i]]
		if !ok {
			continue
		}
		text := m.formatCardText(issue, innerWidth-3) // "> " prefix
		if selected && i == selectedIdx {
			lines = append(lines, selectedCardStyle.Render("> "+text))
		} else {
			lines = append(lines, cardStyle.Render("  "+text))
		}
	}

	if remaining := len(ids) - endIdx; needDown && remaining > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↓ %d more", remaining)))
	}
	if len(ids) == 0 {
		lines = append(lines, dimStyle.Render("(empty)"))
	}

	borderColor := lipgloss.Color("240")
	if selected {
		borderColor = lipgloss.Color("205")
	}

	// Height sets the content area; MaxHeight would cut the border.
	colStyle := lipgloss.NewStyle().
		Width(width - 2).
		Height(innerHeight).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor)

	return colStyle.Render(strings.Join(lines, "\n"))
}

// formatCardText renders one issue row: priority mark and title on the left,
// issue key right-aligned.
func (m BoardModel) formatCardText(issue domain.Issue, maxWidth int) string {
	title := priorityMark(issue.Priority) + " " + issue.Title

	suffix := issue.IssueNumber
	if issue.Origin == domain.OriginLocal {
		suffix = LocalBadgeStyle.Render(suffix + "*")
	}
	suffixLen := lipgloss.Width(suffix)
	if suffixLen == 0 {
		return truncate.StringWithTail(title, uint(maxWidth), "…")
	}

	available := max(maxWidth-suffixLen-1, 5)
	title = truncate.StringWithTail(title, uint(available), "…")

	padding := max(maxWidth-lipgloss.Width(title)-suffixLen, 1)
	return title + strings.Repeat(" ", padding) + dimStyle.Render(suffix)
}

// rebuildColumns lays out the canonical statuses in order, followed by any
// passthrough statuses in the order they first appear.
func (m *BoardModel) rebuildColumns() {
	m.columns = make([]string, 0, len(domain.Statuses)+1)
	seen := make(map[string]bool)
	for _, s := range domain.Statuses {
		m.columns = append(m.columns, string(s))
		seen[string(s)] = true
	}
	for _, issue := range m.result.Data {
		s := string(issue.Status)
		if !seen[s] {
			seen[s] = true
			m.columns = append(m.columns, s)
		}
	}

	if m.selectedCol >= len(m.columns) {
		m.selectedCol = 0
	}
}

// applyFilter groups the visible issues by status column.
func (m *BoardModel) applyFilter() {
	m.columnIssues = make(map[string][]string, len(m.columns))
	for _, status := range m.columns {
		m.columnIssues[status] = []string{}
	}

	needle := strings.ToLower(m.filterText)
	for _, issue := range m.result.Data {
		if m.localOnly && issue.Origin != domain.OriginLocal {
			continue
		}
		if m.filter != nil {
			ok, err := m.filter.Match(issue)
			if err != nil {
				m.errorToast = err.Error()
				continue
			}
			if !ok {
				continue
			}
		} else if needle != "" &&
			!strings.Contains(strings.ToLower(issue.Title), needle) &&
			!strings.Contains(strings.ToLower(issue.IssueNumber), needle) {
			continue
		}
		status := string(issue.Status)
		m.columnIssues[status] = append(m.columnIssues[status], issue.ID)
	}

	// Filtered results usually fit, so drop stale scroll state.
	for status, ids := range m.columnIssues {
		m.scrollOffset[status] = 0
		if m.selectedRow[status] >= len(ids) {
			m.selectedRow[status] = max(len(ids)-1, 0)
		}
	}
}

// moveSelection moves the row selection by delta within the current column.
func (m *BoardModel) moveSelection(delta int) {
	if len(m.columns) == 0 {
		return
	}
	status := m.columns[m.selectedCol]
	ids := m.columnIssues[status]
	if len(ids) == 0 {
		return
	}

	m.selectedRow[status] = min(max(m.selectedRow[status]+delta, 0), len(ids)-1)
	m.adjustScroll(status)
}

// jumpTo selects row idx of the current column; -1 selects the last row.
func (m *BoardModel) jumpTo(idx int) {
	if len(m.columns) == 0 {
		return
	}
	status := m.columns[m.selectedCol]
	ids := m.columnIssues[status]
	if len(ids) == 0 {
		return
	}

	if idx < 0 || idx >= len(ids) {
		idx = len(ids) - 1
	}
	m.selectedRow[status] = idx
	m.adjustScroll(status)
}

// adjustScroll keeps the selected row visible.
func (m *BoardModel) adjustScroll(status string) {
	selectedIdx := m.selectedRow[status]
	scrollOffset := m.scrollOffset[status]

	contentHeight := m.height - headerLines - 2
	if m.moveMode {
		contentHeight--
	}
	if m.filterMode {
		contentHeight--
	}
	visible := max(contentHeight-3, 3) // Header and scroll indicators

	if selectedIdx < scrollOffset {
		m.scrollOffset[status] = selectedIdx
	}
	if selectedIdx >= scrollOffset+visible {
		m.scrollOffset[status] = selectedIdx - visible + 1
	}
}

// adjustColumnScroll keeps the selected column visible.
func (m *BoardModel) adjustColumnScroll() {
	if len(m.columns) == 0 || m.width == 0 {
		return
	}

	visibleCols := min(max(m.width/minColumnWidth, 1), len(m.columns))

	if m.selectedCol < m.columnOffset {
		m.columnOffset = m.selectedCol
	}
	if m.selectedCol >= m.columnOffset+visibleCols {
		m.columnOffset = m.selectedCol - visibleCols + 1
	}
}

// selectedIssue returns the issue under the cursor, or nil.
func (m BoardModel) selectedIssue() *domain.Issue {
	if len(m.columns) == 0 {
		return nil
	}
	status := m.columns[m.selectedCol]
	ids := m.columnIssues[status]
	if len(ids) == 0 {
		return nil
	}

	idx := m.selectedRow[status]
	if idx >= len(ids) {
		idx = 0
	}
	issue, ok := m.issues[ids[idx]]
	if !ok {
		return nil
	}
	return &issue
}

func (m BoardModel) browseURL(issue domain.Issue) string {
	if issue.Origin == domain.OriginLocal || m.client == nil || issue.IssueNumber == "" {
		return ""
	}
	return m.client.BrowseURL(issue.IssueNumber)
}

// moveIssueTo writes the selected local issue back to the store with a new
// status. The engine republishes once the store notifies it.
func (m BoardModel) moveIssueTo(status domain.Status) tea.Cmd {
	issue := m.selectedIssue()
	if issue == nil || m.store == nil {
		return nil
	}
	moved := *issue
	moved.Status = status

	return func() tea.Msg {
		if err := m.store.UpsertIssue(moved); err != nil {
			return moveErrorMsg{err: err}
		}
		return moveSuccessMsg{}
	}
}

// runQuery runs the issue query, bypassing the cache when refresh is set.
func (m BoardModel) runQuery(refresh bool) tea.Cmd {
	if m.engine == nil {
		return nil
	}
	return func() tea.Msg {
		if refresh {
			m.engine.RefreshIssues(m.ctx, m.params)
		} else {
			m.engine.Issues(m.ctx, m.params)
		}
		return nil
	}
}

// close stops the result feed.
func (m BoardModel) close() {
	if m.feed != nil {
		m.feed.cancel()
	}
}

// Message types
type (
	moveSuccessMsg   struct{}
	moveErrorMsg     struct{ err error }
	changeProjectMsg struct{}
	openDetailMsg    struct{ issue domain.Issue }
)

// renderCard renders a row at a fixed width.
func (m BoardModel) renderCard(issue domain.Issue) string {
	return m.formatCardText(issue, 30)
}

// renderAllColumns renders the board at the current size.
func (m BoardModel) renderAllColumns() string {
	return m.renderBoard(m.width, m.height-headerLines)
}
