package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/store"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenProjectPicker
	ScreenBoard
	ScreenDetail
)

// Options are the command-line choices that shape the session.
type Options struct {
	ProjectKey string // Opens this project's board directly when set
	JQL        string // Replaces the default per-project query
	MaxResults int
	Offline    bool // Serve only the local store
	Stats      jira.StatsPolicy
}

// AppModel is the root Bubble Tea model that manages screen transitions.
// It runs project selection, then the board, with the detail view on top.
type AppModel struct {
	// Dependencies
	engine *reconcile.Engine
	store  *store.Store
	client *jira.Client
	ctx    context.Context
	opts   Options

	// Current state
	currentScreen AppScreen
	currentModel  tea.Model
	err           error
	loadingMsg    string

	projects *feed[domain.Project]

	// Kept so the board survives a trip to the detail view
	boardModel *BoardModel
}

// NewAppModel creates the root model. client may be nil when running offline.
func NewAppModel(engine *reconcile.Engine, s *store.Store, client *jira.Client, ctx context.Context, opts Options) AppModel {
	return AppModel{
		engine:        engine,
		store:         s,
		client:        client,
		ctx:           ctx,
		opts:          opts,
		currentScreen: ScreenLoading,
		loadingMsg:    "Loading projects...",
	}
}

// Init opens the requested board or starts project selection.
func (m AppModel) Init() tea.Cmd {
	if m.opts.ProjectKey != "" || m.opts.JQL != "" {
		project := m.projectFor(m.opts.ProjectKey)
		return func() tea.Msg { return ProjectSelectedMsg{Project: project} }
	}
	return func() tea.Msg { return changeProjectMsg{} }
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.currentScreen != ScreenBoard {
			return m, tea.Quit
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case changeProjectMsg:
		m.currentScreen = ScreenProjectPicker
		var cmds []tea.Cmd
		if m.projects == nil {
			m.projects = watchQuery(m.engine.ProjectQuery())
			cmds = append(cmds, m.projects.next(wrapProjects), m.runProjects())
		}
		picker := NewProjectPickerModel(m.engine.ProjectQuery().Snapshot().Data)
		m.currentModel = picker
		cmds = append(cmds, picker.Init())
		return m, tea.Batch(cmds...)

	case projectsResultMsg:
		next := m.projects.next(wrapProjects)
		if m.currentScreen != ScreenProjectPicker || m.currentModel == nil {
			return m, next
		}
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		return m, tea.Batch(cmd, next)

	case ProjectSelectedMsg:
		if m.boardModel != nil {
			m.boardModel.close()
		}
		m.currentScreen = ScreenBoard
		board := NewBoardModel(m.store, m.engine, m.client, m.ctx, msg.Project, m.issueParams(msg.Project))
		m.boardModel = &board
		m.currentModel = board
		return m, board.Init()

	case openDetailMsg:
		m.currentScreen = ScreenDetail
		detail := NewDetailModel(msg.issue, m.store, m.client, m.ctx)
		m.currentModel = detail
		return m, detail.Init()

	case closeDetailMsg:
		m.currentScreen = ScreenBoard
		m.currentModel = *m.boardModel
		return m, tea.WindowSize()

	case issuesResultMsg:
		// The board keeps its feed armed even while the detail view is shown.
		if m.currentScreen != ScreenBoard && m.boardModel != nil {
			model, cmd := m.boardModel.Update(msg)
			board := model.(BoardModel)
			m.boardModel = &board
			return m, cmd
		}
	}

	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		if m.currentScreen == ScreenBoard {
			if bm, ok := m.currentModel.(BoardModel); ok {
				m.boardModel = &bm
			}
		}
		return m, cmd
	}

	return m, nil
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}
	if m.currentModel != nil {
		return m.currentModel.View()
	}
	return m.loadingMsg + "\n\nPress Ctrl+C to quit"
}

// projectFor returns the stored project for key, or a bare project carrying
// only the key.
func (m AppModel) projectFor(key string) domain.Project {
	if key == "" {
		return domain.Project{Name: "Query results"}
	}
	if m.store != nil {
		if p, err := m.store.Project(key); err == nil {
			return p
		}
	}
	return domain.Project{Key: key, Name: key, Color: jira.ProjectColor(key)}
}

func (m AppModel) issueParams(project domain.Project) reconcile.IssueParams {
	return reconcile.IssueParams{
		ProjectKey: project.Key,
		JQL:        m.opts.JQL,
		MaxResults: m.opts.MaxResults,
		Enabled:    !m.opts.Offline && m.client != nil,
	}
}

func (m AppModel) runProjects() tea.Cmd {
	params := reconcile.ProjectParams{
		Enabled: !m.opts.Offline && m.client != nil,
		Stats:   m.opts.Stats,
	}
	return func() tea.Msg {
		m.engine.Projects(m.ctx, params)
		return nil
	}
}
