package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/store"
)

// offlineRemote fails every call; offline sessions must never reach it.
type offlineRemote struct{}

func (offlineRemote) SearchIssues(context.Context, string, string, int) ([]domain.Issue, error) {
	panic("remote search in offline session")
}

func (offlineRemote) ListProjects(context.Context, jira.StatsPolicy) ([]domain.Project, error) {
	panic("remote project list in offline session")
}

func createTestApp(t *testing.T, opts Options) (AppModel, *store.Store) {
	t.Helper()
	s := store.NewMemory()
	require.NoError(t, s.UpsertProject(domain.Project{ID: "local-p", Key: "MINE", Name: "Mine"}))
	require.NoError(t, s.UpsertIssue(domain.Issue{ID: "local-1", IssueNumber: "LOC-1", Title: "Idea", Status: domain.StatusTodo}))

	engine := reconcile.NewEngine(offlineRemote{}, s, nil)
	t.Cleanup(engine.Close)

	opts.Offline = true
	return NewAppModel(engine, s, nil, context.Background(), opts), s
}

func step(t *testing.T, app AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	model, cmd := app.Update(msg)
	a, ok := model.(AppModel)
	require.True(t, ok)
	return a, cmd
}

func TestAppModel_InitWithProjectOpensBoard(t *testing.T) {
	app, _ := createTestApp(t, Options{ProjectKey: "mine"})

	msg := app.Init()()
	selected, ok := msg.(ProjectSelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "local-p", selected.Project.ID)

	app, cmd := step(t, app, selected)
	assert.Equal(t, ScreenBoard, app.currentScreen)
	assert.NotNil(t, cmd)
	require.NotNil(t, app.boardModel)
	assert.False(t, app.boardModel.params.Enabled)
}

func TestAppModel_UnknownProjectKey(t *testing.T) {
	app, _ := createTestApp(t, Options{})

	p := app.projectFor("KAFKA")
	assert.Equal(t, "KAFKA", p.Key)
	assert.Equal(t, jira.ProjectColor("KAFKA"), p.Color)
}

func TestAppModel_InitWithoutProjectShowsPicker(t *testing.T) {
	app, _ := createTestApp(t, Options{})

	msg := app.Init()()
	require.IsType(t, changeProjectMsg{}, msg)

	app, _ = step(t, app, msg)
	assert.Equal(t, ScreenProjectPicker, app.currentScreen)
	require.NotNil(t, app.projects)

	// Offline project query publishes the local projects.
	app.runProjects()()
	next := app.projects.next(wrapProjects)()
	result, ok := next.(projectsResultMsg)
	require.True(t, ok)
	require.Len(t, result.result.Data, 1)
	assert.Equal(t, "Mine", result.result.Data[0].Name)

	app, _ = step(t, app, result)
	picker, ok := app.currentModel.(ProjectPickerModel)
	require.True(t, ok)
	assert.Len(t, picker.list.Items(), 1)

	_, cmd := picker.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, ProjectSelectedMsg{}, cmd())
}

func TestAppModel_DetailRoundTrip(t *testing.T) {
	app, _ := createTestApp(t, Options{ProjectKey: "MINE"})
	app, _ = step(t, app, app.Init()())

	app, _ = step(t, app, openDetailMsg{issue: domain.Issue{ID: "local-1", Origin: domain.OriginLocal}})
	assert.Equal(t, ScreenDetail, app.currentScreen)
	assert.IsType(t, DetailModel{}, app.currentModel)

	app, _ = step(t, app, closeDetailMsg{})
	assert.Equal(t, ScreenBoard, app.currentScreen)
	assert.IsType(t, BoardModel{}, app.currentModel)
}

func TestAppModel_ErrorView(t *testing.T) {
	app, _ := createTestApp(t, Options{})

	app, _ = step(t, app, ErrorMsg{Err: reconcile.ErrNoRecords})
	assert.Contains(t, app.View(), "Error:")
}

func TestFeed_DeliversNewestResult(t *testing.T) {
	local := []int{1}
	q := reconcile.NewQuery("ints", func() []int { return local }, nil)
	f := watchQuery(q)
	defer f.cancel()

	q.LocalChanged()
	local = []int{1, 2}
	q.LocalChanged()

	wrap := func(r reconcile.Result[int]) tea.Msg { return r }
	got, ok := f.next(wrap)().(reconcile.Result[int])
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, got.Data)
}

func TestFeed_CancelStopsDelivery(t *testing.T) {
	q := reconcile.NewQuery("ints", func() []int { return nil }, nil)
	f := watchQuery(q)
	f.cancel()
	f.cancel()

	q.LocalChanged()

	done := make(chan tea.Msg, 1)
	go func() { done <- f.next(func(r reconcile.Result[int]) tea.Msg { return r })() }()

	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("next did not return after cancel")
	}
}
