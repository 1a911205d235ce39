package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote answers searches from a map keyed by project, optionally blocking
// until released.
type fakeRemote struct {
	mu       sync.Mutex
	issues   map[string][]domain.Issue
	projects []domain.Project
	err      error
	gates    map[string]chan struct{}
	searches atomic.Int32
	lists    atomic.Int32
}

func (f *fakeRemote) SearchIssues(ctx context.Context, projectKey, jql string, maxResults int) ([]domain.Issue, error) {
	f.searches.Add(1)
	f.mu.Lock()
	gate := f.gates[projectKey]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.issues[projectKey], nil
}

func (f *fakeRemote) ListProjects(ctx context.Context, policy jira.StatsPolicy) ([]domain.Project, error) {
	f.lists.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

func createTestEngine(t *testing.T, remote *fakeRemote, localIssues int) (*Engine, *store.Store) {
	t.Helper()
	s := store.NewMemory()
	for _, issue := range createTestIssues("local", localIssues) {
		require.NoError(t, s.UpsertIssue(issue))
	}
	e := NewEngine(remote, s, nil)
	t.Cleanup(e.Close)
	return e, s
}

func ids(issues []domain.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.ID
	}
	return out
}

func TestEngine_DisabledServesLocalWithoutRequest(t *testing.T) {
	remote := &fakeRemote{issues: map[string][]domain.Issue{"FLINK": createTestIssues("remote", 5)}}
	e, _ := createTestEngine(t, remote, 2)

	r := e.ResolveIssues(context.Background(), IssueParams{ProjectKey: "FLINK", Enabled: false})

	assert.Equal(t, []string{"local-0", "local-1"}, ids(r.Data))
	assert.False(t, r.IsLoading)
	assert.Zero(t, remote.searches.Load())
}

func TestEngine_NoKeyNoJQLDisablesFetch(t *testing.T) {
	remote := &fakeRemote{}
	e, _ := createTestEngine(t, remote, 1)

	r := e.ResolveIssues(context.Background(), IssueParams{Enabled: true})

	assert.Len(t, r.Data, 1)
	assert.Zero(t, remote.searches.Load())
}

func TestEngine_RemotePrecedence(t *testing.T) {
	remote := &fakeRemote{issues: map[string][]domain.Issue{"FLINK": createTestIssues("remote", 5)}}
	e, _ := createTestEngine(t, remote, 2)

	r := e.ResolveIssues(context.Background(), IssueParams{ProjectKey: "FLINK", Enabled: true})

	assert.Len(t, r.Data, 5)
	assert.Len(t, r.LocalPortion, 2)
	assert.Len(t, r.RemotePortion, 5)
}

func TestEngine_EmptyRemoteFallsBack(t *testing.T) {
	remote := &fakeRemote{issues: map[string][]domain.Issue{}}
	e, _ := createTestEngine(t, remote, 3)

	r := e.ResolveIssues(context.Background(), IssueParams{ProjectKey: "FLINK", Enabled: true})

	assert.Equal(t, []string{"local-0", "local-1", "local-2"}, ids(r.Data))
	assert.False(t, r.IsError)
}

func TestEngine_FailureWithEmptyLocalIsError(t *testing.T) {
	cause := errors.New("exhausted")
	e, _ := createTestEngine(t, &fakeRemote{err: cause}, 0)

	r := e.ResolveIssues(context.Background(), IssueParams{ProjectKey: "FLINK", Enabled: true})

	assert.True(t, r.IsError)
	assert.ErrorIs(t, r.Err, ErrNoRecords)
	assert.ErrorIs(t, r.Err, cause)
	assert.Empty(t, r.Data)
}

func TestEngine_FreshCacheSkipsRequest(t *testing.T) {
	remote := &fakeRemote{issues: map[string][]domain.Issue{"FLINK": createTestIssues("remote", 2)}}
	e, _ := createTestEngine(t, remote, 0)
	p := IssueParams{ProjectKey: "FLINK", Enabled: true}

	e.ResolveIssues(context.Background(), p)
	r := e.ResolveIssues(context.Background(), p)
	assert.Len(t, r.Data, 2)
	assert.Equal(t, int32(1), remote.searches.Load())

	<-e.RefreshIssues(context.Background(), p)
	assert.Equal(t, int32(2), remote.searches.Load())

	// Different parameters are a different key.
	e.ResolveIssues(context.Background(), IssueParams{ProjectKey: "FLINK", MaxResults: 10, Enabled: true})
	assert.Equal(t, int32(3), remote.searches.Load())
}

func TestEngine_StaleResultDropped(t *testing.T) {
	slow := make(chan struct{})
	remote := &fakeRemote{
		issues: map[string][]domain.Issue{
			"SLOW": createTestIssues("slow", 4),
			"FAST": createTestIssues("fast", 1),
		},
		gates: map[string]chan struct{}{"SLOW": slow},
	}
	e, _ := createTestEngine(t, remote, 0)

	first := e.Issues(context.Background(), IssueParams{ProjectKey: "SLOW", Enabled: true})
	<-e.Issues(context.Background(), IssueParams{ProjectKey: "FAST", Enabled: true})
	assert.Equal(t, []string{"fast-0"}, ids(e.IssueQuery().Snapshot().Data))

	close(slow)
	<-first
	assert.Equal(t, []string{"fast-0"}, ids(e.IssueQuery().Snapshot().Data))
}

func TestEngine_LoadingThenResult(t *testing.T) {
	gate := make(chan struct{})
	remote := &fakeRemote{
		issues: map[string][]domain.Issue{"FLINK": createTestIssues("remote", 2)},
		gates:  map[string]chan struct{}{"FLINK": gate},
	}
	e, _ := createTestEngine(t, remote, 1)

	var mu sync.Mutex
	var seen []Result[domain.Issue]
	e.IssueQuery().Subscribe(func(r Result[domain.Issue]) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	done := e.Issues(context.Background(), IssueParams{ProjectKey: "FLINK", Enabled: true})
	loading := e.IssueQuery().Snapshot()
	assert.True(t, loading.IsLoading)
	assert.Equal(t, []string{"local-0"}, ids(loading.Data))

	close(gate)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsLoading)
	assert.False(t, seen[1].IsLoading)
	assert.Equal(t, []string{"remote-0", "remote-1"}, ids(seen[1].Data))
}

func TestEngine_LocalMutationRepublishes(t *testing.T) {
	e, s := createTestEngine(t, &fakeRemote{}, 1)
	e.ResolveIssues(context.Background(), IssueParams{})

	require.NoError(t, s.UpsertIssue(domain.Issue{ID: "local-new", Title: "New"}))

	r := e.IssueQuery().Snapshot()
	assert.Equal(t, []string{"local-0", "local-new"}, ids(r.Data))
}

func TestEngine_ExternalChangeRepublishes(t *testing.T) {
	e, s := createTestEngine(t, &fakeRemote{}, 1)

	var external atomic.Int32
	e.IssueQuery().Subscribe(func(Result[domain.Issue]) { external.Add(1) })

	require.NoError(t, s.Reload())
	assert.Equal(t, int32(1), external.Load())
}

func TestEngine_RemoteNeverWrittenToStore(t *testing.T) {
	remote := &fakeRemote{issues: map[string][]domain.Issue{"FLINK": createTestIssues("remote", 5)}}
	e, s := createTestEngine(t, remote, 2)

	e.ResolveIssues(context.Background(), IssueParams{ProjectKey: "FLINK", Enabled: true})

	assert.Equal(t, []string{"local-0", "local-1"}, ids(s.Issues()))
}

func TestEngine_Projects(t *testing.T) {
	remote := &fakeRemote{projects: []domain.Project{{ID: "1", Key: "FLINK", Name: "flink"}}}
	e, s := createTestEngine(t, remote, 0)
	require.NoError(t, s.UpsertProject(domain.Project{ID: "local-p", Name: "Mine"}))

	r := e.ResolveProjects(context.Background(), ProjectParams{Enabled: true, Stats: jira.DefaultStatsPolicy()})
	require.Len(t, r.Data, 1)
	assert.Equal(t, "FLINK", r.Data[0].Key)

	r = e.ResolveProjects(context.Background(), ProjectParams{Enabled: false})
	require.Len(t, r.Data, 1)
	assert.Equal(t, "local-p", r.Data[0].ID)
	assert.Equal(t, int32(1), remote.lists.Load())
}

func TestQuery_DoneClosesWhenDisabled(t *testing.T) {
	q := NewQuery("q", func() []int { return []int{1} }, nil)

	select {
	case <-q.Run(context.Background(), "k", false, nil):
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}
	assert.Equal(t, []int{1}, q.Snapshot().Data)
	assert.Equal(t, "k", q.Key())
}
