package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/store"
)

// RemoteSource is the remote side of the engine.
type RemoteSource interface {
	SearchIssues(ctx context.Context, projectKey, jql string, maxResults int) ([]domain.Issue, error)
	ListProjects(ctx context.Context, policy jira.StatsPolicy) ([]domain.Project, error)
}

// LocalSource is the local side of the engine.
type LocalSource interface {
	Issues() []domain.Issue
	Projects() []domain.Project
	Subscribe(fn func(store.Change)) (cancel func())
}

// IssueParams identifies an issue query. When JQL is set it replaces the
// default "all issues of ProjectKey, newest first" query.
type IssueParams struct {
	ProjectKey string
	JQL        string
	MaxResults int
	Enabled    bool
}

// fetches reports whether the query should reach the remote service at all.
func (p IssueParams) fetches() bool {
	return p.Enabled && (p.ProjectKey != "" || p.JQL != "")
}

func (p IssueParams) key() string {
	return Key("jira-issues", []any{p.ProjectKey, p.JQL, p.MaxResults})
}

// ProjectParams identifies a project list query.
type ProjectParams struct {
	Enabled bool
	Stats   jira.StatsPolicy
}

func (p ProjectParams) key() string {
	return Key("jira-projects", []any{p.Stats.Enabled, p.Stats.Limit})
}

// Engine serves reconciled issue and project collections.
type Engine struct {
	remote RemoteSource
	local  LocalSource
	cache  *Cache
	logger *slog.Logger

	issues   *Query[domain.Issue]
	projects *Query[domain.Project]

	unsubscribe func()
}

// NewEngine wires the engine to its sources and starts listening for local
// store changes. Call Close to stop listening.
func NewEngine(remote RemoteSource, local LocalSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		remote: remote,
		local:  local,
		cache:  NewCache(),
		logger: logger,
	}
	e.issues = NewQuery("issues", local.Issues, logger)
	e.projects = NewQuery("projects", local.Projects, logger)

	e.unsubscribe = local.Subscribe(func(c store.Change) {
		logger.Debug("local store changed",
			slog.String("kind", string(c.Kind)),
			slog.String("origin", c.Origin.String()))
		switch c.Kind {
		case store.KindIssues:
			e.issues.LocalChanged()
		case store.KindProjects:
			e.projects.LocalChanged()
		}
	})
	return e
}

// Close stops listening for local store changes.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

// IssueQuery returns the live issue collection.
func (e *Engine) IssueQuery() *Query[domain.Issue] {
	return e.issues
}

// ProjectQuery returns the live project collection.
func (e *Engine) ProjectQuery() *Query[domain.Project] {
	return e.projects
}

// Issues runs the issue query for p. A fresh cached result is served without
// a request. The returned channel closes when the run has finished.
func (e *Engine) Issues(ctx context.Context, p IssueParams) <-chan struct{} {
	key := p.key()
	if !p.fetches() {
		return e.issues.Run(ctx, key, false, nil)
	}
	return e.issues.Run(ctx, key, true, cachedFetch(e.cache, key, IssuesFreshTTL, IssuesGCTTL,
		func(ctx context.Context) ([]domain.Issue, error) {
			return e.remote.SearchIssues(ctx, p.ProjectKey, p.JQL, p.MaxResults)
		}))
}

// Projects runs the project list query for p.
func (e *Engine) Projects(ctx context.Context, p ProjectParams) <-chan struct{} {
	key := p.key()
	if !p.Enabled {
		return e.projects.Run(ctx, key, false, nil)
	}
	return e.projects.Run(ctx, key, true, cachedFetch(e.cache, key, ProjectsFreshTTL, ProjectsGCTTL,
		func(ctx context.Context) ([]domain.Project, error) {
			return e.remote.ListProjects(ctx, p.Stats)
		}))
}

// ResolveIssues runs the issue query and waits for its result.
func (e *Engine) ResolveIssues(ctx context.Context, p IssueParams) Result[domain.Issue] {
	<-e.Issues(ctx, p)
	return e.issues.Snapshot()
}

// ResolveProjects runs the project query and waits for its result.
func (e *Engine) ResolveProjects(ctx context.Context, p ProjectParams) Result[domain.Project] {
	<-e.Projects(ctx, p)
	return e.projects.Snapshot()
}

// RefreshIssues drops the cached result for p and runs the query again.
func (e *Engine) RefreshIssues(ctx context.Context, p IssueParams) <-chan struct{} {
	e.cache.Invalidate(p.key())
	return e.Issues(ctx, p)
}

// RefreshProjects drops the cached result for p and runs the query again.
func (e *Engine) RefreshProjects(ctx context.Context, p ProjectParams) <-chan struct{} {
	e.cache.Invalidate(p.key())
	return e.Projects(ctx, p)
}

// cachedFetch serves fresh cache entries and stores successful fetches.
func cachedFetch[T any](c *Cache, key string, freshTTL, gcTTL time.Duration, fetch FetchFunc[T]) FetchFunc[T] {
	return func(ctx context.Context) ([]T, error) {
		if v, fresh, ok := cached[[]T](c, key); ok && fresh {
			return v, nil
		}
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, data, freshTTL, gcTTL)
		return data, nil
	}
}
