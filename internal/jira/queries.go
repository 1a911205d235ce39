package jira

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/h0rv/issuedeck/internal/batch"
	"github.com/h0rv/issuedeck/internal/domain"
)

// DefaultProjectLimit is the number of projects ListProjects keeps from the remote list.
const DefaultProjectLimit = 50

// DefaultMaxResults is the page size used when a search does not specify one.
const DefaultMaxResults = 50

// issueFields limits search and lookup payloads to what the mapper reads.
const issueFields = "id,key,summary,description,status,priority,assignee,creator,reporter,labels,created,updated,project,issuelinks,subtasks"

const resolvedStatuses = "status IN (Resolved, Closed, Done)"

// StatsPolicy controls how many projects get issue statistics and how the
// statistics requests are paced.
type StatsPolicy struct {
	Enabled   bool
	Limit     int           // Projects past this index get zero stats without a request
	BatchSize int           // Concurrent statistics requests
	Delay     time.Duration // Pause between batches
}

// DefaultStatsPolicy returns the policy used when nothing is configured.
func DefaultStatsPolicy() StatsPolicy {
	return StatsPolicy{
		Enabled:   true,
		Limit:     5,
		BatchSize: 2,
		Delay:     time.Second,
	}
}

// DefaultJQL is the query used to list a project's issues, newest first.
func DefaultJQL(projectKey string) string {
	return fmt.Sprintf("project=%s ORDER BY created DESC", projectKey)
}

// SearchIssues returns issues matching jql, or the newest issues of projectKey
// when jql is empty.
func (c *Client) SearchIssues(ctx context.Context, projectKey, jql string, maxResults int) ([]domain.Issue, error) {
	if jql == "" {
		jql = DefaultJQL(projectKey)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", issueFields)

	var resp rawSearch
	if err := c.getJSON(ctx, c.endpoint("search", params), searchPolicy, &resp); err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	issues := make([]domain.Issue, 0, len(resp.Issues))
	for _, raw := range resp.Issues {
		issues = append(issues, c.mapper.Issue(raw))
	}
	return issues, nil
}

// GetIssue returns the issue with the given key.
// Returns ErrIssueNotFound if the remote answers 404.
func (c *Client) GetIssue(ctx context.Context, key string) (domain.Issue, error) {
	params := url.Values{}
	params.Set("fields", issueFields)

	var raw rawIssue
	if err := c.getJSON(ctx, c.endpoint("issue/"+url.PathEscape(key), params), issuePolicy, &raw); err != nil {
		if isNotFound(err) {
			return domain.Issue{}, fmt.Errorf("%w: %s", ErrIssueNotFound, key)
		}
		return domain.Issue{}, fmt.Errorf("failed to get issue %s: %w", key, err)
	}
	return c.mapper.Issue(raw), nil
}

// ListProjects returns up to the configured project limit, in remote order.
// Statistics are fetched for the first policy.Limit projects only; the rest
// carry zero counts.
func (c *Client) ListProjects(ctx context.Context, policy StatsPolicy) ([]domain.Project, error) {
	var raws []rawProject
	if err := c.getJSON(ctx, c.endpoint("project", nil), listProjectsPolicy, &raws); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if len(raws) > c.projectLimit {
		raws = raws[:c.projectLimit]
	}

	statsCount := 0
	if policy.Enabled {
		statsCount = min(max(policy.Limit, 0), len(raws))
	}

	stats := batch.Process(ctx, raws[:statsCount], policy.BatchSize,
		func(ctx context.Context, raw rawProject) (domain.ProjectStats, error) {
			return c.ProjectStats(ctx, raw.Key), nil
		},
		policy.Delay,
		func(raw rawProject, err error) domain.ProjectStats {
			c.logger.Warn("project statistics skipped",
				slog.String("project", raw.Key),
				slog.Any("error", err))
			return domain.ProjectStats{}
		})

	projects := make([]domain.Project, 0, len(raws))
	for i, raw := range raws {
		var s domain.ProjectStats
		if i < len(stats) {
			s = stats[i]
		}
		projects = append(projects, c.mapper.Project(raw, s))
	}
	return projects, nil
}

// GetProject returns the project with the given key, including its statistics
// when withStats is set.
func (c *Client) GetProject(ctx context.Context, key string, withStats bool) (domain.Project, error) {
	var raw rawProject
	if err := c.getJSON(ctx, c.endpoint("project/"+url.PathEscape(key), nil), projectPolicy, &raw); err != nil {
		if isNotFound(err) {
			return domain.Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, key)
		}
		return domain.Project{}, fmt.Errorf("failed to get project %s: %w", key, err)
	}

	var stats domain.ProjectStats
	if withStats {
		stats = c.ProjectStats(ctx, raw.Key)
	}
	return c.mapper.Project(raw, stats), nil
}

// ProjectStats counts a project's issues and its resolved issues.
// It never fails: a failed total yields zero stats, a failed resolved count
// keeps the total with zero completed.
func (c *Client) ProjectStats(ctx context.Context, key string) domain.ProjectStats {
	total, err := c.count(ctx, "project="+key, statsTotalPolicy)
	if err != nil {
		c.logger.Debug("issue count failed", slog.String("project", key), slog.Any("error", err))
		return domain.ProjectStats{}
	}

	resolved, err := c.count(ctx, fmt.Sprintf("project=%s AND %s", key, resolvedStatuses), statsResolvedPolicy)
	if err != nil {
		c.logger.Debug("resolved count failed", slog.String("project", key), slog.Any("error", err))
		resolved = 0
	}

	return domain.ProjectStats{IssueCount: total, CompletedIssueCount: resolved}
}

// count returns the number of issues matching jql without fetching any of them.
func (c *Client) count(ctx context.Context, jql string, policy callPolicy) (int, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", "0")

	var resp rawSearch
	if err := c.getJSON(ctx, c.endpoint("search", params), policy, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}
