// Package jira provides a read-only client for the Jira REST API v2.
// It implements a deep module interface: simple methods hiding relay rotation,
// retries and the mapping from Jira's payloads to canonical records.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h0rv/issuedeck/internal/relay"
)

// DefaultBaseURL is the public Jira instance queried when none is configured.
const DefaultBaseURL = "https://issues.apache.org/jira"

// ErrIssueNotFound is returned when the remote has no issue with the requested key.
var ErrIssueNotFound = errors.New("issue not found")

// ErrProjectNotFound is returned when the remote has no project with the requested key.
var ErrProjectNotFound = errors.New("project not found")

// callPolicy is the retry budget for one kind of remote call.
type callPolicy struct {
	attempts int
	timeout  time.Duration
}

var (
	searchPolicy        = callPolicy{attempts: 2, timeout: 15 * time.Second}
	issuePolicy         = callPolicy{attempts: 2, timeout: 15 * time.Second}
	listProjectsPolicy  = callPolicy{attempts: 3, timeout: 20 * time.Second}
	projectPolicy       = callPolicy{attempts: 2, timeout: 15 * time.Second}
	statsTotalPolicy    = callPolicy{attempts: 2, timeout: 10 * time.Second}
	statsResolvedPolicy = callPolicy{attempts: 1, timeout: 8 * time.Second}
)

// Client is a Jira REST client routed through CORS relays.
type Client struct {
	baseURL string
	fetch   *Fetcher
	mapper  Mapper
	logger  *slog.Logger

	projectLimit int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPDoer replaces the HTTP transport used for every relay attempt.
func WithHTTPDoer(doer HTTPDoer) Option {
	return func(c *Client) { c.fetch.http = doer }
}

// WithLogger sets the logger used for relay failures and skipped statistics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			c.fetch.logger = logger
		}
	}
}

// WithProjectLimit caps how many projects ListProjects returns.
func WithProjectLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.projectLimit = n
		}
	}
}

// withSleep replaces the backoff sleep (tests only).
func withSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.fetch.sleep = sleep }
}

// New creates a client for the Jira instance at baseURL.
// An empty baseURL uses DefaultBaseURL.
func New(baseURL string, resolver *relay.Resolver, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	c := &Client{
		baseURL:      baseURL,
		fetch:        NewFetcher(resolver, nil, nil),
		mapper:       NewMapper(baseURL),
		logger:       slog.Default(),
		projectLimit: DefaultProjectLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the Jira instance this client queries.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BrowseURL returns the web URL of the issue with the given key.
func (c *Client) BrowseURL(key string) string {
	return c.mapper.BrowseURL(key)
}

// endpoint builds an absolute API URL from a path and query parameters.
func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + "/rest/api/2/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// getJSON performs a GET request through the relays and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, policy callPolicy, out any) error {
	resp, err := c.fetch.Do(ctx, endpoint, jsonRequest(), policy.attempts, policy.timeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// isNotFound reports whether err is a 404 from the remote.
func isNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
