package jira

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/h0rv/issuedeck/internal/relay"
)

// ErrExhaustedRetries indicates every relay failed on every attempt.
var ErrExhaustedRetries = errors.New("failed to fetch after all retries")

// HTTPDoer performs HTTP requests (allows substituting transports in tests).
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// RelayError is a failure attributable to one relay on one attempt.
// Fetcher recovers from these by moving on to the next relay.
type RelayError struct {
	Attempt int
	Relay   int
	Err     error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %d (attempt %d): %v", e.Relay, e.Attempt, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// relayStatuses are responses that say more about the relay than about the target.
var relayStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusForbidden:           true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
}

// RequestOptions configures a single logical request.
type RequestOptions struct {
	Method string
	Header http.Header
}

func jsonRequest() RequestOptions {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	return RequestOptions{Method: http.MethodGet, Header: h}
}

// Fetcher issues requests through relays with per-attempt deadlines, relay rotation
// and exponential backoff between attempts.
type Fetcher struct {
	resolver *relay.Resolver
	http     HTTPDoer
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher. A nil doer uses http.DefaultClient, a nil logger slog.Default().
func NewFetcher(resolver *relay.Resolver, doer HTTPDoer, logger *slog.Logger) *Fetcher {
	if resolver == nil {
		resolver = relay.NewResolver(nil, nil)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		resolver: resolver,
		http:     doer,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// retryState tracks the position in the attempts x relays grid.
type retryState struct {
	attempt     int
	relay       int
	maxAttempts int
	relays      int
	lastErr     error
}

func newRetryState(maxAttempts, relays int) *retryState {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryState{maxAttempts: maxAttempts, relays: relays}
}

// advance moves to the next relay. rolled reports that the attempt finished and a
// new one begins; exhausted reports that no attempts remain.
func (s *retryState) advance() (rolled, exhausted bool) {
	s.relay++
	if s.relay < s.relays {
		return false, false
	}
	s.relay = 0
	s.attempt++
	return true, s.attempt >= s.maxAttempts
}

// backoff is the pause before the current attempt: 2^(previous attempt) seconds.
func (s *retryState) backoff() time.Duration {
	return time.Duration(1<<uint(s.attempt-1)) * time.Second
}

func (s *retryState) exhaustedErr() error {
	if s.lastErr == nil {
		return ErrExhaustedRetries
	}
	return fmt.Errorf("%w: %w", ErrExhaustedRetries, s.lastErr)
}

// Do performs one logical request against endpoint, routed through the resolver's relays.
// Relays are tried strictly in order; a 2xx response is returned immediately.
// The caller must close the response body.
func (f *Fetcher) Do(ctx context.Context, endpoint string, opts RequestOptions, maxAttempts int, timeout time.Duration) (*http.Response, error) {
	// Snapshot the list so the order is fixed for the whole call.
	templates := f.resolver.Templates()
	state := newRetryState(maxAttempts, len(templates))

	for {
		target := relay.Apply(templates[state.relay], endpoint)
		resp, err := f.try(ctx, target, opts, timeout)
		if err == nil {
			return resp, nil
		}

		var relayErr *RelayError
		if !errors.As(err, &relayErr) {
			return nil, err
		}
		relayErr.Attempt = state.attempt
		relayErr.Relay = state.relay
		state.lastErr = relayErr
		f.logger.Warn("relay request failed",
			slog.Int("attempt", state.attempt),
			slog.Int("relay", state.relay),
			slog.Any("error", relayErr.Err))

		rolled, exhausted := state.advance()
		if exhausted {
			return nil, state.exhaustedErr()
		}
		if rolled {
			wait := state.backoff()
			f.logger.Debug("all relays failed, backing off",
				slog.Int("next_attempt", state.attempt),
				slog.Duration("wait", wait))
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
}

// try performs a single request against one relay-wrapped URL.
func (f *Fetcher) try(ctx context.Context, target string, opts RequestOptions, timeout time.Duration) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if opts.Header != nil {
		req.Header = opts.Header.Clone()
	}

	resp, err := f.http.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || isNetworkError(err) {
			return nil, &RelayError{Err: err}
		}
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	cancel()

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	if relayStatuses[resp.StatusCode] {
		return nil, &RelayError{Err: httpErr}
	}
	return nil, httpErr
}

// isNetworkError reports transport-level failures: refused or reset connections,
// DNS and dial errors, truncated responses and certificate problems on the relay.
func isNetworkError(err error) bool {
	// *url.Error satisfies net.Error itself, so classify what it wraps.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET)
}

// cancelOnClose keeps the attempt context alive until the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
