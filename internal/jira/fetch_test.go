package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/h0rv/issuedeck/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "https://issues.example.org/jira/rest/api/2/project"

// scriptedDoer records every request and answers with respond.
type scriptedDoer struct {
	mu      sync.Mutex
	calls   []string
	respond func(call int, req *http.Request) (*http.Response, error)
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	idx := len(d.calls)
	d.calls = append(d.calls, req.URL.String())
	d.mu.Unlock()
	return d.respond(idx, req)
}

func (d *scriptedDoer) relayHosts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	hosts := make([]string, len(d.calls))
	for i, c := range d.calls {
		u, _ := url.Parse(c)
		hosts[i] = u.Host
	}
	return hosts
}

func createTestResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func createTestResolver(n int) *relay.Resolver {
	templates := make([]string, n)
	for i := range templates {
		templates[i] = fmt.Sprintf("https://r%d.example/?u=", i)
	}
	return relay.NewResolver(templates, nil)
}

// createTestFetcher returns a fetcher whose backoff waits are recorded instead of slept.
func createTestFetcher(relays int, doer HTTPDoer) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(createTestResolver(relays), doer, nil)
	sleeps := &[]time.Duration{}
	f.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return f, sleeps
}

func TestFetcher_AllRelaysFail(t *testing.T) {
	doer := &scriptedDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return createTestResponse(http.StatusInternalServerError, "boom"), nil
	}}
	f, sleeps := createTestFetcher(3, doer)

	resp, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 3, time.Second)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrExhaustedRetries)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, 2, relayErr.Attempt)
	assert.Equal(t, 2, relayErr.Relay)

	assert.Equal(t, []string{
		"r0.example", "r1.example", "r2.example",
		"r0.example", "r1.example", "r2.example",
		"r0.example", "r1.example", "r2.example",
	}, doer.relayHosts())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestFetcher_CallsNeverExceedGrid(t *testing.T) {
	for relays := 1; relays <= 4; relays++ {
		for attempts := 1; attempts <= 4; attempts++ {
			t.Run(fmt.Sprintf("relays=%d/attempts=%d", relays, attempts), func(t *testing.T) {
				doer := &scriptedDoer{respond: func(int, *http.Request) (*http.Response, error) {
					return createTestResponse(http.StatusTooManyRequests, ""), nil
				}}
				f, sleeps := createTestFetcher(relays, doer)

				_, err := f.Do(context.Background(), testEndpoint, jsonRequest(), attempts, time.Second)
				require.ErrorIs(t, err, ErrExhaustedRetries)

				hosts := doer.relayHosts()
				assert.Len(t, hosts, attempts*relays)
				for i, h := range hosts {
					assert.Equal(t, fmt.Sprintf("r%d.example", i%relays), h)
				}
				assert.Len(t, *sleeps, attempts-1)
			})
		}
	}
}

func TestFetcher_SuccessShortCircuits(t *testing.T) {
	doer := &scriptedDoer{respond: func(call int, _ *http.Request) (*http.Response, error) {
		if call == 1 {
			return createTestResponse(http.StatusOK, `{"ok":true}`), nil
		}
		return createTestResponse(http.StatusForbidden, ""), nil
	}}
	f, sleeps := createTestFetcher(3, doer)

	resp, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 3, time.Second)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, []string{"r0.example", "r1.example"}, doer.relayHosts())
	assert.Empty(t, *sleeps)
}

func TestFetcher_RelayStatusesAdvance(t *testing.T) {
	for _, status := range []int{408, 403, 429, 500} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			doer := &scriptedDoer{respond: func(call int, _ *http.Request) (*http.Response, error) {
				if call == 0 {
					return createTestResponse(status, ""), nil
				}
				return createTestResponse(http.StatusOK, "[]"), nil
			}}
			f, _ := createTestFetcher(2, doer)

			resp, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 1, time.Second)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Len(t, doer.relayHosts(), 2)
		})
	}
}

func TestFetcher_OtherStatusPropagates(t *testing.T) {
	doer := &scriptedDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return createTestResponse(http.StatusNotFound, "missing"), nil
	}}
	f, sleeps := createTestFetcher(3, doer)

	_, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 3, time.Second)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.NotErrorIs(t, err, ErrExhaustedRetries)
	assert.Len(t, doer.relayHosts(), 1)
	assert.Empty(t, *sleeps)
}

func TestFetcher_UnknownErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	doer := &scriptedDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return nil, boom
	}}
	f, _ := createTestFetcher(2, doer)

	_, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 2, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, doer.relayHosts(), 1)
}

func TestFetcher_TimeoutAdvances(t *testing.T) {
	doer := &scriptedDoer{respond: func(call int, req *http.Request) (*http.Response, error) {
		if call == 0 {
			<-req.Context().Done()
			return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: req.Context().Err()}
		}
		return createTestResponse(http.StatusOK, "{}"), nil
	}}
	f, _ := createTestFetcher(2, doer)

	resp, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 1, 20*time.Millisecond)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"r0.example", "r1.example"}, doer.relayHosts())
}

func TestFetcher_ConnectionRefusedAdvances(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	received := make(chan string, 1)
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.URL.Query().Get("u")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer live.Close()

	resolver := relay.NewResolver([]string{deadURL + "/?u=", live.URL + "/?u="}, nil)
	f := NewFetcher(resolver, live.Client(), nil)

	resp, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 1, 2*time.Second)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, testEndpoint, <-received)
}

func TestFetcher_CallerCancellationStopsBackoff(t *testing.T) {
	doer := &scriptedDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return createTestResponse(http.StatusInternalServerError, ""), nil
	}}
	f := NewFetcher(createTestResolver(1), doer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Do(ctx, testEndpoint, jsonRequest(), 3, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, doer.relayHosts(), 1)
}

func TestFetcher_SendsHeaders(t *testing.T) {
	var accept string
	doer := &scriptedDoer{respond: func(_ int, req *http.Request) (*http.Response, error) {
		accept = req.Header.Get("Accept")
		return createTestResponse(http.StatusOK, "{}"), nil
	}}
	f, _ := createTestFetcher(1, doer)

	resp, err := f.Do(context.Background(), testEndpoint, jsonRequest(), 1, time.Second)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "application/json", accept)
}

func TestRetryState_Grid(t *testing.T) {
	s := newRetryState(2, 2)

	rolled, exhausted := s.advance()
	assert.False(t, rolled)
	assert.False(t, exhausted)
	assert.Equal(t, 0, s.attempt)
	assert.Equal(t, 1, s.relay)

	rolled, exhausted = s.advance()
	assert.True(t, rolled)
	assert.False(t, exhausted)
	assert.Equal(t, 1, s.attempt)
	assert.Equal(t, 0, s.relay)
	assert.Equal(t, time.Second, s.backoff())

	s.advance()
	rolled, exhausted = s.advance()
	assert.True(t, rolled)
	assert.True(t, exhausted)
}

func TestRetryState_ExhaustedWithoutError(t *testing.T) {
	s := newRetryState(0, 1)
	assert.Equal(t, 1, s.maxAttempts)
	assert.Equal(t, ErrExhaustedRetries, s.exhaustedErr())
}
