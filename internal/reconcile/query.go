package reconcile

import (
	"context"
	"log/slog"
	"sync"
)

// FetchFunc performs the remote side of a query.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Query is one live reconciled collection. Each Run supersedes the previous
// one; results of superseded runs are dropped when they arrive.
type Query[T any] struct {
	name   string
	local  func() []T
	logger *slog.Logger

	mu      sync.Mutex
	key     string
	enabled bool
	gen     uint64 // Incremented by every Run
	remote  Remote[T]
	last    Result[T]
	lastKey string

	pubMu   sync.Mutex // Serializes publish so subscribers see results in order
	subMu   sync.Mutex
	subs    map[int]func(Result[T])
	nextSub int
}

// NewQuery creates a query whose local side is read with local.
// A nil logger uses slog.Default().
func NewQuery[T any](name string, local func() []T, logger *slog.Logger) *Query[T] {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Query[T]{
		name:   name,
		local:  local,
		logger: logger,
		subs:   make(map[int]func(Result[T])),
	}
	q.last = Reconcile(Remote[T]{}, q.readLocal(), false, nil)
	return q
}

func (q *Query[T]) readLocal() []T {
	if q.local == nil {
		return []T{}
	}
	return q.local()
}

// Run starts a new remote fetch for key, superseding any fetch in flight.
// With enabled false or a nil fetch no request is made and the local collection
// is published. The returned channel is closed once this run has finished,
// whether its result was published or dropped as stale.
func (q *Query[T]) Run(ctx context.Context, key string, enabled bool, fetch FetchFunc[T]) <-chan struct{} {
	done := make(chan struct{})

	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.key = key
	q.enabled = enabled && fetch != nil
	if !q.enabled {
		q.remote = Remote[T]{State: StateIdle}
		q.mu.Unlock()
		q.publish()
		close(done)
		return done
	}
	q.remote = Remote[T]{State: StateLoading}
	q.mu.Unlock()
	q.publish()

	go func() {
		defer close(done)
		data, err := fetch(ctx)

		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			q.logger.Debug("dropping stale result",
				slog.String("query", q.name),
				slog.String("key", key))
			return
		}
		if err != nil {
			q.remote = Remote[T]{State: StateError, Err: err}
		} else {
			q.remote = Remote[T]{State: StateSuccess, Data: nonNil(data)}
		}
		q.mu.Unlock()

		if err != nil {
			q.logger.Warn("remote fetch failed, serving local records",
				slog.String("query", q.name),
				slog.Any("error", err))
		}
		q.publish()
	}()
	return done
}

// LocalChanged re-reads the local collection and republishes.
func (q *Query[T]) LocalChanged() {
	q.publish()
}

// Snapshot returns the most recently published result.
func (q *Query[T]) Snapshot() Result[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// Key returns the identity of the current run.
func (q *Query[T]) Key() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.key
}

// Subscribe registers fn to receive every published result. fn must not call Run.
// The returned function removes the subscription.
func (q *Query[T]) Subscribe(fn func(Result[T])) (cancel func()) {
	q.subMu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = fn
	q.subMu.Unlock()

	return func() {
		q.subMu.Lock()
		delete(q.subs, id)
		q.subMu.Unlock()
	}
}

func (q *Query[T]) publish() {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	local := q.readLocal()

	q.mu.Lock()
	var prior []T
	if q.lastKey == q.key {
		prior = q.last.Data
	}
	r := Reconcile(q.remote, local, q.enabled, prior)
	q.last = r
	q.lastKey = q.key
	q.mu.Unlock()

	q.subMu.Lock()
	fns := make([]func(Result[T]), 0, len(q.subs))
	for _, fn := range q.subs {
		fns = append(fns, fn)
	}
	q.subMu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}
