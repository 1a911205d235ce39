package store

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// DefaultWatchInterval is how often Watch checks the store file for changes.
const DefaultWatchInterval = 2 * time.Second

// Subscribe registers fn to be called after every change. Callbacks run on the
// goroutine that made the change and must not call back into Subscribe.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Reload re-reads the store file and notifies subscribers with OriginExternal.
// In-memory stores only notify.
func (s *Store) Reload() error {
	if s.path != "" {
		doc, modTime, err := readDocument(s.path)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.doc = doc
		s.modTime = modTime
		s.mu.Unlock()
	}

	for _, kind := range []Kind{KindIssues, KindProjects, KindSettings} {
		s.notify(Change{Kind: kind, Origin: OriginExternal})
	}
	return nil
}

// Watch polls the store file every interval and reloads it when another process
// has modified it. It returns when ctx is done. In-memory stores return at once.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.changedOnDisk() {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("failed to reload store",
					slog.String("path", s.path),
					slog.Any("error", err))
			} else {
				s.logger.Debug("store reloaded", slog.String("path", s.path))
			}
		}
	}
}

func (s *Store) changedOnDisk() bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !info.ModTime().Equal(s.modTime)
}
