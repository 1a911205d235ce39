// Package tui provides Bubble Tea models for the interactive TUI.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/reconcile"
)

// ProjectSelectedMsg is emitted when the user selects a project.
type ProjectSelectedMsg struct {
	Project domain.Project
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

// issuesResultMsg carries a published issue result into the program.
type issuesResultMsg struct {
	result reconcile.Result[domain.Issue]
}

// projectsResultMsg carries a published project result into the program.
type projectsResultMsg struct {
	result reconcile.Result[domain.Project]
}

// feed turns query publications into a stream of Bubble Tea messages.
// Only the newest unread result is kept; older unread results are replaced.
type feed[T any] struct {
	ch          chan reconcile.Result[T]
	done        chan struct{}
	unsubscribe func()
	once        sync.Once
}

func watchQuery[T any](q *reconcile.Query[T]) *feed[T] {
	f := &feed[T]{
		ch:   make(chan reconcile.Result[T], 1),
		done: make(chan struct{}),
	}
	f.unsubscribe = q.Subscribe(func(r reconcile.Result[T]) {
		for {
			select {
			case f.ch <- r:
				return
			case <-f.done:
				return
			default:
			}
			select {
			case <-f.ch:
			default:
			}
		}
	})
	return f
}

// next waits for the next published result. It yields no message once the
// feed is cancelled.
func (f *feed[T]) next(wrap func(reconcile.Result[T]) tea.Msg) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case r := <-f.ch:
			return wrap(r)
		case <-f.done:
			return nil
		}
	}
}

func (f *feed[T]) cancel() {
	f.once.Do(func() {
		f.unsubscribe()
		close(f.done)
	})
}

func wrapIssues(r reconcile.Result[domain.Issue]) tea.Msg { return issuesResultMsg{result: r} }

func wrapProjects(r reconcile.Result[domain.Project]) tea.Msg { return projectsResultMsg{result: r} }
