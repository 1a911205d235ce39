// Package reconcile decides, per query, whether the caller sees remote records,
// local records or an error.
//
// Remote data takes absolute precedence once it arrives with at least one record.
// Until then, and whenever the remote side fails or comes back empty, the local
// collection is served. Remote results are never written to the local store.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/h0rv/issuedeck/internal/domain"
)

// ErrNoRecords is reported when neither the remote service nor the local store
// has anything to show.
var ErrNoRecords = errors.New("no records available")

// FetchState is the lifecycle of one remote fetch.
type FetchState int

const (
	StateIdle FetchState = iota
	StateLoading
	StateSuccess
	StateError
)

func (s FetchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Remote is the current state of the remote side of a query.
type Remote[T any] struct {
	State FetchState
	Data  []T   // Set when State is StateSuccess
	Err   error // Set when State is StateError
}

// Outcome classifies a resolved remote fetch. Unresolved fetches report OutcomeEmpty.
func (r Remote[T]) Outcome() domain.Outcome {
	if r.State == StateError {
		return domain.OutcomeOf(0, r.Err)
	}
	return domain.OutcomeOf(len(r.Data), nil)
}

// Result is the derived collection handed to the UI.
type Result[T any] struct {
	Data      []T
	IsLoading bool
	IsError   bool
	Err       error

	LocalPortion  []T // Local collection as read for this result
	RemotePortion []T // Remote records, empty until a fetch succeeds
}

// Reconcile applies the precedence policy. prior is the previously published
// data for the same query; it is kept visible while a fetch is in flight.
func Reconcile[T any](remote Remote[T], local []T, enabled bool, prior []T) Result[T] {
	local = nonNil(local)

	if !enabled {
		return Result[T]{
			Data:          local,
			LocalPortion:  local,
			RemotePortion: []T{},
		}
	}

	switch remote.State {
	case StateIdle, StateLoading:
		data := local
		if len(prior) > 0 {
			data = prior
		}
		return Result[T]{
			Data:          data,
			IsLoading:     true,
			LocalPortion:  local,
			RemotePortion: []T{},
		}

	case StateSuccess:
		if len(remote.Data) > 0 {
			return Result[T]{
				Data:          remote.Data,
				LocalPortion:  local,
				RemotePortion: remote.Data,
			}
		}
		return fallback(local, []T{}, nil)

	default:
		return fallback(local, []T{}, remote.Err)
	}
}

// fallback serves local records, raising an error only if there are none.
func fallback[T any](local, remote []T, cause error) Result[T] {
	r := Result[T]{
		Data:          local,
		LocalPortion:  local,
		RemotePortion: remote,
	}
	if len(local) > 0 {
		return r
	}

	r.IsError = true
	if cause != nil {
		r.Err = fmt.Errorf("%w: %w", ErrNoRecords, cause)
	} else {
		r.Err = ErrNoRecords
	}
	return r
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
