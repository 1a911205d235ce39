package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestIssues(prefix string, n int) []domain.Issue {
	issues := make([]domain.Issue, n)
	for i := range issues {
		issues[i] = domain.Issue{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			IssueNumber: fmt.Sprintf("%s-%d", prefix, i+1),
			Title:       fmt.Sprintf("%s issue %d", prefix, i),
			Status:      domain.StatusTodo,
		}
	}
	return issues
}

func TestReconcile_DisabledReturnsLocal(t *testing.T) {
	local := createTestIssues("local", 2)
	remotes := []Remote[domain.Issue]{
		{State: StateIdle},
		{State: StateLoading},
		{State: StateSuccess, Data: createTestIssues("remote", 5)},
		{State: StateError, Err: errors.New("boom")},
	}

	for _, remote := range remotes {
		t.Run(remote.State.String(), func(t *testing.T) {
			r := Reconcile(remote, local, false, createTestIssues("prior", 1))
			assert.Equal(t, local, r.Data)
			assert.False(t, r.IsLoading)
			assert.False(t, r.IsError)
			assert.NoError(t, r.Err)
		})
	}
}

func TestReconcile_DisabledEmptyLocalIsNotAnError(t *testing.T) {
	r := Reconcile(Remote[domain.Issue]{}, nil, false, nil)
	assert.NotNil(t, r.Data)
	assert.Empty(t, r.Data)
	assert.False(t, r.IsError)
}

func TestReconcile_LoadingKeepsPrior(t *testing.T) {
	local := createTestIssues("local", 2)
	prior := createTestIssues("prior", 3)

	r := Reconcile(Remote[domain.Issue]{State: StateLoading}, local, true, prior)
	assert.True(t, r.IsLoading)
	assert.Equal(t, prior, r.Data)
	assert.False(t, r.IsError)

	r = Reconcile(Remote[domain.Issue]{State: StateLoading}, local, true, nil)
	assert.True(t, r.IsLoading)
	assert.Equal(t, local, r.Data)
}

func TestReconcile_RemoteTakesPrecedence(t *testing.T) {
	local := createTestIssues("local", 2)
	remote := createTestIssues("remote", 5)

	r := Reconcile(Remote[domain.Issue]{State: StateSuccess, Data: remote}, local, true, nil)

	assert.Len(t, r.Data, 5)
	assert.Equal(t, remote, r.Data)
	assert.Equal(t, remote, r.RemotePortion)
	assert.Equal(t, local, r.LocalPortion)
	assert.False(t, r.IsLoading)
	assert.False(t, r.IsError)
}

func TestReconcile_EmptyRemoteFallsBackToLocal(t *testing.T) {
	local := createTestIssues("local", 3)

	r := Reconcile(Remote[domain.Issue]{State: StateSuccess, Data: []domain.Issue{}}, local, true, nil)

	assert.Equal(t, local, r.Data)
	assert.False(t, r.IsError)
	assert.NoError(t, r.Err)
}

func TestReconcile_FailedRemoteFallsBackToLocal(t *testing.T) {
	local := createTestIssues("local", 1)

	r := Reconcile(Remote[domain.Issue]{State: StateError, Err: errors.New("relays down")}, local, true, nil)

	assert.Equal(t, local, r.Data)
	assert.False(t, r.IsError)
}

func TestReconcile_ErrorOnlyWhenBothEmpty(t *testing.T) {
	cause := errors.New("relays down")

	r := Reconcile(Remote[domain.Issue]{State: StateError, Err: cause}, nil, true, nil)
	assert.True(t, r.IsError)
	assert.Empty(t, r.Data)
	assert.ErrorIs(t, r.Err, ErrNoRecords)
	assert.ErrorIs(t, r.Err, cause)

	r = Reconcile(Remote[domain.Issue]{State: StateSuccess}, nil, true, nil)
	assert.True(t, r.IsError)
	assert.Equal(t, ErrNoRecords, r.Err)
}

func TestRemote_Outcome(t *testing.T) {
	assert.Equal(t, domain.OutcomeData, Remote[int]{State: StateSuccess, Data: []int{1}}.Outcome().Kind)
	assert.Equal(t, domain.OutcomeEmpty, Remote[int]{State: StateSuccess}.Outcome().Kind)

	failed := Remote[int]{State: StateError, Err: errors.New("x")}.Outcome()
	require.Equal(t, domain.OutcomeFailed, failed.Kind)
	assert.EqualError(t, failed.Reason, "x")
}
