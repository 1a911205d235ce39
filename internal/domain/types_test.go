package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthFor(t *testing.T) {
	tests := []struct {
		name             string
		completed, total int
		want             Health
	}{
		{"no issues", 0, 0, HealthOnTrack},
		{"above 0.7", 8, 10, HealthOnTrack},
		{"exactly 0.7", 7, 10, HealthAtRisk},
		{"above 0.4", 5, 10, HealthAtRisk},
		{"exactly 0.4", 4, 10, HealthOffTrack},
		{"none done", 0, 3, HealthOffTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HealthFor(tt.completed, tt.total))
		})
	}
}

func TestStatusKnown(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Known(), s)
	}
	assert.False(t, Status("Patch Review").Known())
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeData, OutcomeOf(3, nil).Kind)
	assert.Equal(t, OutcomeEmpty, OutcomeOf(0, nil).Kind)

	failed := OutcomeOf(3, errors.New("boom"))
	assert.Equal(t, OutcomeFailed, failed.Kind)
	assert.EqualError(t, failed.Reason, "boom")
	assert.Equal(t, "failed", failed.Kind.String())
}
