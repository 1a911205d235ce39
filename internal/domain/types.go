// Package domain defines the canonical issue and project records shown by issuedeck.
// These types are independent of the Jira REST representation and of the local store format.
package domain

import "time"

// Status is the canonical workflow state of an issue.
// Values outside the closed set are passed through unchanged from the remote service.
type Status string

// Canonical statuses, in board column order.
const (
	StatusBacklog    Status = "Backlog"
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusCancelled  Status = "Cancelled"
	StatusDuplicate  Status = "Duplicate"
)

// Statuses lists the closed status set in display order.
var Statuses = []Status{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusDone,
	StatusCancelled,
	StatusDuplicate,
}

// Known reports whether s is one of the canonical statuses.
// A false result marks a passthrough value received from the remote service.
func (s Status) Known() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority is the canonical urgency of an issue.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Origin records where a record came from.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// LinkRef is a reference to a related issue.
type LinkRef struct {
	ID    string `json:"id"`    // Synthetic id: link-<parentID>-<index>
	URL   string `json:"url"`   // Browse URL of the linked issue (may be empty)
	Title string `json:"title"` // Summary of the linked issue
}

// SubIssueRef is a reference to a sub-task of an issue.
type SubIssueRef struct {
	ID     string `json:"id"` // Synthetic id: subtask-<parentID>-<index>
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// Issue represents a work item in canonical form.
type Issue struct {
	ID          string        `json:"id"`          // Remote native id, or local-<...> for user-created issues
	IssueNumber string        `json:"issueNumber"` // Human-facing key (e.g. "FLINK-123")
	Title       string        `json:"title"`
	Description string        `json:"description"` // Plain text, markup stripped
	Status      Status        `json:"status"`
	Priority    Priority      `json:"priority"`
	Assignee    string        `json:"assignee"`  // "<INITIALS> <name>" or "Unassigned"
	CreatedBy   string        `json:"createdBy"` // "<INITIALS> <name>"
	Labels      []string      `json:"labels"`
	Links       []LinkRef     `json:"links"`
	SubIssues   []SubIssueRef `json:"subIssues"`
	CreatedAt   time.Time     `json:"createdAt"`
	Origin      Origin        `json:"origin,omitempty"`
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectArchived  ProjectStatus = "archived"
	ProjectCompleted ProjectStatus = "completed"
)

// Health is the computed progress classification of a project.
type Health string

const (
	HealthOnTrack  Health = "On track"
	HealthAtRisk   Health = "At risk"
	HealthOffTrack Health = "Off track"
)

// HealthFor classifies progress from completed and total issue counts.
// Projects without issues are always on track.
func HealthFor(completed, total int) Health {
	if total <= 0 {
		return HealthOnTrack
	}
	ratio := float64(completed) / float64(total)
	switch {
	case ratio > 0.7:
		return HealthOnTrack
	case ratio > 0.4:
		return HealthAtRisk
	default:
		return HealthOffTrack
	}
}

// Lead is the person responsible for a project.
type Lead struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Project represents a project in canonical form.
type Project struct {
	ID                  string        `json:"id"`
	Key                 string        `json:"subtitle"` // Remote project key, shown as subtitle
	Name                string        `json:"name"`
	Description         string        `json:"description"`
	Color               string        `json:"color"` // Hex color derived from the key
	Icon                string        `json:"icon"`  // Single glyph
	IssueCount          int           `json:"issueCount"`
	CompletedIssueCount int           `json:"completedIssueCount"`
	Status              ProjectStatus `json:"status"`
	Health              Health        `json:"health"`
	Lead                *Lead         `json:"lead,omitempty"`
	TargetDate          *time.Time    `json:"targetDate,omitempty"`
	Origin              Origin        `json:"origin,omitempty"`
}

// ProjectStats holds per-project issue counts. The zero value is the default for
// projects whose statistics were skipped or could not be fetched.
type ProjectStats struct {
	IssueCount          int
	CompletedIssueCount int
}

// OutcomeKind classifies the result of a remote operation.
type OutcomeKind int

const (
	OutcomeData   OutcomeKind = iota // Succeeded with at least one record
	OutcomeEmpty                     // Succeeded with no records
	OutcomeFailed                    // Failed, see Reason
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeData:
		return "data"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the tri-state result of a remote fetch.
type Outcome struct {
	Kind   OutcomeKind
	Reason error
}

// OutcomeOf builds the outcome for a fetch that returned n records and err.
func OutcomeOf(n int, err error) Outcome {
	switch {
	case err != nil:
		return Outcome{Kind: OutcomeFailed, Reason: err}
	case n == 0:
		return Outcome{Kind: OutcomeEmpty}
	default:
		return Outcome{Kind: OutcomeData}
	}
}
