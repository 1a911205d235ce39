package jira

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://issues.example.org/jira"

func strPtr(s string) *string { return &s }

func createTestRawIssue(t *testing.T, body string) rawIssue {
	t.Helper()
	var raw rawIssue
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func TestMapStatus_Table(t *testing.T) {
	cases := map[string]domain.Status{
		"To Do":       domain.StatusTodo,
		"In Progress": domain.StatusInProgress,
		"Done":        domain.StatusDone,
		"Closed":      domain.StatusDone,
		"Resolved":    domain.StatusDone,
		"Backlog":     domain.StatusBacklog,
		"In Review":   domain.StatusInProgress,
		"Blocked":     domain.StatusBacklog,
		"Cancelled":   domain.StatusCancelled,
		"Won't Fix":   domain.StatusCancelled,
		"Duplicate":   domain.StatusDuplicate,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapStatus(in), in)
	}
}

func TestMapStatus_PassthroughAndIdempotent(t *testing.T) {
	odd := MapStatus("Waiting for QA")
	assert.Equal(t, domain.Status("Waiting for QA"), odd)
	assert.False(t, odd.Known())

	for _, s := range append([]string{"To Do", "Resolved", "Blocked", "", "Waiting for QA"}, statusNames()...) {
		once := MapStatus(s)
		assert.Equal(t, once, MapStatus(string(once)), s)
	}
}

func statusNames() []string {
	names := make([]string, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		names = append(names, string(s))
	}
	return names
}

func TestMapPriority(t *testing.T) {
	assert.Equal(t, domain.PriorityUrgent, MapPriority(&rawPriority{Name: "Blocker"}))
	assert.Equal(t, domain.PriorityHigh, MapPriority(&rawPriority{Name: "Major"}))
	assert.Equal(t, domain.PriorityMedium, MapPriority(&rawPriority{Name: "Medium"}))
	assert.Equal(t, domain.PriorityLow, MapPriority(&rawPriority{Name: "Trivial"}))
	assert.Equal(t, domain.PriorityMedium, MapPriority(&rawPriority{Name: "P0"}))
	assert.Equal(t, domain.PriorityMedium, MapPriority(nil))
}

func TestPersonDisplay(t *testing.T) {
	assert.Equal(t, "JD Jane Doe", PersonDisplay(&rawUser{DisplayName: "Jane Doe"}))
	assert.Equal(t, "Unassigned", PersonDisplay(nil))
	assert.Equal(t, "UU Unknown User", PersonDisplay(&rawUser{}))
	assert.Equal(t, "AB alice bob carol", PersonDisplay(&rawUser{DisplayName: "alice bob carol"}))
	assert.Equal(t, "Z zed", PersonDisplay(&rawUser{DisplayName: "zed"}))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "bold italic & more", PlainText(strPtr("<p><b>bold</b> <i>italic</i> &amp; more</p>")))
	assert.Equal(t, `a < b > c "d" 'e'`, PlainText(strPtr("a &lt; b &gt; c &quot;d&quot; &#39;e&#39;")))
	assert.Equal(t, "x y", PlainText(strPtr("  x&nbsp;y \n")))
	assert.Equal(t, "", PlainText(nil))

	plain := "already plain text"
	assert.Equal(t, plain, PlainText(&plain))
	assert.Equal(t, plain, plainText(plainText(plain)))
}

func TestMapper_Issue(t *testing.T) {
	raw := createTestRawIssue(t, `{
		"id": "10042",
		"key": "FLINK-7",
		"fields": {
			"summary": "Checkpoint stalls",
			"description": "<p>Stalls on <b>large</b> state</p>",
			"status": {"name": "In Review"},
			"priority": {"name": "Critical"},
			"assignee": {"displayName": "Jane Doe"},
			"reporter": {"displayName": "Rob Pike"},
			"labels": ["runtime", "checkpointing"],
			"created": "2024-03-05T10:11:12.000+0100",
			"issuelinks": [
				{"type": {"name": "Blocks"}, "outwardIssue": {"key": "FLINK-8", "fields": {"summary": "Follow-up"}}},
				{"type": {"name": "Relates"}, "inwardIssue": {"key": "FLINK-2", "fields": {}}},
				{"type": {"name": "Relates"}}
			],
			"subtasks": [
				{"key": "FLINK-9", "fields": {"summary": "Add metric", "status": {"name": "Done"}}},
				{"key": "FLINK-10", "fields": {"summary": "Write docs"}}
			]
		}
	}`)

	issue := NewMapper(testBaseURL + "/").Issue(raw)

	assert.Equal(t, "10042", issue.ID)
	assert.Equal(t, "FLINK-7", issue.IssueNumber)
	assert.Equal(t, "Checkpoint stalls", issue.Title)
	assert.Equal(t, "Stalls on large state", issue.Description)
	assert.Equal(t, domain.StatusInProgress, issue.Status)
	assert.Equal(t, domain.PriorityUrgent, issue.Priority)
	assert.Equal(t, "JD Jane Doe", issue.Assignee)
	assert.Equal(t, "RP Rob Pike", issue.CreatedBy)
	assert.Equal(t, []string{"runtime", "checkpointing"}, issue.Labels)
	assert.Equal(t, domain.OriginRemote, issue.Origin)
	assert.True(t, issue.CreatedAt.Equal(time.Date(2024, 3, 5, 9, 11, 12, 0, time.UTC)))

	require.Len(t, issue.Links, 3)
	assert.Equal(t, domain.LinkRef{ID: "link-10042-0", URL: testBaseURL + "/browse/FLINK-8", Title: "Follow-up"}, issue.Links[0])
	assert.Equal(t, domain.LinkRef{ID: "link-10042-1", URL: testBaseURL + "/browse/FLINK-2", Title: "Related issue"}, issue.Links[1])
	assert.Equal(t, domain.LinkRef{ID: "link-10042-2", Title: "Related issue"}, issue.Links[2])

	require.Len(t, issue.SubIssues, 2)
	assert.Equal(t, domain.SubIssueRef{ID: "subtask-10042-0", Title: "Add metric", Status: domain.StatusDone}, issue.SubIssues[0])
	assert.Equal(t, domain.SubIssueRef{ID: "subtask-10042-1", Title: "Write docs", Status: domain.StatusTodo}, issue.SubIssues[1])
}

func TestMapper_IssueDefaults(t *testing.T) {
	raw := createTestRawIssue(t, `{"id": "1", "key": "X-1", "fields": {"created": "not a date"}}`)

	issue := NewMapper(testBaseURL).Issue(raw)

	assert.Equal(t, "No title", issue.Title)
	assert.Equal(t, "", issue.Description)
	assert.Equal(t, domain.StatusBacklog, issue.Status)
	assert.Equal(t, domain.PriorityMedium, issue.Priority)
	assert.Equal(t, "Unassigned", issue.Assignee)
	assert.Equal(t, "Unassigned", issue.CreatedBy)
	assert.NotNil(t, issue.Labels)
	assert.Empty(t, issue.Links)
	assert.Empty(t, issue.SubIssues)
	assert.True(t, issue.CreatedAt.IsZero())
}

func TestMapper_IssueCreatorPreferredOverReporter(t *testing.T) {
	raw := createTestRawIssue(t, `{"id": "1", "fields": {
		"creator": {"displayName": "Ken Thompson"},
		"reporter": {"displayName": "Rob Pike"},
		"created": "2024-03-05T10:11:12Z"
	}}`)

	issue := NewMapper(testBaseURL).Issue(raw)
	assert.Equal(t, "KT Ken Thompson", issue.CreatedBy)
	assert.Equal(t, 2024, issue.CreatedAt.Year())
}

func TestMapper_Project(t *testing.T) {
	raw := rawProject{
		ID:          "100",
		Key:         "FLINK",
		Name:        "flink",
		Description: strPtr("<p>Stream processing</p>"),
		Lead: &rawUser{
			DisplayName: "Jane Doe",
			AvatarURLs:  map[string]string{"48x48": "https://a/48.png", "16x16": "https://a/16.png"},
		},
	}

	p := NewMapper(testBaseURL).Project(raw, domain.ProjectStats{IssueCount: 10, CompletedIssueCount: 5})

	assert.Equal(t, "100", p.ID)
	assert.Equal(t, "FLINK", p.Key)
	assert.Equal(t, "Stream processing", p.Description)
	assert.Equal(t, "F", p.Icon)
	assert.Equal(t, projectPalette['F'%10], p.Color)
	assert.Equal(t, domain.ProjectActive, p.Status)
	assert.Equal(t, domain.HealthAtRisk, p.Health)
	require.NotNil(t, p.Lead)
	assert.Equal(t, "Jane Doe", p.Lead.Name)
	assert.Equal(t, "https://a/48.png", p.Lead.Avatar)
}

func TestMapper_ProjectWithoutStats(t *testing.T) {
	p := NewMapper(testBaseURL).Project(rawProject{ID: "7", Key: "AB", Name: "", Archived: true}, domain.ProjectStats{})

	assert.Equal(t, 0, p.IssueCount)
	assert.Equal(t, domain.HealthOnTrack, p.Health)
	assert.Equal(t, domain.ProjectArchived, p.Status)
	assert.Equal(t, "?", p.Icon)
	assert.Nil(t, p.Lead)
}

func TestProjectColor_Deterministic(t *testing.T) {
	assert.Equal(t, ProjectColor("KAFKA"), ProjectColor("KEY"))
	assert.Equal(t, projectPalette[0], ProjectColor(""))
	for _, key := range []string{"A", "B", "ZZZ", "9"} {
		assert.Contains(t, projectPalette, ProjectColor(key))
	}
}
