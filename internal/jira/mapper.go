package jira

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/h0rv/issuedeck/internal/domain"
)

// Raw Jira REST v2 shapes. Optional data is a pointer or slice so that absent
// fields are distinguishable from empty ones.
type (
	rawUser struct {
		DisplayName  string            `json:"displayName"`
		EmailAddress string            `json:"emailAddress,omitempty"`
		AvatarURLs   map[string]string `json:"avatarUrls,omitempty"`
	}

	rawStatus struct {
		Name           string `json:"name"`
		StatusCategory *struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"statusCategory,omitempty"`
	}

	rawPriority struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}

	rawLinkedIssue struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
		} `json:"fields"`
	}

	rawIssueLink struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
		OutwardIssue *rawLinkedIssue `json:"outwardIssue,omitempty"`
		InwardIssue  *rawLinkedIssue `json:"inwardIssue,omitempty"`
	}

	rawSubtask struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string     `json:"summary"`
			Status  *rawStatus `json:"status,omitempty"`
		} `json:"fields"`
	}

	rawFields struct {
		Summary     string         `json:"summary"`
		Description *string        `json:"description"`
		Status      *rawStatus     `json:"status"`
		Priority    *rawPriority   `json:"priority"`
		Assignee    *rawUser       `json:"assignee"`
		Creator     *rawUser       `json:"creator"`
		Reporter    *rawUser       `json:"reporter"`
		Labels      []string       `json:"labels"`
		Created     string         `json:"created"`
		Updated     string         `json:"updated"`
		IssueLinks  []rawIssueLink `json:"issuelinks"`
		Subtasks    []rawSubtask   `json:"subtasks"`
		Project     *struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"project"`
	}

	rawIssue struct {
		ID     string    `json:"id"`
		Key    string    `json:"key"`
		Self   string    `json:"self"`
		Fields rawFields `json:"fields"`
	}

	rawSearch struct {
		StartAt    int        `json:"startAt"`
		MaxResults int        `json:"maxResults"`
		Total      int        `json:"total"`
		Issues     []rawIssue `json:"issues"`
	}

	rawProject struct {
		ID             string            `json:"id"`
		Key            string            `json:"key"`
		Name           string            `json:"name"`
		Description    *string           `json:"description"`
		AvatarURLs     map[string]string `json:"avatarUrls,omitempty"`
		ProjectTypeKey string            `json:"projectTypeKey,omitempty"`
		Archived       bool              `json:"archived,omitempty"`
		Lead           *rawUser          `json:"lead,omitempty"`
	}
)

const (
	unassigned     = "Unassigned"
	unknownUser    = "Unknown User"
	noTitle        = "No title"
	relatedIssue   = "Related issue"
	leadAvatarSize = "48x48"
)

var statusTable = map[string]domain.Status{
	"To Do":           domain.StatusTodo,
	"Open":            domain.StatusTodo,
	"Reopened":        domain.StatusTodo,
	"In Progress":     domain.StatusInProgress,
	"In Review":       domain.StatusInProgress,
	"Patch Available": domain.StatusInProgress,
	"Done":            domain.StatusDone,
	"Closed":          domain.StatusDone,
	"Resolved":        domain.StatusDone,
	"Backlog":         domain.StatusBacklog,
	"Blocked":         domain.StatusBacklog,
	"Cancelled":       domain.StatusCancelled,
	"Won't Fix":       domain.StatusCancelled,
	"Won't Do":        domain.StatusCancelled,
	"Duplicate":       domain.StatusDuplicate,
}

var priorityTable = map[string]domain.Priority{
	"Highest":  domain.PriorityUrgent,
	"Critical": domain.PriorityUrgent,
	"Blocker":  domain.PriorityUrgent,
	"High":     domain.PriorityHigh,
	"Major":    domain.PriorityHigh,
	"Medium":   domain.PriorityMedium,
	"Low":      domain.PriorityLow,
	"Lowest":   domain.PriorityLow,
	"Minor":    domain.PriorityLow,
	"Trivial":  domain.PriorityLow,
}

// projectPalette is indexed by the first byte of the project key.
var projectPalette = []string{
	"#5E6AD2", "#0BC5EA", "#F59E0B", "#10B981", "#EF4444",
	"#8B5CF6", "#EC4899", "#06B6D4", "#F97316", "#84CC16",
}

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	// Decoded in this order; &amp; precedes &lt; so "&amp;lt;" ends up as "<".
	entityReplacer = []struct{ from, to string }{
		{"&nbsp;", " "},
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", `"`},
		{"&#39;", "'"},
	}
)

// createdLayouts are tried in order when parsing Jira timestamps.
var createdLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// MapStatus converts a Jira status name to a canonical status.
// Unmapped names pass through unchanged.
func MapStatus(name string) domain.Status {
	if s, ok := statusTable[name]; ok {
		return s
	}
	return domain.Status(name)
}

func mapStatusPtr(s *rawStatus, fallback domain.Status) domain.Status {
	if s == nil || s.Name == "" {
		return fallback
	}
	return MapStatus(s.Name)
}

// MapPriority converts a Jira priority to a canonical priority.
// Absent and unmapped priorities are Medium.
func MapPriority(p *rawPriority) domain.Priority {
	if p == nil {
		return domain.PriorityMedium
	}
	if mapped, ok := priorityTable[p.Name]; ok {
		return mapped
	}
	return domain.PriorityMedium
}

// PersonDisplay renders a user as "<INITIALS> <name>", using the first letter of
// each of the first two space-separated words. A nil user is "Unassigned".
func PersonDisplay(u *rawUser) string {
	if u == nil {
		return unassigned
	}
	name := u.DisplayName
	if name == "" {
		name = unknownUser
	}
	return Initials(name) + " " + name
}

// Initials returns the upper-cased first letters of the first two words of name.
func Initials(name string) string {
	parts := strings.Split(name, " ")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	var b strings.Builder
	for _, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		if size == 0 {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// PlainText strips markup tags, decodes a fixed set of named entities and trims
// surrounding whitespace. A nil input is the empty string.
func PlainText(html *string) string {
	if html == nil {
		return ""
	}
	return plainText(*html)
}

func plainText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	for _, e := range entityReplacer {
		s = strings.ReplaceAll(s, e.from, e.to)
	}
	return strings.TrimSpace(s)
}

func parseCreated(s string) time.Time {
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ProjectColor derives a palette color from a project identity.
func ProjectColor(identity string) string {
	if identity == "" {
		return projectPalette[0]
	}
	return projectPalette[int(identity[0])%len(projectPalette)]
}

func projectIcon(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// Mapper converts raw Jira records into canonical records.
type Mapper struct {
	baseURL string
}

// NewMapper creates a mapper that builds browse links under baseURL.
func NewMapper(baseURL string) Mapper {
	return Mapper{baseURL: strings.TrimRight(baseURL, "/")}
}

// BrowseURL returns the web URL of the issue with the given key.
func (m Mapper) BrowseURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", m.baseURL, key)
}

// Issue converts a raw issue. It never fails: missing optional fields get defaults.
func (m Mapper) Issue(raw rawIssue) domain.Issue {
	f := raw.Fields

	title := f.Summary
	if title == "" {
		title = noTitle
	}

	creator := f.Creator
	if creator == nil {
		creator = f.Reporter
	}

	labels := f.Labels
	if labels == nil {
		labels = []string{}
	}

	return domain.Issue{
		ID:          raw.ID,
		IssueNumber: raw.Key,
		Title:       title,
		Description: PlainText(f.Description),
		Status:      mapStatusPtr(f.Status, domain.StatusBacklog),
		Priority:    MapPriority(f.Priority),
		Assignee:    PersonDisplay(f.Assignee),
		CreatedBy:   PersonDisplay(creator),
		Labels:      labels,
		Links:       m.links(raw.ID, f.IssueLinks),
		SubIssues:   subIssues(raw.ID, f.Subtasks),
		CreatedAt:   parseCreated(f.Created),
		Origin:      domain.OriginRemote,
	}
}

func (m Mapper) links(parentID string, links []rawIssueLink) []domain.LinkRef {
	refs := make([]domain.LinkRef, 0, len(links))
	for i, link := range links {
		target := link.OutwardIssue
		if target == nil {
			target = link.InwardIssue
		}

		ref := domain.LinkRef{
			ID:    fmt.Sprintf("link-%s-%d", parentID, i),
			Title: relatedIssue,
		}
		if target != nil {
			if target.Key != "" {
				ref.URL = m.BrowseURL(target.Key)
			}
			if target.Fields.Summary != "" {
				ref.Title = target.Fields.Summary
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

func subIssues(parentID string, subtasks []rawSubtask) []domain.SubIssueRef {
	refs := make([]domain.SubIssueRef, 0, len(subtasks))
	for i, st := range subtasks {
		refs = append(refs, domain.SubIssueRef{
			ID:     fmt.Sprintf("subtask-%s-%d", parentID, i),
			Title:  st.Fields.Summary,
			Status: mapStatusPtr(st.Fields.Status, domain.StatusTodo),
		})
	}
	return refs
}

// Project converts a raw project together with its statistics.
func (m Mapper) Project(raw rawProject, stats domain.ProjectStats) domain.Project {
	identity := raw.Key
	if identity == "" {
		identity = raw.ID
	}

	status := domain.ProjectActive
	if raw.Archived {
		status = domain.ProjectArchived
	}

	p := domain.Project{
		ID:                  raw.ID,
		Key:                 raw.Key,
		Name:                raw.Name,
		Description:         PlainText(raw.Description),
		Color:               ProjectColor(identity),
		Icon:                projectIcon(raw.Name),
		IssueCount:          stats.IssueCount,
		CompletedIssueCount: stats.CompletedIssueCount,
		Status:              status,
		Health:              domain.HealthFor(stats.CompletedIssueCount, stats.IssueCount),
		Origin:              domain.OriginRemote,
	}
	if raw.Lead != nil {
		p.Lead = &domain.Lead{
			Name:   raw.Lead.DisplayName,
			Avatar: raw.Lead.AvatarURLs[leadAvatarSize],
		}
	}
	return p
}
