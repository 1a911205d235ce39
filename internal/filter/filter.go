// Package filter evaluates user-written boolean expressions over issues, e.g.
//
//	Priority == "Urgent" && "backend" in Labels
//	Is("done") || now() - CreatedAt < duration("72h")
//
// Expressions are compiled once with expr-lang/expr and run per issue.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/jira"
)

// Env is the set of names an expression can refer to.
type Env struct {
	ID          string    `expr:"ID"`
	Key         string    `expr:"Key"`
	Title       string    `expr:"Title"`
	Description string    `expr:"Description"`
	Status      string    `expr:"Status"`
	Priority    string    `expr:"Priority"`
	Assignee    string    `expr:"Assignee"`
	CreatedBy   string    `expr:"CreatedBy"`
	Labels      []string  `expr:"Labels"`
	CreatedAt   time.Time `expr:"CreatedAt"`
	Local       bool      `expr:"Local"`
}

// Is reports whether the issue's status equals status, ignoring case.
func (e Env) Is(status string) bool {
	return strings.EqualFold(e.Status, status)
}

// HasLabel reports whether the issue carries label, ignoring case.
func (e Env) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// EnvFor builds the expression environment for one issue.
func EnvFor(issue domain.Issue) Env {
	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}
	return Env{
		ID:          issue.ID,
		Key:         issue.IssueNumber,
		Title:       issue.Title,
		Description: issue.Description,
		Status:      string(issue.Status),
		Priority:    string(issue.Priority),
		Assignee:    issue.Assignee,
		CreatedBy:   issue.CreatedBy,
		Labels:      labels,
		CreatedAt:   issue.CreatedAt,
		Local:       issue.Origin == domain.OriginLocal,
	}
}

func exprOpts() []expr.Option {
	return []expr.Option{
		expr.Env(Env{}),
		expr.AsBool(),
		expr.Function("canonical", func(params ...any) (any, error) {
			return string(jira.MapStatus(params[0].(string))), nil
		},
			new(func(string) string)),
	}
}

// Filter is a compiled issue predicate. The zero value and a Filter compiled
// from blank source match every issue.
type Filter struct {
	src     string
	program *vm.Program
}

// Compile parses and type-checks src.
func Compile(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(src, exprOpts()...)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", src, err)
	}
	return &Filter{src: src, program: program}, nil
}

// String returns the source the filter was compiled from.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.src
}

// Match reports whether issue satisfies the filter.
func (f *Filter) Match(issue domain.Issue) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, EnvFor(issue))
	if err != nil {
		return false, fmt.Errorf("filter %q failed on %s: %w", f.src, issue.IssueNumber, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the issues that satisfy the filter, in order.
func (f *Filter) Apply(issues []domain.Issue) ([]domain.Issue, error) {
	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		ok, err := f.Match(issue)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, issue)
		}
	}
	return out, nil
}
