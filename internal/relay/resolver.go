// Package relay chooses the CORS relay endpoints that remote requests are routed through.
// It performs no network access: every function here is pure string construction.
package relay

import (
	"net/url"
	"os"
	"strings"
)

// Template placeholders. A template without a placeholder gets the encoded
// target appended.
const (
	PlaceholderEncoded = "{url}"
	PlaceholderRaw     = "{raw}"
)

// DirectTemplate routes requests straight to the target without a relay.
const DirectTemplate = PlaceholderRaw

// EnvRelayURL is the environment variable consulted by EnvOverride.
const EnvRelayURL = "ISSUEDECK_RELAY_URL"

// DefaultTemplates is the built-in relay list, tried in order.
var DefaultTemplates = []string{
	"https://api.allorigins.win/raw?url=",
	"https://api.codetabs.com/v1/proxy?quest=",
}

// OverrideSource supplies a user-configured relay template.
// An empty string means no override is configured.
type OverrideSource interface {
	RelayOverride() string
}

// OverrideFunc adapts a plain function to OverrideSource.
type OverrideFunc func() string

// RelayOverride calls f.
func (f OverrideFunc) RelayOverride() string { return f() }

// StaticOverride is a fixed override value, typically read from a config file.
type StaticOverride string

// RelayOverride returns the static value.
func (s StaticOverride) RelayOverride() string { return string(s) }

// EnvOverride reads the override from the ISSUEDECK_RELAY_URL environment variable.
type EnvOverride struct{}

// RelayOverride returns the trimmed environment value.
func (EnvOverride) RelayOverride() string {
	return strings.TrimSpace(os.Getenv(EnvRelayURL))
}

// Chain consults each source in order and returns the first non-empty override.
type Chain []OverrideSource

// RelayOverride returns the first override found, or "" when none is set.
func (c Chain) RelayOverride() string {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v := strings.TrimSpace(src.RelayOverride()); v != "" {
			return v
		}
	}
	return ""
}

// Resolver builds relay-wrapped URLs.
type Resolver struct {
	defaults []string
	override OverrideSource
}

// NewResolver creates a resolver over the given default templates.
// An empty defaults list falls back to DefaultTemplates so the candidate list is never empty.
func NewResolver(defaults []string, override OverrideSource) *Resolver {
	list := make([]string, 0, len(defaults))
	for _, t := range defaults {
		if t = strings.TrimSpace(t); t != "" {
			list = append(list, t)
		}
	}
	if len(list) == 0 {
		list = append(list, DefaultTemplates...)
	}
	return &Resolver{defaults: list, override: override}
}

// Templates returns the ordered candidate list.
// The override, when present, replaces the whole list with a single entry.
// The override is read on every call so a changed setting applies to the next request.
func (r *Resolver) Templates() []string {
	if r.override != nil {
		if o := strings.TrimSpace(r.override.RelayOverride()); o != "" {
			return []string{o}
		}
	}
	out := make([]string, len(r.defaults))
	copy(out, r.defaults)
	return out
}

// Wrap returns target routed through the candidate at index i (modulo the list length).
func (r *Resolver) Wrap(target string, i int) string {
	templates := r.Templates()
	if i < 0 {
		i = -i
	}
	return Apply(templates[i%len(templates)], target)
}

// Apply substitutes target into a single template.
func Apply(template, target string) string {
	switch {
	case strings.Contains(template, PlaceholderRaw):
		return strings.ReplaceAll(template, PlaceholderRaw, target)
	case strings.Contains(template, PlaceholderEncoded):
		return strings.ReplaceAll(template, PlaceholderEncoded, Encode(target))
	default:
		return template + Encode(target)
	}
}

// Encode percent-encodes s for use as a single query parameter value.
// Spaces become %20 rather than '+', so relays that decode either way agree.
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
