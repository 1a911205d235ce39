// Package store persists user-authored issues, projects and settings.
// It is the local side of reconciliation: remote results are never written here,
// so records created by the user cannot be overwritten by the remote service.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/h0rv/issuedeck/internal/domain"
)

var (
	// ErrIssueNotFound indicates the requested issue is not in the store.
	ErrIssueNotFound = errors.New("issue not found")
	// ErrProjectNotFound indicates the requested project is not in the store.
	ErrProjectNotFound = errors.New("project not found")
	// ErrMissingID indicates a record without an id was passed to an upsert.
	ErrMissingID = errors.New("record has no id")
)

// Setting keys understood by the application.
const (
	SettingRelayURL   = "relayUrl"
	SettingFetchStats = "fetchStats"
)

// LocalIDPrefix marks ids of user-created records so they cannot collide with
// remote numeric ids.
const LocalIDPrefix = "local-"

const unknownCreator = "Unknown"

// Kind names the collection a change applies to.
type Kind string

const (
	KindIssues   Kind = "issues"
	KindProjects Kind = "projects"
	KindSettings Kind = "settings"
)

// ChangeOrigin tells subscribers where a change came from.
type ChangeOrigin int

const (
	// OriginLocal is a mutation made through this Store.
	OriginLocal ChangeOrigin = iota
	// OriginExternal is a change made by another process and picked up from disk.
	OriginExternal
)

func (o ChangeOrigin) String() string {
	if o == OriginExternal {
		return "external"
	}
	return "local"
}

// Change is delivered to subscribers after the store contents changed.
type Change struct {
	Kind   Kind
	Origin ChangeOrigin
}

// document is the on-disk format.
type document struct {
	Issues   []domain.Issue    `json:"issues"`
	Projects []domain.Project  `json:"projects"`
	Settings map[string]string `json:"settings"`
}

// Store is a JSON-file backed collection of local records.
// All methods are safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	path string // Empty for in-memory stores
	doc  document

	// Modification time of the file as last read or written
	modTime time.Time

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int

	logger *slog.Logger
}

// NewMemory creates an empty store that is never persisted.
func NewMemory() *Store {
	return &Store{
		doc:    emptyDocument(),
		subs:   make(map[int]func(Change)),
		logger: slog.Default(),
	}
}

// Open loads the store at path, creating an empty one if the file does not exist.
// A nil logger uses slog.Default().
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		doc:    emptyDocument(),
		subs:   make(map[int]func(Change)),
		logger: logger,
	}
	if path == "" {
		return s, nil
	}

	doc, modTime, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	s.modTime = modTime
	return s, nil
}

// Path returns the backing file, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

func emptyDocument() document {
	return document{
		Issues:   []domain.Issue{},
		Projects: []domain.Project{},
		Settings: make(map[string]string),
	}
}

func readDocument(path string) (document, time.Time, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), time.Time{}, nil
	}
	if err != nil {
		return document{}, time.Time{}, fmt.Errorf("failed to read store: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return document{}, time.Time{}, fmt.Errorf("failed to stat store: %w", err)
	}

	doc := emptyDocument()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return document{}, time.Time{}, fmt.Errorf("failed to parse store %s: %w", path, err)
		}
	}
	if doc.Settings == nil {
		doc.Settings = make(map[string]string)
	}
	return doc, info.ModTime(), nil
}

// Issues returns a copy of the local issues in insertion order.
// Issues without a creator are attributed to their assignee, or "Unknown".
func (s *Store) Issues() []domain.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Issue, len(s.doc.Issues))
	for i, issue := range s.doc.Issues {
		if issue.CreatedBy == "" {
			issue.CreatedBy = issue.Assignee
		}
		if issue.CreatedBy == "" {
			issue.CreatedBy = unknownCreator
		}
		issue.Origin = domain.OriginLocal
		out[i] = issue
	}
	return out
}

// Issue returns the local issue with the given id.
func (s *Store) Issue(id string) (domain.Issue, error) {
	for _, issue := range s.Issues() {
		if issue.ID == id {
			return issue, nil
		}
	}
	return domain.Issue{}, fmt.Errorf("%w: %s", ErrIssueNotFound, id)
}

// Projects returns a copy of the local projects in insertion order.
func (s *Store) Projects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Project, len(s.doc.Projects))
	for i, p := range s.doc.Projects {
		p.Origin = domain.OriginLocal
		out[i] = p
	}
	return out
}

// Project returns the local project with the given id or key.
func (s *Store) Project(idOrKey string) (domain.Project, error) {
	for _, p := range s.Projects() {
		if p.ID == idOrKey || strings.EqualFold(p.Key, idOrKey) {
			return p, nil
		}
	}
	return domain.Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, idOrKey)
}

// UpsertIssue appends issue, or replaces the stored issue with the same id.
func (s *Store) UpsertIssue(issue domain.Issue) error {
	if issue.ID == "" {
		return ErrMissingID
	}
	issue.Origin = domain.OriginLocal

	err := s.mutate(KindIssues, func(doc *document) {
		for i := range doc.Issues {
			if doc.Issues[i].ID == issue.ID {
				doc.Issues[i] = issue
				return
			}
		}
		doc.Issues = append(doc.Issues, issue)
	})
	if err != nil {
		return fmt.Errorf("failed to save issue %s: %w", issue.ID, err)
	}
	return nil
}

// UpsertProject appends project, or replaces the stored project with the same id.
func (s *Store) UpsertProject(project domain.Project) error {
	if project.ID == "" {
		return ErrMissingID
	}
	project.Origin = domain.OriginLocal

	err := s.mutate(KindProjects, func(doc *document) {
		for i := range doc.Projects {
			if doc.Projects[i].ID == project.ID {
				doc.Projects[i] = project
				return
			}
		}
		doc.Projects = append(doc.Projects, project)
	})
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", project.ID, err)
	}
	return nil
}

// Setting returns the stored value for key and whether it is set.
func (s *Store) Setting(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.doc.Settings[key]
	return v, ok
}

// SetSetting stores value under key. An empty value removes the key.
func (s *Store) SetSetting(key, value string) error {
	err := s.mutate(KindSettings, func(doc *document) {
		if value == "" {
			delete(doc.Settings, key)
			return
		}
		doc.Settings[key] = value
	})
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// Settings returns a copy of all stored settings.
func (s *Store) Settings() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.doc.Settings))
	for k, v := range s.doc.Settings {
		out[k] = v
	}
	return out
}

// RelayOverride returns the stored relay template, so the store can serve as a
// relay override source.
func (s *Store) RelayOverride() string {
	v, _ := s.Setting(SettingRelayURL)
	return v
}

// FetchStats reports the stored statistics toggle. ok is false when the toggle
// was never set or does not parse as a boolean.
func (s *Store) FetchStats() (enabled, ok bool) {
	v, set := s.Setting(SettingFetchStats)
	if !set {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// mutate applies fn under the write lock, persists the document and notifies
// subscribers. On a persistence failure the in-memory state is rolled back.
func (s *Store) mutate(kind Kind, fn func(doc *document)) error {
	s.mu.Lock()
	prev := cloneDocument(s.doc)
	fn(&s.doc)
	if err := s.persistLocked(); err != nil {
		s.doc = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify(Change{Kind: kind, Origin: OriginLocal})
	return nil
}

func cloneDocument(doc document) document {
	out := document{
		Issues:   append([]domain.Issue(nil), doc.Issues...),
		Projects: append([]domain.Project(nil), doc.Projects...),
		Settings: make(map[string]string, len(doc.Settings)),
	}
	for k, v := range doc.Settings {
		out.Settings[k] = v
	}
	return out
}

// persistLocked writes the document atomically (temp file + rename).
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// NewIssueID returns a fresh local issue id.
func NewIssueID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s%d", LocalIDPrefix, time.Now().UnixNano())
	}
	return LocalIDPrefix + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(b[:])
}

// IsLocalID reports whether id was issued by NewIssueID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// NextIssueNumber returns the next human-facing key for a local issue, e.g.
// "LOC-4" when three local issues with the prefix already exist.
func (s *Store) NextIssueNumber(prefix string) string {
	if prefix == "" {
		prefix = "LOC"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := 0
	for _, issue := range s.doc.Issues {
		rest, ok := strings.CutPrefix(issue.IssueNumber, prefix+"-")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%d", prefix, highest+1)
}
