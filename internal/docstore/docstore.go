// Package docstore implements the file-based document store: one JSON
// file per session or decision under a year/month partition, one file
// per pattern source, one file per rule set, and link files mapping
// short session ids to master session ids.
//
// Documents are authoritative; everything in internal/index is a
// derived projection of them.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// SessionsDir holds session documents under year/month.
	SessionsDir = "sessions"
	// DecisionsDir holds decision documents under year/month.
	DecisionsDir = "decisions"
	// PatternsDir holds one file per pattern source.
	PatternsDir = "patterns"
	// RulesDir holds one YAML file per rule set.
	RulesDir = "rules"
	// LinksDir holds short-id → master-id link files.
	LinksDir = "links"
	// IndexDir holds derived index files (owned by internal/index).
	IndexDir = "index"
)

// Status values for session documents.
const (
	StatusUncommitted = "uncommitted"
	StatusComplete    = "complete"
)

// Store is the filesystem-backed document store.
type Store struct {
	root string
	log  zerolog.Logger
}

// New creates a document store rooted at dir. The directory is created
// lazily on first write; a missing root reads as "no data".
func New(root string, log zerolog.Logger) *Store {
	return &Store{root: root, log: log}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// EntityDir returns the directory for an entity kind (SessionsDir,
// DecisionsDir, ...).
func (s *Store) EntityDir(kind string) string {
	return filepath.Join(s.root, kind)
}

// monthDir returns the year/month partition directory for an entity.
func (s *Store) monthDir(kind string, t time.Time) string {
	return filepath.Join(s.root, kind, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}

// MonthDir returns the partition directory for an explicit year/month.
func (s *Store) MonthDir(kind string, year, month int) string {
	return filepath.Join(s.root, kind, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month))
}

// Months lists the year/month partitions that exist for an entity
// kind, oldest first.
func (s *Store) Months(kind string) ([][2]int, error) {
	var months [][2]int
	base := s.EntityDir(kind)
	years, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("docstore: read %s: %w", kind, err)
	}
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		var year int
		if _, err := fmt.Sscanf(y.Name(), "%d", &year); err != nil || year < 1970 {
			continue
		}
		monthEntries, err := os.ReadDir(filepath.Join(base, y.Name()))
		if err != nil {
			continue
		}
		for _, m := range monthEntries {
			if !m.IsDir() {
				continue
			}
			var month int
			if _, err := fmt.Sscanf(m.Name(), "%d", &month); err != nil || month < 1 || month > 12 {
				continue
			}
			months = append(months, [2]int{year, month})
		}
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i][0] != months[j][0] {
			return months[i][0] < months[j][0]
		}
		return months[i][1] < months[j][1]
	})
	return months, nil
}

// walkFiles visits every regular file under dir using an explicit
// worklist instead of recursion, so very large trees cannot exhaust
// the stack. Files within a directory are visited in sorted name
// order, which gives document enumeration a stable order.
func walkFiles(dir string, fn func(path string) error) error {
	pending := []string{dir}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := os.ReadDir(current)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		// Directories are pushed in reverse so they pop in sorted order.
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if e.IsDir() {
				pending = append(pending, filepath.Join(current, e.Name()))
			}
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			if err := fn(filepath.Join(current, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeJSON marshals v and writes it, creating parent directories.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("docstore: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("docstore: create dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Now returns the canonical document timestamp.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
