// Package index maintains derived month-partitioned index files over
// the document store. Index files are a cache: the documents stay
// authoritative, and any index file can be rebuilt from them at any
// time.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
)

// RecentFile is the cross-month aggregate read on the hot path.
const RecentFile = "recent.json"

// Entry is one indexed document: just enough for listing and search,
// never the full body.
type Entry struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"` // session | decision
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	Status    string   `json:"status,omitempty"`
	TurnCount int      `json:"turnCount,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// MonthIndex is one index file covering one year/month partition of
// one document kind.
type MonthIndex struct {
	Kind      string  `json:"kind"`
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	UpdatedAt string  `json:"updatedAt"`
	Items     []Entry `json:"items"`
}

// RecentIndex aggregates the newest months across kinds.
type RecentIndex struct {
	UpdatedAt string  `json:"updatedAt"`
	Months    int     `json:"months"`
	Items     []Entry `json:"items"`
}

// Manager owns the index files under the document root.
type Manager struct {
	docs *docstore.Store
	log  zerolog.Logger
	now  func() time.Time
}

// New creates an index manager over a document store.
func New(docs *docstore.Store, log zerolog.Logger) *Manager {
	return &Manager{docs: docs, log: log, now: time.Now}
}

func (m *Manager) indexDir() string {
	return filepath.Join(m.docs.Root(), docstore.IndexDir)
}

func (m *Manager) monthPath(kind string, year, month int) string {
	return filepath.Join(m.indexDir(), fmt.Sprintf("%s-%04d-%02d.json", kind, year, month))
}

// ReadMonth loads one month index file. Returns nil when the file does
// not exist; a corrupt file also reads as nil, since the index is a
// rebuildable cache.
func (m *Manager) ReadMonth(kind string, year, month int) (*MonthIndex, error) {
	data, err := os.ReadFile(m.monthPath(kind, year, month))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: read %s %04d-%02d: %w", kind, year, month, err)
	}
	var idx MonthIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		m.log.Warn().Str("kind", kind).Int("year", year).Int("month", month).Err(err).Msg("corrupt index file, treating as missing")
		return nil, nil
	}
	return &idx, nil
}

// ReadRecent loads the recent aggregate. nMonths, when positive and
// tighter than the stored span, narrows the result to the newest
// nMonths distinct months on read; zero means the aggregate as
// written. A missing or corrupt file reads as nil.
func (m *Manager) ReadRecent(nMonths int) (*RecentIndex, error) {
	data, err := os.ReadFile(filepath.Join(m.indexDir(), RecentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: read recent: %w", err)
	}
	var idx RecentIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		m.log.Warn().Err(err).Msg("corrupt recent index, treating as missing")
		return nil, nil
	}
	if nMonths > 0 && nMonths < idx.Months {
		idx.Items = capToMonths(idx.Items, nMonths)
		idx.Months = nMonths
	}
	return &idx, nil
}

// capToMonths keeps the items of the newest n distinct months. Items
// are already sorted newest first, so the cut is a prefix.
func capToMonths(items []Entry, n int) []Entry {
	seen := 0
	last := ""
	for i, item := range items {
		month := item.CreatedAt
		if len(month) >= 7 {
			month = month[:7]
		}
		if month != last {
			last = month
			seen++
			if seen > n {
				return items[:i]
			}
		}
	}
	return items
}

// ReadAll returns every indexed entry of a kind, oldest partition
// first. Months without an index file contribute nothing; callers that
// need completeness should check IsStale first.
func (m *Manager) ReadAll(kind string) ([]Entry, error) {
	months, err := m.docs.Months(docKind(kind))
	if err != nil {
		return nil, err
	}
	var all []Entry
	for _, ym := range months {
		idx, err := m.ReadMonth(kind, ym[0], ym[1])
		if err != nil {
			return nil, err
		}
		if idx != nil {
			all = append(all, idx.Items...)
		}
	}
	return all, nil
}

// docKind maps an index kind to its document store directory.
func docKind(kind string) string {
	if kind == KindDecision {
		return docstore.DecisionsDir
	}
	return docstore.SessionsDir
}

// Index kinds.
const (
	KindSession  = "session"
	KindDecision = "decision"
)
