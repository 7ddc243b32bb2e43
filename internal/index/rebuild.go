package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
)

// RebuildMonth regenerates one month index file from the documents in
// that partition.
func (m *Manager) RebuildMonth(kind string, year, month int) (*MonthIndex, error) {
	items, err := m.collectMonth(kind, year, month)
	if err != nil {
		return nil, err
	}
	idx := &MonthIndex{
		Kind:      kind,
		Year:      year,
		Month:     month,
		UpdatedAt: m.now().UTC().Format(time.RFC3339),
		Items:     items,
	}
	if err := m.writeIndex(m.monthPath(kind, year, month), idx); err != nil {
		return nil, err
	}
	m.log.Debug().Str("kind", kind).Int("year", year).Int("month", month).Int("items", len(items)).Msg("month index rebuilt")
	return idx, nil
}

// RebuildAll regenerates every month index for both kinds plus the
// recent aggregate covering the newest recentMonths partitions.
func (m *Manager) RebuildAll(recentMonths int) (*RecentIndex, error) {
	for _, kind := range []string{KindSession, KindDecision} {
		months, err := m.docs.Months(docKind(kind))
		if err != nil {
			return nil, err
		}
		for _, ym := range months {
			if _, err := m.RebuildMonth(kind, ym[0], ym[1]); err != nil {
				return nil, err
			}
		}
	}
	return m.rebuildRecent(recentMonths)
}

// rebuildRecent regenerates the recent aggregate from the month index
// files of the newest recentMonths session partitions, newest entries
// first.
func (m *Manager) rebuildRecent(recentMonths int) (*RecentIndex, error) {
	months, err := m.docs.Months(docstore.SessionsDir)
	if err != nil {
		return nil, err
	}
	if len(months) > recentMonths {
		months = months[len(months)-recentMonths:]
	}

	var items []Entry
	for _, ym := range months {
		for _, kind := range []string{KindSession, KindDecision} {
			idx, err := m.ReadMonth(kind, ym[0], ym[1])
			if err != nil {
				return nil, err
			}
			if idx != nil {
				items = append(items, idx.Items...)
			}
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt > items[j].CreatedAt
	})

	idx := &RecentIndex{
		UpdatedAt: m.now().UTC().Format(time.RFC3339),
		Months:    recentMonths,
		Items:     items,
	}
	if err := m.writeIndex(filepath.Join(m.indexDir(), RecentFile), idx); err != nil {
		return nil, err
	}
	m.log.Info().Int("items", len(items)).Int("months", recentMonths).Msg("recent index rebuilt")
	return idx, nil
}

// IsStale reports whether any month index lags its documents. An index
// is stale when documents exist for a partition with no index file, or
// when any document was updated after its partition's index was
// written. Timestamps decide this; content is never hashed.
func (m *Manager) IsStale() (bool, error) {
	for _, kind := range []string{KindSession, KindDecision} {
		months, err := m.docs.Months(docKind(kind))
		if err != nil {
			return false, err
		}
		for _, ym := range months {
			stale, err := m.monthStale(kind, ym[0], ym[1])
			if err != nil {
				return false, err
			}
			if stale {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *Manager) monthStale(kind string, year, month int) (bool, error) {
	newest, count, err := m.newestDocUpdate(kind, year, month)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	idx, err := m.ReadMonth(kind, year, month)
	if err != nil {
		return false, err
	}
	if idx == nil {
		return true, nil
	}
	// RFC3339 UTC strings compare correctly as strings.
	return newest > idx.UpdatedAt, nil
}

// newestDocUpdate returns the newest document UpdatedAt in a partition
// and the document count.
func (m *Manager) newestDocUpdate(kind string, year, month int) (string, int, error) {
	var newest string
	var count int
	switch kind {
	case KindSession:
		docs, err := m.docs.SessionDocsForMonth(year, month)
		if err != nil {
			return "", 0, err
		}
		count = len(docs)
		for _, d := range docs {
			if d.UpdatedAt > newest {
				newest = d.UpdatedAt
			}
		}
	case KindDecision:
		docs, err := m.docs.DecisionDocsForMonth(year, month)
		if err != nil {
			return "", 0, err
		}
		count = len(docs)
		for _, d := range docs {
			if d.UpdatedAt > newest {
				newest = d.UpdatedAt
			}
		}
	default:
		return "", 0, fmt.Errorf("index: unknown kind %q", kind)
	}
	return newest, count, nil
}

// collectMonth builds the index entries for one partition.
func (m *Manager) collectMonth(kind string, year, month int) ([]Entry, error) {
	var items []Entry
	switch kind {
	case KindSession:
		docs, err := m.docs.SessionDocsForMonth(year, month)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			items = append(items, Entry{
				ID:        d.ID,
				Kind:      KindSession,
				Title:     d.Title,
				Tags:      d.Tags,
				Status:    d.Status,
				TurnCount: d.TurnCount,
				CreatedAt: d.CreatedAt,
				UpdatedAt: d.UpdatedAt,
			})
		}
	case KindDecision:
		docs, err := m.docs.DecisionDocsForMonth(year, month)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			items = append(items, Entry{
				ID:        d.ID,
				Kind:      KindDecision,
				Title:     d.Title,
				Tags:      d.Tags,
				Status:    d.Status,
				CreatedAt: d.CreatedAt,
				UpdatedAt: d.UpdatedAt,
			})
		}
	default:
		return nil, fmt.Errorf("index: unknown kind %q", kind)
	}
	// Month files list newest first, like the recent aggregate.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt > items[j].CreatedAt
	})
	return items, nil
}

func (m *Manager) writeIndex(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: create dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Status summarizes index freshness for reporting.
type Status struct {
	Stale        bool   `json:"stale"`
	MonthFiles   int    `json:"month_files"`
	RecentItems  int    `json:"recent_items"`
	RecentAsOf   string `json:"recent_as_of,omitempty"`
	RecentMonths int    `json:"recent_months,omitempty"`
}

// Report computes the current index status.
func (m *Manager) Report() (*Status, error) {
	stale, err := m.IsStale()
	if err != nil {
		return nil, err
	}
	st := &Status{Stale: stale}

	entries, err := os.ReadDir(m.indexDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("index: read index dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && e.Name() != RecentFile {
			st.MonthFiles++
		}
	}

	recent, err := m.ReadRecent(0)
	if err != nil {
		return nil, err
	}
	if recent != nil {
		st.RecentItems = len(recent.Items)
		st.RecentAsOf = recent.UpdatedAt
		st.RecentMonths = recent.Months
	}
	return st, nil
}
