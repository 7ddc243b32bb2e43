package lifecycle

import (
	"fmt"
	"time"

	"github.com/hir4ta/mneme-sub001/internal/store"
	"github.com/hir4ta/mneme-sub001/internal/transcript"
)

// reconcile is the one non-strictly-incremental save path. The
// external log was compacted: previously recorded line offsets are
// void, so backup turns at or before the compaction boundary are
// merged with freshly parsed turns after it, identifiers are
// re-sequenced, and ALL existing rows for the session are replaced.
// This avoids both duplication and loss across the boundary, at the
// cost of being a full resync.
func (m *Manager) reconcile(cp *store.Checkpoint, backup *store.Backup, logPath, projectPath string) (*SaveResult, error) {
	fresh, err := transcript.ReadAll(logPath)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: reconcile: %w", err)
	}

	boundary := backupBoundary(backup)

	var merged []store.Turn
	for _, t := range backup.Turns {
		if ts, err := time.Parse(time.RFC3339, t.Timestamp); err == nil && !ts.After(boundary) {
			merged = append(merged, t)
		}
	}

	// Re-sequence identifiers: ordinals restart at zero for the merged set.
	ordinals := map[string]int{}
	for i := range merged {
		merged[i].Ordinal = nextOrdinal(ordinals, merged[i].Role, merged[i].Timestamp)
	}

	for _, t := range fresh.Turns {
		for _, row := range m.turnRows(t, cp, projectPath, ordinals) {
			if ts, err := time.Parse(time.RFC3339, row.Timestamp); err == nil && ts.After(boundary) {
				merged = append(merged, row)
			}
		}
	}

	if err := m.store.ReplaceSessionTurns(cp.SourceSessionID, merged); err != nil {
		return nil, fmt.Errorf("lifecycle: reconcile: %w", err)
	}

	latest := cp.LastSavedTimestamp
	if !fresh.LatestTimestamp.IsZero() {
		latest = fresh.LatestTimestamp.Format(time.RFC3339)
	}
	if err := m.store.ResetCheckpoint(cp.SourceSessionID, fresh.TotalLines, latest); err != nil {
		return nil, fmt.Errorf("lifecycle: reconcile: %w", err)
	}
	if err := m.store.ClearBackup(backup.SessionID); err != nil {
		m.log.Warn().Str("session", cp.SourceSessionID).Err(err).Msg("backup clear failed")
	}

	m.refreshSessionDoc(cp, fresh.Turns)
	m.log.Info().Str("session", cp.SourceSessionID).Int("rows", len(merged)).Msg("compaction reconciled")

	return &SaveResult{Inserted: len(merged), TotalLines: fresh.TotalLines, Reconciled: true}, nil
}

// backupBoundary is the newest timestamp covered by the backup; turns
// after it come from the post-compaction log.
func backupBoundary(backup *store.Backup) time.Time {
	var boundary time.Time
	for _, t := range backup.Turns {
		if ts, err := time.Parse(time.RFC3339, t.Timestamp); err == nil && ts.After(boundary) {
			boundary = ts
		}
	}
	return boundary
}
