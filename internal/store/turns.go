package store

import (
	"fmt"
)

const turnColumns = `id, source_session_id, session_id, project_path,
	COALESCE(repository, ''), owner, role, content,
	COALESCE(thinking, ''), COALESCE(metadata, ''), timestamp, ordinal,
	is_compact_summary, COALESCE(agent_id, ''), COALESCE(agent_type, '')`

// InsertTurn inserts one turn-half row. Re-inserting a row with the
// same (source_session_id, role, timestamp, ordinal) identity is a
// no-op; the returned bool reports whether a row was actually added.
func (s *Store) InsertTurn(t Turn) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO turns
			(source_session_id, session_id, project_path, repository, owner, role,
			 content, thinking, metadata, timestamp, ordinal, is_compact_summary,
			 agent_id, agent_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SourceSessionID, t.SessionID, t.ProjectPath, nullableString(t.Repository),
		t.Owner, t.Role, t.Content, nullableString(t.Thinking),
		nullableString(t.Metadata), t.Timestamp, t.Ordinal,
		boolToInt(t.IsCompactSummary), nullableString(t.AgentID), nullableString(t.AgentType),
	)
	if err != nil {
		return false, fmt.Errorf("insert turn: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TurnsBySource returns all turns for a source session in chronological
// order (timestamp, then ordinal).
func (s *Store) TurnsBySource(sourceSessionID string) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT `+turnColumns+` FROM turns
		 WHERE source_session_id = ?
		 ORDER BY timestamp ASC, ordinal ASC, id ASC`,
		sourceSessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Turn
	for rows.Next() {
		var t Turn
		if err := scanTurn(rows.Scan, &t); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// TurnCount returns the number of turn-half rows for a source session.
func (s *Store) TurnCount(sourceSessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM turns WHERE source_session_id = ?`, sourceSessionID,
	).Scan(&n)
	return n, err
}

// ReplaceSessionTurns deletes every row for the source session and
// inserts the given turns in a single transaction. Used by compaction
// reconciliation, which is a full resync rather than an increment.
func (s *Store) ReplaceSessionTurns(sourceSessionID string, turns []Turn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replace turns: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM turns WHERE source_session_id = ?`, sourceSessionID); err != nil {
		return fmt.Errorf("replace turns: delete: %w", err)
	}

	for _, t := range turns {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO turns
				(source_session_id, session_id, project_path, repository, owner, role,
				 content, thinking, metadata, timestamp, ordinal, is_compact_summary,
				 agent_id, agent_type)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.SourceSessionID, t.SessionID, t.ProjectPath, nullableString(t.Repository),
			t.Owner, t.Role, t.Content, nullableString(t.Thinking),
			nullableString(t.Metadata), t.Timestamp, t.Ordinal,
			boolToInt(t.IsCompactSummary), nullableString(t.AgentID), nullableString(t.AgentType),
		); err != nil {
			return fmt.Errorf("replace turns: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace turns: commit: %w", err)
	}
	return nil
}

// DeleteSessionTurns removes all rows for a source session.
func (s *Store) DeleteSessionTurns(sourceSessionID string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM turns WHERE source_session_id = ?`, sourceSessionID)
	if err != nil {
		return 0, fmt.Errorf("delete turns: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats returns aggregate store statistics.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}

	_ = s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&stats.TotalTurns)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM checkpoints`).Scan(&stats.TotalSessions)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM checkpoints WHERE is_committed = 0`).Scan(&stats.UncommittedCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM backups`).Scan(&stats.PendingBackups)

	rows, err := s.db.Query(
		`SELECT project_path FROM turns GROUP BY project_path ORDER BY MAX(timestamp) DESC`,
	)
	if err != nil {
		return stats, nil
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err == nil {
			stats.Projects = append(stats.Projects, p)
		}
	}
	return stats, nil
}

func scanTurn(scan func(dest ...any) error, t *Turn) error {
	var compact int
	if err := scan(
		&t.ID, &t.SourceSessionID, &t.SessionID, &t.ProjectPath,
		&t.Repository, &t.Owner, &t.Role, &t.Content,
		&t.Thinking, &t.Metadata, &t.Timestamp, &t.Ordinal,
		&compact, &t.AgentID, &t.AgentType,
	); err != nil {
		return err
	}
	t.IsCompactSummary = compact != 0
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
