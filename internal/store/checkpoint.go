package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetCheckpoint returns the checkpoint for a source session, or nil
// when no save has happened yet.
func (s *Store) GetCheckpoint(sourceSessionID string) (*Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT source_session_id, session_id, project_path,
		        last_saved_timestamp, last_saved_line, is_committed, updated_at
		 FROM checkpoints WHERE source_session_id = ?`,
		sourceSessionID,
	)
	var cp Checkpoint
	var committed int
	err := row.Scan(&cp.SourceSessionID, &cp.SessionID, &cp.ProjectPath,
		&cp.LastSavedTimestamp, &cp.LastSavedLine, &committed, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	cp.IsCommitted = committed != 0
	return &cp, nil
}

// UpsertCheckpoint creates or updates a checkpoint. last_saved_line
// never moves backward: on conflict the stored value is the maximum of
// the existing and the incoming line.
func (s *Store) UpsertCheckpoint(cp Checkpoint) error {
	_, err := s.db.Exec(
		`INSERT INTO checkpoints
			(source_session_id, session_id, project_path,
			 last_saved_timestamp, last_saved_line, is_committed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_session_id) DO UPDATE SET
			session_id           = excluded.session_id,
			project_path         = excluded.project_path,
			last_saved_timestamp = excluded.last_saved_timestamp,
			last_saved_line      = MAX(checkpoints.last_saved_line, excluded.last_saved_line),
			updated_at           = excluded.updated_at`,
		cp.SourceSessionID, cp.SessionID, cp.ProjectPath,
		cp.LastSavedTimestamp, cp.LastSavedLine, boolToInt(cp.IsCommitted), Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// ResetCheckpoint forces a checkpoint to an exact line count,
// bypassing the monotonic guard. Only compaction reconciliation uses
// this: the external log was truncated, so previously recorded line
// offsets are void.
func (s *Store) ResetCheckpoint(sourceSessionID string, line int, lastTimestamp string) error {
	_, err := s.db.Exec(
		`UPDATE checkpoints
		 SET last_saved_line = ?, last_saved_timestamp = ?, updated_at = ?
		 WHERE source_session_id = ?`,
		line, lastTimestamp, Now(), sourceSessionID,
	)
	if err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}

// MarkCommitted sets is_committed=1. This is the only way a session
// exits the uncommitted state short of being deleted.
func (s *Store) MarkCommitted(sourceSessionID string) error {
	res, err := s.db.Exec(
		`UPDATE checkpoints SET is_committed = 1, updated_at = ? WHERE source_session_id = ?`,
		Now(), sourceSessionID,
	)
	if err != nil {
		return fmt.Errorf("mark committed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("mark committed: no checkpoint for %q", sourceSessionID)
	}
	return nil
}

// DeleteCheckpoint removes a checkpoint, as part of full session
// cleanup only.
func (s *Store) DeleteCheckpoint(sourceSessionID string) error {
	_, err := s.db.Exec(`DELETE FROM checkpoints WHERE source_session_id = ?`, sourceSessionID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// StaleCheckpoints returns uncommitted checkpoints whose updated_at is
// older than the cutoff, optionally filtered by project path. RFC3339
// UTC strings compare lexicographically, so the filter runs in SQL.
func (s *Store) StaleCheckpoints(projectPath string, cutoff time.Time) ([]Checkpoint, error) {
	query := `
		SELECT source_session_id, session_id, project_path,
		       last_saved_timestamp, last_saved_line, is_committed, updated_at
		FROM checkpoints
		WHERE is_committed = 0 AND updated_at < ?
	`
	args := []any{cutoff.UTC().Format(time.RFC3339)}

	if projectPath != "" {
		query += " AND project_path = ?"
		args = append(args, projectPath)
	}
	query += " ORDER BY source_session_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("stale checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var committed int
		if err := rows.Scan(&cp.SourceSessionID, &cp.SessionID, &cp.ProjectPath,
			&cp.LastSavedTimestamp, &cp.LastSavedLine, &committed, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		cp.IsCommitted = committed != 0
		results = append(results, cp)
	}
	return results, rows.Err()
}
