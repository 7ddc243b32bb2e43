package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SaveBackup stores a pre-compaction snapshot for a session, replacing
// any previous snapshot. The turn list is serialized as JSON.
func (s *Store) SaveBackup(b Backup) error {
	turns, err := json.Marshal(b.Turns)
	if err != nil {
		return fmt.Errorf("save backup: marshal turns: %w", err)
	}
	createdAt := b.CreatedAt
	if createdAt == "" {
		createdAt = Now()
	}
	_, err = s.db.Exec(
		`INSERT INTO backups (session_id, project_path, owner, turns, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			project_path = excluded.project_path,
			owner        = excluded.owner,
			turns        = excluded.turns,
			created_at   = excluded.created_at`,
		b.SessionID, b.ProjectPath, b.Owner, string(turns), createdAt,
	)
	if err != nil {
		return fmt.Errorf("save backup: %w", err)
	}
	return nil
}

// GetBackup returns the pending backup for a session, or nil when
// there is none. A backup whose turn payload does not parse is treated
// as absent rather than failing the save that asked for it.
func (s *Store) GetBackup(sessionID string) (*Backup, error) {
	row := s.db.QueryRow(
		`SELECT session_id, project_path, owner, turns, created_at
		 FROM backups WHERE session_id = ?`,
		sessionID,
	)
	var b Backup
	var raw string
	err := row.Scan(&b.SessionID, &b.ProjectPath, &b.Owner, &raw, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &b.Turns); err != nil {
		s.log.Warn().Str("session", sessionID).Err(err).Msg("discarding unreadable backup")
		return nil, nil
	}
	return &b, nil
}

// ClearBackup removes a consumed backup.
func (s *Store) ClearBackup(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM backups WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	return nil
}
