// Package store implements the durable relational store for mneme.
//
// It uses SQLite (modernc.org/sqlite, pure Go) with an FTS5 shadow
// table over conversation turns. One row is kept per turn-half (user
// or assistant message), plus a per-source-session checkpoint table
// and a pre-compaction backup table. Rows are never mutated: a
// turn-half is uniquely identified by (source_session_id, role,
// timestamp, ordinal) so re-ingestion never duplicates.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DBFile is the database file name inside the data directory.
const DBFile = "mneme.db"

// Turn is one half of a conversation turn: a single user or assistant
// message. Created by ingestion, never mutated, deleted only by
// lifecycle cleanup.
type Turn struct {
	ID               int64  `json:"id"`
	SourceSessionID  string `json:"source_session_id"`
	SessionID        string `json:"session_id"`
	ProjectPath      string `json:"project_path"`
	Repository       string `json:"repository,omitempty"`
	Owner            string `json:"owner"`
	Role             string `json:"role"` // "user" or "assistant"
	Content          string `json:"content"`
	Thinking         string `json:"thinking,omitempty"`
	Metadata         string `json:"metadata,omitempty"` // versioned JSON blob
	Timestamp        string `json:"timestamp"`          // RFC3339 UTC
	Ordinal          int    `json:"ordinal"`
	IsCompactSummary bool   `json:"is_compact_summary"`
	AgentID          string `json:"agent_id,omitempty"`
	AgentType        string `json:"agent_type,omitempty"`
}

// Checkpoint marks how much of a source session's log has been
// ingested and whether the session was explicitly committed.
// LastSavedLine is monotonically non-decreasing per source session.
type Checkpoint struct {
	SourceSessionID    string `json:"source_session_id"`
	SessionID          string `json:"session_id"`
	ProjectPath        string `json:"project_path"`
	LastSavedTimestamp string `json:"last_saved_timestamp"`
	LastSavedLine      int    `json:"last_saved_line"`
	IsCommitted        bool   `json:"is_committed"`
	UpdatedAt          string `json:"updated_at"`
}

// Backup is a point-in-time snapshot of a session's turns, taken
// before a compaction event truncates the log. Consumed and cleared
// by the next reconciling save.
type Backup struct {
	SessionID   string `json:"session_id"`
	ProjectPath string `json:"project_path"`
	Owner       string `json:"owner"`
	Turns       []Turn `json:"turns"`
	CreatedAt   string `json:"created_at"`
}

// TurnMatch is a turn with a full-text rank score.
type TurnMatch struct {
	Turn
	Rank float64 `json:"rank"`
}

// Stats holds aggregate store statistics.
type Stats struct {
	TotalTurns       int      `json:"total_turns"`
	TotalSessions    int      `json:"total_sessions"`
	UncommittedCount int      `json:"uncommitted_count"`
	PendingBackups   int      `json:"pending_backups"`
	Projects         []string `json:"projects"`
}

// Store is the durable relational store backed by SQLite + FTS5.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates the data directory if needed, opens SQLite with WAL
// mode and a busy timeout, and initializes the schema when the probe
// query shows it is missing.
func Open(dataDir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// A concurrent reader (dashboard) and writer (ingestion) must not
	// deadlock; they may serialize briefly on the busy timeout.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate probes for the expected schema and initializes it when the
// probe fails. All statements are idempotent, so a partially created
// schema is simply completed on the next open.
func (s *Store) migrate() error {
	var probe int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM checkpoints LIMIT 1`).Scan(&probe)
	if err == nil {
		// Schema present; still ensure later additions exist.
		return s.createSchema()
	}
	s.log.Debug().Err(err).Msg("schema probe failed, initializing")
	return s.createSchema()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			source_session_id  TEXT    NOT NULL,
			session_id         TEXT    NOT NULL,
			project_path       TEXT    NOT NULL,
			repository         TEXT,
			owner              TEXT    NOT NULL DEFAULT '',
			role               TEXT    NOT NULL CHECK (role IN ('user', 'assistant')),
			content            TEXT    NOT NULL,
			thinking           TEXT,
			metadata           TEXT,
			timestamp          TEXT    NOT NULL,
			ordinal            INTEGER NOT NULL DEFAULT 0,
			is_compact_summary INTEGER NOT NULL DEFAULT 0,
			agent_id           TEXT,
			agent_type         TEXT
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_identity
			ON turns(source_session_id, role, timestamp, ordinal);
		CREATE INDEX IF NOT EXISTS idx_turns_source   ON turns(source_session_id);
		CREATE INDEX IF NOT EXISTS idx_turns_session  ON turns(session_id);
		CREATE INDEX IF NOT EXISTS idx_turns_project  ON turns(project_path);
		CREATE INDEX IF NOT EXISTS idx_turns_time     ON turns(timestamp);

		CREATE VIRTUAL TABLE IF NOT EXISTS turns_fts USING fts5(
			content,
			thinking,
			content='turns',
			content_rowid='id'
		);

		CREATE TABLE IF NOT EXISTS checkpoints (
			source_session_id    TEXT    PRIMARY KEY,
			session_id           TEXT    NOT NULL,
			project_path         TEXT    NOT NULL,
			last_saved_timestamp TEXT    NOT NULL DEFAULT '',
			last_saved_line      INTEGER NOT NULL DEFAULT 0,
			is_committed         INTEGER NOT NULL DEFAULT 0,
			updated_at           TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS backups (
			session_id   TEXT PRIMARY KEY,
			project_path TEXT NOT NULL,
			owner        TEXT NOT NULL DEFAULT '',
			turns        TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS shadow-table triggers. Turns are never updated, so insert
	// and delete triggers suffice.
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='turns_fts_insert'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER turns_fts_insert AFTER INSERT ON turns BEGIN
				INSERT INTO turns_fts(rowid, content, thinking)
				VALUES (new.id, new.content, COALESCE(new.thinking, ''));
			END;

			CREATE TRIGGER turns_fts_delete AFTER DELETE ON turns BEGIN
				INSERT INTO turns_fts(turns_fts, rowid, content, thinking)
				VALUES ('delete', old.id, old.content, COALESCE(old.thinking, ''));
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Now returns the current UTC time formatted as RFC3339, the canonical
// timestamp representation throughout the store.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
