// Package lifecycle drives the session state machine: checkpointed
// saves, compaction reconciliation, commit marking, and retention
// cleanup.
//
// Callers must serialize saves per source session id. Overlapping
// calls could double-count lines against a shared checkpoint; this is
// a documented caller contract, not an internal lock.
package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/store"
	"github.com/hir4ta/mneme-sub001/internal/transcript"
)

const titleMaxLen = 80

// Manager owns the session lifecycle.
type Manager struct {
	store *store.Store
	docs  *docstore.Store
	log   zerolog.Logger
	owner string
	now   func() time.Time
}

// New creates a lifecycle manager.
func New(st *store.Store, docs *docstore.Store, log zerolog.Logger) *Manager {
	return &Manager{
		store: st,
		docs:  docs,
		log:   log,
		owner: os.Getenv("USER"),
		now:   time.Now,
	}
}

// SaveResult reports the outcome of one save call.
type SaveResult struct {
	Inserted   int  `json:"inserted"`
	TotalLines int  `json:"total_lines"`
	Reconciled bool `json:"reconciled"`
}

// Save ingests the log incrementally from the session's checkpoint,
// writes one row per turn-half, and advances the checkpoint.
// Idempotent: calling twice with an unchanged log inserts nothing,
// because the checkpoint strictly gates what is re-parsed.
//
// When a pre-compaction backup is pending for the session, Save runs
// the reconciliation path instead: a full resync, not an increment.
func (m *Manager) Save(sourceSessionID, logPath, projectPath string) (*SaveResult, error) {
	if sourceSessionID == "" {
		return nil, fmt.Errorf("lifecycle: save: source session id required")
	}

	cp, err := m.store.GetCheckpoint(sourceSessionID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: save: %w", err)
	}
	if cp == nil {
		cp, err = m.initSession(sourceSessionID, projectPath)
		if err != nil {
			return nil, err
		}
	}

	backup, err := m.store.GetBackup(sourceSessionID)
	if err != nil {
		m.log.Warn().Str("session", sourceSessionID).Err(err).Msg("backup lookup failed, saving incrementally")
		backup = nil
	}
	if backup != nil {
		return m.reconcile(cp, backup, logPath, projectPath)
	}

	res, err := transcript.Ingest(logPath, cp.LastSavedLine)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: save: %w", err)
	}
	if res.SkippedLines > 0 {
		m.log.Debug().Str("session", sourceSessionID).Int("skipped", res.SkippedLines).Msg("dropped malformed log lines")
	}

	inserted := 0
	ordinals := map[string]int{}
	for _, t := range res.Turns {
		for _, row := range m.turnRows(t, cp, projectPath, ordinals) {
			ok, err := m.store.InsertTurn(row)
			if err != nil {
				// One bad turn never blocks the rest of a save.
				m.log.Warn().Str("session", sourceSessionID).Str("role", row.Role).Err(err).Msg("skipping turn row")
				continue
			}
			if ok {
				inserted++
			}
		}
	}

	cp.LastSavedLine = res.ConsumedLine
	if !res.LatestTimestamp.IsZero() {
		cp.LastSavedTimestamp = res.LatestTimestamp.Format(time.RFC3339)
	}
	cp.ProjectPath = projectPath
	if err := m.store.UpsertCheckpoint(*cp); err != nil {
		return nil, fmt.Errorf("lifecycle: save: %w", err)
	}

	m.refreshSessionDoc(cp, res.Turns)

	return &SaveResult{Inserted: inserted, TotalLines: res.TotalLines}, nil
}

// Commit marks the session as explicitly kept. This is the only way a
// session exits the uncommitted state short of being deleted.
func (m *Manager) Commit(sourceSessionID string) error {
	if err := m.store.MarkCommitted(sourceSessionID); err != nil {
		return fmt.Errorf("lifecycle: commit: %w", err)
	}
	return nil
}

// PrepareCompaction snapshots the session's current rows into the
// backup table. The external producer calls this right before it
// compacts the log; the next Save reconciles against the snapshot.
func (m *Manager) PrepareCompaction(sourceSessionID string) (int, error) {
	turns, err := m.store.TurnsBySource(sourceSessionID)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: prepare compaction: %w", err)
	}
	projectPath := ""
	if cp, err := m.store.GetCheckpoint(sourceSessionID); err == nil && cp != nil {
		projectPath = cp.ProjectPath
	}
	err = m.store.SaveBackup(store.Backup{
		SessionID:   sourceSessionID,
		ProjectPath: projectPath,
		Owner:       m.owner,
		Turns:       turns,
	})
	if err != nil {
		return 0, fmt.Errorf("lifecycle: prepare compaction: %w", err)
	}
	return len(turns), nil
}

// initSession creates the checkpoint, the session document, and the
// short-id link file on the first save for a source session.
func (m *Manager) initSession(sourceSessionID, projectPath string) (*store.Checkpoint, error) {
	sessionID := uuid.NewString()
	cp := &store.Checkpoint{
		SourceSessionID: sourceSessionID,
		SessionID:       sessionID,
		ProjectPath:     projectPath,
	}
	if err := m.store.UpsertCheckpoint(*cp); err != nil {
		return nil, fmt.Errorf("lifecycle: init session: %w", err)
	}

	doc := &docstore.SessionDoc{
		ID:      sessionID,
		Project: projectPath,
	}
	if err := m.docs.SaveSessionDoc(doc); err != nil {
		m.log.Warn().Str("session", sourceSessionID).Err(err).Msg("session doc create failed")
	}
	if err := m.docs.WriteLink(docstore.ShortID(sourceSessionID), sessionID); err != nil {
		m.log.Warn().Str("session", sourceSessionID).Err(err).Msg("link file create failed")
	}
	return cp, nil
}

// turnRows converts one assembled turn into its user and assistant
// half-rows. Ordinals disambiguate rows that share (role, timestamp)
// and are deterministic for a given parse window, so re-ingestion of
// the same lines maps onto the same identities.
func (m *Manager) turnRows(t transcript.Turn, cp *store.Checkpoint, projectPath string, ordinals map[string]int) []store.Turn {
	meta := ""
	if t.Meta != nil {
		meta = t.Meta.Encode()
	}

	base := store.Turn{
		SourceSessionID:  cp.SourceSessionID,
		SessionID:        cp.SessionID,
		ProjectPath:      projectPath,
		Repository:       filepath.Base(projectPath),
		Owner:            m.owner,
		IsCompactSummary: t.IsCompactSummary,
		AgentID:          t.AgentID,
		AgentType:        t.AgentType,
	}

	user := base
	user.Role = "user"
	user.Content = t.UserText
	user.Timestamp = t.UserTimestamp.UTC().Format(time.RFC3339)
	user.Ordinal = nextOrdinal(ordinals, user.Role, user.Timestamp)

	assistant := base
	assistant.Role = "assistant"
	assistant.Content = t.AssistantText
	assistant.Thinking = t.Thinking
	assistant.Metadata = meta
	assistant.Timestamp = t.AssistantTimestamp.UTC().Format(time.RFC3339)
	assistant.Ordinal = nextOrdinal(ordinals, assistant.Role, assistant.Timestamp)

	return []store.Turn{user, assistant}
}

func nextOrdinal(ordinals map[string]int, role, timestamp string) int {
	key := role + "|" + timestamp
	n := ordinals[key]
	ordinals[key] = n + 1
	return n
}

// refreshSessionDoc updates the document's title and turn count after
// a save. Document update failures are logged, never fatal: the rows
// and checkpoint are already durable, and the doc is re-derived on the
// next save.
func (m *Manager) refreshSessionDoc(cp *store.Checkpoint, newTurns []transcript.Turn) {
	doc, err := m.docs.LoadSessionDoc(cp.SessionID)
	if err != nil {
		m.log.Warn().Str("session", cp.SourceSessionID).Err(err).Msg("session doc load failed")
		return
	}
	if doc == nil {
		doc = &docstore.SessionDoc{ID: cp.SessionID, Project: cp.ProjectPath}
	}

	if doc.Title == "" && len(newTurns) > 0 {
		doc.Title = deriveTitle(newTurns[0].UserText)
	}
	if n, err := m.store.TurnCount(cp.SourceSessionID); err == nil {
		doc.TurnCount = n
	}
	if err := m.docs.SaveSessionDoc(doc); err != nil {
		m.log.Warn().Str("session", cp.SourceSessionID).Err(err).Msg("session doc update failed")
	}
}

// deriveTitle produces a session title from the first user message.
func deriveTitle(userText string) string {
	title := strings.Join(strings.Fields(userText), " ")
	if len(title) > titleMaxLen {
		title = title[:titleMaxLen] + "..."
	}
	return title
}
