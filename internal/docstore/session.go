package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SessionDoc is the long-lived record for one captured session.
// Created at session start, mutated by save/summary updates, deleted
// only by cleanup when uncommitted and past retention. A document with
// a non-empty Summary is never deleted by any cleanup path.
type SessionDoc struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Tags         []string `json:"tags,omitempty"`
	Status       string   `json:"status,omitempty"` // uncommitted | complete | ""
	Summary      string   `json:"summary,omitempty"`
	Project      string   `json:"project,omitempty"`
	TurnCount    int      `json:"turnCount,omitempty"`
	CleanupAfter string   `json:"cleanupAfter,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// sessionPath derives the document path from the creation time, which
// fixes the year/month partition for the document's lifetime.
func (s *Store) sessionPath(doc *SessionDoc) (string, error) {
	created, err := time.Parse(time.RFC3339, doc.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("docstore: session %s: bad createdAt %q: %w", doc.ID, doc.CreatedAt, err)
	}
	return filepath.Join(s.monthDir(SessionsDir, created.UTC()), doc.ID+".json"), nil
}

// SaveSessionDoc creates or updates a session document, stamping
// UpdatedAt. CreatedAt is stamped on first save.
func (s *Store) SaveSessionDoc(doc *SessionDoc) error {
	if doc.ID == "" {
		return fmt.Errorf("docstore: session doc without id")
	}
	if doc.CreatedAt == "" {
		doc.CreatedAt = Now()
	}
	doc.UpdatedAt = Now()

	path, err := s.sessionPath(doc)
	if err != nil {
		return err
	}
	return writeJSON(path, doc)
}

// LoadSessionDoc finds a session document by id, walking the
// year/month partitions. Returns nil when it does not exist.
func (s *Store) LoadSessionDoc(id string) (*SessionDoc, error) {
	path, err := s.findSessionPath(id)
	if err != nil || path == "" {
		return nil, err
	}
	return s.loadSessionFile(path)
}

// DeleteSessionDoc removes a session document. Deleting a document
// that does not exist is a no-op.
func (s *Store) DeleteSessionDoc(id string) error {
	path, err := s.findSessionPath(id)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("docstore: delete session %s: %w", id, err)
	}
	return nil
}

// ListSessionDocs returns every session document, in stable
// enumeration order (partition, then file name).
func (s *Store) ListSessionDocs() ([]SessionDoc, error) {
	var docs []SessionDoc
	err := walkFiles(s.EntityDir(SessionsDir), func(path string) error {
		doc, err := s.loadSessionFile(path)
		if err != nil {
			s.log.Warn().Str("path", path).Err(err).Msg("skipping unreadable session doc")
			return nil
		}
		docs = append(docs, *doc)
		return nil
	})
	return docs, err
}

// SessionDocsForMonth returns the session documents in one partition.
func (s *Store) SessionDocsForMonth(year, month int) ([]SessionDoc, error) {
	var docs []SessionDoc
	err := walkFiles(s.MonthDir(SessionsDir, year, month), func(path string) error {
		doc, err := s.loadSessionFile(path)
		if err != nil {
			s.log.Warn().Str("path", path).Err(err).Msg("skipping unreadable session doc")
			return nil
		}
		docs = append(docs, *doc)
		return nil
	})
	return docs, err
}

func (s *Store) findSessionPath(id string) (string, error) {
	target := id + ".json"
	var found string
	err := walkFiles(s.EntityDir(SessionsDir), func(path string) error {
		if filepath.Base(path) == target {
			found = path
		}
		return nil
	})
	return found, err
}

func (s *Store) loadSessionFile(path string) (*SessionDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docstore: read session doc: %w", err)
	}
	var doc SessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("docstore: parse session doc %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}

// ─── Link files ──────────────────────────────────────────────────────────────

// Link maps a short session id to a master session id, used when a
// long conversation spans multiple source sessions.
type Link struct {
	ShortID  string `json:"shortId"`
	MasterID string `json:"masterId"`
}

func (s *Store) linkPath(shortID string) string {
	return filepath.Join(s.root, LinksDir, shortID+".json")
}

// WriteLink records a short-id → master-id mapping.
func (s *Store) WriteLink(shortID, masterID string) error {
	return writeJSON(s.linkPath(shortID), &Link{ShortID: shortID, MasterID: masterID})
}

// ResolveLink returns the master id for a short id, or "" when no link
// exists.
func (s *Store) ResolveLink(shortID string) (string, error) {
	data, err := os.ReadFile(s.linkPath(shortID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("docstore: read link %s: %w", shortID, err)
	}
	var l Link
	if err := json.Unmarshal(data, &l); err != nil {
		return "", fmt.Errorf("docstore: parse link %s: %w", shortID, err)
	}
	return l.MasterID, nil
}

// DeleteLink removes a link file. Missing links are a no-op.
func (s *Store) DeleteLink(shortID string) error {
	if err := os.Remove(s.linkPath(shortID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("docstore: delete link %s: %w", shortID, err)
	}
	return nil
}

// ShortID derives the short form of a source session id used for link
// file names.
func ShortID(sourceSessionID string) string {
	id := strings.TrimSpace(sourceSessionID)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
