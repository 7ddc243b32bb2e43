package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DecisionDoc records one durable decision extracted from a session,
// partitioned by year/month like session documents.
type DecisionDoc struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	Status    string   `json:"status,omitempty"`
	Problem   string   `json:"problem,omitempty"`
	Decision  string   `json:"decision,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// SaveDecisionDoc creates or updates a decision document.
func (s *Store) SaveDecisionDoc(doc *DecisionDoc) error {
	if doc.ID == "" {
		return fmt.Errorf("docstore: decision doc without id")
	}
	if doc.CreatedAt == "" {
		doc.CreatedAt = Now()
	}
	doc.UpdatedAt = Now()

	created, err := time.Parse(time.RFC3339, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("docstore: decision %s: bad createdAt %q: %w", doc.ID, doc.CreatedAt, err)
	}
	path := filepath.Join(s.monthDir(DecisionsDir, created.UTC()), doc.ID+".json")
	return writeJSON(path, doc)
}

// ListDecisionDocs returns every decision document in stable order.
func (s *Store) ListDecisionDocs() ([]DecisionDoc, error) {
	var docs []DecisionDoc
	err := walkFiles(s.EntityDir(DecisionsDir), func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var doc DecisionDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			s.log.Warn().Str("path", path).Err(err).Msg("skipping unreadable decision doc")
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// DecisionDocsForMonth returns the decision documents in one partition.
func (s *Store) DecisionDocsForMonth(year, month int) ([]DecisionDoc, error) {
	var docs []DecisionDoc
	err := walkFiles(s.MonthDir(DecisionsDir, year, month), func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var doc DecisionDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}
