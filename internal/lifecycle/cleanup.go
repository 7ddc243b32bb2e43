package lifecycle

import (
	"fmt"
	"time"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/store"
)

// Policy selects what happens to an uncommitted session at session end.
type Policy string

const (
	// PolicyImmediate deletes uncommitted, summary-less sessions now.
	PolicyImmediate Policy = "immediate"
	// PolicyGrace marks the session uncommitted and leaves deletion to
	// a later sweep, after the grace window.
	PolicyGrace Policy = "grace"
	// PolicyNever marks the session uncommitted; nothing is ever
	// deleted automatically.
	PolicyNever Policy = "never"
)

// ParsePolicy validates a policy string, defaulting empty to grace.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyImmediate, PolicyGrace, PolicyNever:
		return Policy(s), nil
	case "":
		return PolicyGrace, nil
	default:
		return "", fmt.Errorf("lifecycle: unknown cleanup policy %q", s)
	}
}

// FinalizeResult reports the retention decision made at session end.
type FinalizeResult struct {
	Policy         Policy `json:"policy"`
	Deleted        bool   `json:"deleted"`
	RowsDeleted    int    `json:"rows_deleted"`
	MarkedComplete bool   `json:"marked_complete"`
	CleanupAfter   string `json:"cleanup_after,omitempty"`
}

// Finalize runs a final catch-up save for the session, then applies
// the retention policy. A document with a summary is never deleted by
// any policy.
func (m *Manager) Finalize(sourceSessionID, cwd, logPath string, policy Policy, graceDays int) (*FinalizeResult, error) {
	if _, err := m.Save(sourceSessionID, logPath, cwd); err != nil {
		m.log.Warn().Str("session", sourceSessionID).Err(err).Msg("final save failed, finalizing anyway")
	}

	cp, err := m.store.GetCheckpoint(sourceSessionID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: finalize: %w", err)
	}
	if cp == nil {
		return &FinalizeResult{Policy: policy}, nil
	}

	doc, err := m.docs.LoadSessionDoc(cp.SessionID)
	if err != nil {
		m.log.Warn().Str("session", sourceSessionID).Err(err).Msg("session doc load failed during finalize")
	}

	result := &FinalizeResult{Policy: policy}

	if cp.IsCommitted {
		m.markStatus(doc, cp, docstore.StatusComplete, "")
		result.MarkedComplete = true
		return result, nil
	}

	switch policy {
	case PolicyImmediate:
		if doc == nil || doc.Summary == "" {
			n, err := m.deleteSession(cp)
			if err != nil {
				return nil, fmt.Errorf("lifecycle: finalize: %w", err)
			}
			result.Deleted = true
			result.RowsDeleted = n
			return result, nil
		}
		// Rows exist but deletion is skipped because a summary is
		// present: mark the document complete instead.
		m.markStatus(doc, cp, docstore.StatusComplete, "")
		result.MarkedComplete = true

	case PolicyGrace:
		cleanupAfter := m.now().UTC().AddDate(0, 0, graceDays).Format(time.RFC3339)
		m.markStatus(doc, cp, docstore.StatusUncommitted, cleanupAfter)
		result.CleanupAfter = cleanupAfter

	case PolicyNever:
		m.markStatus(doc, cp, docstore.StatusUncommitted, "")

	default:
		return nil, fmt.Errorf("lifecycle: finalize: unknown policy %q", policy)
	}

	return result, nil
}

// SweepResult reports what a retention sweep did.
type SweepResult struct {
	Removed []string `json:"removed,omitempty"`
	Skipped int      `json:"skipped"`
}

// SweepStale deletes every uncommitted session whose checkpoint has
// not been touched within the grace window. Any session that has
// gained a summary since being marked is skipped unconditionally.
func (m *Manager) SweepStale(projectPath string, graceDays int) (*SweepResult, error) {
	cutoff := m.now().UTC().AddDate(0, 0, -graceDays)
	checkpoints, err := m.store.StaleCheckpoints(projectPath, cutoff)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: sweep: %w", err)
	}

	result := &SweepResult{}
	for _, cp := range checkpoints {
		doc, err := m.docs.LoadSessionDoc(cp.SessionID)
		if err != nil {
			m.log.Warn().Str("session", cp.SourceSessionID).Err(err).Msg("sweep: doc load failed, skipping")
			result.Skipped++
			continue
		}
		if doc != nil && doc.Summary != "" {
			result.Skipped++
			continue
		}
		if _, err := m.deleteSession(&cp); err != nil {
			m.log.Warn().Str("session", cp.SourceSessionID).Err(err).Msg("sweep: cleanup failed")
			result.Skipped++
			continue
		}
		result.Removed = append(result.Removed, cp.SourceSessionID)
	}

	m.log.Info().Int("removed", len(result.Removed)).Int("skipped", result.Skipped).Msg("stale session sweep complete")
	return result, nil
}

// deleteSession removes every trace of a session. Rows go first, then
// the document file, then the link file, so a reader racing a cleanup
// never resolves a link to a deleted document.
func (m *Manager) deleteSession(cp *store.Checkpoint) (int, error) {
	n, err := m.store.DeleteSessionTurns(cp.SourceSessionID)
	if err != nil {
		return 0, err
	}
	if err := m.store.DeleteCheckpoint(cp.SourceSessionID); err != nil {
		return n, err
	}
	if err := m.docs.DeleteSessionDoc(cp.SessionID); err != nil {
		return n, err
	}
	if err := m.docs.DeleteLink(docstore.ShortID(cp.SourceSessionID)); err != nil {
		return n, err
	}
	m.log.Debug().Str("session", cp.SourceSessionID).Int("rows", n).Msg("session deleted")
	return n, nil
}

// markStatus updates the document's lifecycle status fields.
func (m *Manager) markStatus(doc *docstore.SessionDoc, cp *store.Checkpoint, status, cleanupAfter string) {
	if doc == nil {
		doc = &docstore.SessionDoc{ID: cp.SessionID, Project: cp.ProjectPath}
	}
	doc.Status = status
	doc.CleanupAfter = cleanupAfter
	if err := m.docs.SaveSessionDoc(doc); err != nil {
		m.log.Warn().Str("session", cp.SourceSessionID).Err(err).Msg("session doc status update failed")
	}
}
