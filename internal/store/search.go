package store

import (
	"fmt"
	"strings"
)

// SearchTurns performs full-text search over turn content and thinking
// via the FTS5 shadow table. When the FTS query cannot be executed
// (unparsable query, missing virtual table), it falls back to a plain
// substring scan so callers always get a best-effort answer.
func (s *Store) SearchTurns(query string, limit int) ([]TurnMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT t.id, t.source_session_id, t.session_id, t.project_path,
		        COALESCE(t.repository, ''), t.owner, t.role, t.content,
		        COALESCE(t.thinking, ''), COALESCE(t.metadata, ''), t.timestamp, t.ordinal,
		        t.is_compact_summary, COALESCE(t.agent_id, ''), COALESCE(t.agent_type, ''),
		        fts.rank
		 FROM turns_fts fts
		 JOIN turns t ON t.id = fts.rowid
		 WHERE turns_fts MATCH ?
		 ORDER BY fts.rank, t.id
		 LIMIT ?`,
		ftsQuery, limit,
	)
	if err != nil {
		s.log.Debug().Err(err).Str("query", query).Msg("fts unavailable, falling back to substring scan")
		return s.scanTurnsSubstring(query, limit)
	}
	defer func() { _ = rows.Close() }()

	var results []TurnMatch
	for rows.Next() {
		var m TurnMatch
		var compact int
		if err := rows.Scan(
			&m.ID, &m.SourceSessionID, &m.SessionID, &m.ProjectPath,
			&m.Repository, &m.Owner, &m.Role, &m.Content,
			&m.Thinking, &m.Metadata, &m.Timestamp, &m.Ordinal,
			&compact, &m.AgentID, &m.AgentType, &m.Rank,
		); err != nil {
			return nil, err
		}
		m.IsCompactSummary = compact != 0
		results = append(results, m)
	}
	return results, rows.Err()
}

// scanTurnsSubstring is the fallback text search: a case-insensitive
// substring match over content and thinking, newest first. Every
// matched term must appear somewhere in the row.
func (s *Store) scanTurnsSubstring(query string, limit int) ([]TurnMatch, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	sqlStr := `SELECT ` + turnColumns + ` FROM turns WHERE 1=1`
	var args []any
	for _, term := range terms {
		sqlStr += ` AND (instr(lower(content), ?) > 0 OR instr(lower(COALESCE(thinking, '')), ?) > 0)`
		args = append(args, term, term)
	}
	sqlStr += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("substring scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []TurnMatch
	for rows.Next() {
		var m TurnMatch
		if err := scanTurn(rows.Scan, &m.Turn); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
