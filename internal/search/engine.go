// Package search ranks knowledge across the document store, the
// derived index, and the relational turn archive. Scoring is tiered
// and deterministic: exact matches always outrank partial ones, and
// ties keep their enumeration order.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/index"
	"github.com/hir4ta/mneme-sub001/internal/store"
)

// Target selects which corpus a search covers.
type Target string

const (
	TargetSessions  Target = "sessions"
	TargetDecisions Target = "decisions"
	TargetPatterns  Target = "patterns"
	TargetTurns     Target = "turns"
)

// AllTargets is the default search scope.
var AllTargets = []Target{TargetSessions, TargetDecisions, TargetPatterns, TargetTurns}

// Result is one ranked hit.
type Result struct {
	Type          string   `json:"type"`
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
}

// Response is a completed search: ranked results plus what was left
// out and whether the time budget ran out.
type Response struct {
	Results   []Result `json:"results"`
	Truncated bool     `json:"truncated"`
	TimedOut  bool     `json:"timed_out"`
}

// Engine executes searches. Safe for concurrent use; all state is
// read-only after construction.
type Engine struct {
	store      *store.Store
	docs       *docstore.Store
	idx        *index.Manager
	aliases    AliasDict
	log        zerolog.Logger
	maxResults int
	timeout    time.Duration
	now        func() time.Time
}

// New creates a search engine. maxResults caps every response;
// timeout is the wall-clock budget per search.
func New(st *store.Store, docs *docstore.Store, idx *index.Manager, aliases AliasDict, maxResults int, timeout time.Duration, log zerolog.Logger) *Engine {
	if aliases == nil {
		aliases = AliasDict{}
	}
	return &Engine{
		store:      st,
		docs:       docs,
		idx:        idx,
		aliases:    aliases,
		log:        log,
		maxResults: maxResults,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Search ranks the query against the requested targets. Scoring runs
// to completion or until the wall-clock budget expires, whichever
// comes first; a timed-out response carries whatever was ranked so
// far with TimedOut set.
func (e *Engine) Search(ctx context.Context, query string, targets []Target, limit int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	if len(targets) == 0 {
		targets = AllTargets
	}
	if limit <= 0 || limit > e.maxResults {
		limit = e.maxResults
	}

	terms := e.aliases.Expand(strings.Fields(strings.ToLower(query)))
	deadline := e.now().Add(e.timeout)

	resp := &Response{}
	var all []Result
	for _, target := range targets {
		if e.expired(ctx, deadline) {
			resp.TimedOut = true
			break
		}
		var (
			results []Result
			err     error
		)
		switch target {
		case TargetSessions:
			results, err = e.searchEntries(index.KindSession, terms)
		case TargetDecisions:
			results, err = e.searchEntries(index.KindDecision, terms)
		case TargetPatterns:
			results, err = e.searchPatterns(terms)
		case TargetTurns:
			results, err = e.searchTurns(query, limit)
		default:
			return nil, fmt.Errorf("search: unknown target %q", target)
		}
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}

	// Stable sort: equal scores keep corpus enumeration order.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > limit {
		all = all[:limit]
		resp.Truncated = true
	}
	resp.Results = all
	return resp, nil
}

func (e *Engine) expired(ctx context.Context, deadline time.Time) bool {
	return ctx.Err() != nil || e.now().After(deadline)
}

// searchEntries ranks indexed session or decision entries by fuzzy
// title and tag matching. When no index exists yet it falls back to
// reading the documents directly, so search works before the first
// rebuild.
func (e *Engine) searchEntries(kind string, terms []string) ([]Result, error) {
	entries, err := e.idx.ReadAll(kind)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries, err = e.entriesFromDocs(kind)
		if err != nil {
			return nil, err
		}
	}

	var results []Result
	for _, entry := range entries {
		score, fields := scoreEntry(entry, terms)
		if score == 0 {
			continue
		}
		results = append(results, Result{
			Type:          entry.Kind,
			ID:            entry.ID,
			Title:         entry.Title,
			Score:         score,
			MatchedFields: fields,
		})
	}
	return results, nil
}

// scoreEntry rates every field against every query term and sums the
// tiers. The fields are the title and each tag, compared as whole
// values; a term matching both the title and a tag contributes both
// tiers. Summing keeps an exact tag hit ahead of any pile of partial
// hits, because the tiers themselves are ordered.
func scoreEntry(entry index.Entry, terms []string) (float64, []string) {
	var score float64
	var fields []string
	for _, term := range terms {
		if s := fuzzyScore(term, entry.Title); s > 0 {
			score += float64(s)
			if !contains(fields, "title") {
				fields = append(fields, "title")
			}
		}
		for _, tag := range entry.Tags {
			if s := fuzzyScore(term, tag); s > 0 {
				score += float64(s)
				if !contains(fields, "tags") {
					fields = append(fields, "tags")
				}
			}
		}
	}
	return score, fields
}

func (e *Engine) entriesFromDocs(kind string) ([]index.Entry, error) {
	var entries []index.Entry
	switch kind {
	case index.KindSession:
		docs, err := e.docs.ListSessionDocs()
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			entries = append(entries, index.Entry{ID: d.ID, Kind: kind, Title: d.Title, Tags: d.Tags})
		}
	case index.KindDecision:
		docs, err := e.docs.ListDecisionDocs()
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			entries = append(entries, index.Entry{ID: d.ID, Kind: kind, Title: d.Title, Tags: d.Tags})
		}
	}
	return entries, nil
}

// searchPatterns ranks approved patterns and rules. Unapproved
// patterns never appear regardless of score.
func (e *Engine) searchPatterns(terms []string) ([]Result, error) {
	patterns, err := e.docs.ListPatterns()
	if err != nil {
		return nil, err
	}
	sets, err := e.docs.ListRuleSets()
	if err != nil {
		return nil, err
	}
	for _, set := range sets {
		for _, r := range set.Rules {
			patterns = append(patterns, docstore.Pattern{
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
				Keywords:    r.Keywords,
				Status:      r.Status,
				Priority:    r.Priority,
			})
		}
	}

	matcher := newPatternMatcher(terms)
	var results []Result
	for _, p := range patterns {
		if !p.Approved() {
			continue
		}
		score, fields := matcher.score(p)
		if score == 0 {
			continue
		}
		results = append(results, Result{
			Type:          "pattern",
			ID:            p.ID,
			Title:         p.Name,
			Score:         score,
			MatchedFields: fields,
		})
	}
	return results, nil
}

const snippetMaxLen = 160

// searchTurns queries the relational archive full-text. FTS rank is
// negative-is-better; it is negated into a positive score.
func (e *Engine) searchTurns(query string, limit int) ([]Result, error) {
	matches, err := e.store.SearchTurns(query, limit)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, m := range matches {
		score := -m.Rank
		if score <= 0 {
			// Substring-fallback matches carry no rank.
			score = 1
		}
		results = append(results, Result{
			Type:          "turn",
			ID:            fmt.Sprintf("%s#%s/%d", m.SourceSessionID, m.Timestamp, m.Ordinal),
			Title:         snippet(m.Content),
			Score:         score,
			MatchedFields: []string{"content"},
			Snippet:       snippet(m.Content),
		})
	}
	return results, nil
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > snippetMaxLen {
		return text[:snippetMaxLen] + "..."
	}
	return text
}
