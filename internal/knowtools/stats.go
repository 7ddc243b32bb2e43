package knowtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/store"
)

// StatsTool handles the knowledge_stats MCP tool.
type StatsTool struct {
	store *store.Store
	docs  *docstore.Store
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(st *store.Store, docs *docstore.Store) *StatsTool {
	return &StatsTool{store: st, docs: docs}
}

// statsReport combines relational and document store counts.
type statsReport struct {
	store.Stats
	SessionDocs  int `json:"session_docs"`
	DecisionDocs int `json:"decision_docs"`
	Patterns     int `json:"patterns"`
	RuleSets     int `json:"rule_sets"`
}

// Definition returns the MCP tool definition for knowledge_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_stats",
		mcp.WithDescription(
			"Aggregate statistics: archived turns, tracked sessions, pending backups, "+
				"document counts, and pattern inventory.",
		),
	)
}

// Handle processes the knowledge_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dbStats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	report := statsReport{Stats: *dbStats}

	if docs, err := t.docs.ListSessionDocs(); err == nil {
		report.SessionDocs = len(docs)
	}
	if docs, err := t.docs.ListDecisionDocs(); err == nil {
		report.DecisionDocs = len(docs)
	}
	if patterns, err := t.docs.ListPatterns(); err == nil {
		report.Patterns = len(patterns)
	}
	if sets, err := t.docs.ListRuleSets(); err == nil {
		report.RuleSets = len(sets)
	}
	return jsonResult(report), nil
}
