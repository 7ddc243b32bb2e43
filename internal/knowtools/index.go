package knowtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hir4ta/mneme-sub001/internal/config"
	"github.com/hir4ta/mneme-sub001/internal/index"
)

// IndexRebuildTool handles the index_rebuild MCP tool.
type IndexRebuildTool struct {
	idx *index.Manager
	cfg *config.Config
}

// NewIndexRebuildTool creates an IndexRebuildTool.
func NewIndexRebuildTool(idx *index.Manager, cfg *config.Config) *IndexRebuildTool {
	return &IndexRebuildTool{idx: idx, cfg: cfg}
}

// Definition returns the MCP tool definition for index_rebuild.
func (t *IndexRebuildTool) Definition() mcp.Tool {
	return mcp.NewTool("index_rebuild",
		mcp.WithDescription(
			"Regenerate every month index file and the recent aggregate from the documents. "+
				"The index is a cache; rebuilding is always safe.",
		),
		mcp.WithNumber("recent_months",
			mcp.Description("How many newest months the recent aggregate covers (default: configured value)"),
		),
	)
}

// Handle processes the index_rebuild tool call.
func (t *IndexRebuildTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	months := intArg(req, "recent_months", t.cfg.RecentMonths)
	recent, err := t.idx.RebuildAll(months)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Index rebuilt: %d recent entries across %d months", len(recent.Items), recent.Months)), nil
}

// ─── IndexStatusTool ────────────────────────────────────────────────────────

// IndexStatusTool handles the index_status MCP tool.
type IndexStatusTool struct {
	idx *index.Manager
}

// NewIndexStatusTool creates an IndexStatusTool.
func NewIndexStatusTool(idx *index.Manager) *IndexStatusTool {
	return &IndexStatusTool{idx: idx}
}

// Definition returns the MCP tool definition for index_status.
func (t *IndexStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription(
			"Report index freshness: whether any month index lags its documents, "+
				"how many index files exist, and when the recent aggregate was written.",
		),
	)
}

// Handle processes the index_status tool call.
func (t *IndexStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.idx.Report()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	return jsonResult(st), nil
}
