package knowtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hir4ta/mneme-sub001/internal/search"
)

// SearchTool handles the knowledge_search MCP tool.
type SearchTool struct {
	engine *search.Engine
}

// NewSearchTool creates a SearchTool with the given engine.
func NewSearchTool(engine *search.Engine) *SearchTool {
	return &SearchTool{engine: engine}
}

// Definition returns the MCP tool definition for knowledge_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("knowledge_search",
		mcp.WithDescription(
			"Search captured knowledge: sessions, decisions, approved patterns, and archived "+
				"conversation turns. Results are ranked; exact matches always outrank partial ones.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search terms"),
		),
		mcp.WithString("targets",
			mcp.Description("Comma-separated subset of: sessions, decisions, patterns, turns (default: all)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: configured maximum)"),
		),
	)
}

// Handle processes the knowledge_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	var targets []search.Target
	if raw := req.GetString("targets", ""); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				targets = append(targets, search.Target(part))
			}
		}
	}

	resp, err := t.engine.Search(ctx, query, targets, intArg(req, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(resp), nil
}
