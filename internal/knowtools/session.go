package knowtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hir4ta/mneme-sub001/internal/config"
	"github.com/hir4ta/mneme-sub001/internal/lifecycle"
)

// CommitTool handles the session_commit MCP tool.
type CommitTool struct {
	lc *lifecycle.Manager
}

// NewCommitTool creates a CommitTool.
func NewCommitTool(lc *lifecycle.Manager) *CommitTool {
	return &CommitTool{lc: lc}
}

// Definition returns the MCP tool definition for session_commit.
func (t *CommitTool) Definition() mcp.Tool {
	return mcp.NewTool("session_commit",
		mcp.WithDescription(
			"Mark the session as explicitly kept. Committed sessions are never "+
				"removed by finalize or sweep, regardless of cleanup policy.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Source session identifier"),
		),
	)
}

// Handle processes the session_commit tool call.
func (t *CommitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if err := t.lc.Commit(sessionID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("commit failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s committed", sessionID)), nil
}

// ─── FinalizeTool ───────────────────────────────────────────────────────────

// FinalizeTool handles the session_finalize MCP tool.
type FinalizeTool struct {
	lc  *lifecycle.Manager
	cfg *config.Config
}

// NewFinalizeTool creates a FinalizeTool.
func NewFinalizeTool(lc *lifecycle.Manager, cfg *config.Config) *FinalizeTool {
	return &FinalizeTool{lc: lc, cfg: cfg}
}

// Definition returns the MCP tool definition for session_finalize.
func (t *FinalizeTool) Definition() mcp.Tool {
	return mcp.NewTool("session_finalize",
		mcp.WithDescription(
			"Run a final save and apply the retention policy at session end. "+
				"Policy 'immediate' deletes uncommitted sessions now (unless a summary exists), "+
				"'grace' schedules them for a later sweep, 'never' keeps everything.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Source session identifier"),
		),
		mcp.WithString("transcript_path",
			mcp.Required(),
			mcp.Description("Path to the JSONL transcript log"),
		),
		mcp.WithString("cwd",
			mcp.Description("Project working directory for the session"),
		),
		mcp.WithString("policy",
			mcp.Description("Cleanup policy: immediate, grace (default), or never"),
		),
	)
}

// Handle processes the session_finalize tool call.
func (t *FinalizeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	logPath := req.GetString("transcript_path", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if logPath == "" {
		return mcp.NewToolResultError("'transcript_path' is required"), nil
	}

	policy, err := lifecycle.ParsePolicy(req.GetString("policy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.lc.Finalize(sessionID, req.GetString("cwd", ""), logPath, policy, t.cfg.GraceDays)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("finalize failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

// ─── SweepTool ──────────────────────────────────────────────────────────────

// SweepTool handles the session_sweep MCP tool.
type SweepTool struct {
	lc  *lifecycle.Manager
	cfg *config.Config
}

// NewSweepTool creates a SweepTool.
func NewSweepTool(lc *lifecycle.Manager, cfg *config.Config) *SweepTool {
	return &SweepTool{lc: lc, cfg: cfg}
}

// Definition returns the MCP tool definition for session_sweep.
func (t *SweepTool) Definition() mcp.Tool {
	return mcp.NewTool("session_sweep",
		mcp.WithDescription(
			"Delete uncommitted sessions whose grace window has expired. "+
				"Sessions that gained a summary are always kept.",
		),
		mcp.WithString("project",
			mcp.Description("Restrict the sweep to one project path (default: all projects)"),
		),
		mcp.WithNumber("grace_days",
			mcp.Description("Override the configured grace window in days"),
		),
	)
}

// Handle processes the session_sweep tool call.
func (t *SweepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graceDays := intArg(req, "grace_days", t.cfg.GraceDays)
	res, err := t.lc.SweepStale(req.GetString("project", ""), graceDays)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sweep failed: %v", err)), nil
	}
	return jsonResult(res), nil
}
