package knowtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hir4ta/mneme-sub001/internal/lifecycle"
)

// SaveTool handles the transcript_save MCP tool.
type SaveTool struct {
	lc *lifecycle.Manager
}

// NewSaveTool creates a SaveTool with the given lifecycle manager.
func NewSaveTool(lc *lifecycle.Manager) *SaveTool {
	return &SaveTool{lc: lc}
}

// Definition returns the MCP tool definition for transcript_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("transcript_save",
		mcp.WithDescription(
			"Incrementally ingest the session transcript from its last checkpoint. "+
				"Safe to call repeatedly: already-saved turns are never duplicated.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Source session identifier from the transcript producer"),
		),
		mcp.WithString("transcript_path",
			mcp.Required(),
			mcp.Description("Path to the JSONL transcript log"),
		),
		mcp.WithString("cwd",
			mcp.Description("Project working directory for the session"),
		),
	)
}

// Handle processes the transcript_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	logPath := req.GetString("transcript_path", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if logPath == "" {
		return mcp.NewToolResultError("'transcript_path' is required"), nil
	}
	cwd := req.GetString("cwd", "")

	res, err := t.lc.Save(sessionID, logPath, cwd)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

// ─── BackupTool ─────────────────────────────────────────────────────────────

// BackupTool handles the transcript_backup MCP tool, called right
// before the producer compacts the transcript log.
type BackupTool struct {
	lc *lifecycle.Manager
}

// NewBackupTool creates a BackupTool.
func NewBackupTool(lc *lifecycle.Manager) *BackupTool {
	return &BackupTool{lc: lc}
}

// Definition returns the MCP tool definition for transcript_backup.
func (t *BackupTool) Definition() mcp.Tool {
	return mcp.NewTool("transcript_backup",
		mcp.WithDescription(
			"Snapshot the session's saved turns before the transcript log is compacted. "+
				"The next transcript_save reconciles against this snapshot instead of trusting stale line offsets.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Source session identifier"),
		),
	)
}

// Handle processes the transcript_backup tool call.
func (t *BackupTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	n, err := t.lc.PrepareCompaction(sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("backup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Backup saved: %d turns snapshotted for session %s", n, sessionID)), nil
}
