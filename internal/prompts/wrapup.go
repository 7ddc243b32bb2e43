// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// WrapupPrompt handles the session-wrapup MCP prompt.
// It walks the AI through saving, summarizing, and committing (or
// discarding) the current session before it ends.
type WrapupPrompt struct{}

// NewWrapupPrompt creates a WrapupPrompt.
func NewWrapupPrompt() *WrapupPrompt {
	return &WrapupPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *WrapupPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("session-wrapup",
		mcp.WithPromptDescription(
			"Wrap up the current session: save the remaining transcript, "+
				"write a summary, and decide whether the session is worth keeping.",
		),
		mcp.WithArgument("decision",
			mcp.ArgumentDescription(
				"What to do with the session: 'keep' (commit it) or 'discard' (finalize with the immediate policy). Default: keep",
			),
		),
	)
}

// Handle processes the session-wrapup prompt request.
func (p *WrapupPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	decision := "keep"
	if args := req.Params.Arguments; args != nil {
		if d, ok := args["decision"]; ok && d != "" {
			decision = d
		}
	}

	closing := "3. Run `session_commit` so the session is kept permanently\n"
	if decision == "discard" {
		closing = "3. Run `session_finalize` with policy='immediate' to discard the session now\n"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Wrap up session (%s)", decision),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please wrap up this session.\n\n" +
						"1. Run `transcript_save` to capture everything since the last checkpoint\n" +
						"2. Write a 2-3 sentence summary of what we accomplished, the key decisions, and anything left unfinished\n" +
						closing +
						"4. If we made a decision worth recording on its own, tell me and suggest tags for it",
				),
			},
		},
	}, nil
}
