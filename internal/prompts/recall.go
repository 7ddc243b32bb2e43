package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// RecallPrompt handles the knowledge-recall MCP prompt.
// It instructs the AI to search the captured knowledge base and
// synthesize what past sessions already learned about a topic.
type RecallPrompt struct{}

// NewRecallPrompt creates a RecallPrompt.
func NewRecallPrompt() *RecallPrompt {
	return &RecallPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *RecallPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("knowledge-recall",
		mcp.WithPromptDescription(
			"Recall what past sessions already know about a topic. "+
				"Searches sessions, decisions, patterns, and archived turns, "+
				"then summarizes the relevant history.",
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What to look up (e.g. 'auth middleware', 'retry policy')"),
		),
	)
}

// Handle processes the knowledge-recall prompt request.
func (p *RecallPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := ""
	if args := req.Params.Arguments; args != nil {
		topic = args["topic"]
	}
	if topic == "" {
		topic = "the task at hand"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Recall knowledge about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Before we continue, check what we already know about %s.\n\n"+
						"1. Run `knowledge_search` with query='%s'\n"+
						"2. If a past decision covers this, summarize it and say whether it still applies\n"+
						"3. If approved patterns matched, list them so we follow them here\n"+
						"4. If past session turns are relevant, quote the key exchange briefly\n"+
						"5. If nothing relevant exists, just say so and carry on",
					topic, topic,
				)),
			},
		},
	}, nil
}
