// Package knowtools provides the MCP tool handlers for the knowledge
// capture system.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers validate arguments and delegate; the lifecycle, index, and
// search packages own the behavior.
package knowtools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// jsonResult renders v as an indented JSON tool result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(data))
}
