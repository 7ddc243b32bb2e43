// Package transcript parses append-only per-session conversation logs
// incrementally and assembles them into turns.
//
// The log is untrusted input: one structured record per line, written
// by an external process that may still be appending, or may have
// truncated the file during compaction. A line that fails to parse is
// dropped, never aborts a pass.
package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is one parsed log line, decoded leniently: missing and unknown
// fields are simply defaulted.
type Event struct {
	Type             string          `json:"type"` // user | assistant | progress
	Timestamp        string          `json:"timestamp"`
	SessionID        string          `json:"sessionId,omitempty"`
	Cwd              string          `json:"cwd,omitempty"`
	Message          *Message        `json:"message,omitempty"`
	Content          string          `json:"content,omitempty"` // progress events
	IsCompactSummary bool            `json:"isCompactSummary,omitempty"`
	AgentID          string          `json:"agentId,omitempty"`
	AgentType        string          `json:"agentType,omitempty"`
	ToolUseResult    json.RawMessage `json:"toolUseResult,omitempty"`

	// Derived during parsing, not part of the wire format.
	Time time.Time `json:"-"`
	Line int       `json:"-"`
}

// Message carries the role and content of a user or assistant record.
// Content is either a plain string or an array of typed blocks.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Block is one element of an array-form message content.
type Block struct {
	Type     string          `json:"type"` // text | thinking | tool_use | tool_result
	Text     string          `json:"text,omitempty"`
	Thinking string          `json:"thinking,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// parseEvent decodes one log line. It returns false when the line is
// not a usable event: invalid JSON, no type, or no parsable timestamp.
func parseEvent(line []byte, lineNo int) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, false
	}
	if ev.Type == "" || ev.Timestamp == "" {
		return Event{}, false
	}
	ts, err := time.Parse(time.RFC3339, ev.Timestamp)
	if err != nil {
		return Event{}, false
	}
	ev.Time = ts.UTC()
	ev.Line = lineNo
	return ev, true
}

// Blocks returns the content as typed blocks. String-form content is
// wrapped in a single text block.
func (e Event) Blocks() []Block {
	if e.Message == nil || len(e.Message.Content) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(e.Message.Content, &asString); err == nil {
		return []Block{{Type: "text", Text: asString}}
	}
	var blocks []Block
	if err := json.Unmarshal(e.Message.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

// Text concatenates the text blocks of the event's message.
func (e Event) Text() string {
	var parts []string
	for _, b := range e.Blocks() {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ThinkingText concatenates the thinking blocks of the event's message.
func (e Event) ThinkingText() string {
	var parts []string
	for _, b := range e.Blocks() {
		if b.Type == "thinking" && b.Thinking != "" {
			parts = append(parts, b.Thinking)
		}
	}
	return strings.Join(parts, "\n")
}

// isConversationalUser reports whether a user event opens a turn: it
// must carry actual user text, not just tool_result blocks echoed back
// by the harness.
func (e Event) isConversationalUser() bool {
	if e.Type != "user" {
		return false
	}
	return strings.TrimSpace(e.Text()) != ""
}

// isToolResult reports whether the event carries tool output rather
// than user input.
func (e Event) isToolResult() bool {
	if len(e.ToolUseResult) > 0 {
		return true
	}
	for _, b := range e.Blocks() {
		if b.Type == "tool_result" {
			return true
		}
	}
	return false
}

// slashCommand extracts a leading slash command from user text
// ("/review src/" → "/review"); empty when there is none.
func slashCommand(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return ""
	}
	cmd := trimmed
	if i := strings.IndexAny(trimmed, " \t\n"); i > 0 {
		cmd = trimmed[:i]
	}
	if len(cmd) < 2 {
		return ""
	}
	return cmd
}
