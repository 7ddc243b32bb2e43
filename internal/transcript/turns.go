package transcript

import (
	"encoding/json"
	"sort"
	"time"
)

// MetadataVersion is written into every encoded TurnMeta. Readers
// default it when absent so older blobs keep decoding.
const MetadataVersion = 1

const summaryMaxLen = 200

// ToolCall records one tool invocation made during a turn.
type ToolCall struct {
	Name  string `json:"name"`
	Input string `json:"input,omitempty"`
}

// TurnMeta is the optional, versioned metadata attached to a turn.
// Decoded leniently (missing and unknown fields defaulted), encoded
// strictly on write.
type TurnMeta struct {
	Version        int        `json:"v"`
	ToolsUsed      []string   `json:"toolsUsed,omitempty"`
	ToolCalls      []ToolCall `json:"toolCalls,omitempty"`
	SlashCommand   string     `json:"slashCommand,omitempty"`
	ToolResults    []string   `json:"toolResults,omitempty"`
	ProgressEvents []string   `json:"progressEvents,omitempty"`
	InPlanMode     bool       `json:"inPlanMode,omitempty"`
}

// Empty reports whether the metadata carries no information beyond the
// version tag.
func (m *TurnMeta) Empty() bool {
	return m == nil ||
		(len(m.ToolsUsed) == 0 && len(m.ToolCalls) == 0 && m.SlashCommand == "" &&
			len(m.ToolResults) == 0 && len(m.ProgressEvents) == 0 && !m.InPlanMode)
}

// Encode serializes the metadata, or returns "" when it is empty.
func (m *TurnMeta) Encode() string {
	if m.Empty() {
		return ""
	}
	m.Version = MetadataVersion
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeMeta parses a metadata blob leniently. Unreadable blobs yield
// nil rather than an error.
func DecodeMeta(blob string) *TurnMeta {
	if blob == "" {
		return nil
	}
	var m TurnMeta
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return nil
	}
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	return &m
}

// Turn pairs one user message with its associated assistant
// response(s) and derived metadata.
type Turn struct {
	UserText           string
	UserTimestamp      time.Time
	AssistantText      string
	Thinking           string
	AssistantTimestamp time.Time
	IsCompactSummary   bool
	AgentID            string
	AgentType          string
	Meta               *TurnMeta

	// LastLine is the highest log line consumed into this turn.
	LastLine int
}

// AssembleTurns builds turns from parsed events. This is the single
// turn-assembly path, shared by incremental ingestion and full-log
// re-reads (compaction reconciliation, transcript search).
//
// A turn pairs one conversational user event with every assistant
// event whose timestamp lies in [user_ts, next_user_ts). A user event
// with zero assistant events in its window produces no turn.
// Auxiliary events (tool results, progress notifications) attach to
// the turn sharing their minute-granularity time bucket; this is an
// approximate correlation, not an exact key.
func AssembleTurns(events []Event) []Turn {
	markers := CollectPlanMarkers(events)

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var users, assistants, aux []Event
	for _, ev := range sorted {
		switch {
		case ev.Type == "progress":
			aux = append(aux, ev)
		case ev.Type == "user" && ev.isToolResult() && !ev.isConversationalUser():
			aux = append(aux, ev)
		case ev.isConversationalUser():
			users = append(users, ev)
		case ev.Type == "assistant":
			assistants = append(assistants, ev)
		}
	}

	var turns []Turn
	buckets := map[int64]int{} // minute bucket → index into turns

	for i, u := range users {
		windowEnd := time.Time{}
		if i+1 < len(users) {
			windowEnd = users[i+1].Time
		}

		var inWindow []Event
		for _, a := range assistants {
			if a.Time.Before(u.Time) {
				continue
			}
			if !windowEnd.IsZero() && !a.Time.Before(windowEnd) {
				continue
			}
			inWindow = append(inWindow, a)
		}
		if len(inWindow) == 0 {
			continue
		}

		t := buildTurn(u, inWindow, markers)
		turns = append(turns, t)
		idx := len(turns) - 1

		claimBucket(buckets, u.Time, idx)
		for _, a := range inWindow {
			claimBucket(buckets, a.Time, idx)
		}
	}

	attachAuxiliary(turns, buckets, aux)
	return turns
}

func buildTurn(u Event, assistants []Event, markers PlanMarkers) Turn {
	t := Turn{
		UserText:      u.Text(),
		UserTimestamp: u.Time,
		LastLine:      u.Line,
	}

	meta := &TurnMeta{
		SlashCommand: slashCommand(t.UserText),
		InPlanMode:   markers.At(u.Time),
	}

	seenTools := map[string]bool{}
	for _, a := range assistants {
		if text := a.Text(); text != "" {
			if t.AssistantText != "" {
				t.AssistantText += "\n"
			}
			t.AssistantText += text
		}
		if thinking := a.ThinkingText(); thinking != "" {
			if t.Thinking != "" {
				t.Thinking += "\n"
			}
			t.Thinking += thinking
		}
		for _, b := range a.Blocks() {
			if b.Type != "tool_use" || b.Name == "" {
				continue
			}
			if !seenTools[b.Name] {
				seenTools[b.Name] = true
				meta.ToolsUsed = append(meta.ToolsUsed, b.Name)
			}
			meta.ToolCalls = append(meta.ToolCalls, ToolCall{
				Name:  b.Name,
				Input: truncate(string(b.Input), summaryMaxLen),
			})
		}
		if a.IsCompactSummary {
			t.IsCompactSummary = true
		}
		if a.AgentID != "" {
			t.AgentID = a.AgentID
		}
		if a.AgentType != "" {
			t.AgentType = a.AgentType
		}
		t.AssistantTimestamp = a.Time
		if a.Line > t.LastLine {
			t.LastLine = a.Line
		}
	}

	if u.IsCompactSummary {
		t.IsCompactSummary = true
	}
	if !meta.Empty() {
		t.Meta = meta
	}
	return t
}

// attachAuxiliary correlates tool results and progress events to turns
// by minute bucket.
func attachAuxiliary(turns []Turn, buckets map[int64]int, aux []Event) {
	for _, ev := range aux {
		idx, ok := buckets[minuteBucket(ev.Time)]
		if !ok {
			continue
		}
		t := &turns[idx]
		if t.Meta == nil {
			t.Meta = &TurnMeta{}
		}
		switch {
		case ev.Type == "progress":
			if summary := progressSummary(ev); summary != "" {
				t.Meta.ProgressEvents = append(t.Meta.ProgressEvents, summary)
			}
		default:
			if summary := toolResultSummary(ev); summary != "" {
				t.Meta.ToolResults = append(t.Meta.ToolResults, summary)
			}
		}
		if t.Meta.Empty() {
			t.Meta = nil
		}
	}
}

// claimBucket records the first turn seen for a minute bucket; later
// turns in the same minute do not steal it.
func claimBucket(buckets map[int64]int, ts time.Time, idx int) {
	key := minuteBucket(ts)
	if _, taken := buckets[key]; !taken {
		buckets[key] = idx
	}
}

func minuteBucket(t time.Time) int64 {
	return t.Truncate(time.Minute).Unix()
}

func progressSummary(ev Event) string {
	if ev.Content != "" {
		return truncate(ev.Content, summaryMaxLen)
	}
	return truncate(ev.Text(), summaryMaxLen)
}

func toolResultSummary(ev Event) string {
	if len(ev.ToolUseResult) > 0 {
		var asString string
		if err := json.Unmarshal(ev.ToolUseResult, &asString); err == nil {
			return truncate(asString, summaryMaxLen)
		}
		return truncate(string(ev.ToolUseResult), summaryMaxLen)
	}
	for _, b := range ev.Blocks() {
		if b.Type != "tool_result" || len(b.Content) == 0 {
			continue
		}
		var asString string
		if err := json.Unmarshal(b.Content, &asString); err == nil {
			return truncate(asString, summaryMaxLen)
		}
		return truncate(string(b.Content), summaryMaxLen)
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
