package transcript

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// maxLineSize bounds a single log line. Tool outputs can be large, but
// the log is read as a stream, never materialized fully.
const maxLineSize = 16 * 1024 * 1024

// Result is the outcome of one incremental ingestion pass.
type Result struct {
	// Turns are the newly assembled turns, chronological.
	Turns []Turn

	// TotalLines is the log's full line count at read time.
	TotalLines int

	// ConsumedLine is the highest line the checkpoint may advance to.
	// It trails TotalLines only when the log ends with a user event
	// that has no assistant response yet: that event stays unconsumed
	// and is retried, together with any assistant events that arrive
	// later, on the next pass.
	ConsumedLine int

	// LatestTimestamp is the newest event time among consumed lines.
	LatestTimestamp time.Time

	// SkippedLines counts lines that failed to parse and were dropped.
	SkippedLines int
}

// Ingest reads the log incrementally from lastSavedLine and assembles
// the new turns. It is safe to call while the log is still being
// appended by an external process: the file is read to its
// end-of-file at call time, line by line, with constant memory.
//
// A missing log is "no data", not an error. Malformed lines are
// dropped silently; truncated trailing lines simply wait for the next
// pass.
func Ingest(logPath string, lastSavedLine int) (*Result, error) {
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("transcript: open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	res := &Result{}
	var events []Event

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= lastSavedLine {
			continue
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, ok := parseEvent(line, lineNo)
		if !ok {
			res.SkippedLines++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read log: %w", err)
	}

	res.TotalLines = lineNo
	res.Turns = AssembleTurns(events)
	res.ConsumedLine = consumedLine(events, res.Turns, lineNo)

	for _, ev := range events {
		if ev.Line <= res.ConsumedLine && ev.Time.After(res.LatestTimestamp) {
			res.LatestTimestamp = ev.Time
		}
	}
	return res, nil
}

// ReadAll parses the complete log from the beginning. Compaction
// reconciliation and transcript search use this; it shares the exact
// assembly path with incremental ingestion.
func ReadAll(logPath string) (*Result, error) {
	return Ingest(logPath, 0)
}

// consumedLine determines how far the checkpoint may advance. Only a
// trailing conversational user event with no assistant response holds
// the checkpoint back. Everything else (aux events, malformed lines,
// answered turns) counts as processed.
func consumedLine(events []Event, turns []Turn, totalLines int) int {
	var lastUser *Event
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].isConversationalUser() {
			lastUser = &events[i]
			break
		}
	}
	if lastUser == nil {
		return totalLines
	}
	for _, t := range turns {
		if t.UserTimestamp.Equal(lastUser.Time) && t.UserText == lastUser.Text() {
			return totalLines
		}
	}
	return lastUser.Line - 1
}
