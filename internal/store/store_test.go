package store_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hir4ta/mneme-sub001/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTurn(src, role, ts string, ordinal int) store.Turn {
	return store.Turn{
		SourceSessionID: src,
		SessionID:       "master-" + src,
		ProjectPath:     "/work/demo",
		Repository:      "demo",
		Owner:           "dev",
		Role:            role,
		Content:         role + " content at " + ts,
		Timestamp:       ts,
		Ordinal:         ordinal,
	}
}

func TestInsertTurnIdempotent(t *testing.T) {
	s := openStore(t)

	turn := testTurn("src-1", "user", "2025-06-01T10:00:00Z", 0)
	inserted, err := s.InsertTurn(turn)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert should add a row")
	}

	inserted, err = s.InsertTurn(turn)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("re-inserting the same identity should be a no-op")
	}

	n, err := s.TurnCount("src-1")
	if err != nil {
		t.Fatalf("TurnCount: %v", err)
	}
	if n != 1 {
		t.Errorf("TurnCount = %d, want 1", n)
	}
}

func TestSharedTimestampDisambiguatedByOrdinal(t *testing.T) {
	s := openStore(t)

	ts := "2025-06-01T10:00:00Z"
	for i := 0; i < 3; i++ {
		if _, err := s.InsertTurn(testTurn("src-1", "assistant", ts, i)); err != nil {
			t.Fatalf("insert ordinal %d: %v", i, err)
		}
	}
	n, _ := s.TurnCount("src-1")
	if n != 3 {
		t.Errorf("TurnCount = %d, want 3", n)
	}
}

func TestTurnsBySourceOrder(t *testing.T) {
	s := openStore(t)

	// Inserted out of order on purpose.
	for _, turn := range []store.Turn{
		testTurn("src-1", "assistant", "2025-06-01T10:01:00Z", 0),
		testTurn("src-1", "user", "2025-06-01T10:00:00Z", 0),
		testTurn("src-1", "assistant", "2025-06-01T10:01:00Z", 1),
		testTurn("src-2", "user", "2025-06-01T09:00:00Z", 0),
	} {
		if _, err := s.InsertTurn(turn); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	turns, err := s.TurnsBySource("src-1")
	if err != nil {
		t.Fatalf("TurnsBySource: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[0].Role != "user" {
		t.Errorf("first turn role = %q, want user", turns[0].Role)
	}
	if turns[1].Ordinal != 0 || turns[2].Ordinal != 1 {
		t.Errorf("ordinals = %d, %d; want 0, 1", turns[1].Ordinal, turns[2].Ordinal)
	}
}

func TestCheckpointMonotonicLine(t *testing.T) {
	s := openStore(t)

	cp := store.Checkpoint{
		SourceSessionID: "src-1",
		SessionID:       "master-1",
		ProjectPath:     "/work/demo",
		LastSavedLine:   40,
	}
	if err := s.UpsertCheckpoint(cp); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A smaller line number must not move the checkpoint backward.
	cp.LastSavedLine = 10
	if err := s.UpsertCheckpoint(cp); err != nil {
		t.Fatalf("upsert smaller: %v", err)
	}
	got, err := s.GetCheckpoint("src-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastSavedLine != 40 {
		t.Errorf("LastSavedLine = %d, want 40", got.LastSavedLine)
	}

	cp.LastSavedLine = 55
	if err := s.UpsertCheckpoint(cp); err != nil {
		t.Fatalf("upsert larger: %v", err)
	}
	got, _ = s.GetCheckpoint("src-1")
	if got.LastSavedLine != 55 {
		t.Errorf("LastSavedLine = %d, want 55", got.LastSavedLine)
	}

	// ResetCheckpoint is the explicit bypass for compaction.
	if err := s.ResetCheckpoint("src-1", 5, "2025-06-01T10:00:00Z"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ = s.GetCheckpoint("src-1")
	if got.LastSavedLine != 5 {
		t.Errorf("after reset LastSavedLine = %d, want 5", got.LastSavedLine)
	}
}

func TestGetCheckpointMissing(t *testing.T) {
	s := openStore(t)
	cp, err := s.GetCheckpoint("nope")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil checkpoint, got %+v", cp)
	}
}

func TestMarkCommitted(t *testing.T) {
	s := openStore(t)

	if err := s.MarkCommitted("nope"); err == nil {
		t.Error("committing an unknown session should error")
	}

	cp := store.Checkpoint{SourceSessionID: "src-1", SessionID: "m1", ProjectPath: "/p"}
	if err := s.UpsertCheckpoint(cp); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.MarkCommitted("src-1"); err != nil {
		t.Fatalf("MarkCommitted: %v", err)
	}
	got, _ := s.GetCheckpoint("src-1")
	if !got.IsCommitted {
		t.Error("checkpoint should be committed")
	}
}

func TestStaleCheckpoints(t *testing.T) {
	s := openStore(t)

	for _, cp := range []store.Checkpoint{
		{SourceSessionID: "old-uncommitted", SessionID: "m1", ProjectPath: "/p1"},
		{SourceSessionID: "old-committed", SessionID: "m2", ProjectPath: "/p1"},
		{SourceSessionID: "other-project", SessionID: "m3", ProjectPath: "/p2"},
	} {
		if err := s.UpsertCheckpoint(cp); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := s.MarkCommitted("old-committed"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Everything above was written just now, so a future cutoff makes
	// the uncommitted ones stale.
	cutoff := time.Now().Add(time.Hour)
	stale, err := s.StaleCheckpoints("", cutoff)
	if err != nil {
		t.Fatalf("StaleCheckpoints: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("got %d stale, want 2", len(stale))
	}

	stale, err = s.StaleCheckpoints("/p1", cutoff)
	if err != nil {
		t.Fatalf("StaleCheckpoints filtered: %v", err)
	}
	if len(stale) != 1 || stale[0].SourceSessionID != "old-uncommitted" {
		t.Errorf("filtered stale = %+v", stale)
	}

	// A past cutoff matches nothing.
	stale, err = s.StaleCheckpoints("", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("StaleCheckpoints past: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("got %d stale with past cutoff, want 0", len(stale))
	}
}

func TestBackupRoundtrip(t *testing.T) {
	s := openStore(t)

	got, err := s.GetBackup("src-1")
	if err != nil {
		t.Fatalf("GetBackup empty: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil backup before save")
	}

	backup := store.Backup{
		SessionID:   "src-1",
		ProjectPath: "/work/demo",
		Owner:       "dev",
		Turns: []store.Turn{
			testTurn("src-1", "user", "2025-06-01T10:00:00Z", 0),
			testTurn("src-1", "assistant", "2025-06-01T10:00:30Z", 0),
		},
	}
	if err := s.SaveBackup(backup); err != nil {
		t.Fatalf("SaveBackup: %v", err)
	}

	got, err = s.GetBackup("src-1")
	if err != nil {
		t.Fatalf("GetBackup: %v", err)
	}
	if got == nil || len(got.Turns) != 2 {
		t.Fatalf("backup = %+v", got)
	}
	if got.Turns[0].Content != backup.Turns[0].Content {
		t.Errorf("turn content mismatch: %q", got.Turns[0].Content)
	}

	if err := s.ClearBackup("src-1"); err != nil {
		t.Fatalf("ClearBackup: %v", err)
	}
	got, _ = s.GetBackup("src-1")
	if got != nil {
		t.Error("backup should be gone after clear")
	}
}

func TestReplaceSessionTurns(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 4; i++ {
		turn := testTurn("src-1", "user", "2025-06-01T10:00:00Z", i)
		if _, err := s.InsertTurn(turn); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}

	replacement := []store.Turn{
		testTurn("src-1", "user", "2025-06-02T09:00:00Z", 0),
		testTurn("src-1", "assistant", "2025-06-02T09:00:30Z", 0),
	}
	if err := s.ReplaceSessionTurns("src-1", replacement); err != nil {
		t.Fatalf("ReplaceSessionTurns: %v", err)
	}

	turns, err := s.TurnsBySource("src-1")
	if err != nil {
		t.Fatalf("TurnsBySource: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns after replace, want 2", len(turns))
	}
	if turns[0].Timestamp != "2025-06-02T09:00:00Z" {
		t.Errorf("first timestamp = %q", turns[0].Timestamp)
	}
}

func TestDeleteSessionTurns(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.InsertTurn(testTurn("src-1", "user", "2025-06-01T10:00:00Z", i)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := s.InsertTurn(testTurn("src-2", "user", "2025-06-01T10:00:00Z", 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := s.DeleteSessionTurns("src-1")
	if err != nil {
		t.Fatalf("DeleteSessionTurns: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d rows, want 3", n)
	}
	if count, _ := s.TurnCount("src-2"); count != 1 {
		t.Errorf("src-2 count = %d, want 1", count)
	}
}

func TestSearchTurnsFullText(t *testing.T) {
	s := openStore(t)

	turns := []store.Turn{
		{SourceSessionID: "src-1", SessionID: "m1", ProjectPath: "/p", Owner: "dev",
			Role: "user", Content: "how do I configure the authentication middleware",
			Timestamp: "2025-06-01T10:00:00Z"},
		{SourceSessionID: "src-1", SessionID: "m1", ProjectPath: "/p", Owner: "dev",
			Role: "assistant", Content: "use the session token validator",
			Thinking: "they probably mean the oauth flow", Timestamp: "2025-06-01T10:00:30Z"},
		{SourceSessionID: "src-2", SessionID: "m2", ProjectPath: "/p", Owner: "dev",
			Role: "user", Content: "unrelated database migration question",
			Timestamp: "2025-06-01T11:00:00Z"},
	}
	for _, turn := range turns {
		if _, err := s.InsertTurn(turn); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	results, err := s.SearchTurns("authentication", 10)
	if err != nil {
		t.Fatalf("SearchTurns: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].SourceSessionID != "src-1" || results[0].Role != "user" {
		t.Errorf("unexpected match: %+v", results[0].Turn)
	}

	// Thinking text is searchable too.
	results, err = s.SearchTurns("oauth", 10)
	if err != nil {
		t.Fatalf("SearchTurns thinking: %v", err)
	}
	if len(results) != 1 || results[0].Role != "assistant" {
		t.Errorf("thinking search results = %+v", results)
	}

	results, err = s.SearchTurns("nonexistentterm", 10)
	if err != nil {
		t.Fatalf("SearchTurns miss: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for miss, want 0", len(results))
	}
}

func TestStats(t *testing.T) {
	s := openStore(t)

	if _, err := s.InsertTurn(testTurn("src-1", "user", "2025-06-01T10:00:00Z", 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpsertCheckpoint(store.Checkpoint{SourceSessionID: "src-1", SessionID: "m1", ProjectPath: "/work/demo"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalTurns != 1 || stats.TotalSessions != 1 || stats.UncommittedCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.Projects) != 1 || stats.Projects[0] != "/work/demo" {
		t.Errorf("projects = %v", stats.Projects)
	}
}
