package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/index"
	"github.com/hir4ta/mneme-sub001/internal/store"
)

func TestFuzzyScoreTiers(t *testing.T) {
	for _, tc := range []struct {
		term, candidate string
		want            int
	}{
		{"auth", "auth", scoreExact},
		{"auth", "AUTH", scoreExact},
		{"auth", "authentication", scoreContains},
		{"authentication", "auth", scoreContained},
		{"kubernetes", "kubernetes", scoreExact},
		{"kuberntes", "kubernetes", scoreNearTypo},  // one deletion
		{"kubarntes", "kubernetes", scoreNearTypo},  // two edits
		{"kybarnets", "kubernetes", scoreFarTypo},   // three edits
		{"xybarnets", "kubernetes", 0},              // four edits, out of range
		{"db", "dx", 0},                             // short terms never fuzzy-match
		{"auth", "completely-unrelated-subject", 0}, // length ratio guard
		{"", "anything", 0},
	} {
		if got := fuzzyScore(tc.term, tc.candidate); got != tc.want {
			t.Errorf("fuzzyScore(%q, %q) = %d, want %d", tc.term, tc.candidate, got, tc.want)
		}
	}
}

func TestScoreEntrySumsFields(t *testing.T) {
	// A term matching both fields contributes both tiers.
	entry := index.Entry{Title: "auth", Tags: []string{"auth"}}
	score, fields := scoreEntry(entry, []string{"auth"})
	if score != 2*scoreExact {
		t.Errorf("score = %v, want %v", score, 2*scoreExact)
	}
	if len(fields) != 2 {
		t.Errorf("fields = %v, want title and tags", fields)
	}

	// Fields are compared as whole values: a word inside a longer
	// title is a containment hit, never an exact one.
	score, _ = scoreEntry(index.Entry{Title: "fix auth bug"}, []string{"auth"})
	if score != scoreContains {
		t.Errorf("word-in-title score = %v, want %v", score, scoreContains)
	}

	// Terms sum too; "authz" contains the field "auth", which is the
	// contained tier.
	score, _ = scoreEntry(index.Entry{Title: "auth"}, []string{"auth", "authz"})
	if score != scoreExact+scoreContained {
		t.Errorf("two-term score = %v, want %v", score, scoreExact+scoreContained)
	}
}

func TestEditDistance(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		max  int
		want int
	}{
		{"kitten", "sitting", 3, 3},
		{"same", "same", 3, 0},
		{"abc", "abcd", 3, 1},
		{"abc", "xyz", 3, 3},
		{"short", "muchlongerstring", 3, -1}, // length gap alone exceeds max
		{"kitten", "sitting", 2, -1},
	} {
		if got := editDistance(tc.a, tc.b, tc.max); got != tc.want {
			t.Errorf("editDistance(%q, %q, %d) = %d, want %d", tc.a, tc.b, tc.max, got, tc.want)
		}
	}
}

func TestAliasExpand(t *testing.T) {
	dict := AliasDict{
		"auth": {"authentication", "authorization"},
		"db":   {"database"},
	}
	got := dict.Expand([]string{"auth", "bug"})
	want := []string{"auth", "bug", "authentication", "authorization"}
	if len(got) != len(want) {
		t.Fatalf("expanded = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expanded[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Already-present aliases are not duplicated.
	got = dict.Expand([]string{"auth", "authentication"})
	if len(got) != 3 {
		t.Errorf("dedup failed: %v", got)
	}
}

func TestLoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := "auth:\n  - authentication\n  - Authorization\nk8s:\n  - kubernetes\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dict, err := LoadAliases(path)
	if err != nil {
		t.Fatalf("LoadAliases: %v", err)
	}
	if len(dict["auth"]) != 2 || dict["auth"][1] != "authorization" {
		t.Errorf("dict = %v", dict)
	}
	// Groups are closed: an alias maps back to the canonical label
	// and to its sibling aliases.
	if len(dict["authorization"]) != 2 {
		t.Errorf("dict[authorization] = %v, want auth and authentication", dict["authorization"])
	}
	if len(dict["kubernetes"]) != 1 || dict["kubernetes"][0] != "k8s" {
		t.Errorf("dict[kubernetes] = %v", dict["kubernetes"])
	}

	// Missing file is an empty dictionary, not an error.
	dict, err = LoadAliases(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil || len(dict) != 0 {
		t.Errorf("missing file: %v, %v", dict, err)
	}
}

func TestAliasExpandReachesWholeGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := "authentication:\n  - authn\n  - login\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dict, err := LoadAliases(path)
	if err != nil {
		t.Fatalf("LoadAliases: %v", err)
	}

	// Querying by an alias reaches the canonical label and the
	// sibling alias, not just itself.
	got := dict.Expand([]string{"authn"})
	want := map[string]bool{"authn": true, "authentication": true, "login": true}
	if len(got) != len(want) {
		t.Fatalf("Expand(authn) = %v", got)
	}
	for _, term := range got {
		if !want[term] {
			t.Errorf("unexpected term %q in %v", term, got)
		}
	}
}

func TestPatternScoring(t *testing.T) {
	matcher := newPatternMatcher([]string{"retry", "backoff"})

	base := docstore.Pattern{
		ID:       "p1",
		Name:     "Exponential backoff on retry",
		Keywords: []string{"retry", "resilience"},
		Status:   docstore.PatternApproved,
	}
	baseScore, fields := matcher.score(base)
	if baseScore <= 0 {
		t.Fatalf("expected a positive score, got %v", baseScore)
	}
	if len(fields) == 0 {
		t.Error("expected matched fields")
	}

	boosted := base
	boosted.ID = "p2"
	boosted.Priority = docstore.PriorityHighest
	boostedScore, _ := matcher.score(boosted)
	if boostedScore <= baseScore {
		t.Errorf("highest priority should outrank default: %v <= %v", boostedScore, baseScore)
	}

	medium := base
	medium.ID = "p3"
	medium.Priority = docstore.PriorityMedium
	mediumScore, _ := matcher.score(medium)
	if mediumScore <= baseScore || mediumScore >= boostedScore {
		t.Errorf("medium boost out of order: base=%v medium=%v highest=%v", baseScore, mediumScore, boostedScore)
	}

	// No hits means no score, boost or not.
	miss := docstore.Pattern{ID: "p4", Name: "Unrelated", Priority: docstore.PriorityHighest}
	if s, _ := matcher.score(miss); s != 0 {
		t.Errorf("non-matching pattern scored %v", s)
	}

	// Query terms are treated as literals, not regexp syntax.
	hostile := newPatternMatcher([]string{"a(b", "["})
	if s, _ := hostile.score(base); s != 0 {
		t.Errorf("hostile query scored %v", s)
	}
}

func TestPatternRepeatsGrowLogarithmically(t *testing.T) {
	matcher := newPatternMatcher([]string{"retry"})

	spammy := docstore.Pattern{
		ID:     "spam",
		Name:   "retry retry retry retry retry retry retry retry retry retry",
		Status: docstore.PatternApproved,
	}
	important := docstore.Pattern{
		ID:       "boosted",
		Name:     "retry policy",
		Status:   docstore.PatternApproved,
		Priority: docstore.PriorityHighest,
	}

	spamScore, _ := matcher.score(spammy)
	boostScore, _ := matcher.score(important)
	if spamScore >= boostScore {
		t.Errorf("repeats drowned the priority boost: %v >= %v", spamScore, boostScore)
	}

	// More hits still score higher than fewer, within the same field.
	once, _ := matcher.score(docstore.Pattern{ID: "one", Name: "retry", Status: docstore.PatternApproved})
	if spamScore <= once {
		t.Errorf("repeat bonus missing: %v <= %v", spamScore, once)
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *docstore.Store, *index.Manager) {
	t.Helper()
	st, err := store.Open(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	docs := docstore.New(t.TempDir(), zerolog.Nop())
	idx := index.New(docs, zerolog.Nop())
	aliases := AliasDict{"auth": {"authentication"}}
	e := New(st, docs, idx, aliases, 50, 2*time.Second, zerolog.Nop())
	return e, st, docs, idx
}

func seedSession(t *testing.T, docs *docstore.Store, id, title string, tags []string) {
	t.Helper()
	doc := &docstore.SessionDoc{ID: id, Title: title, Tags: tags, CreatedAt: "2025-06-01T10:00:00Z"}
	if err := docs.SaveSessionDoc(doc); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestSearchExactTagOutranksSubstring(t *testing.T) {
	e, _, docs, idx := newTestEngine(t)
	seedSession(t, docs, "exact", "session about login", []string{"auth"})
	seedSession(t, docs, "partial", "authentication overhaul notes", nil)
	if _, err := idx.RebuildAll(3); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	resp, err := e.Search(context.Background(), "auth", []Target{TargetSessions}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].ID != "exact" {
		t.Errorf("exact tag match should rank first, got %s", resp.Results[0].ID)
	}
	if resp.Results[0].Score <= resp.Results[1].Score {
		t.Errorf("scores not ordered: %v vs %v", resp.Results[0].Score, resp.Results[1].Score)
	}
}

func TestSearchAliasExpansion(t *testing.T) {
	e, _, docs, idx := newTestEngine(t)
	// "auth" appears nowhere; only the alias target does.
	seedSession(t, docs, "s1", "hardening", []string{"authentication"})
	if _, err := idx.RebuildAll(3); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	resp, err := e.Search(context.Background(), "auth", []Target{TargetSessions}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "s1" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestSearchWithoutIndexFallsBackToDocs(t *testing.T) {
	e, _, docs, _ := newTestEngine(t)
	seedSession(t, docs, "s1", "fix auth bug", nil)

	resp, err := e.Search(context.Background(), "auth", []Target{TargetSessions}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "s1" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchPatternsApprovedOnly(t *testing.T) {
	e, _, docs, _ := newTestEngine(t)
	patterns := []docstore.Pattern{
		{ID: "ok", Name: "retry with backoff", Status: docstore.PatternApproved},
		{ID: "draft", Name: "retry draft idea", Status: "draft"},
	}
	if err := docs.SavePatternSource("team", patterns); err != nil {
		t.Fatalf("seed patterns: %v", err)
	}

	resp, err := e.Search(context.Background(), "retry", []Target{TargetPatterns}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "ok" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchTurnsTarget(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	turn := store.Turn{
		SourceSessionID: "src-1", SessionID: "m1", ProjectPath: "/p", Owner: "dev",
		Role: "assistant", Content: "the websocket handshake was failing on upgrade",
		Timestamp: "2025-06-01T10:00:00Z",
	}
	if _, err := st.InsertTurn(turn); err != nil {
		t.Fatalf("insert: %v", err)
	}

	resp, err := e.Search(context.Background(), "websocket", []Target{TargetTurns}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Type != "turn" || resp.Results[0].Score <= 0 {
		t.Errorf("result = %+v", resp.Results[0])
	}
}

func TestSearchLimitTruncates(t *testing.T) {
	e, _, docs, idx := newTestEngine(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		seedSession(t, docs, id, "auth work "+id, nil)
	}
	if _, err := idx.RebuildAll(3); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	resp, err := e.Search(context.Background(), "auth", []Target{TargetSessions}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 || !resp.Truncated {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	if _, err := e.Search(context.Background(), "   ", nil, 10); err == nil {
		t.Error("empty query should error")
	}
}

func TestSearchTimeoutReturnsPartial(t *testing.T) {
	e, _, docs, idx := newTestEngine(t)
	seedSession(t, docs, "s1", "auth work", nil)
	if _, err := idx.RebuildAll(3); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// The fake clock jumps a minute per reading, so the deadline is
	// already behind by the first target check.
	e.timeout = 0
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	e.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * time.Minute)
	}
	resp, err := e.Search(context.Background(), "auth", []Target{TargetSessions}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.TimedOut {
		t.Error("expected TimedOut")
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %+v", resp.Results)
	}
}
