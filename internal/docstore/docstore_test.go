package docstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
)

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	return docstore.New(t.TempDir(), zerolog.Nop())
}

func TestSessionDocRoundtrip(t *testing.T) {
	s := newStore(t)

	doc := &docstore.SessionDoc{
		ID:        "sess-1",
		Title:     "Refactor the importer",
		Tags:      []string{"refactor", "importer"},
		Status:    docstore.StatusUncommitted,
		Project:   "/work/demo",
		CreatedAt: "2025-06-15T10:00:00Z",
	}
	if err := s.SaveSessionDoc(doc); err != nil {
		t.Fatalf("SaveSessionDoc: %v", err)
	}
	if doc.UpdatedAt == "" {
		t.Error("UpdatedAt should be stamped on save")
	}

	// Partitioned under year/month of CreatedAt.
	path := filepath.Join(s.Root(), docstore.SessionsDir, "2025", "06", "sess-1.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected doc at %s: %v", path, err)
	}

	loaded, err := s.LoadSessionDoc("sess-1")
	if err != nil {
		t.Fatalf("LoadSessionDoc: %v", err)
	}
	if loaded == nil || loaded.Title != doc.Title || len(loaded.Tags) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}

	// Updates keep the partition even when saved later.
	loaded.Summary = "Importer now streams"
	if err := s.SaveSessionDoc(loaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.LoadSessionDoc("sess-1")
	if again.Summary != "Importer now streams" {
		t.Errorf("summary = %q", again.Summary)
	}
	if again.CreatedAt != "2025-06-15T10:00:00Z" {
		t.Errorf("CreatedAt changed to %q", again.CreatedAt)
	}
}

func TestLoadSessionDocMissing(t *testing.T) {
	s := newStore(t)
	doc, err := s.LoadSessionDoc("nope")
	if err != nil {
		t.Fatalf("LoadSessionDoc: %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil, got %+v", doc)
	}
}

func TestDeleteSessionDoc(t *testing.T) {
	s := newStore(t)
	doc := &docstore.SessionDoc{ID: "sess-1", Title: "t", CreatedAt: "2025-06-15T10:00:00Z"}
	if err := s.SaveSessionDoc(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteSessionDoc("sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.LoadSessionDoc("sess-1"); got != nil {
		t.Error("doc should be gone")
	}
	// Deleting again is a no-op.
	if err := s.DeleteSessionDoc("sess-1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestListSessionDocsAcrossPartitions(t *testing.T) {
	s := newStore(t)
	for _, d := range []docstore.SessionDoc{
		{ID: "b", Title: "may", CreatedAt: "2025-05-01T10:00:00Z"},
		{ID: "a", Title: "june", CreatedAt: "2025-06-01T10:00:00Z"},
		{ID: "c", Title: "also june", CreatedAt: "2025-06-20T10:00:00Z"},
	} {
		doc := d
		if err := s.SaveSessionDoc(&doc); err != nil {
			t.Fatalf("save %s: %v", d.ID, err)
		}
	}

	docs, err := s.ListSessionDocs()
	if err != nil {
		t.Fatalf("ListSessionDocs: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	// Partition order, then file name order.
	if docs[0].ID != "b" || docs[1].ID != "a" || docs[2].ID != "c" {
		t.Errorf("order = %s, %s, %s", docs[0].ID, docs[1].ID, docs[2].ID)
	}

	june, err := s.SessionDocsForMonth(2025, 6)
	if err != nil {
		t.Fatalf("SessionDocsForMonth: %v", err)
	}
	if len(june) != 2 {
		t.Errorf("june docs = %d, want 2", len(june))
	}
}

func TestMonths(t *testing.T) {
	s := newStore(t)
	for _, created := range []string{
		"2024-12-01T10:00:00Z", "2025-06-01T10:00:00Z", "2025-01-15T10:00:00Z",
	} {
		doc := &docstore.SessionDoc{ID: "d-" + created[:7], Title: "x", CreatedAt: created}
		if err := s.SaveSessionDoc(doc); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	months, err := s.Months(docstore.SessionsDir)
	if err != nil {
		t.Fatalf("Months: %v", err)
	}
	want := [][2]int{{2024, 12}, {2025, 1}, {2025, 6}}
	if len(months) != len(want) {
		t.Fatalf("months = %v", months)
	}
	for i := range want {
		if months[i] != want[i] {
			t.Errorf("months[%d] = %v, want %v", i, months[i], want[i])
		}
	}

	// No directory yet for decisions.
	none, err := s.Months(docstore.DecisionsDir)
	if err != nil || none != nil {
		t.Errorf("empty kind: %v, %v", none, err)
	}
}

func TestUnreadableDocSkipped(t *testing.T) {
	s := newStore(t)
	doc := &docstore.SessionDoc{ID: "good", Title: "ok", CreatedAt: "2025-06-01T10:00:00Z"}
	if err := s.SaveSessionDoc(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	junk := filepath.Join(s.Root(), docstore.SessionsDir, "2025", "06", "bad.json")
	if err := os.WriteFile(junk, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	docs, err := s.ListSessionDocs()
	if err != nil {
		t.Fatalf("ListSessionDocs: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "good" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLinks(t *testing.T) {
	s := newStore(t)

	if err := s.WriteLink("abc12345", "master-1"); err != nil {
		t.Fatalf("WriteLink: %v", err)
	}
	master, err := s.ResolveLink("abc12345")
	if err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if master != "master-1" {
		t.Errorf("master = %q", master)
	}

	missing, err := s.ResolveLink("nothere")
	if err != nil || missing != "" {
		t.Errorf("missing link: %q, %v", missing, err)
	}

	if err := s.DeleteLink("abc12345"); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if master, _ = s.ResolveLink("abc12345"); master != "" {
		t.Error("link should be gone")
	}
}

func TestShortID(t *testing.T) {
	if got := docstore.ShortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("ShortID = %q", got)
	}
	if got := docstore.ShortID("abc"); got != "abc" {
		t.Errorf("short input ShortID = %q", got)
	}
}

func TestDecisionDocs(t *testing.T) {
	s := newStore(t)
	doc := &docstore.DecisionDoc{
		ID:        "dec-1",
		Title:     "Use SQLite for the archive",
		Tags:      []string{"storage"},
		Problem:   "Need durable local persistence",
		Decision:  "Embedded SQLite with FTS",
		SessionID: "sess-1",
		CreatedAt: "2025-06-10T10:00:00Z",
	}
	if err := s.SaveDecisionDoc(doc); err != nil {
		t.Fatalf("SaveDecisionDoc: %v", err)
	}

	docs, err := s.ListDecisionDocs()
	if err != nil {
		t.Fatalf("ListDecisionDocs: %v", err)
	}
	if len(docs) != 1 || docs[0].Decision != "Embedded SQLite with FTS" {
		t.Errorf("docs = %+v", docs)
	}

	month, err := s.DecisionDocsForMonth(2025, 6)
	if err != nil || len(month) != 1 {
		t.Errorf("month docs = %+v, %v", month, err)
	}
}

func TestPatternsAndRules(t *testing.T) {
	s := newStore(t)

	patterns := []docstore.Pattern{
		{ID: "p1", Name: "Table-driven tests", Status: "approved", Priority: docstore.PriorityHighest},
		{ID: "p2", Name: "Draft idea", Status: "draft"},
	}
	if err := s.SavePatternSource("team", patterns); err != nil {
		t.Fatalf("SavePatternSource: %v", err)
	}

	all, err := s.ListPatterns()
	if err != nil {
		t.Fatalf("ListPatterns: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d patterns, want 2", len(all))
	}
	if !all[0].Approved() || all[1].Approved() {
		t.Errorf("approval flags wrong: %+v", all)
	}

	rulesDir := filepath.Join(s.Root(), docstore.RulesDir)
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		t.Fatalf("mkdir rules: %v", err)
	}
	ruleYAML := "name: code-review\nrules:\n  - id: r1\n    name: No naked returns\n    status: active\n"
	if err := os.WriteFile(filepath.Join(rulesDir, "review.yaml"), []byte(ruleYAML), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if err := os.WriteFile(filepath.Join(rulesDir, "broken.yaml"), []byte(":\tnot yaml"), 0o644); err != nil {
		t.Fatalf("write broken rules: %v", err)
	}

	sets, err := s.ListRuleSets()
	if err != nil {
		t.Fatalf("ListRuleSets: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("got %d rule sets, want 1 (broken one skipped)", len(sets))
	}
	if sets[0].Name != "code-review" || len(sets[0].Rules) != 1 {
		t.Errorf("set = %+v", sets[0])
	}
}
