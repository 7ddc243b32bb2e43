package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hir4ta/mneme-sub001/internal/store"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	s, cleanup, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cleanup()

	if s == nil {
		t.Fatal("server is nil")
	}

	// The store opens eagerly, so the database file exists already.
	if _, err := os.Stat(filepath.Join(dir, store.DBFile)); err != nil {
		t.Errorf("expected database in data dir: %v", err)
	}
}

func TestNewBadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	_, cleanup, err := New(dir)
	if err == nil {
		t.Fatal("expected error for malformed config overlay")
	}
	// Cleanup must be callable even on failure.
	cleanup()
}
