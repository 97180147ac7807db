package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverDefault(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".conveyor")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"b.pipeline.yml", "a.pipeline.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("name: x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// A non-definition file must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	got, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(".conveyor", "a.pipeline.yml"),
		filepath.Join(".conveyor", "b.pipeline.yml"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d paths, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("path %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDiscoverEmpty(t *testing.T) {
	_, err := Discover(t.TempDir(), nil)
	if !errors.Is(err, ErrNoPipelines) {
		t.Fatalf("expected ErrNoPipelines, got %v", err)
	}
}

func TestDiscoverExplicit(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "ci.pipeline.yml")
	if err := os.WriteFile(path, []byte("name: ci"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Discover(root, []string{"ci.pipeline.yml", "ci.pipeline.yml"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || got[0] != "ci.pipeline.yml" {
		t.Fatalf("expected deduplicated explicit path, got %v", got)
	}
}

func TestDiscoverExplicitMissing(t *testing.T) {
	if _, err := Discover(t.TempDir(), []string{"absent.yml"}); err == nil {
		t.Fatalf("expected error for missing explicit path")
	}
}

func TestDiscoverExplicitDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Discover(root, []string{"dir"}); err == nil {
		t.Fatalf("expected error for directory path")
	}
}
