package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrDuplicate is returned when a second Put targets an existing
	// (runID, name) key. Artifacts are write-once.
	ErrDuplicate = errors.New("duplicate artifact")
	// ErrNotFound is returned by Get for unknown keys. Callers check it
	// with errors.Is.
	ErrNotFound = errors.New("artifact not found")
)

// Store persists named, immutable outputs produced during runs on the
// local filesystem, one directory per run ID. Distinct keys may be
// written concurrently; each key is written by exactly one producer.
type Store struct {
	root string
}

// NewStore creates a store rooted at the given directory, creating it if
// needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Put stores content under (runID, name) and returns the content ref.
// A second Put for the same key fails with ErrDuplicate.
func (s *Store) Put(runID, name string, content []byte) (string, error) {
	if err := validateKey(runID, name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory %q: %w", runID, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s/%s", ErrDuplicate, runID, name)
		}
		return "", fmt.Errorf("create artifact %q: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", name, err)
	}
	return s.Ref(runID, name), nil
}

// Get returns the content stored under (runID, name).
func (s *Store) Get(runID, name string) ([]byte, error) {
	if err := validateKey(runID, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, runID, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, runID, name)
		}
		return nil, fmt.Errorf("read artifact %q: %w", name, err)
	}
	return data, nil
}

// List returns the artifact names recorded for a run, sorted
// lexicographically. A run with no artifacts yields an empty list.
func (s *Store) List(runID string) ([]string, error) {
	if err := validateKey(runID, "-"); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list artifacts for %q: %w", runID, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Ref returns the content ref for a key without touching the filesystem.
func (s *Store) Ref(runID, name string) string {
	return runID + "/" + name
}

// GetByRef resolves a content ref produced by Put or Ref.
func (s *Store) GetByRef(ref string) ([]byte, error) {
	runID, name, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("malformed artifact ref %q", ref)
	}
	return s.Get(runID, name)
}

func validateKey(runID, name string) error {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("artifact key must have run ID and name")
	}
	for _, part := range []string{runID, name} {
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("artifact key component %q must be a plain name", part)
		}
	}
	return nil
}
