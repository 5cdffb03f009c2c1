package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[unclosed"}, func([]string) {}); err == nil {
		t.Fatal("expected invalid exclude pattern to fail")
	}
}

func waitFor(t *testing.T, changed <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change event on %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, []string{"vendor", "*.bak.php"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "Cls1.php")
	if err := os.WriteFile(testFile, []byte("<?php class Cls1 {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	excludeFile := filepath.Join(tmpDir, "Cls1.bak.php")
	if err := os.WriteFile(excludeFile, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	ignored := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(ignored, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if p == excludeFile || p == ignored {
				t.Errorf("excluded file triggered event: %s", p)
			}
		}
	case <-time.After(500 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "manifests")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "types.toml")
	if err := os.WriteFile(subFile, []byte("version = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, subFile, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.php")
	newPath := filepath.Join(tmpDir, "new.php")
	if err := os.WriteFile(oldPath, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_ExtensionFilters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, []string{"vendor/**"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.shouldExcludeFile("Cls1.php") {
		t.Fatal("expected .php to be watched by default")
	}
	if w.shouldExcludeFile("types.YAML") {
		t.Fatal("expected extension match to ignore case")
	}
	if !w.shouldExcludeFile("main.go") {
		t.Fatal("expected .go to be ignored")
	}
	if !w.shouldExcludeFile("vendor/lib/Cls.php") {
		t.Fatal("expected exclude glob to apply to slash paths")
	}

	w.SetExtensions([]string{"hh"})
	if !w.shouldExcludeFile("Cls1.php") {
		t.Fatal("expected .php to be ignored once only .hh is allowed")
	}
	if w.shouldExcludeFile("Cls1.hh") {
		t.Fatal("expected extension without dot to be normalized")
	}
}
