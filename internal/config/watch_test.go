package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contexts.toml")
	if err := os.WriteFile(path, []byte("default_fade = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := WatchFile(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("default_fade = 2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case got := <-w.Events:
		if filepath.Base(got) != "contexts.toml" {
			t.Errorf("event for %q, want contexts.toml", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event after writing the watched file")
	}
}

func TestWatchCloseClosesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := WatchFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	w.Close()
	if _, ok := <-w.Events; ok {
		t.Error("Events still open after Close")
	}
}
