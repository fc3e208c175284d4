package blockstorm

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSettingsFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockstorm.toml")
	writeSettingsFile(t, path, `
[history]
max_entries = 42
boundary_timeout = "250ms"

[log]
level = "debug"
`)

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.History.MaxEntries != 42 {
		t.Errorf("max entries = %d, want 42", s.History.MaxEntries)
	}
	if s.History.BoundaryTimeout != "250ms" {
		t.Errorf("boundary timeout = %q, want 250ms", s.History.BoundaryTimeout)
	}
	if s.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", s.Log.Level)
	}
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("got %+v, want defaults", s)
	}
}

func TestWatchSettings_AppliesChanges(t *testing.T) {
	e := New()
	for i := 0; i < 5; i++ {
		if _, err := e.AddBlock(textBlock(t, fmt.Sprintf("blk-%d", i), "")); err != nil {
			t.Fatal(err)
		}
		e.StopCapturing()
	}

	path := filepath.Join(t.TempDir(), "blockstorm.toml")
	writeSettingsFile(t, path, "[history]\nmax_entries = 1000\n")

	w, err := e.WatchSettings(path, WithWatchDebounce(30*time.Millisecond))
	if err != nil {
		t.Fatalf("WatchSettings failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	writeSettingsFile(t, path, "[history]\nmax_entries = 2\n")

	deadline := time.Now().Add(5 * time.Second)
	for e.UndoCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("undo count = %d after reload, want 2", e.UndoCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if w.Stats().Reloads < 1 {
		t.Errorf("reloads = %d, want at least 1", w.Stats().Reloads)
	}
}

func TestWatchSettings_BadFileKeepsCurrent(t *testing.T) {
	e := New(WithMaxUndoEntries(7))

	path := filepath.Join(t.TempDir(), "blockstorm.toml")
	writeSettingsFile(t, path, "[history]\nmax_entries = 7\n")

	w, err := e.WatchSettings(path, WithWatchDebounce(30*time.Millisecond))
	if err != nil {
		t.Fatalf("WatchSettings failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	writeSettingsFile(t, path, "[history\nmax_entries = ")

	deadline := time.Now().Add(5 * time.Second)
	for w.Stats().Failures < 1 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never recorded the parse failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
