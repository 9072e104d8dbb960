package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T, profile string) *SQLiteBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.db")
	b, err := OpenSQLite(context.Background(), path, profile)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLite_SetGetRemove(t *testing.T) {
	b := openTestSQLite(t, "p1")
	ctx := context.Background()

	got, err := b.Get(ctx, []string{"writer-mode"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}

	if err := b.Set(ctx, map[string]string{"writer-mode": "on", "sidebar-visibility": "on"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set(ctx, map[string]string{"writer-mode": "off"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, err = b.Get(ctx, []string{"writer-mode", "sidebar-visibility", "missing"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["writer-mode"] != "off" || got["sidebar-visibility"] != "on" {
		t.Fatalf("unexpected values: %v", got)
	}
	if _, ok := got["missing"]; ok {
		t.Fatal("expected missing key to be absent")
	}

	if err := b.Remove(ctx, []string{"writer-mode"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, _ = b.Get(ctx, []string{"writer-mode", "sidebar-visibility"})
	if _, ok := got["writer-mode"]; ok {
		t.Fatal("expected writer-mode removed")
	}
	if got["sidebar-visibility"] != "on" {
		t.Fatal("expected sidebar-visibility to remain")
	}
}

func TestSQLite_ProfilesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	a, err := OpenSQLite(ctx, path, "a")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer a.Close()
	a.Set(ctx, map[string]string{"writer-mode": "on"})

	b, err := OpenSQLite(ctx, path, "b")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer b.Close()

	got, _ := b.Get(ctx, []string{"writer-mode"})
	if len(got) != 0 {
		t.Fatalf("expected profile b to be empty, got %v", got)
	}
}

func TestSQLite_ClosedBackendFallsBackThroughStore(t *testing.T) {
	b := openTestSQLite(t, "p1")
	store := newTestStore(b)
	ctx := context.Background()

	if _, err := store.Set(ctx, Set{WriterMode: On}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b.Close()

	if b.Valid() {
		t.Fatal("expected closed backend to be invalid")
	}
	if got := store.Get(ctx, WriterMode); got != Off {
		t.Fatalf("expected default after close, got %q", got)
	}
	if _, err := store.Set(ctx, Set{WriterMode: On}); !errors.Is(err, ErrContextInvalidated) {
		t.Fatalf("expected ErrContextInvalidated, got %v", err)
	}
}

func TestFileWatcher_ReloadsOnExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ours, err := OpenSQLite(ctx, path, "p1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer ours.Close()
	store := newTestStore(ours)

	reloaded := make(chan Set, 8)
	store.Subscribe(func(s Set) {
		select {
		case reloaded <- s:
		default:
		}
	})

	fw, err := WatchFile(ctx, store, path, 20*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer fw.Close()

	other, err := OpenSQLite(ctx, path, "p1")
	if err != nil {
		t.Fatalf("OpenSQLite (other): %v", err)
	}
	defer other.Close()
	if err := other.Set(ctx, map[string]string{"sidebar-visibility": "on"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-reloaded:
			if s[SidebarVisibility] == On {
				return
			}
		case <-deadline:
			t.Fatal("store was not reloaded after external write")
		}
	}
}
