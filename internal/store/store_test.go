package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "exthost.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file should exist after creating store: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{tablePreferences, tableSecure} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "exthost.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Preferences().Set(ctx, "moosync.a", "volume", json.RawMessage(`70`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Preferences().Get(ctx, "moosync.a", "volume")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "70" {
		t.Errorf("Get = %s, want 70", got)
	}
}

func TestKVRepository_SetGet(t *testing.T) {
	ctx := context.Background()
	prefs := newTestStore(t).Preferences()

	if _, err := prefs.Get(ctx, "moosync.a", "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before Set: err = %v, want ErrNotFound", err)
	}

	if err := prefs.Set(ctx, "moosync.a", "theme", json.RawMessage(`{"dark":true}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := prefs.Get(ctx, "moosync.a", "theme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"dark":true}` {
		t.Errorf("Get = %s", got)
	}

	// Overwrite.
	if err := prefs.Set(ctx, "moosync.a", "theme", json.RawMessage(`"light"`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, _ = prefs.Get(ctx, "moosync.a", "theme")
	if string(got) != `"light"` {
		t.Errorf("Get after overwrite = %s", got)
	}

	// Empty values are stored as null.
	if err := prefs.Set(ctx, "moosync.a", "empty", nil); err != nil {
		t.Fatalf("Set nil: %v", err)
	}
	got, _ = prefs.Get(ctx, "moosync.a", "empty")
	if string(got) != "null" {
		t.Errorf("Get empty = %s, want null", got)
	}
}

func TestKVRepository_ScopedByExtension(t *testing.T) {
	ctx := context.Background()
	prefs := newTestStore(t).Preferences()

	if err := prefs.Set(ctx, "moosync.a", "key", json.RawMessage(`1`)); err != nil {
		t.Fatal(err)
	}
	if err := prefs.Set(ctx, "moosync.b", "key", json.RawMessage(`2`)); err != nil {
		t.Fatal(err)
	}

	a, _ := prefs.Get(ctx, "moosync.a", "key")
	b, _ := prefs.Get(ctx, "moosync.b", "key")
	if string(a) != "1" || string(b) != "2" {
		t.Errorf("a = %s, b = %s", a, b)
	}
}

func TestKVRepository_SecureIsSeparate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Secure().Set(ctx, "moosync.a", "token", json.RawMessage(`"s3cret"`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Preferences().Get(ctx, "moosync.a", "token"); !errors.Is(err, ErrNotFound) {
		t.Errorf("secure value leaked into preferences: %v", err)
	}
	got, err := s.Secure().Get(ctx, "moosync.a", "token")
	if err != nil || string(got) != `"s3cret"` {
		t.Errorf("Secure Get = %s, %v", got, err)
	}
}

func TestKVRepository_Errors(t *testing.T) {
	ctx := context.Background()
	prefs := newTestStore(t).Preferences()

	if err := prefs.Set(ctx, "moosync.a", "bad", json.RawMessage(`{nope`)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Set invalid json: err = %v, want ErrInvalidValue", err)
	}
	if err := prefs.Set(ctx, "", "key", json.RawMessage(`1`)); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Set without extension: err = %v, want ErrMissingKey", err)
	}
	if _, err := prefs.Get(ctx, "moosync.a", ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Get without key: err = %v, want ErrMissingKey", err)
	}
	if err := prefs.Delete(ctx, "moosync.a", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: err = %v, want ErrNotFound", err)
	}
}

func TestKVRepository_KeysDeleteClear(t *testing.T) {
	ctx := context.Background()
	prefs := newTestStore(t).Preferences()

	for _, key := range []string{"volume", "accounts", "theme"} {
		if err := prefs.Set(ctx, "moosync.a", key, json.RawMessage(`true`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := prefs.Set(ctx, "moosync.b", "other", json.RawMessage(`true`)); err != nil {
		t.Fatal(err)
	}

	keys, err := prefs.Keys(ctx, "moosync.a")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"accounts", "theme", "volume"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if err := prefs.Delete(ctx, "moosync.a", "theme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, err := prefs.Clear(ctx, "moosync.a")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}

	keys, _ = prefs.Keys(ctx, "moosync.b")
	if len(keys) != 1 || keys[0] != "other" {
		t.Errorf("Clear touched another extension: %v", keys)
	}
}
