package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/config"
	"github.com/moosync/exthost/internal/plugin/watch"
	"github.com/moosync/exthost/internal/protocol"
	"github.com/moosync/exthost/internal/store"
)

const prefsPlugin = `
local h = require("host")

function entry()
end

function get_provider_scopes_wrapper()
  h.send_main_command({type = "setPreferences", data = {key = "scope", value = "search"}})
  local stored = h.send_main_command({type = "getPreferences", data = {key = "scope"}})
  local fallback = h.send_main_command({type = "getPreferences", data = {key = "missing", defaultValue = "playlists"}})
  return {stored, fallback}
end
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ExtensionsDir = filepath.Join(dir, "extensions")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.DatabasePath = filepath.Join(dir, "exthost.db")
	cfg.EnableLua = true
	cfg.WatchExtensions = false
	if err := os.MkdirAll(cfg.ExtensionsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func installLuaPlugin(t *testing.T, root, name, script string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"` + name + `","display_name":"Lua","version":"1.0.0","icon":"icon.svg","extension_entry":"main.lua"}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoConfig) {
		t.Errorf("err = %v, want ErrNoConfig", err)
	}
}

func TestNew_StoreFailure(t *testing.T) {
	cfg := testConfig(t)
	// A regular file where the database directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.DatabasePath = filepath.Join(blocker, "exthost.db")

	_, err := New(Options{Config: cfg, Logger: zerolog.Nop()})
	var ierr *InitError
	if !errors.As(err, &ierr) || ierr.Component != "store" {
		t.Errorf("err = %v, want store InitError", err)
	}
}

func TestApplication_PreferencesRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	installLuaPlugin(t, cfg.ExtensionsDir, "moosync.lua", prefsPlugin)

	a, err := New(Options{Config: cfg, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := newRecordingNotifier()
	a.SetNotifier(n)

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !a.IsRunning() {
		t.Error("IsRunning = false after Start")
	}
	if err := a.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	select {
	case ev := <-n.ch:
		if ev != protocol.HostExtensionsUpdated {
			t.Errorf("event = %q", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no extensionsUpdated event")
	}

	if got := a.Plugins().Manager().Count(); got != 1 {
		t.Fatalf("loaded %d extensions, want 1", got)
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := a.Plugins().Execute(callCtx, protocol.GetProviderScopes{PackageName: "moosync.lua"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	scopes, ok := resp.(*protocol.ProviderScopes)
	if !ok {
		t.Fatalf("response = %#v, want *ProviderScopes", resp)
	}
	if len(scopes.Scopes) != 2 || scopes.Scopes[0] != protocol.ScopeSearch || scopes.Scopes[1] != protocol.ScopePlaylists {
		t.Errorf("scopes = %v", scopes.Scopes)
	}

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}
	if a.IsRunning() {
		t.Error("IsRunning = true after Shutdown")
	}

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	value, err := st.Preferences().Get(ctx, "moosync.lua", "scope")
	if err != nil {
		t.Fatalf("stored preference: %v", err)
	}
	if string(value) != `"search"` {
		t.Errorf("stored = %s", value)
	}
}

func TestApplication_LuaDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableLua = false
	installLuaPlugin(t, cfg.ExtensionsDir, "moosync.lua", prefsPlugin)

	a, err := New(Options{Config: cfg, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Shutdown(ctx)

	if got := a.Plugins().Manager().Count(); got != 0 {
		t.Errorf("loaded %d extensions with lua disabled, want 0", got)
	}
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(Options{Config: cfg, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for Start to flip the running flag.
	deadline := time.Now().Add(5 * time.Second)
	for !a.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApplication_WatchLoadsNewExtensions(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchExtensions = true

	a, err := New(Options{
		Config:       cfg,
		Logger:       zerolog.Nop(),
		WatchOptions: []watch.Option{watch.WithDebounce(50 * time.Millisecond)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := newRecordingNotifier()
	a.SetNotifier(n)

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Shutdown(ctx)

	if got := a.Plugins().Manager().Count(); got != 0 {
		t.Fatalf("loaded %d extensions before install, want 0", got)
	}
	select {
	case <-n.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no extensionsUpdated event for the initial scan")
	}

	// Stage outside the watched tree and move in one step so the rescan
	// never sees a half written extension.
	staging := t.TempDir()
	installLuaPlugin(t, staging, "moosync.hot", prefsPlugin)
	if err := os.Rename(filepath.Join(staging, "moosync.hot"), filepath.Join(cfg.ExtensionsDir, "moosync.hot")); err != nil {
		t.Fatalf("install: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for a.Plugins().Manager().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := a.Plugins().Manager().Count(); got != 1 {
		t.Fatalf("loaded %d extensions after install, want 1", got)
	}

	select {
	case ev := <-n.ch:
		if ev != protocol.HostExtensionsUpdated {
			t.Errorf("event = %q", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no extensionsUpdated event")
	}
}

func TestApplication_WatchMissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchExtensions = true
	cfg.ExtensionsDir = filepath.Join(t.TempDir(), "absent")

	a, err := New(Options{Config: cfg, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start without a watchable dir: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
