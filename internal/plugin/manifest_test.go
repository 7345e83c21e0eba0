package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, ManifestFile)

	content := `{
		"name": "moosync.test",
		"display_name": "Test Extension",
		"version": "1.2.0",
		"author": "someone",
		"icon": "icon.svg",
		"extension_entry": "dist/ext.wasm",
		"permissions": {
			"paths": {"{HOME}/b": "/run/b", "{HOME}/a": "/run/a"},
			"hosts": ["api.example.com"]
		}
	}`
	if err := os.WriteFile(manifestPath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test manifest: %v", err)
	}

	m, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}

	if m.Name != "moosync.test" {
		t.Errorf("Name = %q, want %q", m.Name, "moosync.test")
	}
	if m.DisplayName != "Test Extension" {
		t.Errorf("DisplayName = %q", m.DisplayName)
	}
	if m.AuthorName() != "someone" {
		t.Errorf("AuthorName() = %q", m.AuthorName())
	}
	if m.Path() != dir {
		t.Errorf("Path() = %q, want %q", m.Path(), dir)
	}
	if want := filepath.Join(dir, "dist", "ext.wasm"); m.EntryPath() != want {
		t.Errorf("EntryPath() = %q, want %q", m.EntryPath(), want)
	}
	if m.Permissions == nil {
		t.Fatal("Permissions = nil")
	}
	paths := m.Permissions.Paths
	if len(paths) != 2 || paths[0].Prefix != "{HOME}/b" || paths[1].Prefix != "{HOME}/a" {
		t.Errorf("Paths = %+v, want declaration order", paths)
	}
	if len(m.Permissions.Hosts) != 1 || m.Permissions.Hosts[0] != "api.example.com" {
		t.Errorf("Hosts = %v", m.Permissions.Hosts)
	}
}

func TestLoadManifestWithoutOptionalFields(t *testing.T) {
	m, err := ParseManifest("/ext/package.json", []byte(`{"name": "a", "version": "1.0.0", "extension_entry": "a.wasm"}`))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Author != nil || m.AuthorName() != "" {
		t.Errorf("Author = %v", m.Author)
	}
	if m.Permissions != nil {
		t.Errorf("Permissions = %+v, want nil", m.Permissions)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"invalid json", `invalid json`, nil},
		{"missing name", `{"extension_entry": "a.wasm"}`, ErrMissingName},
		{"missing entry", `{"name": "a"}`, ErrMissingEntry},
		{"bad paths", `{"name": "a", "extension_entry": "a.wasm", "permissions": {"paths": ["x"]}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest("/ext/package.json", []byte(tt.content))
			if err == nil {
				t.Fatal("ParseManifest() should fail")
			}
			var me *ManifestError
			if !errors.As(err, &me) || me.Path != "/ext/package.json" {
				t.Errorf("error = %v, want *ManifestError for the path", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadManifestNotFound(t *testing.T) {
	_, err := LoadManifest("/nonexistent/path/package.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadManifest() error = %v, want not exist", err)
	}
}

func TestManifestAbsoluteEntry(t *testing.T) {
	m := &Manifest{Name: "a", Entry: "/opt/a.wasm", path: "/ext/a"}
	if m.EntryPath() != "/opt/a.wasm" {
		t.Errorf("EntryPath() = %q", m.EntryPath())
	}
}

func TestManifestString(t *testing.T) {
	m := &Manifest{Name: "a", Version: "1.0.0"}
	if m.String() != "a v1.0.0" {
		t.Errorf("String() = %q", m.String())
	}
	m.DisplayName = "Alpha"
	if m.String() != "Alpha v1.0.0" {
		t.Errorf("String() = %q", m.String())
	}
}

func TestManifestClone(t *testing.T) {
	m, err := ParseManifest("/ext/package.json", []byte(`{
		"name": "a", "author": "x", "extension_entry": "a.wasm",
		"permissions": {"paths": {"/p": "/r"}, "hosts": ["h"]}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	clone := m.Clone()
	*clone.Author = "y"
	clone.Permissions.Paths[0].Root = "/changed"
	clone.Permissions.Hosts[0] = "changed"

	if m.AuthorName() != "x" {
		t.Error("Clone() shares author")
	}
	if m.Permissions.Paths[0].Root != "/r" || m.Permissions.Hosts[0] != "h" {
		t.Error("Clone() shares permissions")
	}
	if clone.Path() != m.Path() {
		t.Errorf("clone Path() = %q", clone.Path())
	}
}
