package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moosync/exthost/internal/plugin/security"
)

// ManifestFile is the file name of a plugin manifest.
const ManifestFile = "package.json"

// Manifest describes a plugin package.
type Manifest struct {
	// Identity
	Name        string  `json:"name"`         // Unique package identity
	DisplayName string  `json:"display_name"` // Human-readable name
	Version     string  `json:"version"`
	Author      *string `json:"author,omitempty"`
	Icon        string  `json:"icon"`

	// Entry module, relative to the manifest directory
	Entry string `json:"extension_entry"`

	// Requested capabilities, nil when none were declared
	Permissions *Permissions `json:"permissions,omitempty"`

	// Internal: path to the manifest directory
	path string
}

// Permissions is the capability request of a manifest.
type Permissions struct {
	// Paths maps a path prefix, which may embed {ENV_VAR} placeholders, to
	// the directory it grants.
	Paths security.PathMap `json:"paths"`

	// Hosts lists the outbound network hosts the plugin may reach.
	Hosts []string `json:"hosts"`
}

// LoadManifest loads and validates a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return ParseManifest(path, data)
}

// ParseManifest decodes a manifest read from path.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	m.path = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return &m, nil
}

// Validate checks the fields every manifest needs.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if m.Entry == "" {
		return ErrMissingEntry
	}
	return nil
}

// Path returns the manifest directory.
func (m *Manifest) Path() string {
	return m.path
}

// EntryPath returns the entry module resolved against the manifest directory.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Entry) {
		return m.Entry
	}
	return filepath.Join(m.path, m.Entry)
}

// AuthorName returns the author or "".
func (m *Manifest) AuthorName() string {
	if m.Author == nil {
		return ""
	}
	return *m.Author
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	if m.Author != nil {
		author := *m.Author
		clone.Author = &author
	}
	if m.Permissions != nil {
		perms := Permissions{
			Paths: append(security.PathMap(nil), m.Permissions.Paths...),
			Hosts: append([]string(nil), m.Permissions.Hosts...),
		}
		clone.Permissions = &perms
	}
	return &clone
}
