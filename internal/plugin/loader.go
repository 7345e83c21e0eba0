package plugin

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Loader discovers plugin manifests in the extensions directory.
type Loader struct {
	root string

	// Entry file extensions a runtime is registered for.
	extensions map[string]bool

	log zerolog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtensions sets the accepted entry file extensions, e.g. ".wasm".
func WithExtensions(exts ...string) LoaderOption {
	return func(l *Loader) {
		l.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			l.extensions[ext] = true
		}
	}
}

// WithLoaderLogger sets the logger used for skipped manifests.
func WithLoaderLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

// NewLoader creates a loader scanning root.
func NewLoader(root string, opts ...LoaderOption) *Loader {
	l := &Loader{
		root:       root,
		extensions: map[string]bool{".wasm": true},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Root returns the scanned directory.
func (l *Loader) Root() string {
	return l.root
}

// ManifestPaths lists candidate manifests: package.json directly in the
// root, and package.json one level below each direct subdirectory.
func (l *Loader) ManifestPaths() []string {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.log.Warn().Err(err).Str("dir", l.root).Msg("cannot read extensions directory")
		}
		return nil
	}

	var paths []string
	for _, entry := range entries {
		full := filepath.Join(l.root, entry.Name())
		// Stat follows symlinks, so linked development installs are found.
		info, err := os.Stat(full)
		if err != nil {
			l.log.Debug().Err(err).Str("path", full).Msg("skipping unreadable entry")
			continue
		}
		if info.IsDir() {
			candidate := filepath.Join(full, ManifestFile)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				paths = append(paths, candidate)
			}
			continue
		}
		if entry.Name() == ManifestFile && info.Mode().IsRegular() {
			paths = append(paths, full)
		}
	}
	return paths
}

// Discover parses every candidate manifest and returns the acceptable ones.
// A manifest is accepted when loaded reports false for its name, its entry
// has a registered extension and the entry file exists. Duplicate names in
// one scan collapse to the first. Rejections are logged, never returned.
func (l *Loader) Discover(loaded func(name string) bool) []*Manifest {
	seen := make(map[string]bool)
	var accepted []*Manifest

	for _, path := range l.ManifestPaths() {
		m, err := LoadManifest(path)
		if err != nil {
			l.log.Error().Err(err).Msg("skipping manifest")
			continue
		}
		if err := l.accept(m, seen, loaded); err != nil {
			l.log.Debug().Str("manifest", path).Str("package", m.Name).Str("reason", err.Error()).Msg("skipping extension")
			continue
		}
		seen[m.Name] = true
		accepted = append(accepted, m)
	}
	return accepted
}

func (l *Loader) accept(m *Manifest, seen map[string]bool, loaded func(string) bool) error {
	if seen[m.Name] || (loaded != nil && loaded(m.Name)) {
		return ErrAlreadyLoaded
	}
	entry := m.EntryPath()
	if !l.extensions[filepath.Ext(entry)] {
		return ErrNoRuntime
	}
	info, err := os.Stat(entry)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrNoRuntime
	}
	return nil
}
