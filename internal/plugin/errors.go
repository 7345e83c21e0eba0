package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when no loaded plugin has the given name.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrAlreadyLoaded is returned when a plugin with the same name is loaded.
	ErrAlreadyLoaded = errors.New("plugin is already loaded")

	// ErrNoRuntime is returned when no runtime handles an entry file.
	ErrNoRuntime = errors.New("no runtime for entry file")

	// ErrNoExtensions is returned when a command matched no loaded plugin.
	ErrNoExtensions = errors.New("no extension matched the command")

	// ErrUnsupported is returned for runner commands the host does not implement.
	ErrUnsupported = errors.New("unsupported runner command")

	// ErrClosed is returned after the system has shut down.
	ErrClosed = errors.New("plugin system is closed")
)

// Manifest validation errors.
var (
	ErrMissingName  = errors.New("manifest: name is required")
	ErrMissingEntry = errors.New("manifest: extension_entry is required")
)

// ManifestError records why a manifest file was rejected.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// CallError records a failed call into a plugin export.
type CallError struct {
	Package  string
	Function string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("plugin %s: call %s: %v", e.Package, e.Function, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
