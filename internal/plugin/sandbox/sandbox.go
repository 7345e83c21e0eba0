// Package sandbox defines the contract between the extension host and the
// isolated runtimes that execute plugin code.
//
// A Runtime turns an entry file plus a capability grant into a Module. The
// host binds exactly one set of HostFunctions into every module it builds;
// modules never share state with one another.
package sandbox

import (
	"context"

	"github.com/moosync/exthost/internal/plugin/security"
)

// EntryFunction is the export every plugin runs for its lifetime.
const EntryFunction = "entry"

// HostFunctions is the capability bridge bound into a module.
type HostFunctions interface {
	// SendMainCommand forwards a plugin command to the host application and
	// blocks until the reply arrives.
	SendMainCommand(ctx context.Context, command []byte) ([]byte, error)

	// SystemTime returns whole seconds since the Unix epoch.
	SystemTime() uint64

	// OpenClientFD opens a permitted local socket, returning its handle or -1.
	OpenClientFD(path string) int64

	// WriteSock writes to an open socket.
	WriteSock(handle int64, data []byte) int64

	// ReadSock reads at most maxLen bytes from an open socket.
	ReadSock(handle int64, maxLen uint64) []byte
}

// Config describes the module to build.
type Config struct {
	// Name is the package identity owning the module.
	Name string

	// EntryPath is the absolute path of the entry file.
	EntryPath string

	// Grants holds the resolved permissions. Nil when none were declared.
	Grants *security.Grants

	// Values are read-only configuration keys visible to the plugin.
	Values map[string]string

	Limits security.Limits
}

// Module is one loaded, isolated plugin.
// Implementations are not safe for concurrent calls; callers serialize.
type Module interface {
	// Call invokes the exported function fn with a JSON input.
	Call(ctx context.Context, fn string, input []byte) ([]byte, error)

	// FunctionExists reports whether the module exports fn.
	FunctionExists(fn string) bool

	// Close releases the module.
	Close(ctx context.Context) error
}

// Runtime builds modules of one kind.
type Runtime interface {
	// Extension returns the entry file extension handled, e.g. ".wasm".
	Extension() string

	// Build loads the entry file and binds host into it.
	Build(ctx context.Context, cfg Config, host HostFunctions) (Module, error)
}
