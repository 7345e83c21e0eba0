package security

import "time"

// Capability bridge limits.
const (
	// MaxSocketHandles is the number of sockets one instance may hold open.
	// The 257th open is refused.
	MaxSocketHandles = 256

	// MaxReadLen caps a single read_sock call.
	MaxReadLen = 1024
)

// Limits bounds what a plugin instance may consume.
type Limits struct {
	// HostCallTimeout bounds how long send_main_command waits for the host.
	// Zero waits forever.
	HostCallTimeout time.Duration

	// ScriptTimeout bounds one call into a script plugin, excluding its
	// entry function. Zero disables the bound.
	ScriptTimeout time.Duration
}

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		HostCallTimeout: 60 * time.Second,
		ScriptTimeout:   5 * time.Second,
	}
}

// ClampReadLen applies the read_sock cap: 0 and anything above MaxReadLen
// become MaxReadLen.
func ClampReadLen(n uint64) int {
	if n == 0 || n > MaxReadLen {
		return MaxReadLen
	}
	return int(n)
}
