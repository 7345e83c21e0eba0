package plugin

// State represents the lifecycle state of a plugin instance.
type State int

// Plugin states.
const (
	// StateLoaded - Module is built, entry has not started yet.
	StateLoaded State = iota

	// StateRunning - The entry export is executing.
	StateRunning

	// StateExited - The entry export returned without error.
	StateExited

	// StateError - The entry export failed or panicked.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// HasStarted reports whether the entry export has been invoked.
func (s State) HasStarted() bool {
	return s != StateLoaded
}
