package bridge

import "errors"

// Bridge errors.
var (
	// ErrHostCallTimeout is returned when the host does not answer a
	// send_main_command call within the configured timeout.
	ErrHostCallTimeout = errors.New("host call timed out")

	// ErrClosed is returned when the outbound queue or the reply table has
	// been shut down.
	ErrClosed = errors.New("bridge closed")

	// ErrMapCommand is returned when a plugin command cannot be turned into
	// a host request.
	ErrMapCommand = errors.New("cannot map plugin command")
)
