package protocol

import "errors"

// Protocol errors.
var (
	// ErrUnknownCommand is returned when a command type is not recognised.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrUnknownEvent is returned when an extra event type is not recognised.
	ErrUnknownEvent = errors.New("unknown extra event type")

	// ErrEmptyReply is returned when a plugin reply carries no value but the
	// command expects one.
	ErrEmptyReply = errors.New("empty reply")

	// ErrMalformed is returned when a payload is not valid JSON or misses a
	// required field.
	ErrMalformed = errors.New("malformed payload")
)
