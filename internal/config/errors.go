package config

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates an explicitly requested config file is missing.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidValue indicates a setting holds a value outside its domain.
	ErrInvalidValue = errors.New("invalid config value")
)

// ParseError describes a config file that could not be parsed.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValueError describes a single invalid setting.
type ValueError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s = %v: %s", e.Key, e.Value, e.Reason)
}

func (e *ValueError) Unwrap() error {
	return ErrInvalidValue
}
