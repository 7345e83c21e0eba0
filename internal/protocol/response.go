package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is the closed set of replies a command can produce.
//
// Every implementation must say how to namespace the identifiers it carries.
// The method is part of the interface, so a new response type that forgets
// sanitization does not compile.
type Response interface {
	// Kind returns the wire tag of the response.
	Kind() string

	sanitize(packageName string)
}

// Sanitize namespaces every plugin-sourced identifier in r with the owning
// package name. It is not idempotent: see SanitizeSong.
func Sanitize(r Response, packageName string) {
	if r == nil {
		return
	}
	r.sanitize(packageName)
}

// Empty is the marker delivered when there is nothing to report, or when a
// single targeted plugin failed.
type Empty struct{}

// Kind implements Response.
func (Empty) Kind() string { return "empty" }

func (Empty) sanitize(string) {}

// IsEmpty reports whether r is the empty marker.
func IsEmpty(r Response) bool {
	switch r.(type) {
	case Empty, *Empty:
		return true
	}
	return false
}

// ProviderScopes lists the scopes an extension provides.
type ProviderScopes struct {
	Scopes []ProviderScope `json:"scopes"`
}

// Kind implements Response.
func (*ProviderScopes) Kind() string { return "getProviderScopes" }

func (*ProviderScopes) sanitize(string) {}

// ContextMenu lists context menu items contributed by an extension.
type ContextMenu struct {
	Items []ContextMenuItem `json:"items"`
}

// Kind implements Response.
func (*ContextMenu) Kind() string { return "getExtensionContextMenu" }

func (*ContextMenu) sanitize(string) {}

// Accounts lists the accounts an extension manages.
type Accounts struct {
	Accounts []Account `json:"accounts"`
}

// Kind implements Response.
func (*Accounts) Kind() string { return "getAccounts" }

// Accounts are not prefixed; they are stamped with their owner instead.
func (a *Accounts) sanitize(packageName string) {
	for i := range a.Accounts {
		a.Accounts[i].PackageName = packageName
	}
}

// AccountLogin acknowledges a login or logout request.
type AccountLogin struct{}

// Kind implements Response.
func (*AccountLogin) Kind() string { return "performAccountLogin" }

func (*AccountLogin) sanitize(string) {}

// ExtraEventResult wraps the reply to an extra extension event.
type ExtraEventResult struct {
	Event ExtraEventResponse
}

// Kind implements Response.
func (*ExtraEventResult) Kind() string { return "extraExtensionEvent" }

func (r *ExtraEventResult) sanitize(packageName string) {
	if r.Event == nil {
		return
	}
	r.Event.sanitize(packageName + ":")
}

// MarshalJSON encodes the inner event tagged with its type.
func (r *ExtraEventResult) MarshalJSON() ([]byte, error) {
	if r.Event == nil {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Type EventType          `json:"type"`
		Data ExtraEventResponse `json:"data"`
	}{r.Event.Event(), r.Event})
}

// MarshalResponse encodes r as {"type": kind, "data": payload}.
func MarshalResponse(r Response) ([]byte, error) {
	if r == nil {
		r = Empty{}
	}
	var data any = r
	if IsEmpty(r) {
		data = nil
	}
	out, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{r.Kind(), data})
	if err != nil {
		return nil, fmt.Errorf("encode %s response: %w", r.Kind(), err)
	}
	return out, nil
}

// isNull reports whether raw carries no JSON value.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeInto unmarshals raw into v, rejecting an absent value.
func decodeInto(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return ErrEmptyReply
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
