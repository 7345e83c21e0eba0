package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Command is the closed set of requests the router dispatches to plugins.
type Command interface {
	// Kind returns the wire tag of the command.
	Kind() string

	// Target returns the addressed package, or "" to broadcast.
	Target() string

	// Call returns the plugin export to invoke and its JSON argument.
	Call() (fn string, args []byte, err error)

	// ParseResponse decodes a raw plugin reply into the expected response.
	ParseResponse(raw []byte) (Response, error)

	command()
}

// Command tags.
const (
	KindGetProviderScopes   = "getProviderScopes"
	KindGetContextMenu      = "getExtensionContextMenu"
	KindGetAccounts         = "getAccounts"
	KindPerformAccountLogin = "performAccountLogin"
	KindExtraEvent          = "extraExtensionEvent"
)

// GetProviderScopes asks a plugin which scopes it provides.
type GetProviderScopes struct {
	PackageName string `json:"packageName"`
}

func (GetProviderScopes) command() {}

// Kind implements Command.
func (GetProviderScopes) Kind() string { return KindGetProviderScopes }

// Target implements Command.
func (c GetProviderScopes) Target() string { return c.PackageName }

// Call implements Command.
func (GetProviderScopes) Call() (string, []byte, error) {
	return "get_provider_scopes_wrapper", []byte("null"), nil
}

// ParseResponse implements Command.
func (GetProviderScopes) ParseResponse(raw []byte) (Response, error) {
	var scopes []ProviderScope
	if err := decodeInto(raw, &scopes); err != nil {
		return nil, err
	}
	return &ProviderScopes{Scopes: scopes}, nil
}

// GetContextMenu asks a plugin for its context menu entries.
type GetContextMenu struct {
	PackageName string `json:"packageName"`
	MenuType    string `json:"type,omitempty"`
}

func (GetContextMenu) command() {}

// Kind implements Command.
func (GetContextMenu) Kind() string { return KindGetContextMenu }

// Target implements Command.
func (c GetContextMenu) Target() string { return c.PackageName }

// Call implements Command.
func (c GetContextMenu) Call() (string, []byte, error) {
	args, err := json.Marshal(c.MenuType)
	if err != nil {
		return "", nil, err
	}
	return "get_context_menu_wrapper", args, nil
}

// ParseResponse implements Command.
func (GetContextMenu) ParseResponse(raw []byte) (Response, error) {
	var items []ContextMenuItem
	if err := decodeInto(raw, &items); err != nil {
		return nil, err
	}
	return &ContextMenu{Items: items}, nil
}

// GetAccounts asks a plugin for its provider accounts.
type GetAccounts struct {
	PackageName string `json:"packageName"`
}

func (GetAccounts) command() {}

// Kind implements Command.
func (GetAccounts) Kind() string { return KindGetAccounts }

// Target implements Command.
func (c GetAccounts) Target() string { return c.PackageName }

// Call implements Command.
func (GetAccounts) Call() (string, []byte, error) {
	return "get_accounts_wrapper", []byte("null"), nil
}

// ParseResponse implements Command.
func (GetAccounts) ParseResponse(raw []byte) (Response, error) {
	var accounts []Account
	if err := decodeInto(raw, &accounts); err != nil {
		return nil, err
	}
	return &Accounts{Accounts: accounts}, nil
}

// PerformAccountLogin asks a plugin to log an account in or out.
type PerformAccountLogin struct {
	PackageName string `json:"packageName"`
	AccountID   string `json:"accountId"`
	LoginStatus bool   `json:"loginStatus"`
}

func (PerformAccountLogin) command() {}

// Kind implements Command.
func (PerformAccountLogin) Kind() string { return KindPerformAccountLogin }

// Target implements Command.
func (c PerformAccountLogin) Target() string { return c.PackageName }

// Call implements Command.
func (c PerformAccountLogin) Call() (string, []byte, error) {
	args, err := sjson.SetBytes([]byte("{}"), "account_id", c.AccountID)
	if err != nil {
		return "", nil, err
	}
	args, err = sjson.SetBytes(args, "login_status", c.LoginStatus)
	if err != nil {
		return "", nil, err
	}
	return "perform_account_login_wrapper", args, nil
}

// ParseResponse implements Command.
func (PerformAccountLogin) ParseResponse([]byte) (Response, error) {
	return &AccountLogin{}, nil
}

// ExtraEvent forwards a player or provider event to plugins.
type ExtraEvent struct {
	PackageName string          `json:"packageName"`
	Event       EventType       `json:"type"`
	Data        json.RawMessage `json:"data,omitempty"`
}

func (ExtraEvent) command() {}

// Kind implements Command.
func (ExtraEvent) Kind() string { return KindExtraEvent }

// Target implements Command.
func (c ExtraEvent) Target() string { return c.PackageName }

// Call implements Command.
func (c ExtraEvent) Call() (string, []byte, error) {
	fn, err := c.Event.Function()
	if err != nil {
		return "", nil, err
	}
	args := []byte(c.Data)
	if isNull(args) {
		args = []byte("null")
	}
	return fn, args, nil
}

// ParseResponse implements Command.
func (c ExtraEvent) ParseResponse(raw []byte) (Response, error) {
	resp, err := DecodeEventResponse(c.Event, raw)
	if err != nil {
		return nil, err
	}
	return &ExtraEventResult{Event: resp}, nil
}

// DecodeCommand parses a tagged command, {"type": kind, "data": {...}}.
func DecodeCommand(raw []byte) (Command, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	kind := gjson.GetBytes(raw, "type").String()
	data := gjson.GetBytes(raw, "data")
	body := []byte(data.Raw)
	if !data.Exists() {
		body = []byte("{}")
	}

	var cmd Command
	var err error
	switch kind {
	case KindGetProviderScopes:
		var c GetProviderScopes
		err = json.Unmarshal(body, &c)
		cmd = c
	case KindGetContextMenu:
		var c GetContextMenu
		err = json.Unmarshal(body, &c)
		cmd = c
	case KindGetAccounts:
		var c GetAccounts
		err = json.Unmarshal(body, &c)
		cmd = c
	case KindPerformAccountLogin:
		var c PerformAccountLogin
		err = json.Unmarshal(body, &c)
		cmd = c
	case KindExtraEvent:
		var c ExtraEvent
		err = json.Unmarshal(body, &c)
		if err == nil && !c.Event.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, c.Event)
		}
		cmd = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
	}
	return cmd, nil
}

// EncodeCommand renders cmd in the tagged form DecodeCommand accepts.
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(struct {
		Type string  `json:"type"`
		Data Command `json:"data"`
	}{cmd.Kind(), cmd})
}
