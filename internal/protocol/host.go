package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Host command types a plugin may send through send_main_command.
const (
	HostGetSong           = "getSong"
	HostGetEntity         = "getEntity"
	HostGetCurrentSong    = "getCurrentSong"
	HostGetPlayerState    = "getPlayerState"
	HostGetVolume         = "getVolume"
	HostGetTime           = "getTime"
	HostGetQueue          = "getQueue"
	HostGetPreferences    = "getPreferences"
	HostSetPreferences    = "setPreferences"
	HostGetSecure         = "getSecure"
	HostSetSecure         = "setSecure"
	HostAddSongs          = "addSongs"
	HostRemoveSong        = "removeSong"
	HostUpdateSong        = "updateSong"
	HostAddPlaylist       = "addPlaylist"
	HostAddToPlaylist     = "addToPlaylist"
	HostRegisterOAuth     = "registerOauth"
	HostOpenExternalURL   = "openExternalUrl"
	HostUpdateAccounts    = "updateAccounts"
	HostExtensionsUpdated = "extensionsUpdated"
)

var hostCommands = map[string]struct{ needsKey bool }{
	HostGetSong:           {},
	HostGetEntity:         {},
	HostGetCurrentSong:    {},
	HostGetPlayerState:    {},
	HostGetVolume:         {},
	HostGetTime:           {},
	HostGetQueue:          {},
	HostGetPreferences:    {needsKey: true},
	HostSetPreferences:    {needsKey: true},
	HostGetSecure:         {needsKey: true},
	HostSetSecure:         {needsKey: true},
	HostAddSongs:          {},
	HostRemoveSong:        {},
	HostUpdateSong:        {},
	HostAddPlaylist:       {},
	HostAddToPlaylist:     {},
	HostRegisterOAuth:     {},
	HostOpenExternalURL:   {},
	HostUpdateAccounts:    {},
	HostExtensionsUpdated: {},
}

// HostRequest is a plugin-originated request travelling to the host
// application, tagged with the correlation channel awaiting its reply.
type HostRequest struct {
	Type          string          `json:"type"`
	Channel       string          `json:"channel"`
	ExtensionName string          `json:"extensionName,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// HostReply is the host application's answer to a HostRequest.
type HostReply struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MapMainCommand validates a raw plugin command, {"type": t, "data": ...},
// and turns it into a host request owned by extName. The channel is left
// for the caller to fill.
func MapMainCommand(extName string, raw []byte) (HostRequest, error) {
	if !gjson.ValidBytes(raw) {
		return HostRequest{}, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	kind := gjson.GetBytes(raw, "type").String()
	spec, ok := hostCommands[kind]
	if !ok {
		return HostRequest{}, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}

	data := gjson.GetBytes(raw, "data")
	if spec.needsKey && data.Get("key").String() == "" {
		return HostRequest{}, fmt.Errorf("%w: %s requires a key", ErrMalformed, kind)
	}

	req := HostRequest{Type: kind, ExtensionName: extName}
	if data.Exists() {
		req.Data = json.RawMessage(data.Raw)
	}
	return req, nil
}

// ExtensionsUpdated returns the notification broadcast after a discovery pass.
func ExtensionsUpdated() HostRequest {
	return HostRequest{Type: HostExtensionsUpdated}
}
