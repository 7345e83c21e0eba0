package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/moosync/exthost/internal/plugin"
	"github.com/moosync/exthost/internal/protocol"
	"github.com/moosync/exthost/internal/store"
)

var jsonNull = json.RawMessage("null")

// Notifier receives host events meant for connected frontends.
type Notifier interface {
	Notify(event string, data json.RawMessage)
}

// HostSource is the side of the plugin system the host serves.
type HostSource interface {
	NextHostRequest(ctx context.Context) (protocol.HostRequest, error)
	HandleMainCommandReply(reply protocol.HostReply)
}

// HostHandler answers plugin-originated host requests. Preferences are served
// from the store, scoped by the requesting extension. Requests that need a
// player are answered with null.
type HostHandler struct {
	prefs  *store.KVRepository
	secure *store.KVRepository
	log    zerolog.Logger

	mu       sync.RWMutex
	notifier Notifier
}

// NewHostHandler creates a handler backed by st.
func NewHostHandler(st *store.Store, log zerolog.Logger) *HostHandler {
	return &HostHandler{
		prefs:  st.Preferences(),
		secure: st.Secure(),
		log:    log.With().Str("component", "host").Logger(),
	}
}

// SetNotifier sets where host events are forwarded. Nil drops them.
func (h *HostHandler) SetNotifier(n Notifier) {
	h.mu.Lock()
	h.notifier = n
	h.mu.Unlock()
}

func (h *HostHandler) notify(event string, data json.RawMessage) {
	h.mu.RLock()
	n := h.notifier
	h.mu.RUnlock()
	if n != nil {
		n.Notify(event, data)
	}
}

// Serve drains src until ctx is done or the plugin system closes, replying
// to every request in arrival order.
func (h *HostHandler) Serve(ctx context.Context, src HostSource) error {
	for {
		req, err := src.NextHostRequest(ctx)
		if err != nil {
			if plugin.IsClosedErr(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		src.HandleMainCommandReply(h.Handle(ctx, req))
	}
}

// Handle answers a single request. Failures are logged and answered with
// null so the waiting plugin call never hangs.
func (h *HostHandler) Handle(ctx context.Context, req protocol.HostRequest) protocol.HostReply {
	reply := protocol.HostReply{Type: req.Type, Channel: req.Channel, Data: jsonNull}

	var (
		data json.RawMessage
		err  error
	)
	switch req.Type {
	case protocol.HostGetPreferences:
		data, err = h.get(ctx, h.prefs, req)
	case protocol.HostSetPreferences:
		err = h.set(ctx, h.prefs, req)
	case protocol.HostGetSecure:
		data, err = h.get(ctx, h.secure, req)
	case protocol.HostSetSecure:
		err = h.set(ctx, h.secure, req)
	case protocol.HostExtensionsUpdated:
		h.notify(req.Type, req.Data)
	default:
		h.log.Debug().
			Str("type", req.Type).
			Str("package", req.ExtensionName).
			Msg("host request needs a player, answering null")
	}

	if err != nil {
		h.log.Error().Err(err).
			Str("type", req.Type).
			Str("package", req.ExtensionName).
			Msg("host request failed")
		return reply
	}
	if data != nil {
		reply.Data = data
	}
	return reply
}

// get returns the stored value, falling back to data.defaultValue.
func (h *HostHandler) get(ctx context.Context, repo *store.KVRepository, req protocol.HostRequest) (json.RawMessage, error) {
	key := gjson.GetBytes(req.Data, "key").String()
	value, err := repo.Get(ctx, req.ExtensionName, key)
	if errors.Is(err, store.ErrNotFound) {
		if def := gjson.GetBytes(req.Data, "defaultValue"); def.Exists() {
			return json.RawMessage(def.Raw), nil
		}
		return jsonNull, nil
	}
	return value, err
}

func (h *HostHandler) set(ctx context.Context, repo *store.KVRepository, req protocol.HostRequest) error {
	key := gjson.GetBytes(req.Data, "key").String()
	var value json.RawMessage
	if v := gjson.GetBytes(req.Data, "value"); v.Exists() {
		value = json.RawMessage(v.Raw)
	}
	return repo.Set(ctx, req.ExtensionName, key, value)
}
