package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/moosync/exthost/internal/protocol"
)

// Request types accepted on the websocket.
const (
	TypeCommand = "command"
	TypeRunner  = "runner"
)

// handleMessage answers one frontend request. It always produces a reply;
// failures become {"id": ..., "error": "..."}.
func (s *Server) handleMessage(ctx context.Context, msg []byte) []byte {
	if !gjson.ValidBytes(msg) {
		return errorEnvelope(gjson.Result{}, "invalid json")
	}
	id := gjson.GetBytes(msg, "id")
	kind := gjson.GetBytes(msg, "type").String()
	payload := []byte(gjson.GetBytes(msg, "payload").Raw)

	var (
		raw []byte
		err error
	)
	switch kind {
	case TypeCommand:
		raw, err = s.runCommand(ctx, payload)
	case TypeRunner:
		raw, err = s.runRunner(ctx, payload)
	default:
		err = fmt.Errorf("unknown request type %q", kind)
	}

	if err != nil {
		s.log.Debug().Err(err).Str("type", kind).Str("id", id.Raw).Msg("request failed")
		return errorEnvelope(id, err.Error())
	}
	out, err := sjson.SetRawBytes(idEnvelope(id), "response", raw)
	if err != nil {
		return errorEnvelope(id, err.Error())
	}
	return out
}

func (s *Server) runCommand(ctx context.Context, payload []byte) ([]byte, error) {
	cmd, err := protocol.DecodeCommand(payload)
	if err != nil {
		return nil, err
	}
	resp, err := s.config.Host.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return protocol.MarshalResponse(resp)
}

func (s *Server) runRunner(ctx context.Context, payload []byte) ([]byte, error) {
	result, err := s.config.Host.HandleRunnerCommand(ctx, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// idEnvelope starts a reply carrying the request id verbatim, if any.
func idEnvelope(id gjson.Result) []byte {
	out := []byte("{}")
	if id.Exists() {
		if withID, err := sjson.SetRawBytes(out, "id", []byte(id.Raw)); err == nil {
			out = withID
		}
	}
	return out
}

func errorEnvelope(id gjson.Result, msg string) []byte {
	out, err := sjson.SetBytes(idEnvelope(id), "error", msg)
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return out
}

func eventEnvelope(event string, data json.RawMessage) ([]byte, error) {
	out, err := sjson.SetBytes([]byte("{}"), "event", event)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return sjson.SetRawBytes(out, "data", data)
	}
	return out, nil
}
