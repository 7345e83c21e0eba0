package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/moosync/exthost/internal/plugin"
	"github.com/moosync/exthost/internal/protocol"
)

type fakeHost struct{}

func (fakeHost) Execute(_ context.Context, cmd protocol.Command) (protocol.Response, error) {
	if cmd.Target() != "moosync.a" {
		return nil, plugin.ErrNoExtensions
	}
	return &protocol.ProviderScopes{Scopes: []protocol.ProviderScope{protocol.ScopeSearch}}, nil
}

func (fakeHost) HandleRunnerCommand(_ context.Context, raw []byte) (any, error) {
	if gjson.GetBytes(raw, "type").String() != plugin.RunnerGetInstalledExtensions {
		return nil, protocol.ErrUnknownCommand
	}
	return []string{"moosync.a"}, nil
}

func (fakeHost) GetInstalledExtensions() []plugin.ExtensionDetail {
	return []plugin.ExtensionDetail{{Name: "A", PackageName: "moosync.a", Version: "1.0.0"}}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{Host: fakeHost{}, Logger: zerolog.Nop()})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) gjson.Result {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	return readJSON(t, conn)
}

func readJSON(t *testing.T, conn *websocket.Conn) gjson.Result {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !gjson.ValidBytes(data) {
		t.Fatalf("reply is not json: %s", data)
	}
	return gjson.ParseBytes(data)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["extensions"] != float64(1) {
		t.Errorf("extensions = %v", body["extensions"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("missing uptime")
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestExtensions(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/extensions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var list []plugin.ExtensionDetail
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].PackageName != "moosync.a" {
		t.Errorf("list = %+v", list)
	}
}

func TestWS_Command(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	reply := roundTrip(t, conn, `{"id":1,"type":"command","payload":{"type":"getProviderScopes","data":{"packageName":"moosync.a"}}}`)
	if reply.Get("id").Int() != 1 {
		t.Errorf("id = %s", reply.Get("id").Raw)
	}
	if got := reply.Get("response.type").String(); got != "getProviderScopes" {
		t.Errorf("response.type = %q", got)
	}
	if got := reply.Get("response.data.scopes.0").String(); got != "search" {
		t.Errorf("scope = %q, reply = %s", got, reply.Raw)
	}
	if reply.Get("error").Exists() {
		t.Errorf("unexpected error: %s", reply.Get("error").String())
	}
}

func TestWS_Runner(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	reply := roundTrip(t, conn, `{"id":"abc","type":"runner","payload":{"type":"getInstalledExtensions"}}`)
	if reply.Get("id").String() != "abc" {
		t.Errorf("id = %s", reply.Get("id").Raw)
	}
	if got := reply.Get("response.0").String(); got != "moosync.a" {
		t.Errorf("response = %s", reply.Get("response").Raw)
	}
}

func TestWS_Errors(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	tests := []struct {
		name    string
		msg     string
		wantID  string
		wantErr string
	}{
		{"invalid json", `{nope`, "", "invalid json"},
		{"unknown type", `{"id":2,"type":"shout"}`, "2", "unknown request type"},
		{"unknown command", `{"id":3,"type":"command","payload":{"type":"dance"}}`, "3", "unknown command"},
		{"no extension", `{"id":4,"type":"command","payload":{"type":"getAccounts","data":{"packageName":"moosync.b"}}}`, "4", plugin.ErrNoExtensions.Error()},
		{"runner failure", `{"id":5,"type":"runner","payload":{"type":"stopProcess"}}`, "5", "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := roundTrip(t, conn, tt.msg)
			if reply.Get("id").Raw != tt.wantID {
				t.Errorf("id = %q, want %q", reply.Get("id").Raw, tt.wantID)
			}
			if got := reply.Get("error").String(); !strings.Contains(got, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", got, tt.wantErr)
			}
			if reply.Get("response").Exists() {
				t.Errorf("error reply carries a response: %s", reply.Raw)
			}
		})
	}
}

func TestWS_Notify(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	deadline := time.Now().Add(5 * time.Second)
	for s.Hub().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Hub().Len() != 1 {
		t.Fatalf("Hub().Len() = %d, want 1", s.Hub().Len())
	}

	s.Notify(protocol.HostExtensionsUpdated, nil)
	msg := readJSON(t, conn)
	if msg.Get("event").String() != protocol.HostExtensionsUpdated {
		t.Errorf("event = %s", msg.Raw)
	}
	if msg.Get("data").Exists() {
		t.Errorf("unexpected data: %s", msg.Raw)
	}

	s.Notify("custom", json.RawMessage(`{"n":1}`))
	msg = readJSON(t, conn)
	if msg.Get("data.n").Int() != 1 {
		t.Errorf("event = %s", msg.Raw)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(Config{Host: fakeHost{}, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("ListenAndServe = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
