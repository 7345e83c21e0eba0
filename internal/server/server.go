// Package server exposes the extension host to a frontend over HTTP and a
// websocket.
//
// The frontend sends requests on /ws:
//
//	{"id": 7, "type": "command", "payload": {"type": "getAccounts", "data": {}}}
//	{"id": 8, "type": "runner", "payload": {"type": "getInstalledExtensions"}}
//
// and receives one reply per request, matched by id:
//
//	{"id": 7, "response": {...}}
//	{"id": 8, "error": "..."}
//
// Host events are pushed to every client as {"event": "extensionsUpdated"}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin"
	"github.com/moosync/exthost/internal/protocol"
)

const shutdownTimeout = 5 * time.Second

// Host is the part of the plugin system the server drives.
type Host interface {
	Execute(ctx context.Context, cmd protocol.Command) (protocol.Response, error)
	HandleRunnerCommand(ctx context.Context, raw []byte) (any, error)
	GetInstalledExtensions() []plugin.ExtensionDetail
}

// Config holds the server configuration.
type Config struct {
	Host   Host
	Logger zerolog.Logger
}

// Server is the HTTP and websocket front of the extension host.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *Hub
	log    zerolog.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger.With().Str("component", "server").Logger()
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewHub(log),
		log:    log,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/extensions", s.handleExtensions)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the set of connected websocket clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Notify pushes a host event to every connected client.
func (s *Server) Notify(event string, data json.RawMessage) {
	msg, err := eventEnvelope(event, data)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}
	s.hub.Broadcast(msg)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.start).String(),
		"extensions": len(s.config.Host.GetInstalledExtensions()),
		"clients":    s.hub.Len(),
	}
	writeJSON(w, response)
}

// handleExtensions handles GET requests to /api/extensions.
func (s *Server) handleExtensions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config.Host.GetInstalledExtensions())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// disconnects every websocket client.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("http shutdown")
		}
		s.hub.Close()
	}()

	s.log.Info().Str("addr", addr).Msg("listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
