// Package introspect is the adapter's read-only diagnostic HTTP+WebSocket
// surface (§6.1): a minimal counterpart to the teacher's internal/web
// package, carrying no device-management UI since this adapter's host
// interface is the event bus and method calls, not a browser.
package introspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"z2m-adapter/internal/events"
	"z2m-adapter/internal/model"
)

// DeviceLister is the subset of adapter.Adapter the server needs.
type DeviceLister interface {
	Devices() []*model.DeviceEntry
	Device(externalID string) (*model.DeviceEntry, bool)
	Connected() bool
}

// Server serves /healthz, /devices, /devices/{id}, and the /events
// websocket stream.
type Server struct {
	adapter        DeviceLister
	bus            *events.Bus
	logger         *slog.Logger
	mux            *http.ServeMux
	allowedOrigins []string

	hub         *wsHub
	unsubEvents func()
	wg          sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins restricts which Origins the /events websocket accepts.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// NewServer builds a Server backed by adapter and bus.
func NewServer(adapter DeviceLister, bus *events.Bus, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		adapter: adapter,
		bus:     bus,
		logger:  logger.With("component", "introspect"),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = newWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.run()
	}()
	s.unsubEvents = bus.OnAll(func(ev events.Event) {
		s.hub.broadcast(ev)
	})

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /devices", s.handleListDevices)
	s.mux.HandleFunc("GET /devices/{externalId}", s.handleGetDevice)
	s.mux.HandleFunc("GET /events", s.handleEvents)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Stop shuts the websocket hub down and waits for its goroutine to exit.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.hub.stop()
	s.wg.Wait()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": s.adapter.Connected(),
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.adapter.Devices())
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalId")
	entry, ok := s.adapter.Device(externalID)
	if !ok {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("introspect: encode response", "err", err)
	}
}
