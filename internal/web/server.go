package web

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"enocean-go-home/internal/automation"
	"enocean-go-home/internal/gateway"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket and CORS origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation sets the automation engine and script manager.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the application version string reported by /api/version.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// HealthCheck probes an optional backend. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// WithHealthCheck adds a backend whose health is reported by /api/gateway.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		if s.healthChecks == nil {
			s.healthChecks = make(map[string]HealthCheck)
		}
		s.healthChecks[name] = check
	}
}

// Server is the HTTP API and WebSocket event stream.
type Server struct {
	gw             *gateway.Gateway
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	handler        http.Handler
	apiKey         string
	allowedOrigins []string
	scriptMgr      *automation.Manager
	autoEngine     *automation.Engine
	version        string
	healthChecks   map[string]HealthCheck
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates a new web server and starts forwarding gateway events
// to WebSocket clients.
func NewServer(gw *gateway.Gateway, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		gw:     gw,
		logger: logger.With("component", "web"),
		mux:    http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	s.unsubEvents = gw.Events().OnAll(func(event gateway.Event) {
		s.wsHub.Broadcast(event)
	})

	s.routes()
	s.handler = s.checkOrigin(s.requireAPIKey(s.mux))
	return s
}

// Stop gracefully shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	// Devices
	s.mux.HandleFunc("GET /api/devices", s.handleAPIListDevices)
	s.mux.HandleFunc("POST /api/devices", s.handleAPICreateDevice)
	s.mux.HandleFunc("GET /api/devices/{chip}", s.handleAPIGetDevice)
	s.mux.HandleFunc("PATCH /api/devices/{chip}", s.handleAPIUpdateDevice)
	s.mux.HandleFunc("DELETE /api/devices/{chip}", s.handleAPIDeleteDevice)
	s.mux.HandleFunc("POST /api/devices/{chip}/command", s.handleAPISendCommand)

	// Telegrams and profiles
	s.mux.HandleFunc("POST /api/telegrams", s.handleAPIIngestTelegram)
	s.mux.HandleFunc("POST /api/telegrams/decode", s.handleAPIDecodeTelegram)
	s.mux.HandleFunc("GET /api/profiles", s.handleAPIListProfiles)
	s.mux.HandleFunc("GET /api/profiles/unknown", s.handleAPIUnknownProfiles)
	s.mux.HandleFunc("GET /api/gateway", s.handleAPIGatewayInfo)
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	// Automations
	s.mux.HandleFunc("GET /api/automations", s.handleAPIListAutomations)
	s.mux.HandleFunc("GET /api/automations/{id}", s.handleAPIGetAutomation)
	s.mux.HandleFunc("POST /api/automations", s.handleAPICreateAutomation)
	s.mux.HandleFunc("PUT /api/automations/{id}", s.handleAPIUpdateAutomation)
	s.mux.HandleFunc("DELETE /api/automations/{id}", s.handleAPIDeleteAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/toggle", s.handleAPIToggleAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/run", s.handleAPIRunAutomation)

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// checkOrigin answers CORS preflights and rejects mutating requests from
// origins outside the allow list. Without an allow list every origin passes.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(s.allowedOrigins) == 0 || origin == "" || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		if !slices.Contains(s.allowedOrigins, "*") && !slices.Contains(s.allowedOrigins, origin) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			h.Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey guards /api/. Browsers cannot set headers on a WebSocket
// upgrade, so /ws stays open.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	if s.apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get("X-API-Key")), []byte(s.apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleAPIGatewayInfo(w http.ResponseWriter, r *http.Request) {
	info := s.gw.Info()
	if len(s.healthChecks) > 0 {
		health := make(map[string]string, len(s.healthChecks))
		for name, check := range s.healthChecks {
			if err := check(r.Context()); err != nil {
				s.logger.Warn("health check failed", "backend", name, "err", err)
				health[name] = err.Error()
				continue
			}
			health[name] = "ok"
		}
		info["health"] = health
	}
	s.writeJSON(w, http.StatusOK, info)
}
