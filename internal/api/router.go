package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ambientd/internal/auth"
	"ambientd/internal/config"
	"ambientd/internal/doze"
	"ambientd/internal/events"
	"ambientd/internal/looper"
	"ambientd/internal/posture"
	"ambientd/internal/sensors"
	"ambientd/internal/settings"
)

// PluginDeliverer injects plugin sensor events
type PluginDeliverer interface {
	Deliver(event sensors.PluginEvent)
}

// Deps are the components the API drives
type Deps struct {
	// Authenticator checks login passwords; PAM when nil
	Authenticator auth.Authenticator

	Doze     *doze.DozeSensors
	Looper   *looper.Looper
	Settings settings.Store
	Posture  *posture.Controller
	Catalog  *sensors.Catalog
	Plugins  PluginDeliverer
	Events   *events.Store
	Config   *config.Config
	Logger   *log.Logger
}

// Server represents the API server
type Server struct {
	router     *chi.Mux
	deps       Deps
	logger     *log.Logger
	jwtManager *auth.JWTManager
	authMw     *auth.Middleware
	limiter    *auth.FailureLimiter
	tickets    *auth.StreamTicketStore
}

// NewServer creates new API server
func NewServer(deps Deps) *Server {
	cfg := deps.Config
	jwtManager := auth.NewJWTManager(cfg.JWTSecret(), cfg.JWTExpiration())
	limiter := auth.NewFailureLimiter()

	s := &Server{
		router:     chi.NewRouter(),
		deps:       deps,
		logger:     deps.Logger,
		jwtManager: jwtManager,
		authMw:     auth.NewMiddleware(jwtManager, limiter, cfg.NoAuth()),
		limiter:    limiter,
		tickets:    auth.NewStreamTicketStore(),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.deps.Authenticator == nil {
		s.deps.Authenticator = auth.NewPAMAuth()
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	authHandler := NewAuthHandler(s.deps.Authenticator, s.jwtManager, s.limiter, s.tickets, s.deps.Events)
	engineHandler := NewEngineHandler(s)
	settingsHandler := NewSettingsHandler(s)
	hardwareHandler := NewHardwareHandler(s)
	eventsHandler := NewEventsHandler(s.deps.Events)
	streamHandler := NewStreamHandler(s.deps.Events, s.tickets, s.deps.Config.NoAuth(), s.logger)

	// Public routes
	r.Post("/api/auth/login", authHandler.Login)
	r.Post("/api/auth/logout", authHandler.Logout)

	// The stream authenticates with a one-time ticket in the query
	r.Get("/api/stream", streamHandler.Connect)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMw.RequireAuth)

		// Auth
		r.Get("/api/auth/me", authHandler.Me)
		r.Post("/api/auth/refresh", authHandler.Refresh)
		r.Get("/api/auth/stream-ticket", authHandler.StreamTicket)

		// Read-only views
		r.Get("/api/status", engineHandler.Status)
		r.Get("/api/status/dump", engineHandler.Dump)
		r.Get("/api/settings", settingsHandler.List)
		r.Get("/api/sensors", hardwareHandler.List)
		r.Get("/api/events", eventsHandler.List)

		// State changes
		r.Group(func(r chi.Router) {
			r.Use(s.authMw.RequireAdmin)

			r.Post("/api/listening", engineHandler.SetListening)
			r.Post("/api/listening/touchscreen", engineHandler.SetTouchscreenListening)
			r.Post("/api/docking", engineHandler.SetDocking)
			r.Post("/api/prox", engineHandler.SetProx)
			r.Post("/api/screen", engineHandler.SetScreenState)
			r.Post("/api/posture", engineHandler.SetPosture)
			r.Post("/api/user", engineHandler.SwitchUser)
			r.Post("/api/enrollments", engineHandler.SetEnrollments)
			r.Post("/api/temporary-disable", engineHandler.TemporaryDisable)
			r.Post("/api/always-on", engineHandler.SetAlwaysOn)
			r.Post("/api/config/reload", engineHandler.ReloadConfig)

			r.Put("/api/settings/{key}", settingsHandler.Put)

			// Hardware simulation
			r.Post("/api/sensors/{name}/event", hardwareHandler.Dispatch)
			r.Post("/api/sensors/{name}/availability", hardwareHandler.SetAvailability)
			r.Post("/api/plugins/{type}/event", hardwareHandler.PluginEvent)
		})
	})
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Close stops background workers
func (s *Server) Close() {
	s.limiter.Stop()
	s.tickets.Stop()
}

// call runs fn on the engine queue and waits for it
func (s *Server) call(ctx context.Context, fn func()) error {
	return s.deps.Looper.Call(ctx, fn)
}

// writeCallError maps a failed engine call to a response
func writeCallError(w http.ResponseWriter, err error) {
	if errors.Is(err, looper.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, "Engine stopped")
		return
	}
	writeError(w, http.StatusRequestTimeout, err.Error())
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON decodes the request body, writing 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
