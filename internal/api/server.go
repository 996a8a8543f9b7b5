// Package api exposes the agenda, lifecycle actions and sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"salonbook/internal/agenda"
	"salonbook/internal/filter"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/session"
	"salonbook/internal/watchdog"
)

const (
	HeaderUserID      = "X-User-ID"
	HeaderUserRole    = "X-User-Role"
	HeaderInteraction = "X-Interaction"
)

// Transitioner runs lifecycle actions.
type Transitioner interface {
	Confirm(ctx context.Context, id string) (*models.Booking, error)
	Cancel(ctx context.Context, id, reason string) (*models.Booking, error)
	Complete(ctx context.Context, id, note string) (*models.Booking, error)
}

// Journal lists the recorded transitions of a booking.
type Journal interface {
	ListTransitions(ctx context.Context, bookingID string) ([]models.TransitionRecord, error)
}

// Config holds HTTP server settings.
type Config struct {
	Address            string
	RateLimitPerSecond float64
	RateLimitBurst     int
	SheetName          string
	Location           *time.Location
}

// HTTPServer serves the agenda API.
type HTTPServer struct {
	config      Config
	view        *agenda.View
	transitions Transitioner
	journal     Journal
	sessions    *session.Manager
	limiters    *limiterStore
	logger      *zerolog.Logger
	now         func() time.Time
	server      *http.Server
}

// NewHTTPServer wires handlers. journal may be nil.
func NewHTTPServer(
	config Config,
	view *agenda.View,
	transitions Transitioner,
	journal Journal,
	sessions *session.Manager,
	logger *zerolog.Logger,
) *HTTPServer {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.SheetName == "" {
		config.SheetName = "Agenda"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &HTTPServer{
		config:      config,
		view:        view,
		transitions: transitions,
		journal:     journal,
		sessions:    sessions,
		limiters:    newLimiterStore(config.RateLimitPerSecond, config.RateLimitBurst),
		logger:      logger,
		now:         time.Now,
	}
	s.server = &http.Server{
		Addr:              config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/session/login", s.identified(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /api/session/logout", s.identified(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/session", s.identified(http.HandlerFunc(s.handleSession)))
	mux.Handle("POST /api/session/activity", s.authenticated(http.HandlerFunc(s.handleActivity)))

	mux.Handle("GET /api/bookings", s.authenticated(http.HandlerFunc(s.handleListBookings)))
	mux.Handle("GET /api/bookings/export.xlsx", s.authenticated(http.HandlerFunc(s.handleExport)))
	mux.Handle("GET /api/bookings/{id}/transitions", s.authenticated(http.HandlerFunc(s.handleTransitions)))
	mux.Handle("POST /api/bookings/{id}/confirm", s.authenticated(s.transition(actionConfirm)))
	mux.Handle("POST /api/bookings/{id}/cancel", s.authenticated(s.transition(actionCancel)))
	mux.Handle("POST /api/bookings/{id}/complete", s.authenticated(s.transition(actionComplete)))

	return mux
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.config.Address).Msg("API server started")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type ctxKey struct{}

func viewerFrom(ctx context.Context) filter.Viewer {
	v, _ := ctx.Value(ctxKey{}).(filter.Viewer)
	return v
}

// identified requires the gateway identity headers and applies the per-user
// rate limit.
func (s *HTTPServer) identified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := filter.Viewer{
			ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role: strings.TrimSpace(r.Header.Get(HeaderUserRole)),
		}
		if viewer.ID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
			return
		}
		if !s.limiters.get(viewer.ID).Allow() {
			metrics.IncRateLimited()
			s.logger.Warn().Str("user_id", viewer.ID).Msg("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, viewer)))
	})
}

// authenticated additionally requires a live session and counts the request
// as an interaction for the idle watchdog.
func (s *HTTPServer) authenticated(next http.Handler) http.Handler {
	return s.identified(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := viewerFrom(r.Context())

		kind := watchdog.Click
		if h := r.Header.Get(HeaderInteraction); h != "" {
			k, ok := parseInteraction(h)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown interaction "+h)
				return
			}
			kind = k
		}

		if err := s.sessions.Touch(viewer.ID, kind); err != nil {
			writeError(w, http.StatusUnauthorized, "session expired; log in again")
			return
		}

		// the session role wins over the header
		if info, ok := s.sessions.Get(viewer.ID); ok && info.Role != "" {
			viewer.Role = info.Role
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, viewer)))
	}))
}

func parseInteraction(s string) (watchdog.Interaction, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range watchdog.MonitoredInteractions {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterStore(perSecond float64, burst int) *limiterStore {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &limiterStore{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (s *limiterStore) get(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[userID] = limiter
	}
	return limiter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
