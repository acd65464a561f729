package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"agrirent/internal/config"
	"agrirent/internal/domain"
	"agrirent/internal/logging"
	"agrirent/internal/metrics"
	"agrirent/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services are the application services the transports call into.
type Services struct {
	Bookings  domain.BookingService
	Equipment domain.EquipmentService
	Users     domain.UserService
	Drafts    domain.DraftService
	Clock     domain.Clock
}

// HTTPServer exposes the rental API over JSON/HTTP.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	server  *http.Server
	auth    *HTTPAuth
	handler http.Handler
	log     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}
	if svc.Clock == nil {
		svc.Clock = systemClock{}
	}

	srv := &HTTPServer{cfg: cfg, svc: svc, log: log}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	srv.routes(mux)
	srv.handler = srv.loggingMiddleware(srv.auth.Wrap(srv.identityMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /healthz", s.handleHealth)

	s.handle(mux, "GET /api/v1/equipment", s.handleListEquipment)
	s.handle(mux, "POST /api/v1/equipment", s.handleCreateEquipment)
	s.handle(mux, "GET /api/v1/equipment/{id}", s.handleGetEquipment)
	s.handle(mux, "PUT /api/v1/equipment/{id}", s.handleUpdateEquipment)
	s.handle(mux, "DELETE /api/v1/equipment/{id}", s.handleDeactivateEquipment)
	s.handle(mux, "GET /api/v1/equipment/{id}/calendar", s.handleCalendar)
	s.handle(mux, "GET /api/v1/equipment/{id}/blocked", s.handleBlocked)
	s.handle(mux, "GET /api/v1/equipment/{id}/bookings", s.handleEquipmentBookings)

	s.handle(mux, "POST /api/v1/quotes", s.handleQuote)
	s.handle(mux, "GET /api/v1/installments", s.handleInstallments)

	s.handle(mux, "POST /api/v1/bookings", s.handleCreateBooking)
	s.handle(mux, "POST /api/v1/checkout", s.handleCheckout)
	s.handle(mux, "GET /api/v1/bookings/{id}", s.handleGetBooking)
	s.handle(mux, "POST /api/v1/bookings/{id}/pay", s.handlePayBooking)
	s.handle(mux, "POST /api/v1/bookings/{id}/cancel", s.handleCancelBooking)
	s.handle(mux, "POST /api/v1/bookings/{id}/complete", s.handleCompleteBooking)

	s.handle(mux, "GET /api/v1/me", s.handleMe)
	s.handle(mux, "PUT /api/v1/me/contact", s.handleUpdateContact)
	s.handle(mux, "GET /api/v1/me/bookings", s.handleMyBookings)
	s.handle(mux, "GET /api/v1/me/rentals", s.handleMyRentals)
	s.handle(mux, "GET /api/v1/me/rentals/export", s.handleExportRentals)
	s.handle(mux, "GET /api/v1/me/draft", s.handleGetDraft)
	s.handle(mux, "PUT /api/v1/me/draft", s.handleSaveDraft)
	s.handle(mux, "DELETE /api/v1/me/draft", s.handleClearDraft)

	s.handle(mux, "GET /api/v1/admin/overlaps", s.handleOverlaps)
	s.handle(mux, "GET /api/v1/admin/admins", s.handleListAdmins)
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader))
			extra := strings.TrimSpace(r.Header.Get(a.keys.extraHeader))
			if err := a.keys.authenticate(apiKey, extra, requiredPermissionHTTP(r)); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/v1/admin"):
		return permAdmin
	case r.Method == http.MethodGet || r.URL.Path == "/api/v1/quotes":
		return permReadCatalog
	default:
		return permWriteBookings
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type partyKey struct{}

// PartyFromContext returns the caller identity set by the identity middleware.
func PartyFromContext(ctx context.Context) models.Party {
	p, _ := ctx.Value(partyKey{}).(models.Party)
	return p
}

// identityMiddleware reads the caller identity headers. An empty party id
// leaves the request anonymous.
func (s *HTTPServer) identityMiddleware(next http.Handler) http.Handler {
	partyHeader := headerName(s.cfg.Auth.HeaderParty, partyHeaderDefault)
	nameHeader := headerName(s.cfg.Auth.HeaderName, nameHeaderDefault)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		party := models.Party{
			ID:   strings.TrimSpace(r.Header.Get(partyHeader)),
			Name: strings.TrimSpace(r.Header.Get(nameHeader)),
		}
		if party.IsZero() {
			next.ServeHTTP(w, r)
			return
		}

		if s.svc.Users != nil {
			if err := s.svc.Users.Touch(r.Context(), party); err != nil {
				s.log.Warn().Err(err).Str("party_id", party.ID).Msg("touch user")
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), partyKey{}, party)))
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := logging.WithRequest(r.Context(), &s.log, requestID, "")

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		event := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps err to a status code and hides internal details.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		logging.FromContext(r.Context(), &s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
