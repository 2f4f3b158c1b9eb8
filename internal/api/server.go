package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/auth"
	"github.com/Kerhoff/CheckinBoT/internal/metrics"
	"github.com/Kerhoff/CheckinBoT/internal/service"
)

// Options configure the HTTP surface.
type Options struct {
	// AllowedOrigins lists browser origins for CORS and websocket upgrades.
	// "*" allows any origin.
	AllowedOrigins []string
	// AttendancePoll is how often the QR stream checks the attendance count.
	AttendancePoll time.Duration
}

// Server provides the HTTP API.
type Server struct {
	svc      *service.Service
	tokens   *auth.Tokens
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	router   *mux.Router
	handler  http.Handler
	upgrader websocket.Upgrader
	opts     Options
}

// NewServer creates a Server, registers all routes, and returns it. m may
// be nil.
func NewServer(svc *service.Service, tokens *auth.Tokens, m *metrics.Metrics, logger *logrus.Logger, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.AttendancePoll <= 0 {
		opts.AttendancePoll = 2 * time.Second
	}

	s := &Server{
		svc:     svc,
		tokens:  tokens,
		metrics: m,
		logger:  logger,
		router:  mux.NewRouter(),
		opts:    opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{requestIDHeader},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.router.Use(s.requestMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// API – Auth
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	// API – Public check-in
	api.HandleFunc("/public/events/{id:[0-9]+}", s.handleGetPublicEvent).Methods(http.MethodGet)
	api.HandleFunc("/public/events/{id:[0-9]+}/checkin", s.handleCheckIn).Methods(http.MethodPost)
	api.HandleFunc("/public/events/{id:[0-9]+}/calendar.ics", s.handlePublicEventCalendar).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(queryTokenFallback, s.tokens.Middleware(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid access token")
	}))

	// API – Organization
	admin.HandleFunc("/organization", s.handleGetOrganization).Methods(http.MethodGet)
	admin.HandleFunc("/organization", s.handleUpdateOrganization).Methods(http.MethodPut)

	// API – Events
	admin.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	admin.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	admin.HandleFunc("/events/{id:[0-9]+}", s.handleGetEvent).Methods(http.MethodGet)
	admin.HandleFunc("/events/{id:[0-9]+}", s.handleUpdateEvent).Methods(http.MethodPut)
	admin.HandleFunc("/events/{id:[0-9]+}", s.handleDeleteEvent).Methods(http.MethodDelete)
	admin.HandleFunc("/events/{id:[0-9]+}/close", s.handleCloseEvent).Methods(http.MethodPost)
	admin.HandleFunc("/events/{id:[0-9]+}/reopen", s.handleReopenEvent).Methods(http.MethodPost)
	admin.HandleFunc("/events/{id:[0-9]+}/attendees", s.handleGetAttendees).Methods(http.MethodGet)

	// API – QR display
	admin.HandleFunc("/events/{id:[0-9]+}/qr", s.handleGetQR).Methods(http.MethodGet)
	admin.HandleFunc("/events/{id:[0-9]+}/qr/stream", s.handleQRStream).Methods(http.MethodGet)

	// API – Attendee messages
	admin.HandleFunc("/events/{id:[0-9]+}/messages", s.handleListMessages).Methods(http.MethodGet)
	admin.HandleFunc("/events/{id:[0-9]+}/messages", s.handleCreateMessage).Methods(http.MethodPost)

	// API – Recurrence patterns
	admin.HandleFunc("/patterns", s.handleListPatterns).Methods(http.MethodGet)
	admin.HandleFunc("/patterns", s.handleCreatePattern).Methods(http.MethodPost)
	admin.HandleFunc("/patterns/{id:[0-9]+}", s.handleGetPattern).Methods(http.MethodGet)
	admin.HandleFunc("/patterns/{id:[0-9]+}", s.handleDeletePattern).Methods(http.MethodDelete)
	admin.HandleFunc("/patterns/{id:[0-9]+}/calendar.ics", s.handlePatternCalendar).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// respondServiceError maps service errors to status codes. Anything it does
// not recognize is logged and reported as a 500 without details.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *service.ValidationError
		rejection  *service.RejectionError
	)

	switch {
	case errors.As(err, &validation):
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   validation.Kind.Error(),
			Details: validation.Problems,
		})
	case errors.As(err, &rejection):
		status := http.StatusForbidden
		if errors.Is(rejection, service.ErrInvalidAttendee) || errors.Is(rejection, service.ErrInvalidCoordinates) {
			status = http.StatusBadRequest
		}
		s.respondError(w, status, rejection.Message)
	case errors.Is(err, service.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoInstances), errors.Is(err, auth.ErrWeakPassword):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, err.Error())
	default:
		requestLogger(s.logger, r).WithError(err).Error("request failed")
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} path variable and converts it to int64.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// orgID returns the organization authenticated by the auth middleware.
func orgID(r *http.Request) int64 {
	id, _ := auth.OrganizationID(r.Context())
	return id
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
