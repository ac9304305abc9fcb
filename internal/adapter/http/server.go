package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/adapter/settings"
	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/geo"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes caps request bodies on the mutating routes.
const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

var errLocationPair = errors.New("lat and lon must be set together")

// Pipeline is the view of the event pipeline the HTTP layer reads and drives.
type Pipeline interface {
	sharedobs.ReadinessChecker
	DisplayEvents() []domain.Event
	Settings() domain.Settings
	SetSettings(s domain.Settings)
	SetLocation(loc *geo.Point)
	LocationStatus() string
	LastIngestTS() int64
}

// Queue reports notification queue state.
type Queue interface {
	Pending() int
	Busy() bool
}

// Server exposes health, readiness, metrics, and the watcher's API.
type Server struct {
	httpServer *http.Server
	pipeline   Pipeline
	queue      Queue
	store      settings.Store
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the health routes and the event,
// status, settings, and location routes.
func NewServer(addr string, p Pipeline, q Queue, store settings.Store, clock clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		pipeline: p,
		queue:    q,
		store:    store,
		clock:    clock,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(p))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("PUT /settings", s.handlePutSettings)
	mux.HandleFunc("PUT /location", s.handlePutLocation)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type statusResponse struct {
	Clock          string `json:"clock"`
	LocationStatus string `json:"location_status"`
	LastIngestTS   int64  `json:"last_ingest_ts"`
	QueuePending   int    `json:"queue_pending"`
	Playing        bool   `json:"playing"`
}

// locationRequest is the body of PUT /location. An empty object clears the fix.
type locationRequest struct {
	Lat *float64 `json:"lat" validate:"omitempty,latitude"`
	Lon *float64 `json:"lon" validate:"omitempty,longitude"`
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.pipeline.DisplayEvents()
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Clock:          domain.ZuluClock(s.clock.Now()),
		LocationStatus: s.pipeline.LocationStatus(),
		LastIngestTS:   s.pipeline.LastIngestTS(),
		QueuePending:   s.queue.Pending(),
		Playing:        s.queue.Busy(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next domain.Settings
	if err := decodeBody(w, r, &next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := settings.Validate(next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Persist before applying so a failed save leaves the live settings untouched.
	if err := s.store.Save(r.Context(), next); err != nil {
		s.logger.Error("settings save failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.pipeline.SetSettings(next)
	s.logger.Info("settings updated", "audio_alerts", next.AudioAlerts, "distance_filter", next.DistanceFilter)
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handlePutLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if (req.Lat == nil) != (req.Lon == nil) {
		writeError(w, http.StatusBadRequest, errLocationPair)
		return
	}

	if req.Lat == nil {
		s.pipeline.SetLocation(nil)
	} else {
		s.pipeline.SetLocation(&geo.Point{Lat: *req.Lat, Lon: *req.Lon})
	}
	writeJSON(w, http.StatusOK, map[string]string{"location_status": s.pipeline.LocationStatus()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
