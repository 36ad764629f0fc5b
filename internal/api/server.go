package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/ident"
	"github.com/saviobatista/logbook-coverage/internal/parser"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// MaxLogbookBytes caps the size of an uploaded logbook export
const MaxLogbookBytes = 16 << 20

// SessionStore keeps pilot logbooks, settings and cached reports between
// requests; *redis.Client implements it
type SessionStore interface {
	StoreLogbook(ctx context.Context, pilotID string, flights []types.FlightRow) error
	GetLogbook(ctx context.Context, pilotID string) ([]types.FlightRow, error)
	DeleteLogbook(ctx context.Context, pilotID string) error
	StoreSettings(ctx context.Context, pilotID string, settings types.PilotSettings) error
	GetSettings(ctx context.Context, pilotID string) (*types.PilotSettings, error)
	StoreReport(ctx context.Context, report *types.CoverageReport) error
	GetReport(ctx context.Context, pilotID, scope string) (*types.CoverageReport, error)
	DeleteReports(ctx context.Context, pilotID string, scopes ...string) error
}

// ReportHistory reads what the worker persisted; *db.Client implements it
type ReportHistory interface {
	GetLatestReport(pilotID, scope string) (*types.CoverageReport, error)
	GetSystemStats(start, end time.Time) ([]map[string]interface{}, error)
}

// DefaultStatsWindow is the range of /api/stats when since is not given
const DefaultStatsWindow = 24 * time.Hour

// Server serves the coverage API
type Server struct {
	engine      *coverage.Engine
	sessions    SessionStore
	history     ReportHistory
	excludeHubs bool
	now         func() time.Time
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithExcludeHubs sets the exclude_hubs default for requests that omit it
func WithExcludeHubs(exclude bool) ServerOption {
	return func(s *Server) { s.excludeHubs = exclude }
}

// WithReportHistory enables /api/stats and lets the report route fall back
// to persisted reports for pilots with no logbook in the session store
func WithReportHistory(h ReportHistory) ServerOption {
	return func(s *Server) { s.history = h }
}

// NewServer creates a server; sessions may be nil, in which case the pilot
// routes answer 503
func NewServer(engine *coverage.Engine, sessions SessionStore, opts ...ServerOption) *Server {
	s := &Server{engine: engine, sessions: sessions, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes configures the HTTP routes of the API
func (s *Server) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/coverage", s.coverage)
		r.Post("/trips", s.trips)
		r.Get("/facilities/{id}", s.facility)
		r.Get("/stats", s.systemStats)

		r.Route("/pilots/{pilot}", func(r chi.Router) {
			r.Use(s.requireSessions)
			r.Put("/logbook", s.putLogbook)
			r.Delete("/logbook", s.deleteLogbook)
			r.Get("/report", s.getReport)
			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.putSettings)
		})
	})
	return router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	cat := s.engine.Catalog()
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"facilities": len(cat.Primary),
		"secondary":  len(cat.Secondary),
		"located":    s.engine.Located(),
		"sessions":   s.sessions != nil,
		"history":    s.history != nil,
	})
}

// readLogbook parses the request body as a logbook export, writing the
// error response itself when it fails
func readLogbook(w http.ResponseWriter, r *http.Request) ([]types.FlightRow, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxLogbookBytes))
	if err != nil {
		WriteError(w, err, http.StatusBadRequest, "failed to read logbook")
		return nil, false
	}

	flights, err := parser.ParseLogbook(string(body))
	if err != nil {
		WriteError(w, err, http.StatusBadRequest, "failed to parse logbook")
		return nil, false
	}
	return flights, true
}

func (s *Server) coverage(w http.ResponseWriter, r *http.Request) {
	flights, ok := readLogbook(w, r)
	if !ok {
		return
	}

	req, err := RequestFromQuery(r.URL.Query(), flights, s.excludeHubs)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.engine.BuildReport(req)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError, "failed to compute coverage")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (s *Server) trips(w http.ResponseWriter, r *http.Request) {
	flights, ok := readLogbook(w, r)
	if !ok {
		return
	}

	req, err := RequestFromQuery(r.URL.Query(), flights, s.excludeHubs)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Trips == nil {
		Error(w, http.StatusBadRequest, "home is required")
		return
	}

	trips, err := s.engine.Trips(req)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError, "failed to compute coverage")
		return
	}
	if trips == nil {
		trips = []types.TripCandidate{}
	}
	WriteJSON(w, http.StatusOK, trips)
}

func (s *Server) facility(w http.ResponseWriter, r *http.Request) {
	id := ident.NormalizeFacilityID(chi.URLParam(r, "id"))
	f, ok := s.engine.Catalog().Lookup(id)
	if !ok {
		Error(w, http.StatusNotFound, "facility not found")
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

func (s *Server) requireSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil {
			Error(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) putLogbook(w http.ResponseWriter, r *http.Request) {
	pilot := chi.URLParam(r, "pilot")
	flights, ok := readLogbook(w, r)
	if !ok {
		return
	}

	if err := s.sessions.StoreLogbook(r.Context(), pilot, flights); err != nil {
		log.Printf("Failed to store logbook for %s: %v", pilot, err)
		Error(w, http.StatusInternalServerError, "failed to store logbook")
		return
	}
	s.invalidateReports(r.Context(), pilot)

	WriteJSON(w, http.StatusOK, map[string]any{
		"pilot_id": pilot,
		"flights":  len(flights),
	})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pilot := chi.URLParam(r, "pilot")

	settings, err := s.settingsOf(ctx, pilot)
	if err != nil {
		log.Printf("Failed to load settings for %s: %v", pilot, err)
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	scope, err := catalog.ParseScope(settings.Scope)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	cached, err := s.sessions.GetReport(ctx, pilot, string(scope))
	if err != nil {
		log.Printf("Failed to load cached report for %s: %v", pilot, err)
	}
	if cached != nil {
		WriteJSON(w, http.StatusOK, cached)
		return
	}

	flights, err := s.sessions.GetLogbook(ctx, pilot)
	if err != nil {
		log.Printf("Failed to load logbook for %s: %v", pilot, err)
		Error(w, http.StatusInternalServerError, "failed to load logbook")
		return
	}
	if flights == nil {
		s.persistedReport(w, pilot, string(scope))
		return
	}

	req, err := coverage.RequestFromSettings(pilot, flights, settings)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.engine.BuildReport(req)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError, "failed to compute coverage")
		return
	}

	if err := s.sessions.StoreReport(ctx, report); err != nil {
		log.Printf("Failed to cache report for %s: %v", pilot, err)
	}
	WriteJSON(w, http.StatusOK, report)
}

// persistedReport answers with the newest report the worker stored for
// pilot and scope
func (s *Server) persistedReport(w http.ResponseWriter, pilot, scope string) {
	if s.history == nil {
		Error(w, http.StatusNotFound, "no logbook stored")
		return
	}
	report, err := s.history.GetLatestReport(pilot, scope)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		Error(w, http.StatusNotFound, "no logbook stored")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (s *Server) deleteLogbook(w http.ResponseWriter, r *http.Request) {
	pilot := chi.URLParam(r, "pilot")
	if err := s.sessions.DeleteLogbook(r.Context(), pilot); err != nil {
		WriteError(w, err, http.StatusInternalServerError, "failed to delete logbook")
		return
	}
	s.invalidateReports(r.Context(), pilot)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	pilot := chi.URLParam(r, "pilot")
	settings, err := s.settingsOf(r.Context(), pilot)
	if err != nil {
		log.Printf("Failed to load settings for %s: %v", pilot, err)
		Error(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	pilot := chi.URLParam(r, "pilot")

	settings := types.DefaultPilotSettings()
	if err := DecodeJSON(r, &settings); err != nil {
		Error(w, http.StatusBadRequest, "invalid settings payload")
		return
	}
	if err := ValidateSettings(&settings); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.sessions.StoreSettings(r.Context(), pilot, settings); err != nil {
		log.Printf("Failed to store settings for %s: %v", pilot, err)
		Error(w, http.StatusInternalServerError, "failed to store settings")
		return
	}
	s.invalidateReports(r.Context(), pilot)

	WriteJSON(w, http.StatusOK, settings)
}

// settingsOf returns the saved settings of pilot or the defaults
func (s *Server) settingsOf(ctx context.Context, pilot string) (types.PilotSettings, error) {
	saved, err := s.sessions.GetSettings(ctx, pilot)
	if err != nil {
		return types.PilotSettings{}, err
	}
	if saved == nil {
		return types.DefaultPilotSettings(), nil
	}
	return *saved, nil
}

func (s *Server) invalidateReports(ctx context.Context, pilot string) {
	scopes := make([]string, len(catalog.Scopes))
	for i, sc := range catalog.Scopes {
		scopes[i] = string(sc)
	}
	if err := s.sessions.DeleteReports(ctx, pilot, scopes...); err != nil {
		log.Printf("Failed to invalidate reports for %s: %v", pilot, err)
	}
}

func (s *Server) systemStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		Error(w, http.StatusServiceUnavailable, "report history unavailable")
		return
	}

	window := DefaultStatsWindow
	if v := strings.TrimSpace(r.URL.Query().Get("since")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			Error(w, http.StatusBadRequest, "since: invalid duration "+v)
			return
		}
		window = d
	}

	end := s.now()
	stats, err := s.history.GetSystemStats(end.Add(-window), end)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	if stats == nil {
		stats = []map[string]interface{}{}
	}
	WriteJSON(w, http.StatusOK, stats)
}
