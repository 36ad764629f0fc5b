package coverage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/geo"
	"github.com/saviobatista/logbook-coverage/internal/ident"
	"github.com/saviobatista/logbook-coverage/internal/matcher"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// ErrUnknownHome is returned when a trip request names a home base that
// is not in the catalog
var ErrUnknownHome = errors.New("unknown home base")

// DefaultMaxTripNM is used for pilot settings that do not set a range
const DefaultMaxTripNM = 100.0

// EngineConfig holds the tunable thresholds of the pipeline
type EngineConfig struct {
	HubIDs               []string
	NearestThresholdNM   float64
	UsableRunwayFraction float64
}

// Engine runs the matching pipeline against a loaded catalog. It is safe
// for concurrent use; every call recomputes from its inputs.
type Engine struct {
	catalog        *catalog.Catalog
	hubs           types.IDSet
	thresholdNM    float64
	runwayFraction float64
	located        int
}

// NewEngine creates an engine; zero config values fall back to defaults
func NewEngine(cat *catalog.Catalog, cfg EngineConfig) *Engine {
	e := &Engine{
		catalog:        cat,
		hubs:           catalog.MajorHubs,
		thresholdNM:    matcher.DefaultNearestThresholdNM,
		runwayFraction: DefaultUsableRunwayFraction,
	}
	if len(cfg.HubIDs) > 0 {
		e.hubs = make(types.IDSet, len(cfg.HubIDs))
		for _, id := range cfg.HubIDs {
			if id = ident.NormalizeFacilityID(id); id != "" {
				e.hubs.Add(id)
			}
		}
	}
	if cfg.NearestThresholdNM > 0 {
		e.thresholdNM = cfg.NearestThresholdNM
	}
	if cfg.UsableRunwayFraction > 0 && cfg.UsableRunwayFraction <= 1 {
		e.runwayFraction = cfg.UsableRunwayFraction
	}
	e.located = geo.NewIndex(cat.Scope(catalog.ScopeAll, nil)).Len()
	return e
}

// Catalog returns the catalog the engine matches against
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Located returns how many catalog facilities have coordinates and can be
// resolved from a coordinate endpoint
func (e *Engine) Located() int {
	return e.located
}

// TripRequest asks for trip candidates around Home
type TripRequest struct {
	Home   string
	Filter TripFilter
}

// Request describes one pipeline run
type Request struct {
	PilotID     string
	Flights     []types.FlightRow
	Scope       catalog.Scope
	Options     matcher.Options
	ExcludeHubs bool
	Trips       *TripRequest
}

// RequestFromSettings builds a request from a pilot's saved settings.
// A home base in the settings adds a trip request.
func RequestFromSettings(pilotID string, flights []types.FlightRow, s types.PilotSettings) (Request, error) {
	scope, err := catalog.ParseScope(s.Scope)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		PilotID:     pilotID,
		Flights:     flights,
		Scope:       scope,
		Options:     matcher.OptionsFromSettings(s),
		ExcludeHubs: s.ExcludeHubs,
	}
	if s.HomeBase != "" {
		maxNM := s.MaxTripNM
		if maxNM <= 0 {
			maxNM = DefaultMaxTripNM
		}
		req.Trips = &TripRequest{
			Home: s.HomeBase,
			Filter: TripFilter{
				MaxDistanceNM:     maxNM,
				MinUsableRunwayFt: s.MinRunwayFt,
				Surfaces:          ParseSurfaces(s.Surfaces),
				Towered:           s.Towered,
			},
		}
	}
	return req, nil
}

// run holds the intermediate results of one pipeline pass
type run struct {
	facilities []types.Facility
	byID       map[string]types.Facility
	matches    map[string]*types.FacilityMatch
	visited    types.IDSet
}

func (e *Engine) match(req Request) run {
	var excluded types.IDSet
	if req.ExcludeHubs {
		excluded = e.hubs
	}

	facilities := e.catalog.Scope(req.Scope, excluded)
	byID := catalog.ByID(facilities)
	m := matcher.NewMatcher(catalog.IDs(facilities), byID, matcher.WithThresholdNM(e.thresholdNM))
	matches := m.Match(req.Flights)

	return run{
		facilities: facilities,
		byID:       byID,
		matches:    matches,
		visited:    matcher.ComputeVisited(matches, req.Options),
	}
}

// BuildReport matches the request's flights and assembles every view
func (e *Engine) BuildReport(req Request) (*types.CoverageReport, error) {
	r := e.match(req)
	freq := matcher.ComputeFrequency(r.matches, req.Options)

	report := &types.CoverageReport{
		ID:          uuid.New().String(),
		PilotID:     req.PilotID,
		Scope:       string(req.Scope),
		CreatedAt:   time.Now().UTC(),
		FlightCount: len(req.Flights),
		Coverage:    ForScope(r.facilities, r.visited),
		Visited:     r.visited.Sorted(),
		States:      ByState(r.facilities, r.visited),
		Frequency:   SortedFrequency(freq),
		FirstVisits: FirstVisits(r.matches, req.Flights, req.Options),
	}
	if top, ok := MostFrequent(freq); ok {
		report.MostFrequent = top.ID
	}
	if state, _, ok := MostVisitedState(freq, r.byID); ok {
		report.MostVisitedState = state
	}

	if req.Trips != nil {
		trips, err := e.planTrips(r, *req.Trips)
		if err != nil {
			return nil, err
		}
		report.Trips = trips
	}
	return report, nil
}

// Trips returns only the trip candidates for the request
func (e *Engine) Trips(req Request) ([]types.TripCandidate, error) {
	if req.Trips == nil {
		return nil, fmt.Errorf("%w: no home base given", ErrUnknownHome)
	}
	return e.planTrips(e.match(req), *req.Trips)
}

func (e *Engine) planTrips(r run, tr TripRequest) ([]types.TripCandidate, error) {
	home, ok := e.catalog.Lookup(ident.NormalizeFacilityID(tr.Home))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHome, tr.Home)
	}

	filter := tr.Filter
	if filter.UsableRunwayFraction == 0 {
		filter.UsableRunwayFraction = e.runwayFraction
	}
	return PlanTrips(home, r.facilities, r.visited, filter), nil
}
