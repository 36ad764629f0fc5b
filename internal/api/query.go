package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/matcher"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// ParseBool accepts true/false, yes/no, on/off and 1/0
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func queryBool(q url.Values, key string, def bool) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	b, err := ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// RequestFromQuery builds a pipeline request from the query parameters of
// the coverage and trips endpoints. A home parameter adds a trip request.
func RequestFromQuery(q url.Values, flights []types.FlightRow, excludeHubs bool) (coverage.Request, error) {
	scope, err := catalog.ParseScope(q.Get("scope"))
	if err != nil {
		return coverage.Request{}, err
	}

	opts := matcher.DefaultOptions()
	if opts.IncludeNotes, err = queryBool(q, "notes", opts.IncludeNotes); err != nil {
		return coverage.Request{}, err
	}
	if opts.UseEndpoints, err = queryBool(q, "endpoints", opts.UseEndpoints); err != nil {
		return coverage.Request{}, err
	}
	if opts.ArrivalsOnly, err = queryBool(q, "arrivals", opts.ArrivalsOnly); err != nil {
		return coverage.Request{}, err
	}
	if excludeHubs, err = queryBool(q, "exclude_hubs", excludeHubs); err != nil {
		return coverage.Request{}, err
	}

	req := coverage.Request{
		PilotID:     q.Get("pilot"),
		Flights:     flights,
		Scope:       scope,
		Options:     opts,
		ExcludeHubs: excludeHubs,
	}

	trips, err := tripRequestFromQuery(q)
	if err != nil {
		return coverage.Request{}, err
	}
	req.Trips = trips
	return req, nil
}

func tripRequestFromQuery(q url.Values) (*coverage.TripRequest, error) {
	home := strings.TrimSpace(q.Get("home"))
	if home == "" {
		return nil, nil
	}

	filter := coverage.TripFilter{
		MaxDistanceNM: coverage.DefaultMaxTripNM,
		Surfaces:      coverage.ParseSurfaces(q["surface"]),
	}
	if v := q.Get("max_nm"); v != "" {
		nm, err := strconv.ParseFloat(v, 64)
		if err != nil || nm <= 0 {
			return nil, fmt.Errorf("max_nm: invalid distance %q", v)
		}
		filter.MaxDistanceNM = nm
	}
	if v := q.Get("min_runway_ft"); v != "" {
		ft, err := strconv.Atoi(v)
		if err != nil || ft < 0 {
			return nil, fmt.Errorf("min_runway_ft: invalid length %q", v)
		}
		filter.MinUsableRunwayFt = ft
	}
	if v := q.Get("towered"); v != "" {
		towered, err := ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("towered: %w", err)
		}
		filter.Towered = &towered
	}

	return &coverage.TripRequest{Home: home, Filter: filter}, nil
}

// ValidateSettings checks s and canonicalizes its scope and surfaces
func ValidateSettings(s *types.PilotSettings) error {
	scope, err := catalog.ParseScope(s.Scope)
	if err != nil {
		return err
	}
	s.Scope = string(scope)

	if s.MaxTripNM < 0 {
		return fmt.Errorf("max_trip_nm must not be negative")
	}
	if s.MinRunwayFt < 0 {
		return fmt.Errorf("min_runway_ft must not be negative")
	}

	surfaces := coverage.ParseSurfaces(s.Surfaces)
	if len(surfaces) != len(s.Surfaces) {
		return fmt.Errorf("unknown surface in %v", s.Surfaces)
	}
	s.Surfaces = s.Surfaces[:0]
	for _, sc := range surfaces {
		s.Surfaces = append(s.Surfaces, string(sc))
	}
	return nil
}
