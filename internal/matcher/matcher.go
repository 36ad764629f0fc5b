// Package matcher credits logbook flights to catalog facilities. Endpoints
// match by identifier or, failing that, by the nearest facility to a raw
// coordinate; free-text notes match by identifier tokens.
package matcher

import (
	"github.com/saviobatista/logbook-coverage/internal/geo"
	"github.com/saviobatista/logbook-coverage/internal/ident"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// DefaultNearestThresholdNM bounds the coordinate fallback for endpoints
const DefaultNearestThresholdNM = 10.0

// Matcher holds the facility set for one pipeline run. It carries no
// state between calls to Match.
type Matcher struct {
	ids         types.IDSet
	index       *geo.Index
	thresholdNM float64
}

// Option configures a Matcher
type Option func(*Matcher)

// WithThresholdNM sets the maximum distance for coordinate endpoints
func WithThresholdNM(nm float64) Option {
	return func(m *Matcher) {
		m.thresholdNM = nm
	}
}

// NewMatcher creates a matcher for the facilities in ids. byID supplies
// locations for the coordinate fallback; when nil the fallback is off.
func NewMatcher(ids types.IDSet, byID map[string]types.Facility, opts ...Option) *Matcher {
	m := &Matcher{ids: ids, thresholdNM: DefaultNearestThresholdNM}
	for _, opt := range opts {
		opt(m)
	}

	if byID != nil {
		located := make([]types.Facility, 0, len(ids))
		for id := range ids {
			if f, ok := byID[id]; ok && f.HasLocation() {
				located = append(located, f)
			}
		}
		m.index = geo.NewIndex(located)
	}
	return m
}

// MatchFlights matches flights against ids using the default threshold
func MatchFlights(flights []types.FlightRow, ids types.IDSet, byID map[string]types.Facility) map[string]*types.FacilityMatch {
	return NewMatcher(ids, byID).Match(flights)
}

// Match counts endpoint and notes evidence per facility. Only facilities
// with at least one count appear in the result. A flight may credit the
// same facility more than once.
func (m *Matcher) Match(flights []types.FlightRow) map[string]*types.FacilityMatch {
	matches := make(map[string]*types.FacilityMatch)
	credit := func(id string, flight int, kind types.MatchKind) {
		fm, ok := matches[id]
		if !ok {
			fm = &types.FacilityMatch{}
			matches[id] = fm
		}
		fm.Add(flight, kind)
	}

	for i, flight := range flights {
		if id, ok := m.resolveEndpoint(flight.From); ok {
			credit(id, i, types.MatchEndpointFrom)
		}
		if id, ok := m.resolveEndpoint(flight.To); ok {
			credit(id, i, types.MatchEndpointTo)
		}

		for _, text := range flight.TextFields {
			for _, token := range ident.TokenizeText(text) {
				if ident.IsCoordinateToken(token) {
					continue
				}
				if id := ident.NormalizeFacilityID(token); id != "" && m.ids.Has(id) {
					credit(id, i, types.MatchNotes)
				}
			}
		}
	}
	return matches
}

// resolveEndpoint maps a raw endpoint to a facility id, by identifier
// first and then by the nearest located facility to a parsed coordinate.
func (m *Matcher) resolveEndpoint(raw string) (string, bool) {
	if id := ident.NormalizeFacilityID(raw); id != "" && m.ids.Has(id) {
		return id, true
	}
	if m.index == nil {
		return "", false
	}

	c, ok := geo.ParseCoordinate(raw)
	if !ok {
		return "", false
	}
	f, _, ok := m.index.Nearest(c, m.thresholdNM)
	if !ok {
		return "", false
	}
	return f.ID, true
}
