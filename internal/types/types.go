package types

import (
	"sort"
	"time"
)

// SurfaceCategory classifies the runway surface of a facility
type SurfaceCategory string

const (
	SurfacePaved   SurfaceCategory = "paved"
	SurfaceUnpaved SurfaceCategory = "unpaved"
	SurfaceWater   SurfaceCategory = "water"
	SurfaceUnknown SurfaceCategory = "unknown"
)

// Facility represents a public or contributed landing location
type Facility struct {
	ID              string          `json:"id"`
	State           string          `json:"state,omitempty"`
	Name            string          `json:"name"`
	City            string          `json:"city"`
	County          string          `json:"county"`
	Latitude        *float64        `json:"latitude,omitempty"`
	Longitude       *float64        `json:"longitude,omitempty"`
	Towered         *bool           `json:"towered,omitempty"`
	LongestRunwayFt *int            `json:"longest_runway_ft,omitempty"`
	SurfaceCategory SurfaceCategory `json:"surface_category,omitempty"`
	Type            string          `json:"type,omitempty"`
	Sources         []string        `json:"sources,omitempty"`
	Corroborated    *bool           `json:"corroborated,omitempty"`
}

// HasLocation reports whether both coordinates are known
func (f Facility) HasLocation() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Location returns the facility coordinates; ok is false when either is absent
func (f Facility) Location() (Coordinate, bool) {
	if !f.HasLocation() {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: *f.Latitude, Longitude: *f.Longitude}, true
}

// FlightRow represents one logged flight leg as found in the export
type FlightRow struct {
	Date       string   `json:"date" msgpack:"date"`
	From       string   `json:"from" msgpack:"from"`
	To         string   `json:"to" msgpack:"to"`
	TextFields []string `json:"text_fields,omitempty" msgpack:"text_fields"`
}

// Coordinate is a latitude/longitude pair in decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MatchKind identifies which counter a visit event incremented
type MatchKind int

const (
	MatchEndpointFrom MatchKind = iota
	MatchEndpointTo
	MatchNotes
)

// MatchCounts holds the independent evidence counters for one facility
type MatchCounts struct {
	EndpointFrom int `json:"endpoint_from"`
	EndpointTo   int `json:"endpoint_to"`
	NotesMatch   int `json:"notes_match"`
}

// VisitEvent records a single counter increment and the flight that caused it
type VisitEvent struct {
	Flight int       `json:"flight"`
	Kind   MatchKind `json:"kind"`
}

// FacilityMatch accumulates the matches of one facility across a logbook
type FacilityMatch struct {
	Counts MatchCounts  `json:"counts"`
	Events []VisitEvent `json:"events,omitempty"`
}

// Add increments the counter for kind and records the event
func (m *FacilityMatch) Add(flight int, kind MatchKind) {
	switch kind {
	case MatchEndpointFrom:
		m.Counts.EndpointFrom++
	case MatchEndpointTo:
		m.Counts.EndpointTo++
	case MatchNotes:
		m.Counts.NotesMatch++
	default:
		return
	}
	m.Events = append(m.Events, VisitEvent{Flight: flight, Kind: kind})
}

// IDSet is a set of facility identifiers
type IDSet map[string]struct{}

// NewIDSet creates a set holding ids
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set; a nil set contains nothing
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Sorted returns the members in ascending order
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FacilityFrequency is the selected evidence for one facility
type FacilityFrequency struct {
	ID     string      `json:"id"`
	Total  int         `json:"total"`
	Counts MatchCounts `json:"counts"`
}

// ScopeCoverage summarizes coverage of a facility scope
type ScopeCoverage struct {
	Visited int     `json:"visited"`
	Total   int     `json:"total"`
	Ratio   float64 `json:"ratio"`
}

// StateCoverage summarizes coverage of one state within a scope
type StateCoverage struct {
	State string `json:"state"`
	ScopeCoverage
}

// TripCandidate is an unvisited facility reachable from the home base
type TripCandidate struct {
	Facility       Facility `json:"facility"`
	DistanceNM     float64  `json:"distance_nm"`
	UsableRunwayFt *int     `json:"usable_runway_ft,omitempty"`
}

// CoverageReport is the full result of one matching pipeline run
type CoverageReport struct {
	ID               string               `json:"id"`
	PilotID          string               `json:"pilot_id,omitempty"`
	Scope            string               `json:"scope"`
	CreatedAt        time.Time            `json:"created_at"`
	FlightCount      int                  `json:"flight_count"`
	Coverage         ScopeCoverage        `json:"coverage"`
	Visited          []string             `json:"visited"`
	States           []StateCoverage      `json:"states"`
	Frequency        []FacilityFrequency  `json:"frequency"`
	MostFrequent     string               `json:"most_frequent,omitempty"`
	MostVisitedState string               `json:"most_visited_state,omitempty"`
	FirstVisits      map[string]time.Time `json:"first_visits"`
	Trips            []TripCandidate      `json:"trips,omitempty"`
}

// LogbookImport is a raw logbook export submitted for processing
type LogbookImport struct {
	ID         string    `json:"id"`
	PilotID    string    `json:"pilot_id"`
	FileName   string    `json:"file_name"`
	CSV        string    `json:"csv"`
	ReceivedAt time.Time `json:"received_at"`
}

// PilotSettings holds the per-pilot matching and planning preferences
type PilotSettings struct {
	Scope        string   `json:"scope"`
	IncludeNotes bool     `json:"include_notes"`
	UseEndpoints bool     `json:"use_endpoints"`
	ArrivalsOnly bool     `json:"arrivals_only"`
	ExcludeHubs  bool     `json:"exclude_hubs"`
	HomeBase     string   `json:"home_base,omitempty"`
	MaxTripNM    float64  `json:"max_trip_nm,omitempty"`
	MinRunwayFt  int      `json:"min_runway_ft,omitempty"`
	Surfaces     []string `json:"surfaces,omitempty"`
	Towered      *bool    `json:"towered,omitempty"`
}

// DefaultPilotSettings returns the settings used before a pilot saves any
func DefaultPilotSettings() PilotSettings {
	return PilotSettings{
		Scope:        "public",
		IncludeNotes: true,
		UseEndpoints: true,
	}
}
