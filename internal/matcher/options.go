package matcher

import (
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Options selects which evidence counts toward a visit
type Options struct {
	IncludeNotes bool `json:"include_notes"`
	UseEndpoints bool `json:"use_endpoints"`
	ArrivalsOnly bool `json:"arrivals_only"`
}

// DefaultOptions counts both endpoints and notes
func DefaultOptions() Options {
	return Options{IncludeNotes: true, UseEndpoints: true}
}

// OptionsFromSettings extracts the matching options of a pilot's settings
func OptionsFromSettings(s types.PilotSettings) Options {
	return Options{
		IncludeNotes: s.IncludeNotes,
		UseEndpoints: s.UseEndpoints,
		ArrivalsOnly: s.ArrivalsOnly,
	}
}

// Selects reports whether events of kind count under o
func (o Options) Selects(kind types.MatchKind) bool {
	switch kind {
	case types.MatchEndpointFrom:
		return o.UseEndpoints && !o.ArrivalsOnly
	case types.MatchEndpointTo:
		return o.UseEndpoints
	case types.MatchNotes:
		return o.IncludeNotes
	}
	return false
}

// Select zeroes the counters o does not select
func (o Options) Select(c types.MatchCounts) types.MatchCounts {
	var out types.MatchCounts
	if o.Selects(types.MatchEndpointFrom) {
		out.EndpointFrom = c.EndpointFrom
	}
	if o.Selects(types.MatchEndpointTo) {
		out.EndpointTo = c.EndpointTo
	}
	if o.Selects(types.MatchNotes) {
		out.NotesMatch = c.NotesMatch
	}
	return out
}

// Total sums the selected counters
func (o Options) Total(c types.MatchCounts) int {
	s := o.Select(c)
	return s.EndpointFrom + s.EndpointTo + s.NotesMatch
}

// ComputeVisited returns the facilities whose selected total is positive
func ComputeVisited(matches map[string]*types.FacilityMatch, opts Options) types.IDSet {
	visited := make(types.IDSet)
	for id, m := range matches {
		if m != nil && opts.Total(m.Counts) > 0 {
			visited.Add(id)
		}
	}
	return visited
}

// ComputeFrequency returns the selected evidence per facility. Counters
// outside opts are zeroed; facilities left with no evidence are omitted.
func ComputeFrequency(matches map[string]*types.FacilityMatch, opts Options) map[string]types.FacilityFrequency {
	freq := make(map[string]types.FacilityFrequency, len(matches))
	for id, m := range matches {
		if m == nil {
			continue
		}
		counts := opts.Select(m.Counts)
		total := counts.EndpointFrom + counts.EndpointTo + counts.NotesMatch
		if total == 0 {
			continue
		}
		freq[id] = types.FacilityFrequency{ID: id, Total: total, Counts: counts}
	}
	return freq
}
