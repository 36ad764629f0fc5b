// Package coverage derives coverage, frequency, first-visit and trip
// planning views from facility matches, and runs the whole pipeline for
// a logbook through Engine.
package coverage

import (
	"sort"

	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Ratio returns visited/total clamped to [0,1]; 0 when total is 0
func Ratio(visited, total int) float64 {
	if total <= 0 || visited <= 0 {
		return 0
	}
	if visited >= total {
		return 1
	}
	return float64(visited) / float64(total)
}

// ForScope summarizes how many of facilities were visited
func ForScope(facilities []types.Facility, visited types.IDSet) types.ScopeCoverage {
	n := 0
	for _, f := range facilities {
		if visited.Has(f.ID) {
			n++
		}
	}
	return types.ScopeCoverage{Visited: n, Total: len(facilities), Ratio: Ratio(n, len(facilities))}
}

// ByState breaks coverage down by state code. Facilities without a state
// are left out. Results are sorted by state.
func ByState(facilities []types.Facility, visited types.IDSet) []types.StateCoverage {
	byState := make(map[string]*types.StateCoverage)
	for _, f := range facilities {
		if f.State == "" {
			continue
		}
		sc, ok := byState[f.State]
		if !ok {
			sc = &types.StateCoverage{State: f.State}
			byState[f.State] = sc
		}
		sc.Total++
		if visited.Has(f.ID) {
			sc.Visited++
		}
	}

	states := make([]types.StateCoverage, 0, len(byState))
	for _, sc := range byState {
		sc.Ratio = Ratio(sc.Visited, sc.Total)
		states = append(states, *sc)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].State < states[j].State })
	return states
}

// SortedFrequency orders frequency rows by total descending, then id
func SortedFrequency(freq map[string]types.FacilityFrequency) []types.FacilityFrequency {
	rows := make([]types.FacilityFrequency, 0, len(freq))
	for _, f := range freq {
		rows = append(rows, f)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

// MostFrequent returns the facility with the highest total; ties go to
// the smallest id.
func MostFrequent(freq map[string]types.FacilityFrequency) (types.FacilityFrequency, bool) {
	var best types.FacilityFrequency
	found := false
	for _, f := range freq {
		if f.Total <= 0 {
			continue
		}
		if !found || f.Total > best.Total || (f.Total == best.Total && f.ID < best.ID) {
			best, found = f, true
		}
	}
	return best, found
}

// MostVisitedState sums frequency totals per state and returns the
// largest; ties go to the smallest state code.
func MostVisitedState(freq map[string]types.FacilityFrequency, byID map[string]types.Facility) (string, int, bool) {
	totals := make(map[string]int)
	for id, f := range freq {
		facility, ok := byID[id]
		if !ok || facility.State == "" || f.Total <= 0 {
			continue
		}
		totals[facility.State] += f.Total
	}

	var state string
	best := 0
	for s, n := range totals {
		if n > best || (n == best && s < state) {
			state, best = s, n
		}
	}
	return state, best, best > 0
}
