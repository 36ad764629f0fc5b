package coverage

import (
	"math"
	"sort"
	"strings"

	"github.com/saviobatista/logbook-coverage/internal/geo"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// DefaultUsableRunwayFraction is the share of the published runway length
// counted as usable for planning
const DefaultUsableRunwayFraction = 0.75

// TripFilter narrows trip candidates
type TripFilter struct {
	// MaxDistanceNM of zero or less means no distance limit
	MaxDistanceNM     float64
	MinUsableRunwayFt int
	// Surfaces lists accepted categories; empty accepts any. A facility
	// without a category is treated as unknown.
	Surfaces []types.SurfaceCategory
	// Towered nil accepts any tower status
	Towered              *bool
	UsableRunwayFraction float64
}

// ParseSurfaces converts surface names, skipping unknown values
func ParseSurfaces(names []string) []types.SurfaceCategory {
	var out []types.SurfaceCategory
	for _, n := range names {
		switch sc := types.SurfaceCategory(strings.ToLower(strings.TrimSpace(n))); sc {
		case types.SurfacePaved, types.SurfaceUnpaved, types.SurfaceWater, types.SurfaceUnknown:
			out = append(out, sc)
		}
	}
	return out
}

func (tf TripFilter) fraction() float64 {
	if tf.UsableRunwayFraction <= 0 || tf.UsableRunwayFraction > 1 {
		return DefaultUsableRunwayFraction
	}
	return tf.UsableRunwayFraction
}

func (tf TripFilter) acceptsSurface(sc types.SurfaceCategory) bool {
	if len(tf.Surfaces) == 0 {
		return true
	}
	if sc == "" {
		sc = types.SurfaceUnknown
	}
	for _, s := range tf.Surfaces {
		if s == sc {
			return true
		}
	}
	return false
}

// UsableRunwayFt returns floor(fraction * published length), or nil when
// the length is unknown
func UsableRunwayFt(f types.Facility, fraction float64) *int {
	if f.LongestRunwayFt == nil {
		return nil
	}
	usable := int(math.Floor(fraction * float64(*f.LongestRunwayFt)))
	return &usable
}

// PlanTrips lists unvisited facilities around home that pass filter,
// sorted by distance, then usable runway (longest first), then id. The
// home facility and facilities without a location are never candidates.
func PlanTrips(home types.Facility, facilities []types.Facility, visited types.IDSet, filter TripFilter) []types.TripCandidate {
	origin, ok := home.Location()
	if !ok {
		return nil
	}
	fraction := filter.fraction()

	var trips []types.TripCandidate
	for _, f := range facilities {
		if f.ID == home.ID || visited.Has(f.ID) {
			continue
		}
		loc, ok := f.Location()
		if !ok {
			continue
		}

		dist := geo.DistanceNM(origin, loc)
		if filter.MaxDistanceNM > 0 && dist > filter.MaxDistanceNM {
			continue
		}
		usable := UsableRunwayFt(f, fraction)
		if filter.MinUsableRunwayFt > 0 && (usable == nil || *usable < filter.MinUsableRunwayFt) {
			continue
		}
		if !filter.acceptsSurface(f.SurfaceCategory) {
			continue
		}
		if filter.Towered != nil && (f.Towered == nil || *f.Towered != *filter.Towered) {
			continue
		}

		trips = append(trips, types.TripCandidate{Facility: f, DistanceNM: dist, UsableRunwayFt: usable})
	}

	sort.Slice(trips, func(i, j int) bool {
		a, b := trips[i], trips[j]
		if a.DistanceNM != b.DistanceNM {
			return a.DistanceNM < b.DistanceNM
		}
		if ra, rb := runwayOrMinus(a.UsableRunwayFt), runwayOrMinus(b.UsableRunwayFt); ra != rb {
			return ra > rb
		}
		return a.Facility.ID < b.Facility.ID
	})
	return trips
}

func runwayOrMinus(ft *int) int {
	if ft == nil {
		return -1
	}
	return *ft
}
