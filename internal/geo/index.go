package geo

import (
	"math"

	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Grid cell size in degrees; roughly 15nm of latitude.
const cellDegrees = 0.25

type entry struct {
	facility types.Facility
	loc      types.Coordinate
}

// Index organizes facilities with known coordinates into a lat-long grid
// so that nearest-facility queries only examine nearby cells. Queries
// near the poles or the antimeridian fall back to a linear scan; results
// are identical either way.
type Index struct {
	entries []entry
	cells   map[[2]int][]int
}

// NewIndex builds an index over the facilities that have a location
func NewIndex(facilities []types.Facility) *Index {
	ix := &Index{cells: make(map[[2]int][]int)}
	for _, f := range facilities {
		loc, ok := f.Location()
		if !ok {
			continue
		}
		ix.entries = append(ix.entries, entry{facility: f, loc: loc})
		c := cellOf(loc.Latitude, loc.Longitude)
		ix.cells[c] = append(ix.cells[c], len(ix.entries)-1)
	}
	return ix
}

func cellOf(lat, lon float64) [2]int {
	return [2]int{int(math.Floor(lat / cellDegrees)), int(math.Floor(lon / cellDegrees))}
}

// Len returns the number of indexed facilities
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Nearest returns the closest facility within maxNM of c. Equidistant
// candidates resolve to the lexicographically smallest id.
func (ix *Index) Nearest(c types.Coordinate, maxNM float64) (types.Facility, float64, bool) {
	if ix == nil || len(ix.entries) == 0 || math.IsNaN(maxNM) || maxNM < 0 {
		return types.Facility{}, 0, false
	}

	best, bestDist := -1, math.Inf(1)
	consider := func(i int) {
		e := ix.entries[i]
		d := DistanceNM(c, e.loc)
		if d > maxNM {
			return
		}
		if best == -1 || d < bestDist || (d == bestDist && e.facility.ID < ix.entries[best].facility.ID) {
			best, bestDist = i, d
		}
	}

	if lo, hi, ok := searchWindow(c, maxNM); ok {
		for y := lo[0]; y <= hi[0]; y++ {
			for x := lo[1]; x <= hi[1]; x++ {
				for _, i := range ix.cells[[2]int{y, x}] {
					consider(i)
				}
			}
		}
	} else {
		for i := range ix.entries {
			consider(i)
		}
	}

	if best == -1 {
		return types.Facility{}, 0, false
	}
	return ix.entries[best].facility, bestDist, true
}

// searchWindow returns the inclusive range of grid cells that can hold a
// point within maxNM of c; ok is false when the window wraps the
// antimeridian or reaches a pole.
func searchWindow(c types.Coordinate, maxNM float64) (lo, hi [2]int, ok bool) {
	angular := maxNM / EarthRadiusNM // radians
	if math.IsInf(angular, 1) || angular >= math.Pi/2 {
		return lo, hi, false
	}

	dLat := angular * 180 / math.Pi
	maxLat := math.Abs(c.Latitude) + dLat
	if maxLat >= 90 {
		return lo, hi, false
	}

	// From the haversine formula: sin(dLon/2) <= sin(d/2R) / sqrt(cos(lat1) cos(lat2)),
	// with cos(lat2) bounded below by cos(maxLat).
	s := math.Sin(angular/2) / math.Sqrt(math.Cos(radians(c.Latitude))*math.Cos(radians(maxLat)))
	if s >= 1 {
		return lo, hi, false
	}
	dLon := 2 * math.Asin(s) * 180 / math.Pi
	if c.Longitude-dLon < -180 || c.Longitude+dLon > 180 {
		return lo, hi, false
	}

	lo = cellOf(c.Latitude-dLat, c.Longitude-dLon)
	hi = cellOf(c.Latitude+dLat, c.Longitude+dLon)
	return lo, hi, true
}
