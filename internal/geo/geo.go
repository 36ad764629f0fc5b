// Package geo holds the coordinate handling used by facility matching:
// parsing raw coordinate strings, great-circle distance and a grid index
// for nearest-facility lookups.
package geo

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/saviobatista/logbook-coverage/internal/types"
)

// EarthRadiusNM is the mean earth radius in nautical miles
const EarthRadiusNM = 3440.065

var (
	hemispherePair = regexp.MustCompile(`^([NS])?\s*([0-9]+(?:\.[0-9]+)?)\s*°?\s*([NS])?\s*[,/\s]\s*([EW])?\s*([0-9]+(?:\.[0-9]+)?)\s*°?\s*([EW])?$`)
	signedPair     = regexp.MustCompile(`^([-+]?[0-9]+(?:\.[0-9]+)?)\s*[,/]\s*([-+]?[0-9]+(?:\.[0-9]+)?)$`)
)

// ParseCoordinate parses raw endpoint strings such as
// "37.6188056°N/122.3754167°W", "N37.5 W122.2" or "37.6,-122.3".
func ParseCoordinate(raw string) (types.Coordinate, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "º", "°")
	if s == "" {
		return types.Coordinate{}, false
	}

	if m := signedPair.FindStringSubmatch(s); m != nil {
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lon, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return types.Coordinate{}, false
		}
		return validate(lat, lon)
	}

	m := hemispherePair.FindStringSubmatch(s)
	if m == nil {
		return types.Coordinate{}, false
	}
	// Exactly one hemisphere letter per component, either side of the number.
	latHemi, lonHemi := m[1]+m[3], m[4]+m[6]
	if len(latHemi) != 1 || len(lonHemi) != 1 {
		return types.Coordinate{}, false
	}
	lat, err1 := strconv.ParseFloat(m[2], 64)
	lon, err2 := strconv.ParseFloat(m[5], 64)
	if err1 != nil || err2 != nil {
		return types.Coordinate{}, false
	}
	if latHemi == "S" {
		lat = -lat
	}
	if lonHemi == "W" {
		lon = -lon
	}
	return validate(lat, lon)
}

func validate(lat, lon float64) (types.Coordinate, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return types.Coordinate{}, false
	}
	return types.Coordinate{Latitude: lat, Longitude: lon}, true
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceNM returns the haversine great-circle distance between a and b
func DistanceNM(a, b types.Coordinate) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, h)
	return 2 * EarthRadiusNM * math.Asin(math.Sqrt(h))
}
