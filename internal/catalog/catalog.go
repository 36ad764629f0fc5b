// Package catalog loads the canonical facility dataset and assembles the
// facility scopes used as coverage denominators.
package catalog

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/saviobatista/logbook-coverage/internal/ident"
	"github.com/saviobatista/logbook-coverage/internal/parser"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// field is a logical catalog column
type field int

const (
	fieldID field = iota
	fieldState
	fieldName
	fieldCity
	fieldCounty
	fieldLatitude
	fieldLongitude
	fieldTowered
	fieldRunway
	fieldSurface
	fieldType
	fieldSources
	fieldCorroborated
	numFields
)

// columnAliases lists the accepted header names per field, normalized the
// same way as logbook headers. The first alias present wins.
var columnAliases = [numFields][]string{
	fieldID:           {"id", "airportid", "airport", "ident", "locid", "faaid"},
	fieldState:        {"state", "statecode", "st"},
	fieldName:         {"name", "facilityname", "airportname"},
	fieldCity:         {"city", "cityname"},
	fieldCounty:       {"county", "countyname"},
	fieldLatitude:     {"latitude", "lat", "latitudedeg", "latdecimal"},
	fieldLongitude:    {"longitude", "lon", "lng", "long", "longitudedeg", "longdecimal"},
	fieldTowered:      {"towered", "tower"},
	fieldRunway:       {"longestrunwayft", "longestrunway", "runwaylengthft"},
	fieldSurface:      {"surfacecategory", "surface"},
	fieldType:         {"type", "facilitytype", "sitetype"},
	fieldSources:      {"sources"},
	fieldCorroborated: {"corroborated"},
}

// resolveHeader maps each field to its column index, or -1
func resolveHeader(header []string) [numFields]int {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		n := parser.NormalizeHeader(h)
		if _, seen := normalized[n]; !seen {
			normalized[n] = i
		}
	}

	var idx [numFields]int
	for f := range idx {
		idx[f] = -1
		for _, alias := range columnAliases[f] {
			if i, ok := normalized[alias]; ok {
				idx[f] = i
				break
			}
		}
	}
	return idx
}

// ParseFacilityCatalog parses the facility CSV. Rows without a usable id
// are dropped. When an id appears more than once, the last row's values
// win and the facility keeps the position of its first occurrence.
func ParseFacilityCatalog(text string) []types.Facility {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil
	}
	idx := resolveHeader(header)
	if idx[fieldID] == -1 {
		return nil
	}

	var facilities []types.Facility
	position := make(map[string]int)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}

		f, ok := facilityFromRecord(record, idx)
		if !ok {
			continue
		}
		if i, dup := position[f.ID]; dup {
			facilities[i] = f
			continue
		}
		position[f.ID] = len(facilities)
		facilities = append(facilities, f)
	}
	return facilities
}

func facilityFromRecord(record []string, idx [numFields]int) (types.Facility, bool) {
	get := func(f field) string {
		i := idx[f]
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := ident.NormalizeFacilityID(get(fieldID))
	if id == "" {
		return types.Facility{}, false
	}

	f := types.Facility{
		ID:              id,
		State:           strings.ToUpper(get(fieldState)),
		Name:            get(fieldName),
		City:            get(fieldCity),
		County:          get(fieldCounty),
		Latitude:        parseFloat(get(fieldLatitude)),
		Longitude:       parseFloat(get(fieldLongitude)),
		Towered:         parseYesNo(get(fieldTowered)),
		LongestRunwayFt: parseRunway(get(fieldRunway)),
		SurfaceCategory: parseSurface(get(fieldSurface)),
		Type:            strings.ToLower(get(fieldType)),
		Sources:         parseSources(get(fieldSources)),
		Corroborated:    parseYesNo(get(fieldCorroborated)),
	}
	if f.Name == "" {
		f.Name = id
	}
	return f, true
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseYesNo(s string) *bool {
	var v bool
	switch strings.ToLower(s) {
	case "yes", "true":
		v = true
	case "no", "false":
		v = false
	default:
		return nil
	}
	return &v
}

func parseRunway(s string) *int {
	v := parseFloat(s)
	if v == nil || *v < 0 {
		return nil
	}
	ft := int(math.Round(*v))
	return &ft
}

func parseSurface(s string) types.SurfaceCategory {
	switch sc := types.SurfaceCategory(strings.ToLower(s)); sc {
	case types.SurfacePaved, types.SurfaceUnpaved, types.SurfaceWater, types.SurfaceUnknown:
		return sc
	}
	return ""
}

func parseSources(s string) []string {
	var sources []string
	for _, src := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' }) {
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	}
	return sources
}
