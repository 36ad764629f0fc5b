package catalog

import (
	"fmt"
	"strings"

	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Scope names a subset of facilities used as a coverage denominator
type Scope string

const (
	ScopePublic   Scope = "public"
	ScopePrivate  Scope = "private"
	ScopeHeliport Scope = "heliport"
	ScopeSeaplane Scope = "seaplane"
	ScopeAll      Scope = "all"
)

// Scopes lists every valid scope
var Scopes = []Scope{ScopePublic, ScopePrivate, ScopeHeliport, ScopeSeaplane, ScopeAll}

// ParseScope validates a scope name; empty means public
func ParseScope(s string) (Scope, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ScopePublic, nil
	}
	for _, sc := range Scopes {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// MajorHubs are large hub airports that can be left out of coverage so
// they do not skew "landed here" statistics.
var MajorHubs = types.NewIDSet("SFO", "LAX", "SAN")

// HubExclusion returns MajorHubs when enabled and nil otherwise
func HubExclusion(enabled bool) types.IDSet {
	if enabled {
		return MajorHubs
	}
	return nil
}

// BuildScope assembles the facilities of scope from the public catalog
// (primary) and the contributed list (secondary), dropping any id in
// excluded. The inputs are not modified.
func BuildScope(scope Scope, primary, secondary []types.Facility, excluded types.IDSet) []types.Facility {
	var facilities []types.Facility
	switch scope {
	case ScopePublic:
		facilities = primary
	case ScopePrivate:
		public := idsOf(primary)
		for _, f := range secondary {
			if f.Type == string(ScopePrivate) && !public.Has(f.ID) {
				facilities = append(facilities, f)
			}
		}
	case ScopeHeliport, ScopeSeaplane:
		for _, f := range secondary {
			if f.Type == string(scope) {
				facilities = append(facilities, f)
			}
		}
	case ScopeAll:
		facilities = union(primary, secondary)
	}

	out := make([]types.Facility, 0, len(facilities))
	for _, f := range facilities {
		if !excluded.Has(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// union de-duplicates by id with first-seen precedence; a later entry with
// a full location fills in an earlier entry that lacks one.
func union(lists ...[]types.Facility) []types.Facility {
	var out []types.Facility
	position := make(map[string]int)
	for _, list := range lists {
		for _, f := range list {
			i, seen := position[f.ID]
			if !seen {
				position[f.ID] = len(out)
				out = append(out, f)
				continue
			}
			if !out[i].HasLocation() && f.HasLocation() {
				out[i].Latitude = f.Latitude
				out[i].Longitude = f.Longitude
			}
		}
	}
	return out
}

func idsOf(facilities []types.Facility) types.IDSet {
	ids := make(types.IDSet, len(facilities))
	for _, f := range facilities {
		ids.Add(f.ID)
	}
	return ids
}

// IDs returns the set of ids in facilities
func IDs(facilities []types.Facility) types.IDSet {
	return idsOf(facilities)
}

// ByID indexes facilities by id
func ByID(facilities []types.Facility) map[string]types.Facility {
	m := make(map[string]types.Facility, len(facilities))
	for _, f := range facilities {
		m[f.ID] = f
	}
	return m
}
