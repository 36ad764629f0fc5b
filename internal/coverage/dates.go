package coverage

import (
	"strings"
	"time"

	"github.com/saviobatista/logbook-coverage/internal/matcher"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Layouts seen in logbook exports, tried in order
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-06",
}

// ParseFlightDate parses a logbook date on a best-effort basis. The
// result is in UTC.
func ParseFlightDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FirstVisits returns the earliest parsable flight date among the visit
// events selected by opts, per facility. Facilities with no parsable date
// are omitted.
func FirstVisits(matches map[string]*types.FacilityMatch, flights []types.FlightRow, opts matcher.Options) map[string]time.Time {
	dates := make(map[int]time.Time)
	parsed := make(map[int]bool)
	dateOf := func(i int) (time.Time, bool) {
		if _, done := parsed[i]; !done {
			t, ok := ParseFlightDate(flights[i].Date)
			parsed[i] = ok
			if ok {
				dates[i] = t
			}
		}
		t, ok := dates[i]
		return t, ok
	}

	first := make(map[string]time.Time)
	for id, m := range matches {
		if m == nil {
			continue
		}
		for _, ev := range m.Events {
			if !opts.Selects(ev.Kind) || ev.Flight < 0 || ev.Flight >= len(flights) {
				continue
			}
			t, ok := dateOf(ev.Flight)
			if !ok {
				continue
			}
			if cur, seen := first[id]; !seen || t.Before(cur) {
				first[id] = t
			}
		}
	}
	return first
}
