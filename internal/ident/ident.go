// Package ident canonicalizes free-text tokens into facility identifiers
// and recognizes tokens that are coordinates rather than identifiers.
package ident

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// US ICAO-style code: K followed by the 3-4 character domestic identifier
	icaoDomestic = regexp.MustCompile(`^K[A-Z0-9]{3,4}$`)

	hemisphereAfterDigit  = regexp.MustCompile(`[0-9][NSEW](?:[^A-Z0-9]|$)`)
	hemisphereBeforeDigit = regexp.MustCompile(`(?:^|[^A-Z0-9])[NSEW][0-9]+(?:\.[0-9]+)?(?:[^A-Z0-9]|$)`)
	decimalHemisphere     = regexp.MustCompile(`^[-+]?[0-9]+(?:\.[0-9]+)?\s*[NSEW]$`)
	decimalPair           = regexp.MustCompile(`^[-+]?[0-9]+(?:\.[0-9]+)?\s*[,/]\s*[-+]?[0-9]+(?:\.[0-9]+)?$`)
	hemispherePrefixPair  = regexp.MustCompile(`^[NS]\s*[0-9]+(?:\.[0-9]+)?\s*[,/]\s*[EW]\s*[0-9]+(?:\.[0-9]+)?$`)
)

func isAlnum(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// NormalizeFacilityID returns the canonical identifier for token, or "" if
// nothing identifier-like remains. Only the edges of the token are
// stripped; interior punctuation is preserved.
func NormalizeFacilityID(token string) string {
	id := strings.ToUpper(strings.TrimSpace(token))
	id = strings.TrimFunc(id, func(r rune) bool { return !isAlnum(r) })
	if id == "" {
		return ""
	}

	// Repeated so that normalizing an already normalized id is a no-op
	// (KKSFO -> KSFO -> SFO).
	for icaoDomestic.MatchString(id) {
		id = id[1:]
	}
	return id
}

// IsCoordinateToken reports whether token looks like a geographic
// coordinate (or a fragment of one) rather than a facility identifier.
// A hemisphere letter counts when it leads or trails a number (N37,
// 122W); a letter between digits (1N7) is an identifier.
func IsCoordinateToken(token string) bool {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" {
		return false
	}
	if strings.ContainsAny(t, "°º") {
		return true
	}
	return hemisphereAfterDigit.MatchString(t) ||
		hemisphereBeforeDigit.MatchString(t) ||
		decimalHemisphere.MatchString(t) ||
		decimalPair.MatchString(t) ||
		hemispherePrefixPair.MatchString(t)
}

// separators splits note text; '.', '/' and the degree sign are kept so
// that coordinate tokens survive intact.
const separators = ",;:()[]{}<>|\"'-_=+*#!?&~\\→←–—"

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(separators, r)
}

// TokenizeText splits free text into tokens in scan order, dropping empty
// fragments.
func TokenizeText(text string) []string {
	return strings.FieldsFunc(text, isSeparator)
}
