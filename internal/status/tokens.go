// Package status derives a Slack status profile from a calendar event.
//
// The package provides three core capabilities:
//
//   - Title parsing: extracting a leading emoji glyph into its :code: form
//     and producing the clean base title ([ParseTitle]).
//   - Status composition: an ordered pipeline of pure transformation steps
//     that applies annotation-token effects and produces the final
//     [Profile] ([Compose]).
//   - Working-hours override: a calendar-independent synthetic profile for
//     instants outside business hours ([Override]).
//
// Everything here is pure; external effects live in internal/dispatch.
package status

import "strings"

// ///////////////////////////////////////////////
// Token Rules
// ///////////////////////////////////////////////

// Kind classifies the effect an annotation rule has on the composed status.
type Kind int

const (
	// KindDND snoozes notifications for the event's duration.
	KindDND Kind = iota
	// KindAway forces presence to away.
	KindAway
	// KindPrivate redacts the title to the busy text.
	KindPrivate
	// KindFlight matches flight titles and forces the airplane emoji.
	KindFlight
	// KindHotel excludes hotel-stay events from status updates entirely.
	KindHotel
)

// Rule binds a token to its effect. Bracketed tokens (DND, away, private)
// match as case-insensitive substrings anywhere in the title; flight and
// hotel rules match as literal title prefixes.
type Rule struct {
	Token string
	Kind  Kind
}

// Title prefixes for the two literal rules. These are conventions of the
// calendar entries themselves, not configurable markers.
const (
	flightPrefix = "Flight to"
	hotelPrefix  = "Stay at "
)

// Rules builds the complete rule set from the configured bracket tokens.
func Rules(dndToken, awayToken, privateToken string) []Rule {
	return []Rule{
		{Token: hotelPrefix, Kind: KindHotel},
		{Token: dndToken, Kind: KindDND},
		{Token: flightPrefix, Kind: KindFlight},
		{Token: privateToken, Kind: KindPrivate},
		{Token: awayToken, Kind: KindAway},
	}
}

// tokenFor returns the token registered for kind, or empty.
func tokenFor(rules []Rule, kind Kind) string {
	for _, r := range rules {
		if r.Kind == kind {
			return r.Token
		}
	}
	return ""
}

// indexFold returns the byte index of the first case-insensitive occurrence
// of sub in s, or -1. Folding is per-byte-window EqualFold, which is all the
// short ASCII bracket tokens need.
func indexFold(s, sub string) int {
	if sub == "" {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

// hasToken reports whether title contains token, ignoring case.
func hasToken(title, token string) bool {
	return indexFold(title, token) >= 0
}

// stripToken removes every case-insensitive occurrence of token from title
// and collapses the whitespace left behind, so "Deep work [away] from"
// becomes "Deep work from" rather than keeping a double space.
func stripToken(title, token string) string {
	for {
		i := indexFold(title, token)
		if i < 0 {
			break
		}
		title = title[:i] + title[i+len(token):]
	}
	return strings.TrimSpace(strings.Join(strings.Fields(title), " "))
}
