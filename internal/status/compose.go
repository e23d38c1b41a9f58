package status

import (
	"regexp"
	"strings"
	"time"
)

// ///////////////////////////////////////////////
// Profile
// ///////////////////////////////////////////////

// Profile is the complete presence profile handed to the Slack client: the
// status text, the status emoji code, an optional expiration, and the
// away/auto presence flag.
//
// Invariant: Expiration is nil whenever Away is true. An away status is
// indefinite; only a bounded auto-presence status tied to a concrete event
// end carries an expiration.
type Profile struct {
	Text       string `json:"text"`
	Emoji      string `json:"emoji"`
	Expiration *int64 `json:"expiration,omitempty"` // epoch seconds
	Away       bool   `json:"away"`
}

// Result is the composer's output: the finished profile plus the pending
// notification-snooze duration captured by the DND rule (zero when absent).
type Result struct {
	Profile       Profile
	SnoozeMinutes int
}

// Options carries the composition conventions, populated from config.
type Options struct {
	// Rules is the annotation rule set, from [Rules].
	Rules []Rule
	// BusyText replaces redacted titles.
	BusyText string
	// FlightEmoji is forced onto flight events.
	FlightEmoji string
	// Clock is "24h" or "12h".
	Clock string
	// CalendarIncluded is false when the event's calendar fails the
	// configured include filter, which redacts the title like the private
	// token does.
	CalendarIncluded bool
}

// ///////////////////////////////////////////////
// Pipeline
// ///////////////////////////////////////////////

// compState is the running state threaded through the composition steps.
type compState struct {
	title         string
	emoji         string
	away          bool
	snoozeMinutes int
	excluded      bool
}

// step is one pure transformation in the composition pipeline. Steps run in
// a fixed order and each sees the effects of all earlier ones.
type step func(compState) compState

// parenRegexp matches the first parenthesized substring, e.g. a flight number.
var parenRegexp = regexp.MustCompile(`\([^)]*\)`)

// Compose turns a parsed title and event window into the final [Profile].
// Returns nil when the event is excluded from status updates (hotel stays);
// that is a silent no-op for the caller, not an error.
//
// The rule order is a contract: the hotel check must see the token-bearing
// title, redaction must happen before the time range is appended, and the
// away check runs last so it sees the fully assembled text.
func Compose(cleanTitle, emojiCode string, start, end time.Time, opts Options) *Result {
	steps := []step{
		excludeHotels(opts),
		captureDND(opts, start, end),
		flightRule(opts),
		privateToken(opts),
		calendarFilter(opts),
		timeRange(opts, start, end),
		awayToken(opts),
	}

	st := compState{title: cleanTitle, emoji: emojiCode}
	for _, s := range steps {
		st = s(st)
		if st.excluded {
			return nil
		}
	}

	p := Profile{
		Text:  st.title,
		Emoji: st.emoji,
		Away:  st.away,
	}
	if !st.away {
		exp := end.Unix()
		p.Expiration = &exp
	}
	return &Result{Profile: p, SnoozeMinutes: st.snoozeMinutes}
}

// excludeHotels aborts composition for hotel-stay events. Telling the whole
// workspace which hotel someone sleeps in is not a status update.
func excludeHotels(opts Options) step {
	return func(st compState) compState {
		if strings.HasPrefix(st.title, tokenFor(opts.Rules, KindHotel)) {
			st.excluded = true
		}
		return st
	}
}

// captureDND records the event span in whole minutes as the pending
// notification snooze and strips the token.
func captureDND(opts Options, start, end time.Time) step {
	token := tokenFor(opts.Rules, KindDND)
	return func(st compState) compState {
		if !hasToken(st.title, token) {
			return st
		}
		st.snoozeMinutes = int(end.Sub(start).Minutes())
		st.title = stripToken(st.title, token)
		return st
	}
}

// flightRule strips the first parenthesized substring (the flight number)
// from flight titles and forces the airplane emoji.
func flightRule(opts Options) step {
	return func(st compState) compState {
		if !strings.HasPrefix(st.title, tokenFor(opts.Rules, KindFlight)) {
			return st
		}
		cleaned := parenRegexp.ReplaceAllString(st.title, "")
		st.title = strings.TrimSpace(strings.Join(strings.Fields(cleaned), " "))
		st.emoji = opts.FlightEmoji
		return st
	}
}

// privateToken replaces the entire title with the busy text. Destructive:
// later steps append to the busy text, not to the original title.
func privateToken(opts Options) step {
	token := tokenFor(opts.Rules, KindPrivate)
	return func(st compState) compState {
		if hasToken(st.title, token) {
			st.title = opts.BusyText
		}
		return st
	}
}

// calendarFilter redacts titles from calendars outside the include filter.
// Idempotent when the private token already redacted.
func calendarFilter(opts Options) step {
	return func(st compState) compState {
		if !opts.CalendarIncluded {
			st.title = opts.BusyText
		}
		return st
	}
}

// timeRange appends " from {start} to {end} {zone}" to whatever the title
// has become.
func timeRange(opts Options, start, end time.Time) step {
	return func(st compState) compState {
		st.title += " from " + FormatClock(start, opts.Clock, false) +
			" to " + FormatClock(end, opts.Clock, true) +
			" " + zoneAbbrev(start)
		return st
	}
}

// awayToken runs after the time range on purpose: it must see the final
// text, and stripping earlier would reorder it against the DND strip.
func awayToken(opts Options) step {
	token := tokenFor(opts.Rules, KindAway)
	return func(st compState) compState {
		if hasToken(st.title, token) {
			st.away = true
			st.title = stripToken(st.title, token)
		}
		return st
	}
}

// ///////////////////////////////////////////////
// Time Formatting
// ///////////////////////////////////////////////

// FormatClock renders an instant in the configured clock style. The meridiem
// suffix is appended only on range-end instants, mirroring the convention
// the calendar exporters established ("from 09:00 to 12:30 pm").
func FormatClock(t time.Time, clock string, meridiem bool) string {
	layout := "15:04"
	if clock == "12h" {
		layout = "3:04"
	}
	if meridiem {
		layout += " pm"
	}
	return t.Format(layout)
}

// zoneAbbrev returns the short zone name for an instant, e.g. "UTC" or "PST".
func zoneAbbrev(t time.Time) string {
	return t.Format("MST")
}
