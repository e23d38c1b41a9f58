package status

import "time"

// ///////////////////////////////////////////////
// Working-Hours Guard
// ///////////////////////////////////////////////

// Policy is the working-hours policy, loaded once at startup and immutable
// for the process lifetime.
type Policy struct {
	// StartHour/StartMinute is the start-of-work time of day.
	StartHour   int
	StartMinute int
	// EndHour/EndMinute is the end-of-work time of day.
	EndHour   int
	EndMinute int
	// Emoji is the after-hours status emoji code.
	Emoji string
	// Clock is "24h" or "12h", for the resumption time in the status text.
	Clock string
	// Location is the zone the policy is evaluated in.
	Location *time.Location
}

// weekendFrom is the first ISO weekday (1=Monday .. 7=Sunday) counted as
// weekend.
const weekendFrom = 6

// isoWeekday returns t's weekday in 1=Monday..7=Sunday numbering.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Override decides whether now falls outside working hours and, if so,
// returns the synthetic after-hours profile. Returns nil during working
// hours on a weekday, in which case the calendar drives the status.
//
// The override is always away with no expiration; the work-resumption
// instant appears only in the text.
func Override(now time.Time, p Policy) *Profile {
	now = now.In(p.Location)

	startOfWork := time.Date(now.Year(), now.Month(), now.Day(), p.StartHour, p.StartMinute, 0, 0, p.Location)
	endOfWork := time.Date(now.Year(), now.Month(), now.Day(), p.EndHour, p.EndMinute, 0, 0, p.Location)

	if !now.Before(startOfWork) && !now.After(endOfWork) && isoWeekday(now) < weekendFrom {
		return nil
	}

	resume := Resumption(now, p)
	text := "After hours. Starts at " + resume.Format("Mon Jan 2")
	if p.Clock == "12h" {
		text += " " + resume.Format("3:04 pm")
	} else {
		text += " " + resume.Format("15:04")
	}
	text += " " + zoneAbbrev(resume)

	return &Profile{
		Text:  text,
		Emoji: p.Emoji,
		Away:  true,
	}
}

// Resumption computes the next work-resumption instant: tomorrow at
// start-of-work, advanced one day at a time past the weekend. At most seven
// steps reach a weekday.
func Resumption(now time.Time, p Policy) time.Time {
	now = now.In(p.Location)
	candidate := time.Date(now.Year(), now.Month(), now.Day(), p.StartHour, p.StartMinute, 0, 0, p.Location)
	candidate = candidate.AddDate(0, 0, 1)
	for isoWeekday(candidate) >= weekendFrom {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
