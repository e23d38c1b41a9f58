// Package calendar defines the event model, the event source boundary, and
// active-event selection.
//
// Event acquisition is a collaborator concern: an external exporter (a
// command, a JSON file it maintains, or an ICS feed) produces today's events
// and this package normalizes them into [Event] values. The package never
// mutates what it is given and holds no state between runs.
package calendar

import "time"

// Event is a single calendar event as reported by the event source.
// Start and End are epoch milliseconds; interpretation in a concrete time
// zone happens at the comparison site, never here.
type Event struct {
	// Title is the raw event title, annotation tokens and all.
	Title string `json:"title"`
	// Start is the event start in epoch milliseconds.
	Start int64 `json:"start"`
	// End is the event end in epoch milliseconds.
	End int64 `json:"end"`
	// Calendar names the calendar the event belongs to; empty when the
	// source doesn't know.
	Calendar string `json:"calendar,omitempty"`
	// AllDay marks date-only events, which carry no actionable window.
	AllDay bool `json:"allDay,omitempty"`
}

// StartIn returns the event start localized to loc.
func (e Event) StartIn(loc *time.Location) time.Time {
	return time.UnixMilli(e.Start).In(loc)
}

// EndIn returns the event end localized to loc.
func (e Event) EndIn(loc *time.Location) time.Time {
	return time.UnixMilli(e.End).In(loc)
}

// Duration returns the event length.
func (e Event) Duration() time.Duration {
	return time.Duration(e.End-e.Start) * time.Millisecond
}
