package calendar

import (
	"sort"
	"time"
)

// SelectActive returns the event whose window contains now, or nil when no
// event is active (a normal condition, not an error).
//
// All-day events are dropped unconditionally. The interval test is
// boundary-inclusive: an event is active at its exact start and end instants.
// When several events qualify, the earliest start wins, then the shortest
// duration, then source order.
func SelectActive(events []Event, now time.Time, loc *time.Location) *Event {
	now = now.In(loc)

	var active []Event
	for _, e := range events {
		if e.AllDay {
			continue
		}
		start := e.StartIn(loc)
		end := e.EndIn(loc)
		if now.Before(start) || now.After(end) {
			continue
		}
		active = append(active, e)
	}
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Start != active[j].Start {
			return active[i].Start < active[j].Start
		}
		return active[i].Duration() < active[j].Duration()
	})

	e := active[0]
	return &e
}
