package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/slackcal/internal/atomicfile"
)

// httpClient is a lazily-initialized retryablehttp client shared across all
// ICS fetches. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it on
// first call.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 15 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// ///////////////////////////////////////////////
// ICS Source
// ///////////////////////////////////////////////

// ICSSource reads today's events from an ICS calendar, either a local file
// or a fetched feed. Feed bodies are cached on disk so a flaky network
// degrades to slightly stale events instead of a failed run.
//
// Recurrence rules are not expanded; the feed is expected to carry resolved
// instances (exporters like Google's private ICS URL do).
type ICSSource struct {
	// URL is the feed endpoint; ignored when File is set.
	URL string
	// File is a local .ics path.
	File string
	// CachePath is where fetched feed bodies are stored for fallback.
	CachePath string
	// Location is the zone used to bound "today".
	Location *time.Location
}

// Events loads the ICS body and returns the timed events that touch the
// local day containing now.
func (s ICSSource) Events(ctx context.Context, now int64) ([]Event, error) {
	body, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.parse(body, time.Unix(now, 0))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoData
	}
	return events, nil
}

// load returns the raw ICS payload from the local file or the feed URL,
// falling back to the on-disk cache when the fetch fails.
func (s ICSSource) load(ctx context.Context) ([]byte, error) {
	if s.File != "" {
		body, err := os.ReadFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("read ICS file: %w", err)
		}
		return body, nil
	}

	body, err := s.fetch(ctx)
	if err == nil {
		if s.CachePath != "" {
			if cacheErr := atomicfile.Write(s.CachePath, body, 0o600); cacheErr != nil {
				slog.Warn("failed to write ICS cache", "error", cacheErr)
			}
		}
		return body, nil
	}

	if s.CachePath != "" {
		cached, cacheErr := os.ReadFile(s.CachePath)
		if cacheErr == nil {
			slog.Warn("ICS fetch failed, using cached feed", "error", err)
			return cached, nil
		}
	}
	return nil, fmt.Errorf("fetch ICS feed: %w", err)
}

// fetch downloads the feed body, bounded to 10 MiB.
func (s ICSSource) fetch(ctx context.Context) ([]byte, error) {
	const maxResponseBytes = 10 << 20

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", s.URL, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", s.URL, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", s.URL, maxResponseBytes)
	}
	return body, nil
}

// parse extracts the VEVENTs overlapping the local day containing now.
// Individual malformed events are skipped, not fatal.
func (s ICSSource) parse(body []byte, now time.Time) ([]Event, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ICS: %w", err)
	}

	calName := calendarName(cal)

	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var events []Event
	for _, ve := range cal.Events() {
		start, err := ve.GetStartAt()
		if err != nil {
			slog.Debug("skipping VEVENT without usable DTSTART", "error", err)
			continue
		}
		end, err := ve.GetEndAt()
		if err != nil || !end.After(start) {
			// DTEND is optional; zero-length events are pointless for status.
			continue
		}
		if !start.Before(dayEnd) || !end.After(dayStart) {
			continue
		}

		title := ""
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			title = p.Value
		}

		events = append(events, Event{
			Title:    title,
			Start:    start.UnixMilli(),
			End:      end.UnixMilli(),
			Calendar: calName,
			AllDay:   isAllDay(ve),
		})
	}
	return events, nil
}

// calendarName returns the feed's X-WR-CALNAME property, or empty.
func calendarName(cal *ical.Calendar) string {
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "X-WR-CALNAME") {
			return p.Value
		}
	}
	return ""
}

// isAllDay reports whether a VEVENT is date-only: DTSTART carries VALUE=DATE
// or has no time component.
func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}
