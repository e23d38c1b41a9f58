package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"tools.zach/dev/slackcal/internal/calendar"
	"tools.zach/dev/slackcal/internal/config"
	"tools.zach/dev/slackcal/internal/slack"
)

// ///////////////////////////////////////////////
// Fakes
// ///////////////////////////////////////////////

type fakeClient struct {
	scopes []string

	authErr     error
	snoozeErr   error
	presenceErr error
	profileErr  error

	snoozeCalls   []int
	presenceCalls []slack.Presence
	profileCalls  []slack.ProfileUpdate
}

func (f *fakeClient) VerifyAuth(context.Context) (*slack.AuthInfo, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	scopes := f.scopes
	if scopes == nil {
		scopes = slack.RequiredScopes
	}
	return &slack.AuthInfo{UserID: "U1", User: "zach", Team: "t", Scopes: scopes}, nil
}

func (f *fakeClient) SnoozeNotifications(_ context.Context, minutes int) error {
	f.snoozeCalls = append(f.snoozeCalls, minutes)
	return f.snoozeErr
}

func (f *fakeClient) SetPresence(_ context.Context, p slack.Presence) error {
	f.presenceCalls = append(f.presenceCalls, p)
	return f.presenceErr
}

func (f *fakeClient) SetProfile(_ context.Context, p slack.ProfileUpdate) error {
	f.profileCalls = append(f.profileCalls, p)
	return f.profileErr
}

type fakeSource struct {
	events []calendar.Event
	err    error
}

func (f fakeSource) Events(context.Context, int64) ([]calendar.Event, error) {
	return f.events, f.err
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// tuesdayNoon is a weekday instant inside the default 09:00-17:00 window.
var tuesdayNoon = time.Date(2026, 1, 6, 12, 30, 0, 0, time.UTC)

func event(title string, start, end time.Time) calendar.Event {
	return calendar.Event{
		Title: title,
		Start: start.UnixMilli(),
		End:   end.UnixMilli(),
	}
}

func newRunner(t *testing.T, client *fakeClient, src calendar.Source, mutate func(*config.Config)) *Runner {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return &Runner{
		Client:    client,
		Source:    src,
		Cfg:       cfg,
		Loc:       time.UTC,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatePath: filepath.Join(t.TempDir(), "state.json"),
		Now:       func() time.Time { return tuesdayNoon },
	}
}

// ///////////////////////////////////////////////
// Tests
// ///////////////////////////////////////////////

func TestRunAppliesActiveEvent(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 13, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		event("Lunch with team [p]", start, end),
	}}, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.profileCalls) != 1 {
		t.Fatalf("profile calls = %d, want 1", len(client.profileCalls))
	}
	got := client.profileCalls[0]
	if got.Text != "busy from 12:00 to 13:00 pm UTC" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Emoji != ":calendar:" {
		t.Errorf("Emoji = %q", got.Emoji)
	}
	if got.Expiration != end.Unix() {
		t.Errorf("Expiration = %d, want %d", got.Expiration, end.Unix())
	}
	if len(client.presenceCalls) != 1 || client.presenceCalls[0] != slack.PresenceAuto {
		t.Errorf("presence calls = %v, want one auto", client.presenceCalls)
	}
	if len(client.snoozeCalls) != 0 {
		t.Errorf("snooze calls = %v, want none", client.snoozeCalls)
	}
}

func TestRunDNDAndAwayEvent(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		event("[dnd] Deep work [away]", start, end),
	}}, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.snoozeCalls) != 1 || client.snoozeCalls[0] != 120 {
		t.Errorf("snooze calls = %v, want [120]", client.snoozeCalls)
	}
	if len(client.presenceCalls) != 1 || client.presenceCalls[0] != slack.PresenceAway {
		t.Errorf("presence calls = %v, want one away", client.presenceCalls)
	}
	if len(client.profileCalls) != 1 {
		t.Fatalf("profile calls = %d, want 1", len(client.profileCalls))
	}
	if got := client.profileCalls[0]; got.Expiration != 0 {
		t.Errorf("Expiration = %d, want 0 for away status", got.Expiration)
	}
}

func TestRunSilentNoOps(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 13, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		events []calendar.Event
	}{
		{
			name: "no active event",
			events: []calendar.Event{
				event("Standup", start.Add(-3*time.Hour), end.Add(-3*time.Hour)),
			},
		},
		{
			name: "hotel stay",
			events: []calendar.Event{
				event("Stay at Grand Hotel", start, end),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			r := newRunner(t, client, fakeSource{events: tt.events}, nil)

			if err := r.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(client.profileCalls)+len(client.presenceCalls)+len(client.snoozeCalls) != 0 {
				t.Errorf("expected no mutations, got profile=%v presence=%v snooze=%v",
					client.profileCalls, client.presenceCalls, client.snoozeCalls)
			}
		})
	}
}

func TestRunFatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		source calendar.Source
	}{
		{
			name:   "auth failure",
			client: &fakeClient{authErr: errors.New("invalid_auth")},
			source: fakeSource{},
		},
		{
			name:   "missing scopes",
			client: &fakeClient{scopes: []string{"users:write"}},
			source: fakeSource{},
		},
		{
			name:   "calendar read failure",
			client: &fakeClient{},
			source: fakeSource{err: errors.New("exec failed")},
		},
		{
			name:   "empty calendar data",
			client: &fakeClient{},
			source: fakeSource{err: calendar.ErrNoData},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t, tt.client, tt.source, nil)
			if err := r.Run(context.Background()); err == nil {
				t.Fatal("Run: expected error")
			}
			if len(tt.client.profileCalls) != 0 {
				t.Errorf("profile calls = %v, want none", tt.client.profileCalls)
			}
		})
	}
}

func TestRunProfileFailureIsFatal(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 13, 0, 0, 0, time.UTC)
	client := &fakeClient{profileErr: errors.New("profile_set_failed")}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		event("Planning", start, end),
	}}, nil)

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run: expected error when profile set fails")
	}
}

func TestRunSnoozeAndPresenceFailuresAreRecoverable(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 13, 0, 0, 0, time.UTC)
	client := &fakeClient{
		snoozeErr:   errors.New("snooze_failed"),
		presenceErr: errors.New("presence_failed"),
	}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		event("[dnd] Focus", start, end),
	}}, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.profileCalls) != 1 {
		t.Errorf("profile calls = %d, want 1 despite snooze/presence failures", len(client.profileCalls))
	}
}

func TestRunAfterHoursOverride(t *testing.T) {
	client := &fakeClient{}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		// An active event that must NOT win: the hours guard runs first.
		event("Evening sync", tuesdayNoon.Add(-time.Hour), tuesdayNoon.Add(time.Hour)),
	}}, nil)
	r.Now = func() time.Time { return time.Date(2026, 1, 6, 21, 0, 0, 0, time.UTC) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.profileCalls) != 1 {
		t.Fatalf("profile calls = %d, want 1", len(client.profileCalls))
	}
	got := client.profileCalls[0]
	if got.Text != "After hours. Starts at Wed Jan 7 09:00 UTC" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Emoji != ":crescent_moon:" {
		t.Errorf("Emoji = %q", got.Emoji)
	}
	if got.Expiration != 0 {
		t.Errorf("Expiration = %d, want 0", got.Expiration)
	}
	if len(client.presenceCalls) != 1 || client.presenceCalls[0] != slack.PresenceAway {
		t.Errorf("presence calls = %v, want one away", client.presenceCalls)
	}
}

func TestRunHoursDisabledIgnoresClock(t *testing.T) {
	start := time.Date(2026, 1, 6, 20, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 22, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		event("Evening sync", start, end),
	}}, func(cfg *config.Config) {
		cfg.Hours.Enabled = false
	})
	r.Now = func() time.Time { return time.Date(2026, 1, 6, 21, 0, 0, 0, time.UTC) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.profileCalls) != 1 {
		t.Fatalf("profile calls = %d, want 1", len(client.profileCalls))
	}
	if got := client.profileCalls[0]; got.Text != "Evening sync from 20:00 to 22:00 pm UTC" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestRunExcludedCalendarIsRedacted(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 13, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	ev := event("Dentist appointment", start, end)
	ev.Calendar = "Personal"
	r := newRunner(t, client, fakeSource{events: []calendar.Event{ev}}, func(cfg *config.Config) {
		cfg.Calendar.Include = []string{"Work*"}
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.profileCalls) != 1 {
		t.Fatalf("profile calls = %d, want 1", len(client.profileCalls))
	}
	if got := client.profileCalls[0]; got.Text != "busy from 12:00 to 13:00 pm UTC" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestRunSkipUnchanged(t *testing.T) {
	start := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 13, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	r := newRunner(t, client, fakeSource{events: []calendar.Event{
		event("Planning", start, end),
	}}, func(cfg *config.Config) {
		cfg.Behavior.SkipUnchanged = true
	})

	for i := 0; i < 2; i++ {
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if len(client.profileCalls) != 1 {
		t.Errorf("profile calls = %d, want 1 (second pass skipped)", len(client.profileCalls))
	}

	// A different event invalidates the stored hash.
	r.Source = fakeSource{events: []calendar.Event{
		event("Retro", start, end),
	}}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.profileCalls) != 2 {
		t.Errorf("profile calls = %d, want 2 after event change", len(client.profileCalls))
	}
}
