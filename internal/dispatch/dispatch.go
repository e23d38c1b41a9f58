// Package dispatch runs one pass of the presence pipeline: verify the Slack
// token, evaluate the working-hours policy, read today's calendar, pick the
// active event, compose its status profile, and apply it.
//
// A pass has exactly three outcomes. A fatal error (bad credentials, missing
// scopes, unreadable calendar, profile-set failure) is returned to the
// caller. A recoverable failure (snooze or presence call) is logged and the
// pass continues. Everything else, including "nothing to do", completes
// silently.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tools.zach/dev/slackcal/internal/atomicfile"
	"tools.zach/dev/slackcal/internal/calendar"
	"tools.zach/dev/slackcal/internal/config"
	"tools.zach/dev/slackcal/internal/slack"
	"tools.zach/dev/slackcal/internal/status"
)

// ///////////////////////////////////////////////
// Runner
// ///////////////////////////////////////////////

// PresenceClient is the subset of the Slack client the pipeline needs.
type PresenceClient interface {
	VerifyAuth(ctx context.Context) (*slack.AuthInfo, error)
	SnoozeNotifications(ctx context.Context, minutes int) error
	SetPresence(ctx context.Context, p slack.Presence) error
	SetProfile(ctx context.Context, p slack.ProfileUpdate) error
}

// Runner executes presence passes against a fixed configuration.
type Runner struct {
	Client PresenceClient
	Source calendar.Source
	Cfg    *config.Config
	Loc    *time.Location
	Log    *slog.Logger

	// StatePath stores the last applied profile hash for skip_unchanged.
	// Unused when the option is off.
	StatePath string

	// Now overrides the clock in tests. Nil means time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes one complete pass. The returned error, if any, is fatal for
// the pass; schedule mode logs it and waits for the next tick, one-shot mode
// exits nonzero.
func (r *Runner) Run(ctx context.Context) error {
	now := r.now().In(r.Loc)

	info, err := r.Client.VerifyAuth(ctx)
	if err != nil {
		return fmt.Errorf("verify slack auth: %w", err)
	}
	if missing := info.MissingScopes(slack.RequiredScopes); len(missing) > 0 {
		return fmt.Errorf("slack token for %s is missing scopes: %s", info.User, strings.Join(missing, ", "))
	}
	r.Log.Debug("authenticated", "user", info.User, "team", info.Team)

	if r.Cfg.Hours.Enabled {
		if p := status.Override(now, r.policy()); p != nil {
			r.Log.Info("outside working hours", "resume_text", p.Text)
			return r.apply(ctx, *p, 0)
		}
	}

	events, err := r.Source.Events(ctx, now.Unix())
	if err != nil {
		return fmt.Errorf("read calendar: %w", err)
	}

	active := calendar.SelectActive(events, now, r.Loc)
	if active == nil {
		r.Log.Debug("no active event", "events", len(events))
		return nil
	}

	cleanTitle, emojiCode := status.ParseTitle(active.Title, r.Cfg.Status.DefaultEmoji)
	res := status.Compose(cleanTitle, emojiCode, active.StartIn(r.Loc), active.EndIn(r.Loc), status.Options{
		Rules:            status.Rules(r.Cfg.Status.DNDToken, r.Cfg.Status.AwayToken, r.Cfg.Status.PrivateToken),
		BusyText:         r.Cfg.Status.BusyText,
		FlightEmoji:      r.Cfg.Status.FlightEmoji,
		Clock:            r.Cfg.Status.Clock,
		CalendarIncluded: r.Cfg.IncludesCalendar(active.Calendar),
	})
	if res == nil {
		r.Log.Debug("active event excluded from status", "calendar", active.Calendar)
		return nil
	}

	r.Log.Info("composed status",
		"text", res.Profile.Text,
		"emoji", res.Profile.Emoji,
		"away", res.Profile.Away,
		"snooze_minutes", res.SnoozeMinutes)

	return r.apply(ctx, res.Profile, res.SnoozeMinutes)
}

func (r *Runner) policy() status.Policy {
	sh, sm, _ := config.ParseTimeOfDay(r.Cfg.Hours.Start)
	eh, em, _ := config.ParseTimeOfDay(r.Cfg.Hours.End)
	return status.Policy{
		StartHour:   sh,
		StartMinute: sm,
		EndHour:     eh,
		EndMinute:   em,
		Emoji:       r.Cfg.Hours.AfterHoursEmoji,
		Clock:       r.Cfg.Status.Clock,
		Location:    r.Loc,
	}
}

// ///////////////////////////////////////////////
// Application
// ///////////////////////////////////////////////

// apply pushes the profile to Slack: snooze first, then presence, then the
// profile itself. Snooze and presence failures are logged and skipped; a
// profile failure is fatal because without it the run changed nothing the
// user can see.
func (r *Runner) apply(ctx context.Context, p status.Profile, snoozeMinutes int) error {
	if r.Cfg.Behavior.SkipUnchanged {
		if r.unchanged(p) {
			r.Log.Debug("profile unchanged, skipping")
			return nil
		}
	}

	if snoozeMinutes > 0 {
		if err := r.Client.SnoozeNotifications(ctx, snoozeMinutes); err != nil {
			r.Log.Warn("snooze failed", "minutes", snoozeMinutes, "error", err)
		}
	}

	presence := slack.PresenceAuto
	if p.Away {
		presence = slack.PresenceAway
	}
	if err := r.Client.SetPresence(ctx, presence); err != nil {
		r.Log.Warn("set presence failed", "presence", presence, "error", err)
	}

	update := slack.ProfileUpdate{Text: p.Text, Emoji: p.Emoji}
	if p.Expiration != nil {
		update.Expiration = *p.Expiration
	}
	if err := r.Client.SetProfile(ctx, update); err != nil {
		return fmt.Errorf("set profile: %w", err)
	}

	if r.Cfg.Behavior.SkipUnchanged {
		r.remember(p)
	}
	return nil
}

// ///////////////////////////////////////////////
// Skip-Unchanged State
// ///////////////////////////////////////////////

type appliedState struct {
	Version     int    `json:"version"`
	ProfileHash string `json:"profile_hash"`
}

func profileHash(p status.Profile) string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// unchanged reports whether p matches the last applied profile on disk.
// Any read problem counts as changed; the pass then applies and rewrites.
func (r *Runner) unchanged(p status.Profile) bool {
	data, err := os.ReadFile(r.StatePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.Log.Warn("read state failed", "path", r.StatePath, "error", err)
		}
		return false
	}
	var st appliedState
	if err := json.Unmarshal(data, &st); err != nil {
		return false
	}
	return st.ProfileHash == profileHash(p)
}

func (r *Runner) remember(p status.Profile) {
	st := appliedState{Version: 1, ProfileHash: profileHash(p)}
	data, _ := json.MarshalIndent(st, "", "  ")
	if err := atomicfile.Write(r.StatePath, data, 0o644); err != nil {
		r.Log.Warn("write state failed", "path", r.StatePath, "error", err)
	}
}
