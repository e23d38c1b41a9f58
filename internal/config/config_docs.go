package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "calendar.source")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── Slack ────────────────────────────────────────────────────
	"slack.token": {
		Comment: "Slack user OAuth token (xoxp-...).\nLeave empty to read it from the SLACK_TOKEN environment variable instead;\nthe token is never written back to this file.\nRequired scopes: users.profile:write, users:write, dnd:write.",
	},

	// ── Calendar ─────────────────────────────────────────────────
	"calendar.source": {
		Comment: "Where today's events come from.\n  command = run an external program that prints events JSON on stdout\n  file    = read events JSON written by an external exporter\n  ics     = fetch an ICS feed (or read a local .ics file)",
		Alternatives: []string{
			`source = "command"`,
			`source = "ics"`,
		},
	},
	"calendar.command": {
		Comment: "Program for source = \"command\". Run once per tick with the current\nUnix time appended as its last argument.",
		Alternatives: []string{
			`command = "gcalcli-export --today"`,
		},
	},
	"calendar.file": {
		Comment: "Events JSON path for source = \"file\", relative to the data directory.",
	},
	"calendar.ics_url": {
		Comment: "ICS feed settings for source = \"ics\". ics_file wins when both are set.",
		Alternatives: []string{
			`ics_url = "https://calendar.google.com/calendar/ical/.../basic.ics"`,
		},
	},
	"calendar.ics_file": {
		Alternatives: []string{
			`ics_file = "/path/to/calendar.ics"`,
		},
	},
	"calendar.include": {
		Comment: "Calendar-name patterns (doublestar globs) allowed to show real titles.\nEvents from calendars matching no pattern still count as busy, but their\ntitle is redacted. Empty list = show everything.",
		Alternatives: []string{
			`include = ["Work", "Team *"]`,
		},
	},

	// ── Status ───────────────────────────────────────────────────
	"status.dnd_token": {
		Comment: "Annotation tokens matched case-insensitively anywhere in an event title.\n[dnd]  = snooze Slack notifications for the event's duration\n[away] = show as away (status gets no expiration)\n[p]    = redact the title to busy_text",
	},
	"status.busy_text": {
		Comment: "Replacement title for redacted events.",
	},
	"status.default_emoji": {
		Comment: "Status emoji used when the event title has no leading emoji.",
	},
	"status.flight_emoji": {
		Comment: "Emoji forced onto \"Flight to ...\" events.",
	},
	"status.clock": {
		Comment: "Clock style for the appended time range: \"24h\" or \"12h\".",
		Alternatives: []string{
			`clock = "12h"`,
		},
	},

	// ── Hours ────────────────────────────────────────────────────
	"hours.enabled": {
		Comment: "Outside start..end on weekdays, and all weekend, an \"After hours\"\nstatus replaces the calendar entirely. Disable to let the calendar\ndrive the status around the clock.",
	},
	"hours.timezone": {
		Comment: "IANA time zone all event times are localized to before comparison.",
		Alternatives: []string{
			`timezone = "America/New_York"`,
		},
	},
	"hours.after_hours_emoji": {},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.skip_unchanged": {
		Comment: "Skip the Slack calls when the composed profile is identical to the one\napplied on the previous run (tracked in state.json). The pipeline is\nidempotent, so leaving this off is always safe.",
	},
	"behavior.schedule": {
		Comment: "Cron expression; when set, the process stays resident and runs on this\nschedule instead of exiting after a single pass.",
		Alternatives: []string{
			`schedule = "*/5 * * * *"`,
		},
	},
	"behavior.watch": {
		Comment: "Re-run when the events file changes (file source, schedule mode only).",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level: debug, info, warn, error.",
	},
	"log.max_size_mb": {
		Comment: "Log file size before rotation.",
	},
}
