// Package config provides configuration loading and defaults for slackcal.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package covers the Slack credential, the calendar source selection,
// status composition conventions (annotation tokens, emoji codes, clock
// style), the working-hours policy, and process behavior, with sensible
// defaults for everything but the token.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/slackcal/internal/atomicfile"
	"tools.zach/dev/slackcal/internal/migrate"
	"tools.zach/dev/slackcal/internal/paths"
)

// TokenEnvVar is the environment variable consulted for the Slack credential
// when the config file leaves [SlackConfig.Token] empty. Keeping the token
// out of the file entirely is the recommended setup.
const TokenEnvVar = "SLACK_TOKEN"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Slack holds presence-service credentials.
	Slack SlackConfig `toml:"slack"`
	// Calendar holds event source settings and the calendar privacy filter.
	Calendar CalendarConfig `toml:"calendar"`
	// Status holds status composition conventions.
	Status StatusConfig `toml:"status"`
	// Hours holds the working-hours policy.
	Hours HoursConfig `toml:"hours"`
	// Behavior holds process behavior settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// SlackConfig holds presence-service credentials.
type SlackConfig struct {
	// Token is the Slack user OAuth token (xoxp-...). When empty, the
	// SLACK_TOKEN environment variable is used instead.
	Token string `toml:"token"`
}

// CalendarConfig holds event source settings and the calendar privacy filter.
type CalendarConfig struct {
	// Source selects how today's events are obtained: "command", "file", or "ics".
	Source string `toml:"source"`
	// Command is the program run for source "command"; it must print today's
	// events as JSON on stdout.
	Command string `toml:"command,omitempty"`
	// File is the events JSON path for source "file", relative to the data dir.
	File string `toml:"file,omitempty"`
	// ICSURL is the ICS feed URL for source "ics".
	ICSURL string `toml:"ics_url,omitempty"`
	// ICSFile is a local ICS file path for source "ics"; takes precedence over ICSURL.
	ICSFile string `toml:"ics_file,omitempty"`
	// Include lists calendar-name glob patterns. When non-empty, events from
	// calendars that match no pattern have their status redacted to the busy
	// text. Empty means no filtering.
	Include []string `toml:"include"`
}

// StatusConfig holds status composition conventions.
type StatusConfig struct {
	// DNDToken marks an event whose span should snooze Slack notifications.
	DNDToken string `toml:"dnd_token"`
	// AwayToken marks an event during which presence is forced to away.
	AwayToken string `toml:"away_token"`
	// PrivateToken redacts the event title to the busy text.
	PrivateToken string `toml:"private_token"`
	// BusyText is the replacement title for redacted events.
	BusyText string `toml:"busy_text"`
	// DefaultEmoji is the status emoji code used when the title carries none.
	DefaultEmoji string `toml:"default_emoji"`
	// FlightEmoji is the emoji code forced onto "Flight to" events.
	FlightEmoji string `toml:"flight_emoji"`
	// Clock selects the time-range clock style: "24h" or "12h".
	Clock string `toml:"clock"`
}

// HoursConfig holds the working-hours policy.
type HoursConfig struct {
	// Enabled turns the working-hours override on. When false, the calendar
	// alone drives the status at any hour.
	Enabled bool `toml:"enabled"`
	// Start is the start-of-work time of day, "HH:MM".
	Start string `toml:"start"`
	// End is the end-of-work time of day, "HH:MM".
	End string `toml:"end"`
	// Timezone is the IANA time zone identifier all instants are localized to.
	Timezone string `toml:"timezone"`
	// AfterHoursEmoji is the status emoji code for the after-hours override.
	AfterHoursEmoji string `toml:"after_hours_emoji"`
}

// BehaviorConfig holds process behavior settings.
type BehaviorConfig struct {
	// SkipUnchanged suppresses the Slack calls when the composed profile is
	// identical to the one applied by the previous run. Off by default: the
	// pipeline is idempotent, so re-applying is safe and keeps Slack
	// authoritative even if someone edited the status by hand.
	SkipUnchanged bool `toml:"skip_unchanged"`
	// Schedule is a cron expression; when set, the process stays resident and
	// runs on that schedule instead of exiting after one pass.
	Schedule string `toml:"schedule,omitempty"`
	// Watch re-runs the pipeline when the events file changes. Only applies
	// to the "file" calendar source, and only in schedule mode.
	Watch bool `toml:"watch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Slack:   SlackConfig{},
		Calendar: CalendarConfig{
			Source:  "file",
			File:    paths.EventsFile,
			Include: []string{},
		},
		Status: StatusConfig{
			DNDToken:     "[dnd]",
			AwayToken:    "[away]",
			PrivateToken: "[p]",
			BusyText:     "busy",
			DefaultEmoji: ":calendar:",
			FlightEmoji:  ":airplane:",
			Clock:        "24h",
		},
		Hours: HoursConfig{
			Enabled:         true,
			Start:           "09:00",
			End:             "17:00",
			Timezone:        "UTC",
			AfterHoursEmoji: ":crescent_moon:",
		},
		Behavior: BehaviorConfig{
			SkipUnchanged: false,
			Watch:         false,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
// For this project all defaults are good examples.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig. The Slack token falls
// back to the SLACK_TOKEN environment variable when the file leaves it empty.
func Load(dataDir string) (*Config, error) {
	path := paths.DataDir{Root: dataDir}.Config()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)

	// Apply migrations if needed
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		// Write backup before migration
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Re-save after migration
	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// applyEnv fills credential fields from the environment. The file value wins
// when both are set.
func applyEnv(cfg *Config) {
	if cfg.Slack.Token == "" {
		cfg.Slack.Token = os.Getenv(TokenEnvVar)
	}
}

// Save writes the config to disk as TOML using atomic file write. The token
// is never written back: round-tripping a credential that arrived via the
// environment into a world-readable file would leak it.
func (c *Config) Save(path string) error {
	copy := *c
	copy.Slack.Token = ""
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(&copy); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o600)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch c.Calendar.Source {
	case "command", "file", "ics":
	default:
		return fmt.Errorf("invalid calendar.source %q: must be command, file, or ics", c.Calendar.Source)
	}

	switch c.Calendar.Source {
	case "command":
		if strings.TrimSpace(c.Calendar.Command) == "" {
			return fmt.Errorf("calendar.source is \"command\" but calendar.command is empty")
		}
	case "file":
		if c.Calendar.File == "" {
			return fmt.Errorf("calendar.source is \"file\" but calendar.file is empty")
		}
	case "ics":
		if c.Calendar.ICSURL == "" && c.Calendar.ICSFile == "" {
			return fmt.Errorf("calendar.source is \"ics\" but neither ics_url nor ics_file is set")
		}
	}

	for _, pattern := range c.Calendar.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid calendar.include pattern %q", pattern)
		}
	}

	switch c.Status.Clock {
	case "24h", "12h":
	default:
		return fmt.Errorf("invalid status.clock %q: must be 24h or 12h", c.Status.Clock)
	}

	for name, tok := range map[string]string{
		"status.dnd_token":     c.Status.DNDToken,
		"status.away_token":    c.Status.AwayToken,
		"status.private_token": c.Status.PrivateToken,
	} {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	if !strings.HasPrefix(c.Status.DefaultEmoji, ":") || !strings.HasSuffix(c.Status.DefaultEmoji, ":") {
		return fmt.Errorf("invalid status.default_emoji %q: must be a :code:", c.Status.DefaultEmoji)
	}

	if _, _, err := ParseTimeOfDay(c.Hours.Start); err != nil {
		return fmt.Errorf("invalid hours.start: %w", err)
	}
	startH, startM, _ := ParseTimeOfDay(c.Hours.Start)
	endH, endM, err := ParseTimeOfDay(c.Hours.End)
	if err != nil {
		return fmt.Errorf("invalid hours.end: %w", err)
	}
	if endH*60+endM <= startH*60+startM {
		return fmt.Errorf("hours.end %q must be after hours.start %q", c.Hours.End, c.Hours.Start)
	}

	if _, err := time.LoadLocation(c.Hours.Timezone); err != nil {
		return fmt.Errorf("invalid hours.timezone %q: %w", c.Hours.Timezone, err)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// Location resolves the configured time zone. Validate guarantees this
// succeeds for a loaded config.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Hours.Timezone)
}

// IncludesCalendar reports whether an event from the named calendar may show
// its real title. True when no filter is configured, when the event carries
// no calendar name, or when the name matches an include pattern.
func (c *Config) IncludesCalendar(name string) bool {
	if len(c.Calendar.Include) == 0 || name == "" {
		return true
	}
	for _, pattern := range c.Calendar.Include {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			slog.Warn("invalid include pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseTimeOfDay parses an "HH:MM" string into hour and minute components.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q: bad hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q: bad minute", s)
	}
	return hour, minute, nil
}
