// Package main implements slackcal, which reads the day's calendar events
// and publishes a matching Slack status, presence, and notification snooze.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	rootpkg "tools.zach/dev/slackcal"
	"tools.zach/dev/slackcal/internal/calendar"
	"tools.zach/dev/slackcal/internal/config"
	"tools.zach/dev/slackcal/internal/dispatch"
	"tools.zach/dev/slackcal/internal/logger"
	"tools.zach/dev/slackcal/internal/paths"
	"tools.zach/dev/slackcal/internal/slack"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at [DataPaths.PID], acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of schedule mode to hold the lock; pass
// it to [removePID] on shutdown.
func writePID(paths DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(paths.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes
// the PID file only if the stored token matches, preventing accidental
// removal of a file owned by a different instance.
func removePID(paths DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(paths.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(paths.PID())
	}
}

// checkStalePID checks whether another scheduled instance is running. It
// attempts to acquire the advisory lock on the PID file; if the lock fails,
// another instance holds it. If the lock succeeds, any previous instance is
// dead and the stale file is cleaned up.
func checkStalePID(paths DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(paths.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(paths.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(paths.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Source Construction
// ///////////////////////////////////////////////

// buildSource constructs the calendar source selected by the configuration.
// Relative file paths resolve against the data directory.
func buildSource(cfg *config.Config, dataPaths DataPaths, loc *time.Location) (calendar.Source, error) {
	switch cfg.Calendar.Source {
	case "command":
		return calendar.ExecSource{Command: cfg.Calendar.Command}, nil
	case "file":
		return calendar.FileSource{Path: dataPaths.Resolve(cfg.Calendar.File)}, nil
	case "ics":
		return calendar.ICSSource{
			URL:       cfg.Calendar.ICSURL,
			File:      dataPaths.Resolve(cfg.Calendar.ICSFile),
			CachePath: dataPaths.ICSCache(),
			Location:  loc,
		}, nil
	default:
		return nil, fmt.Errorf("unknown calendar source %q", cfg.Calendar.Source)
	}
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for slackcal data,
// typically ~/.slackcal. Falls back to ./.slackcal if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, state, and logs")
	schedule := flag.String("schedule", "", "Cron expression; stay resident and run on this schedule (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(paths.BinaryName + " " + resolveVersion())
		return
	}

	dataPaths := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dataPaths.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(dataPaths.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dataPaths.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dataPaths.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}
	if *schedule != "" {
		cfg.Behavior.Schedule = *schedule
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser, err := logger.NewLogger(dataPaths.Log(), logLevel, cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Hours.Timezone, "error", err)
		os.Exit(1)
	}

	source, err := buildSource(cfg, dataPaths, loc)
	if err != nil {
		slog.Error("invalid calendar source", "error", err)
		os.Exit(1)
	}

	runner := &dispatch.Runner{
		Client:    slack.NewClient(cfg.Slack.Token),
		Source:    source,
		Cfg:       cfg,
		Loc:       loc,
		Log:       log,
		StatePath: dataPaths.State(),
	}

	slog.Info("slackcal starting",
		"version", resolveVersion(),
		"data_dir", dataPaths.Root,
		"source", cfg.Calendar.Source,
		"schedule", cfg.Behavior.Schedule)

	if cfg.Behavior.Schedule == "" {
		if err := runOnce(runner); err != nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runScheduled(runner, cfg, dataPaths); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// passTimeout bounds a single pipeline pass: a handful of HTTP calls plus at
// most one calendar fetch.
const passTimeout = 60 * time.Second

// runOnce executes a single pipeline pass, the default invocation mode.
func runOnce(runner *dispatch.Runner) error {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	return runner.Run(ctx)
}

// ///////////////////////////////////////////////
// Schedule Mode
// ///////////////////////////////////////////////

// runScheduled stays resident and executes the pipeline on the configured
// cron schedule until an OS signal arrives. Pass failures are logged, never
// fatal: the next tick gets a fresh attempt. With behavior.watch enabled on a
// file source, edits to the events file also trigger a pass.
func runScheduled(runner *dispatch.Runner, cfg *config.Config, dataPaths DataPaths) error {
	if alive, pid := checkStalePID(dataPaths); alive {
		return fmt.Errorf("already running (pid %d)", pid)
	}
	token := pidToken()
	pidFile, err := writePID(dataPaths, token)
	if err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer removePID(dataPaths, token, pidFile)

	pass := func() {
		if err := runOnce(runner); err != nil {
			slog.Error("scheduled run failed", "error", err)
		}
	}

	c := cron.New(cron.WithLocation(runner.Loc))
	if _, err := c.AddFunc(cfg.Behavior.Schedule, pass); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Behavior.Schedule, err)
	}

	watchCh := make(<-chan struct{})
	if cfg.Behavior.Watch && cfg.Calendar.Source == "file" {
		watcher, watchErr := calendar.NewWatcher(dataPaths.Resolve(cfg.Calendar.File))
		if watchErr != nil {
			slog.Warn("watch disabled", "error", watchErr)
		} else {
			defer watcher.Close()
			if watcher.Polling() {
				slog.Info("using polling mode for file watching")
			}
			watchCh = watcher.Events()
		}
	}

	// Apply the current state immediately rather than waiting for the first tick.
	pass()

	c.Start()
	defer c.Stop()

	sigCh := signalChannel()
	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			return nil
		case <-watchCh:
			slog.Debug("events file changed")
			pass()
		}
	}
}
