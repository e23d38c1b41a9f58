// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile      = "slackcal.pid"
	ConfigFile   = "config.toml"
	LogFile      = "slackcal.log"
	StateFile    = "state.json"
	EventsFile   = "events.json"
	ICSCacheFile = "ics-cache.ics"
)

// Process identity.
const (
	BinaryName = "slackcal"
	DataDirRel = ".slackcal" // relative to $HOME
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// State returns the full path to the last-applied-profile state file.
func (d DataDir) State() string { return filepath.Join(d.Root, StateFile) }

// Events returns the full path to the default events file.
func (d DataDir) Events() string { return filepath.Join(d.Root, EventsFile) }

// ICSCache returns the full path to the cached ICS payload.
func (d DataDir) ICSCache() string { return filepath.Join(d.Root, ICSCacheFile) }

// Resolve joins a possibly-relative path onto the data directory. Absolute
// paths and the empty string are returned unchanged so config values can
// point anywhere on disk.
func (d DataDir) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Root, p)
}
