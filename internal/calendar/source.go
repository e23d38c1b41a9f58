package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Source Boundary
// ///////////////////////////////////////////////

// Source produces today's events for a given instant. Implementations wrap
// an external collaborator; a failure to produce any data at all is an error,
// while "events exist but none is active right now" is the caller's concern.
type Source interface {
	Events(ctx context.Context, now int64) ([]Event, error)
}

// ErrNoData is returned when a source yields zero events. An exporter that
// knows about today always reports something (even just all-day entries), so
// an empty result almost always means the tooling upstream is broken.
var ErrNoData = errors.New("calendar source returned no events")

// parseEvents decodes the collaborator's JSON document: a bare array of
// event records.
func parseEvents(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse events JSON: %w", err)
	}
	return events, nil
}

// ///////////////////////////////////////////////
// File Source
// ///////////////////////////////////////////////

// FileSource reads today's events from a JSON file maintained by an external
// exporter.
type FileSource struct {
	// Path is the events JSON file location.
	Path string
}

// Events reads and parses the events file.
func (s FileSource) Events(_ context.Context, _ int64) ([]Event, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	events, err := parseEvents(data)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoData
	}
	return events, nil
}

// ///////////////////////////////////////////////
// Command Source
// ///////////////////////////////////////////////

// ExecSource runs an external exporter program that prints today's events as
// JSON on stdout. The configured command line is split on whitespace (no
// shell interpretation) and the current Unix time is appended as the last
// argument so the exporter knows which "today" is meant.
type ExecSource struct {
	// Command is the exporter command line.
	Command string
}

// Events invokes the exporter and parses its stdout.
func (s ExecSource) Events(ctx context.Context, now int64) ([]Event, error) {
	argv := strings.Fields(s.Command)
	if len(argv) == 0 {
		return nil, errors.New("empty calendar command")
	}
	argv = append(argv, strconv.FormatInt(now, 10))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", argv[0], err)
	}

	events, err := parseEvents(out)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoData
	}
	return events, nil
}
