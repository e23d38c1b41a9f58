package calendar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseEvents(t *testing.T) {
	t.Run("valid array", func(t *testing.T) {
		events, err := parseEvents([]byte(`[
			{"title": "Lunch [p]", "start": 1767700800000, "end": 1767704400000, "calendar": "Work"},
			{"title": "Conference", "start": 1767657600000, "end": 1767743999000, "allDay": true}
		]`))
		if err != nil {
			t.Fatalf("parseEvents: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("len = %d, want 2", len(events))
		}
		if events[0].Title != "Lunch [p]" || events[0].Calendar != "Work" {
			t.Errorf("first event = %+v", events[0])
		}
		if !events[1].AllDay {
			t.Error("second event should be all-day")
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		if _, err := parseEvents([]byte(`{"not": "an array"}`)); err == nil {
			t.Error("expected error for non-array document")
		}
	})
}

func TestFileSource(t *testing.T) {
	t.Run("reads events", func(t *testing.T) {
		path := writeFile(t, "events.json", `[{"title": "Lunch", "start": 1, "end": 2}]`)
		events, err := FileSource{Path: path}.Events(context.Background(), 0)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(events) != 1 || events[0].Title != "Lunch" {
			t.Errorf("events = %+v", events)
		}
	})

	t.Run("empty array is ErrNoData", func(t *testing.T) {
		path := writeFile(t, "events.json", `[]`)
		_, err := FileSource{Path: path}.Events(context.Background(), 0)
		if !errors.Is(err, ErrNoData) {
			t.Errorf("err = %v, want ErrNoData", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope.json")
		if _, err := (FileSource{Path: path}).Events(context.Background(), 0); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script helpers are not portable to windows")
	}
	path := filepath.Join(t.TempDir(), "exporter.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecSource(t *testing.T) {
	t.Run("passes now as last argument", func(t *testing.T) {
		script := writeScript(t, `printf '[{"title":"tick %s","start":1,"end":2}]' "$1"`)
		events, err := ExecSource{Command: script}.Events(context.Background(), 1767700800)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if want := "tick 1767700800"; events[0].Title != want {
			t.Errorf("Title = %q, want %q", events[0].Title, want)
		}
	})

	t.Run("stderr appears in the error", func(t *testing.T) {
		script := writeScript(t, `echo "exporter broke" >&2; exit 3`)
		_, err := ExecSource{Command: script}.Events(context.Background(), 0)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "exporter broke") {
			t.Errorf("err = %v, want stderr message included", err)
		}
	})

	t.Run("empty output is ErrNoData", func(t *testing.T) {
		script := writeScript(t, `printf '[]'`)
		_, err := ExecSource{Command: script}.Events(context.Background(), 0)
		if !errors.Is(err, ErrNoData) {
			t.Errorf("err = %v, want ErrNoData", err)
		}
	})

	t.Run("empty command", func(t *testing.T) {
		if _, err := (ExecSource{}).Events(context.Background(), 0); err == nil {
			t.Error("expected error for empty command")
		}
	})
}
