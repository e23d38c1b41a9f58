package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// ///////////////////////////////////////////////
// ParseLevel Tests
// ///////////////////////////////////////////////

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Handler Tests
// ///////////////////////////////////////////////

// syncBuffer guards a strings.Builder for concurrent handler writes.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

var lineRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z \[[A-Z]+\] `)

func TestHandlerFormat(t *testing.T) {
	var buf syncBuffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.Info("status applied", "text", "busy", "away", false)

	line := strings.TrimRight(buf.String(), "\r\n")
	if !lineRegexp.MatchString(line) {
		t.Errorf("line %q does not start with timestamp and level", line)
	}
	if !strings.Contains(line, "[INFO] status applied | text=busy, away=false") {
		t.Errorf("line = %q", line)
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf syncBuffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")
	log.Error("also visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("records below warn emitted: %q", out)
	}
	if !strings.Contains(out, "[WARN] visible") || !strings.Contains(out, "[ERROR] also visible") {
		t.Errorf("warn/error records missing: %q", out)
	}
}

func TestHandlerWithAttrs(t *testing.T) {
	var buf syncBuffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).With("source", "ics")

	log.Info("fetched", "events", 3)

	if !strings.Contains(buf.String(), "source=ics, events=3") {
		t.Errorf("pre-applied attrs missing: %q", buf.String())
	}
}

func TestHandlerWithGroup(t *testing.T) {
	var buf syncBuffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).WithGroup("slack")

	log.Info("applied", "presence", "away")

	if !strings.Contains(buf.String(), "slack.presence=away") {
		t.Errorf("group prefix missing: %q", buf.String())
	}
}

func TestHandlerNoAttrsOmitsSeparator(t *testing.T) {
	var buf syncBuffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo))

	log.Info("bare message")

	if strings.Contains(buf.String(), "|") {
		t.Errorf("separator emitted for record without attrs: %q", buf.String())
	}
}

func TestHandlerConcurrentWrites(t *testing.T) {
	var buf syncBuffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("tick", "when", time.Now().UnixNano())
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("line count = %d, want 20", len(lines))
	}
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if !lineRegexp.MatchString(line) {
			t.Errorf("interleaved or malformed line: %q", line)
		}
	}
}

func TestHandlerEnabled(t *testing.T) {
	h := NewHandler(&syncBuffer{}, slog.LevelInfo)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at info level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at info level")
	}
}
