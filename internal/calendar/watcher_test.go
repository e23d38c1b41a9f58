package calendar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tools.zach/dev/slackcal/internal/atomicfile"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
}

func waitForEvent(t *testing.T, w *Watcher) bool {
	t.Helper()
	select {
	case <-w.Events():
		return true
	case <-time.After(5 * time.Second):
		return false
	}
}

func TestWatcherDetectsWrite(t *testing.T) {
	w, path := newTestWatcher(t)

	if err := os.WriteFile(path, []byte(`[{"title":"Lunch","start":1,"end":2}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitForEvent(t, w) {
		t.Fatal("no event after file write")
	}
}

// Exporters typically replace the file atomically. The watcher monitors the
// parent directory so the rename still shows up.
func TestWatcherDetectsAtomicReplace(t *testing.T) {
	w, path := newTestWatcher(t)

	if err := atomicfile.Write(path, []byte(`[{"title":"Lunch","start":1,"end":2}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitForEvent(t, w) {
		t.Fatal("no event after atomic replace")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	w, path := newTestWatcher(t)

	other := filepath.Join(filepath.Dir(path), "unrelated.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Events():
		t.Fatal("got event for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	w := &Watcher{events: make(chan struct{}, 1)}
	for i := 0; i < 10; i++ {
		w.notify()
	}
	<-w.Events()
	select {
	case <-w.Events():
		t.Error("more than one pending event after a burst")
	default:
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, _ := newTestWatcher(t)
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
