package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyRotatingFile rotates workflow.log at midnight so a long-lived
// daemon doesn't grow one unbounded file. Day rollover is checked lazily,
// on Write, rather than by a background timer, since workflow.log is only
// ever written from engine event callbacks.
type DailyRotatingFile struct {
	mu       sync.Mutex
	dir      string
	basename string
	day      string
	f        *os.File
}

// NewDailyRotatingFile opens (or creates) "<dir>/<basename>" for today,
// rotating to a dated backup whenever Write first observes a new day.
func NewDailyRotatingFile(dir, basename string) (*DailyRotatingFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &DailyRotatingFile{dir: dir, basename: basename}
	if err := w.openToday(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *DailyRotatingFile) openToday() error {
	today := time.Now().Format("2006-01-02")
	path := filepath.Join(w.dir, w.basename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.day = today
	return nil
}

// Write implements io.Writer, rotating the backing file the first time a
// write crosses midnight.
func (w *DailyRotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, os.ErrClosed
	}

	today := time.Now().Format("2006-01-02")
	if today != w.day {
		if err := w.rotate(today); err != nil {
			return 0, err
		}
	}
	return w.f.Write(p)
}

func (w *DailyRotatingFile) rotate(today string) error {
	path := filepath.Join(w.dir, w.basename)
	backup := filepath.Join(w.dir, fmt.Sprintf("%s.%s", w.basename, w.day))
	if w.f != nil {
		w.f.Close()
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, backup)
	}
	return w.openToday()
}

// Close closes the underlying file. It is safe to call more than once.
func (w *DailyRotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
