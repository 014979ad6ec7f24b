// Package watcher detects that an externally owned SQLite database file has
// been modified by polling its filesystem metadata.
//
// Typical usage:
//
//	w, err := watcher.New("data/tasks.db", watcher.Options{Interval: time.Second})
//	go w.Run(ctx, func(c watcher.Change) { registry.Broadcast(hub.NewEvent(...)) })
//
// Detection is mtime based. A rewrite that lands within the same mtime tick
// and leaves the size unchanged is invisible unless Options.HashFallback is
// set, which also compares a hash of the SQLite and WAL headers.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// ErrInvalidInterval is returned by New for a non-positive poll interval.
var ErrInvalidInterval = errors.New("watcher: poll interval must be > 0")

const (
	// sqliteHeaderSize covers the file change counter (offset 24) and the
	// schema cookie (offset 40).
	sqliteHeaderSize = 100
	// walHeaderSize covers the checkpoint sequence number and salts, which
	// change only when the WAL restarts.
	walHeaderSize = 32
)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Required.
	Interval time.Duration
	// HashFallback also hashes the database and WAL headers on every tick
	// so that same-mtime rewrites are still detected.
	HashFallback bool
	// Logger overrides the default slog logger.
	Logger *slog.Logger

	stat func(name string) (os.FileInfo, error)
	now  func() time.Time
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.stat == nil {
		o.stat = os.Stat
	}
	if o.now == nil {
		o.now = time.Now
	}
}

// Change describes one observed modification.
type Change struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	// Replaced reports that the path now refers to a different file than at
	// the previous observation (restore from backup, delete and recreate).
	Replaced   bool      `json:"replaced"`
	DetectedAt time.Time `json:"detected_at"`
}

// fingerprint is everything compared between two ticks.
type fingerprint struct {
	modTime    time.Time
	size       int64
	walModTime time.Time
	walSize    int64
	hash       uint64
}

func (f fingerprint) equal(o fingerprint) bool {
	return f.modTime.Equal(o.modTime) &&
		f.size == o.size &&
		f.walModTime.Equal(o.walModTime) &&
		f.walSize == o.walSize &&
		f.hash == o.hash
}

// Watcher polls one database path. Run may be called once per Watcher.
type Watcher struct {
	path string
	opts Options

	checks      atomic.Int64
	changes     atomic.Int64
	errors      atomic.Int64
	consecutive atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Path              string `json:"path"`
	Checks            int64  `json:"checks"`
	ChangesDetected   int64  `json:"changes_detected"`
	Errors            int64  `json:"errors"`
	ConsecutiveErrors int64  `json:"consecutive_errors"`
}

// New creates a Watcher for path. Call Run to start polling.
func New(path string, opts Options) (*Watcher, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("%w (got %s)", ErrInvalidInterval, opts.Interval)
	}
	opts.defaults()
	return &Watcher{path: path, opts: opts}, nil
}

// Path returns the watched path.
func (w *Watcher) Path() string { return w.path }

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Path:              w.path,
		Checks:            w.checks.Load(),
		ChangesDetected:   w.changes.Load(),
		Errors:            w.errors.Load(),
		ConsecutiveErrors: w.consecutive.Load(),
	}
}

// Run blocks until ctx is cancelled, polling at opts.Interval. The first
// successful observation becomes the baseline; every later observation that
// differs from the baseline invokes onChange once and then becomes the new
// baseline, whatever onChange did.
func (w *Watcher) Run(ctx context.Context, onChange func(Change)) {
	log := w.opts.Logger

	var (
		baseline fingerprint
		baseInfo os.FileInfo
		haveBase bool
	)

	observe := func() {
		w.checks.Add(1)
		info, fp, err := w.read()
		if err != nil {
			n := w.consecutive.Add(1)
			w.errors.Add(1)
			if n == 1 {
				log.Warn("watcher: stat failed", "path", w.path, "error", err)
			} else {
				log.Debug("watcher: stat still failing", "path", w.path, "error", err, "consecutive", n)
			}
			return
		}
		if n := w.consecutive.Swap(0); n > 0 {
			log.Info("watcher: database readable again", "path", w.path, "failures", n)
		}

		if !haveBase {
			baseline, baseInfo, haveBase = fp, info, true
			log.Debug("watcher: baseline recorded", "path", w.path, "mtime", fp.modTime)
			return
		}
		if fp.equal(baseline) {
			return
		}

		c := Change{
			Path:       w.path,
			ModifiedAt: latest(fp.modTime, fp.walModTime),
			Size:       fp.size,
			Replaced:   !os.SameFile(baseInfo, info),
			DetectedAt: w.opts.now(),
		}
		w.changes.Add(1)
		log.Info("watcher: change detected", "path", w.path, "modified_at", c.ModifiedAt, "replaced", c.Replaced)

		baseline, baseInfo = fp, info
		onChange(c)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	log.Info("watcher: started", "path", w.path, "interval", w.opts.Interval, "hash_fallback", w.opts.HashFallback)

	// Seed the baseline immediately so the first tick can already detect.
	observe()

	for {
		select {
		case <-ctx.Done():
			log.Info("watcher: stopped", "path", w.path)
			return
		case <-ticker.C:
			observe()
		}
	}
}

func (w *Watcher) read() (os.FileInfo, fingerprint, error) {
	info, err := w.opts.stat(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	if info.IsDir() {
		return nil, fingerprint{}, fmt.Errorf("watcher: %s is a directory", w.path)
	}

	fp := fingerprint{modTime: info.ModTime(), size: info.Size()}
	if wal, err := w.opts.stat(w.path + "-wal"); err == nil {
		fp.walModTime = wal.ModTime()
		fp.walSize = wal.Size()
	}

	if w.opts.HashFallback {
		h, err := headerHash(w.path)
		if err != nil {
			return nil, fingerprint{}, err
		}
		fp.hash = h
	}
	return info, fp, nil
}

// headerHash hashes the SQLite file header and, when present, the WAL
// header. In rollback mode every commit rewrites the file change counter.
// WAL commits only append frames, so walSize catches them; the WAL header
// changes when the log restarts after a checkpoint.
func headerHash(path string) (uint64, error) {
	h := fnv.New64a()
	if err := hashPrefix(h, path, sqliteHeaderSize); err != nil {
		return 0, err
	}
	if err := hashPrefix(h, path+"-wal", walHeaderSize); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	return h.Sum64(), nil
}

func hashPrefix(w io.Writer, path string, n int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyN(w, f, n)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
