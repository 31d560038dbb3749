package persistence

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const walFileName = "wal.log"

type Options struct {
	// Fsync syncs the file after every record.
	Fsync bool

	// Mirror, when set, receives a copy of the log on Commit.
	Mirror Mirror
}

// WAL is the append-only log of store mutations. Records are appended one
// per leaf write; Commit marks the end of one command and ships the log to
// the mirror when anything changed since the last commit.
type WAL struct {
	mu      sync.Mutex
	f       *os.File
	buf     *bufio.Writer
	opts    Options
	pending int
	total   int64
}

// WALPath returns the log location inside dir.
func WALPath(dir string) string {
	return filepath.Join(dir, walFileName)
}

func OpenWAL(dir string, opts Options) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(WALPath(dir), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &WAL{f: f, buf: bufio.NewWriter(f), opts: opts}, nil
}

// Append writes rec before the caller applies it to the store.
func (w *WAL) Append(rec Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("wal append %s %s: %w", rec.Op, rec.Key, err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("wal flush: %w", err)
	}
	if w.opts.Fsync {
		if err := w.f.Sync(); err != nil {
			return fmt.Errorf("wal sync: %w", err)
		}
	}
	w.pending++
	w.total++
	return nil
}

// Commit uploads the log to the mirror if records were appended since the
// last successful commit. A failed upload keeps them pending.
func (w *WAL) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.opts.Mirror == nil || w.pending == 0 {
		return nil
	}
	if err := w.opts.Mirror.Upload(ctx, w.f.Name()); err != nil {
		return err
	}
	w.pending = 0
	return nil
}

// Records returns how many records this handle appended.
func (w *WAL) Records() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

func (w *WAL) Path() string {
	return w.f.Name()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}
