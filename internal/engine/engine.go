// Package engine is the table-level facade over one database file. It reads
// the schema table, and runs row operations through b-tree cursors so every
// write keeps the file readable by SQLite.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"goLite/internal/btree"
	"goLite/internal/config"
	"goLite/internal/pager"
	"goLite/internal/storage"
)

// DBEngine is the main database engine struct.
// Reads may run concurrently; writes are serialised.
type DBEngine struct {
	mu       sync.RWMutex
	pager    *pager.Pager
	log      *slog.Logger
	readOnly bool
	closed   bool
}

// Open opens (or creates) the database at path with the given settings.
func Open(path string, cfg config.Config, log *slog.Logger) (*DBEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	opts := cfg.PagerOptions()
	opts.Logger = log
	p, err := pager.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("engine: open: %w", err)
	}
	e := &DBEngine{
		pager:    p,
		log:      log.With("component", "engine"),
		readOnly: cfg.ReadOnly,
	}
	e.log.Debug("engine started", "path", path, "read_only", cfg.ReadOnly)
	return e, nil
}

// Close flushes pending writes and closes the file.
func (e *DBEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.pager.Close()
}

// Flush writes modified pages to disk and returns how many were written.
func (e *DBEngine) Flush() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return 0, err
	}
	return e.pager.Flush()
}

// Header returns the database header as of the last open or flush.
func (e *DBEngine) Header() storage.Header {
	return e.pager.Header()
}

// PageCount returns the number of pages, including ones not yet flushed.
func (e *DBEngine) PageCount() uint32 {
	return e.pager.PageCount()
}

// check validates the engine state for an operation. Callers hold e.mu.
func (e *DBEngine) check(write bool) error {
	if e.closed {
		return pager.ErrClosed
	}
	if write && e.readOnly {
		return pager.ErrReadOnly
	}
	return nil
}

func (e *DBEngine) tableCursor(root uint32) *btree.Cursor {
	return btree.NewTableCursor(e.pager, root)
}

func (e *DBEngine) indexCursor(root uint32) *btree.Cursor {
	return btree.NewIndexCursor(e.pager, root)
}
