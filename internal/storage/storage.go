// Package storage defines the page-level collaborator every B-tree cursor
// reads and writes through.
//
// Different implementations exist:
//   - memstore: pages held in memory (tests, scratch databases)
//   - pager: a database file with a page cache and optional async reads
package storage

import (
	"errors"
)

var (
	// ErrPageRange is returned for a page number outside the database.
	ErrPageRange = errors.New("storage: page out of range")
	// ErrBadHeader is returned when page 1 does not carry a valid database
	// header.
	ErrBadHeader = errors.New("storage: bad database header")
	// ErrUnsupported is returned for header settings this engine cannot
	// handle, such as a non UTF-8 text encoding.
	ErrUnsupported = errors.New("storage: unsupported database")
)

// Page is one fixed-size page of a database. Numbers are 1-based.
//
// A page handed out by Pager.ReadPage may still be loading; its Data and Err
// are only meaningful once Loaded reports true or Done is closed.
type Page struct {
	Number uint32

	data []byte
	err  error
	done chan struct{}
}

// loadedCh is the shared, already closed Done channel of loaded pages.
var loadedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewPage returns a page that has not been loaded yet.
func NewPage(n uint32) *Page {
	return &Page{Number: n, done: make(chan struct{})}
}

// NewLoadedPage returns a page already holding data.
func NewLoadedPage(n uint32, data []byte) *Page {
	return &Page{Number: n, data: data, done: loadedCh}
}

// Complete publishes the result of a load. It must be called exactly once.
func (p *Page) Complete(data []byte, err error) {
	p.data = data
	p.err = err
	close(p.done)
}

// Loaded reports whether the page's load has finished, successfully or not.
func (p *Page) Loaded() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done is closed once the page's load has finished.
func (p *Page) Done() <-chan struct{} { return p.done }

// Data returns the page bytes. Writers must call Pager.MarkDirty afterwards.
func (p *Page) Data() []byte { return p.data }

// Err returns the load error, if any.
func (p *Page) Err() error { return p.err }

// Pager hands out pages of one database.
type Pager interface {
	// PageSize returns the size of every page in bytes.
	PageSize() int

	// UsableSize returns the page size minus the per-page reserved bytes.
	UsableSize() int

	// PageCount returns the number of pages in the database.
	PageCount() uint32

	// ReadPage returns page n without blocking. The page may still be
	// loading; callers check Loaded and call Wait before retrying.
	ReadPage(n uint32) (*Page, error)

	// Load returns page n, blocking until it is loaded.
	Load(n uint32) (*Page, error)

	// Allocate appends a zeroed page to the database.
	Allocate() (*Page, error)

	// MarkDirty records that p's data was modified.
	MarkDirty(p *Page)

	// Wait blocks until every read started by ReadPage has completed.
	Wait() error
}
