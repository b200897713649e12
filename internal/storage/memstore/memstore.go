// Package memstore keeps a whole database image in memory and serves it
// through the storage.Pager interface.
package memstore

import (
	"fmt"
	"sync"

	"goLite/internal/storage"
)

// Store is an in-memory pager.
type Store struct {
	mu       sync.Mutex
	pageSize int
	reserved int
	pages    [][]byte
	open     map[uint32]*storage.Page

	// simulated async reads
	delay   bool
	pending []*storage.Page

	dirty   map[uint32]struct{}
	pendCnt int
}

// New creates a store holding an empty database.
func New(pageSize int) (*Store, error) {
	if !storage.ValidPageSize(pageSize) {
		return nil, fmt.Errorf("memstore: invalid page size %d", pageSize)
	}
	return FromImage(storage.NewDatabaseImage(pageSize))
}

// FromImage creates a store over a copy of a database file image.
func FromImage(img []byte) (*Store, error) {
	h, err := storage.ParseHeader(img)
	if err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}
	if len(img)%h.PageSize != 0 {
		return nil, fmt.Errorf("memstore: image of %d bytes is not a whole number of %d-byte pages", len(img), h.PageSize)
	}

	s := &Store{
		pageSize: h.PageSize,
		reserved: int(h.Reserved),
		open:     make(map[uint32]*storage.Page),
		dirty:    make(map[uint32]struct{}),
	}
	for off := 0; off < len(img); off += h.PageSize {
		page := make([]byte, h.PageSize)
		copy(page, img[off:])
		s.pages = append(s.pages, page)
	}
	return s, nil
}

// SimulatePending makes the first ReadPage of every page hand back an
// unloaded page that only Wait completes.
func (s *Store) SimulatePending(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = on
}

// PendingReads returns how many reads were reported as still loading.
func (s *Store) PendingReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendCnt
}

// Image returns a copy of the database with the header's page count
// brought up to date.
func (s *Store) Image() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, 0, len(s.pages)*s.pageSize)
	for _, p := range s.pages {
		out = append(out, p...)
	}
	h, err := storage.ParseHeader(out)
	if err == nil {
		h.PageCount = uint32(len(s.pages))
		h.Encode(out)
	}
	return out
}

// DirtyPages returns how many distinct pages were marked dirty.
func (s *Store) DirtyPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

func (s *Store) PageSize() int { return s.pageSize }

func (s *Store) UsableSize() int { return s.pageSize - s.reserved }

func (s *Store) PageCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.pages))
}

func (s *Store) ReadPage(n uint32) (*storage.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n == 0 || int(n) > len(s.pages) {
		return nil, fmt.Errorf("memstore: read page %d: %w", n, storage.ErrPageRange)
	}
	if p, ok := s.open[n]; ok {
		return p, nil
	}
	if s.delay {
		p := storage.NewPage(n)
		s.open[n] = p
		s.pending = append(s.pending, p)
		s.pendCnt++
		return p, nil
	}
	p := storage.NewLoadedPage(n, s.pages[n-1])
	s.open[n] = p
	return p, nil
}

func (s *Store) Load(n uint32) (*storage.Page, error) {
	p, err := s.ReadPage(n)
	if err != nil {
		return nil, err
	}
	if !p.Loaded() {
		if err := s.Wait(); err != nil {
			return nil, err
		}
	}
	return p, p.Err()
}

func (s *Store) Allocate() (*storage.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, s.pageSize)
	s.pages = append(s.pages, data)
	n := uint32(len(s.pages))
	p := storage.NewLoadedPage(n, data)
	s.open[n] = p
	s.dirty[n] = struct{}{}
	return p, nil
}

func (s *Store) MarkDirty(p *storage.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[p.Number] = struct{}{}
}

func (s *Store) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		p.Complete(s.pages[p.Number-1], nil)
	}
	s.pending = s.pending[:0]
	return nil
}

var _ storage.Pager = (*Store)(nil)
