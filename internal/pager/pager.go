// Package pager serves the pages of a database file with a bounded page cache
// and optional asynchronous reads.
package pager

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/zeebo/xxh3"

	"goLite/internal/storage"
)

// ErrReadOnly is returned by writes on a pager opened read-only.
var ErrReadOnly = errors.New("pager: read-only")

// ErrClosed is returned by calls on a closed pager.
var ErrClosed = errors.New("pager: closed")

// Options configure Open.
type Options struct {
	// PageSize is used when creating a database; existing files keep theirs.
	PageSize int
	// CachePages bounds the number of clean pages kept in memory.
	CachePages int
	// AsyncIO makes ReadPage return immediately and load on a worker pool.
	AsyncIO bool
	// Workers sizes the worker pool when AsyncIO is set.
	Workers  int
	ReadOnly bool
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Pager implements storage.Pager over a database file.
type Pager struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	readOnly bool
	closed   bool

	header   storage.Header
	pageSize int
	count    uint32

	cache    *lru.Cache[uint32, *storage.Page]
	dirty    map[uint32]*storage.Page
	hashes   map[uint32]uint64
	inflight map[uint32]*storage.Page

	pool *ants.Pool

	log     *slog.Logger
	metrics *Metrics
}

// Open opens the database at path, creating an empty one if the file is
// missing or empty.
func Open(path string, opts Options) (*Pager, error) {
	if opts.PageSize == 0 {
		opts.PageSize = storage.DefaultPageSize
	}
	if opts.CachePages <= 0 {
		opts.CachePages = 2000
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if !storage.ValidPageSize(opts.PageSize) {
		return nil, fmt.Errorf("pager: invalid page size %d", opts.PageSize)
	}

	flag := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	p := &Pager{
		file:     f,
		path:     path,
		readOnly: opts.ReadOnly,
		dirty:    make(map[uint32]*storage.Page),
		hashes:   make(map[uint32]uint64),
		inflight: make(map[uint32]*storage.Page),
		log:      opts.Logger.With("component", "pager", "path", path),
		metrics:  opts.Metrics,
	}
	if err := p.init(opts.PageSize); err != nil {
		f.Close()
		return nil, err
	}

	p.cache, err = lru.NewWithEvict(opts.CachePages, func(_ uint32, _ *storage.Page) {
		p.metrics.Evictions.Inc()
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: cache: %w", err)
	}

	if opts.AsyncIO {
		p.pool, err = ants.NewPool(opts.Workers,
			ants.WithNonblocking(true),
			ants.WithPanicHandler(func(v any) {
				p.log.Error("page read panicked", "panic", v)
			}))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: worker pool: %w", err)
		}
	}

	p.log.Debug("opened database",
		"page_size", p.pageSize, "pages", p.count, "async", opts.AsyncIO)
	return p, nil
}

func (p *Pager) init(pageSize int) error {
	st, err := p.file.Stat()
	if err != nil {
		return fmt.Errorf("pager: stat: %w", err)
	}
	if st.Size() == 0 {
		if p.readOnly {
			return fmt.Errorf("pager: %s is empty: %w", p.path, ErrReadOnly)
		}
		img := storage.NewDatabaseImage(pageSize)
		if _, err := p.file.WriteAt(img, 0); err != nil {
			return fmt.Errorf("pager: create: %w", err)
		}
		if err := p.file.Sync(); err != nil {
			return fmt.Errorf("pager: create: %w", err)
		}
		st, _ = p.file.Stat()
	}

	buf := make([]byte, storage.HeaderSize)
	if _, err := p.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("pager: read header: %w", err)
	}
	h, err := storage.ParseHeader(buf)
	if err != nil {
		return fmt.Errorf("pager: %w", err)
	}
	p.header = h
	p.pageSize = h.PageSize

	// The header's page count is only trusted while it was written by the
	// same change as the counter.
	p.count = h.PageCount
	if h.VersionValidFor != h.ChangeCounter || h.PageCount == 0 {
		p.count = uint32(st.Size() / int64(h.PageSize))
	}
	return nil
}

// Header returns the header as of the last open or flush.
func (p *Pager) Header() storage.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.header
}

func (p *Pager) PageSize() int { return p.pageSize }

func (p *Pager) UsableSize() int { return p.header.UsableSize() }

func (p *Pager) PageCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *Pager) ReadPage(n uint32) (*storage.Page, error) {
	p.mu.Lock()
	if pg, ok, err := p.lookup(n); ok || err != nil {
		p.mu.Unlock()
		return pg, err
	}
	if p.pool == nil {
		defer p.mu.Unlock()
		data, err := p.readAt(n)
		if err != nil {
			return nil, err
		}
		pg := storage.NewLoadedPage(n, data)
		p.admit(n, pg, data)
		return pg, nil
	}
	pg := storage.NewPage(n)
	p.inflight[n] = pg
	p.mu.Unlock()

	err := p.pool.Submit(func() { p.complete(pg) })
	if err == nil {
		p.metrics.PendingReads.Inc()
		return pg, nil
	}
	// Pool saturated or released: read inline.
	p.log.Warn("async read rejected", "page", n, "err", err)
	p.complete(pg)
	if pg.Err() != nil {
		return nil, pg.Err()
	}
	return pg, nil
}

// lookup finds page n among the pages already in memory. Callers hold p.mu.
func (p *Pager) lookup(n uint32) (*storage.Page, bool, error) {
	if p.closed {
		return nil, false, ErrClosed
	}
	if n == 0 || n > p.count {
		return nil, false, fmt.Errorf("pager: read page %d of %d: %w", n, p.count, storage.ErrPageRange)
	}
	if pg, ok := p.dirty[n]; ok {
		return pg, true, nil
	}
	if pg, ok := p.cache.Get(n); ok {
		p.metrics.CacheHits.Inc()
		return pg, true, nil
	}
	if pg, ok := p.inflight[n]; ok {
		return pg, true, nil
	}
	return nil, false, nil
}

// complete reads an in-flight page and publishes the result. The page stays
// in inflight until it is loaded, so Wait always sees it.
func (p *Pager) complete(pg *storage.Page) {
	data, err := p.readAt(pg.Number)
	p.mu.Lock()
	if err == nil {
		p.admit(pg.Number, pg, data)
	}
	p.mu.Unlock()
	pg.Complete(data, err)

	p.mu.Lock()
	if p.inflight[pg.Number] == pg {
		delete(p.inflight, pg.Number)
	}
	p.mu.Unlock()
}

// admit caches a freshly read page. Callers hold p.mu.
func (p *Pager) admit(n uint32, pg *storage.Page, data []byte) {
	p.hashes[n] = xxh3.Hash(data)
	p.cache.Add(n, pg)
}

func (p *Pager) readAt(n uint32) ([]byte, error) {
	data := make([]byte, p.pageSize)
	_, err := p.file.ReadAt(data, int64(n-1)*int64(p.pageSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("pager: read page %d: %w", n, err)
	}
	p.metrics.PageReads.Inc()
	return data, nil
}

func (p *Pager) Load(n uint32) (*storage.Page, error) {
	pg, err := p.ReadPage(n)
	if err != nil {
		return nil, err
	}
	<-pg.Done()
	return pg, pg.Err()
}

func (p *Pager) Allocate() (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readOnly {
		return nil, ErrReadOnly
	}
	p.count++
	pg := storage.NewLoadedPage(p.count, make([]byte, p.pageSize))
	p.dirty[p.count] = pg
	return pg, nil
}

func (p *Pager) MarkDirty(pg *storage.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty[pg.Number] = pg
}

// Wait blocks until every asynchronous read started before the call has
// completed.
func (p *Pager) Wait() error {
	p.mu.Lock()
	pending := make([]*storage.Page, 0, len(p.inflight))
	for _, pg := range p.inflight {
		pending = append(pending, pg)
	}
	p.mu.Unlock()
	for _, pg := range pending {
		<-pg.Done()
	}
	return nil
}

// Flush writes every dirty page whose content changed since it was read and
// bumps the change counter. It returns the number of pages written.
func (p *Pager) Flush() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readOnly {
		if len(p.dirty) > 0 {
			return 0, ErrReadOnly
		}
		return 0, nil
	}

	var changed []uint32
	for n, pg := range p.dirty {
		if h, ok := p.hashes[n]; ok && h == xxh3.Hash(pg.Data()) {
			continue
		}
		changed = append(changed, n)
	}
	if len(changed) == 0 && p.header.PageCount == p.count {
		p.clearDirty()
		return 0, nil
	}

	first, err := p.headerPage()
	if err != nil {
		return 0, err
	}
	h, err := storage.ParseHeader(first.Data())
	if err != nil {
		return 0, fmt.Errorf("pager: flush: %w", err)
	}
	h.ChangeCounter++
	h.VersionValidFor = h.ChangeCounter
	h.PageCount = p.count
	h.LibraryVersion = storage.LibraryVersion
	h.Encode(first.Data())
	p.dirty[1] = first
	if !slices.Contains(changed, 1) {
		changed = append(changed, 1)
	}
	slices.Sort(changed)

	for _, n := range changed {
		data := p.dirty[n].Data()
		if _, err := p.file.WriteAt(data, int64(n-1)*int64(p.pageSize)); err != nil {
			return 0, fmt.Errorf("pager: write page %d: %w", n, err)
		}
		p.hashes[n] = xxh3.Hash(data)
	}
	if err := p.file.Sync(); err != nil {
		return 0, fmt.Errorf("pager: sync: %w", err)
	}

	p.header = h
	p.clearDirty()
	p.metrics.PagesWritten.Add(float64(len(changed)))
	p.metrics.Flushes.Inc()
	p.log.Debug("flushed", "pages", len(changed), "change_counter", h.ChangeCounter)
	return len(changed), nil
}

// headerPage returns page 1 for rewriting. Callers hold p.mu.
func (p *Pager) headerPage() (*storage.Page, error) {
	if pg, ok := p.dirty[1]; ok {
		return pg, nil
	}
	if pg, ok := p.cache.Get(1); ok && pg.Loaded() {
		return pg, nil
	}
	data, err := p.readAt(1)
	if err != nil {
		return nil, err
	}
	pg := storage.NewLoadedPage(1, data)
	p.admit(1, pg, data)
	return pg, nil
}

// clearDirty moves dirty pages back into the clean cache.
func (p *Pager) clearDirty() {
	for n, pg := range p.dirty {
		p.cache.Add(n, pg)
	}
	clear(p.dirty)
}

// Close waits for pending reads, flushes, and closes the file.
func (p *Pager) Close() error {
	if err := p.Wait(); err != nil {
		return err
	}
	var flushErr error
	if !p.readOnly {
		_, flushErr = p.Flush()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.pool != nil {
		p.pool.Release()
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("pager: close: %w", err)
	}
	return flushErr
}

var _ storage.Pager = (*Pager)(nil)
