// Package btree implements cursor.Cursor over SQLite-format b-tree pages.
//
// A Cursor walks one table tree (keyed by rowid, records in the leaves) or
// one index tree (keyed by the record itself, entries on every level). Pages
// come from a storage.Pager. Read-only moves never block: when a page is
// still loading the call reports cursor.Pending and leaves the cursor where it
// was, so the caller can wait and repeat it. Insert and Delete finish their
// structural work in one go once they start writing.
//
// Only one cursor may modify a tree at a time. Other cursors on the same tree
// must be repositioned after a write before they read again; an insert hint
// from such a cursor is checked against the current pages.
package btree

import (
	"errors"
	"fmt"
	"slices"

	"goLite/internal/cursor"
	"goLite/internal/record"
	"goLite/internal/storage"
	"goLite/internal/types"
)

// maxDepth bounds descents so a cyclic tree is reported instead of looping.
const maxDepth = 20

var errPending = errors.New("btree: page pending")

type state uint8

const (
	unpositioned state = iota
	valid
	offEnd
)

// frame is one level of the path from the root to the current entry. On a
// leaf idx is the current cell; on an interior page it is the child the path
// descends into, or the current entry when the interior page is the top.
type frame struct {
	nd  *node
	idx int
}

// Cursor is a cursor over one b-tree.
type Cursor struct {
	pager storage.Pager
	geo   geometry
	root  uint32
	index bool

	stack []frame
	state state
	rec   *types.OwnedRecord

	nullFlag bool

	// blocking makes page fetches wait for I/O instead of reporting it.
	blocking bool
}

// NewTableCursor returns a cursor over the table tree rooted at root.
func NewTableCursor(p storage.Pager, root uint32) *Cursor {
	return &Cursor{pager: p, geo: geometry{usable: p.UsableSize()}, root: root}
}

// NewIndexCursor returns a cursor over the index tree rooted at root.
func NewIndexCursor(p storage.Pager, root uint32) *Cursor {
	c := NewTableCursor(p, root)
	c.index = true
	return c
}

func (c *Cursor) IsEmpty() bool { return c.state != valid }

func (c *Cursor) RootPage() uint32 { return c.root }

func (c *Cursor) SetNullFlag(flag bool) { c.nullFlag = flag }

func (c *Cursor) NullFlag() bool { return c.nullFlag }

func (c *Cursor) WaitForCompletion() error { return c.pager.Wait() }

// page returns a loaded page, or errPending when it is still on its way.
func (c *Cursor) page(pgno uint32) (*storage.Page, error) {
	if c.blocking {
		return c.pager.Load(pgno)
	}
	pg, err := c.pager.ReadPage(pgno)
	if err != nil {
		return nil, err
	}
	if !pg.Loaded() {
		return nil, errPending
	}
	if err := pg.Err(); err != nil {
		return nil, err
	}
	return pg, nil
}

func (c *Cursor) fetch(pgno uint32) (*node, error) {
	pg, err := c.page(pgno)
	if err != nil {
		return nil, err
	}
	nd, err := c.geo.decodeNode(pg)
	if err != nil {
		return nil, err
	}
	if isTable(nd.typ) == c.index {
		return nil, fmt.Errorf("%w: page %d of tree %d has type %d", ErrBadPage, pgno, c.root, nd.typ)
	}
	return nd, nil
}

// cellRecord decodes the payload of cell i, caching it on the node.
func (c *Cursor) cellRecord(nd *node, i int) (*types.OwnedRecord, error) {
	if nd.recs == nil {
		nd.recs = make([]*types.OwnedRecord, len(nd.cells))
	}
	if r := nd.recs[i]; r != nil {
		return r, nil
	}
	payload, err := c.payload(nd.cells[i])
	if err != nil {
		return nil, err
	}
	rec, err := record.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("btree: page %d cell %d: %w", nd.page.Number, i, err)
	}
	nd.recs[i] = &rec
	return &rec, nil
}

func (c *Cursor) descendLeft(p []frame, pgno uint32) ([]frame, error) {
	for {
		if len(p) >= maxDepth {
			return nil, fmt.Errorf("%w: tree %d deeper than %d", ErrBadPage, c.root, maxDepth)
		}
		nd, err := c.fetch(pgno)
		if err != nil {
			return nil, err
		}
		p = append(p, frame{nd: nd})
		if nd.leaf() {
			return p, nil
		}
		pgno = nd.child(0)
	}
}

func (c *Cursor) descendRight(p []frame, pgno uint32) ([]frame, error) {
	for {
		if len(p) >= maxDepth {
			return nil, fmt.Errorf("%w: tree %d deeper than %d", ErrBadPage, c.root, maxDepth)
		}
		nd, err := c.fetch(pgno)
		if err != nil {
			return nil, err
		}
		if nd.leaf() {
			return append(p, frame{nd: nd, idx: len(nd.cells) - 1}), nil
		}
		p = append(p, frame{nd: nd, idx: len(nd.cells)})
		pgno = nd.right
	}
}

// settleForward moves a path whose leaf index may be past the end onto the
// next entry. It reports false when there is none.
func (c *Cursor) settleForward(p []frame) ([]frame, bool, error) {
	for {
		if leaf := p[len(p)-1]; leaf.idx < len(leaf.nd.cells) {
			return p, true, nil
		}
		for {
			p = p[:len(p)-1]
			if len(p) == 0 {
				return nil, false, nil
			}
			if f := p[len(p)-1]; f.idx < len(f.nd.cells) {
				break
			}
		}
		top := &p[len(p)-1]
		if c.index {
			// The entry right after the subtree we came from.
			return p, true, nil
		}
		top.idx++
		var err error
		if p, err = c.descendLeft(p, top.nd.child(top.idx)); err != nil {
			return nil, false, err
		}
	}
}

// settleBackward is settleForward in reverse.
func (c *Cursor) settleBackward(p []frame) ([]frame, bool, error) {
	for {
		if leaf := p[len(p)-1]; leaf.idx >= 0 {
			return p, true, nil
		}
		for {
			p = p[:len(p)-1]
			if len(p) == 0 {
				return nil, false, nil
			}
			if p[len(p)-1].idx > 0 {
				break
			}
		}
		top := &p[len(p)-1]
		top.idx--
		if c.index {
			return p, true, nil
		}
		var err error
		if p, err = c.descendRight(p, top.nd.child(top.idx)); err != nil {
			return nil, false, err
		}
	}
}

// commit makes p the cursor position once its record is available, so a
// pending read leaves the old position untouched.
func (c *Cursor) commit(p []frame, ok bool) error {
	if !ok {
		c.stack, c.state, c.rec = nil, offEnd, nil
		return nil
	}
	top := p[len(p)-1]
	rec, err := c.cellRecord(top.nd, top.idx)
	if err != nil {
		return err
	}
	c.stack, c.state, c.rec = p, valid, rec
	return nil
}

func (c *Cursor) Rewind() (cursor.Status, error) {
	return status(c.rewind())
}

func (c *Cursor) rewind() error {
	p, err := c.descendLeft(nil, c.root)
	if err != nil {
		return err
	}
	p, ok, err := c.settleForward(p)
	if err != nil {
		return err
	}
	return c.commit(p, ok)
}

func (c *Cursor) Last() (cursor.Status, error) {
	return status(c.last())
}

func (c *Cursor) last() error {
	p, err := c.descendRight(nil, c.root)
	if err != nil {
		return err
	}
	p, ok, err := c.settleBackward(p)
	if err != nil {
		return err
	}
	return c.commit(p, ok)
}

// SeekToLast positions on the final entry, where an append lands.
func (c *Cursor) SeekToLast() (cursor.Status, error) {
	return c.Last()
}

func (c *Cursor) Next() (cursor.Status, error) {
	if c.state != valid {
		types.Violate("next", "cursor is not on an entry")
	}
	return status(c.next())
}

func (c *Cursor) next() error {
	p := slices.Clone(c.stack)
	top := &p[len(p)-1]
	top.idx++
	if !top.nd.leaf() {
		var err error
		if p, err = c.descendLeft(p, top.nd.child(top.idx)); err != nil {
			return err
		}
	}
	p, ok, err := c.settleForward(p)
	if err != nil {
		return err
	}
	return c.commit(p, ok)
}

func (c *Cursor) Prev() (cursor.Status, error) {
	if c.state != valid {
		types.Violate("prev", "cursor is not on an entry")
	}
	return status(c.prev())
}

func (c *Cursor) prev() error {
	p := slices.Clone(c.stack)
	top := &p[len(p)-1]
	if top.nd.leaf() {
		top.idx--
	} else {
		var err error
		if p, err = c.descendRight(p, top.nd.child(top.idx)); err != nil {
			return err
		}
	}
	p, ok, err := c.settleBackward(p)
	if err != nil {
		return err
	}
	return c.commit(p, ok)
}

// Record returns the current entry. For index trees it is the key itself.
func (c *Cursor) Record() (*types.OwnedRecord, error) {
	if c.state != valid {
		return nil, nil
	}
	return c.rec, nil
}

// RowID returns the rowid of the current row. Index entries carry it as
// their last field.
func (c *Cursor) RowID() (int64, bool, error) {
	if c.state != valid {
		return 0, false, nil
	}
	if !c.index {
		top := c.stack[len(c.stack)-1]
		return top.nd.cells[top.idx].rowid, true, nil
	}
	n := c.rec.Len()
	if n == 0 || c.rec.Values[n-1].Kind != types.KindInteger {
		return 0, false, fmt.Errorf("%w: index entry %s has no rowid", ErrBadPage, c.rec)
	}
	return c.rec.Values[n-1].I64, true, nil
}

// BTreeCreate allocates an empty tree of the kind selected by flags.
func (c *Cursor) BTreeCreate(flags int) (uint32, error) {
	typ := typeTableLeaf
	switch flags {
	case cursor.CreateTable:
	case cursor.CreateIndex:
		typ = typeIndexLeaf
	default:
		types.Violate("btree create", "unknown flags %d", flags)
	}
	pg, err := c.allocPage()
	if err != nil {
		return 0, err
	}
	c.geo.encode(&node{page: pg, typ: typ})
	c.pager.MarkDirty(pg)
	return pg.Number, nil
}

func result[T any](v T, err error) (cursor.Result[T], error) {
	if errors.Is(err, errPending) {
		return cursor.IO[T](), nil
	}
	if err != nil {
		return cursor.Result[T]{}, err
	}
	return cursor.Ok(v), nil
}

func status(err error) (cursor.Status, error) {
	return result(struct{}{}, err)
}

var _ cursor.Cursor = (*Cursor)(nil)
