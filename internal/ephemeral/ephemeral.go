// Package ephemeral provides in-memory sorted trees behind the cursor
// contract, used for sorters and scratch tables. Nothing ever waits on I/O.
package ephemeral

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"goLite/internal/cursor"
	"goLite/internal/types"
)

type entry struct {
	rowid int64
	rec   types.OwnedRecord
}

// tree keeps its entries sorted. Inserts that do not land at the end are
// parked in tail and merged in one sort when the tree is next read.
type tree struct {
	index   bool
	entries []*entry
	tail    []*entry
}

func (t *tree) compare(a, b *entry) int {
	if t.index {
		return a.rec.Compare(b.rec)
	}
	return cmp.Compare(a.rowid, b.rowid)
}

// settle merges the parked inserts into entries. Of equal keys the latest
// insert wins.
func (t *tree) settle() {
	if len(t.tail) == 0 {
		return
	}
	slices.SortStableFunc(t.tail, t.compare)
	tail := t.tail[:0]
	for i, e := range t.tail {
		if i+1 < len(t.tail) && t.compare(e, t.tail[i+1]) == 0 {
			continue
		}
		tail = append(tail, e)
	}

	merged := make([]*entry, 0, len(t.entries)+len(tail))
	i, j := 0, 0
	for i < len(t.entries) && j < len(tail) {
		switch r := t.compare(t.entries[i], tail[j]); {
		case r < 0:
			merged = append(merged, t.entries[i])
			i++
		case r > 0:
			merged = append(merged, tail[j])
			j++
		default:
			merged = append(merged, tail[j])
			i++
			j++
		}
	}
	merged = append(merged, t.entries[i:]...)
	merged = append(merged, tail[j:]...)
	t.entries, t.tail = merged, nil
}

// Space holds the trees created by its cursors.
type Space struct {
	mu    sync.Mutex
	trees map[uint32]*tree
	next  uint32
}

// NewSpace creates an empty space.
func NewSpace() *Space {
	return &Space{trees: make(map[uint32]*tree), next: 1}
}

// Create adds an empty tree and returns its root id.
func (s *Space) Create(index bool) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.next
	s.next++
	s.trees[root] = &tree{index: index}
	return root
}

// Open returns a cursor over the tree with the given root id.
func (s *Space) Open(root uint32) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[root]
	if !ok {
		return nil, fmt.Errorf("ephemeral: no tree %d", root)
	}
	return &Cursor{space: s, root: root, t: t}, nil
}

// Drop forgets a tree. Open cursors on it keep working on their own.
func (s *Space) Drop(root uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trees, root)
}

// NewTable returns a cursor over a fresh table tree.
func NewTable() *Cursor {
	s := NewSpace()
	c, _ := s.Open(s.Create(false))
	return c
}

// NewIndex returns a cursor over a fresh index tree.
func NewIndex() *Cursor {
	s := NewSpace()
	c, _ := s.Open(s.Create(true))
	return c
}

// Cursor walks one ephemeral tree. Trees are not safe for concurrent use.
type Cursor struct {
	space *Space
	root  uint32
	t     *tree

	pos      int
	valid    bool
	nullFlag bool
	// at is the entry last inserted while it still sits in the tail.
	at *entry
}

func (c *Cursor) IsEmpty() bool { return !c.valid }

func (c *Cursor) RootPage() uint32 { return c.root }

func (c *Cursor) SetNullFlag(flag bool) { c.nullFlag = flag }

func (c *Cursor) NullFlag() bool { return c.nullFlag }

func (c *Cursor) WaitForCompletion() error { return nil }

// Len returns the number of entries in the tree.
func (c *Cursor) Len() int {
	c.sync()
	return len(c.t.entries)
}

// sync settles the tree and resolves a position left by a parked insert.
func (c *Cursor) sync() {
	c.t.settle()
	if e := c.at; e != nil {
		c.at = nil
		i, _ := c.search(e.rowid, &e.rec, false, false)
		c.moveTo(i)
	}
}

func (c *Cursor) moveTo(i int) {
	c.pos = i
	c.valid = i >= 0 && i < len(c.t.entries)
}

func (c *Cursor) Rewind() (cursor.Status, error) {
	c.sync()
	c.moveTo(0)
	return cursor.Done(), nil
}

func (c *Cursor) Last() (cursor.Status, error) {
	c.sync()
	c.moveTo(len(c.t.entries) - 1)
	return cursor.Done(), nil
}

func (c *Cursor) SeekToLast() (cursor.Status, error) { return c.Last() }

func (c *Cursor) Next() (cursor.Status, error) {
	if !c.valid {
		types.Violate("next", "cursor is not on an entry")
	}
	c.sync()
	c.moveTo(c.pos + 1)
	return cursor.Done(), nil
}

func (c *Cursor) Prev() (cursor.Status, error) {
	if !c.valid {
		types.Violate("prev", "cursor is not on an entry")
	}
	c.sync()
	c.moveTo(c.pos - 1)
	return cursor.Done(), nil
}

func (c *Cursor) Record() (*types.OwnedRecord, error) {
	if !c.valid {
		return nil, nil
	}
	c.sync()
	return &c.t.entries[c.pos].rec, nil
}

func (c *Cursor) RowID() (int64, bool, error) {
	if !c.valid {
		return 0, false, nil
	}
	c.sync()
	e := c.t.entries[c.pos]
	if !c.t.index {
		return e.rowid, true, nil
	}
	n := e.rec.Len()
	if n == 0 || e.rec.Values[n-1].Kind != types.KindInteger {
		return 0, false, fmt.Errorf("ephemeral: index entry %s has no rowid", e.rec)
	}
	return e.rec.Values[n-1].I64, true, nil
}

// search returns the first entry >= key (> key when strict). prefix limits
// record comparison to the fields of key.
func (c *Cursor) search(rowid int64, key *types.OwnedRecord, strict, prefix bool) (int, bool) {
	return slices.BinarySearchFunc(c.t.entries, 0, func(e *entry, _ int) int {
		var r int
		switch {
		case !c.t.index:
			r = cmp.Compare(e.rowid, rowid)
		case prefix:
			r = e.rec.ComparePrefix(*key)
		default:
			r = e.rec.Compare(*key)
		}
		if strict && r == 0 {
			return -1
		}
		return r
	})
}

func (c *Cursor) Seek(key cursor.SeekKey, op cursor.SeekOp) (cursor.Result[bool], error) {
	if key.IsRowID() == c.t.index {
		types.Violate("seek", "key kind does not match the tree")
	}
	c.sync()
	i, found := c.search(key.RowID(), key.Key(), op == cursor.SeekGT, true)
	c.moveTo(i)
	if op == cursor.SeekEQ {
		return cursor.Ok(found), nil
	}
	return cursor.Ok(c.valid), nil
}

func (c *Cursor) Exists(key types.OwnedValue) (cursor.Result[bool], error) {
	switch {
	case !c.t.index && key.Kind == types.KindInteger:
		return c.Seek(cursor.TableRowID(key.I64), cursor.SeekEQ)
	case c.t.index && key.Kind == types.KindRecord:
		return c.Seek(cursor.IndexKey(key.Rec), cursor.SeekEQ)
	}
	types.Violate("exists", "%s key does not match the tree", key.Kind)
	return cursor.Result[bool]{}, nil
}

// Insert adds or replaces an entry and leaves the cursor on it. Stored
// records are copies. Keys arriving in order are appended; the others are
// sorted in when the tree is next read.
func (c *Cursor) Insert(key types.OwnedValue, rec types.OwnedRecord, _ bool) (cursor.Status, error) {
	e := &entry{rec: rec.Clone()}
	if !c.t.index {
		if key.Kind != types.KindInteger {
			types.Violate("insert", "table rowid must be an integer, got %s", key.Kind)
		}
		e.rowid = key.I64
	}
	t := c.t
	if n := len(t.entries); len(t.tail) == 0 && (n == 0 || t.compare(t.entries[n-1], e) < 0) {
		t.entries = append(t.entries, e)
		c.at = nil
		c.moveTo(n)
		return cursor.Done(), nil
	}
	t.tail = append(t.tail, e)
	c.at, c.valid = e, true
	return cursor.Done(), nil
}

func (c *Cursor) Delete() (cursor.Status, error) {
	if !c.valid {
		types.Violate("delete", "cursor is not on an entry")
	}
	c.sync()
	c.t.entries = slices.Delete(c.t.entries, c.pos, c.pos+1)
	c.valid = false
	return cursor.Done(), nil
}

func (c *Cursor) BTreeCreate(flags int) (uint32, error) {
	switch flags {
	case cursor.CreateTable:
		return c.space.Create(false), nil
	case cursor.CreateIndex:
		return c.space.Create(true), nil
	}
	types.Violate("btree create", "unknown flags %d", flags)
	return 0, nil
}

var _ cursor.Cursor = (*Cursor)(nil)
