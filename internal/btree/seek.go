package btree

import (
	"cmp"
	"fmt"

	"goLite/internal/cursor"
	"goLite/internal/types"
)

// target is a key being searched for. Index searches match on the fields
// of key only, unless exact is set.
type target struct {
	rowid int64
	key   *types.OwnedRecord
	exact bool
}

func (c *Cursor) seekTarget(key cursor.SeekKey) target {
	if key.IsRowID() {
		if c.index {
			types.Violate("seek", "rowid key on an index cursor")
		}
		return target{rowid: key.RowID()}
	}
	if !c.index {
		types.Violate("seek", "record key on a table cursor")
	}
	return target{key: key.Key()}
}

// compareCell orders cell i of nd against t.
func (c *Cursor) compareCell(nd *node, i int, t target) (int, error) {
	if !c.index {
		return cmp.Compare(nd.cells[i].rowid, t.rowid), nil
	}
	rec, err := c.cellRecord(nd, i)
	if err != nil {
		return 0, err
	}
	if t.exact {
		return rec.Compare(*t.key), nil
	}
	return rec.ComparePrefix(*t.key), nil
}

// search returns the first cell of nd that is >= t, or > t when strict.
func (c *Cursor) search(nd *node, t target, strict bool) (int, error) {
	lo, hi := 0, len(nd.cells)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		r, err := c.compareCell(nd, mid, t)
		if err != nil {
			return 0, err
		}
		if r > 0 || (r == 0 && !strict) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// locate descends from the root to the leaf where t belongs. The leaf frame
// points at the first cell >= t (> t when strict), possibly one past the end.
func (c *Cursor) locate(t target, strict bool) ([]frame, error) {
	var p []frame
	pgno := c.root
	for {
		if len(p) >= maxDepth {
			return nil, fmt.Errorf("%w: tree %d deeper than %d", ErrBadPage, c.root, maxDepth)
		}
		nd, err := c.fetch(pgno)
		if err != nil {
			return nil, err
		}
		i, err := c.search(nd, t, strict)
		if err != nil {
			return nil, err
		}
		p = append(p, frame{nd: nd, idx: i})
		if nd.leaf() {
			return p, nil
		}
		pgno = nd.child(i)
	}
}

// locateExact is locate for writers: it stops early on an index interior
// entry equal to t and reports whether the top of the path matches t.
func (c *Cursor) locateExact(t target) ([]frame, bool, error) {
	var p []frame
	pgno := c.root
	for {
		if len(p) >= maxDepth {
			return nil, false, fmt.Errorf("%w: tree %d deeper than %d", ErrBadPage, c.root, maxDepth)
		}
		nd, err := c.fetch(pgno)
		if err != nil {
			return nil, false, err
		}
		i, err := c.search(nd, t, false)
		if err != nil {
			return nil, false, err
		}
		p = append(p, frame{nd: nd, idx: i})
		if nd.leaf() || c.index {
			match := false
			if i < len(nd.cells) {
				r, err := c.compareCell(nd, i, t)
				if err != nil {
					return nil, false, err
				}
				match = r == 0
			}
			if match || nd.leaf() {
				return p, match, nil
			}
		}
		pgno = nd.child(i)
	}
}

func (c *Cursor) Seek(key cursor.SeekKey, op cursor.SeekOp) (cursor.Result[bool], error) {
	return result(c.seek(c.seekTarget(key), op))
}

func (c *Cursor) seek(t target, op cursor.SeekOp) (bool, error) {
	p, err := c.locate(t, op == cursor.SeekGT)
	if err != nil {
		return false, err
	}
	p, ok, err := c.settleForward(p)
	if err != nil {
		return false, err
	}
	if !ok || op != cursor.SeekEQ {
		return ok, c.commit(p, ok)
	}
	top := p[len(p)-1]
	r, err := c.compareCell(top.nd, top.idx, t)
	if err != nil {
		return false, err
	}
	if err := c.commit(p, true); err != nil {
		return false, err
	}
	return r == 0, nil
}

// Exists probes for key: an integer rowid on table cursors, a record value
// on index cursors.
func (c *Cursor) Exists(key types.OwnedValue) (cursor.Result[bool], error) {
	var t target
	switch {
	case !c.index && key.Kind == types.KindInteger:
		t = target{rowid: key.I64}
	case c.index && key.Kind == types.KindRecord:
		t = target{key: key.Rec}
	default:
		types.Violate("exists", "%s key on a %s cursor", key.Kind, c.kind())
	}
	return result(c.seek(t, cursor.SeekEQ))
}

func (c *Cursor) kind() string {
	if c.index {
		return "index"
	}
	return "table"
}
