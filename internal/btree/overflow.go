package btree

import (
	"fmt"

	"goLite/internal/storage"
)

// payload returns the full payload of c, following its overflow chain.
func (c *Cursor) payload(cl cell) ([]byte, error) {
	if cl.overflow == 0 {
		return cl.local(), nil
	}
	out := make([]byte, 0, cl.size)
	out = append(out, cl.local()...)

	next := cl.overflow
	limit := c.pager.PageCount()
	for hops := uint32(0); len(out) < cl.size; hops++ {
		if next == 0 || hops > limit {
			return nil, fmt.Errorf("%w: overflow chain ends after %d of %d bytes", ErrBadPage, len(out), cl.size)
		}
		pg, err := c.page(next)
		if err != nil {
			return nil, err
		}
		data := pg.Data()
		n := min(cl.size-len(out), c.geo.usable-4)
		out = append(out, data[4:4+n]...)
		next = be.Uint32(data)
	}
	return out, nil
}

// writeOverflow stores rest in a fresh chain of overflow pages and returns
// the first page number.
func (c *Cursor) writeOverflow(rest []byte) (uint32, error) {
	per := c.geo.usable - 4
	n := (len(rest) + per - 1) / per
	pages := make([]*storage.Page, n)
	for i := range pages {
		pg, err := c.allocPage()
		if err != nil {
			return 0, err
		}
		pages[i] = pg
	}
	for i, pg := range pages {
		data := pg.Data()
		var next uint32
		if i+1 < n {
			next = pages[i+1].Number
		}
		be.PutUint32(data, next)
		copy(data[4:], rest[i*per:min(len(rest), (i+1)*per)])
		c.pager.MarkDirty(pg)
	}
	return pages[0].Number, nil
}

// freeOverflow releases the overflow chain of cl, if it has one.
func (c *Cursor) freeOverflow(cl cell) error {
	next := cl.overflow
	limit := c.pager.PageCount()
	for hops := uint32(0); next != 0; hops++ {
		if hops > limit {
			return fmt.Errorf("%w: overflow chain loops", ErrBadPage)
		}
		pg, err := c.pager.Load(next)
		if err != nil {
			return err
		}
		following := be.Uint32(pg.Data())
		if err := c.freePage(next); err != nil {
			return err
		}
		next = following
	}
	return nil
}

// makeCell builds a payload-carrying cell of type t, spilling to overflow
// pages as needed. child is used by index interior cells, rowid by table
// leaf cells.
func (c *Cursor) makeCell(t uint8, child uint32, rowid int64, payload []byte) (cell, error) {
	local := c.geo.localSize(t, len(payload))

	var raw []byte
	if !isLeaf(t) {
		raw = be.AppendUint32(raw, child)
	}
	raw = appendVarint(raw, uint64(len(payload)))
	if t == typeTableLeaf {
		raw = appendVarint(raw, uint64(rowid))
	}
	cl := cell{child: child, rowid: rowid, size: len(payload), localOff: len(raw), localLen: local}
	raw = append(raw, payload[:local]...)
	if local < len(payload) {
		first, err := c.writeOverflow(payload[local:])
		if err != nil {
			return cell{}, err
		}
		cl.overflow = first
		raw = be.AppendUint32(raw, first)
	}
	cl.raw = raw
	return cl, nil
}
