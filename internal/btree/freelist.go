package btree

import (
	"goLite/internal/record"
	"goLite/internal/storage"
)

// Freelist fields of the database header.
const (
	offFreelistTrunk = 32
	offFreelistCount = 36
)

var appendVarint = record.AppendVarint

// allocPage returns a zeroed page, reusing the freelist before growing the
// file.
func (c *Cursor) allocPage() (*storage.Page, error) {
	first, err := c.pager.Load(1)
	if err != nil {
		return nil, err
	}
	hdr := first.Data()
	trunk := be.Uint32(hdr[offFreelistTrunk:])
	count := be.Uint32(hdr[offFreelistCount:])
	if trunk == 0 || count == 0 {
		return c.pager.Allocate()
	}

	tp, err := c.pager.Load(trunk)
	if err != nil {
		return nil, err
	}
	td := tp.Data()
	var pgno uint32
	if leaves := be.Uint32(td[4:]); leaves > 0 {
		pgno = be.Uint32(td[8+4*(leaves-1):])
		be.PutUint32(td[4:], leaves-1)
		c.pager.MarkDirty(tp)
	} else {
		// An empty trunk is handed out itself.
		pgno = trunk
		be.PutUint32(hdr[offFreelistTrunk:], be.Uint32(td))
	}
	be.PutUint32(hdr[offFreelistCount:], count-1)
	c.pager.MarkDirty(first)

	pg, err := c.pager.Load(pgno)
	if err != nil {
		return nil, err
	}
	clear(pg.Data())
	c.pager.MarkDirty(pg)
	return pg, nil
}

// freePage puts pgno on the freelist.
func (c *Cursor) freePage(pgno uint32) error {
	first, err := c.pager.Load(1)
	if err != nil {
		return err
	}
	hdr := first.Data()
	trunk := be.Uint32(hdr[offFreelistTrunk:])
	count := be.Uint32(hdr[offFreelistCount:])

	if trunk != 0 {
		tp, err := c.pager.Load(trunk)
		if err != nil {
			return err
		}
		td := tp.Data()
		leaves := be.Uint32(td[4:])
		if int(leaves) < c.geo.usable/4-8 {
			be.PutUint32(td[8+4*leaves:], pgno)
			be.PutUint32(td[4:], leaves+1)
			c.pager.MarkDirty(tp)
			be.PutUint32(hdr[offFreelistCount:], count+1)
			c.pager.MarkDirty(first)
			return nil
		}
	}

	// Start a new trunk in front of the old one.
	pg, err := c.pager.Load(pgno)
	if err != nil {
		return err
	}
	data := pg.Data()
	clear(data)
	be.PutUint32(data, trunk)
	c.pager.MarkDirty(pg)
	be.PutUint32(hdr[offFreelistTrunk:], pgno)
	be.PutUint32(hdr[offFreelistCount:], count+1)
	c.pager.MarkDirty(first)
	return nil
}
