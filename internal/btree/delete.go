package btree

import (
	"fmt"
	"slices"

	"goLite/internal/cursor"
	"goLite/internal/record"
	"goLite/internal/types"
)

// Delete removes the current entry. Emptied pages go back to the freelist and
// the tree keeps all its leaves at one depth.
func (c *Cursor) Delete() (cursor.Status, error) {
	if c.state != valid {
		types.Violate("delete", "cursor is not on an entry")
	}
	p := slices.Clone(c.stack)
	c.stack, c.state, c.rec = nil, unpositioned, nil

	c.blocking = true
	defer func() { c.blocking = false }()
	if p[len(p)-1].nd.leaf() {
		return status(c.deleteLeafEntry(p))
	}
	return status(c.deleteInteriorEntry(p))
}

func (c *Cursor) deleteLeafEntry(p []frame) error {
	dropped, err := c.removeLeafCell(p)
	if err != nil {
		return err
	}
	return c.reinsert(dropped)
}

// deleteInteriorEntry removes an index entry held by an interior page: the
// largest entry of its left subtree takes its place and is then removed from
// its leaf.
func (c *Cursor) deleteInteriorEntry(p []frame) error {
	top := p[len(p)-1]
	x := top.nd.cells[top.idx]

	lp, err := c.descendRight(slices.Clone(p), x.child)
	if err != nil {
		return err
	}
	leaf := lp[len(lp)-1]
	pred, err := c.payload(leaf.nd.cells[leaf.idx])
	if err != nil {
		return err
	}
	predRec, err := c.cellRecord(leaf.nd, leaf.idx)
	if err != nil {
		return err
	}

	if err := c.freeOverflow(x); err != nil {
		return err
	}
	cl, err := c.makeCell(typeIndexInterior, x.child, 0, pred)
	if err != nil {
		return err
	}
	top.nd.cells[top.idx] = cl
	top.nd.invalidate()
	if _, err := c.store(p, false); err != nil {
		return err
	}

	// The tree may have been reshaped by a split; find the leaf copy again.
	t := target{key: predRec, exact: true}
	lp, err = c.locateLeaf(t)
	if err != nil {
		return err
	}
	leaf = lp[len(lp)-1]
	if leaf.idx >= len(leaf.nd.cells) {
		return fmt.Errorf("%w: entry %s vanished from its leaf", ErrBadPage, predRec)
	}
	if r, err := c.compareCell(leaf.nd, leaf.idx, t); err != nil {
		return err
	} else if r != 0 {
		return fmt.Errorf("%w: entry %s vanished from its leaf", ErrBadPage, predRec)
	}
	return c.deleteLeafEntry(lp)
}

// locateLeaf descends to the leaf holding t, passing over equal interior
// entries.
func (c *Cursor) locateLeaf(t target) ([]frame, error) {
	return c.locate(t, false)
}

// removeLeafCell deletes the current cell of the leaf at the top of p. It
// returns the payloads of index entries that had to leave the tree while
// emptied pages were removed; they must be inserted again.
func (c *Cursor) removeLeafCell(p []frame) ([][]byte, error) {
	top := p[len(p)-1]
	n := top.nd
	if err := c.freeOverflow(n.cells[top.idx]); err != nil {
		return nil, err
	}
	n.cells = slices.Delete(n.cells, top.idx, top.idx+1)
	n.invalidate()
	if len(n.cells) > 0 || len(p) == 1 {
		c.geo.encode(n)
		c.pager.MarkDirty(n.page)
		return nil, nil
	}
	return c.dropLeaf(p)
}

// dropLeaf removes an empty non-root leaf from its parent.
func (c *Cursor) dropLeaf(p []frame) ([][]byte, error) {
	leaf := p[len(p)-1].nd
	parent := p[len(p)-2]
	pn := parent.nd

	if err := c.freePage(leaf.page.Number); err != nil {
		return nil, err
	}

	if len(pn.cells) == 0 {
		// A cell-less root on page 1 over the emptied leaf.
		c.geo.encode(&node{page: pn.page, typ: leafOf(pn.typ)})
		c.pager.MarkDirty(pn.page)
		return nil, nil
	}

	// The cell that bounded the leaf goes with it. When the leaf was the
	// right-most child the last cell's child takes its slot.
	i := parent.idx
	if i == len(pn.cells) {
		i = len(pn.cells) - 1
		pn.right = pn.cells[i].child
	}
	var dropped [][]byte
	if c.index {
		payload, err := c.payload(pn.cells[i])
		if err != nil {
			return nil, err
		}
		dropped = append(dropped, payload)
		if err := c.freeOverflow(pn.cells[i]); err != nil {
			return nil, err
		}
	}
	pn.cells = slices.Delete(pn.cells, i, i+1)
	pn.invalidate()

	if len(pn.cells) > 0 {
		c.geo.encode(pn)
		c.pager.MarkDirty(pn.page)
		return dropped, nil
	}
	return dropped, c.underflow(p[:len(p)-1])
}

// underflow repairs an interior page at the top of p that is down to its
// right-most child.
func (c *Cursor) underflow(p []frame) error {
	n := p[len(p)-1].nd
	if len(p) == 1 {
		return c.collapseRoot(n)
	}

	gp := p[len(p)-2]
	g := gp.nd
	gi := gp.idx
	only := n.right

	if len(g.cells) == 0 {
		g.right = only
		if err := c.freePage(n.page.Number); err != nil {
			return err
		}
		return c.collapseRoot(g)
	}

	var (
		sib     *node
		sibSlot int
		err     error
	)
	if gi > 0 {
		// Merge into the left sibling: its right child, then the separator
		// pulled down, then our only child.
		sep := g.cells[gi-1]
		if sib, err = c.fetch(sep.child); err != nil {
			return err
		}
		sib.cells = append(sib.cells, c.pulledDown(sep, sib.right))
		sib.right = only
		g.cells = slices.Delete(g.cells, gi-1, gi)
		sibSlot = gi - 1
		g.setChild(sibSlot, sib.page.Number)
	} else {
		// Merge into the right sibling from the front.
		sep := g.cells[gi]
		if sib, err = c.fetch(g.child(gi + 1)); err != nil {
			return err
		}
		sib.cells = slices.Insert(sib.cells, 0, c.pulledDown(sep, only))
		g.cells = slices.Delete(g.cells, gi, gi+1)
		sibSlot = gi
	}
	sib.invalidate()
	g.invalidate()
	if err := c.freePage(n.page.Number); err != nil {
		return err
	}

	gpath := slices.Clone(p[:len(p)-1])
	gpath[len(gpath)-1].idx = sibSlot
	split, err := c.store(append(gpath, frame{nd: sib}), false)
	if err != nil || split {
		return err
	}
	if len(g.cells) > 0 {
		c.geo.encode(g)
		c.pager.MarkDirty(g.page)
		return nil
	}
	return c.underflow(gpath)
}

// pulledDown turns a parent separator into a cell of the child level that
// points at child.
func (c *Cursor) pulledDown(sep cell, child uint32) cell {
	if c.index {
		return sep.withChild(child)
	}
	return tableInteriorCell(child, sep.rowid)
}

// collapseRoot pulls the only child of an emptied interior root up into the
// root page. Page 1 keeps a cell-less root when the child does not fit next
// to the database header.
func (c *Cursor) collapseRoot(root *node) error {
	child, err := c.fetch(root.right)
	if err != nil {
		return err
	}
	if !c.geo.fits(root.page.Number, child.typ, child.cells) {
		c.geo.encode(root)
		c.pager.MarkDirty(root.page)
		return nil
	}
	merged := &node{page: root.page, typ: child.typ, cells: child.cells, right: child.right}
	c.geo.encode(merged)
	c.pager.MarkDirty(root.page)
	return c.freePage(child.page.Number)
}

// reinsert puts index entries back after their separator slot was removed.
func (c *Cursor) reinsert(payloads [][]byte) error {
	for _, payload := range payloads {
		rec, err := record.Decode(payload)
		if err != nil {
			return err
		}
		t := target{key: &rec, exact: true}
		p, exact, err := c.locateExact(t)
		if err != nil {
			return err
		}
		if err := c.place(p, exact, false, 0, payload); err != nil {
			return err
		}
	}
	return nil
}
