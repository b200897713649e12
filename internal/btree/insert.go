package btree

import (
	"slices"

	"goLite/internal/cursor"
	"goLite/internal/record"
	"goLite/internal/types"
)

func (c *Cursor) Insert(key types.OwnedValue, rec types.OwnedRecord, movedBefore bool) (cursor.Status, error) {
	var t target
	if c.index {
		key := rec.Clone()
		t = target{key: &key, exact: true}
	} else {
		if key.Kind != types.KindInteger {
			types.Violate("insert", "table rowid must be an integer, got %s", key.Kind)
		}
		t = target{rowid: key.I64}
	}
	payload, err := record.Serialize(nil, rec)
	if err != nil {
		return cursor.Status{}, err
	}
	return status(c.insert(t, payload, movedBefore))
}

// insert writes payload under t and leaves the cursor on it. Everything up
// to the first write may report errPending.
func (c *Cursor) insert(t target, payload []byte, movedBefore bool) error {
	var (
		p         []frame
		exact     bool
		appending bool
		err       error
	)
	if movedBefore {
		p, exact, appending, err = c.hintedPath(t)
		if err != nil {
			return err
		}
	}
	if p == nil {
		if p, exact, err = c.locateExact(t); err != nil {
			return err
		}
	}

	c.blocking = true
	defer func() { c.blocking = false }()
	c.stack, c.state, c.rec = nil, unpositioned, nil

	if err := c.place(p, exact, appending, t.rowid, payload); err != nil {
		return err
	}
	return c.reseek(t)
}

// hintedPath reuses the current position when it sits on the leaf t belongs
// to. A nil path means the hint did not apply.
func (c *Cursor) hintedPath(t target) (p []frame, exact, appending bool, err error) {
	if c.state != valid || !c.stack[len(c.stack)-1].nd.leaf() {
		return nil, false, false, nil
	}
	if p, err = c.refresh(c.stack); p == nil || err != nil {
		return nil, false, false, err
	}
	top := &p[len(p)-1]
	n := top.nd
	first, err := c.compareCell(n, 0, t)
	if err != nil {
		return nil, false, false, err
	}
	last, err := c.compareCell(n, len(n.cells)-1, t)
	if err != nil {
		return nil, false, false, err
	}
	switch {
	case first <= 0 && last >= 0:
	case last < 0 && c.rightmost(p):
		appending = true
	default:
		return nil, false, false, nil
	}
	if top.idx, err = c.search(n, t, false); err != nil {
		return nil, false, false, err
	}
	if top.idx < len(n.cells) {
		r, err := c.compareCell(n, top.idx, t)
		if err != nil {
			return nil, false, false, err
		}
		exact = r == 0
	}
	return p, exact, appending, nil
}

// refresh decodes the pages of a remembered path again, since another cursor
// may have rewritten them. It returns nil when the path no longer leads from
// the root to a leaf.
func (c *Cursor) refresh(old []frame) ([]frame, error) {
	if old[0].nd.page.Number != c.root {
		return nil, nil
	}
	p := make([]frame, len(old))
	for i, f := range old {
		nd, err := c.fetch(f.nd.page.Number)
		if err != nil {
			return nil, err
		}
		p[i] = frame{nd: nd, idx: f.idx}
		if i == len(old)-1 {
			if !nd.leaf() || len(nd.cells) == 0 {
				return nil, nil
			}
			break
		}
		if nd.leaf() {
			return nil, nil
		}
		next := old[i+1].nd.page.Number
		j := slices.IndexFunc(nd.cells, func(cl cell) bool { return cl.child == next })
		switch {
		case j >= 0:
			p[i].idx = j
		case nd.right == next:
			p[i].idx = len(nd.cells)
		default:
			return nil, nil
		}
	}
	return p, nil
}

// rightmost reports whether every interior frame of p follows its right-most
// child.
func (c *Cursor) rightmost(p []frame) bool {
	for _, f := range p[:len(p)-1] {
		if f.idx != len(f.nd.cells) {
			return false
		}
	}
	return true
}

// place stores the payload at the top of p: over the matching cell when exact,
// as a new leaf cell otherwise.
func (c *Cursor) place(p []frame, exact, appending bool, rowid int64, payload []byte) error {
	top := p[len(p)-1]
	n := top.nd
	if exact {
		old := n.cells[top.idx]
		if err := c.freeOverflow(old); err != nil {
			return err
		}
		cl, err := c.makeCell(n.typ, old.child, rowid, payload)
		if err != nil {
			return err
		}
		n.cells[top.idx] = cl
		n.invalidate()
		_, err = c.store(p, false)
		return err
	}

	cl, err := c.makeCell(n.typ, 0, rowid, payload)
	if err != nil {
		return err
	}
	n.cells = slices.Insert(n.cells, top.idx, cl)
	n.invalidate()
	_, err = c.store(p, appending && top.idx == len(n.cells)-1)
	return err
}

// reseek positions the cursor on t after a write.
func (c *Cursor) reseek(t target) error {
	p, err := c.locate(t, false)
	if err != nil {
		return err
	}
	p, ok, err := c.settleForward(p)
	if err != nil {
		return err
	}
	return c.commit(p, ok)
}

// store writes the node at the top of p back to its page, splitting it when
// its cells no longer fit. It reports whether a split happened.
func (c *Cursor) store(p []frame, appending bool) (bool, error) {
	n := p[len(p)-1].nd
	if c.geo.fits(n.page.Number, n.typ, n.cells) {
		c.geo.encode(n)
		c.pager.MarkDirty(n.page)
		return false, nil
	}

	groups, divs := c.partition(n, appending)
	if len(p) == 1 {
		return true, c.splitRoot(n, groups, divs)
	}

	pages := make([]uint32, len(groups))
	for j, g := range groups {
		if j == 0 {
			g.page = n.page
		} else {
			pg, err := c.allocPage()
			if err != nil {
				return true, err
			}
			g.page = pg
		}
		c.geo.encode(g)
		c.pager.MarkDirty(g.page)
		pages[j] = g.page.Number
	}
	for j := range divs {
		divs[j] = divs[j].withChild(pages[j])
	}

	parent := p[len(p)-2]
	pn := parent.nd
	pn.cells = slices.Insert(pn.cells, parent.idx, divs...)
	pn.setChild(parent.idx+len(divs), pages[len(pages)-1])
	_, err := c.store(p[:len(p)-1], false)
	return true, err
}

// splitRoot moves the groups of the root to new pages and turns the root
// into an interior page over them. The root page number never changes.
func (c *Cursor) splitRoot(root *node, groups []*node, divs []cell) error {
	pages := make([]uint32, len(groups))
	for j, g := range groups {
		pg, err := c.allocPage()
		if err != nil {
			return err
		}
		g.page = pg
		c.geo.encode(g)
		c.pager.MarkDirty(pg)
		pages[j] = pg.Number
	}
	for j := range divs {
		divs[j] = divs[j].withChild(pages[j])
	}
	top := &node{page: root.page, typ: interiorOf(root.typ), cells: divs, right: pages[len(pages)-1]}
	_, err := c.store([]frame{{nd: top}}, false)
	return err
}

// partition splits the cells of an overfull node into runs that each fit on
// a fresh page, plus the divider cells that go up to the parent. Dividers
// get their child pointers once the runs have pages.
func (c *Cursor) partition(n *node, appending bool) ([]*node, []cell) {
	cells := n.cells
	// Table leaves keep every cell and copy a rowid up; other pages move a
	// separator cell up.
	sep := n.typ != typeTableLeaf

	var bounds [][2]int
	if appending {
		switch {
		case !sep && len(cells) >= 2:
			bounds = [][2]int{{0, len(cells) - 1}, {len(cells) - 1, len(cells)}}
		case sep && len(cells) >= 3:
			bounds = [][2]int{{0, len(cells) - 2}, {len(cells) - 1, len(cells)}}
		}
		if !c.runsFit(cells, n.typ, bounds) {
			bounds = nil
		}
	}
	for k := 2; bounds == nil; k++ {
		if k > len(cells) {
			types.Violate("btree split", "%d cells of page %d cannot be split", len(cells), n.page.Number)
		}
		bounds = c.cut(cells, n.typ, k, sep)
	}

	groups := make([]*node, len(bounds))
	var divs []cell
	for j, b := range bounds {
		g := &node{typ: n.typ, cells: slices.Clone(cells[b[0]:b[1]])}
		groups[j] = g
		if j == len(bounds)-1 {
			g.right = n.right
			break
		}
		if !sep {
			divs = append(divs, tableInteriorCell(0, cells[b[1]-1].rowid))
			continue
		}
		s := cells[b[1]]
		switch n.typ {
		case typeTableInterior:
			g.right = s.child
			divs = append(divs, tableInteriorCell(0, s.rowid))
		case typeIndexInterior:
			g.right = s.child
			divs = append(divs, s)
		case typeIndexLeaf:
			divs = append(divs, s.asInterior(0))
		}
	}
	return groups, divs
}

// cut divides cells into k runs of similar size. With sep the cell between
// two runs is left out of both. It returns nil if a run would be empty or
// would not fit on a page.
func (c *Cursor) cut(cells []cell, t uint8, k int, sep bool) [][2]int {
	goal := spaceOf(cells) / k
	var bounds [][2]int
	start, acc := 0, 0
	for i := 0; i < len(cells); i++ {
		sz := cells[i].space()
		if len(bounds) < k-1 && i > start && acc+sz > goal {
			bounds = append(bounds, [2]int{start, i})
			acc = 0
			if sep {
				start = i + 1
				continue
			}
			start = i
		}
		acc += sz
	}
	bounds = append(bounds, [2]int{start, len(cells)})
	if len(bounds) != k || !c.runsFit(cells, t, bounds) {
		return nil
	}
	return bounds
}

func (c *Cursor) runsFit(cells []cell, t uint8, bounds [][2]int) bool {
	if len(bounds) == 0 {
		return false
	}
	for _, b := range bounds {
		// Split runs never land on page 1.
		if b[0] >= b[1] || !c.geo.fits(2, t, cells[b[0]:b[1]]) {
			return false
		}
	}
	return true
}
