package btree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"goLite/internal/record"
	"goLite/internal/storage"
	"goLite/internal/types"
)

const (
	typeIndexInterior uint8 = 2
	typeTableInterior uint8 = 5
	typeIndexLeaf     uint8 = 10
	typeTableLeaf     uint8 = 13
)

var (
	ErrBadPage = errors.New("btree: bad page")
)

var be = binary.BigEndian

func isLeaf(t uint8) bool  { return t == typeIndexLeaf || t == typeTableLeaf }
func isTable(t uint8) bool { return t == typeTableLeaf || t == typeTableInterior }

func validType(t uint8) bool {
	switch t {
	case typeIndexInterior, typeTableInterior, typeIndexLeaf, typeTableLeaf:
		return true
	}
	return false
}

func interiorOf(t uint8) uint8 {
	if isTable(t) {
		return typeTableInterior
	}
	return typeIndexInterior
}

func leafOf(t uint8) uint8 {
	if isTable(t) {
		return typeTableLeaf
	}
	return typeIndexLeaf
}

// headerSize is the size of the b-tree page header: 8 bytes on leaves, 12 on
// interior pages which also carry the right-most child pointer.
func headerSize(t uint8) int {
	if isLeaf(t) {
		return 8
	}
	return 12
}

// headerOffset skips the database header on page 1.
func headerOffset(pgno uint32) int {
	if pgno == 1 {
		return storage.HeaderSize
	}
	return 0
}

// geometry holds the payload limits derived from the usable page size.
type geometry struct {
	usable int
}

func (g geometry) maxLocal(t uint8) int {
	if t == typeTableLeaf {
		return g.usable - 35
	}
	return (g.usable-12)*64/255 - 23
}

func (g geometry) minLocal() int {
	return (g.usable-12)*32/255 - 23
}

// localSize returns how many payload bytes of a size-byte payload are kept on
// the b-tree page; the rest spills to overflow pages.
func (g geometry) localSize(t uint8, size int) int {
	maxL := g.maxLocal(t)
	if size <= maxL {
		return size
	}
	minL := g.minLocal()
	k := minL + (size-minL)%(g.usable-4)
	if k <= maxL {
		return k
	}
	return minL
}

// cell is one decoded cell. raw holds its exact on-page bytes.
type cell struct {
	raw      []byte
	child    uint32 // interior pages
	rowid    int64  // table pages
	size     int    // total payload size
	localOff int    // on-page part of the payload within raw
	localLen int
	overflow uint32 // first overflow page, 0 if none
}

// local returns the on-page part of the payload.
func (c cell) local() []byte { return c.raw[c.localOff : c.localOff+c.localLen] }

// space is the room a cell takes on a page including its pointer. Cells are
// never smaller than 4 bytes.
func (c cell) space() int {
	return max(len(c.raw), 4) + 2
}

// withChild returns an interior cell with its child pointer replaced.
func (c cell) withChild(pgno uint32) cell {
	raw := slices.Clone(c.raw)
	be.PutUint32(raw, pgno)
	c.raw, c.child = raw, pgno
	return c
}

// asInterior turns an index leaf cell into an index interior cell.
func (c cell) asInterior(pgno uint32) cell {
	raw := make([]byte, 4, 4+len(c.raw))
	be.PutUint32(raw, pgno)
	c.raw = append(raw, c.raw...)
	c.child = pgno
	c.localOff += 4
	return c
}

func tableInteriorCell(child uint32, rowid int64) cell {
	raw := be.AppendUint32(nil, child)
	raw = record.AppendVarint(raw, uint64(rowid))
	return cell{raw: raw, child: child, rowid: rowid}
}

// parseCell decodes the cell starting at off.
func (g geometry) parseCell(data []byte, off int, t uint8) (cell, error) {
	var c cell
	p := off
	bad := func(what string) (cell, error) {
		return cell{}, fmt.Errorf("%w: cell at %d: %s", ErrBadPage, off, what)
	}

	if !isLeaf(t) {
		if p+4 > len(data) {
			return bad("truncated child pointer")
		}
		c.child = be.Uint32(data[p:])
		p += 4
	}
	if t == typeTableInterior {
		v, n := record.ReadVarint(data[p:])
		if n == 0 {
			return bad("truncated rowid")
		}
		c.rowid = int64(v)
		c.raw = slices.Clone(data[off : p+n])
		return c, nil
	}

	size, n := record.ReadVarint(data[p:])
	if n == 0 {
		return bad("truncated payload size")
	}
	p += n
	if t == typeTableLeaf {
		v, n := record.ReadVarint(data[p:])
		if n == 0 {
			return bad("truncated rowid")
		}
		c.rowid = int64(v)
		p += n
	}
	if size > uint64(1<<31) {
		return bad("payload size out of range")
	}
	c.size = int(size)
	local := g.localSize(t, c.size)
	start := p
	p += local
	if local < c.size {
		p += 4
	}
	if p > len(data) {
		return bad("runs off the page")
	}
	c.raw = slices.Clone(data[off:p])
	c.localOff, c.localLen = start-off, local
	if local < c.size {
		c.overflow = be.Uint32(c.raw[len(c.raw)-4:])
	}
	return c, nil
}

// node is a decoded b-tree page.
type node struct {
	page  *storage.Page
	typ   uint8
	cells []cell
	right uint32

	recs []*types.OwnedRecord // decoded payloads, filled lazily
}

func (n *node) leaf() bool { return isLeaf(n.typ) }

// child returns the i-th child pointer; i == len(cells) is the right-most.
func (n *node) child(i int) uint32 {
	if i < len(n.cells) {
		return n.cells[i].child
	}
	return n.right
}

func (n *node) setChild(i int, pgno uint32) {
	if i < len(n.cells) {
		n.cells[i] = n.cells[i].withChild(pgno)
	} else {
		n.right = pgno
	}
	n.invalidate()
}

// invalidate drops decoded payloads after the cell list changed.
func (n *node) invalidate() { n.recs = nil }

func (g geometry) decodeNode(pg *storage.Page) (*node, error) {
	data := pg.Data()
	off := headerOffset(pg.Number)
	if len(data) < g.usable || off+8 > g.usable {
		return nil, fmt.Errorf("%w: page %d too short", ErrBadPage, pg.Number)
	}
	data = data[:g.usable]

	n := &node{page: pg, typ: data[off]}
	if !validType(n.typ) {
		return nil, fmt.Errorf("%w: page %d has type %d", ErrBadPage, pg.Number, n.typ)
	}
	count := int(be.Uint16(data[off+3:]))
	if !n.leaf() {
		n.right = be.Uint32(data[off+8:])
	}
	ptrs := off + headerSize(n.typ)
	if ptrs+2*count > g.usable {
		return nil, fmt.Errorf("%w: page %d claims %d cells", ErrBadPage, pg.Number, count)
	}

	n.cells = make([]cell, count)
	for i := range n.cells {
		co := int(be.Uint16(data[ptrs+2*i:]))
		if co < ptrs+2*count || co >= g.usable {
			return nil, fmt.Errorf("%w: page %d cell %d offset %d", ErrBadPage, pg.Number, i, co)
		}
		c, err := g.parseCell(data, co, n.typ)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pg.Number, err)
		}
		n.cells[i] = c
	}
	return n, nil
}

// fits reports whether cells of type t fit on page pgno.
func (g geometry) fits(pgno uint32, t uint8, cells []cell) bool {
	return headerOffset(pgno)+headerSize(t)+spaceOf(cells) <= g.usable
}

func spaceOf(cells []cell) int {
	n := 0
	for _, c := range cells {
		n += c.space()
	}
	return n
}

// encode rebuilds the page from n: cells packed at the end of the usable
// area, no free blocks, no fragments. The database header on page 1 and the
// reserved tail are preserved.
func (g geometry) encode(n *node) {
	data := n.page.Data()
	off := headerOffset(n.page.Number)
	buf := make([]byte, g.usable)
	copy(buf[:off], data[:off])

	ptr := off + headerSize(n.typ)
	content := g.usable
	for i, c := range n.cells {
		content -= max(len(c.raw), 4)
		copy(buf[content:], c.raw)
		be.PutUint16(buf[ptr+2*i:], uint16(content))
	}
	buf[off] = n.typ
	be.PutUint16(buf[off+1:], 0)
	be.PutUint16(buf[off+3:], uint16(len(n.cells)))
	be.PutUint16(buf[off+5:], uint16(content)) // 65536 wraps to 0
	buf[off+7] = 0
	if !n.leaf() {
		be.PutUint32(buf[off+8:], n.right)
	}
	copy(data[:g.usable], buf)
}
