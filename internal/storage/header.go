package storage

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the length of the database header at the start of page 1.
	HeaderSize = 100
	// Magic opens every database file.
	Magic = "SQLite format 3\x00"

	// LibraryVersion is the version number stamped into headers we write.
	LibraryVersion = 3046000

	DefaultPageSize = 4096
	MinPageSize     = 512
	MaxPageSize     = 65536

	EncodingUTF8 = 1
)

// Header is the decoded 100-byte database header.
type Header struct {
	PageSize        int
	WriteVersion    uint8
	ReadVersion     uint8
	Reserved        uint8
	MaxPayloadFrac  uint8
	MinPayloadFrac  uint8
	LeafPayloadFrac uint8
	ChangeCounter   uint32
	PageCount       uint32
	FreelistTrunk   uint32
	FreelistCount   uint32
	SchemaCookie    uint32
	SchemaFormat    uint32
	DefaultCache    uint32
	LargestRoot     uint32
	TextEncoding    uint32
	UserVersion     uint32
	IncrVacuum      uint32
	ApplicationID   uint32
	VersionValidFor uint32
	LibraryVersion  uint32
}

// NewHeader returns the header of a fresh single-page database.
func NewHeader(pageSize int) Header {
	return Header{
		PageSize:        pageSize,
		WriteVersion:    1,
		ReadVersion:     1,
		MaxPayloadFrac:  64,
		MinPayloadFrac:  32,
		LeafPayloadFrac: 32,
		ChangeCounter:   1,
		PageCount:       1,
		SchemaFormat:    4,
		TextEncoding:    EncodingUTF8,
		VersionValidFor: 1,
		LibraryVersion:  LibraryVersion,
	}
}

// UsableSize returns the bytes of each page available to b-tree content.
func (h Header) UsableSize() int { return h.PageSize - int(h.Reserved) }

// ValidPageSize reports whether n is a power of two in [512, 65536].
func ValidPageSize(n int) bool {
	return n >= MinPageSize && n <= MaxPageSize && n&(n-1) == 0
}

// ParseHeader decodes and validates the header at the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(b))
	}
	if string(b[:16]) != Magic {
		return Header{}, fmt.Errorf("%w: missing magic", ErrBadHeader)
	}
	be := binary.BigEndian

	h := Header{
		PageSize:        int(be.Uint16(b[16:])),
		WriteVersion:    b[18],
		ReadVersion:     b[19],
		Reserved:        b[20],
		MaxPayloadFrac:  b[21],
		MinPayloadFrac:  b[22],
		LeafPayloadFrac: b[23],
		ChangeCounter:   be.Uint32(b[24:]),
		PageCount:       be.Uint32(b[28:]),
		FreelistTrunk:   be.Uint32(b[32:]),
		FreelistCount:   be.Uint32(b[36:]),
		SchemaCookie:    be.Uint32(b[40:]),
		SchemaFormat:    be.Uint32(b[44:]),
		DefaultCache:    be.Uint32(b[48:]),
		LargestRoot:     be.Uint32(b[52:]),
		TextEncoding:    be.Uint32(b[56:]),
		UserVersion:     be.Uint32(b[60:]),
		IncrVacuum:      be.Uint32(b[64:]),
		ApplicationID:   be.Uint32(b[68:]),
		VersionValidFor: be.Uint32(b[92:]),
		LibraryVersion:  be.Uint32(b[96:]),
	}
	if h.PageSize == 1 {
		h.PageSize = MaxPageSize
	}

	switch {
	case !ValidPageSize(h.PageSize):
		return Header{}, fmt.Errorf("%w: page size %d", ErrBadHeader, h.PageSize)
	case h.MaxPayloadFrac != 64 || h.MinPayloadFrac != 32 || h.LeafPayloadFrac != 32:
		return Header{}, fmt.Errorf("%w: payload fractions %d/%d/%d", ErrBadHeader,
			h.MaxPayloadFrac, h.MinPayloadFrac, h.LeafPayloadFrac)
	case h.UsableSize() < 480:
		return Header{}, fmt.Errorf("%w: usable size %d", ErrBadHeader, h.UsableSize())
	case h.ReadVersion > 2:
		return Header{}, fmt.Errorf("%w: read version %d", ErrUnsupported, h.ReadVersion)
	case h.TextEncoding != 0 && h.TextEncoding != EncodingUTF8:
		return Header{}, fmt.Errorf("%w: text encoding %d", ErrUnsupported, h.TextEncoding)
	}
	return h, nil
}

// Encode writes h into the first HeaderSize bytes of b.
func (h Header) Encode(b []byte) {
	be := binary.BigEndian
	copy(b, Magic)
	ps := h.PageSize
	if ps == MaxPageSize {
		ps = 1
	}
	be.PutUint16(b[16:], uint16(ps))
	b[18] = h.WriteVersion
	b[19] = h.ReadVersion
	b[20] = h.Reserved
	b[21] = h.MaxPayloadFrac
	b[22] = h.MinPayloadFrac
	b[23] = h.LeafPayloadFrac
	be.PutUint32(b[24:], h.ChangeCounter)
	be.PutUint32(b[28:], h.PageCount)
	be.PutUint32(b[32:], h.FreelistTrunk)
	be.PutUint32(b[36:], h.FreelistCount)
	be.PutUint32(b[40:], h.SchemaCookie)
	be.PutUint32(b[44:], h.SchemaFormat)
	be.PutUint32(b[48:], h.DefaultCache)
	be.PutUint32(b[52:], h.LargestRoot)
	be.PutUint32(b[56:], h.TextEncoding)
	be.PutUint32(b[60:], h.UserVersion)
	be.PutUint32(b[64:], h.IncrVacuum)
	be.PutUint32(b[68:], h.ApplicationID)
	clear(b[72:92])
	be.PutUint32(b[92:], h.VersionValidFor)
	be.PutUint32(b[96:], h.LibraryVersion)
}

// NewDatabaseImage returns page 1 of an empty database: the header followed
// by an empty table leaf for the schema table.
func NewDatabaseImage(pageSize int) []byte {
	page := make([]byte, pageSize)
	NewHeader(pageSize).Encode(page)
	page[HeaderSize] = 13 // table leaf
	binary.BigEndian.PutUint16(page[HeaderSize+5:], uint16(pageSize&0xffff))
	return page
}
