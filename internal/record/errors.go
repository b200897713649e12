package record

import "errors"

var (
	// ErrUnsupported reports a record the encoder cannot yet lay out: its
	// header would need a multi-byte length varint.
	ErrUnsupported = errors.New("record: unsupported")
	// ErrCorrupt reports a payload that does not parse as a record.
	ErrCorrupt = errors.New("record: corrupt")
)
