// Package cursor defines the contract every storage backend exposes to the
// executor for row and key traversal.
//
// A cursor is unpositioned until Rewind, Last or Seek is called, after which
// it is either on a valid entry or off the end. Any call may report that it is
// waiting on page I/O instead of finishing (Result.IsIO). The caller then
// calls WaitForCompletion and repeats the identical call; no progress is lost
// across the retry. Run wraps that loop.
package cursor

import "goLite/internal/types"

// Result is the outcome of a call that may be suspended on I/O.
type Result[T any] struct {
	value T
	io    bool
}

// Ok wraps a completed result.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// IO reports that the call is waiting on I/O and must be retried.
func IO[T any]() Result[T] { return Result[T]{io: true} }

// IsIO reports whether the call must be retried after WaitForCompletion.
func (r Result[T]) IsIO() bool { return r.io }

// Value returns the completed value; zero when IsIO.
func (r Result[T]) Value() T { return r.value }

// Status is a Result with no payload.
type Status = Result[struct{}]

// Done is the completed Status.
func Done() Status { return Ok(struct{}{}) }

// Pending is the suspended Status.
func Pending() Status { return IO[struct{}]() }

// SeekOp selects which entry a seek lands on.
type SeekOp uint8

const (
	SeekEQ SeekOp = iota // the entry equal to the key
	SeekGE               // the first entry >= key
	SeekGT               // the first entry > key
)

func (op SeekOp) String() string {
	switch op {
	case SeekEQ:
		return "EQ"
	case SeekGE:
		return "GE"
	case SeekGT:
		return "GT"
	default:
		return "?"
	}
}

// SeekKey is the target of a seek: a rowid for table trees or a (possibly
// partial) key record for index trees.
type SeekKey struct {
	rowID int64
	key   *types.OwnedRecord
}

// TableRowID targets a table row by rowid.
func TableRowID(id int64) SeekKey { return SeekKey{rowID: id} }

// IndexKey targets an index entry. A key with fewer fields than the stored
// entries matches on the fields it has.
func IndexKey(rec *types.OwnedRecord) SeekKey { return SeekKey{key: rec} }

// IsRowID reports whether the key was built by TableRowID.
func (k SeekKey) IsRowID() bool { return k.key == nil }

// RowID returns the target rowid of a table seek.
func (k SeekKey) RowID() int64 { return k.rowID }

// Key returns the target record of an index seek.
func (k SeekKey) Key() *types.OwnedRecord { return k.key }

// Cursor is implemented by every storage backend.
//
// Next and Prev may only be called while positioned on a valid entry; calling
// them while unpositioned or off the end panics with a contract violation.
type Cursor interface {
	// IsEmpty reports whether the cursor is not positioned on an entry.
	IsEmpty() bool

	// RootPage returns the root page of the tree the cursor walks.
	RootPage() uint32

	// Rewind positions on the first entry, or off the end if there is none.
	Rewind() (Status, error)

	// Last positions on the final entry, or off the end if there is none.
	Last() (Status, error)

	// Next advances in key order, going off the end past the final entry.
	Next() (Status, error)

	// Prev steps back in key order, going off the end before the first entry.
	Prev() (Status, error)

	// WaitForCompletion blocks until the I/O a suspended call waits on has
	// finished.
	WaitForCompletion() error

	// RowID returns the integer identity of the current entry. ok is false
	// off the end.
	RowID() (id int64, ok bool, err error)

	// Seek positions according to op and reports whether an entry satisfying
	// it was found. An EQ seek that finds nothing leaves the cursor on the
	// first entry greater than the key.
	Seek(key SeekKey, op SeekOp) (Result[bool], error)

	// SeekToLast positions on the final entry ahead of an append.
	SeekToLast() (Status, error)

	// Record returns the current entry's decoded content, or nil off the
	// end. The record stays valid until the next call that moves the cursor;
	// moves replace it and never modify it in place.
	Record() (*types.OwnedRecord, error)

	// Insert stores rec under key, replacing an existing entry with an equal
	// key. Table cursors take an integer rowid key; index cursors store rec
	// itself as the key and ignore key. movedBefore hints that the cursor was
	// already positioned next to the insertion point by a preceding seek.
	Insert(key types.OwnedValue, rec types.OwnedRecord, movedBefore bool) (Status, error)

	// Delete removes the current entry. The cursor is left unpositioned.
	Delete() (Status, error)

	// Exists reports whether an entry with the given key is present. Table
	// cursors take an integer key and index cursors a record value. The
	// cursor moves to the probed position.
	Exists(key types.OwnedValue) (Result[bool], error)

	// SetNullFlag marks the cursor as producing a NULL row, as the inner
	// side of an outer join does when nothing matched.
	SetNullFlag(flag bool)

	// NullFlag returns the flag set by SetNullFlag.
	NullFlag() bool

	// BTreeCreate allocates a new empty tree and returns its root page.
	BTreeCreate(flags int) (uint32, error)
}

// Flags accepted by BTreeCreate.
const (
	CreateTable = 1
	CreateIndex = 2
)

// Run calls op until it completes, waiting on c between suspended attempts.
func Run[T any](c Cursor, op func() (Result[T], error)) (T, error) {
	for {
		res, err := op()
		if err != nil {
			var zero T
			return zero, err
		}
		if !res.IsIO() {
			return res.Value(), nil
		}
		if err := c.WaitForCompletion(); err != nil {
			var zero T
			return zero, err
		}
	}
}

// Do runs a Status call to completion.
func Do(c Cursor, op func() (Status, error)) error {
	_, err := Run(c, op)
	return err
}
