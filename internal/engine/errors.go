package engine

import "errors"

var (
	// ErrNoSuchTable is returned for a table name missing from the schema.
	ErrNoSuchTable = errors.New("engine: no such table")
	// ErrNoSuchColumn is returned for a column name the table does not have.
	ErrNoSuchColumn = errors.New("engine: no such column")
	// ErrExists is returned when creating a table or index whose name is taken.
	ErrExists = errors.New("engine: already exists")
	// ErrColumnCount is returned when a row does not match the table's width.
	ErrColumnCount = errors.New("engine: wrong number of values")
	// ErrConstraint is returned when a write would break a rowid or UNIQUE
	// constraint.
	ErrConstraint = errors.New("engine: constraint failed")
	// ErrMismatch is returned when a rowid is not an integer.
	ErrMismatch = errors.New("engine: datatype mismatch")
	// ErrUnsupported is returned for schema objects the engine can read but
	// not maintain, such as WITHOUT ROWID tables or expression indexes.
	ErrUnsupported = errors.New("engine: unsupported")
	// ErrSchema is returned for schema rows that cannot be understood.
	ErrSchema = errors.New("engine: malformed schema")
	// ErrFull is returned when no larger rowid is left.
	ErrFull = errors.New("engine: database is full")
)
