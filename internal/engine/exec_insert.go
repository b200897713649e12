package engine

import (
	"fmt"
	"math"

	"goLite/internal/btree"
	"goLite/internal/cursor"
	"goLite/internal/types"
)

// nextRowID positions c on the last row and returns one past its rowid. The
// cursor is left where an append will land, so the insert can take the
// append path.
func nextRowID(c *btree.Cursor) (int64, error) {
	if err := cursor.Do(c, c.SeekToLast); err != nil {
		return 0, err
	}
	if c.IsEmpty() {
		return 1, nil
	}
	last, _, err := c.RowID()
	if err != nil {
		return 0, err
	}
	if last == math.MaxInt64 {
		return 0, ErrFull
	}
	return max(last+1, 1), nil
}

// rowidValue converts an explicit rowid alias value.
func rowidValue(v types.OwnedValue) (int64, error) {
	switch v.Kind {
	case types.KindInteger:
		return v.I64, nil
	case types.KindFloat:
		if i := int64(v.F64); float64(i) == v.F64 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: rowid %s", ErrMismatch, v)
}

// InsertRow inserts a single row into the given table and returns its rowid.
// Values follow the table's column order. A non-NULL value for the rowid
// alias column picks the rowid; otherwise it is one past the largest.
func (e *DBEngine) InsertRow(table string, values []types.OwnedValue) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return 0, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return 0, err
	}
	return e.insert(t, values)
}

// InsertNamed inserts a row given as column name to value. Columns left out
// are NULL.
func (e *DBEngine) InsertNamed(table string, values map[string]types.OwnedValue) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return 0, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return 0, err
	}
	row := make([]types.OwnedValue, len(t.Columns))
	for i := range row {
		row[i] = types.Null()
	}
	for name, v := range values {
		i := t.ColumnIndex(name)
		if i < 0 {
			return 0, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.Name, name)
		}
		row[i] = v
	}
	return e.insert(t, row)
}

func (e *DBEngine) insert(t *Table, values []types.OwnedValue) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	if len(values) != len(t.Columns) {
		return 0, fmt.Errorf("%w: table %s has %d columns but %d values were supplied",
			ErrColumnCount, t.Name, len(t.Columns), len(values))
	}

	c := e.tableCursor(t.Root)
	row := Row{Values: make([]types.OwnedValue, len(values))}
	copy(row.Values, values)

	alias := t.aliasIndex()
	appending := true
	if alias >= 0 && !row.Values[alias].IsNull() {
		id, err := rowidValue(row.Values[alias])
		if err != nil {
			return 0, err
		}
		exists, err := cursor.Run(c, func() (cursor.Result[bool], error) {
			return c.Exists(types.Integer(id))
		})
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("%w: rowid %d already in %s", ErrConstraint, id, t.Name)
		}
		row.RowID = id
		appending = false
	} else {
		id, err := nextRowID(c)
		if err != nil {
			return 0, err
		}
		row.RowID = id
	}
	if alias >= 0 {
		row.Values[alias] = types.Integer(row.RowID)
	}

	if err := e.checkUnique(t, row); err != nil {
		return 0, err
	}
	rec := storedRecord(t, row)
	if err := cursor.Do(c, func() (cursor.Status, error) {
		return c.Insert(types.Integer(row.RowID), rec, appending)
	}); err != nil {
		return 0, fmt.Errorf("engine: insert into %s: %w", t.Name, err)
	}
	if err := e.addIndexEntries(t, row); err != nil {
		return 0, err
	}
	return row.RowID, nil
}
