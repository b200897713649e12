package engine

import (
	"fmt"

	"goLite/internal/cursor"
	"goLite/internal/types"
)

// DeleteWhere removes the rows matching where, or every row when where is
// nil, and returns how many were removed.
func (e *DBEngine) DeleteWhere(table string, where *Where) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return 0, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return 0, err
	}
	if err := t.writable(); err != nil {
		return 0, err
	}
	f, err := resolveWhere(t, where)
	if err != nil {
		return 0, err
	}

	// Collect first; deleting under a scanning cursor would unposition it.
	var doomed []Row
	if err := e.scan(t, f, func(r Row) error {
		doomed = append(doomed, r)
		return nil
	}); err != nil {
		return 0, err
	}
	for _, r := range doomed {
		if err := e.deleteRow(t, r); err != nil {
			return 0, err
		}
	}
	if len(doomed) > 0 {
		e.log.Debug("deleted rows", "table", t.Name, "rows", len(doomed))
	}
	return len(doomed), nil
}

// DeleteRow removes the row with the given rowid and reports whether it
// existed.
func (e *DBEngine) DeleteRow(table string, rowid int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return false, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return false, err
	}
	if err := t.writable(); err != nil {
		return false, err
	}
	var (
		row   Row
		found bool
	)
	if err := e.scan(t, &filter{col: -1, value: types.Integer(rowid), rowid: true}, func(r Row) error {
		row, found = r, true
		return nil
	}); err != nil || !found {
		return false, err
	}
	if err := e.deleteRow(t, row); err != nil {
		return false, err
	}
	return true, nil
}

// deleteRow removes a row read earlier along with its index entries. The
// table cursor seeks after the index writes, which may move freelist pages.
func (e *DBEngine) deleteRow(t *Table, row Row) error {
	if err := e.removeIndexEntries(t, row); err != nil {
		return err
	}
	c := e.tableCursor(t.Root)
	found, err := cursor.Run(c, func() (cursor.Result[bool], error) {
		return c.Seek(cursor.TableRowID(row.RowID), cursor.SeekEQ)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: row %d of %s vanished", ErrSchema, row.RowID, t.Name)
	}
	if err := cursor.Do(c, c.Delete); err != nil {
		return fmt.Errorf("engine: delete from %s: %w", t.Name, err)
	}
	return nil
}
