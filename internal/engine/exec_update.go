package engine

import (
	"fmt"

	"goLite/internal/cursor"
	"goLite/internal/types"
)

// UpdateWhere applies the assignments to the rows matching where (every row
// when nil) and returns how many rows were updated. Assigning the rowid alias
// moves the row to the new rowid.
func (e *DBEngine) UpdateWhere(table string, where *Where, assigns []Assignment) (int, error) {
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

	// Precompute assignment indexes.
	assignIdx := make([]int, len(assigns))
	for i, a := range assigns {
		idx := t.ColumnIndex(a.Column)
		if idx < 0 {
			return 0, fmt.Errorf("%w: %s.%s in SET list", ErrNoSuchColumn, t.Name, a.Column)
		}
		assignIdx[i] = idx
	}

	var matched []Row
	if err := e.scan(t, f, func(r Row) error {
		matched = append(matched, r)
		return nil
	}); err != nil {
		return 0, err
	}

	alias := t.aliasIndex()
	for _, old := range matched {
		next := Row{RowID: old.RowID, Values: make([]types.OwnedValue, len(old.Values))}
		copy(next.Values, old.Values)
		for j, a := range assigns {
			next.Values[assignIdx[j]] = a.Value
		}
		if alias >= 0 {
			if next.Values[alias].IsNull() {
				next.Values[alias] = types.Integer(old.RowID)
			}
			id, err := rowidValue(next.Values[alias])
			if err != nil {
				return 0, err
			}
			next.RowID = id
			next.Values[alias] = types.Integer(id)
		}
		if err := e.updateRow(t, old, next); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

func (e *DBEngine) updateRow(t *Table, old, next Row) error {
	c := e.tableCursor(t.Root)
	moved := next.RowID != old.RowID
	if moved {
		exists, err := cursor.Run(c, func() (cursor.Result[bool], error) {
			return c.Exists(types.Integer(next.RowID))
		})
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: rowid %d already in %s", ErrConstraint, next.RowID, t.Name)
		}
	}

	if err := e.removeIndexEntries(t, old); err != nil {
		return err
	}
	if err := e.checkUnique(t, next); err != nil {
		if restoreErr := e.addIndexEntries(t, old); restoreErr != nil {
			return restoreErr
		}
		return err
	}

	if moved {
		found, err := cursor.Run(c, func() (cursor.Result[bool], error) {
			return c.Seek(cursor.TableRowID(old.RowID), cursor.SeekEQ)
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: row %d of %s vanished", ErrSchema, old.RowID, t.Name)
		}
		if err := cursor.Do(c, c.Delete); err != nil {
			return fmt.Errorf("engine: update %s: %w", t.Name, err)
		}
	}
	rec := storedRecord(t, next)
	if err := cursor.Do(c, func() (cursor.Status, error) {
		return c.Insert(types.Integer(next.RowID), rec, false)
	}); err != nil {
		return fmt.Errorf("engine: update %s: %w", t.Name, err)
	}
	return e.addIndexEntries(t, next)
}
