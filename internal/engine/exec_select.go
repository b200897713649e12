package engine

import (
	"fmt"
	"strings"

	"goLite/internal/btree"
	"goLite/internal/cursor"
	"goLite/internal/ephemeral"
	"goLite/internal/types"
)

// Row is one table row. Values follow the table's column order; the rowid
// alias column, if any, carries the rowid.
type Row struct {
	RowID  int64              `json:"rowid"`
	Values []types.OwnedValue `json:"values"`
}

// rowFrom builds a row from a stored record. Records written before a column
// was added are shorter than the table; the missing columns read as NULL.
func rowFrom(t *Table, rowid int64, rec *types.OwnedRecord) Row {
	row := Row{RowID: rowid, Values: make([]types.OwnedValue, len(t.Columns))}
	for i := range row.Values {
		if i < rec.Len() {
			row.Values[i] = rec.Values[i]
		} else {
			row.Values[i] = types.Null()
		}
		if t.Columns[i].RowIDAlias && row.Values[i].IsNull() {
			row.Values[i] = types.Integer(rowid)
		}
	}
	return row
}

// storedRecord is the record written for a row: the rowid alias is stored as
// NULL.
func storedRecord(t *Table, row Row) types.OwnedRecord {
	vals := make([]types.OwnedValue, len(row.Values))
	copy(vals, row.Values)
	if i := t.aliasIndex(); i >= 0 {
		vals[i] = types.Null()
	}
	return types.NewOwnedRecord(vals...)
}

func (t *Table) readable() error {
	if t.WithoutRowID {
		return fmt.Errorf("%w: %s has no rowid b-tree", ErrUnsupported, t.Name)
	}
	return nil
}

// current returns the row under a table cursor.
func current(t *Table, c *btree.Cursor) (Row, error) {
	id, _, err := c.RowID()
	if err != nil {
		return Row{}, err
	}
	rec, err := c.Record()
	if err != nil {
		return Row{}, err
	}
	return rowFrom(t, id, rec), nil
}

// scan calls fn for every row passing f, in rowid order. A filter on the
// rowid becomes a single seek. Callers hold e.mu.
func (e *DBEngine) scan(t *Table, f *filter, fn func(Row) error) error {
	if err := t.readable(); err != nil {
		return err
	}
	c := e.tableCursor(t.Root)
	if f != nil && f.rowid {
		if f.value.IsNull() {
			return nil
		}
		found, err := cursor.Run(c, func() (cursor.Result[bool], error) {
			return c.Seek(cursor.TableRowID(f.value.I64), cursor.SeekEQ)
		})
		if err != nil || !found {
			return err
		}
		row, err := current(t, c)
		if err != nil {
			return err
		}
		return fn(row)
	}

	if err := cursor.Do(c, c.Rewind); err != nil {
		return fmt.Errorf("engine: scan %s: %w", t.Name, err)
	}
	for !c.IsEmpty() {
		row, err := current(t, c)
		if err != nil {
			return fmt.Errorf("engine: scan %s: %w", t.Name, err)
		}
		if f.matches(row) {
			if err := fn(row); err != nil {
				return err
			}
		}
		if err := cursor.Do(c, c.Next); err != nil {
			return fmt.Errorf("engine: scan %s: %w", t.Name, err)
		}
	}
	return nil
}

// Scan calls fn for every row of a table in rowid order. Returning an error
// from fn stops the scan and returns that error.
func (e *DBEngine) Scan(table string, fn func(Row) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return err
	}
	t, err := e.lookup(table)
	if err != nil {
		return err
	}
	return e.scan(t, nil, fn)
}

// SelectAll returns the column names and all rows of a table.
func (e *DBEngine) SelectAll(table string) ([]string, []Row, error) {
	return e.Select(table, nil, nil)
}

// Select returns the requested columns (all when columns is empty) of the
// rows matching where (all when nil).
func (e *DBEngine) Select(table string, columns []string, where *Where) ([]string, []Row, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return nil, nil, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return nil, nil, err
	}
	f, err := resolveWhere(t, where)
	if err != nil {
		return nil, nil, err
	}
	var rows []Row
	if err := e.scan(t, f, func(r Row) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return projectColumns(t, rows, columns)
}

// Get returns the row with the given rowid.
func (e *DBEngine) Get(table string, rowid int64) (Row, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return Row{}, false, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return Row{}, false, err
	}
	var (
		row   Row
		found bool
	)
	err = e.scan(t, &filter{col: -1, value: types.Integer(rowid), rowid: true}, func(r Row) error {
		row, found = r, true
		return nil
	})
	return row, found, err
}

// SelectOrdered returns the rows of a table ordered by one column, ties
// broken by rowid. An index led by the column is walked when one exists;
// otherwise the rows are sorted through an in-memory index.
func (e *DBEngine) SelectOrdered(table, column string, desc bool) ([]Row, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return nil, err
	}
	t, err := e.lookup(table)
	if err != nil {
		return nil, err
	}
	if err := t.readable(); err != nil {
		return nil, err
	}
	col := t.ColumnIndex(column)
	if col < 0 && !isRowIDName(column) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.Name, column)
	}
	if col < 0 || t.Columns[col].RowIDAlias {
		return e.rowidOrder(t, desc)
	}

	var order cursor.Cursor
	for _, ix := range t.Indexes {
		if ix.unsupported == "" && len(ix.Columns) == 1 && ix.Columns[0] == col {
			order = e.indexCursor(ix.Root)
			break
		}
	}
	if order == nil {
		sorter := ephemeral.NewIndex()
		if err := e.scan(t, nil, func(r Row) error {
			_, err := sorter.Insert(types.Null(), types.NewOwnedRecord(r.Values[col], types.Integer(r.RowID)), false)
			return err
		}); err != nil {
			return nil, err
		}
		e.log.Debug("sorted in memory", "table", t.Name, "column", column, "rows", sorter.Len())
		order = sorter
	}
	return e.fetchInOrder(t, order, desc)
}

func (e *DBEngine) rowidOrder(t *Table, desc bool) ([]Row, error) {
	var rows []Row
	if err := e.scan(t, nil, func(r Row) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		return nil, err
	}
	if desc {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows, nil
}

// fetchInOrder walks an index-shaped cursor and looks up each rowid it names.
func (e *DBEngine) fetchInOrder(t *Table, order cursor.Cursor, desc bool) ([]Row, error) {
	start, step := order.Rewind, order.Next
	if desc {
		start, step = order.Last, order.Prev
	}
	if err := cursor.Do(order, start); err != nil {
		return nil, err
	}
	tc := e.tableCursor(t.Root)
	var rows []Row
	for !order.IsEmpty() {
		id, _, err := order.RowID()
		if err != nil {
			return nil, err
		}
		found, err := cursor.Run(tc, func() (cursor.Result[bool], error) {
			return tc.Seek(cursor.TableRowID(id), cursor.SeekEQ)
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s has no row %d named by its index", ErrSchema, t.Name, id)
		}
		row, err := current(t, tc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if err := cursor.Do(order, step); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// NewAggregate returns an empty aggregate of the given kind. GroupConcat
// separates items with a comma.
func NewAggregate(kind types.AggKind) (*types.AggContext, error) {
	switch kind {
	case types.AggAvg:
		return types.NewAvg(), nil
	case types.AggSum:
		return types.NewSum(), nil
	case types.AggCount:
		return types.NewCount(), nil
	case types.AggMax:
		return types.NewMax(), nil
	case types.AggMin:
		return types.NewMin(), nil
	case types.AggGroupConcat:
		return types.NewGroupConcat(","), nil
	}
	return nil, fmt.Errorf("%w: aggregate %s", ErrUnsupported, kind)
}

// ParseAggKind maps a function name such as "sum" to its kind.
func ParseAggKind(name string) (types.AggKind, error) {
	for _, k := range []types.AggKind{types.AggAvg, types.AggSum, types.AggCount, types.AggMax, types.AggMin, types.AggGroupConcat} {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: aggregate %q", ErrUnsupported, name)
}

// Aggregate folds one column of the rows matching where through an
// aggregate. The column "*" counts rows.
func (e *DBEngine) Aggregate(table, column string, kind types.AggKind, where *Where) (types.OwnedValue, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return types.Null(), err
	}
	t, err := e.lookup(table)
	if err != nil {
		return types.Null(), err
	}
	f, err := resolveWhere(t, where)
	if err != nil {
		return types.Null(), err
	}
	agg, err := NewAggregate(kind)
	if err != nil {
		return types.Null(), err
	}

	col := -1
	star := column == "*"
	if star {
		if kind != types.AggCount {
			return types.Null(), fmt.Errorf("%w: %s(*)", ErrUnsupported, kind)
		}
	} else if col = t.ColumnIndex(column); col < 0 && !isRowIDName(column) {
		return types.Null(), fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.Name, column)
	}

	if err := e.scan(t, f, func(r Row) error {
		switch {
		case star:
			agg.Step(types.Integer(1))
		case col < 0:
			agg.Step(types.Integer(r.RowID))
		default:
			agg.Step(r.Values[col])
		}
		return nil
	}); err != nil {
		return types.Null(), err
	}
	agg.Finalize()
	return agg.FinalValue(), nil
}
