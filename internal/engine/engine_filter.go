package engine

import (
	"fmt"

	"goLite/internal/types"
)

// Where is a simple equality filter: column = value. A NULL value matches
// nothing, as in SQL.
type Where struct {
	Column string
	Value  types.OwnedValue
}

// Assignment sets a column to a value in UpdateWhere.
type Assignment struct {
	Column string
	Value  types.OwnedValue
}

// filter is a Where resolved against a table.
type filter struct {
	col   int
	value types.OwnedValue
	// rowid is set when the filter pins the rowid, so a seek can replace the
	// scan.
	rowid bool
}

func resolveWhere(t *Table, where *Where) (*filter, error) {
	if where == nil {
		return nil, nil
	}
	f := &filter{col: t.ColumnIndex(where.Column), value: where.Value}
	switch {
	case f.col >= 0:
		f.rowid = t.Columns[f.col].RowIDAlias
	case isRowIDName(where.Column):
		f.rowid = true
	default:
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.Name, where.Column)
	}
	if f.rowid && where.Value.Kind != types.KindInteger {
		// Rowids are integers; a real with an integral value still matches.
		if where.Value.Kind == types.KindFloat && where.Value.F64 == float64(int64(where.Value.F64)) {
			f.value = types.Integer(int64(where.Value.F64))
		} else {
			f.rowid = false
		}
	}
	return f, nil
}

// matches reports whether row passes the filter. A nil filter passes all.
func (f *filter) matches(row Row) bool {
	if f == nil {
		return true
	}
	if f.value.IsNull() {
		return false
	}
	v := types.Integer(row.RowID)
	if f.col >= 0 {
		v = row.Values[f.col]
	}
	return !v.IsNull() && types.Equal(v, f.value)
}

// Project keeps the requested columns of rows read from t, in that order. An
// empty request keeps every column.
func (t *Table) Project(rows []Row, columns []string) ([]string, []Row, error) {
	return projectColumns(t, rows, columns)
}

// projectColumns returns only the requested columns (in that order).
func projectColumns(t *Table, rows []Row, requested []string) ([]string, []Row, error) {
	if len(requested) == 0 {
		return t.ColumnNames(), rows, nil
	}
	indexes := make([]int, len(requested))
	for i, name := range requested {
		idx := t.ColumnIndex(name)
		if idx < 0 && !isRowIDName(name) {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.Name, name)
		}
		indexes[i] = idx
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		proj := Row{RowID: r.RowID, Values: make([]types.OwnedValue, len(indexes))}
		for i, idx := range indexes {
			if idx < 0 {
				proj.Values[i] = types.Integer(r.RowID)
			} else {
				proj.Values[i] = r.Values[idx]
			}
		}
		out = append(out, proj)
	}
	return append([]string(nil), requested...), out, nil
}
