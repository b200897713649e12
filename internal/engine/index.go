package engine

import (
	"fmt"
	"strings"

	"goLite/internal/cursor"
	"goLite/internal/types"
)

// parseIndex reads an index schema row. Indexes the engine cannot keep up to
// date are still listed; they only block writes to their table.
func parseIndex(ent SchemaEntry, t *Table) Index {
	ix := Index{Name: ent.Name, Root: ent.RootPage}
	if ent.SQL == "" {
		// Automatic indexes behind UNIQUE and PRIMARY KEY constraints.
		ix.unsupported = "automatic index"
		return ix
	}
	words := tokenize(ent.SQL)
	ix.Unique = len(words) > 1 && strings.EqualFold(words[1], "UNIQUE")

	on := -1
	for i, w := range words {
		if strings.EqualFold(w, "ON") {
			on = i
			break
		}
	}
	inner, ok := parenthesized(ent.SQL)
	if on < 0 || !ok {
		ix.unsupported = "unrecognised definition"
		return ix
	}
	if end := strings.LastIndexByte(ent.SQL, ')'); strings.Contains(strings.ToUpper(ent.SQL[end+1:]), "WHERE") {
		ix.unsupported = "partial index"
		return ix
	}
	for _, term := range splitTopLevel(inner) {
		parts := tokenize(term)
		if len(parts) == 2 && strings.EqualFold(parts[1], "ASC") {
			parts = parts[:1]
		}
		if len(parts) != 1 {
			ix.unsupported = fmt.Sprintf("term %q", term)
			return ix
		}
		col := t.ColumnIndex(unquote(parts[0]))
		if col < 0 {
			ix.unsupported = fmt.Sprintf("expression %q", term)
			return ix
		}
		ix.Columns = append(ix.Columns, col)
	}
	return ix
}

// indexSQL renders the CREATE INDEX statement stored in the schema.
func indexSQL(name, table string, cols []string, unique bool) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(quoteIdent(name))
	b.WriteString(" ON ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c))
	}
	b.WriteString(")")
	return b.String()
}

// indexKey builds the entry of ix for a row: the indexed values followed by
// the rowid.
func indexKey(ix Index, row Row) types.OwnedRecord {
	vals := make([]types.OwnedValue, 0, len(ix.Columns)+1)
	for _, col := range ix.Columns {
		vals = append(vals, row.Values[col])
	}
	vals = append(vals, types.Integer(row.RowID))
	return types.NewOwnedRecord(vals...)
}

// checkUnique fails when another row already holds the key of row in a
// UNIQUE index. Keys with a NULL never collide.
func (e *DBEngine) checkUnique(t *Table, row Row) error {
	for _, ix := range t.Indexes {
		if !ix.Unique {
			continue
		}
		key := indexKey(ix, row)
		prefix := types.NewOwnedRecord(key.Values[:len(ix.Columns)]...)
		if hasNull(prefix) {
			continue
		}
		c := e.indexCursor(ix.Root)
		found, err := cursor.Run(c, func() (cursor.Result[bool], error) {
			return c.Seek(cursor.IndexKey(&prefix), cursor.SeekEQ)
		})
		if err != nil {
			return err
		}
		for found && !c.IsEmpty() {
			rec, err := c.Record()
			if err != nil {
				return err
			}
			if rec.ComparePrefix(prefix) != 0 {
				break
			}
			id, _, err := c.RowID()
			if err != nil {
				return err
			}
			if id != row.RowID {
				return fmt.Errorf("%w: UNIQUE %s", ErrConstraint, ix.Name)
			}
			if err := cursor.Do(c, c.Next); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasNull(rec types.OwnedRecord) bool {
	for _, v := range rec.Values {
		if v.IsNull() {
			return true
		}
	}
	return false
}

// addIndexEntries inserts the index entries of a row.
func (e *DBEngine) addIndexEntries(t *Table, row Row) error {
	for _, ix := range t.Indexes {
		c := e.indexCursor(ix.Root)
		key := indexKey(ix, row)
		if err := cursor.Do(c, func() (cursor.Status, error) {
			return c.Insert(types.Null(), key, false)
		}); err != nil {
			return fmt.Errorf("engine: index %s: %w", ix.Name, err)
		}
	}
	return nil
}

// removeIndexEntries deletes the index entries of a row.
func (e *DBEngine) removeIndexEntries(t *Table, row Row) error {
	for _, ix := range t.Indexes {
		c := e.indexCursor(ix.Root)
		key := indexKey(ix, row)
		found, err := cursor.Run(c, func() (cursor.Result[bool], error) {
			return c.Seek(cursor.IndexKey(&key), cursor.SeekEQ)
		})
		if err != nil {
			return fmt.Errorf("engine: index %s: %w", ix.Name, err)
		}
		if !found {
			return fmt.Errorf("%w: index %s has no entry %s", ErrSchema, ix.Name, key)
		}
		if err := cursor.Do(c, c.Delete); err != nil {
			return fmt.Errorf("engine: index %s: %w", ix.Name, err)
		}
	}
	return nil
}
