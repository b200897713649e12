package engine

import (
	"fmt"
	"strings"

	"goLite/internal/cursor"
	"goLite/internal/ephemeral"
	"goLite/internal/types"
)

// tableSQL renders the CREATE TABLE statement stored in the schema.
func tableSQL(name string, cols []Column) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(name))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c.Name))
		if c.Type != "" {
			b.WriteString(" ")
			b.WriteString(c.Type)
		}
		if c.RowIDAlias {
			b.WriteString(" PRIMARY KEY")
		}
	}
	b.WriteString(")")
	return b.String()
}

func validateColumns(cols []Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("%w: a table needs at least one column", ErrSchema)
	}
	seen := make(map[string]bool, len(cols))
	aliases := 0
	for _, c := range cols {
		key := strings.ToLower(c.Name)
		if c.Name == "" || seen[key] {
			return fmt.Errorf("%w: duplicate or empty column name %q", ErrSchema, c.Name)
		}
		seen[key] = true
		if strings.ContainsAny(c.Type, "(),;\"'") && !typeWithSize(c.Type) {
			return fmt.Errorf("%w: column type %q", ErrSchema, c.Type)
		}
		if c.RowIDAlias {
			aliases++
			if !isIntegerType(c.Type) {
				return fmt.Errorf("%w: rowid alias %s must be INTEGER", ErrSchema, c.Name)
			}
		}
	}
	if aliases > 1 {
		return fmt.Errorf("%w: more than one rowid alias", ErrSchema)
	}
	return nil
}

// typeWithSize accepts declared types such as VARCHAR(10) or DECIMAL(10,2).
func typeWithSize(typ string) bool {
	open := strings.IndexByte(typ, '(')
	if open <= 0 || !strings.HasSuffix(typ, ")") {
		return false
	}
	for _, r := range typ[open+1 : len(typ)-1] {
		if !(r >= '0' && r <= '9' || r == ',' || r == ' ' || r == '-' || r == '+') {
			return false
		}
	}
	return true
}

// CreateTable creates a new table and returns its root page.
func (e *DBEngine) CreateTable(name string, cols []Column) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return 0, err
	}
	if name == "" || internalName(name) {
		return 0, fmt.Errorf("%w: table name %q is reserved", ErrSchema, name)
	}
	if err := validateColumns(cols); err != nil {
		return 0, err
	}
	entries, err := e.readSchema()
	if err != nil {
		return 0, err
	}
	if nameTaken(entries, name) {
		return 0, fmt.Errorf("%w: %s", ErrExists, name)
	}

	c := e.tableCursor(schemaRoot)
	root, err := c.BTreeCreate(cursor.CreateTable)
	if err != nil {
		return 0, fmt.Errorf("engine: create table %s: %w", name, err)
	}
	ent := SchemaEntry{Type: "table", Name: name, TblName: name, RootPage: root, SQL: tableSQL(name, cols)}
	if err := e.insertSchema(ent); err != nil {
		return 0, err
	}
	e.log.Debug("created table", "table", name, "root", root)
	return root, nil
}

// CreateIndex creates an index over columns of a table and fills it from the
// existing rows. The keys are sorted in memory first so the b-tree is built
// by appending.
func (e *DBEngine) CreateIndex(name, table string, columns []string, unique bool) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(true); err != nil {
		return 0, err
	}
	if name == "" || internalName(name) {
		return 0, fmt.Errorf("%w: index name %q is reserved", ErrSchema, name)
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("%w: index %s has no columns", ErrSchema, name)
	}
	entries, err := e.readSchema()
	if err != nil {
		return 0, err
	}
	if nameTaken(entries, name) {
		return 0, fmt.Errorf("%w: %s", ErrExists, name)
	}
	t, err := findTable(entries, table)
	if err != nil {
		return 0, err
	}
	if err := t.writable(); err != nil {
		return 0, err
	}
	ix := Index{Name: name, Unique: unique}
	for _, col := range columns {
		i := t.ColumnIndex(col)
		if i < 0 {
			return 0, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, t.Name, col)
		}
		ix.Columns = append(ix.Columns, i)
	}

	sorter := ephemeral.NewIndex()
	if err := e.scan(t, nil, func(r Row) error {
		_, err := sorter.Insert(types.Null(), indexKey(ix, r), false)
		return err
	}); err != nil {
		return 0, err
	}
	if unique {
		if err := sortedUnique(sorter, len(ix.Columns)); err != nil {
			return 0, fmt.Errorf("%w: UNIQUE %s", err, name)
		}
	}

	root, err := e.tableCursor(schemaRoot).BTreeCreate(cursor.CreateIndex)
	if err != nil {
		return 0, fmt.Errorf("engine: create index %s: %w", name, err)
	}
	ic := e.indexCursor(root)
	if err := cursor.Do(sorter, sorter.Rewind); err != nil {
		return 0, err
	}
	for !sorter.IsEmpty() {
		key, _ := sorter.Record()
		if err := cursor.Do(ic, func() (cursor.Status, error) {
			return ic.Insert(types.Null(), *key, true)
		}); err != nil {
			return 0, fmt.Errorf("engine: build index %s: %w", name, err)
		}
		if err := cursor.Do(sorter, sorter.Next); err != nil {
			return 0, err
		}
	}

	ent := SchemaEntry{
		Type: "index", Name: name, TblName: t.Name, RootPage: root,
		SQL: indexSQL(name, t.Name, columns, unique),
	}
	if err := e.insertSchema(ent); err != nil {
		return 0, err
	}
	e.log.Debug("created index", "index", name, "table", t.Name, "root", root, "entries", sorter.Len())
	return root, nil
}

// sortedUnique fails when two neighbouring keys agree on their first n
// fields and none of those is NULL.
func sortedUnique(sorter *ephemeral.Cursor, n int) error {
	if err := cursor.Do(sorter, sorter.Rewind); err != nil {
		return err
	}
	var prev *types.OwnedRecord
	for !sorter.IsEmpty() {
		rec, _ := sorter.Record()
		key := types.NewOwnedRecord(rec.Values[:n]...)
		if prev != nil && !hasNull(key) && prev.Compare(key) == 0 {
			return ErrConstraint
		}
		prev = &key
		if err := cursor.Do(sorter, sorter.Next); err != nil {
			return err
		}
	}
	return nil
}
