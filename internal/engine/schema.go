package engine

import (
	"fmt"
	"strings"

	"goLite/internal/cursor"
	"goLite/internal/storage"
	"goLite/internal/types"
)

// schemaRoot is the root page of the schema table.
const schemaRoot = 1

// SchemaEntry is one row of the schema table.
type SchemaEntry struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	TblName  string `json:"tbl_name"`
	RootPage uint32 `json:"rootpage"`
	SQL      string `json:"sql,omitempty"`
}

func (s SchemaEntry) record() types.OwnedRecord {
	sql := types.Null()
	if s.SQL != "" {
		sql = types.NewText(s.SQL)
	}
	return types.NewOwnedRecord(
		types.NewText(s.Type),
		types.NewText(s.Name),
		types.NewText(s.TblName),
		types.Integer(int64(s.RootPage)),
		sql,
	)
}

func schemaEntry(rec *types.OwnedRecord) (SchemaEntry, error) {
	if rec.Len() < 5 {
		return SchemaEntry{}, fmt.Errorf("%w: schema row has %d fields", ErrSchema, rec.Len())
	}
	text := func(i int) string {
		if v := rec.Values[i]; v.Kind == types.KindText {
			return v.Text.Value
		}
		return ""
	}
	var root uint32
	switch v := rec.Values[3]; v.Kind {
	case types.KindInteger:
		root = uint32(v.I64)
	case types.KindNull:
	default:
		return SchemaEntry{}, fmt.Errorf("%w: rootpage %s", ErrSchema, v)
	}
	return SchemaEntry{Type: text(0), Name: text(1), TblName: text(2), RootPage: root, SQL: text(4)}, nil
}

// readSchema returns every schema row in rowid order. Callers hold e.mu.
func (e *DBEngine) readSchema() ([]SchemaEntry, error) {
	c := e.tableCursor(schemaRoot)
	if err := cursor.Do(c, c.Rewind); err != nil {
		return nil, fmt.Errorf("engine: read schema: %w", err)
	}
	var out []SchemaEntry
	for !c.IsEmpty() {
		rec, err := c.Record()
		if err != nil {
			return nil, fmt.Errorf("engine: read schema: %w", err)
		}
		ent, err := schemaEntry(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
		if err := cursor.Do(c, c.Next); err != nil {
			return nil, fmt.Errorf("engine: read schema: %w", err)
		}
	}
	return out, nil
}

// Schema returns the rows of the schema table.
func (e *DBEngine) Schema() ([]SchemaEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return nil, err
	}
	return e.readSchema()
}

// ListTables returns the names of the user tables in schema order.
func (e *DBEngine) ListTables() ([]string, error) {
	entries, err := e.Schema()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range entries {
		if ent.Type == "table" && !internalName(ent.Name) {
			names = append(names, ent.Name)
		}
	}
	return names, nil
}

// TableSchema returns the columns of a table.
func (e *DBEngine) TableSchema(name string) ([]Column, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return nil, err
	}
	t, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return t.Columns, nil
}

// Table returns everything the engine knows about a table.
func (e *DBEngine) Table(name string) (*Table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.check(false); err != nil {
		return nil, err
	}
	return e.lookup(name)
}

func internalName(name string) bool {
	return len(name) >= 7 && strings.EqualFold(name[:7], "sqlite_")
}

// lookup resolves a table and its indexes. Callers hold e.mu.
func (e *DBEngine) lookup(name string) (*Table, error) {
	entries, err := e.readSchema()
	if err != nil {
		return nil, err
	}
	return findTable(entries, name)
}

func findTable(entries []SchemaEntry, name string) (*Table, error) {
	var t *Table
	for _, ent := range entries {
		if ent.Type == "table" && strings.EqualFold(ent.Name, name) {
			parsed, err := parseTable(ent)
			if err != nil {
				return nil, err
			}
			t = parsed
			break
		}
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, name)
	}
	for _, ent := range entries {
		if ent.Type == "index" && strings.EqualFold(ent.TblName, t.Name) {
			t.Indexes = append(t.Indexes, parseIndex(ent, t))
		}
	}
	return t, nil
}

// nameTaken reports whether a table or index already uses name.
func nameTaken(entries []SchemaEntry, name string) bool {
	for _, ent := range entries {
		if strings.EqualFold(ent.Name, name) {
			return true
		}
	}
	return false
}

// insertSchema appends a row to the schema table and bumps the schema
// cookie so other connections reload. Callers hold e.mu for writing.
func (e *DBEngine) insertSchema(ent SchemaEntry) error {
	c := e.tableCursor(schemaRoot)
	rowid, err := nextRowID(c)
	if err != nil {
		return err
	}
	if err := cursor.Do(c, func() (cursor.Status, error) {
		return c.Insert(types.Integer(rowid), ent.record(), true)
	}); err != nil {
		return fmt.Errorf("engine: write schema: %w", err)
	}
	return e.bumpSchemaCookie()
}

func (e *DBEngine) bumpSchemaCookie() error {
	pg, err := e.pager.Load(1)
	if err != nil {
		return err
	}
	h, err := storage.ParseHeader(pg.Data())
	if err != nil {
		return err
	}
	h.SchemaCookie++
	h.Encode(pg.Data())
	e.pager.MarkDirty(pg)
	return nil
}
