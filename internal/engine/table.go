package engine

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	// RowIDAlias marks an INTEGER PRIMARY KEY column. Its value is the rowid
	// and the stored record holds NULL in its place.
	RowIDAlias bool `json:"rowid_alias,omitempty"`
}

// Table is a table from the schema with its columns and indexes.
type Table struct {
	Name         string   `json:"name"`
	Root         uint32   `json:"rootpage"`
	SQL          string   `json:"sql"`
	Columns      []Column `json:"columns"`
	Indexes      []Index  `json:"indexes,omitempty"`
	WithoutRowID bool     `json:"without_rowid,omitempty"`
}

// Index is an index over some of a table's columns.
type Index struct {
	Name    string `json:"name"`
	Root    uint32 `json:"rootpage"`
	Unique  bool   `json:"unique,omitempty"`
	Columns []int  `json:"columns"`

	// unsupported says why writes cannot maintain this index.
	unsupported string
}

// ColumnIndex returns the position of the named column, or -1. The names
// rowid, oid and _rowid_ resolve to the rowid alias column when there is one.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	if isRowIDName(name) {
		return t.aliasIndex()
	}
	return -1
}

func (t *Table) aliasIndex() int {
	for i, c := range t.Columns {
		if c.RowIDAlias {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// writable reports why rows of t cannot be written, if they cannot.
func (t *Table) writable() error {
	if t.WithoutRowID {
		return fmt.Errorf("%w: %s is a WITHOUT ROWID table", ErrUnsupported, t.Name)
	}
	for _, ix := range t.Indexes {
		if ix.unsupported != "" {
			return fmt.Errorf("%w: index %s: %s", ErrUnsupported, ix.Name, ix.unsupported)
		}
	}
	return nil
}

func isRowIDName(name string) bool {
	switch strings.ToLower(name) {
	case "rowid", "oid", "_rowid_":
		return true
	}
	return false
}

func parseTable(ent SchemaEntry) (*Table, error) {
	t := &Table{Name: ent.Name, Root: ent.RootPage, SQL: ent.SQL}
	if ent.RootPage == 0 {
		// Virtual tables have no b-tree of their own.
		t.WithoutRowID = true
		return t, nil
	}
	cols, err := parseColumns(ent.SQL)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", ent.Name, err)
	}
	t.Columns = cols
	if i := strings.LastIndexByte(ent.SQL, ')'); i >= 0 {
		tail := strings.ToUpper(strings.Join(strings.Fields(ent.SQL[i+1:]), " "))
		t.WithoutRowID = strings.Contains(tail, "WITHOUT ROWID")
	}
	return t, nil
}

// parseColumns extracts the column list of a CREATE TABLE statement. The
// MySQL-flavoured parser handles typed definitions; definitions it rejects,
// such as typeless columns or double-quoted names, go through a tolerant
// splitter instead.
func parseColumns(sql string) ([]Column, error) {
	if cols, err := parseColumnsStrict(sql); err == nil {
		return cols, nil
	}
	return splitColumns(sql)
}

func parseColumnsStrict(sql string) ([]Column, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse SQL failed: %w", err)
	}
	ddl, ok := stmt.(*sqlparser.DDL)
	if !ok || ddl.Action != sqlparser.CreateStr || ddl.TableSpec == nil {
		return nil, fmt.Errorf("%w: statement is not CREATE TABLE", ErrSchema)
	}

	cols := make([]Column, 0, len(ddl.TableSpec.Columns))
	for _, def := range ddl.TableSpec.Columns {
		col := Column{Name: def.Name.String(), Type: strings.ToUpper(def.Type.DescribeType())}
		opts := strings.ToLower(sqlparser.String(&def.Type))
		col.RowIDAlias = isIntegerType(def.Type.Type) && strings.HasSuffix(opts, "primary key")
		cols = append(cols, col)
	}
	for _, idx := range ddl.TableSpec.Indexes {
		if idx.Info.Primary && len(idx.Columns) == 1 {
			markAlias(cols, idx.Columns[0].Column.String())
		}
	}
	return cols, nil
}

func isIntegerType(typ string) bool {
	return strings.EqualFold(strings.TrimSpace(typ), "integer")
}

func markAlias(cols []Column, name string) {
	for i := range cols {
		if strings.EqualFold(cols[i].Name, name) && isIntegerType(cols[i].Type) {
			cols[i].RowIDAlias = true
		}
	}
}

// constraintWords end the type name of a column definition.
var constraintWords = map[string]bool{
	"CONSTRAINT": true, "PRIMARY": true, "NOT": true, "NULL": true,
	"UNIQUE": true, "CHECK": true, "DEFAULT": true, "COLLATE": true,
	"REFERENCES": true, "GENERATED": true, "AS": true,
}

func splitColumns(sql string) ([]Column, error) {
	open := strings.IndexByte(sql, '(')
	end := strings.LastIndexByte(sql, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("%w: no column list in %q", ErrSchema, sql)
	}

	var cols []Column
	var pk []string
	for _, def := range splitTopLevel(sql[open+1 : end]) {
		words := tokenize(def)
		if len(words) == 0 {
			continue
		}
		switch strings.ToUpper(words[0]) {
		case "PRIMARY":
			if inner, ok := parenthesized(def); ok {
				pk = splitTopLevel(inner)
			}
			continue
		case "CONSTRAINT", "UNIQUE", "CHECK", "FOREIGN":
			continue
		}

		col := Column{Name: unquote(words[0])}
		rest := words[1:]
		var typ []string
		for len(rest) > 0 && !constraintWords[strings.ToUpper(rest[0])] {
			typ = append(typ, rest[0])
			rest = rest[1:]
		}
		col.Type = strings.ToUpper(strings.Join(typ, " "))
		tail := strings.ToUpper(strings.Join(rest, " "))
		col.RowIDAlias = isIntegerType(col.Type) &&
			strings.Contains(tail, "PRIMARY KEY") && !strings.Contains(tail, "PRIMARY KEY DESC")
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no columns in %q", ErrSchema, sql)
	}
	if len(pk) == 1 {
		if words := tokenize(pk[0]); len(words) > 0 {
			markAlias(cols, unquote(words[0]))
		}
	}
	return cols, nil
}

// splitTopLevel splits s on commas outside parentheses and quotes.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '[':
			quote = ']'
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// tokenize splits a definition on blanks outside parentheses and quotes.
// A parenthesized group is glued to the word before it.
func tokenize(s string) []string {
	var words []string
	var cur strings.Builder
	depth := 0
	var quote byte
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '[':
			quote = ']'
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'):
			flush()
			continue
		}
		cur.WriteByte(ch)
	}
	flush()
	return words
}

func parenthesized(s string) (string, bool) {
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return "", false
	}
	return s[open+1 : end], true
}

func unquote(name string) string {
	if len(name) >= 2 {
		switch first, last := name[0], name[len(name)-1]; {
		case first == '"' && last == '"':
			return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
		case first == '`' && last == '`':
			return strings.ReplaceAll(name[1:len(name)-1], "``", "`")
		case first == '[' && last == ']':
			return name[1 : len(name)-1]
		case first == '\'' && last == '\'':
			return strings.ReplaceAll(name[1:len(name)-1], "''", "'")
		}
	}
	return name
}

// quoteIdent quotes name unless it is a plain identifier.
func quoteIdent(name string) string {
	plain := name != ""
	for i, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9') {
			plain = false
			break
		}
	}
	if plain && !reservedWord(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func reservedWord(name string) bool {
	switch strings.ToUpper(name) {
	case "TABLE", "INDEX", "SELECT", "FROM", "WHERE", "ORDER", "GROUP", "BY",
		"PRIMARY", "KEY", "UNIQUE", "CHECK", "DEFAULT", "NULL", "NOT", "ON",
		"CREATE", "INSERT", "UPDATE", "DELETE", "VALUES", "INTO", "AND", "OR":
		return true
	}
	return false
}
