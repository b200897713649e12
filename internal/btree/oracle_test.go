package btree

import (
	"bytes"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"goLite/internal/cursor"
	"goLite/internal/pager"
	"goLite/internal/types"
)

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("Exec(%q) failed: %v", query, err)
	}
}

func rootPage(t *testing.T, db *sql.DB, name string) uint32 {
	t.Helper()
	var root int64
	if err := db.QueryRow("SELECT rootpage FROM sqlite_schema WHERE name = ?", name).Scan(&root); err != nil {
		t.Fatalf("rootpage of %s: %v", name, err)
	}
	return uint32(root)
}

func queryRows(t *testing.T, db *sql.DB, query string) [][]any {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("Query(%q) failed: %v", query, err)
	}
	defer rows.Close()
	cols, _ := rows.Columns()
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

// sameValue reports whether a value read through database/sql matches v.
func sameValue(want any, v types.OwnedValue) bool {
	switch w := want.(type) {
	case nil:
		return v.Kind == types.KindNull
	case int64:
		return v.Kind == types.KindInteger && v.I64 == w
	case float64:
		return v.Kind == types.KindFloat && v.F64 == w
	case string:
		return v.Kind == types.KindText && v.Text.Value == w
	case []byte:
		return v.Kind == types.KindBlob && bytes.Equal(v.Blob.Bytes(), w)
	}
	return false
}

func oracleA(i int) any {
	switch i % 5 {
	case 0:
		if i%10 == 0 {
			return -int64(i) * 7919
		}
		return int64(i) * 1000003
	case 1:
		return float64(i) + 0.25
	case 2:
		return fmt.Sprintf("text-%d", i)
	case 3:
		return []byte{byte(i), byte(i >> 8), 0xff}
	}
	return nil
}

func oracleB(i int) any {
	switch {
	case i%13 == 0:
		return nil
	case i%50 == 0:
		return strings.Repeat("z", 1500) + fmt.Sprint(i)
	case i%17 == 0:
		return int64(i % 40)
	}
	return fmt.Sprintf("b%05d", i%700)
}

func TestReadsSQLiteDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	mustExec(t, db, "PRAGMA page_size=1024")
	mustExec(t, db, "CREATE TABLE t(a, b)")
	mustExec(t, db, "CREATE INDEX tb ON t(b)")
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for i := 1; i <= 3000; i++ {
		if _, err := tx.Exec("INSERT INTO t(rowid, a, b) VALUES (?, ?, ?)", i*2, oracleA(i), oracleB(i)); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	troot, iroot := rootPage(t, db, "t"), rootPage(t, db, "tb")
	wantRows := queryRows(t, db, "SELECT rowid, a, b FROM t ORDER BY rowid")
	wantKeys := queryRows(t, db, "SELECT b, rowid FROM t ORDER BY b, rowid")
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	p, err := pager.Open(path, pager.Options{ReadOnly: true, CachePages: 64})
	if err != nil {
		t.Fatalf("pager.Open failed: %v", err)
	}
	defer p.Close()

	tc := NewTableCursor(p, troot)
	if err := cursor.Do(tc, tc.Rewind); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	for i, want := range wantRows {
		if tc.IsEmpty() {
			t.Fatalf("table scan ended after %d rows", i)
		}
		id, _, _ := tc.RowID()
		rec, err := tc.Record()
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if id != want[0].(int64) || rec.Len() != 2 || !sameValue(want[1], rec.Values[0]) || !sameValue(want[2], rec.Values[1]) {
			t.Fatalf("row %d: got %d %s, want %v", i, id, rec, want)
		}
		if err := cursor.Do(tc, tc.Next); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	if !tc.IsEmpty() {
		t.Fatalf("table has more rows than sqlite reported")
	}

	ic := NewIndexCursor(p, iroot)
	if err := cursor.Do(ic, ic.Rewind); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	for i, want := range wantKeys {
		if ic.IsEmpty() {
			t.Fatalf("index scan ended after %d entries", i)
		}
		rec, _ := ic.Record()
		if rec.Len() != 2 || !sameValue(want[0], rec.Values[0]) || !sameValue(want[1], rec.Values[1]) {
			t.Fatalf("index entry %d: got %s, want %v", i, rec, want)
		}
		if err := cursor.Do(ic, ic.Next); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	if !ic.IsEmpty() {
		t.Fatalf("index has more entries than sqlite reported")
	}

	// Point lookups through the index land on the rows sqlite stored.
	key := types.NewOwnedRecord(types.NewText("b00123"))
	if !seek(t, ic, cursor.IndexKey(&key), cursor.SeekGE) {
		t.Fatalf("index seek found nothing")
	}
	id, _, err := ic.RowID()
	if err != nil {
		t.Fatalf("RowID failed: %v", err)
	}
	if !seek(t, tc, cursor.TableRowID(id), cursor.SeekEQ) {
		t.Fatalf("row %d from the index is missing", id)
	}
	rec, _ := tc.Record()
	if rec.Values[1].Kind != types.KindText || rec.Values[1].Text.Value != "b00123" {
		t.Fatalf("row %d = %s", id, rec)
	}
}

func TestSQLiteReadsOurWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "written.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	mustExec(t, db, "PRAGMA page_size=1024")
	mustExec(t, db, "CREATE TABLE w(a, b)")
	mustExec(t, db, "CREATE INDEX wb ON w(b)")
	troot, iroot := rootPage(t, db, "w"), rootPage(t, db, "wb")
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	p, err := pager.Open(path, pager.Options{})
	if err != nil {
		t.Fatalf("pager.Open failed: %v", err)
	}
	tc, ic := NewTableCursor(p, troot), NewIndexCursor(p, iroot)
	bval := func(i int) types.OwnedValue {
		if i%40 == 0 {
			return types.NewText(strings.Repeat("long", 400) + fmt.Sprint(i))
		}
		return types.NewText(fmt.Sprintf("v-%04d", i%97))
	}
	const n = 600
	var sum int64
	for i := 1; i <= n; i++ {
		insertRow(t, tc, int64(i), types.NewOwnedRecord(types.Integer(int64(i)), bval(i)))
		insertKey(t, ic, types.NewOwnedRecord(bval(i), types.Integer(int64(i))))
		sum += int64(i)
	}
	for i := 3; i <= n; i += 3 {
		if !seek(t, tc, cursor.TableRowID(int64(i)), cursor.SeekEQ) {
			t.Fatalf("row %d missing", i)
		}
		if err := cursor.Do(tc, tc.Delete); err != nil {
			t.Fatalf("Delete row %d failed: %v", i, err)
		}
		key := types.NewOwnedRecord(bval(i), types.Integer(int64(i)))
		if !seek(t, ic, cursor.IndexKey(&key), cursor.SeekEQ) {
			t.Fatalf("index entry %d missing", i)
		}
		if err := cursor.Do(ic, ic.Delete); err != nil {
			t.Fatalf("Delete index entry %d failed: %v", i, err)
		}
		sum -= int64(i)
	}
	if _, err := p.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()
	var check string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&check); err != nil {
		t.Fatalf("integrity_check failed: %v", err)
	}
	if check != "ok" {
		t.Fatalf("integrity_check: %s", check)
	}
	var count, total int64
	if err := db.QueryRow("SELECT count(*), sum(a) FROM w").Scan(&count, &total); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != n-n/3 || total != sum {
		t.Fatalf("sqlite sees %d rows summing to %d, want %d and %d", count, total, n-n/3, sum)
	}
	var hits int64
	if err := db.QueryRow("SELECT count(*) FROM w INDEXED BY wb WHERE b = 'v-0005'").Scan(&hits); err != nil {
		t.Fatalf("indexed lookup failed: %v", err)
	}
	want := int64(0)
	for i := 1; i <= n; i++ {
		if i%3 != 0 && i%40 != 0 && i%97 == 5 {
			want++
		}
	}
	if hits != want {
		t.Fatalf("indexed lookup found %d rows, want %d", hits, want)
	}
}
