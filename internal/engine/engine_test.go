package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"goLite/internal/config"
	"goLite/internal/logger"
	"goLite/internal/pager"
	"goLite/internal/types"
)

func openEngine(t *testing.T, path string, readOnly bool) *DBEngine {
	t.Helper()
	cfg := config.Default()
	cfg.PageSize = 1024
	cfg.ReadOnly = readOnly
	eng, err := Open(path, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func newEngine(t *testing.T) (*DBEngine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	return openEngine(t, path, false), path
}

var userCols = []Column{
	{Name: "id", Type: "INTEGER", RowIDAlias: true},
	{Name: "name", Type: "TEXT"},
	{Name: "active", Type: "INTEGER"},
}

func createUsers(t *testing.T, eng *DBEngine) {
	t.Helper()
	if _, err := eng.CreateTable("users", userCols); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
}

func mustInsert(t *testing.T, eng *DBEngine, table string, vals ...types.OwnedValue) int64 {
	t.Helper()
	id, err := eng.InsertRow(table, vals)
	if err != nil {
		t.Fatalf("InsertRow into %s failed: %v", table, err)
	}
	return id
}

// TestEngineCreateInsertSelectAll checks the engine API end-to-end and that
// the rows survive a reopen.
func TestEngineCreateInsertSelectAll(t *testing.T) {
	eng, path := newEngine(t)
	createUsers(t, eng)

	if id := mustInsert(t, eng, "users", types.Null(), types.NewText("Alice"), types.Integer(1)); id != 1 {
		t.Fatalf("first rowid = %d, want 1", id)
	}
	if id := mustInsert(t, eng, "users", types.Integer(10), types.NewText("Bob"), types.Integer(0)); id != 10 {
		t.Fatalf("explicit rowid = %d, want 10", id)
	}
	if id := mustInsert(t, eng, "users", types.Null(), types.NewText("Carol"), types.Null()); id != 11 {
		t.Fatalf("next rowid = %d, want 11", id)
	}

	check := func(eng *DBEngine) {
		t.Helper()
		cols, rows, err := eng.SelectAll("users")
		if err != nil {
			t.Fatalf("SelectAll failed: %v", err)
		}
		expectedCols := []string{"id", "name", "active"}
		if len(cols) != len(expectedCols) {
			t.Fatalf("expected %d columns, got %d", len(expectedCols), len(cols))
		}
		for i, want := range expectedCols {
			if cols[i] != want {
				t.Fatalf("column %d: expected %q, got %q", i, want, cols[i])
			}
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		wantNames := []string{"Alice", "Bob", "Carol"}
		wantIDs := []int64{1, 10, 11}
		for i, row := range rows {
			if row.RowID != wantIDs[i] || row.Values[0].Kind != types.KindInteger || row.Values[0].I64 != wantIDs[i] {
				t.Fatalf("row %d: rowid %d id %s, want %d", i, row.RowID, row.Values[0], wantIDs[i])
			}
			if row.Values[1].Text.Value != wantNames[i] {
				t.Fatalf("row %d: name %s, want %s", i, row.Values[1], wantNames[i])
			}
		}
		if !rows[2].Values[2].IsNull() {
			t.Fatalf("Carol.active = %s, want NULL", rows[2].Values[2])
		}
	}
	check(eng)

	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	check(openEngine(t, path, true))
}

func TestEngineListTablesAndSchema(t *testing.T) {
	eng, _ := newEngine(t)
	createUsers(t, eng)
	if _, err := eng.CreateTable("odd name", []Column{{Name: "x y"}, {Name: "z", Type: "VARCHAR(10)"}}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	names, err := eng.ListTables()
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(names) != 2 || names[0] != "users" || names[1] != "odd name" {
		t.Fatalf("ListTables = %v", names)
	}
	cols, err := eng.TableSchema("ODD NAME")
	if err != nil {
		t.Fatalf("TableSchema failed: %v", err)
	}
	if len(cols) != 2 || cols[0].Name != "x y" || cols[1].Type != "VARCHAR(10)" {
		t.Fatalf("TableSchema = %+v", cols)
	}
	if _, err := eng.CreateTable("users", userCols); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate CreateTable: %v", err)
	}
	if _, err := eng.TableSchema("missing"); !errors.Is(err, ErrNoSuchTable) {
		t.Fatalf("TableSchema(missing): %v", err)
	}
	if eng.Header().PageSize != 1024 {
		t.Fatalf("page size %d", eng.Header().PageSize)
	}
}

func TestEngineRowIDConstraints(t *testing.T) {
	eng, _ := newEngine(t)
	createUsers(t, eng)
	mustInsert(t, eng, "users", types.Integer(5), types.NewText("a"), types.Integer(1))

	if _, err := eng.InsertRow("users", []types.OwnedValue{types.Integer(5), types.NewText("b"), types.Null()}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("duplicate rowid: %v", err)
	}
	if _, err := eng.InsertRow("users", []types.OwnedValue{types.NewText("x"), types.NewText("b"), types.Null()}); !errors.Is(err, ErrMismatch) {
		t.Fatalf("text rowid: %v", err)
	}
	if id := mustInsert(t, eng, "users", types.Float(7), types.NewText("c"), types.Null()); id != 7 {
		t.Fatalf("integral real rowid = %d", id)
	}
	if _, err := eng.InsertRow("users", []types.OwnedValue{types.Null()}); !errors.Is(err, ErrColumnCount) {
		t.Fatalf("short row: %v", err)
	}
	id, err := eng.InsertNamed("users", map[string]types.OwnedValue{"name": types.NewText("d")})
	if err != nil || id != 8 {
		t.Fatalf("InsertNamed = %d, %v", id, err)
	}
	if _, err := eng.InsertNamed("users", map[string]types.OwnedValue{"nope": types.Null()}); !errors.Is(err, ErrNoSuchColumn) {
		t.Fatalf("unknown column: %v", err)
	}
}

func TestEngineSelectWhere(t *testing.T) {
	eng, _ := newEngine(t)
	createUsers(t, eng)
	for i := 1; i <= 20; i++ {
		mustInsert(t, eng, "users", types.Null(), types.NewText(fmt.Sprintf("u%d", i)), types.Integer(int64(i%2)))
	}

	cols, rows, err := eng.Select("users", []string{"name", "rowid"}, &Where{Column: "active", Value: types.Integer(1)})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(cols) != 2 || cols[0] != "name" || len(rows) != 10 {
		t.Fatalf("Select returned %v and %d rows", cols, len(rows))
	}
	for _, r := range rows {
		if r.RowID%2 != 1 || r.Values[1].I64 != r.RowID {
			t.Fatalf("unexpected row %+v", r)
		}
	}

	// 1 and 1.0 compare equal.
	_, rows, err = eng.Select("users", nil, &Where{Column: "id", Value: types.Float(4)})
	if err != nil || len(rows) != 1 || rows[0].Values[1].Text.Value != "u4" {
		t.Fatalf("rowid lookup = %v, %v", rows, err)
	}
	_, rows, _ = eng.Select("users", nil, &Where{Column: "active", Value: types.Null()})
	if len(rows) != 0 {
		t.Fatalf("= NULL matched %d rows", len(rows))
	}
	if _, _, err := eng.Select("users", []string{"bogus"}, nil); !errors.Is(err, ErrNoSuchColumn) {
		t.Fatalf("bad projection: %v", err)
	}
	row, ok, err := eng.Get("users", 3)
	if err != nil || !ok || row.Values[1].Text.Value != "u3" {
		t.Fatalf("Get(3) = %+v %v %v", row, ok, err)
	}
	if _, ok, _ := eng.Get("users", 99); ok {
		t.Fatalf("Get(99) found a row")
	}
}

func TestEngineAggregate(t *testing.T) {
	eng, _ := newEngine(t)
	if _, err := eng.CreateTable("m", []Column{{Name: "k"}, {Name: "v"}}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	mustInsert(t, eng, "m", types.NewText("a"), types.Integer(4))
	mustInsert(t, eng, "m", types.NewText("b"), types.Float(2.5))
	mustInsert(t, eng, "m", types.NewText("a"), types.Null())
	mustInsert(t, eng, "m", types.NewText("c"), types.Integer(-1))

	agg := func(col string, kind types.AggKind, where *Where) types.OwnedValue {
		t.Helper()
		v, err := eng.Aggregate("m", col, kind, where)
		if err != nil {
			t.Fatalf("Aggregate %s(%s) failed: %v", kind, col, err)
		}
		return v
	}
	if v := agg("v", types.AggSum, nil); v.Kind != types.KindFloat || v.F64 != 5.5 {
		t.Fatalf("sum = %s", v)
	}
	if v := agg("v", types.AggCount, nil); v.I64 != 3 {
		t.Fatalf("count(v) = %s", v)
	}
	if v := agg("*", types.AggCount, nil); v.I64 != 4 {
		t.Fatalf("count(*) = %s", v)
	}
	if v := agg("v", types.AggMax, nil); v.Kind != types.KindInteger || v.I64 != 4 {
		t.Fatalf("max = %s", v)
	}
	if v := agg("v", types.AggMin, nil); v.I64 != -1 {
		t.Fatalf("min = %s", v)
	}
	if v := agg("v", types.AggAvg, &Where{Column: "k", Value: types.NewText("a")}); v.Kind != types.KindFloat || v.F64 != 4 {
		t.Fatalf("avg where k='a' = %s", v)
	}
	if v := agg("k", types.AggGroupConcat, nil); v.Text.Value != "a,b,a,c" {
		t.Fatalf("group_concat = %s", v)
	}
	if v := agg("rowid", types.AggMax, nil); v.I64 != 4 {
		t.Fatalf("max(rowid) = %s", v)
	}
	if _, err := eng.Aggregate("m", "*", types.AggSum, nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("sum(*): %v", err)
	}
	if k, err := ParseAggKind("SUM"); err != nil || k != types.AggSum {
		t.Fatalf("ParseAggKind = %v, %v", k, err)
	}
}

func TestEngineIndexMaintenance(t *testing.T) {
	eng, _ := newEngine(t)
	if _, err := eng.CreateTable("items", []Column{{Name: "id", Type: "INTEGER", RowIDAlias: true}, {Name: "tag", Type: "TEXT"}, {Name: "n", Type: "INTEGER"}}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	const total = 1500
	for i := 1; i <= total; i++ {
		mustInsert(t, eng, "items", types.Null(), types.NewText(fmt.Sprintf("tag-%03d", (i*37)%211)), types.Integer(int64(i)))
	}
	if _, err := eng.CreateIndex("items_tag", "items", []string{"tag"}, false); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	for i := 2; i <= total; i += 2 {
		if ok, err := eng.DeleteRow("items", int64(i)); err != nil || !ok {
			t.Fatalf("DeleteRow(%d) = %v, %v", i, ok, err)
		}
	}
	if ok, _ := eng.DeleteRow("items", 2); ok {
		t.Fatalf("DeleteRow of a missing row reported success")
	}
	n, err := eng.UpdateWhere("items", &Where{Column: "tag", Value: types.NewText("tag-037")}, []Assignment{{Column: "tag", Value: types.NewText("zzz")}})
	if err != nil || n == 0 {
		t.Fatalf("UpdateWhere = %d, %v", n, err)
	}
	for i := 1; i <= 50; i++ {
		mustInsert(t, eng, "items", types.Null(), types.NewText("aaa"), types.Integer(int64(-i)))
	}

	rows, err := eng.SelectOrdered("items", "tag", false)
	if err != nil {
		t.Fatalf("SelectOrdered failed: %v", err)
	}
	want := total/2 + 50
	if len(rows) != want {
		t.Fatalf("ordered walk returned %d rows, want %d", len(rows), want)
	}
	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		if c := types.Compare(a.Values[1], b.Values[1]); c > 0 || c == 0 && a.RowID >= b.RowID {
			t.Fatalf("rows out of order at %d: %+v then %+v", i, a, b)
		}
	}
	if rows[0].Values[1].Text.Value != "aaa" || rows[len(rows)-1].Values[1].Text.Value != "zzz" {
		t.Fatalf("ordered walk bounds: %s .. %s", rows[0].Values[1], rows[len(rows)-1].Values[1])
	}

	deleted, err := eng.DeleteWhere("items", &Where{Column: "tag", Value: types.NewText("aaa")})
	if err != nil || deleted != 50 {
		t.Fatalf("DeleteWhere = %d, %v", deleted, err)
	}
	desc, err := eng.SelectOrdered("items", "tag", true)
	if err != nil {
		t.Fatalf("SelectOrdered desc failed: %v", err)
	}
	if len(desc) != total/2 || desc[0].Values[1].Text.Value != "zzz" {
		t.Fatalf("descending walk: %d rows starting at %s", len(desc), desc[0].Values[1])
	}

	all, err := eng.DeleteWhere("items", nil)
	if err != nil || all != total/2 {
		t.Fatalf("DeleteWhere(nil) = %d, %v", all, err)
	}
	rows, _ = eng.SelectOrdered("items", "tag", false)
	if len(rows) != 0 {
		t.Fatalf("%d rows left after deleting everything", len(rows))
	}
}

func TestEngineSelectOrderedSorter(t *testing.T) {
	eng, _ := newEngine(t)
	if _, err := eng.CreateTable("s", []Column{{Name: "v"}}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	vals := []types.OwnedValue{
		types.NewText("b"), types.Integer(3), types.Null(), types.NewBlob([]byte{1}),
		types.Float(2.5), types.NewText("a"), types.Integer(3),
	}
	for _, v := range vals {
		mustInsert(t, eng, "s", v)
	}
	rows, err := eng.SelectOrdered("s", "v", false)
	if err != nil {
		t.Fatalf("SelectOrdered failed: %v", err)
	}
	wantIDs := []int64{3, 5, 2, 7, 6, 1, 4}
	for i, r := range rows {
		if r.RowID != wantIDs[i] {
			t.Fatalf("position %d: rowid %d (%s), want %d", i, r.RowID, r.Values[0], wantIDs[i])
		}
	}
	rows, _ = eng.SelectOrdered("s", "rowid", true)
	if len(rows) != 7 || rows[0].RowID != 7 {
		t.Fatalf("rowid order desc starts at %d", rows[0].RowID)
	}
}

func TestEngineUniqueIndex(t *testing.T) {
	eng, _ := newEngine(t)
	createUsers(t, eng)
	mustInsert(t, eng, "users", types.Null(), types.NewText("ann"), types.Null())
	mustInsert(t, eng, "users", types.Null(), types.NewText("ann"), types.Null())
	if _, err := eng.CreateIndex("users_name", "users", []string{"name"}, true); !errors.Is(err, ErrConstraint) {
		t.Fatalf("unique index over duplicates: %v", err)
	}
	if _, err := eng.DeleteRow("users", 2); err != nil {
		t.Fatalf("DeleteRow failed: %v", err)
	}
	if _, err := eng.CreateIndex("users_name", "users", []string{"name"}, true); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	if _, err := eng.InsertRow("users", []types.OwnedValue{types.Null(), types.NewText("ann"), types.Null()}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("duplicate unique key: %v", err)
	}
	mustInsert(t, eng, "users", types.Null(), types.Null(), types.Null())
	mustInsert(t, eng, "users", types.Null(), types.Null(), types.Null())

	// A failed update leaves the old index entries in place.
	mustInsert(t, eng, "users", types.Null(), types.NewText("bob"), types.Null())
	if _, err := eng.UpdateWhere("users", &Where{Column: "name", Value: types.NewText("bob")}, []Assignment{{Column: "name", Value: types.NewText("ann")}}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("update onto a unique key: %v", err)
	}
	rows, err := eng.SelectOrdered("users", "name", false)
	if err != nil || len(rows) != 4 {
		t.Fatalf("SelectOrdered = %d rows, %v", len(rows), err)
	}
	if n, err := eng.UpdateWhere("users", &Where{Column: "name", Value: types.NewText("bob")}, []Assignment{{Column: "id", Value: types.Integer(100)}}); err != nil || n != 1 {
		t.Fatalf("moving bob = %d, %v", n, err)
	}
	if row, ok, _ := eng.Get("users", 100); !ok || row.Values[1].Text.Value != "bob" {
		t.Fatalf("bob did not move to rowid 100")
	}
	if _, err := eng.CreateIndex("users_name", "users", []string{"active"}, false); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate index name: %v", err)
	}
}

func TestEngineReadOnly(t *testing.T) {
	eng, path := newEngine(t)
	createUsers(t, eng)
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	ro := openEngine(t, path, true)
	if _, err := ro.InsertRow("users", []types.OwnedValue{types.Null(), types.Null(), types.Null()}); !errors.Is(err, pager.ErrReadOnly) {
		t.Fatalf("write on a read-only engine: %v", err)
	}
	if _, err := ro.CreateTable("t", userCols); !errors.Is(err, pager.ErrReadOnly) {
		t.Fatalf("CreateTable on a read-only engine: %v", err)
	}
	ro.Close()
	if _, err := ro.ListTables(); !errors.Is(err, pager.ErrClosed) {
		t.Fatalf("ListTables after Close: %v", err)
	}
}

func TestEngineConfigValidation(t *testing.T) {
	cfg := config.Default()
	cfg.PageSize = 1000
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), cfg, nil); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("Open with a bad page size: %v", err)
	}
}

// TestEngineConcurrentAsyncReads runs readers side by side over a small cache
// with asynchronous page reads; run it with -race.
func TestEngineConcurrentAsyncReads(t *testing.T) {
	eng, path := newEngine(t)
	createUsers(t, eng)
	for i := 1; i <= 300; i++ {
		mustInsert(t, eng, "users", types.Null(), types.NewText(fmt.Sprintf("user-%03d", i)), types.Integer(int64(i%2)))
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	cfg := config.Default()
	cfg.AsyncIO = true
	cfg.CachePages = 8
	cfg.ReadOnly = true
	ro, err := Open(path, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ro.Close()

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for round := 0; round < 20; round++ {
				_, rows, err := ro.SelectAll("users")
				if err != nil {
					return err
				}
				if len(rows) != 300 {
					return fmt.Errorf("round %d: %d rows", round, len(rows))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent SelectAll failed: %v", err)
	}
}
