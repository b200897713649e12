package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("golite %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func demoDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.db")
	out := mustRun(t, "demo", path)
	if !strings.Contains(out, "id | name | active\n1 | Alice | 1\n2 | Bob | 0\n") {
		t.Fatalf("unexpected demo output:\n%s", out)
	}
	return path
}

func TestDemoThenQuery(t *testing.T) {
	path := demoDB(t)

	if out := mustRun(t, "tables", path); out != "users\n" {
		t.Fatalf("tables = %q", out)
	}
	if out := mustRun(t, "select", path, "users", "--where", "name='Bob'", "--columns", "id,active"); out != "id | active\n2 | 0\n" {
		t.Fatalf("select = %q", out)
	}
	if out := mustRun(t, "select", path, "users", "--order", "name", "--desc"); out != "id | name | active\n2 | Bob | 0\n1 | Alice | 1\n" {
		t.Fatalf("ordered select = %q", out)
	}
	if out := mustRun(t, "agg", path, "count", "users", "*"); out != "2\n" {
		t.Fatalf("count = %q", out)
	}

	if out := mustRun(t, "insert", path, "users", "name=Carol", "active=1"); out != "3\n" {
		t.Fatalf("insert = %q", out)
	}
	if out := mustRun(t, "delete", path, "users", "--where", "active=0"); out != "1\n" {
		t.Fatalf("delete = %q", out)
	}
	if out := mustRun(t, "agg", path, "group_concat", "users", "name"); out != "Alice,Carol\n" {
		t.Fatalf("group_concat = %q", out)
	}
}

func TestCommandErrors(t *testing.T) {
	path := demoDB(t)
	cases := [][]string{
		{"select", path, "missing"},
		{"select", path, "users", "--where", "id=1", "--order", "name"},
		{"delete", path, "users"},
		{"agg", path, "median", "users", "id"},
		{"insert", path, "users", "id=1"},
		{"insert", path, "users", "nocolumn"},
	}
	for _, args := range cases {
		if _, err := run(t, args...); err == nil {
			t.Fatalf("golite %s: expected error", strings.Join(args, " "))
		}
	}
}

func TestHeaderJSON(t *testing.T) {
	path := demoDB(t)
	out := mustRun(t, "--json", "header", path)
	var h struct {
		PageSize     int
		PageCount    uint32
		SchemaCookie uint32
	}
	if err := json.Unmarshal([]byte(out), &h); err != nil {
		t.Fatalf("Unmarshal failed: %v\n%s", err, out)
	}
	if h.PageSize != 4096 || h.PageCount < 2 || h.SchemaCookie == 0 {
		t.Fatalf("header = %+v", h)
	}
}

func TestDumpLoadsIntoSQLite(t *testing.T) {
	path := demoDB(t)
	mustRun(t, "insert", path, "users", "name='O''Hara'", "active=NULL")
	mustRun(t, "create-index", path, "users_name", "users", "name", "--unique")

	dump := mustRun(t, "dump", path)
	if !strings.HasPrefix(dump, "BEGIN TRANSACTION;\n") || !strings.HasSuffix(dump, "COMMIT;\n") {
		t.Fatalf("dump framing:\n%s", dump)
	}

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "copy.db"))
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(dump); err != nil {
		t.Fatalf("loading dump failed: %v\n%s", err, dump)
	}
	var (
		n     int
		names string
	)
	if err := db.QueryRow("SELECT count(*), group_concat(name, '/') FROM (SELECT name FROM users ORDER BY id)").Scan(&n, &names); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 3 || names != "Alice/Bob/O'Hara" {
		t.Fatalf("copy has %d rows: %s", n, names)
	}
	var ix int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='index' AND name='users_name'").Scan(&ix); err != nil || ix != 1 {
		t.Fatalf("index in copy: %d, %v", ix, err)
	}

	var js []struct {
		Name string
		Rows [][]any
	}
	if err := json.Unmarshal([]byte(mustRun(t, "--json", "dump", path, "users")), &js); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(js) != 1 || js[0].Name != "users" || len(js[0].Rows) != 3 {
		t.Fatalf("json dump = %+v", js)
	}
}
