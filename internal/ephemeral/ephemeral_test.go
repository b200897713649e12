package ephemeral

import (
	"math/rand/v2"
	"testing"

	"goLite/internal/cursor"
	"goLite/internal/types"
)

func TestTableOrderAndReplace(t *testing.T) {
	c := NewTable()
	for _, id := range []int64{5, 1, 9, 3} {
		rec := types.NewOwnedRecord(types.Integer(id * 10))
		if _, err := c.Insert(types.Integer(id), rec, false); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	old, _ := c.Record()
	c.Insert(types.Integer(3), types.NewOwnedRecord(types.NewText("new")), false)
	if old.Values[0].I64 != 30 {
		t.Fatalf("replacing an entry changed a record handed out earlier: %s", old)
	}

	c.Rewind()
	var ids []int64
	for !c.IsEmpty() {
		id, _, _ := c.RowID()
		ids = append(ids, id)
		c.Next()
	}
	if len(ids) != 4 || ids[0] != 1 || ids[1] != 3 || ids[2] != 5 || ids[3] != 9 {
		t.Fatalf("unexpected order %v", ids)
	}
	if c.Len() != 4 {
		t.Fatalf("Len = %d", c.Len())
	}

	res, _ := c.Seek(cursor.TableRowID(4), cursor.SeekEQ)
	if res.IsIO() || res.Value() {
		t.Fatalf("SeekEQ(4) should miss without I/O")
	}
	if id, _, _ := c.RowID(); id != 5 {
		t.Fatalf("missed seek landed on %d", id)
	}
	res, _ = c.Seek(cursor.TableRowID(5), cursor.SeekGT)
	if id, _, _ := c.RowID(); !res.Value() || id != 9 {
		t.Fatalf("SeekGT(5) landed on %d", id)
	}

	c.Delete()
	if !c.IsEmpty() {
		t.Fatalf("Delete should unposition the cursor")
	}
	if res, _ := c.Exists(types.Integer(9)); res.Value() {
		t.Fatalf("deleted row still exists")
	}
	c.Last()
	if id, _, _ := c.RowID(); id != 5 {
		t.Fatalf("Last = %d", id)
	}
}

func TestIndexPrefixSeek(t *testing.T) {
	c := NewIndex()
	add := func(k string, id int64) {
		c.Insert(types.Null(), types.NewOwnedRecord(types.NewText(k), types.Integer(id)), false)
	}
	add("b", 2)
	add("a", 7)
	add("b", 1)
	add("c", 3)

	prefix := types.NewOwnedRecord(types.NewText("b"))
	res, _ := c.Seek(cursor.IndexKey(&prefix), cursor.SeekEQ)
	if !res.Value() {
		t.Fatalf("prefix SeekEQ missed")
	}
	if id, _, _ := c.RowID(); id != 1 {
		t.Fatalf("prefix seek landed on rowid %d", id)
	}
	res, _ = c.Seek(cursor.IndexKey(&prefix), cursor.SeekGT)
	rec, _ := c.Record()
	if !res.Value() || rec.Values[0].Text.Value != "c" {
		t.Fatalf("prefix SeekGT landed on %s", rec)
	}

	full := types.NewRecordValue(types.NewOwnedRecord(types.NewText("b"), types.Integer(2)))
	if res, _ := c.Exists(full); !res.Value() {
		t.Fatalf("Exists(b,2) = false")
	}
	c.Prev()
	if id, _, _ := c.RowID(); id != 1 {
		t.Fatalf("Prev from (b,2) landed on %d", id)
	}
}

func TestSpaceTrees(t *testing.T) {
	c := NewTable()
	root, err := c.BTreeCreate(cursor.CreateIndex)
	if err != nil {
		t.Fatalf("BTreeCreate failed: %v", err)
	}
	if root == c.RootPage() {
		t.Fatalf("new tree reused root %d", root)
	}
	idx, err := c.space.Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	idx.Insert(types.Null(), types.NewOwnedRecord(types.Integer(1)), false)
	if idx.Len() != 1 || c.Len() != 0 {
		t.Fatalf("trees share entries: %d/%d", idx.Len(), c.Len())
	}
	c.space.Drop(root)
	if _, err := c.space.Open(root); err == nil {
		t.Fatalf("dropped tree still opens")
	}
}

func TestViolations(t *testing.T) {
	c := NewTable()
	defer func() {
		if _, ok := recover().(*types.ContractViolation); !ok {
			t.Fatalf("expected *types.ContractViolation panic")
		}
	}()
	c.Next()
}

// TestSorterOutOfOrderInserts fills an index in shuffled order with repeated
// keys, reading back between batches.
func TestSorterOutOfOrderInserts(t *testing.T) {
	c := NewIndex()
	r := rand.New(rand.NewPCG(1, 2))
	const n = 20000
	for _, i := range r.Perm(n) {
		key := types.NewOwnedRecord(types.Integer(int64(i%500)), types.Integer(int64(i)))
		if _, err := c.Insert(types.Null(), key, false); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if i%5000 == 0 {
			// The cursor sits on the entry just inserted.
			rec, _ := c.Record()
			if rec == nil || rec.Values[1].I64 != int64(i) {
				t.Fatalf("after inserting %d the cursor is on %v", i, rec)
			}
		}
	}
	// Inserting an existing key again replaces it.
	c.Insert(types.Null(), types.NewOwnedRecord(types.Integer(7), types.Integer(7)), false)
	if c.Len() != n {
		t.Fatalf("Len = %d, want %d", c.Len(), n)
	}

	c.Rewind()
	var prev *types.OwnedRecord
	count := 0
	for !c.IsEmpty() {
		rec, _ := c.Record()
		if prev != nil && prev.Compare(*rec) >= 0 {
			t.Fatalf("entries out of order: %s then %s", prev, rec)
		}
		prev = rec
		count++
		c.Next()
	}
	if count != n {
		t.Fatalf("walked %d entries, want %d", count, n)
	}
}
