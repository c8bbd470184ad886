package store

import (
	"strings"
	"testing"
)

func TestBatchUpsertFiltersUnknownColumns(t *testing.T) {
	db := testDB(t)

	// Record carries a field from a schema this build does not know about.
	n, err := db.BatchUpsert("cache_meta", "", []Record{
		{"tenant": "t1", "entity": "contacts", "synced_at": int64(100), "future_column": "x"},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("saved = %d, want 1", n)
	}

	ts, err := db.SyncedAt("t1", "contacts")
	if err != nil {
		t.Fatal(err)
	}
	if ts != 100 {
		t.Errorf("synced_at = %d, want 100", ts)
	}
}

func TestBatchUpsertSavesGoodRecordsWhenChunkFails(t *testing.T) {
	db := testDB(t)

	// The middle record violates NOT NULL on op_id, failing the chunk tx.
	// The per-record fallback must still land the valid ones.
	records := []Record{
		{"op_id": "op1", "tenant": "t1", "entity": "message", "operation": "create"},
		{"op_id": nil, "tenant": "t1", "entity": "message", "operation": "create"},
		{"op_id": "op3", "tenant": "t1", "entity": "message", "operation": "create"},
	}
	n, err := db.BatchUpsert("sync_queue", "", records, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("saved = %d, want 2 (partial batch)", n)
	}

	for _, opID := range []string{"op1", "op3"} {
		e, err := db.GetOp(opID)
		if err != nil {
			t.Fatal(err)
		}
		if e == nil {
			t.Errorf("op %s missing after partial batch", opID)
		}
	}
}

func TestBatchUpsertAllRecordsFailedErrors(t *testing.T) {
	db := testDB(t)

	_, err := db.BatchUpsert("sync_queue", "", []Record{
		{"op_id": nil, "tenant": "t1", "entity": "message", "operation": "create"},
	}, 0)
	if err == nil {
		t.Fatal("expected error when every record fails")
	}
}

func TestNullifyOversized(t *testing.T) {
	rec := Record{
		"small": "ok",
		"big":   strings.Repeat("x", oversizedTextLimit+1),
		"num":   int64(7),
	}
	out := nullifyOversized(rec)
	if out["big"] != nil {
		t.Error("oversized text field not nullified")
	}
	if out["small"] != "ok" || out["num"] != int64(7) {
		t.Errorf("other fields changed: %+v", out)
	}
}

func TestBuildInsertDeterministic(t *testing.T) {
	stmt, args := buildInsert("contacts", "", Record{"b": 2, "a": 1})
	want := `INSERT INTO "contacts" ("a", "b") VALUES (?, ?)`
	if stmt != want {
		t.Errorf("stmt = %q, want %q", stmt, want)
	}
	if len(args) != 2 || args[0] != 1 || args[1] != 2 {
		t.Errorf("args = %v, want sorted by column", args)
	}
}
