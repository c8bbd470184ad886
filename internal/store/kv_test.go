package store

import "testing"

func TestStatRoundtrip(t *testing.T) {
	db := testDB(t)

	if err := db.PutStat("t1", "", []byte(`{"open":3}`)); err != nil {
		t.Fatal(err)
	}
	s, err := db.GetStat("t1", "")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || string(s.Snapshot) != `{"open":3}` {
		t.Fatalf("got %+v", s)
	}
	if s.Scope != GlobalScope {
		t.Errorf("scope = %q, want %q sentinel", s.Scope, GlobalScope)
	}

	// Same scope overwrites rather than duplicating.
	if err := db.PutStat("t1", "", []byte(`{"open":4}`)); err != nil {
		t.Fatal(err)
	}
	s, _ = db.GetStat("t1", "")
	if string(s.Snapshot) != `{"open":4}` {
		t.Errorf("snapshot = %s, want updated blob", s.Snapshot)
	}

	// Named scopes are independent.
	if err := db.PutStat("t1", "weekly", []byte(`{"open":9}`)); err != nil {
		t.Fatal(err)
	}
	s, _ = db.GetStat("t1", "weekly")
	if string(s.Snapshot) != `{"open":9}` {
		t.Errorf("weekly snapshot = %s", s.Snapshot)
	}
}

func TestGetStatMissing(t *testing.T) {
	db := testDB(t)

	s, err := db.GetStat("t1", "nope")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("got %+v, want nil", s)
	}
}

func TestSettingRoundtrip(t *testing.T) {
	db := testDB(t)

	if err := db.PutSetting("t1", "theme", []byte(`"dark"`)); err != nil {
		t.Fatal(err)
	}
	value, updatedAt, err := db.GetSetting("t1", "theme")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != `"dark"` || updatedAt == 0 {
		t.Errorf("value = %s at %d", value, updatedAt)
	}

	// Missing key is not an error.
	value, updatedAt, err = db.GetSetting("t1", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if value != nil || updatedAt != 0 {
		t.Errorf("missing key returned %s at %d", value, updatedAt)
	}
}

func TestSettingGlobalTenantSentinel(t *testing.T) {
	db := testDB(t)

	if err := db.PutSetting("", "locale", []byte(`"pt-BR"`)); err != nil {
		t.Fatal(err)
	}
	value, _, err := db.GetSetting("", "locale")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != `"pt-BR"` {
		t.Errorf("value = %s", value)
	}

	// Tenant-scoped reads do not see global rows and vice versa.
	value, _, err = db.GetSetting("t1", "locale")
	if err != nil {
		t.Fatal(err)
	}
	if value != nil {
		t.Error("tenant read leaked a global setting")
	}

	// ClearSettings with an empty tenant must not wipe global rows.
	if err := db.ClearSettings(""); err != nil {
		t.Fatal(err)
	}
	value, _, _ = db.GetSetting("", "locale")
	if value == nil {
		t.Error("global setting removed by empty-tenant clear")
	}
}
