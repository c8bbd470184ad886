package store

import "testing"

func TestReplaceContactLists(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceContactLists("t1", []*ContactList{
		{ServerID: "l1", Name: "Leads", ContactCount: 10},
		{ServerID: "l2", Name: "Clients", ContactCount: 20},
	}); err != nil {
		t.Fatal(err)
	}

	// The next sync replaces the whole set; stale descriptors disappear.
	if err := db.ReplaceContactLists("t1", []*ContactList{
		{ServerID: "l2", Name: "Clients", ContactCount: 25},
	}); err != nil {
		t.Fatal(err)
	}

	lists, err := db.ListContactLists("t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 {
		t.Fatalf("got %d lists, want 1", len(lists))
	}
	if lists[0].ServerID != "l2" || lists[0].ContactCount != 25 {
		t.Errorf("list = %+v", lists[0])
	}
}

func TestReplaceContactListsScopedToTenant(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceContactLists("t1", []*ContactList{{ServerID: "l1", Name: "A"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceContactLists("t2", []*ContactList{{ServerID: "l9", Name: "B"}}); err != nil {
		t.Fatal(err)
	}

	lists, err := db.ListContactLists("t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || lists[0].ServerID != "l1" {
		t.Errorf("t1 lists = %+v, replace leaked across tenants", lists)
	}
}

func TestReplaceLines(t *testing.T) {
	db := testDB(t)

	if err := db.ReplaceLines([]*Line{
		{ServerID: "n1", Phone: "+5511111", DisplayName: "Support", Status: "connected"},
		{ServerID: "n2", Phone: "+5522222", DisplayName: "Sales", Status: "connected"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceLines([]*Line{
		{ServerID: "n1", Phone: "+5511111", DisplayName: "Support", Status: "disconnected"},
	}); err != nil {
		t.Fatal(err)
	}

	lines, err := db.ListLines()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0].Status != "disconnected" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestQuickReplies(t *testing.T) {
	db := testDB(t)

	if _, err := db.SaveQuickReplies("t1", []*QuickReply{
		{ServerID: "q2", Shortcut: "/thanks", Body: "Thank you!"},
		{ServerID: "q1", Shortcut: "/hi", Body: "Hello, how can I help?"},
	}, 0); err != nil {
		t.Fatal(err)
	}

	replies, err := db.ListQuickReplies("t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(replies))
	}
	if replies[0].Shortcut != "/hi" {
		t.Errorf("first shortcut = %q, want /hi (ordered by shortcut)", replies[0].Shortcut)
	}

	// Re-save updates in place.
	if _, err := db.SaveQuickReplies("t1", []*QuickReply{
		{ServerID: "q1", Shortcut: "/hi", Body: "Hi there!"},
	}, 0); err != nil {
		t.Fatal(err)
	}
	replies, _ = db.ListQuickReplies("t1")
	if len(replies) != 2 || replies[0].Body != "Hi there!" {
		t.Errorf("replies = %+v", replies)
	}
}
