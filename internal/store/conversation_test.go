package store

import "testing"

func TestUpsertConversationsPreservesMessagesLoaded(t *testing.T) {
	db := testDB(t)

	conv := &Conversation{ServerID: "chat1", Tenant: "t1", LastMessagePreview: "hi", LastMessageAt: 1000}
	if _, err := db.UpsertConversations([]*Conversation{conv}, 0); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessagesLoaded("t1", "chat1"); err != nil {
		t.Fatal(err)
	}

	// A resync re-upserts the conversation; the local history flag survives.
	conv.LastMessagePreview = "newer"
	conv.LastMessageAt = 2000
	if _, err := db.UpsertConversations([]*Conversation{conv}, 0); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetConversation("t1", "chat1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.MessagesLoaded {
		t.Error("messages_loaded reset by resync")
	}
	if got.LastMessagePreview != "newer" {
		t.Errorf("preview = %q, want newer", got.LastMessagePreview)
	}
	if n, _ := db.ConversationCount("t1"); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestListConversationsPinnedFirst(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertConversations([]*Conversation{
		{ServerID: "recent", Tenant: "t1", LastMessageAt: 2000},
		{ServerID: "pinned", Tenant: "t1", LastMessageAt: 1000, Pinned: true},
	}, 0); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations("t1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ServerID != "pinned" {
		t.Errorf("first = %q, want pinned conversation despite older message", convs[0].ServerID)
	}
}

func TestApplyLastMessageIsMonotonic(t *testing.T) {
	db := testDB(t)

	newer := &Message{Tenant: "t1", ChatID: "chat1", Body: "newer", MessageType: "text", Timestamp: 2000}
	if err := db.ApplyLastMessage(newer); err != nil {
		t.Fatal(err)
	}

	// An older message arriving late must not regress the preview.
	older := &Message{Tenant: "t1", ChatID: "chat1", Body: "older", MessageType: "text", Timestamp: 1000}
	if err := db.ApplyLastMessage(older); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("t1", "chat1")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("ApplyLastMessage should create the conversation row")
	}
	if c.LastMessagePreview != "newer" || c.LastMessageAt != 2000 {
		t.Errorf("preview = %q at %d, want newer at 2000", c.LastMessagePreview, c.LastMessageAt)
	}
}

func TestRecomputeLastMessage(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertConversations([]*Conversation{
		{ServerID: "chat1", Tenant: "t1", LastMessagePreview: "stale", LastMessageAt: 9999},
	}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveMessages("t1", "chat1", []*Message{
		{ServerID: "m1", Body: "actual latest", MessageType: "text", Direction: DirectionIn, Status: MessageReceived, Timestamp: 3000},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.RecomputeLastMessage("t1", "chat1"); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("t1", "chat1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessagePreview != "actual latest" || c.LastMessageAt != 3000 {
		t.Errorf("preview = %q at %d, want recomputed from messages", c.LastMessagePreview, c.LastMessageAt)
	}
}

func TestSetUnreadCount(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertConversations([]*Conversation{
		{ServerID: "chat1", Tenant: "t1", UnreadCount: 5},
	}, 0); err != nil {
		t.Fatal(err)
	}
	if err := db.SetUnreadCount("t1", "chat1", 0); err != nil {
		t.Fatal(err)
	}
	c, _ := db.GetConversation("t1", "chat1")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", c.UnreadCount)
	}
}
