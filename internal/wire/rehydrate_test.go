package wire

import (
	"bytes"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/matheus3301/zapbox/internal/store"
)

func TestConversationObjectPrefersSnapshot(t *testing.T) {
	snapshot := []byte(`{"id": "conv1", "custom_field": 7, "unread_count": 3}`)
	c := &store.Conversation{
		ServerID:    "conv1",
		Snapshot:    snapshot,
		UnreadCount: 99, // stale scalar must not win over the snapshot
	}

	got := ConversationObject(c)
	if !bytes.Equal(got, snapshot) {
		t.Errorf("object = %s, want verbatim snapshot", got)
	}
}

func TestConversationObjectRebuildsFromColumns(t *testing.T) {
	c := &store.Conversation{
		ServerID:           "conv1",
		Snapshot:           []byte(`{"id": "conv1", "unread`), // truncated mid-write
		LastMessagePreview: "see you tomorrow",
		LastMessageType:    "text",
		LastMessageAt:      1700000000000,
		UnreadCount:        2,
		Pinned:             true,
		AssignedTo:         "agent7",
		Tags:               `["vip"]`,
	}

	got := ConversationObject(c)
	if !gjson.ValidBytes(got) {
		t.Fatalf("rebuilt object is not valid JSON: %s", got)
	}
	if id := gjson.GetBytes(got, "id").String(); id != "conv1" {
		t.Errorf("id = %q, want conv1", id)
	}
	if n := gjson.GetBytes(got, "unread_count").Int(); n != 2 {
		t.Errorf("unread_count = %d, want 2", n)
	}
	if !gjson.GetBytes(got, "pinned").Bool() {
		t.Error("pinned not carried over")
	}
	if body := gjson.GetBytes(got, "last_message.body").String(); body != "see you tomorrow" {
		t.Errorf("last_message.body = %q", body)
	}
	if tag := gjson.GetBytes(got, "tags.0").String(); tag != "vip" {
		t.Errorf("tags.0 = %q, want vip", tag)
	}

	// The rebuilt object must round-trip through the parser.
	parsed := ParseConversation("t1", got)
	if parsed.ServerID != "conv1" || parsed.UnreadCount != 2 || !parsed.Pinned {
		t.Errorf("round-trip mismatch: %+v", parsed)
	}
}

func TestMessageObjectRebuildsFromColumns(t *testing.T) {
	m := &store.Message{
		ChatID:      "chat1",
		ServerID:    "m1",
		WireID:      "wamid.1",
		Snapshot:    nil, // optimistic rows may have no snapshot at all
		MessageType: "text",
		Body:        "hello",
		Direction:   store.DirectionOut,
		Status:      store.MessageSent,
		Timestamp:   1000,
	}

	got := MessageObject(m)
	parsed := ParseMessage("t1", got)
	if parsed.ChatID != "chat1" || parsed.ServerID != "m1" || parsed.WireID != "wamid.1" {
		t.Errorf("ids lost in rebuild: %+v", parsed)
	}
	if parsed.Body != "hello" || parsed.Direction != store.DirectionOut {
		t.Errorf("body/direction lost in rebuild: %+v", parsed)
	}
}

func TestObjectHelpersSnapshotPassthrough(t *testing.T) {
	snap := []byte(`{"id": "x", "extra": true}`)

	cases := []struct {
		name string
		got  []byte
	}{
		{"message", MessageObject(&store.Message{Snapshot: snap})},
		{"contact", ContactObject(&store.Contact{Snapshot: snap})},
		{"template", TemplateObject(&store.Template{Snapshot: snap})},
		{"contact_list", ContactListObject(&store.ContactList{Snapshot: snap})},
		{"line", LineObject(&store.Line{Snapshot: snap})},
		{"quick_reply", QuickReplyObject(&store.QuickReply{Snapshot: snap})},
	}
	for _, tc := range cases {
		if !bytes.Equal(tc.got, snap) {
			t.Errorf("%s: object = %s, want verbatim snapshot", tc.name, tc.got)
		}
	}
}

func TestContactObjectRejectsNonObjectSnapshot(t *testing.T) {
	c := &store.Contact{
		ServerID: "c1",
		Snapshot: []byte(`["not", "an", "object"]`),
		Name:     "Ada",
		Phone:    "5511999",
	}

	got := ContactObject(c)
	if name := gjson.GetBytes(got, "name").String(); name != "Ada" {
		t.Errorf("name = %q, want Ada", name)
	}
	if phone := gjson.GetBytes(got, "phone").String(); phone != "5511999" {
		t.Errorf("phone = %q, want 5511999", phone)
	}
}
