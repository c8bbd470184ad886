package wire

import (
	"testing"

	"github.com/matheus3301/zapbox/internal/store"
)

func TestParseConversation(t *testing.T) {
	raw := []byte(`{
		"id": "conv1",
		"unread_count": 3,
		"pinned": true,
		"assigned_to": {"id": "agent7", "name": "Ana"},
		"tags": ["vip", "billing"],
		"last_message": {"body": "see you", "type": "text", "timestamp": 1700000000}
	}`)

	c := ParseConversation("t1", raw)
	if c.ServerID != "conv1" {
		t.Errorf("server_id = %q", c.ServerID)
	}
	if c.UnreadCount != 3 || !c.Pinned {
		t.Errorf("unread = %d pinned = %v", c.UnreadCount, c.Pinned)
	}
	if c.AssignedTo != "agent7" {
		t.Errorf("assigned_to = %q", c.AssignedTo)
	}
	if c.Tags != `["vip", "billing"]` {
		t.Errorf("tags = %q", c.Tags)
	}
	if c.LastMessagePreview != "see you" {
		t.Errorf("preview = %q", c.LastMessagePreview)
	}
	if c.LastMessageAt != 1700000000000 {
		t.Errorf("last_message_at = %d, want seconds normalized to millis", c.LastMessageAt)
	}
	if len(c.LastMessageJSON) == 0 {
		t.Error("last_message object not captured")
	}
	if string(c.Snapshot) != string(raw) {
		t.Error("snapshot is not the verbatim payload")
	}
}

func TestParseConversationAlternateShape(t *testing.T) {
	raw := []byte(`{"conversation_id": "conv2", "preview": "hi", "last_activity_at": "2023-11-14T22:13:20Z"}`)

	c := ParseConversation("t1", raw)
	if c.ServerID != "conv2" {
		t.Errorf("server_id = %q", c.ServerID)
	}
	if c.LastMessagePreview != "hi" {
		t.Errorf("preview = %q", c.LastMessagePreview)
	}
	if c.LastMessageAt != 1700000000000 {
		t.Errorf("last_message_at = %d, want parsed RFC 3339", c.LastMessageAt)
	}
	if c.Tags != "[]" {
		t.Errorf("tags = %q, want empty array default", c.Tags)
	}
}

func TestParseMessage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want store.Message
	}{
		{
			name: "list sync shape",
			raw:  `{"id": "m1", "wamid": "wamid.x", "conversation_id": "c1", "type": "text", "body": "hello", "direction": "out", "status": "sent", "timestamp": 1700000000000}`,
			want: store.Message{ServerID: "m1", WireID: "wamid.x", ChatID: "c1", MessageType: "text", Body: "hello", Direction: "out", Status: "sent", Timestamp: 1700000000000},
		},
		{
			name: "push event shape",
			raw:  `{"message_id": "m2", "chat_id": "c1", "text": {"body": "nested"}, "from_me": false, "timestamp": "1700000000"}`,
			want: store.Message{ServerID: "m2", ChatID: "c1", MessageType: "text", Body: "nested", Direction: store.DirectionIn, Status: store.MessageReceived, Timestamp: 1700000000000},
		},
		{
			name: "media with caption",
			raw:  `{"id": "m3", "conversation_id": "c1", "type": "image", "caption": "look", "from_me": true, "sent_at": 1700000000}`,
			want: store.Message{ServerID: "m3", ChatID: "c1", MessageType: "image", Body: "look", Direction: store.DirectionOut, Status: store.MessageReceived, Timestamp: 1700000000000},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := ParseMessage("t1", []byte(tc.raw))
			if m.ServerID != tc.want.ServerID || m.WireID != tc.want.WireID || m.ChatID != tc.want.ChatID {
				t.Errorf("ids = %q/%q/%q", m.ServerID, m.WireID, m.ChatID)
			}
			if m.MessageType != tc.want.MessageType || m.Body != tc.want.Body {
				t.Errorf("type/body = %q/%q", m.MessageType, m.Body)
			}
			if m.Direction != tc.want.Direction || m.Status != tc.want.Status {
				t.Errorf("direction/status = %q/%q", m.Direction, m.Status)
			}
			if m.Timestamp != tc.want.Timestamp {
				t.Errorf("timestamp = %d, want %d", m.Timestamp, tc.want.Timestamp)
			}
		})
	}
}

func TestParseContactPhoneFallback(t *testing.T) {
	c := ParseContact("t1", []byte(`{"wa_id": "5511999998888", "push_name": "Zé"}`))
	if c.ServerID != "5511999998888" {
		t.Errorf("server_id = %q", c.ServerID)
	}
	if c.Phone != "5511999998888" {
		t.Errorf("phone = %q, want wa_id fallback", c.Phone)
	}
	if c.Name != "Zé" {
		t.Errorf("name = %q", c.Name)
	}
}

func TestParseTemplateLanguageShapes(t *testing.T) {
	tpl := ParseTemplate("t1", []byte(`{"id": "tp1", "name": "welcome", "language": {"code": "pt_BR"}, "status": "APPROVED"}`))
	if tpl.Language != "pt_BR" {
		t.Errorf("language = %q", tpl.Language)
	}

	tpl = ParseTemplate("t1", []byte(`{"template_id": "tp2", "element_name": "promo", "lang": "en"}`))
	if tpl.ServerID != "tp2" || tpl.Name != "promo" || tpl.Language != "en" {
		t.Errorf("template = %+v", tpl)
	}

	tpl = ParseTemplate("t1", []byte(`{"id": "tp3", "language": "en_US"}`))
	if tpl.Language != "en_US" {
		t.Errorf("flat language = %q, want en_US", tpl.Language)
	}

	// An object at a shallow fallback path must not leak raw JSON.
	tpl = ParseTemplate("t1", []byte(`{"id": "tp4", "language": {"policy": "deterministic"}}`))
	if tpl.Language != "" {
		t.Errorf("language = %q, want empty for unknown nested shape", tpl.Language)
	}
}

func TestParseLine(t *testing.T) {
	l := ParseLine([]byte(`{"phone_id": "ph1", "display_phone_number": "+55 11 99999-8888", "verified_name": "Acme", "connection_status": "connected"}`))
	if l.ServerID != "ph1" || l.Phone != "+55 11 99999-8888" || l.DisplayName != "Acme" || l.Status != "connected" {
		t.Errorf("line = %+v", l)
	}
}

func TestParseArray(t *testing.T) {
	items := ParseArray([]byte(`[{"id":"a"},{"id":"b"}]`))
	if len(items) != 2 {
		t.Fatalf("bare array: got %d items", len(items))
	}

	items = ParseArray([]byte(`{"data": [{"id":"a"}], "paging": {}}`))
	if len(items) != 1 {
		t.Fatalf("data envelope: got %d items", len(items))
	}

	items = ParseArray([]byte(`{"conversations": [{"id":"a"}]}`), "conversations")
	if len(items) != 1 {
		t.Fatalf("named envelope: got %d items", len(items))
	}

	if items = ParseArray([]byte(`{"weird": true}`)); items != nil {
		t.Errorf("no array: got %v", items)
	}
}

func TestMillisShapes(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{`{"ts": 1700000000}`, 1700000000000},
		{`{"ts": 1700000000000}`, 1700000000000},
		{`{"ts": "1700000000"}`, 1700000000000},
		{`{"ts": "2023-11-14T22:13:20Z"}`, 1700000000000},
		{`{"ts": null}`, 0},
		{`{}`, 0},
	}
	for _, tc := range cases {
		if got := millis([]byte(tc.raw), "ts"); got != tc.want {
			t.Errorf("millis(%s) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
