package wire

import (
	"github.com/tidwall/gjson"

	"github.com/matheus3301/zapbox/internal/store"
)

// ParseConversation maps a conversation payload onto a cache row.
func ParseConversation(tenant string, raw []byte) *store.Conversation {
	c := &store.Conversation{
		Tenant:   tenant,
		ServerID: str(raw, "id", "conversation_id", "chat_id"),
		Snapshot: raw,

		LastMessagePreview: str(raw, "last_message.body", "last_message.text", "last_message.preview", "preview"),
		LastMessageType:    str(raw, "last_message.type", "last_message.message_type"),
		LastMessageAt:      millis(raw, "last_message.timestamp", "last_message_at", "last_activity_at", "updated_at"),
		UnreadCount:        int(num(raw, "unread_count", "unread")),

		Pinned:     boolish(raw, "pinned", "is_pinned"),
		Archived:   boolish(raw, "archived", "is_archived"),
		Muted:      boolish(raw, "muted", "is_muted"),
		AssignedTo: str(raw, "assigned_to.id", "assigned_to", "agent_id"),
		Tags:       jsonArray(raw, "tags", "labels"),
	}
	if lm := rawObject(raw, "last_message"); lm != "" {
		c.LastMessageJSON = []byte(lm)
	}
	return c
}

// ParseMessage maps a message payload onto a cache row. Locally-managed
// fields (temp id, media state) are never taken from the wire.
func ParseMessage(tenant string, raw []byte) *store.Message {
	m := &store.Message{
		Tenant:   tenant,
		ChatID:   str(raw, "conversation_id", "chat_id", "conversation.id"),
		ServerID: str(raw, "id", "message_id"),
		WireID:   str(raw, "wamid", "wire_id", "wa_message_id"),
		Snapshot: raw,

		MessageType: str(raw, "type", "message_type"),
		Body:        str(raw, "body", "text.body", "text", "caption"),
		Status:      str(raw, "status"),
		Timestamp:   millis(raw, "timestamp", "created_at", "sent_at"),
	}
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	if m.Status == "" {
		m.Status = store.MessageReceived
	}

	m.Direction = str(raw, "direction")
	if m.Direction == "" {
		if boolish(raw, "from_me", "is_from_me", "outgoing") {
			m.Direction = store.DirectionOut
		} else {
			m.Direction = store.DirectionIn
		}
	}
	return m
}

// ParseContact maps a contact payload onto a cache row. Bucket and sort order
// are assigned by the caller from the request that fetched the page.
func ParseContact(tenant string, raw []byte) *store.Contact {
	return &store.Contact{
		Tenant:   tenant,
		ServerID: str(raw, "id", "contact_id", "wa_id"),
		Snapshot: raw,
		Name:     str(raw, "name", "full_name", "profile_name", "push_name"),
		Phone:    str(raw, "phone", "phone_number", "wa_id"),
	}
}

// ParseTemplate maps a message-template payload onto a cache row.
func ParseTemplate(tenant string, raw []byte) *store.Template {
	return &store.Template{
		Tenant:   tenant,
		ServerID: str(raw, "id", "template_id"),
		Snapshot: raw,
		Name:     str(raw, "name", "element_name"),
		Status:   str(raw, "status"),
		Category: str(raw, "category"),
		Language: str(raw, "language.code", "language", "lang"),
	}
}

// ParseContactList maps a contact-list descriptor onto a cache row.
func ParseContactList(tenant string, raw []byte) *store.ContactList {
	return &store.ContactList{
		Tenant:       tenant,
		ServerID:     str(raw, "id", "list_id"),
		Snapshot:     raw,
		Name:         str(raw, "name", "title"),
		ContactCount: int(num(raw, "contact_count", "contacts_count", "total_contacts", "total")),
	}
}

// ParseLine maps a numbered-line payload onto a cache row.
func ParseLine(raw []byte) *store.Line {
	return &store.Line{
		ServerID:    str(raw, "id", "line_id", "phone_id"),
		Snapshot:    raw,
		Phone:       str(raw, "phone", "phone_number", "display_phone_number"),
		DisplayName: str(raw, "display_name", "verified_name", "name"),
		Status:      str(raw, "status", "connection_status"),
	}
}

// ParseQuickReply maps a canned-response payload onto a cache row.
func ParseQuickReply(tenant string, raw []byte) *store.QuickReply {
	return &store.QuickReply{
		Tenant:   tenant,
		ServerID: str(raw, "id", "quick_reply_id"),
		Snapshot: raw,
		Shortcut: str(raw, "shortcut", "command", "title"),
		Body:     str(raw, "body", "text", "message"),
	}
}

// ParseArray splits a JSON array (or an object wrapping one under a known
// key) into the raw bytes of its elements.
func ParseArray(raw []byte, keys ...string) [][]byte {
	root := gjson.ParseBytes(raw)
	arr := root
	if !root.IsArray() {
		arr = gjson.Result{}
		for _, k := range append(keys, "data", "items", "results") {
			if r := root.Get(k); r.IsArray() {
				arr = r
				break
			}
		}
	}
	var out [][]byte
	for _, el := range arr.Array() {
		out = append(out, []byte(el.Raw))
	}
	return out
}

func rawObject(raw []byte, path string) string {
	if r := gjson.GetBytes(raw, path); r.IsObject() {
		return r.Raw
	}
	return ""
}
