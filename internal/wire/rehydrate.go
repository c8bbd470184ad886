package wire

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/matheus3301/zapbox/internal/store"
)

// Rehydration turns a cached row back into a wire object. The verbatim
// snapshot wins whenever it is a valid JSON object; rows whose snapshot is
// missing or corrupt are reconstructed from the scalar columns so a reader
// always gets a usable object.

// ConversationObject returns the wire object for a cached conversation.
func ConversationObject(c *store.Conversation) []byte {
	if validObject(c.Snapshot) {
		return c.Snapshot
	}
	obj := map[string]any{
		"id":           c.ServerID,
		"unread_count": c.UnreadCount,
		"pinned":       c.Pinned,
		"archived":     c.Archived,
		"muted":        c.Muted,
	}
	if c.AssignedTo != "" {
		obj["assigned_to"] = c.AssignedTo
	}
	if gjson.Valid(c.Tags) {
		obj["tags"] = json.RawMessage(c.Tags)
	}
	if validObject(c.LastMessageJSON) {
		obj["last_message"] = json.RawMessage(c.LastMessageJSON)
	} else if c.LastMessagePreview != "" || c.LastMessageAt != 0 {
		obj["last_message"] = map[string]any{
			"body":      c.LastMessagePreview,
			"type":      c.LastMessageType,
			"timestamp": c.LastMessageAt,
		}
	}
	return mustJSON(obj)
}

// MessageObject returns the wire object for a cached message.
func MessageObject(m *store.Message) []byte {
	if validObject(m.Snapshot) {
		return m.Snapshot
	}
	obj := map[string]any{
		"conversation_id": m.ChatID,
		"type":            m.MessageType,
		"body":            m.Body,
		"direction":       m.Direction,
		"status":          m.Status,
		"timestamp":       m.Timestamp,
	}
	if m.ServerID != "" {
		obj["id"] = m.ServerID
	}
	if m.WireID != "" {
		obj["wamid"] = m.WireID
	}
	return mustJSON(obj)
}

// ContactObject returns the wire object for a cached contact.
func ContactObject(c *store.Contact) []byte {
	if validObject(c.Snapshot) {
		return c.Snapshot
	}
	return mustJSON(map[string]any{
		"id":    c.ServerID,
		"name":  c.Name,
		"phone": c.Phone,
	})
}

// TemplateObject returns the wire object for a cached template.
func TemplateObject(t *store.Template) []byte {
	if validObject(t.Snapshot) {
		return t.Snapshot
	}
	return mustJSON(map[string]any{
		"id":       t.ServerID,
		"name":     t.Name,
		"status":   t.Status,
		"category": t.Category,
		"language": t.Language,
	})
}

// ContactListObject returns the wire object for a cached list descriptor.
func ContactListObject(l *store.ContactList) []byte {
	if validObject(l.Snapshot) {
		return l.Snapshot
	}
	return mustJSON(map[string]any{
		"id":            l.ServerID,
		"name":          l.Name,
		"contact_count": l.ContactCount,
	})
}

// LineObject returns the wire object for a cached numbered line.
func LineObject(l *store.Line) []byte {
	if validObject(l.Snapshot) {
		return l.Snapshot
	}
	return mustJSON(map[string]any{
		"id":           l.ServerID,
		"phone":        l.Phone,
		"display_name": l.DisplayName,
		"status":       l.Status,
	})
}

// QuickReplyObject returns the wire object for a cached canned response.
func QuickReplyObject(q *store.QuickReply) []byte {
	if validObject(q.Snapshot) {
		return q.Snapshot
	}
	return mustJSON(map[string]any{
		"id":       q.ServerID,
		"shortcut": q.Shortcut,
		"body":     q.Body,
	})
}

func validObject(raw []byte) bool {
	return len(raw) > 0 && gjson.ValidBytes(raw) && gjson.ParseBytes(raw).IsObject()
}

func mustJSON(obj map[string]any) []byte {
	b, err := json.Marshal(obj)
	if err != nil {
		// Maps of scalars and RawMessage values always marshal.
		return []byte("{}")
	}
	return b
}
