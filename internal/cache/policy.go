package cache

import (
	"time"

	"github.com/matheus3301/zapbox/internal/config"
)

// Cache-meta entity keys. Messages are tracked per chat; everything else has
// one freshness record per tenant.
const (
	entityConversations = "conversations"
	entityContacts      = "contacts"
	entityTemplates     = "templates"
	entityContactLists  = "contact_lists"
	entityLines         = "lines"
	entityStats         = "stats"
	entitySettings      = "settings"
	entityQuickReplies  = "quick_replies"
)

func entityMessages(chatID string) string {
	return "messages:" + chatID
}

// ttl maps a cache-meta entity key to its configured staleness window.
// Zero means the entity never goes stale and is refreshed only by explicit
// pulls or push events.
func ttl(cfg config.TTLConfig, entity string) time.Duration {
	var seconds int
	switch entity {
	case entityConversations:
		seconds = cfg.Conversations
	case entityContacts:
		seconds = cfg.Contacts
	case entityTemplates:
		seconds = cfg.Templates
	case entityContactLists:
		seconds = cfg.ContactLists
	case entityLines:
		seconds = cfg.Lines
	case entityStats:
		seconds = cfg.Stats
	case entitySettings:
		seconds = cfg.Settings
	case entityQuickReplies:
		seconds = cfg.QuickReplies
	default: // messages:<chat>
		seconds = cfg.Messages
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// stale applies the staleness rule to a last-synced timestamp.
func stale(window time.Duration, syncedAt int64) bool {
	if window <= 0 {
		return false
	}
	return time.Now().UnixMilli()-syncedAt > window.Milliseconds()
}
