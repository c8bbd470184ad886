package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/zapbox/internal/bus"
	"github.com/matheus3301/zapbox/internal/config"
	"github.com/matheus3301/zapbox/internal/store"
)

var errNoTenant = errors.New("no active tenant")

// Page is a cache read result plus the metadata the UI needs to decide
// whether to render immediately, show a refresh spinner, or both.
type Page[T any] struct {
	Items      []T
	FromCache  bool
	IsStale    bool
	HasMore    bool
	TotalCount int
}

// Coordinator is the single entry point the host UI talks to. It scopes every
// read and write to the active tenant, tracks per-entity freshness, and
// publishes change events on the bus.
type Coordinator struct {
	db     *store.DB
	bus    *bus.Bus
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.RWMutex
	tenant string
}

// NewCoordinator creates a coordinator with no active tenant. Reads return
// empty pages until SetTenant is called.
func NewCoordinator(db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{db: db, bus: b, cfg: cfg, logger: logger}
}

// Tenant returns the active tenant id, empty when none is set.
func (c *Coordinator) Tenant() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenant
}

// SetTenant switches the active tenant. The pointer flips before the previous
// tenant's rows are purged, so reads issued during the purge already filter by
// the new id and can never see the outgoing tenant's data.
func (c *Coordinator) SetTenant(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.tenant == id {
		c.mu.Unlock()
		return nil
	}
	prev := c.tenant
	c.tenant = id
	c.mu.Unlock()

	c.logger.Info("tenant switched", zap.String("tenant", id), zap.String("previous", prev))
	c.publish("tenant.switched", id)

	if prev == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.ClearTenant(prev); err != nil {
		return fmt.Errorf("purge tenant %s: %w", prev, err)
	}
	c.publish("tenant.cleared", prev)
	return nil
}

func (c *Coordinator) publish(kind string, payload any) {
	if c.bus != nil {
		c.bus.Publish(bus.NewEvent(kind, payload))
	}
}

// page assembles freshness metadata for one entity read.
func page[T any](c *Coordinator, tenant, entity string, items []T, total int, limit int) Page[T] {
	syncedAt, err := c.db.SyncedAt(tenant, entity)
	if err != nil {
		c.logger.Warn("freshness lookup failed", zap.String("entity", entity), zap.Error(err))
	}
	return Page[T]{
		Items:      items,
		FromCache:  syncedAt > 0 || len(items) > 0,
		IsStale:    stale(ttl(c.cfg.Cache.TTLSeconds, entity), syncedAt),
		HasMore:    limit > 0 && len(items) == limit,
		TotalCount: total,
	}
}

// Conversations returns the active tenant's conversation list, pinned first.
func (c *Coordinator) Conversations(limit, offset int) (Page[store.Conversation], error) {
	tenant := c.Tenant()
	if tenant == "" {
		return Page[store.Conversation]{}, nil
	}
	items, err := c.db.ListConversations(tenant, limit, offset)
	if err != nil {
		return Page[store.Conversation]{}, err
	}
	total, err := c.db.ConversationCount(tenant)
	if err != nil {
		return Page[store.Conversation]{}, err
	}
	return page(c, tenant, entityConversations, items, total, limit), nil
}

// Messages returns one chat's messages, newest first, keyset-paginated by
// timestamp. Pass beforeTs 0 for the first page.
func (c *Coordinator) Messages(chatID string, beforeTs int64, limit int) (Page[store.Message], error) {
	tenant := c.Tenant()
	if tenant == "" {
		return Page[store.Message]{}, nil
	}
	items, err := c.db.ListMessages(tenant, chatID, beforeTs, limit)
	if err != nil {
		return Page[store.Message]{}, err
	}
	total, err := c.db.MessageCount(tenant, chatID)
	if err != nil {
		return Page[store.Message]{}, err
	}
	return page(c, tenant, entityMessages(chatID), items, total, limit), nil
}

// SearchMessages runs a full-text search over the active tenant's messages.
func (c *Coordinator) SearchMessages(query, chatID string, limit int) ([]store.SearchResult, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return nil, nil
	}
	return c.db.SearchMessages(tenant, query, chatID, limit)
}

// Contacts returns one bucket of contacts in server pagination order.
func (c *Coordinator) Contacts(bucket string, limit, offset int) (Page[store.Contact], error) {
	tenant := c.Tenant()
	if tenant == "" {
		return Page[store.Contact]{}, nil
	}
	items, err := c.db.ListContacts(tenant, bucket, limit, offset)
	if err != nil {
		return Page[store.Contact]{}, err
	}
	total, err := c.db.ContactCount(tenant, bucket)
	if err != nil {
		return Page[store.Contact]{}, err
	}
	return page(c, tenant, entityContacts, items, total, limit), nil
}

// Templates returns one bucket of message templates.
func (c *Coordinator) Templates(bucket string, limit, offset int) (Page[store.Template], error) {
	tenant := c.Tenant()
	if tenant == "" {
		return Page[store.Template]{}, nil
	}
	items, err := c.db.ListTemplates(tenant, bucket, limit, offset)
	if err != nil {
		return Page[store.Template]{}, err
	}
	total, err := c.db.TemplateCount(tenant, bucket)
	if err != nil {
		return Page[store.Template]{}, err
	}
	return page(c, tenant, entityTemplates, items, total, limit), nil
}

// ContactLists returns the tenant's contact-list descriptors.
func (c *Coordinator) ContactLists() (Page[store.ContactList], error) {
	tenant := c.Tenant()
	if tenant == "" {
		return Page[store.ContactList]{}, nil
	}
	items, err := c.db.ListContactLists(tenant)
	if err != nil {
		return Page[store.ContactList]{}, err
	}
	return page(c, tenant, entityContactLists, items, len(items), 0), nil
}

// Lines returns the account's numbered lines. Lines are account-level;
// freshness is tracked under the global tenant sentinel and the read works
// with no tenant set.
func (c *Coordinator) Lines() (Page[store.Line], error) {
	items, err := c.db.ListLines()
	if err != nil {
		return Page[store.Line]{}, err
	}
	return page(c, store.GlobalTenant, entityLines, items, len(items), 0), nil
}

// Stats returns a dashboard statistics blob and whether it is stale.
func (c *Coordinator) Stats(scope string) (*store.Stat, bool, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return nil, false, nil
	}
	s, err := c.db.GetStat(tenant, scope)
	if err != nil || s == nil {
		return nil, true, err
	}
	return s, stale(ttl(c.cfg.Cache.TTLSeconds, entityStats), s.SyncedAt), nil
}

// Setting returns a settings blob and whether it is stale.
func (c *Coordinator) Setting(key string) ([]byte, bool, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return nil, false, nil
	}
	value, updatedAt, err := c.db.GetSetting(tenant, key)
	if err != nil || value == nil {
		return nil, true, err
	}
	return value, stale(ttl(c.cfg.Cache.TTLSeconds, entitySettings), updatedAt), nil
}

// QuickReplies returns the tenant's canned responses.
func (c *Coordinator) QuickReplies() (Page[store.QuickReply], error) {
	tenant := c.Tenant()
	if tenant == "" {
		return Page[store.QuickReply]{}, nil
	}
	items, err := c.db.ListQuickReplies(tenant)
	if err != nil {
		return Page[store.QuickReply]{}, err
	}
	return page(c, tenant, entityQuickReplies, items, len(items), 0), nil
}

// SaveConversations ingests a synced batch of conversations.
func (c *Coordinator) SaveConversations(convs []*store.Conversation) (int, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return 0, errNoTenant
	}
	for _, conv := range convs {
		conv.Tenant = tenant
	}
	n, err := c.db.UpsertConversations(convs, c.cfg.Cache.ChunkSize)
	if err != nil {
		return n, err
	}
	c.touchAndPublish(tenant, entityConversations, n)
	return n, nil
}

// SaveMessages ingests a synced batch of messages for one chat and keeps the
// conversation's denormalized last-message fields current.
func (c *Coordinator) SaveMessages(chatID string, msgs []*store.Message) (int, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return 0, errNoTenant
	}
	n, err := c.db.SaveMessages(tenant, chatID, msgs)
	if err != nil {
		return n, err
	}
	if newest := newestMessage(msgs); newest != nil {
		newest.Tenant = tenant
		newest.ChatID = chatID
		if err := c.db.ApplyLastMessage(newest); err != nil {
			c.logger.Warn("last-message update failed", zap.String("chat", chatID), zap.Error(err))
		}
	}
	c.touchAndPublish(tenant, entityMessages(chatID), n)
	return n, nil
}

// SaveContacts ingests one page of one contact bucket.
func (c *Coordinator) SaveContacts(bucket string, startIndex int, contacts []*store.Contact) (int, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return 0, errNoTenant
	}
	n, err := c.db.SaveContacts(tenant, bucket, startIndex, contacts, c.cfg.Cache.ChunkSize)
	if err != nil {
		return n, err
	}
	c.touchAndPublish(tenant, entityContacts, n)
	return n, nil
}

// SaveTemplates ingests one page of one template bucket.
func (c *Coordinator) SaveTemplates(bucket string, startIndex int, templates []*store.Template) (int, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return 0, errNoTenant
	}
	n, err := c.db.SaveTemplates(tenant, bucket, startIndex, templates, c.cfg.Cache.ChunkSize)
	if err != nil {
		return n, err
	}
	c.touchAndPublish(tenant, entityTemplates, n)
	return n, nil
}

// SaveContactLists replaces the tenant's contact-list descriptors.
func (c *Coordinator) SaveContactLists(lists []*store.ContactList) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	if err := c.db.ReplaceContactLists(tenant, lists); err != nil {
		return err
	}
	c.touchAndPublish(tenant, entityContactLists, len(lists))
	return nil
}

// SaveLines replaces the account's numbered lines.
func (c *Coordinator) SaveLines(lines []*store.Line) error {
	if err := c.db.ReplaceLines(lines); err != nil {
		return err
	}
	c.touchAndPublish(store.GlobalTenant, entityLines, len(lines))
	return nil
}

// SaveStats stores a dashboard statistics blob for one scope.
func (c *Coordinator) SaveStats(scope string, snapshot []byte) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	if err := c.db.PutStat(tenant, scope, snapshot); err != nil {
		return err
	}
	c.touchAndPublish(tenant, entityStats, 1)
	return nil
}

// SaveSetting stores one settings blob.
func (c *Coordinator) SaveSetting(key string, value []byte) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	if err := c.db.PutSetting(tenant, key, value); err != nil {
		return err
	}
	c.touchAndPublish(tenant, entitySettings, 1)
	return nil
}

// SaveQuickReplies ingests the tenant's canned responses.
func (c *Coordinator) SaveQuickReplies(replies []*store.QuickReply) (int, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return 0, errNoTenant
	}
	n, err := c.db.SaveQuickReplies(tenant, replies, c.cfg.Cache.ChunkSize)
	if err != nil {
		return n, err
	}
	c.touchAndPublish(tenant, entityQuickReplies, n)
	return n, nil
}

func (c *Coordinator) touchAndPublish(tenant, entity string, count int) {
	if err := c.db.TouchSynced(tenant, entity); err != nil {
		c.logger.Warn("freshness update failed", zap.String("entity", entity), zap.Error(err))
	}
	c.publish("cache."+entity+".saved", count)
}

// MarkConversationRead zeroes a conversation's unread counter.
func (c *Coordinator) MarkConversationRead(serverID string) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	if err := c.db.SetUnreadCount(tenant, serverID, 0); err != nil {
		return err
	}
	c.publish("cache.conversation.read", serverID)
	return nil
}

// MarkMessagesLoaded records that a chat's full history has been fetched.
func (c *Coordinator) MarkMessagesLoaded(serverID string) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	return c.db.MarkMessagesLoaded(tenant, serverID)
}

// AddOptimisticMessage persists a locally-composed message with a generated
// temp id and enqueues the send operation. The returned message carries the
// temp id the UI keys the bubble by until resolution.
func (c *Coordinator) AddOptimisticMessage(chatID, messageType, body string, snapshot []byte) (*store.Message, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return nil, errNoTenant
	}
	if messageType == "" {
		messageType = "text"
	}

	m := &store.Message{
		Tenant:      tenant,
		ChatID:      chatID,
		TempID:      uuid.NewString(),
		Snapshot:    snapshot,
		MessageType: messageType,
		Body:        body,
		Direction:   store.DirectionOut,
		Status:      store.MessagePending,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := c.db.InsertOptimistic(m); err != nil {
		return nil, err
	}
	if err := c.db.ApplyLastMessage(m); err != nil {
		c.logger.Warn("last-message update failed", zap.String("chat", chatID), zap.Error(err))
	}

	if err := c.enqueueMessageOp(tenant, m); err != nil {
		return nil, err
	}
	c.publish("message.queued", m.TempID)
	return m, nil
}

func (c *Coordinator) enqueueMessageOp(tenant string, m *store.Message) error {
	payload, err := json.Marshal(map[string]any{
		"temp_id":      m.TempID,
		"chat_id":      m.ChatID,
		"message_type": m.MessageType,
		"body":         m.Body,
		"snapshot":     json.RawMessage(normalizeSnapshot(m.Snapshot)),
	})
	if err != nil {
		return fmt.Errorf("encode message op: %w", err)
	}
	return c.db.Enqueue(&store.QueueEntry{
		OpID:       uuid.NewString(),
		Tenant:     tenant,
		Entity:     "message",
		Operation:  "create",
		Payload:    payload,
		MaxRetries: c.cfg.Queue.MaxRetries,
	})
}

func normalizeSnapshot(snapshot []byte) []byte {
	if len(snapshot) == 0 || !json.Valid(snapshot) {
		return []byte("null")
	}
	return snapshot
}

// ResolveOptimisticMessage assigns server identifiers to a pending message.
func (c *Coordinator) ResolveOptimisticMessage(tempID, serverID, wireID string) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	if err := c.db.ResolveOptimistic(tenant, tempID, serverID, wireID); err != nil {
		return err
	}
	c.publish("message.send_ack", tempID)
	return nil
}

// FailOptimisticMessage flips a pending message to failed with the send error.
func (c *Coordinator) FailOptimisticMessage(tempID, code, message string) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	if err := c.db.FailOptimistic(tenant, tempID, code, message); err != nil {
		return err
	}
	c.publish("message.send_failed", tempID)
	return nil
}

// RetryMessage moves a failed message back to pending and enqueues a fresh
// send operation for it.
func (c *Coordinator) RetryMessage(tempID string) error {
	tenant := c.Tenant()
	if tenant == "" {
		return errNoTenant
	}
	m, err := c.db.GetMessageByTempID(tenant, tempID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no message with temp id %q", tempID)
	}
	if err := c.db.RetryOptimistic(tenant, tempID); err != nil {
		return err
	}
	if err := c.enqueueMessageOp(tenant, m); err != nil {
		return err
	}
	c.publish("message.queued", tempID)
	return nil
}

// EnqueueOp queues an arbitrary outbound operation for the active tenant.
func (c *Coordinator) EnqueueOp(entity, operation string, payload []byte) (string, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return "", errNoTenant
	}
	opID := uuid.NewString()
	err := c.db.Enqueue(&store.QueueEntry{
		OpID:       opID,
		Tenant:     tenant,
		Entity:     entity,
		Operation:  operation,
		Payload:    payload,
		MaxRetries: c.cfg.Queue.MaxRetries,
	})
	if err != nil {
		return "", err
	}
	return opID, nil
}

// PendingOps returns queue entries still eligible for dispatch.
func (c *Coordinator) PendingOps(limit int) ([]store.QueueEntry, error) {
	return c.db.PendingOps(limit)
}

// CompleteOp marks a queue entry completed.
func (c *Coordinator) CompleteOp(opID string) error {
	return c.db.MarkOpCompleted(opID)
}

// FailOp records a dispatch failure for a queue entry.
func (c *Coordinator) FailOp(opID, errMsg string) error {
	return c.db.MarkOpFailed(opID, errMsg)
}

// FailedOps returns the active tenant's terminally failed operations.
func (c *Coordinator) FailedOps() ([]store.QueueEntry, error) {
	tenant := c.Tenant()
	if tenant == "" {
		return nil, nil
	}
	return c.db.FailedOps(tenant)
}

// CleanupQueue removes completed entries and failed entries past retention.
func (c *Coordinator) CleanupQueue() (int64, error) {
	return c.db.CleanupQueue(c.cfg.Queue.FailedRetention())
}

func newestMessage(msgs []*store.Message) *store.Message {
	var newest *store.Message
	for _, m := range msgs {
		if newest == nil || m.Timestamp > newest.Timestamp {
			newest = m
		}
	}
	return newest
}
