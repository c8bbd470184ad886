package store

// Sentinel bucket/tenant values. Uniqueness indexes do not collapse NULLs,
// so "no specific bucket" and "no tenant scope" get non-null placeholders.
const (
	DefaultBucket = "__all__"
	GlobalTenant  = "__global__"
	GlobalScope   = "global"
)

// Message lifecycle statuses.
const (
	MessagePending   = "pending"
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageRead      = "read"
	MessageFailed    = "failed"
	MessageReceived  = "received"
)

// Sync queue entry statuses.
const (
	QueuePending   = "pending"
	QueueCompleted = "completed"
	QueueFailed    = "failed"
)

// Message directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Conversation is a cached chat thread. Snapshot holds the verbatim wire
// JSON; the scalar fields are denormalized for list rendering and sorting.
type Conversation struct {
	ID                 int64
	ServerID           string
	Tenant             string
	Snapshot           []byte
	LastMessageJSON    []byte
	LastMessagePreview string
	LastMessageType    string
	LastMessageAt      int64
	UnreadCount        int
	Pinned             bool
	Archived           bool
	Muted              bool
	AssignedTo         string
	Tags               string // JSON array
	MessagesLoaded     bool
	UpdatedAt          int64
}

// Message is a cached chat message. ServerID and WireID are empty until the
// server assigns them; TempID identifies optimistic local rows.
type Message struct {
	ID             int64
	Tenant         string
	ChatID         string
	ServerID       string
	WireID         string
	TempID         string
	Snapshot       []byte
	MessageType    string
	Body           string
	Direction      string
	Status         string
	ErrorCode      string
	ErrorMessage   string
	MediaLocalPath string
	MediaStatus    string
	Timestamp      int64
	CreatedAt      int64
}

// Contact is one remote contact cached inside one named list bucket. The
// same server contact may exist in several buckets with independent
// sort orders.
type Contact struct {
	ID        int64
	ServerID  string
	Tenant    string
	Bucket    string
	Snapshot  []byte
	Name      string
	Phone     string
	SortOrder int
	UpdatedAt int64
}

// Template is a message template cached per status-filter bucket.
type Template struct {
	ID        int64
	ServerID  string
	Tenant    string
	Bucket    string
	Snapshot  []byte
	Name      string
	Status    string
	Category  string
	Language  string
	SortOrder int
	UpdatedAt int64
}

// ContactList is a named contact list descriptor (replace-all entity).
type ContactList struct {
	ID           int64
	ServerID     string
	Tenant       string
	Snapshot     []byte
	Name         string
	ContactCount int
	UpdatedAt    int64
}

// Line is a numbered messaging account (account-level, not tenant-scoped).
type Line struct {
	ID          int64
	ServerID    string
	Snapshot    []byte
	Phone       string
	DisplayName string
	Status      string
	UpdatedAt   int64
}

// Stat is a dashboard statistic blob keyed by (tenant, scope).
type Stat struct {
	ID       int64
	Tenant   string
	Scope    string
	Snapshot []byte
	SyncedAt int64
}

// QuickReply is a canned response.
type QuickReply struct {
	ID        int64
	ServerID  string
	Tenant    string
	Snapshot  []byte
	Shortcut  string
	Body      string
	UpdatedAt int64
}

// QueueEntry is one queued outbound operation.
type QueueEntry struct {
	ID         int64
	OpID       string
	Tenant     string
	Entity     string
	Operation  string // create, update, delete
	Payload    []byte
	Status     string
	RetryCount int
	MaxRetries int
	LastError  string
	CreatedAt  int64
	UpdatedAt  int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
