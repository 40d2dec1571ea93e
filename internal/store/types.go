package store

// Conversation kinds.
const (
	KindPrivate = "private"
	KindGroup   = "group"
	KindChannel = "channel"
)

// Conversation is a cached conversation summary.
type Conversation struct {
	ID                 string
	Kind               string
	DisplayName        string
	AvatarURL          string // "" means render initials
	CounterpartID      string // participant id for private kind
	LastMessagePreview string
	LastMessageAt      int64 // unix ms
	UnreadCount        int
}

// Contact is a cached contact summary.
type Contact struct {
	ID          string
	DisplayName string
	Status      string
	AvatarURL   string
}

// Notification is a cached notification, newest first.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	Payload   string // raw JSON, opaque to the client
	Read      bool
	CreatedAt int64 // unix ms
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ConversationID string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
}
