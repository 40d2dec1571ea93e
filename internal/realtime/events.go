package realtime

import "encoding/json"

// MessageEvent is the canonical form of an inbound receive_message frame.
type MessageEvent struct {
	ConversationID string
	SenderID       string
	Content        string
	Timestamp      int64 // unix ms
}

// ProfileEvent is the canonical form of an inbound profile_updated frame.
type ProfileEvent struct {
	UserID     string
	GivenName  string
	FamilyName string
	Status     string
	AvatarURL  string
}

// NotificationEvent is the canonical form of an inbound new_notification frame.
type NotificationEvent struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	Payload   json.RawMessage
	CreatedAt int64 // unix ms
}
