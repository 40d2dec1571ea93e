package rest

import "encoding/json"

// UserRecord is a backend user as it appears in conversation participants,
// contact lists and search results.
type UserRecord struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Role       string `json:"role,omitempty"`
}

// MessageRecord is the last-message preview embedded in a conversation.
type MessageRecord struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"` // unix ms
}

// ConversationRecord is a raw conversation as returned by the backend.
type ConversationRecord struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"` // private, group, channel
	Name         string         `json:"name,omitempty"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	UnreadCount  int            `json:"unread_count"`
	LastMessage  *MessageRecord `json:"last_message,omitempty"`
	Participants []UserRecord   `json:"participants,omitempty"`
}

// NotificationRecord is a raw notification as returned by the backend.
type NotificationRecord struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt int64           `json:"created_at"` // unix ms
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         UserRecord `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type createConversationRequest struct {
	Kind          string `json:"kind"`
	Name          string `json:"name,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
}

type sendMessageRequest struct {
	ClientMsgID string `json:"client_msg_id"`
	Content     string `json:"content"`
}

type sendMessageResponse struct {
	ID string `json:"id"`
}
