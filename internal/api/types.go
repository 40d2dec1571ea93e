package api

import (
	"encoding/json"

	"github.com/messenjrali/msgr/internal/roster"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/store"
)

type statusResponse struct {
	Profile   string    `json:"profile"`
	State     string    `json:"state"`
	Connected bool      `json:"connected"`
	User      *userView `json:"user,omitempty"`
}

type userView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type conversationView struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	DisplayName        string `json:"display_name"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
	LastMessageAt      int64  `json:"last_message_at,omitempty"`
	UnreadCount        int    `json:"unread_count"`
	Selected           bool   `json:"selected"`
}

type createConversationRequest struct {
	Kind          string `json:"kind"`
	Name          string `json:"name,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

type prefsView struct {
	Theme          string  `json:"theme"`
	ChatBackground string  `json:"chat_background,omitempty"`
	BackgroundBlur float64 `json:"background_blur,omitempty"`
}

type prefsUpdateRequest struct {
	Theme          *string  `json:"theme,omitempty"`
	ChatBackground *string  `json:"chat_background,omitempty"`
	BackgroundBlur *float64 `json:"background_blur,omitempty"`
}

type sendMessageResponse struct {
	ClientMsgID string `json:"client_msg_id"`
}

type contactView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type searchResultView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Source      string `json:"source"`
}

type notificationView struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt int64           `json:"created_at"`
}

type notificationsResponse struct {
	Unread        int                `json:"unread"`
	Notifications []notificationView `json:"notifications"`
}

type profileUpdateRequest struct {
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Status     string `json:"status,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func userToView(u *session.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		GivenName:   u.GivenName,
		FamilyName:  u.FamilyName,
		Email:       u.Email,
		Status:      u.Status,
		AvatarURL:   u.AvatarURL,
	}
}

func conversationToView(c store.Conversation, selectedID string) conversationView {
	return conversationView{
		ID:                 c.ID,
		Kind:               c.Kind,
		DisplayName:        c.DisplayName,
		AvatarURL:          c.AvatarURL,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      c.LastMessageAt,
		UnreadCount:        c.UnreadCount,
		Selected:           c.ID == selectedID,
	}
}

func contactToView(c store.Contact) contactView {
	return contactView{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		Status:      c.Status,
		AvatarURL:   c.AvatarURL,
	}
}

func searchResultToView(r roster.SearchResult) searchResultView {
	return searchResultView{
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Status:      r.Status,
		AvatarURL:   r.AvatarURL,
		Source:      r.Source,
	}
}

func notificationToView(n store.Notification) notificationView {
	v := notificationView{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.Payload != "" {
		v.Payload = json.RawMessage(n.Payload)
	}
	return v
}
