package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/messenjrali/msgr/internal/bus"
)

// The backend emits some fields under two names depending on which service
// produced the frame (chat_id vs roomId, sender_id vs senderId). This
// decoder is the single place that accepts either alias; everything past
// it sees one canonical event type.

// envelope is the outer frame shape. "event"+"data" is the documented form;
// "type"+"payload" appears from older backend builds.
type envelope struct {
	Event   string          `json:"event"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

type messageFrame struct {
	ChatID      string `json:"chat_id"`
	RoomID      string `json:"roomId"`
	SenderID    string `json:"sender_id"`
	SenderIDAlt string `json:"senderId"`
	Content     string `json:"content"`
	Message     string `json:"message"`
	CreatedAt   int64  `json:"created_at"`
	Timestamp   int64  `json:"timestamp"`
}

type profileFrame struct {
	UserID     string `json:"user_id"`
	UserIDAlt  string `json:"userId"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Status     string `json:"status"`
	AvatarURL  string `json:"avatar_url"`
}

type notificationFrame struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt int64           `json:"created_at"`
}

// Decode turns a raw websocket frame into a canonical bus event.
// Unknown event names return an error and are dropped by the caller.
func Decode(raw []byte) (bus.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return bus.Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	name := firstNonEmpty(env.Event, env.Type)
	data := env.Data
	if len(data) == 0 {
		data = env.Payload
	}

	switch name {
	case "receive_message":
		return decodeMessage(data)
	case "profile_updated":
		return decodeProfile(data)
	case "new_notification":
		return decodeNotification(data)
	default:
		return bus.Event{}, fmt.Errorf("unknown event %q", name)
	}
}

func decodeMessage(data []byte) (bus.Event, error) {
	var f messageFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return bus.Event{}, fmt.Errorf("decode message frame: %w", err)
	}
	evt := &MessageEvent{
		ConversationID: firstNonEmpty(f.ChatID, f.RoomID),
		SenderID:       firstNonEmpty(f.SenderID, f.SenderIDAlt),
		Content:        firstNonEmpty(f.Content, f.Message),
		Timestamp:      f.CreatedAt,
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = f.Timestamp
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}
	if evt.ConversationID == "" {
		return bus.Event{}, fmt.Errorf("message frame has no conversation id")
	}
	return bus.Event{Kind: "rt.message", Timestamp: time.Now(), Payload: evt}, nil
}

func decodeProfile(data []byte) (bus.Event, error) {
	var f profileFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return bus.Event{}, fmt.Errorf("decode profile frame: %w", err)
	}
	evt := &ProfileEvent{
		UserID:     firstNonEmpty(f.UserID, f.UserIDAlt),
		GivenName:  f.GivenName,
		FamilyName: f.FamilyName,
		Status:     f.Status,
		AvatarURL:  f.AvatarURL,
	}
	if evt.UserID == "" {
		return bus.Event{}, fmt.Errorf("profile frame has no user id")
	}
	return bus.Event{Kind: "rt.profile_updated", Timestamp: time.Now(), Payload: evt}, nil
}

func decodeNotification(data []byte) (bus.Event, error) {
	var f notificationFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return bus.Event{}, fmt.Errorf("decode notification frame: %w", err)
	}
	if f.ID == "" {
		return bus.Event{}, fmt.Errorf("notification frame has no id")
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().UnixMilli()
	}
	evt := &NotificationEvent{
		ID:        f.ID,
		UserID:    f.UserID,
		Type:      f.Type,
		Title:     f.Title,
		Message:   f.Message,
		Payload:   f.Payload,
		CreatedAt: f.CreatedAt,
	}
	return bus.Event{Kind: "rt.notification", Timestamp: time.Now(), Payload: evt}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
