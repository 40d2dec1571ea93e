package realtime

import (
	"testing"
)

func TestDecodeMessageAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			"snake_case",
			`{"event":"receive_message","data":{"chat_id":"c1","sender_id":"u2","content":"hi","created_at":1700000000000}}`,
		},
		{
			"camelCase",
			`{"event":"receive_message","data":{"roomId":"c1","senderId":"u2","message":"hi","timestamp":1700000000000}}`,
		},
		{
			"type_payload_envelope",
			`{"type":"receive_message","payload":{"chat_id":"c1","sender_id":"u2","content":"hi","created_at":1700000000000}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if evt.Kind != "rt.message" {
				t.Fatalf("Kind = %q", evt.Kind)
			}
			msg, ok := evt.Payload.(*MessageEvent)
			if !ok {
				t.Fatalf("payload type %T", evt.Payload)
			}
			if msg.ConversationID != "c1" || msg.SenderID != "u2" || msg.Content != "hi" {
				t.Errorf("msg = %+v", msg)
			}
			if msg.Timestamp != 1700000000000 {
				t.Errorf("Timestamp = %d", msg.Timestamp)
			}
		})
	}
}

func TestDecodeMessageAliasPrecedence(t *testing.T) {
	// When both aliases are present the canonical one wins.
	raw := `{"event":"receive_message","data":{"chat_id":"canonical","roomId":"alias","sender_id":"s1","senderId":"s2","content":"x"}}`
	evt, err := Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	msg := evt.Payload.(*MessageEvent)
	if msg.ConversationID != "canonical" {
		t.Errorf("ConversationID = %q, want canonical", msg.ConversationID)
	}
	if msg.SenderID != "s1" {
		t.Errorf("SenderID = %q, want s1", msg.SenderID)
	}
}

func TestDecodeMessageMissingConversation(t *testing.T) {
	raw := `{"event":"receive_message","data":{"sender_id":"u2","content":"hi"}}`
	if _, err := Decode([]byte(raw)); err == nil {
		t.Error("Decode() expected error for frame without conversation id")
	}
}

func TestDecodeProfile(t *testing.T) {
	raw := `{"event":"profile_updated","data":{"userId":"u1","given_name":"Ada","family_name":"Lovelace","avatar_url":"https://cdn.example/a.png"}}`
	evt, err := Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Kind != "rt.profile_updated" {
		t.Fatalf("Kind = %q", evt.Kind)
	}
	p := evt.Payload.(*ProfileEvent)
	if p.UserID != "u1" || p.GivenName != "Ada" {
		t.Errorf("profile = %+v", p)
	}
}

func TestDecodeNotification(t *testing.T) {
	raw := `{"event":"new_notification","data":{"id":"n1","user_id":"u1","type":"payment","title":"Paid","message":"You got paid","payload":{"amount":5},"created_at":1700000000000}}`
	evt, err := Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Kind != "rt.notification" {
		t.Fatalf("Kind = %q", evt.Kind)
	}
	n := evt.Payload.(*NotificationEvent)
	if n.ID != "n1" || n.Type != "payment" || n.CreatedAt != 1700000000000 {
		t.Errorf("notification = %+v", n)
	}
	if string(n.Payload) != `{"amount":5}` {
		t.Errorf("Payload = %s", n.Payload)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	if _, err := Decode([]byte(`{"event":"typing","data":{}}`)); err == nil {
		t.Error("Decode() expected error for unknown event")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Decode() expected error for invalid JSON")
	}
}
