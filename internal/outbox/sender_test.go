package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/zap"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

type sendCall struct {
	ConversationID string
	ClientMsgID    string
	Content        string
}

func (m *mockSender) SendMessage(_ context.Context, conversationID, clientMsgID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{ConversationID: conversationID, ClientMsgID: clientMsgID, Content: content})
	if m.err != nil {
		return "", m.err
	}
	return "server-" + clientMsgID, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSenderProcessesPendingMessages(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{}
	s := NewSender(db, mock, b, zap.NewNop())

	ch, unsub := b.Subscribe("outbox.send_ack", 10)
	defer unsub()

	clientMsgID, err := s.Enqueue("conv-1", "hello")
	if err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop()

	select {
	case evt := <-ch:
		if evt.Kind != "outbox.send_ack" {
			t.Errorf("event kind = %q, want outbox.send_ack", evt.Kind)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for send_ack event")
	}

	if mock.callCount() != 1 {
		t.Fatalf("got %d send calls, want 1", mock.callCount())
	}
	if mock.calls[0].ConversationID != "conv-1" || mock.calls[0].Content != "hello" {
		t.Errorf("call = %+v, want {conv-1, hello}", mock.calls[0])
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 after send", len(pending))
	}

	entry, err := db.GetOutboxEntry(clientMsgID)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.Status != "sent" {
		t.Errorf("entry = %+v, want status sent", entry)
	}
	if entry != nil && entry.ServerMsgID != "server-"+clientMsgID {
		t.Errorf("server msg id = %q, want %q", entry.ServerMsgID, "server-"+clientMsgID)
	}
}

func TestSenderHandlesFailure(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{err: fmt.Errorf("network error")}
	s := NewSender(db, mock, b, zap.NewNop())

	ch, unsub := b.Subscribe("outbox.send_failed", 10)
	defer unsub()

	clientMsgID, err := s.Enqueue("conv-1", "hello")
	if err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	defer s.Stop()

	select {
	case evt := <-ch:
		if evt.Kind != "outbox.send_failed" {
			t.Errorf("event kind = %q, want outbox.send_failed", evt.Kind)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for send_failed event")
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 (should be marked failed)", len(pending))
	}

	entry, err := db.GetOutboxEntry(clientMsgID)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.Status != "failed" {
		t.Errorf("entry = %+v, want status failed", entry)
	}
	if entry != nil && entry.ErrorMessage != "network error" {
		t.Errorf("error message = %q, want %q", entry.ErrorMessage, "network error")
	}
}

func TestEnqueueGeneratesUniqueIDs(t *testing.T) {
	db := testDB(t)
	s := NewSender(db, &mockSender{}, bus.New(), zap.NewNop())

	first, err := s.Enqueue("conv-1", "one")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Enqueue("conv-1", "two")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("client msg ids collide: %q", first)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("got %d pending, want 2", len(pending))
	}
}
