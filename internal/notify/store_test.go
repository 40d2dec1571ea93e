package notify

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/messenjrali/msgr/internal/rest"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu        sync.Mutex
	records   []rest.NotificationRecord
	listErr   error
	readIDs   []string
	allCalls  int
	readCalls chan string
	allCh     chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{readCalls: make(chan string, 16), allCh: make(chan struct{}, 16)}
}

func (f *fakeAPI) ListNotifications(context.Context) ([]rest.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeAPI) MarkNotificationRead(_ context.Context, id string) error {
	f.mu.Lock()
	f.readIDs = append(f.readIDs, id)
	f.mu.Unlock()
	f.readCalls <- id
	return nil
}

func (f *fakeAPI) MarkAllNotificationsRead(context.Context) error {
	f.mu.Lock()
	f.allCalls++
	f.mu.Unlock()
	f.allCh <- struct{}{}
	return nil
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

func testStore(t *testing.T, api API) *Store {
	t.Helper()
	return NewStore(api, testDB(t), bus.New(), zap.NewNop())
}

func TestLoadComputesUnread(t *testing.T) {
	api := newFakeAPI()
	api.records = []rest.NotificationRecord{
		{ID: "n1", Title: "one", Read: false, CreatedAt: 3000},
		{ID: "n2", Title: "two", Read: true, CreatedAt: 2000},
		{ID: "n3", Title: "three", Read: false, CreatedAt: 1000},
	}
	s := testStore(t, api)

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Unread() != 2 {
		t.Errorf("Unread() = %d, want 2", s.Unread())
	}
	if got := s.Snapshot(); len(got) != 3 || got[0].ID != "n1" {
		t.Errorf("Snapshot() = %+v", got)
	}
}

func TestLoadFailureKeepsState(t *testing.T) {
	api := newFakeAPI()
	api.records = []rest.NotificationRecord{{ID: "n1"}}
	s := testStore(t, api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	api.mu.Lock()
	api.listErr = context.DeadlineExceeded
	api.mu.Unlock()

	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Snapshot()) != 1 {
		t.Error("list mutated on failed fetch")
	}
}

func TestInboundPrependsAndCounts(t *testing.T) {
	api := newFakeAPI()
	s := testStore(t, api)

	s.handleInbound(&realtime.NotificationEvent{ID: "n1", Title: "first", CreatedAt: 1000})
	s.handleInbound(&realtime.NotificationEvent{ID: "n2", Title: "second", CreatedAt: 2000})

	got := s.Snapshot()
	if len(got) != 2 || got[0].ID != "n2" {
		t.Fatalf("Snapshot() = %+v, want n2 first", got)
	}
	if s.Unread() != 2 {
		t.Errorf("Unread() = %d, want 2", s.Unread())
	}
}

func TestInboundDeduplicatesByID(t *testing.T) {
	api := newFakeAPI()
	s := testStore(t, api)

	evt := &realtime.NotificationEvent{ID: "n1", Title: "dup", CreatedAt: 1000}
	s.handleInbound(evt)
	s.handleInbound(evt)

	if len(s.Snapshot()) != 1 {
		t.Errorf("list = %+v, want single entry", s.Snapshot())
	}
	if s.Unread() != 1 {
		t.Errorf("Unread() = %d, want 1 (no double count)", s.Unread())
	}
}

func TestMarkAsReadOptimistic(t *testing.T) {
	api := newFakeAPI()
	api.records = []rest.NotificationRecord{{ID: "n1", Read: false, CreatedAt: 1000}}
	s := testStore(t, api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.MarkAsRead("n1")

	// Local state is final before the backend call resolves.
	if s.Unread() != 0 {
		t.Errorf("Unread() = %d, want 0 immediately", s.Unread())
	}
	if got := s.Snapshot(); !got[0].Read {
		t.Error("entry not flagged read locally")
	}

	select {
	case id := <-api.readCalls:
		if id != "n1" {
			t.Errorf("backend called with %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backend mark-read never issued")
	}
}

func TestMarkAsReadUnknownIDIsNoop(t *testing.T) {
	api := newFakeAPI()
	s := testStore(t, api)

	s.MarkAsRead("ghost")

	select {
	case <-api.readCalls:
		t.Error("backend called for unknown id")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMarkAllAsRead(t *testing.T) {
	api := newFakeAPI()
	api.records = []rest.NotificationRecord{
		{ID: "n1", Read: false, CreatedAt: 3000},
		{ID: "n2", Read: true, CreatedAt: 2000},
		{ID: "n3", Read: false, CreatedAt: 1000},
	}
	s := testStore(t, api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.MarkAllAsRead()

	if s.Unread() != 0 {
		t.Errorf("Unread() = %d, want 0", s.Unread())
	}
	for _, n := range s.Snapshot() {
		if !n.Read {
			t.Errorf("entry %s still unread", n.ID)
		}
	}

	select {
	case <-api.allCh:
	case <-time.After(2 * time.Second):
		t.Fatal("backend mark-all never issued")
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.allCalls != 1 {
		t.Errorf("backend calls = %d, want exactly 1", api.allCalls)
	}
}

func TestHydrateFromCache(t *testing.T) {
	api := newFakeAPI()
	db := testDB(t)
	if err := db.UpsertNotification(&store.Notification{ID: "n1", Read: false, CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}

	s := NewStore(api, db, bus.New(), zap.NewNop())
	if err := s.Hydrate(); err != nil {
		t.Fatal(err)
	}
	if len(s.Snapshot()) != 1 || s.Unread() != 1 {
		t.Errorf("hydrated list = %+v, unread = %d", s.Snapshot(), s.Unread())
	}
}

func TestBusSubscription(t *testing.T) {
	api := newFakeAPI()
	b := bus.New()
	s := NewStore(api, testDB(t), b, zap.NewNop())
	s.Start(context.Background())
	defer s.Stop()

	b.Publish(bus.Event{
		Kind:      "rt.notification",
		Timestamp: time.Now(),
		Payload:   &realtime.NotificationEvent{ID: "n1", Title: "via bus", CreatedAt: 1000},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Unread() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event from bus never applied")
}
