package notify

import (
	"context"
	"sync"
	"time"

	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/messenjrali/msgr/internal/rest"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/zap"
)

// backendTimeout bounds the fire-and-forget mark-read calls.
const backendTimeout = 10 * time.Second

// maxCached caps how many notifications the local cache retains.
const maxCached = 500

// API is the slice of the REST client the notification store uses.
type API interface {
	ListNotifications(ctx context.Context) ([]rest.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Store keeps the ordered notification list and the unread counter in sync
// with the backend. Mark-read operations apply locally first and reach the
// backend fire-and-forget: the backend is the operation target, not the
// source of truth at call time, so a failed call is logged and not rolled
// back.
type Store struct {
	mu     sync.RWMutex
	api    API
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	list   []store.Notification // newest first
	unread int
	seen   map[string]struct{} // dedup: duplicate delivery of an id is counted once
}

// NewStore creates a notification store.
func NewStore(api API, db *store.DB, b *bus.Bus, logger *zap.Logger) *Store {
	return &Store{
		api:    api,
		db:     db,
		bus:    b,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Hydrate fills the in-memory list from the local cache so front-ends see
// last-known-good state before the first fetch completes.
func (s *Store) Hydrate() error {
	cached, err := s.db.ListNotifications(maxCached)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(cached)
	return nil
}

// Load performs the full fetch. On failure the list keeps its last-known-
// good state.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.api.ListNotifications(ctx)
	if err != nil {
		s.logger.Warn("notification fetch failed, keeping cached state", zap.Error(err))
		return err
	}

	ns := make([]store.Notification, 0, len(records))
	for _, r := range records {
		ns = append(ns, store.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			Type:      r.Type,
			Title:     r.Title,
			Message:   r.Message,
			Payload:   string(r.Payload),
			Read:      r.Read,
			CreatedAt: r.CreatedAt,
		})
	}

	s.mu.Lock()
	s.setLocked(ns)
	s.mu.Unlock()

	if err := s.db.ReplaceNotifications(ns); err != nil {
		s.logger.Warn("failed to cache notifications", zap.Error(err))
	}
	s.publish()
	return nil
}

// setLocked replaces list, unread and the seen set. Callers hold s.mu.
func (s *Store) setLocked(ns []store.Notification) {
	s.list = ns
	s.unread = 0
	s.seen = make(map[string]struct{}, len(ns))
	for _, n := range ns {
		s.seen[n.ID] = struct{}{}
		if !n.Read {
			s.unread++
		}
	}
}

// Start subscribes to inbound rt.notification events.
func (s *Store) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe("rt.notification", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				n, ok := evt.Payload.(*realtime.NotificationEvent)
				if !ok {
					continue
				}
				s.handleInbound(n)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event subscription.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Store) handleInbound(evt *realtime.NotificationEvent) {
	n := store.Notification{
		ID:        evt.ID,
		UserID:    evt.UserID,
		Type:      evt.Type,
		Title:     evt.Title,
		Message:   evt.Message,
		Payload:   string(evt.Payload),
		CreatedAt: evt.CreatedAt,
	}

	s.mu.Lock()
	if _, dup := s.seen[n.ID]; dup {
		s.mu.Unlock()
		s.logger.Debug("duplicate notification dropped", zap.String("id", n.ID))
		return
	}
	s.seen[n.ID] = struct{}{}
	s.list = append([]store.Notification{n}, s.list...)
	s.unread++
	s.mu.Unlock()

	if err := s.db.UpsertNotification(&n); err != nil {
		s.logger.Warn("failed to cache notification", zap.Error(err))
	}
	s.publish()
}

// MarkAsRead flips one entry locally and tells the backend asynchronously.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	changed := false
	for i := range s.list {
		if s.list[i].ID == id && !s.list[i].Read {
			s.list[i].Read = true
			if s.unread > 0 {
				s.unread--
			}
			changed = true
			break
		}
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	if err := s.db.MarkNotificationRead(id); err != nil {
		s.logger.Warn("failed to cache read flag", zap.Error(err))
	}
	s.publish()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := s.api.MarkNotificationRead(ctx, id); err != nil {
			s.logger.Warn("backend mark-read failed", zap.String("id", id), zap.Error(err))
		}
	}()
}

// MarkAllAsRead flips every entry locally, then issues one backend call.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	for i := range s.list {
		s.list[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()

	if err := s.db.MarkAllNotificationsRead(); err != nil {
		s.logger.Warn("failed to cache read flags", zap.Error(err))
	}
	s.publish()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
			s.logger.Warn("backend mark-all-read failed", zap.Error(err))
		}
	}()
}

// Snapshot returns a copy of the current list, newest first.
func (s *Store) Snapshot() []store.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Notification, len(s.list))
	copy(out, s.list)
	return out
}

// Unread returns the current unread counter.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *Store) publish() {
	s.bus.Publish(bus.Event{Kind: "notify.updated", Timestamp: time.Now()})
}
