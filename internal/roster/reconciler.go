package roster

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/messenjrali/msgr/internal/rest"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/zap"
)

// fallbackName is shown for private conversations whose counterpart record
// carries no name at all.
const fallbackName = "Unknown user"

// backendTimeout bounds the fire-and-forget mark-read call on selection.
const backendTimeout = 10 * time.Second

// API is the slice of the REST client the reconciler uses.
type API interface {
	ListConversations(ctx context.Context) ([]rest.ConversationRecord, error)
	CreateConversation(ctx context.Context, kind, name, participantID string) (*rest.ConversationRecord, error)
	MarkConversationRead(ctx context.Context, conversationID string) error
	ListContacts(ctx context.Context) ([]rest.UserRecord, error)
	DeleteContact(ctx context.Context, contactID string) error
	SearchUsers(ctx context.Context, query string) ([]rest.UserRecord, error)
}

// Reconciler merges realtime events into the locally cached conversation
// and contact lists. The conversation list invariant: most recently active
// first, and the currently selected conversation always shows unread 0.
type Reconciler struct {
	mu     sync.RWMutex
	api    API
	creds  *session.Store
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	conversations []store.Conversation
	contacts      []store.Contact
	selectedID    string

	searchGen     uint64
	searchResults []SearchResult
}

// SearchResult is a user lookup hit mapped into the summary shape the
// selection flow understands.
type SearchResult struct {
	UserID      string
	DisplayName string
	Status      string
	AvatarURL   string
	Source      string // "contact" when the user is already a contact, else "global"
}

// New creates a reconciler.
func New(api API, creds *session.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		api:    api,
		creds:  creds,
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Hydrate fills the in-memory lists from the local cache so the front-ends
// have last-known-good state before the first fetch completes.
func (r *Reconciler) Hydrate() error {
	convs, err := r.db.ListConversations()
	if err != nil {
		return err
	}
	contacts, err := r.db.ListContacts()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.conversations = convs
	r.contacts = contacts
	r.mu.Unlock()
	return nil
}

// Start subscribes to the realtime event stream.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("rt.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				switch p := evt.Payload.(type) {
				case *realtime.MessageEvent:
					r.HandleMessage(ctx, p)
				case *realtime.ProfileEvent:
					r.HandleProfile(ctx, p)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event subscription.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Load performs the full conversation fetch and mapping pass. On failure
// the list keeps its last-known-good state.
func (r *Reconciler) Load(ctx context.Context) error {
	records, err := r.api.ListConversations(ctx)
	if err != nil {
		r.logger.Warn("conversation fetch failed, keeping cached state", zap.Error(err))
		return err
	}

	localID := r.creds.UserID()
	r.mu.Lock()
	convs := make([]store.Conversation, 0, len(records))
	for _, rec := range records {
		convs = append(convs, r.mapRecordLocked(rec, localID))
	}
	sortByActivity(convs)
	r.conversations = convs
	snapshot := append([]store.Conversation(nil), convs...)
	r.mu.Unlock()

	if err := r.db.ReplaceConversations(snapshot); err != nil {
		r.logger.Warn("failed to cache conversations", zap.Error(err))
	}
	r.publish()
	return nil
}

// LoadContacts performs the full contact fetch.
func (r *Reconciler) LoadContacts(ctx context.Context) error {
	records, err := r.api.ListContacts(ctx)
	if err != nil {
		r.logger.Warn("contact fetch failed, keeping cached state", zap.Error(err))
		return err
	}

	contacts := make([]store.Contact, 0, len(records))
	for _, rec := range records {
		contacts = append(contacts, store.Contact{
			ID:          rec.ID,
			DisplayName: userDisplayName(rec),
			Status:      rec.Status,
			AvatarURL:   session.NormalizeAvatarURL(rec.AvatarURL),
		})
	}

	r.mu.Lock()
	r.contacts = contacts
	r.mu.Unlock()

	if err := r.db.ReplaceContacts(contacts); err != nil {
		r.logger.Warn("failed to cache contacts", zap.Error(err))
	}
	r.publish()
	return nil
}

// mapRecordLocked maps one backend record to a summary. The selected
// conversation's unread is forced to 0 on every mapping pass, so a stale
// server-side count can never resurface on an open conversation.
func (r *Reconciler) mapRecordLocked(rec rest.ConversationRecord, localID string) store.Conversation {
	c := store.Conversation{
		ID:          rec.ID,
		Kind:        rec.Kind,
		UnreadCount: rec.UnreadCount,
	}
	if c.Kind == "" {
		c.Kind = store.KindPrivate
	}

	switch c.Kind {
	case store.KindPrivate:
		if cp, ok := counterpart(rec.Participants, localID); ok {
			c.CounterpartID = cp.ID
			c.DisplayName = userDisplayName(cp)
			c.AvatarURL = session.NormalizeAvatarURL(cp.AvatarURL)
		} else {
			c.DisplayName = fallbackName
		}
	default:
		c.DisplayName = rec.Name
		if c.DisplayName == "" {
			c.DisplayName = fallbackName
		}
		c.AvatarURL = session.NormalizeAvatarURL(rec.AvatarURL)
	}

	if rec.LastMessage != nil {
		c.LastMessagePreview = rec.LastMessage.Content
		c.LastMessageAt = rec.LastMessage.CreatedAt
	}
	if c.ID == r.selectedID {
		c.UnreadCount = 0
	}
	return c
}

// HandleMessage applies one inbound receive_message event.
func (r *Reconciler) HandleMessage(ctx context.Context, evt *realtime.MessageEvent) {
	localID := r.creds.UserID()

	r.mu.Lock()
	idx := -1
	for i := range r.conversations {
		if r.conversations[i].ID == evt.ConversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		// First message of a brand-new conversation: the list does not
		// know it, so one full refetch, no direct mutation.
		r.logger.Info("message for unknown conversation, refetching",
			zap.String("conversation_id", evt.ConversationID))
		_ = r.Load(ctx)
		return
	}

	c := r.conversations[idx]
	c.LastMessagePreview = evt.Content
	c.LastMessageAt = evt.Timestamp
	switch {
	case c.ID == r.selectedID:
		c.UnreadCount = 0
	case evt.SenderID != localID:
		c.UnreadCount++
	}
	// Echoes of our own outgoing messages update the preview but never
	// the unread count.

	// Move to front.
	r.conversations = append(r.conversations[:idx], r.conversations[idx+1:]...)
	r.conversations = append([]store.Conversation{c}, r.conversations...)
	r.mu.Unlock()

	if err := r.db.UpsertConversation(&c); err != nil {
		r.logger.Warn("failed to cache conversation", zap.Error(err))
	}
	r.publish()
}

// Select makes a conversation current. Its unread count drops to 0
// immediately (local optimistic reset); the backend mark-read runs
// asynchronously and is not rolled back on failure.
func (r *Reconciler) Select(id string) {
	r.mu.Lock()
	r.selectedID = id
	var updated *store.Conversation
	for i := range r.conversations {
		if r.conversations[i].ID == id {
			if r.conversations[i].UnreadCount != 0 {
				r.conversations[i].UnreadCount = 0
			}
			c := r.conversations[i]
			updated = &c
			break
		}
	}
	r.mu.Unlock()

	if updated != nil {
		if err := r.db.UpsertConversation(updated); err != nil {
			r.logger.Warn("failed to cache conversation", zap.Error(err))
		}
	}
	r.publish()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		if err := r.api.MarkConversationRead(ctx, id); err != nil {
			r.logger.Warn("backend mark-read failed", zap.String("conversation_id", id), zap.Error(err))
		}
	}()
}

// Deselect clears the selection (no conversation open).
func (r *Reconciler) Deselect() {
	r.mu.Lock()
	r.selectedID = ""
	r.mu.Unlock()
}

// HandleProfile applies one inbound profile_updated event. A profile
// change can touch display names and avatars scattered across many list
// entries, so both lists are refetched wholesale.
func (r *Reconciler) HandleProfile(ctx context.Context, evt *realtime.ProfileEvent) {
	if evt.UserID == r.creds.UserID() {
		if err := r.creds.UpdateUser(session.User{
			GivenName:  evt.GivenName,
			FamilyName: evt.FamilyName,
			Status:     evt.Status,
			AvatarURL:  evt.AvatarURL,
		}); err != nil {
			r.logger.Warn("failed to persist own profile update", zap.Error(err))
		}
	}
	_ = r.Load(ctx)
	_ = r.LoadContacts(ctx)
}

// Search performs a user lookup. A blank query clears results. A response
// arriving after a newer query started is discarded (generation counter),
// so rapid keystrokes cannot resurface stale results.
func (r *Reconciler) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)

	r.mu.Lock()
	r.searchGen++
	gen := r.searchGen
	if query == "" {
		r.searchResults = nil
		r.mu.Unlock()
		r.publish()
		return nil, nil
	}
	contactIDs := make(map[string]struct{}, len(r.contacts))
	for _, c := range r.contacts {
		contactIDs[c.ID] = struct{}{}
	}
	r.mu.Unlock()

	records, err := r.api.SearchUsers(ctx, query)
	if err != nil {
		r.logger.Warn("user search failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		source := "global"
		if _, ok := contactIDs[rec.ID]; ok {
			source = "contact"
		}
		results = append(results, SearchResult{
			UserID:      rec.ID,
			DisplayName: userDisplayName(rec),
			Status:      rec.Status,
			AvatarURL:   session.NormalizeAvatarURL(rec.AvatarURL),
			Source:      source,
		})
	}

	r.mu.Lock()
	if r.searchGen != gen {
		// A newer search superseded this one while it was in flight.
		r.mu.Unlock()
		return nil, nil
	}
	r.searchResults = results
	r.mu.Unlock()

	r.publish()
	return results, nil
}

// CreateConversation creates a conversation on the backend and inserts it
// at the front of the list.
func (r *Reconciler) CreateConversation(ctx context.Context, kind, name, participantID string) (*store.Conversation, error) {
	rec, err := r.api.CreateConversation(ctx, kind, name, participantID)
	if err != nil {
		return nil, err
	}

	localID := r.creds.UserID()
	r.mu.Lock()
	c := r.mapRecordLocked(*rec, localID)
	// Replace any existing entry (the backend may return an existing
	// private conversation instead of a new one).
	for i := range r.conversations {
		if r.conversations[i].ID == c.ID {
			r.conversations = append(r.conversations[:i], r.conversations[i+1:]...)
			break
		}
	}
	r.conversations = append([]store.Conversation{c}, r.conversations...)
	r.mu.Unlock()

	if err := r.db.UpsertConversation(&c); err != nil {
		r.logger.Warn("failed to cache conversation", zap.Error(err))
	}
	r.publish()
	return &c, nil
}

// DeleteContact removes a contact on the backend and locally.
func (r *Reconciler) DeleteContact(ctx context.Context, id string) error {
	if err := r.api.DeleteContact(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	for i := range r.contacts {
		if r.contacts[i].ID == id {
			r.contacts = append(r.contacts[:i], r.contacts[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if err := r.db.DeleteContact(id); err != nil {
		r.logger.Warn("failed to evict cached contact", zap.Error(err))
	}
	r.publish()
	return nil
}

// Conversations returns a copy of the list, most recently active first.
func (r *Reconciler) Conversations() []store.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.Conversation, len(r.conversations))
	copy(out, r.conversations)
	return out
}

// Contacts returns a copy of the contact list.
func (r *Reconciler) Contacts() []store.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.Contact, len(r.contacts))
	copy(out, r.contacts)
	return out
}

// SearchResults returns the latest non-stale search results.
func (r *Reconciler) SearchResults() []SearchResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SearchResult, len(r.searchResults))
	copy(out, r.searchResults)
	return out
}

// Selected returns the currently selected conversation id, or "".
func (r *Reconciler) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectedID
}

func (r *Reconciler) publish() {
	r.bus.Publish(bus.Event{Kind: "roster.updated", Timestamp: time.Now()})
}

func counterpart(participants []rest.UserRecord, localID string) (rest.UserRecord, bool) {
	for _, p := range participants {
		if p.ID != localID {
			return p, true
		}
	}
	return rest.UserRecord{}, false
}

func userDisplayName(u rest.UserRecord) string {
	name := strings.TrimSpace(strings.TrimSpace(u.GivenName) + " " + strings.TrimSpace(u.FamilyName))
	if name == "" {
		return fallbackName
	}
	return name
}

func sortByActivity(convs []store.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessageAt > convs[j].LastMessageAt
	})
}
