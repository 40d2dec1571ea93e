package model

import (
	"context"
	"sync"
	"time"

	"github.com/messenjrali/msgr/internal/tui/client"
)

// ViewModel caches daemon state between refresh ticks and hands the views
// consistent snapshots.
type ViewModel struct {
	mu sync.RWMutex

	client         *client.Client
	Status         *client.Status
	Conversations  []client.Conversation
	Contacts       []client.Contact
	Notifications  *client.Notifications
	SearchResults  []client.SearchResult
	SelectedConvID string
	Flash          Flash
}

// NewViewModel creates a view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{client: c}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = st
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the reconciled conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	convs, err := vm.client.Conversations(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = convs
	for _, c := range convs {
		if c.Selected {
			vm.SelectedConvID = c.ID
		}
	}
	vm.mu.Unlock()
	return nil
}

// LoadNotifications fetches the notification list.
func (vm *ViewModel) LoadNotifications(ctx context.Context) error {
	ns, err := vm.client.Notifications(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Notifications = ns
	vm.mu.Unlock()
	return nil
}

// LoadContacts fetches the contact list.
func (vm *ViewModel) LoadContacts(ctx context.Context) error {
	cs, err := vm.client.Contacts(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Contacts = cs
	vm.mu.Unlock()
	return nil
}

// Select opens a conversation; the daemon zeroes its unread count.
func (vm *ViewModel) Select(ctx context.Context, id string) error {
	if err := vm.client.Select(ctx, id); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.SelectedConvID = id
	vm.mu.Unlock()
	return vm.LoadConversations(ctx)
}

// Deselect closes the open conversation.
func (vm *ViewModel) Deselect(ctx context.Context) error {
	vm.mu.Lock()
	vm.SelectedConvID = ""
	vm.mu.Unlock()
	return vm.client.Deselect(ctx)
}

// Send queues a message for the open conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	vm.mu.RLock()
	id := vm.SelectedConvID
	vm.mu.RUnlock()
	if id == "" {
		return nil
	}
	if _, err := vm.client.Send(ctx, id, text); err != nil {
		return err
	}
	vm.Flash.Set("Message queued", 3*time.Second)
	return nil
}

// Search runs a user lookup and caches the results.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]client.SearchResult, error) {
	results, err := vm.client.SearchUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	vm.SearchResults = results
	vm.mu.Unlock()
	return results, nil
}

// StartConversation creates (or reopens) a private conversation with a user.
func (vm *ViewModel) StartConversation(ctx context.Context, userID string) (*client.Conversation, error) {
	return vm.client.CreateConversation(ctx, "private", "", userID)
}

// Login authenticates the daemon's profile.
func (vm *ViewModel) Login(ctx context.Context, email, password string) error {
	if _, err := vm.client.Login(ctx, email, password); err != nil {
		return err
	}
	return vm.LoadStatus(ctx)
}

// MarkNotificationRead marks one notification as read.
func (vm *ViewModel) MarkNotificationRead(ctx context.Context, id string) error {
	if err := vm.client.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	return vm.LoadNotifications(ctx)
}

// MarkAllNotificationsRead clears the unread counter.
func (vm *ViewModel) MarkAllNotificationsRead(ctx context.Context) error {
	if err := vm.client.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	return vm.LoadNotifications(ctx)
}

// GetStatus returns a snapshot of the daemon status.
func (vm *ViewModel) GetStatus() *client.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []client.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Conversations
}

// GetNotifications returns a snapshot of the notification panel state.
func (vm *ViewModel) GetNotifications() *client.Notifications {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Notifications
}

// Selected returns the open conversation id, or "".
func (vm *ViewModel) Selected() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.SelectedConvID
}

// SelectedConversation returns the open conversation's list entry, or nil.
func (vm *ViewModel) SelectedConversation() *client.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for i := range vm.Conversations {
		if vm.Conversations[i].ID == vm.SelectedConvID {
			c := vm.Conversations[i]
			return &c
		}
	}
	return nil
}
