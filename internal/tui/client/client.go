package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the daemon's control API over its Unix domain socket.
type Client struct {
	http *http.Client
}

// New returns a client bound to the daemon socket at socketPath.
func New(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 30 * time.Second,
		},
	}
}

// Status is the daemon's status report.
type Status struct {
	Profile   string `json:"profile"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	User      *User  `json:"user,omitempty"`
}

// User is the logged-in account as reported by the daemon.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Conversation is one entry of the daemon's reconciled list.
type Conversation struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	DisplayName        string `json:"display_name"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
	LastMessageAt      int64  `json:"last_message_at,omitempty"`
	UnreadCount        int    `json:"unread_count"`
	Selected           bool   `json:"selected"`
}

// Contact is one entry of the contact list.
type Contact struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SearchResult is a user lookup hit.
type SearchResult struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Source      string `json:"source"`
}

// Notification is one entry of the notification panel.
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt int64           `json:"created_at"`
}

// Notifications bundles the panel list with its unread counter.
type Notifications struct {
	Unread        int            `json:"unread"`
	Notifications []Notification `json:"notifications"`
}

// Prefs holds the locally cached display preferences.
type Prefs struct {
	Theme          string  `json:"theme"`
	ChatBackground string  `json:"chat_background,omitempty"`
	BackgroundBlur float64 `json:"background_blur,omitempty"`
}

// PrefsPatch carries display preference fields to update.
type PrefsPatch struct {
	Theme          *string  `json:"theme,omitempty"`
	ChatBackground *string  `json:"chat_background,omitempty"`
	BackgroundBlur *float64 `json:"background_blur,omitempty"`
}

// ProfilePatch carries profile fields to update.
type ProfilePatch struct {
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Status     string `json:"status,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Login authenticates the profile against the backend.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var u User
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/login", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/logout", nil, nil)
}

// Conversations fetches the reconciled conversation list.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshConversations forces a full refetch from the backend.
func (c *Client) RefreshConversations(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/conversations/refresh", nil, nil)
}

// Select marks a conversation as the open one; its unread count drops to 0.
func (c *Client) Select(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(conversationID)+"/select", nil, nil)
}

// Deselect clears the open conversation.
func (c *Client) Deselect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/conversations/deselect", nil, nil)
}

// CreateConversation starts a conversation and returns the list entry.
func (c *Client) CreateConversation(ctx context.Context, kind, name, participantID string) (*Conversation, error) {
	var out Conversation
	body := map[string]string{"kind": kind, "name": name, "participant_id": participantID}
	if err := c.do(ctx, http.MethodPost, "/v1/conversations", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send queues a message for delivery and returns its client message id.
func (c *Client) Send(ctx context.Context, conversationID, body string) (string, error) {
	var out struct {
		ClientMsgID string `json:"client_msg_id"`
	}
	req := map[string]string{"body": body}
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return "", err
	}
	return out.ClientMsgID, nil
}

// Contacts fetches the contact list.
func (c *Client) Contacts(ctx context.Context) ([]Contact, error) {
	var out []Contact
	if err := c.do(ctx, http.MethodGet, "/v1/contacts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteContact removes a contact.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/contacts/"+url.PathEscape(id), nil, nil)
}

// SearchUsers looks up users by name or email.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]SearchResult, error) {
	var out []SearchResult
	path := "/v1/users/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications fetches the notification list with the unread counter.
func (c *Client) Notifications(ctx context.Context) (*Notifications, error) {
	var out Notifications
	if err := c.do(ctx, http.MethodGet, "/v1/notifications", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/notifications/read-all", nil, nil)
}

// Prefs fetches the display preferences.
func (c *Client) Prefs(ctx context.Context) (*Prefs, error) {
	var p Prefs
	if err := c.do(ctx, http.MethodGet, "/v1/prefs", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePrefs updates display preferences; nil fields are left unchanged.
func (c *Client) UpdatePrefs(ctx context.Context, patch PrefsPatch) (*Prefs, error) {
	var p Prefs
	if err := c.do(ctx, http.MethodPatch, "/v1/prefs", patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile updates the logged-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, patch ProfilePatch) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPatch, "/v1/profile", patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	// The host is ignored; the transport dials the socket.
	req, err := http.NewRequestWithContext(ctx, method, "http://msgrd"+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}
