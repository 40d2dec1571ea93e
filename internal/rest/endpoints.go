package rest

import (
	"context"
	"net/http"
	"net/url"
)

// ListConversations fetches all conversation summaries for the local user.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationRecord, error) {
	var out []ConversationRecord
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates a private, group or channel conversation.
func (c *Client) CreateConversation(ctx context.Context, kind, name, participantID string) (*ConversationRecord, error) {
	var out ConversationRecord
	req := createConversationRequest{Kind: kind, Name: name, ParticipantID: participantID}
	if err := c.do(ctx, http.MethodPost, "/chats", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkConversationRead tells the backend the local user has seen the
// conversation. The local unread reset happens independently (and first).
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(conversationID)+"/read", nil, nil)
}

// SendMessage posts a message into a conversation. Returns the server
// message id. ClientMsgID makes retries idempotent on the backend.
func (c *Client) SendMessage(ctx context.Context, conversationID, clientMsgID, content string) (string, error) {
	var out sendMessageResponse
	req := sendMessageRequest{ClientMsgID: clientMsgID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(conversationID)+"/messages", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListContacts fetches the local user's contact list.
func (c *Client) ListContacts(ctx context.Context) ([]UserRecord, error) {
	var out []UserRecord
	if err := c.do(ctx, http.MethodGet, "/contacts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteContact removes a contact.
func (c *Client) DeleteContact(ctx context.Context, contactID string) error {
	return c.do(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(contactID), nil, nil)
}

// SearchUsers performs a free-text user lookup.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]UserRecord, error) {
	var out []UserRecord
	path := "/users/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListNotifications fetches the local user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]NotificationRecord, error) {
	var out []NotificationRecord
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flips one notification's read flag on the backend.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead flips every notification's read flag on the backend.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil)
}

// UpdateProfile patches the local user's profile on the backend.
func (c *Client) UpdateProfile(ctx context.Context, patch UserRecord) (*UserRecord, error) {
	var out UserRecord
	if err := c.do(ctx, http.MethodPatch, "/users/me", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
