package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertConversation inserts or updates a conversation record.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, kind, display_name, avatar_url, counterpart_id, last_message_preview, last_message_at, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			counterpart_id = excluded.counterpart_id,
			last_message_preview = excluded.last_message_preview,
			last_message_at = excluded.last_message_at,
			unread_count = excluded.unread_count,
			updated_at = excluded.updated_at`,
		c.ID, c.Kind, c.DisplayName, c.AvatarURL, c.CounterpartID,
		c.LastMessagePreview, c.LastMessageAt, c.UnreadCount, now)
	return err
}

// ReplaceConversations swaps the whole cached list in one transaction.
// Used after a full fetch so deleted conversations disappear from cache.
func (db *DB) ReplaceConversations(convs []Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, c := range convs {
		if _, err := tx.Exec(`
			INSERT INTO conversations (id, kind, display_name, avatar_url, counterpart_id, last_message_preview, last_message_at, unread_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Kind, c.DisplayName, c.AvatarURL, c.CounterpartID,
			c.LastMessagePreview, c.LastMessageAt, c.UnreadCount, now); err != nil {
			return fmt.Errorf("insert conversation %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListConversations returns cached conversations, most recently active first.
func (db *DB) ListConversations() ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT id, kind, display_name, avatar_url, counterpart_id, last_message_preview, last_message_at, unread_count
		FROM conversations
		ORDER BY last_message_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Kind, &c.DisplayName, &c.AvatarURL, &c.CounterpartID,
			&c.LastMessagePreview, &c.LastMessageAt, &c.UnreadCount); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation by id, or nil when absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, kind, display_name, avatar_url, counterpart_id, last_message_preview, last_message_at, unread_count
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Kind, &c.DisplayName, &c.AvatarURL, &c.CounterpartID,
			&c.LastMessagePreview, &c.LastMessageAt, &c.UnreadCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConversationCount returns the total number of cached conversations.
func (db *DB) ConversationCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}
