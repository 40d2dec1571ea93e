package store

import "fmt"

// UpsertNotification inserts or updates a notification (idempotent on id).
func (db *DB) UpsertNotification(n *Notification) error {
	_, err := db.Exec(`
		INSERT INTO notifications (id, user_id, type, title, message, payload, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			message = excluded.message,
			payload = excluded.payload,
			read = excluded.read`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Payload, n.Read, n.CreatedAt)
	return err
}

// ReplaceNotifications swaps the cached notification list in one transaction.
func (db *DB) ReplaceNotifications(ns []Notification) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM notifications`); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	for _, n := range ns {
		if _, err := tx.Exec(`
			INSERT INTO notifications (id, user_id, type, title, message, payload, read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.UserID, n.Type, n.Title, n.Message, n.Payload, n.Read, n.CreatedAt); err != nil {
			return fmt.Errorf("insert notification %q: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

// ListNotifications returns cached notifications, newest first.
func (db *DB) ListNotifications(limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, user_id, type, title, message, payload, read, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ns []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

// MarkNotificationRead flips one notification's read flag.
func (db *DB) MarkNotificationRead(id string) error {
	_, err := db.Exec(`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	return err
}

// MarkAllNotificationsRead flips every notification's read flag.
func (db *DB) MarkAllNotificationsRead() error {
	_, err := db.Exec(`UPDATE notifications SET read = 1`)
	return err
}

// UnreadNotificationCount returns the number of unread notifications.
func (db *DB) UnreadNotificationCount() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&count)
	return count, err
}

// PruneNotifications keeps only the newest keep entries.
func (db *DB) PruneNotifications(keep int) error {
	_, err := db.Exec(`
		DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY created_at DESC LIMIT ?
		)`, keep)
	return err
}
