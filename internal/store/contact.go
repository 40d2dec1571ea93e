package store

import (
	"fmt"
	"time"
)

// ReplaceContacts swaps the whole cached contact list in one transaction.
func (db *DB) ReplaceContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, display_name, status, avatar_url, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.DisplayName, c.Status, c.AvatarURL, now); err != nil {
			return fmt.Errorf("insert contact %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListContacts returns cached contacts ordered by display name.
func (db *DB) ListContacts() ([]Contact, error) {
	rows, err := db.Query(`
		SELECT id, display_name, status, avatar_url
		FROM contacts
		ORDER BY display_name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.Status, &c.AvatarURL); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// DeleteContact removes a contact from the cache.
func (db *DB) DeleteContact(id string) error {
	_, err := db.Exec(`DELETE FROM contacts WHERE id = ?`, id)
	return err
}
