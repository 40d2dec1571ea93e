package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// User is the cached local-user record. It mirrors whatever the backend
// last told us about ourselves and is patched on profile_updated events.
type User struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Role       string `json:"role,omitempty"` // "user" or "expert"
}

// DisplayName returns the user's given+family name, or the id as fallback.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.GivenName + " " + u.FamilyName)
	if name == "" {
		return u.ID
	}
	return name
}

// Credentials is the persisted auth state for a profile. The presence of a
// non-empty access token is the single source of truth for "session active".
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Store owns the credentials file for one profile. The auth flow is the
// only writer; everything else reads snapshots.
type Store struct {
	mu    sync.RWMutex
	path  string
	creds *Credentials
}

// NewStore creates a credentials store backed by the given file path.
// A missing file is not an error; the store starts unauthenticated.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Current returns a copy of the cached credentials, or nil when logged out.
func (s *Store) Current() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	c := *s.creds
	return &c
}

// AccessToken returns the cached access token, or "" when logged out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

// UserID returns the local user id, or "" when logged out.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.User.ID
}

// Save persists new credentials and updates the in-memory copy.
func (s *Store) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	c := *creds
	s.creds = &c
	return nil
}

// UpdateUser merges a patched user record into the cached credentials and
// persists the result. Empty fields in the patch leave existing values alone.
// Avatar URLs are normalized before storage.
func (s *Store) UpdateUser(patch User) error {
	cur := s.Current()
	if cur == nil {
		return errors.New("not logged in")
	}
	u := cur.User
	if patch.GivenName != "" {
		u.GivenName = patch.GivenName
	}
	if patch.FamilyName != "" {
		u.FamilyName = patch.FamilyName
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if patch.Status != "" {
		u.Status = patch.Status
	}
	if patch.Role != "" {
		u.Role = patch.Role
	}
	if patch.AvatarURL != "" {
		u.AvatarURL = NormalizeAvatarURL(patch.AvatarURL)
	}
	cur.User = u
	return s.Save(cur)
}

// Clear removes the credentials file and forgets the in-memory copy.
// Safe to call when already logged out.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Reload re-reads the credentials file. Used when another process rewrote
// it (observed via the file watcher).
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.reload()
	if errors.Is(err, os.ErrNotExist) {
		s.creds = nil
		return nil
	}
	return err
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("decode credentials: %w", err)
	}
	s.creds = &creds
	return nil
}

// NormalizeAvatarURL strips surrounding whitespace and rejects values that
// are not absolute http(s) URLs, returning "" for them. "" renders initials.
func NormalizeAvatarURL(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return ""
}
