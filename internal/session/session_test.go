package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"main", false},
		{"work-2", false},
		{"my_profile", false},
		{"", true},
		{"Has Upper", true},
		{"with space", true},
		{"dot.dot", true},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestPathsUnderProfileDir(t *testing.T) {
	dir := Dir("main")
	for _, p := range []string{
		SocketPath("main"),
		LockPath("main"),
		CacheDBPath("main"),
		CredentialsPath("main"),
		LogPath("main"),
	} {
		if !strings.HasPrefix(p, dir+string(filepath.Separator)) {
			t.Errorf("path %q not under profile dir %q", p, dir)
		}
	}
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := testStore(t)

	if s.Current() != nil {
		t.Fatal("fresh store should be logged out")
	}
	if s.AccessToken() != "" {
		t.Fatal("fresh store should have no token")
	}

	creds := &Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		User:         User{ID: "u1", GivenName: "Ada", FamilyName: "Lovelace"},
	}
	if err := s.Save(creds); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := s.Current()
	if got == nil || got.AccessToken != "at-1" || got.User.ID != "u1" {
		t.Fatalf("Current() = %+v", got)
	}
	if got.User.DisplayName() != "Ada Lovelace" {
		t.Errorf("DisplayName() = %q", got.User.DisplayName())
	}

	// A second store over the same file sees the persisted state.
	s2, err := NewStore(s.path)
	if err != nil {
		t.Fatal(err)
	}
	if s2.UserID() != "u1" {
		t.Errorf("reloaded UserID = %q, want u1", s2.UserID())
	}
}

func TestCredentialsClear(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Credentials{AccessToken: "at", User: User{ID: "u1"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Current() != nil {
		t.Error("Current() should be nil after Clear")
	}
	if _, err := os.Stat(s.path); !os.IsNotExist(err) {
		t.Error("credentials file should be removed")
	}
	// Clearing twice is fine.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestUpdateUserMergesFields(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Credentials{
		AccessToken: "at",
		User:        User{ID: "u1", GivenName: "Ada", Status: "here"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateUser(User{FamilyName: "Lovelace", AvatarURL: " https://cdn.example/a.png "}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	u := s.Current().User
	if u.GivenName != "Ada" || u.FamilyName != "Lovelace" || u.Status != "here" {
		t.Errorf("merged user = %+v", u)
	}
	if u.AvatarURL != "https://cdn.example/a.png" {
		t.Errorf("AvatarURL = %q, want normalized", u.AvatarURL)
	}
}

func TestNormalizeAvatarURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example/a.png", "https://cdn.example/a.png"},
		{"  http://cdn.example/a.png ", "http://cdn.example/a.png"},
		{"a.png", ""},
		{"file:///etc/passwd", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAvatarURL(tt.in); got != tt.want {
			t.Errorf("NormalizeAvatarURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, err := TokenExpiry(signedToken(t, exp))
	if err != nil {
		t.Fatalf("TokenExpiry() error = %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}

	if _, err := TokenExpiry("not-a-jwt"); err == nil {
		t.Error("TokenExpiry() expected error for garbage token")
	}
}

func TestTokenExpiresWithin(t *testing.T) {
	soon := signedToken(t, time.Now().Add(30*time.Second))
	later := signedToken(t, time.Now().Add(time.Hour))

	if !TokenExpiresWithin(soon, time.Minute) {
		t.Error("token expiring in 30s should be within 1m window")
	}
	if TokenExpiresWithin(later, time.Minute) {
		t.Error("token expiring in 1h should not be within 1m window")
	}
	if !TokenExpiresWithin("garbage", time.Minute) {
		t.Error("malformed token should report expiring")
	}
}
