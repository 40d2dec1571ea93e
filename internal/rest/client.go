package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/messenjrali/msgr/internal/session"
	"go.uber.org/zap"
)

// ErrSessionExpired is returned when the refresh token is itself rejected.
// The cached credentials are cleared before it is returned; the caller's
// session is over until a fresh login.
var ErrSessionExpired = errors.New("session expired")

// ErrNotLoggedIn is returned for authenticated calls without cached credentials.
var ErrNotLoggedIn = errors.New("not logged in")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// refreshWindow is how close to expiry the access token may get before a
// proactive refresh is attempted.
const refreshWindow = 30 * time.Second

// Client is the JSON REST client for the MessenjrAli backend.
// Auth policy: bearer token on every call; a 401/403 triggers one token
// refresh followed by one retry of the original request. A failed refresh
// clears the cached credentials.
type Client struct {
	baseURL string
	http    *http.Client
	creds   *session.Store
	logger  *zap.Logger

	refreshMu sync.Mutex // single-flight refresh
}

// NewClient creates a REST client against the given base URL.
func NewClient(baseURL string, creds *session.Store, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		logger:  logger,
	}
}

// Login authenticates with email and password and persists the credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*session.User, error) {
	var resp tokenResponse
	if err := c.doUnauthed(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	user := session.User{
		ID:         resp.User.ID,
		GivenName:  resp.User.GivenName,
		FamilyName: resp.User.FamilyName,
		Email:      resp.User.Email,
		Status:     resp.User.Status,
		AvatarURL:  session.NormalizeAvatarURL(resp.User.AvatarURL),
		Role:       resp.User.Role,
	}
	if err := c.creds.Save(&session.Credentials{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         user,
	}); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	return &user, nil
}

// Logout invalidates the session server-side (best effort) and clears the
// cached credentials.
func (c *Client) Logout(ctx context.Context) error {
	if c.creds.AccessToken() != "" {
		if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			c.logger.Warn("server-side logout failed", zap.Error(err))
		}
	}
	return c.creds.Clear()
}

// do performs an authenticated JSON request with the refresh-retry policy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token := c.creds.AccessToken()
	if token == "" {
		return ErrNotLoggedIn
	}

	// Refresh proactively when the token is about to lapse; a failure here
	// is ignored, the reactive 401 path below is the backstop.
	if session.TokenExpiresWithin(token, refreshWindow) {
		if err := c.refresh(ctx, token); err != nil && !errors.Is(err, ErrSessionExpired) {
			c.logger.Warn("proactive token refresh failed", zap.Error(err))
		}
		token = c.creds.AccessToken()
		if token == "" {
			return ErrSessionExpired
		}
	}

	code, err := c.roundTrip(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if code != http.StatusUnauthorized && code != http.StatusForbidden {
		return nil
	}

	// Auth failure: refresh once, retry once.
	if err := c.refresh(ctx, token); err != nil {
		return err
	}
	token = c.creds.AccessToken()
	code, err = c.roundTrip(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return &StatusError{Code: code, Body: "still unauthorized after refresh"}
	}
	return nil
}

// doUnauthed performs a request without a bearer token (login, refresh).
// Here a 401/403 is a real failure, not a refresh trigger.
func (c *Client) doUnauthed(ctx context.Context, method, path string, body, out any) error {
	code, err := c.roundTrip(ctx, method, path, "", body, out)
	if err != nil {
		return err
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return &StatusError{Code: code, Body: "unauthorized"}
	}
	return nil
}

// roundTrip executes one HTTP exchange. 401/403 responses are reported via
// the returned status code so do can apply the refresh policy; every other
// non-2xx is returned as a StatusError.
func (c *Client) roundTrip(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// refresh exchanges the refresh token for a new token pair. staleToken is
// the access token the caller saw fail; if another goroutine already
// refreshed past it, the refresh is skipped. An invalid refresh token ends
// the local session.
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur := c.creds.Current()
	if cur == nil {
		return ErrNotLoggedIn
	}
	if cur.AccessToken != staleToken {
		// Someone else already refreshed.
		return nil
	}
	if cur.RefreshToken == "" {
		_ = c.creds.Clear()
		return ErrSessionExpired
	}

	var resp tokenResponse
	err := c.doUnauthed(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: cur.RefreshToken}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			c.logger.Warn("refresh token rejected, clearing session", zap.Int("code", se.Code))
			_ = c.creds.Clear()
			return ErrSessionExpired
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	cur.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		cur.RefreshToken = resp.RefreshToken
	}
	if err := c.creds.Save(cur); err != nil {
		return fmt.Errorf("persist refreshed credentials: %w", err)
	}
	c.logger.Info("access token refreshed")
	return nil
}
