package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry extracts the expiry claim from an access token without
// verifying its signature (the client holds no signing key; the backend
// is the verifier). Returns an error for malformed tokens or tokens
// without an exp claim.
func TokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// TokenExpiresWithin reports whether the token expires inside the given
// window. Malformed tokens report true so the caller refreshes eagerly.
func TokenExpiresWithin(token string, window time.Duration) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return time.Until(exp) < window
}
