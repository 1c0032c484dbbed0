// Package tokeninfo describes a bearer token for display.
//
// Tokens are opaque to the client and nothing here gates a request: the
// server's 401 is the only expiry signal. When a token happens to be a JWT,
// `stockbook auth status` shows its subject and expiry as a hint.
package tokeninfo

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info is what could be read from a token without verifying it.
type Info struct {
	// JWT is false for tokens that are not JSON Web Tokens.
	JWT       bool
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Algorithm string
}

// Inspect decodes token claims without checking the signature. A token that
// is not a JWT yields Info{JWT: false} and no error.
func Inspect(token string) Info {
	claims := &jwt.RegisteredClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return Info{}
	}

	info := Info{
		JWT:     true,
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if alg, ok := parsed.Header["alg"].(string); ok {
		info.Algorithm = alg
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

// Expired reports whether the expiry claim is in the past at now. Tokens
// without an expiry never report expired.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// ExpiryHint renders the expiry relative to now, e.g. "in 2h0m0s".
func (i Info) ExpiryHint(now time.Time) string {
	switch {
	case !i.JWT:
		return "opaque token"
	case i.ExpiresAt.IsZero():
		return "no expiry claim"
	case i.Expired(now):
		return fmt.Sprintf("expired %s ago (server decides)", now.Sub(i.ExpiresAt).Round(time.Second))
	default:
		return fmt.Sprintf("in %s", i.ExpiresAt.Sub(now).Round(time.Second))
	}
}

// Mask shortens a token for display, keeping a few leading and trailing
// characters.
func Mask(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:6] + "…" + token[len(token)-4:]
}
