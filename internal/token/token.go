package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryThreshold is the remaining lifetime below which a token is
// considered close enough to expiry to be worth renewing.
const DefaultExpiryThreshold = 60 * time.Second

// Claims is the decoded payload of an access or refresh token.
//
// Only the payload segment is read. Signature verification is the API
// server's job; the console uses claims purely for diagnostics such as
// expiry checks.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time

	// Extra holds claims the console has no fixed field for, keeping
	// forward compatibility with whatever the server adds to tokens.
	Extra map[string]any
}

// Decode parses the claims of a JWT without verifying its signature.
// It returns nil for any malformed input, including the empty string.
func Decode(raw string) *Claims {
	if raw == "" {
		return nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mapClaims); err != nil {
		return nil
	}

	claims := &Claims{}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	for name, value := range mapClaims {
		switch name {
		case "sub", "email", "exp", "iat":
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[name] = value
	}

	return claims
}

// Expired reports whether the token expiry has passed. A nil claim set, or
// one with no expiry at all, counts as expired.
func (c *Claims) Expired() bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return c.ExpiresAt.Before(time.Now())
}

// ExpiresWithin reports whether the token's remaining lifetime is shorter
// than threshold. A nil claim set, or one with no expiry, always reports
// true.
func (c *Claims) ExpiresWithin(threshold time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return true
	}
	return time.Until(c.ExpiresAt) < threshold
}
