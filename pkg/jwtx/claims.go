package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Services override these through config.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims are the claims carried by access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims

	// ClientID identifies the client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// Scopes granted to this token, e.g. ["openid", "profile"].
	Scopes []string `json:"scopes,omitempty"`

	// AMR is the Authentication Methods Reference, e.g. ["pwd","otp"].
	AMR []string `json:"amr,omitempty"`
}

// NewAccessClaims builds minimally-correct access-token claims.
func NewAccessClaims(
	subject, clientID string,
	scopes, amr []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) AccessClaims {
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		ClientID: clientID,
		Scopes:   scopes,
		AMR:      amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches the expected value.
func (c *AccessClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *AccessClaims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token is inside its exp/nbf window.
func (c *AccessClaims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// HasScope reports whether the token carries the given scope.
func (c *AccessClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}
