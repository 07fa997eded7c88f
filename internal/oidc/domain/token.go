package domain

import "time"

// AccessToken is the stored record for an issued access token. The JWT
// itself is not stored; the record exists for revocation and housekeeping.
type AccessToken struct {
	ID        string // doubles as the JWT jti
	UserID    string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// RefreshToken is the stored record for an issued refresh token. Only a
// fingerprint of the opaque token is persisted.
type RefreshToken struct {
	ID            string
	AccessTokenID string
	UserID        string
	ClientID      string
	TokenHash     string // base64url SHA-256 fingerprint
	Scopes        []string
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	CreatedAt     time.Time
}

// TokenSet is what a successful grant produces: the signed access token,
// the opaque refresh token, and the identity token when the grant carries
// the openid scope.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresIn    time.Duration
	Scopes       []string
}
