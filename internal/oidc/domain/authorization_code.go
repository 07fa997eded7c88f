package domain

import "time"

// CodePayload is the full state of an authorization grant, carried inside
// the encrypted authorization code itself. The server never needs to look
// the grant parameters up by code string; it decrypts them.
type CodePayload struct {
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	AuthCodeID          string   `json:"auth_code_id"`
	Scopes              []string `json:"scopes"`
	UserID              string   `json:"user_id"`
	ExpireTime          int64    `json:"expire_time"` // unix seconds
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
	Nonce               string   `json:"nonce,omitempty"`
}

// Expired reports whether the payload's expiry has passed.
func (p *CodePayload) Expired(now time.Time) bool {
	return now.Unix() > p.ExpireTime
}

// AuthorizationCode is the stored record for an issued code. Only the id
// and revocation state live in the database; everything else travels in
// the encrypted payload. RevokedAt doubles as the single-use marker.
type AuthorizationCode struct {
	ID        string
	UserID    string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
