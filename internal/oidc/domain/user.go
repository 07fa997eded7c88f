package domain

import "time"

// User is a resource owner. Claims holds the user's identity claims
// (name, email, address, ...) keyed by standard claim name; the claims
// engine intersects it with the scopes granted to a request.
type User struct {
	ID           string
	Username     string
	PasswordHash string     // argon2 encoded
	TOTPSecret   *string    // base32 encoded, nullable
	TOTPEnabled  *time.Time // when TOTP was enabled, nullable
	Claims       map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MFARequired reports whether login must include a TOTP code.
func (u *User) MFARequired() bool {
	return u.TOTPEnabled != nil && u.TOTPSecret != nil
}
