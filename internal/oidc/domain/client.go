package domain

import (
	"slices"
	"time"
)

// Client is a registered OAuth2 client.
type Client struct {
	ID           string
	Name         string
	SecretHash   string // argon2 encoded; empty for public clients
	RedirectURIs []string
	Scopes       []string // scopes the client may request
	Protected    bool     // bootstrap client cannot be deleted
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Confidential reports whether the client authenticates with a secret.
// Public clients (no secret) must use PKCE instead.
func (c *Client) Confidential() bool {
	return c.SecretHash != ""
}

// HasRedirectURI reports whether uri is registered for this client. The
// comparison is an exact string match, no pattern matching.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AllowsScopes reports whether every requested scope is registered for
// this client.
func (c *Client) AllowsScopes(requested []string) bool {
	for _, s := range requested {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}
