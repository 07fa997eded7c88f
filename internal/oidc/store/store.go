package store

import (
	"context"
	"errors"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it
// and expose sub-repositories per entity.
type Store interface {
	Users() Users
	Clients() Clients
	Scopes() Scopes
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST Commit or Rollback the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction. fn returning an error rolls
	// the transaction back; nil commits it.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during interactive login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateClaims replaces the user's claim document and bumps updated_at.
	UpdateClaims(ctx context.Context, userID string, claims map[string]any) error

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateTOTPSecret sets the TOTP secret without enabling it yet.
	UpdateTOTPSecret(ctx context.Context, userID, secret string) error

	// EnableTOTP marks TOTP as required for login.
	EnableTOTP(ctx context.Context, userID string) error

	// DisableTOTP clears the secret and enabled timestamp.
	DisableTOTP(ctx context.Context, userID string) error

	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client. secret_hash is empty for public
	// clients.
	CreateClient(ctx context.Context, c domain.Client) error

	UpdateClientScopes(ctx context.Context, clientID string, scopes []string) error
	UpdateClientRedirectURIs(ctx context.Context, clientID string, uris []string) error

	DeleteClient(ctx context.Context, clientID string) error

	// IsEmpty returns true if there are no clients.
	IsEmpty(ctx context.Context) (bool, error)
}

type Scopes interface {
	CreateScope(ctx context.Context, s domain.Scope) error
	GetScopeByName(ctx context.Context, name string) (domain.Scope, error)
	ListScopes(ctx context.Context) ([]domain.Scope, error)
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores the record for a freshly minted code.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	GetAuthorizationCodeByID(ctx context.Context, id string) (domain.AuthorizationCode, error)

	// RevokeAuthorizationCode marks a code as consumed. The update only
	// matches codes that are not yet revoked, so exactly one caller can
	// win a concurrent redemption; everyone else gets ErrNotFound.
	RevokeAuthorizationCode(ctx context.Context, id string) error

	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}

type AccessTokens interface {
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error)

	RevokeAccessToken(ctx context.Context, id string) error

	DeleteExpiredAccessTokens(ctx context.Context) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record by the fingerprint of the
	// opaque token.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken marks a token revoked by its fingerprint. Like
	// authorization codes, the update only matches live tokens.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserClientRefreshTokens bulk-revokes a user+client pair,
	// e.g. after refresh token replay.
	RevokeAllUserClientRefreshTokens(ctx context.Context, userID, clientID string) error

	DeleteExpiredRefreshTokens(ctx context.Context) error
}
