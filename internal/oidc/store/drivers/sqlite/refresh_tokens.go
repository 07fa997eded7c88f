package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, access_token_id, user_id, client_id, token_hash, scopes, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccessTokenID, t.UserID, t.ClientID, t.TokenHash,
		joinFields(t.Scopes), t.ExpiresAt, mapOptionalTime(t.RevokedAt), t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		scopes    string
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, access_token_id, user_id, client_id, token_hash, scopes, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = ?`, hash).
		Scan(&t.ID, &t.AccessTokenID, &t.UserID, &t.ClientID, &t.TokenHash,
			&scopes, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.Scopes = splitFields(scopes)
	t.RevokedAt = mapNullTime(revokedAt)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL`,
		time.Now().UTC(), hash)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *refreshTokensRepo) RevokeAllUserClientRefreshTokens(ctx context.Context, userID, clientID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ?
		WHERE user_id = ? AND client_id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), userID, clientID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
