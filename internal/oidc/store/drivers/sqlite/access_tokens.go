package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

type accessTokensRepo struct {
	db dbtx
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, user_id, client_id, scopes, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ClientID, joinFields(t.Scopes),
		t.ExpiresAt, mapOptionalTime(t.RevokedAt), t.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *accessTokensRepo) GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error) {
	var (
		t         domain.AccessToken
		scopes    string
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, scopes, expires_at, revoked_at, created_at
		FROM access_tokens WHERE id = ?`, id).
		Scan(&t.ID, &t.UserID, &t.ClientID, &scopes,
			&t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}

	t.Scopes = splitFields(scopes)
	t.RevokedAt = mapNullTime(revokedAt)
	return t, nil
}

func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
