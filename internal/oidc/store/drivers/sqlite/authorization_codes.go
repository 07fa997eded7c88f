package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

type authorizationCodesRepo struct {
	db dbtx
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (id, user_id, client_id, scopes, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.UserID, code.ClientID, joinFields(code.Scopes),
		code.ExpiresAt, mapOptionalTime(code.RevokedAt), code.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByID(ctx context.Context, id string) (domain.AuthorizationCode, error) {
	var (
		code      domain.AuthorizationCode
		scopes    string
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, scopes, expires_at, revoked_at, created_at
		FROM authorization_codes WHERE id = ?`, id).
		Scan(&code.ID, &code.UserID, &code.ClientID, &scopes,
			&code.ExpiresAt, &revokedAt, &code.CreatedAt)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}

	code.Scopes = splitFields(scopes)
	code.RevokedAt = mapNullTime(revokedAt)
	return code, nil
}

// RevokeAuthorizationCode flips revoked_at for a live code. The WHERE
// clause is the single-use guarantee: with concurrent redemptions only
// one UPDATE matches, so the losers observe ErrNotFound.
func (r *authorizationCodesRepo) RevokeAuthorizationCode(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorization_codes SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at < ?`, time.Now().UTC())
	return err
}
