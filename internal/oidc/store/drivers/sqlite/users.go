package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, password_hash, totp_secret, totp_enabled, claims, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u           domain.User
		totpSecret  sql.NullString
		totpEnabled sql.NullTime
		claimsRaw   string
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash,
		&totpSecret, &totpEnabled, &claimsRaw,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.TOTPSecret = mapNullString(totpSecret)
	u.TOTPEnabled = mapNullTime(totpEnabled)
	u.Claims, err = unmarshalClaims(claimsRaw)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	claimsRaw, err := marshalClaims(u.Claims)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, totp_secret, totp_enabled, claims, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash,
		mapOptionalString(u.TOTPSecret), mapOptionalTime(u.TOTPEnabled),
		claimsRaw, u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateClaims(ctx context.Context, userID string, claims map[string]any) error {
	claimsRaw, err := marshalClaims(claims)
	if err != nil {
		return err
	}
	return r.exec(ctx,
		`UPDATE users SET claims = ?, updated_at = ? WHERE id = ?`,
		claimsRaw, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdateTOTPSecret(ctx context.Context, userID, secret string) error {
	return r.exec(ctx,
		`UPDATE users SET totp_secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), userID)
}

func (r *usersRepo) EnableTOTP(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return r.exec(ctx,
		`UPDATE users SET totp_enabled = ?, updated_at = ? WHERE id = ? AND totp_secret IS NOT NULL`,
		now, now, userID)
}

func (r *usersRepo) DisableTOTP(ctx context.Context, userID string) error {
	return r.exec(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRows(res)
}
