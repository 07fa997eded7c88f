package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

type clientsRepo struct {
	db dbtx
}

const clientColumns = `id, name, secret_hash, redirect_uris, scopes, protected, created_at, updated_at`

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var (
		c            domain.Client
		secretHash   sql.NullString
		redirectURIs string
		scopes       string
	)
	err := scan(
		&c.ID, &c.Name, &secretHash, &redirectURIs, &scopes,
		&c.Protected, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	if secretHash.Valid {
		c.SecretHash = secretHash.String
	}
	c.RedirectURIs = splitFields(redirectURIs)
	c.Scopes = splitFields(scopes)
	return c, nil
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row.Scan)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	var secretHash sql.NullString
	if c.SecretHash != "" {
		secretHash = sql.NullString{String: c.SecretHash, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, secret_hash, redirect_uris, scopes, protected, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, secretHash,
		joinFields(c.RedirectURIs), joinFields(c.Scopes),
		c.Protected, c.CreatedAt, c.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *clientsRepo) UpdateClientScopes(ctx context.Context, clientID string, scopes []string) error {
	return r.exec(ctx,
		`UPDATE clients SET scopes = ?, updated_at = ? WHERE id = ?`,
		joinFields(scopes), time.Now().UTC(), clientID)
}

func (r *clientsRepo) UpdateClientRedirectURIs(ctx context.Context, clientID string, uris []string) error {
	return r.exec(ctx,
		`UPDATE clients SET redirect_uris = ?, updated_at = ? WHERE id = ?`,
		joinFields(uris), time.Now().UTC(), clientID)
}

func (r *clientsRepo) DeleteClient(ctx context.Context, clientID string) error {
	return r.exec(ctx,
		`DELETE FROM clients WHERE id = ? AND protected = 0`, clientID)
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *clientsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRows(res)
}
