package sqlite

import (
	"context"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

type scopesRepo struct {
	db dbtx
}

func (r *scopesRepo) CreateScope(ctx context.Context, s domain.Scope) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scopes (name, description, created_at) VALUES (?, ?, ?)`,
		s.Name, s.Description, s.CreatedAt)
	return mapConstraint(err)
}

func (r *scopesRepo) GetScopeByName(ctx context.Context, name string) (domain.Scope, error) {
	var s domain.Scope
	err := r.db.QueryRowContext(ctx,
		`SELECT name, description, created_at FROM scopes WHERE name = ?`, name).
		Scan(&s.Name, &s.Description, &s.CreatedAt)
	if err != nil {
		return domain.Scope{}, mapNotFound(err)
	}
	return s, nil
}

func (r *scopesRepo) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, description, created_at FROM scopes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []domain.Scope
	for rows.Next() {
		var s domain.Scope
		if err := rows.Scan(&s.Name, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}
