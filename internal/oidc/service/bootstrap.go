package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/idx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

// BootstrapService seeds a fresh installation with the standard scopes,
// an admin user, and a first client. It refuses to run twice.
type BootstrapService struct {
	Store store.Store
	Token string // pre-configured bootstrap token
}

// IsBootstrapped reports whether the system already has users and clients.
func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	usersEmpty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	clientsEmpty, err := s.Store.Clients().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !usersEmpty && !clientsEmpty, nil
}

// Bootstrap creates the standard scope rows, the admin user, and the first
// client in one transaction. The generated client secret is returned once
// and never stored in the clear.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string, req oauthx.BootstrapRequest) (*oauthx.BootstrapResponse, error) {
	l := slogx.FromContext(ctx)

	if bootstrapped, _ := s.IsBootstrapped(ctx); bootstrapped {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return nil, ErrBootstrapAlready
	}
	if s.Token == "" || token != s.Token {
		l.Warn("unauthorized bootstrap attempt")
		return nil, ErrInvalidCredentials
	}

	passHash, err := cryptox.HashSecret(req.AdminPassword)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return nil, err
	}

	var clientSecret, clientSecretHash string
	if req.ClientConfidential {
		clientSecret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}
		clientSecretHash, err = cryptox.HashSecret(clientSecret)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	adminUserID := idx.New()
	clientID := idx.New()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, set := range claims.StandardSets() {
			err := tx.Scopes().CreateScope(ctx, domain.Scope{
				Name:        set.Scope,
				Description: "OpenID Connect standard scope",
				CreatedAt:   now,
			})
			if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return err
			}
		}
		for _, name := range req.ClientScopes {
			err := tx.Scopes().CreateScope(ctx, domain.Scope{Name: name, CreatedAt: now})
			if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
				return err
			}
		}

		err := tx.Users().CreateUser(ctx, domain.User{
			ID:           adminUserID,
			Username:     req.AdminUsername,
			PasswordHash: passHash,
			Claims: map[string]any{
				"sub":                adminUserID,
				"preferred_username": req.AdminUsername,
				"email":              req.AdminEmail,
				"email_verified":     true,
				"updated_at":         now.Unix(),
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			l.Error("failed to create admin user", slog.Any("error", err))
			return err
		}

		err = tx.Clients().CreateClient(ctx, domain.Client{
			ID:           clientID,
			Name:         req.ClientName,
			SecretHash:   clientSecretHash,
			RedirectURIs: req.ClientRedirectURIs,
			Scopes:       req.ClientScopes,
			Protected:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			l.Error("failed to create client", slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("system bootstrapped",
		slog.String("admin_user_id", adminUserID),
		slog.String("client_id", clientID),
	)
	return &oauthx.BootstrapResponse{
		AdminUserID:  adminUserID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}
