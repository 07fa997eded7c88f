package service

import (
	"context"
	"errors"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

// UserinfoService serves the OIDC userinfo endpoint: the caller's claims
// filtered down to what the access token's scopes allow.
type UserinfoService struct {
	Store     store.Store
	Extractor *claims.Extractor
}

// Userinfo returns the claims for userID visible through scopes. The sub
// claim is always present and always the user id.
func (s *UserinfoService) Userinfo(ctx context.Context, userID string, scopes []string) (oauthx.UserinfoResponse, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	resp := oauthx.UserinfoResponse(s.Extractor.Extract(scopes, user.Claims))
	resp["sub"] = user.ID
	return resp, nil
}
