package service

import (
	"context"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
)

// Hooks are optional callbacks fired after a grant artifact has been
// persisted. Nil fields are skipped. Hooks run synchronously on the request
// path, so they should be cheap; anything slow belongs in a goroutine owned
// by the hook itself.
type Hooks struct {
	AuthorizationCodeIssued func(ctx context.Context, code domain.AuthorizationCode)
	AccessTokenIssued       func(ctx context.Context, token domain.AccessToken)
	RefreshTokenIssued      func(ctx context.Context, token domain.RefreshToken)
}

func (h Hooks) authorizationCodeIssued(ctx context.Context, code domain.AuthorizationCode) {
	if h.AuthorizationCodeIssued != nil {
		h.AuthorizationCodeIssued(ctx, code)
	}
}

func (h Hooks) accessTokenIssued(ctx context.Context, token domain.AccessToken) {
	if h.AccessTokenIssued != nil {
		h.AccessTokenIssued(ctx, token)
	}
}

func (h Hooks) refreshTokenIssued(ctx context.Context, token domain.RefreshToken) {
	if h.RefreshTokenIssued != nil {
		h.RefreshTokenIssued(ctx, token)
	}
}
