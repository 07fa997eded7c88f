package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/codec"
	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/idx"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

// ScopeOpenID gates identity token issuance.
const ScopeOpenID = "openid"

// TokenService redeems authorization codes and refresh tokens for token
// sets on the back channel.
type TokenService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager
	Codec      *codec.Codec
	PKCE       *pkce.Registry
	IDTokens   *IdentityTokenBuilder
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Hooks      Hooks
}

// ExchangeAuthorizationCode implements the authorization_code grant.
//
// The code is decrypted and validated (client binding, redirect binding,
// expiry, single use, PKCE), then revoked before any token is persisted.
// Revocation up front means a failure later in the exchange loses the
// tokens but can never leave the code replayable.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret string,
	code, redirectURI, codeVerifier string,
) (*domain.TokenSet, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}

	payload, err := s.Codec.Decode(code)
	if err != nil {
		if errors.Is(err, codec.ErrInvalidCode) {
			l.Warn("authorization code failed to decode", slog.String("client_id", client.ID))
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if payload.AuthCodeID == "" || payload.ClientID == "" || payload.UserID == "" {
		return nil, ErrInvalidGrant
	}

	if payload.ClientID != client.ID {
		l.Warn("authorization code presented by wrong client",
			slog.String("client_id", client.ID),
			slog.String("issued_to", payload.ClientID),
		)
		return nil, ErrInvalidGrant
	}
	if payload.Expired(now) {
		return nil, ErrExpiredCode
	}
	if payload.RedirectURI != "" && payload.RedirectURI != redirectURI {
		return nil, fmt.Errorf("%w: invalid redirect uri", ErrInvalidRequest)
	}

	record, err := s.Store.AuthorizationCodes().GetAuthorizationCodeByID(ctx, payload.AuthCodeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if record.RevokedAt != nil {
		l.Warn("authorization code replayed",
			slog.String("auth_code_id", record.ID),
			slog.String("client_id", client.ID),
		)
		return nil, ErrInvalidGrant
	}

	if payload.CodeChallenge != "" {
		if codeVerifier == "" {
			return nil, fmt.Errorf("%w: code_verifier is required", ErrInvalidRequest)
		}
		if err := s.PKCE.Verify(payload.CodeChallengeMethod, codeVerifier, payload.CodeChallenge); err != nil {
			l.Warn("pkce verification failed",
				slog.String("auth_code_id", record.ID),
				slog.Any("error", err),
			)
			return nil, ErrInvalidGrant
		}
	}

	scopes, err := s.finalizeScopes(ctx, client, payload.Scopes)
	if err != nil {
		return nil, err
	}

	// Revoke before issuing anything. The conditional update also settles
	// concurrent redemptions: only one caller gets past this point.
	if err := s.Store.AuthorizationCodes().RevokeAuthorizationCode(ctx, record.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}

	set, err := s.issueTokens(ctx, user, client.ID, scopes, payload.Nonce, now)
	if err != nil {
		return nil, err
	}

	l.Info("authorization code exchanged",
		slog.String("auth_code_id", record.ID),
		slog.String("client_id", client.ID),
		slog.String("user_id", user.ID),
	)
	return set, nil
}

// ExchangeRefreshToken implements the refresh_token grant with rotation.
// Presenting an already-rotated token is treated as theft: every live
// refresh token for that user+client pair is revoked.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	clientID, clientSecret string,
	refreshOpaque string,
	requestedScopes []string,
) (*domain.TokenSet, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	if refreshOpaque == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if rt.RevokedAt != nil {
		l.Warn("rotated refresh token replayed",
			slog.String("user_id", rt.UserID),
			slog.String("client_id", rt.ClientID),
		)
		if err := s.Store.RefreshTokens().RevokeAllUserClientRefreshTokens(ctx, rt.UserID, rt.ClientID); err != nil {
			l.Error("failed to revoke refresh token family", slog.Any("error", err))
		}
		return nil, ErrInvalidGrant
	}
	if now.After(rt.ExpiresAt) {
		return nil, ErrInvalidGrant
	}
	if rt.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}

	// Scopes may narrow but never widen.
	scopes := rt.Scopes
	if len(requestedScopes) > 0 {
		for _, scope := range requestedScopes {
			if !slices.Contains(rt.Scopes, scope) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
			}
		}
		scopes = requestedScopes
	}

	// Rotate before issuing, same fail-closed ordering as codes.
	if err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if err := s.Store.AccessTokens().RevokeAccessToken(ctx, rt.AccessTokenID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}

	// No nonce on refresh: the replay binding belongs to the original
	// authentication transaction only.
	set, err := s.issueTokens(ctx, user, client.ID, scopes, "", now)
	if err != nil {
		return nil, err
	}

	l.Info("refresh token rotated",
		slog.String("client_id", client.ID),
		slog.String("user_id", user.ID),
	)
	return set, nil
}

// issueTokens signs an access token, persists its record together with a
// fresh refresh token, and attaches an identity token when openid was
// granted.
func (s *TokenService) issueTokens(
	ctx context.Context,
	user domain.User,
	clientID string,
	scopes []string,
	nonce string,
	now time.Time,
) (*domain.TokenSet, error) {
	l := slogx.FromContext(ctx)

	accessTTL := s.AccessTTL
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	refreshTTL := s.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = jwtx.DefaultRefreshTokenTTL
	}

	access := domain.AccessToken{
		ID:        idx.New(),
		UserID:    user.ID,
		ClientID:  clientID,
		Scopes:    scopes,
		ExpiresAt: now.Add(accessTTL),
		CreatedAt: now,
	}

	accessClaims := jwtx.NewAccessClaims(user.ID, clientID, scopes, nil, accessTTL, s.Issuer, []string{clientID}, now)
	accessClaims.ID = access.ID

	accessToken, err := s.KeyManager.GetSigner().Sign(&accessClaims)
	if err != nil {
		l.Error("failed to sign access token", slog.Any("error", err))
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	refresh := domain.RefreshToken{
		ID:            idx.New(),
		AccessTokenID: access.ID,
		UserID:        user.ID,
		ClientID:      clientID,
		TokenHash:     cryptox.FingerprintToken(refreshOpaque),
		Scopes:        scopes,
		ExpiresAt:     now.Add(refreshTTL),
		CreatedAt:     now,
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AccessTokens().CreateAccessToken(ctx, access); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, refresh)
	}); err != nil {
		l.Error("failed to persist token records", slog.Any("error", err))
		return nil, err
	}

	set := &domain.TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTL,
		Scopes:       scopes,
	}

	if slices.Contains(scopes, ScopeOpenID) {
		idToken, err := s.IDTokens.Build(user, clientID, scopes, nonce, accessToken, access.ExpiresAt)
		if err != nil {
			l.Error("failed to build identity token",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
			return nil, err
		}
		set.IDToken = idToken
	}

	s.Hooks.accessTokenIssued(ctx, access)
	s.Hooks.refreshTokenIssued(ctx, refresh)

	return set, nil
}

// finalizeScopes re-resolves the granted scopes at redemption time. A
// scope removed from the registry, or no longer registered for the client,
// since the code was issued is dropped; the grant may narrow here but
// never widen. An exchange whose scopes all vanished fails.
func (s *TokenService) finalizeScopes(ctx context.Context, client domain.Client, granted []string) ([]string, error) {
	finalized := make([]string, 0, len(granted))
	for _, name := range granted {
		if _, err := s.Store.Scopes().GetScopeByName(ctx, name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !client.AllowsScopes([]string{name}) {
			continue
		}
		finalized = append(finalized, name)
	}
	if len(finalized) == 0 {
		return nil, fmt.Errorf("%w: no valid scopes remain", ErrInvalidScope)
	}
	return finalized, nil
}

// authenticateClient resolves the client and, for confidential clients,
// checks the presented secret.
func (s *TokenService) authenticateClient(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	l := slogx.FromContext(ctx)

	if clientID == "" {
		return domain.Client{}, ErrInvalidClient
	}

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}

	if client.Confidential() {
		if err := cryptox.VerifySecret(clientSecret, client.SecretHash); err != nil {
			l.Warn("client authentication failed", slog.String("client_id", clientID))
			return domain.Client{}, ErrInvalidClient
		}
	}

	return client, nil
}
