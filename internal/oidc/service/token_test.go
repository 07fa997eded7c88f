package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/internal/oidc/store/drivers/sqlite"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/idx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

type tokenFixture struct {
	store     *sqlite.Store
	authorize *AuthorizeService
	tokens    *TokenService
	client    domain.Client
	user      domain.User
}

func newTokenFixture(t *testing.T, clientSecretHash string) *tokenFixture {
	t.Helper()

	st := newTestStore(t)
	km := newTestKeyManager(t)
	cdc := newTestCodec(t)
	registry := pkce.NewRegistry()

	seedScopes(t, st, "openid", "profile", "email")
	client := seedClient(t, st, clientSecretHash,
		[]string{"https://app.example/cb"},
		[]string{"openid", "profile", "email"},
	)
	user := seedUser(t, st, "alice", "hunter2-correct-horse")

	return &tokenFixture{
		store: st,
		authorize: &AuthorizeService{
			Store:   st,
			Codec:   cdc,
			PKCE:    registry,
			CodeTTL: 5 * time.Minute,
		},
		tokens: &TokenService{
			Store:      st,
			KeyManager: km,
			Codec:      cdc,
			PKCE:       registry,
			IDTokens:   newTestIDTokenBuilder(t, km),
			Issuer:     testIssuer,
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
		client: client,
		user:   user,
	}
}

// issueCode runs the front channel and returns the encoded code.
func (f *tokenFixture) issueCode(t *testing.T, scopes []string, nonce, challenge, method string) string {
	t.Helper()

	result, err := f.authorize.CompleteAuthorizationRequest(context.Background(), &AuthorizationRequest{
		Client:              f.client,
		RedirectURI:         "https://app.example/cb",
		Scopes:              scopes,
		Nonce:               nonce,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		UserID:              f.user.ID,
		Approved:            true,
	})
	require.NoError(t, err)
	return result.Code
}

func parseUnverified(t *testing.T, token string) jwt.MapClaims {
	t.Helper()

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	return claims
}

func TestExchangeAuthorizationCode(t *testing.T) {
	ctx := context.Background()

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := oauthx.CodeChallengeFromVerifier(verifier)

	t.Run("full exchange with identity token", func(t *testing.T) {
		f := newTokenFixture(t, "")
		code := f.issueCode(t, []string{"openid", "profile"}, "abc123", challenge, "S256")

		set, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", verifier)
		require.NoError(t, err)
		require.NotEmpty(t, set.AccessToken)
		require.NotEmpty(t, set.RefreshToken)
		require.NotEmpty(t, set.IDToken)
		require.Equal(t, "Bearer", set.TokenType)
		require.Equal(t, []string{"openid", "profile"}, set.Scopes)

		// The access token verifies against the issuing key set.
		access, err := f.tokens.KeyManager.Verifier.Verify(set.AccessToken)
		require.NoError(t, err)
		require.Equal(t, f.user.ID, access.Subject)
		require.Equal(t, f.client.ID, access.ClientID)
		require.True(t, access.HasScope("openid"))

		idClaims := parseUnverified(t, set.IDToken)
		require.Equal(t, testIssuer, idClaims["iss"])
		require.Equal(t, f.client.ID, idClaims["aud"])
		require.Equal(t, f.user.ID, idClaims["sub"])
		require.Equal(t, "abc123", idClaims["nonce"])
		require.Equal(t, AccessTokenHash(set.AccessToken), idClaims["at_hash"])
		require.Equal(t, "Alice Example", idClaims["name"])
		require.NotContains(t, idClaims, "email")
		require.NotContains(t, idClaims, "phone_number")
	})

	t.Run("no identity token without openid", func(t *testing.T) {
		f := newTokenFixture(t, "")
		code := f.issueCode(t, []string{"profile"}, "", challenge, "S256")

		set, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", verifier)
		require.NoError(t, err)
		require.Empty(t, set.IDToken)
	})

	t.Run("codes are single use", func(t *testing.T) {
		f := newTokenFixture(t, "")
		code := f.issueCode(t, []string{"openid"}, "", challenge, "S256")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", verifier)
		require.NoError(t, err)

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("rejects garbage codes", func(t *testing.T) {
		f := newTokenFixture(t, "")
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", "not-a-code", "https://app.example/cb", verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("rejects a missing code", func(t *testing.T) {
		f := newTokenFixture(t, "")
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", "", "https://app.example/cb", verifier)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("rejects codes issued to another client", func(t *testing.T) {
		f := newTokenFixture(t, "")
		other := seedClient(t, f.store, "", []string{"https://other.example/cb"}, []string{"openid"})
		code := f.issueCode(t, []string{"openid"}, "", challenge, "S256")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, other.ID, "", code, "https://app.example/cb", verifier)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("rejects expired codes", func(t *testing.T) {
		f := newTokenFixture(t, "")

		recordID := idx.New()
		code, err := f.tokens.Codec.Encode(domain.CodePayload{
			ClientID:    f.client.ID,
			RedirectURI: "https://app.example/cb",
			AuthCodeID:  recordID,
			Scopes:      []string{"openid"},
			UserID:      f.user.ID,
			ExpireTime:  time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)
		require.NoError(t, f.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
			ID:        recordID,
			UserID:    f.user.ID,
			ClientID:  f.client.ID,
			Scopes:    []string{"openid"},
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}))

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", "")
		require.ErrorIs(t, err, ErrExpiredCode)
	})

	t.Run("drops scopes retired since the code was issued", func(t *testing.T) {
		f := newTokenFixture(t, "")

		recordID := idx.New()
		granted := []string{"openid", "payments"}
		code, err := f.tokens.Codec.Encode(domain.CodePayload{
			ClientID:    f.client.ID,
			RedirectURI: "https://app.example/cb",
			AuthCodeID:  recordID,
			Scopes:      granted,
			UserID:      f.user.ID,
			ExpireTime:  time.Now().Add(time.Minute).Unix(),
		})
		require.NoError(t, err)
		require.NoError(t, f.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
			ID:        recordID,
			UserID:    f.user.ID,
			ClientID:  f.client.ID,
			Scopes:    granted,
			ExpiresAt: time.Now().Add(time.Minute),
			CreatedAt: time.Now(),
		}))

		set, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", "")
		require.NoError(t, err)
		require.Equal(t, []string{"openid"}, set.Scopes)
	})

	t.Run("fails when no granted scope survives finalization", func(t *testing.T) {
		f := newTokenFixture(t, "")

		recordID := idx.New()
		granted := []string{"payments", "ledger"}
		code, err := f.tokens.Codec.Encode(domain.CodePayload{
			ClientID:    f.client.ID,
			RedirectURI: "https://app.example/cb",
			AuthCodeID:  recordID,
			Scopes:      granted,
			UserID:      f.user.ID,
			ExpireTime:  time.Now().Add(time.Minute).Unix(),
		})
		require.NoError(t, err)
		require.NoError(t, f.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
			ID:        recordID,
			UserID:    f.user.ID,
			ClientID:  f.client.ID,
			Scopes:    granted,
			ExpiresAt: time.Now().Add(time.Minute),
			CreatedAt: time.Now(),
		}))

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", "")
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("rejects a redirect uri mismatch", func(t *testing.T) {
		f := newTokenFixture(t, "")
		code := f.issueCode(t, []string{"openid"}, "", challenge, "S256")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://evil.example/cb", verifier)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("requires the verifier when a challenge was bound", func(t *testing.T) {
		f := newTokenFixture(t, "")
		code := f.issueCode(t, []string{"openid"}, "", challenge, "S256")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", "")
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("rejects a wrong verifier", func(t *testing.T) {
		f := newTokenFixture(t, "")
		code := f.issueCode(t, []string{"openid"}, "", challenge, "S256")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb",
			"wrong-verifier-wrong-verifier-wrong-verifier-wrong")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("authenticates confidential clients", func(t *testing.T) {
		secret := "client-secret-value"
		hash, err := cryptox.HashSecret(secret)
		require.NoError(t, err)

		f := newTokenFixture(t, hash)
		code := f.issueCode(t, []string{"openid"}, "", "", "")

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "wrong", code, "https://app.example/cb", "")
		require.ErrorIs(t, err, ErrInvalidClient)

		set, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, secret, code, "https://app.example/cb", "")
		require.NoError(t, err)
		require.NotEmpty(t, set.AccessToken)
	})
}

func TestExchangeRefreshToken(t *testing.T) {
	ctx := context.Background()

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := oauthx.CodeChallengeFromVerifier(verifier)

	exchange := func(t *testing.T, f *tokenFixture, scopes []string) *domain.TokenSet {
		code := f.issueCode(t, scopes, "", challenge, "S256")
		set, err := f.tokens.ExchangeAuthorizationCode(ctx, f.client.ID, "", code, "https://app.example/cb", verifier)
		require.NoError(t, err)
		return set
	}

	t.Run("rotates the refresh token", func(t *testing.T) {
		f := newTokenFixture(t, "")
		first := exchange(t, f, []string{"openid", "profile"})

		second, err := f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", first.RefreshToken, nil)
		require.NoError(t, err)
		require.NotEmpty(t, second.AccessToken)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)
		require.Equal(t, []string{"openid", "profile"}, second.Scopes)
		// openid survives the refresh, so a new identity token is issued
		// without a nonce.
		require.NotEmpty(t, second.IDToken)
		require.NotContains(t, parseUnverified(t, second.IDToken), "nonce")
	})

	t.Run("replaying a rotated token revokes the family", func(t *testing.T) {
		f := newTokenFixture(t, "")
		first := exchange(t, f, []string{"openid"})

		second, err := f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", first.RefreshToken, nil)
		require.NoError(t, err)

		_, err = f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", first.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)

		// The theft response revoked the second token too.
		_, err = f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", second.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("scopes may narrow but not widen", func(t *testing.T) {
		f := newTokenFixture(t, "")
		first := exchange(t, f, []string{"openid", "profile"})

		narrowed, err := f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", first.RefreshToken, []string{"profile"})
		require.NoError(t, err)
		require.Equal(t, []string{"profile"}, narrowed.Scopes)
		require.Empty(t, narrowed.IDToken)

		_, err = f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", narrowed.RefreshToken, []string{"profile", "email"})
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("rejects unknown tokens", func(t *testing.T) {
		f := newTokenFixture(t, "")
		_, err := f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", "nope", nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("rejects tokens issued to another client", func(t *testing.T) {
		f := newTokenFixture(t, "")
		other := seedClient(t, f.store, "", []string{"https://other.example/cb"}, []string{"openid"})
		first := exchange(t, f, []string{"openid"})

		_, err := f.tokens.ExchangeRefreshToken(ctx, other.ID, "", first.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("revokes the previous access token", func(t *testing.T) {
		f := newTokenFixture(t, "")
		first := exchange(t, f, []string{"openid"})

		access, err := f.tokens.KeyManager.Verifier.Verify(first.AccessToken)
		require.NoError(t, err)

		_, err = f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", first.RefreshToken, nil)
		require.NoError(t, err)

		record, err := f.store.AccessTokens().GetAccessTokenByID(ctx, access.ID)
		require.NoError(t, err)
		require.NotNil(t, record.RevokedAt)
	})

	t.Run("expired tokens are rejected", func(t *testing.T) {
		f := newTokenFixture(t, "")

		opaque := cryptox.MustGenerateToken(cryptox.TokenSize256)
		require.NoError(t, f.store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:            idx.New(),
			AccessTokenID: idx.New(),
			UserID:        f.user.ID,
			ClientID:      f.client.ID,
			TokenHash:     cryptox.FingerprintToken(opaque),
			Scopes:        []string{"openid"},
			ExpiresAt:     time.Now().Add(-time.Minute),
			CreatedAt:     time.Now().Add(-time.Hour),
		}))

		_, err := f.tokens.ExchangeRefreshToken(ctx, f.client.ID, "", opaque, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestHousekeepingDeletesExpiredRecords(t *testing.T) {
	ctx := context.Background()

	f := newTokenFixture(t, "")
	recordID := idx.New()
	require.NoError(t, f.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
		ID:        recordID,
		UserID:    f.user.ID,
		ClientID:  f.client.ID,
		Scopes:    []string{"openid"},
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}))

	hk := NewHousekeepingService(f.store, newDiscardLogger(), time.Hour)
	hk.Start()
	hk.Stop()

	_, err := f.store.AuthorizationCodes().GetAuthorizationCodeByID(ctx, recordID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
