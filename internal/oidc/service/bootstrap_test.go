package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	st := newTestStore(t)
	svc := &BootstrapService{Store: st, Token: "bootstrap-token"}

	req := oauthx.BootstrapRequest{
		AdminUsername:      "admin",
		AdminPassword:      "correct-horse-battery-staple",
		AdminEmail:         "admin@example.com",
		ClientName:         "console",
		ClientRedirectURIs: []string{"https://console.example/cb"},
		ClientScopes:       []string{"openid", "profile", "email"},
		ClientConfidential: true,
	}

	t.Run("rejects a bad token", func(t *testing.T) {
		_, err := svc.Bootstrap(ctx, "wrong", req)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("seeds scopes, admin and client", func(t *testing.T) {
		resp, err := svc.Bootstrap(ctx, "bootstrap-token", req)
		require.NoError(t, err)
		require.NotEmpty(t, resp.AdminUserID)
		require.NotEmpty(t, resp.ClientID)
		require.NotEmpty(t, resp.ClientSecret)

		bootstrapped, err := svc.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.True(t, bootstrapped)

		for _, set := range claims.StandardSets() {
			_, err := st.Scopes().GetScopeByName(ctx, set.Scope)
			require.NoError(t, err)
		}

		admin, err := st.Users().GetUserByID(ctx, resp.AdminUserID)
		require.NoError(t, err)
		require.Equal(t, "admin", admin.Username)
		require.Equal(t, admin.ID, admin.Claims["sub"])
		require.NoError(t, cryptox.VerifySecret("correct-horse-battery-staple", admin.PasswordHash))

		client, err := st.Clients().GetClientByID(ctx, resp.ClientID)
		require.NoError(t, err)
		require.True(t, client.Confidential())
		require.True(t, client.Protected)
		require.NoError(t, cryptox.VerifySecret(resp.ClientSecret, client.SecretHash))
	})

	t.Run("refuses to run twice", func(t *testing.T) {
		_, err := svc.Bootstrap(ctx, "bootstrap-token", req)
		require.ErrorIs(t, err, ErrBootstrapAlready)
	})
}

func TestUserinfo(t *testing.T) {
	ctx := context.Background()

	st := newTestStore(t)
	user := seedUser(t, st, "alice", "hunter2-correct-horse")
	svc := &UserinfoService{
		Store:     st,
		Extractor: claims.NewExtractor(claims.NewRegistry()),
	}

	t.Run("filters claims by scope", func(t *testing.T) {
		resp, err := svc.Userinfo(ctx, user.ID, []string{"openid", "email"})
		require.NoError(t, err)
		require.Equal(t, user.ID, resp["sub"])
		require.Equal(t, "alice@example.com", resp["email"])
		require.NotContains(t, resp, "name")
		require.NotContains(t, resp, "phone_number")
	})

	t.Run("sub is present even without openid", func(t *testing.T) {
		resp, err := svc.Userinfo(ctx, user.ID, []string{"profile"})
		require.NoError(t, err)
		require.Equal(t, user.ID, resp["sub"])
		require.Equal(t, "Alice Example", resp["name"])
	})

	t.Run("unknown users fail", func(t *testing.T) {
		_, err := svc.Userinfo(ctx, "missing", []string{"openid"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
