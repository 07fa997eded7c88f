package oidc_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserinfoScopeFiltering(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	boot := bootstrapProvider(t, baseURL)

	exchange := func(scopes []string) string {
		code := authorizeForCode(t, baseURL, authorizeParams{
			ClientID: boot.ClientID,
			Scopes:   scopes,
			Username: adminUsername,
			Password: adminPassword,
		})

		status, token, _ := exchangeToken(t, baseURL, url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {redirectURI},
			"client_id":     {boot.ClientID},
			"client_secret": {boot.ClientSecret},
		})
		require.Equal(t, http.StatusOK, status)
		return token.AccessToken
	}

	t.Run("profile without email", func(t *testing.T) {
		accessToken := exchange([]string{"openid", "profile"})

		var userinfo map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/v1/userinfo", accessToken, &userinfo))
		require.Equal(t, boot.AdminUserID, userinfo["sub"])
		require.Equal(t, adminUsername, userinfo["preferred_username"])
		require.NotContains(t, userinfo, "email")
	})

	t.Run("email scope exposes email claims", func(t *testing.T) {
		accessToken := exchange([]string{"openid", "email"})

		var userinfo map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/v1/userinfo", accessToken, &userinfo))
		require.Equal(t, "admin@example.com", userinfo["email"])
		require.Equal(t, true, userinfo["email_verified"])
		require.NotContains(t, userinfo, "preferred_username")
	})
}

func TestUserinfoRequiresToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	bootstrapProvider(t, baseURL)

	var userinfo map[string]any
	require.Equal(t, http.StatusUnauthorized, getJSON(t, baseURL+"/v1/userinfo", "", &userinfo))
	require.Equal(t, http.StatusUnauthorized, getJSON(t, baseURL+"/v1/userinfo", "not-a-jwt", &userinfo))
}
