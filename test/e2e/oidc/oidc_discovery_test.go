package oidc_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

func TestDiscoveryDocument(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	var metadata oauthx.ProviderMetadata
	require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/.well-known/openid-configuration", "", &metadata))

	require.Equal(t, testIssuer, metadata.Issuer)
	require.Equal(t, testIssuer+"/v1/oauth2/authorize", metadata.AuthorizationEndpoint)
	require.Equal(t, testIssuer+"/v1/oauth2/token", metadata.TokenEndpoint)
	require.Equal(t, testIssuer+"/v1/userinfo", metadata.UserinfoEndpoint)
	require.Equal(t, testIssuer+"/.well-known/jwks.json", metadata.JWKSURI)
	require.Equal(t, []string{"code"}, metadata.ResponseTypesSupported)
	require.Contains(t, metadata.GrantTypesSupported, "authorization_code")
	require.Contains(t, metadata.GrantTypesSupported, "refresh_token")
	require.Contains(t, metadata.ScopesSupported, "openid")
	require.ElementsMatch(t, []string{"plain", "S256"}, metadata.CodeChallengeMethodsSupported)
	require.Contains(t, metadata.ClaimsSupported, "sub")
	require.Contains(t, metadata.ClaimsSupported, "email")
}

func TestJWKSServesSigningKeys(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	var jwks jwtx.JWKS
	require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/.well-known/jwks.json", "", &jwks))
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	require.Equal(t, "OKP", key.Kty)
	require.Equal(t, "EdDSA", key.Alg)
	require.Equal(t, "sig", key.Use)
	require.NotEmpty(t, key.Kid)

	_, err := key.PublicKey()
	require.NoError(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	var live oauthx.HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/livez", "", &live))
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	var ready oauthx.HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/readyz", "", &ready))
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
}

func TestBootstrapIsOneShot(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	bootstrapProvider(t, baseURL)

	// A second bootstrap attempt must be refused.
	payload, err := json.Marshal(oauthx.BootstrapRequest{
		AdminUsername:      "second-admin",
		AdminPassword:      "AnotherPass123!",
		ClientName:         "second-client",
		ClientRedirectURIs: []string{redirectURI},
		ClientScopes:       []string{"openid"},
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/bootstrap", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bootstrap-Token", bootstrapToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
