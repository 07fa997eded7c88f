package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/codec"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/internal/oidc/store/drivers/sqlite"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "openpass-http-test")
	if err != nil {
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

const testIssuer = "https://auth.example.com"

type testServer struct {
	server       *httptest.Server
	bootstrap    oauthx.BootstrapResponse
	adminUser    string
	adminPass    string
	clientSecret string
}

// newTestServer wires the full stack against an in-memory database and
// bootstraps it with an admin user and a confidential client.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	cdc, err := codec.New(bytes.Repeat([]byte{0x42}, cryptox.KeySize))
	require.NoError(t, err)

	claimsRegistry := claims.NewRegistry()
	pkceRegistry := pkce.NewRegistry()
	extractor := claims.NewExtractor(claimsRegistry)

	idTokens := &service.IdentityTokenBuilder{
		KeyManager: km,
		Extractor:  extractor,
		Issuer:     testIssuer,
	}

	logger := slogx.Discard()
	router := NewRouter(km.KeySet, km.Verifier, testIssuer, "test", st, claimsRegistry, pkceRegistry, logger)
	router.AuthorizeService = &service.AuthorizeService{
		Store:   st,
		Codec:   cdc,
		PKCE:    pkceRegistry,
		CodeTTL: 5 * time.Minute,
	}
	router.TokenService = &service.TokenService{
		Store:      st,
		KeyManager: km,
		Codec:      cdc,
		PKCE:       pkceRegistry,
		IDTokens:   idTokens,
		Issuer:     testIssuer,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
	router.UserinfoService = &service.UserinfoService{Store: st, Extractor: extractor}
	router.BootstrapService = &service.BootstrapService{Store: st, Token: "bootstrap-token"}
	router.MFAService = &service.MFAService{Store: st, Issuer: "openpass"}
	router.ApplyRoutes()

	ts := &testServer{
		server:    httptest.NewServer(router),
		adminUser: "admin",
		adminPass: "correct-horse-battery-staple",
	}
	t.Cleanup(ts.server.Close)

	resp, err := router.BootstrapService.Bootstrap(ctx, "bootstrap-token", oauthx.BootstrapRequest{
		AdminUsername:      ts.adminUser,
		AdminPassword:      ts.adminPass,
		AdminEmail:         "admin@example.com",
		ClientName:         "console",
		ClientRedirectURIs: []string{"https://app.example/cb"},
		ClientScopes:       []string{"openid", "profile", "email"},
		ClientConfidential: true,
	})
	require.NoError(t, err)
	ts.bootstrap = *resp
	ts.clientSecret = resp.ClientSecret

	return ts
}

// noRedirect returns a client that surfaces 302s instead of following them.
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (ts *testServer) authorize(t *testing.T, form url.Values) *http.Response {
	t.Helper()

	query := url.Values{
		"response_type": {"code"},
		"client_id":     {ts.bootstrap.ClientID},
		"redirect_uri":  {"https://app.example/cb"},
		"scope":         {"openid profile"},
		"state":         {"xyz"},
		"nonce":         {"abc123"},
	}

	resp, err := noRedirect().PostForm(ts.server.URL+"/v1/oauth2/authorize?"+query.Encode(), form)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) token(t *testing.T, form url.Values) (*http.Response, oauthx.TokenResponse) {
	t.Helper()

	form.Set("client_id", ts.bootstrap.ClientID)
	form.Set("client_secret", ts.clientSecret)

	resp, err := http.PostForm(ts.server.URL+"/v1/oauth2/token", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body oauthx.TokenResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestAuthorizationCodeFlow(t *testing.T) {
	ts := newTestServer(t)

	// Front channel: login and collect the code from the redirect.
	resp := ts.authorize(t, url.Values{
		"username": {ts.adminUser},
		"password": {ts.adminPass},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "app.example", loc.Host)
	require.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	// Back channel: redeem the code.
	tokenResp, body := ts.token(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://app.example/cb"},
	})
	require.Equal(t, http.StatusOK, tokenResp.StatusCode)
	require.Equal(t, "no-store", tokenResp.Header.Get("Cache-Control"))
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.RefreshToken)
	require.NotEmpty(t, body.IDToken)
	require.Equal(t, "Bearer", body.TokenType)
	require.Equal(t, "openid profile", body.Scope)

	// Codes are single use.
	replay, _ := ts.token(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://app.example/cb"},
	})
	require.Equal(t, http.StatusBadRequest, replay.StatusCode)

	// Userinfo honours the token's scopes.
	req, err := http.NewRequest(http.MethodGet, ts.server.URL+"/v1/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+body.AccessToken)

	uiResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer uiResp.Body.Close()
	require.Equal(t, http.StatusOK, uiResp.StatusCode)

	var userinfo map[string]any
	require.NoError(t, json.NewDecoder(uiResp.Body).Decode(&userinfo))
	require.Equal(t, ts.bootstrap.AdminUserID, userinfo["sub"])
	require.Equal(t, "admin", userinfo["preferred_username"])
	require.NotContains(t, userinfo, "email")

	// Refresh rotation.
	refreshResp, refreshed := ts.token(t, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {body.RefreshToken},
	})
	require.Equal(t, http.StatusOK, refreshResp.StatusCode)
	require.NotEqual(t, body.RefreshToken, refreshed.RefreshToken)
	require.NotEmpty(t, refreshed.IDToken)
}

func (ts *testServer) authorizeWithQuery(t *testing.T, query, form url.Values) *http.Response {
	t.Helper()

	resp, err := noRedirect().PostForm(ts.server.URL+"/v1/oauth2/authorize?"+query.Encode(), form)
	require.NoError(t, err)
	return resp
}

func TestAuthorizeNeverRedirectsBeforeClientValidation(t *testing.T) {
	ts := newTestServer(t)

	login := url.Values{
		"username": {ts.adminUser},
		"password": {ts.adminPass},
	}

	t.Run("unknown client with bad response type stays put", func(t *testing.T) {
		query := url.Values{
			"response_type": {"token"},
			"client_id":     {"does-not-exist"},
			"redirect_uri":  {"https://evil.example/phish"},
			"scope":         {"openid"},
			"state":         {"xyz"},
		}
		resp := ts.authorizeWithQuery(t, query, login)
		defer resp.Body.Close()

		require.NotEqual(t, http.StatusFound, resp.StatusCode)
		require.Empty(t, resp.Header.Get("Location"))

		var body oauthx.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, "invalid_client", body.Error)
	})

	t.Run("unregistered redirect uri stays put", func(t *testing.T) {
		query := url.Values{
			"response_type": {"code"},
			"client_id":     {ts.bootstrap.ClientID},
			"redirect_uri":  {"https://evil.example/phish"},
			"scope":         {"openid"},
			"state":         {"xyz"},
		}
		resp := ts.authorizeWithQuery(t, query, login)
		defer resp.Body.Close()

		require.NotEqual(t, http.StatusFound, resp.StatusCode)
		require.Empty(t, resp.Header.Get("Location"))
	})

	t.Run("bad response type for a valid client redirects to the registered uri", func(t *testing.T) {
		query := url.Values{
			"response_type": {"token"},
			"client_id":     {ts.bootstrap.ClientID},
			"redirect_uri":  {"https://app.example/cb"},
			"scope":         {"openid"},
			"state":         {"xyz"},
		}
		resp := ts.authorizeWithQuery(t, query, login)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)

		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "app.example", loc.Host)
		require.Equal(t, "unsupported_response_type", loc.Query().Get("error"))
		require.Equal(t, "xyz", loc.Query().Get("state"))
	})
}

func TestAuthorizeAcceptsHybridResponseType(t *testing.T) {
	ts := newTestServer(t)

	query := url.Values{
		"response_type": {"code id_token"},
		"client_id":     {ts.bootstrap.ClientID},
		"redirect_uri":  {"https://app.example/cb"},
		"scope":         {"openid"},
		"state":         {"xyz"},
	}
	resp := ts.authorizeWithQuery(t, query, url.Values{
		"username": {ts.adminUser},
		"password": {ts.adminPass},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.NotEmpty(t, loc.Query().Get("code"))
}

func TestAuthorizeRejectsBadLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.authorize(t, url.Values{
		"username": {ts.adminUser},
		"password": {"wrong"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_grant", body["error"])
}

func TestAuthorizeGetChallengesAnonymous(t *testing.T) {
	ts := newTestServer(t)

	query := url.Values{
		"response_type": {"code"},
		"client_id":     {ts.bootstrap.ClientID},
		"redirect_uri":  {"https://app.example/cb"},
		"scope":         {"openid"},
		"state":         {"xyz"},
	}
	resp, err := noRedirect().Get(ts.server.URL + "/v1/oauth2/authorize?" + query.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "login_required", body["error"])
	require.Equal(t, "xyz", body["state"])
}

func TestAuthorizeDenialRedirectsWithError(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.authorize(t, url.Values{
		"username": {ts.adminUser},
		"password": {ts.adminPass},
		"approve":  {"deny"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))
	require.Equal(t, "xyz", loc.Query().Get("state"))
}

func TestDiscoveryDocument(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/.well-known/openid-configuration")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var metadata oauthx.ProviderMetadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metadata))
	require.Equal(t, testIssuer, metadata.Issuer)
	require.Equal(t, testIssuer+"/v1/oauth2/token", metadata.TokenEndpoint)
	require.Contains(t, metadata.ScopesSupported, "openid")
	require.Contains(t, metadata.ScopesSupported, "profile")
	require.ElementsMatch(t, []string{"plain", "S256"}, metadata.CodeChallengeMethodsSupported)
	require.Contains(t, metadata.ClaimsSupported, "email")
}

func TestJWKSEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwks jwtx.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.NotEmpty(t, jwks.Keys)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(ts.server.URL + path)
		require.NoError(t, err)

		var body oauthx.HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, "ok", body.Status, path)
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	ts := newTestServer(t)

	t.Run("unsupported grant type", func(t *testing.T) {
		resp, _ := ts.token(t, url.Values{"grant_type": {"password"}})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong content type", func(t *testing.T) {
		resp, err := http.Post(ts.server.URL+"/v1/oauth2/token", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong client secret", func(t *testing.T) {
		form := url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {"whatever"},
			"redirect_uri":  {"https://app.example/cb"},
			"client_id":     {ts.bootstrap.ClientID},
			"client_secret": {"wrong"},
		}
		resp, err := http.PostForm(ts.server.URL+"/v1/oauth2/token", form)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body oauthx.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, "invalid_client", body.Error)
	})
}

func TestBootstrapEndpoint(t *testing.T) {
	ts := newTestServer(t)

	payload, err := json.Marshal(oauthx.BootstrapRequest{
		AdminUsername:      "other",
		AdminPassword:      "some-long-password",
		ClientName:         "second",
		ClientRedirectURIs: []string{"https://second.example/cb"},
		ClientScopes:       []string{"openid"},
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/v1/bootstrap", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bootstrap-Token", "bootstrap-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// newTestServer already bootstrapped the system.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
