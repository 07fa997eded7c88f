package oauthx

// ErrorResponse is the parsed form of an OAuth2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is the token endpoint response per RFC 6749, extended
// with the id_token member from OpenID Connect Core.
type TokenResponse struct {
	// AccessToken is the JWT access token.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the opaque refresh token, when issued.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-delimited list of granted scopes.
	Scope string `json:"scope,omitempty"`

	// IDToken is the signed identity token. Present only when the grant
	// was authorized with the openid scope.
	IDToken string `json:"id_token,omitempty"`
}

// AuthorizeResponse is returned by the authorization endpoint when the
// client asked for a JSON response instead of a redirect.
type AuthorizeResponse struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

// ProviderMetadata is the OpenID Provider discovery document served at
// /.well-known/openid-configuration.
type ProviderMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ScopesSupported                  []string `json:"scopes_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}

// UserinfoResponse is the claims document returned by /v1/userinfo. The
// claim set depends on the scopes granted to the access token, so it is
// an open map; sub is always present.
type UserinfoResponse map[string]any

// BootstrapRequest seeds the initial client and admin user on a fresh
// deployment.
type BootstrapRequest struct {
	// AdminUsername for the initial admin user (3-32 chars).
	AdminUsername string `json:"admin_username"`

	// AdminPassword for the admin user (8-128 chars).
	AdminPassword string `json:"admin_password"`

	// AdminEmail for the admin user's email claim.
	AdminEmail string `json:"admin_email,omitempty"`

	// ClientName for the initial OAuth2 client.
	ClientName string `json:"client_name"`

	// ClientRedirectURIs the client may use in authorization requests.
	ClientRedirectURIs []string `json:"client_redirect_uris"`

	// ClientScopes the client may request, e.g. ["openid", "profile"].
	ClientScopes []string `json:"client_scopes"`

	// ClientConfidential controls whether a client secret is generated.
	ClientConfidential bool `json:"client_confidential"`
}

// BootstrapResponse reports the created identities. The client secret is
// returned exactly once and never stored in plaintext.
type BootstrapResponse struct {
	AdminUserID  string `json:"admin_user_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// HealthResponse is returned by the livez and readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Uptime  string        `json:"uptime,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
