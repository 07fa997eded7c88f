package http

import (
	"net/http"
	"strings"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

// DiscoveryHandler serves the OpenID Provider metadata document. The
// scope and claim inventories come from the live claim registry, so
// custom scopes registered at startup show up here.
//
//	@Summary		OpenID Provider Configuration
//	@Description	Returns the OpenID Connect discovery document.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	oauthx.ProviderMetadata
//	@Router			/.well-known/openid-configuration [get].
func DiscoveryHandler(issuer string, registry *claims.Registry, methods *pkce.Registry) http.HandlerFunc {
	base := strings.TrimRight(issuer, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		metadata := oauthx.ProviderMetadata{
			Issuer:                           issuer,
			AuthorizationEndpoint:            base + "/v1/oauth2/authorize",
			TokenEndpoint:                    base + "/v1/oauth2/token",
			UserinfoEndpoint:                 base + "/v1/userinfo",
			JWKSURI:                          base + "/.well-known/jwks.json",
			ScopesSupported:                  registry.Scopes(),
			ResponseTypesSupported:           []string{"code"},
			GrantTypesSupported:              []string{"authorization_code", "refresh_token"},
			SubjectTypesSupported:            []string{"public"},
			IDTokenSigningAlgValuesSupported: []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA},
			TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post", "none"},
			CodeChallengeMethodsSupported:    methods.Methods(),
			ClaimsSupported:                  registry.ClaimNames(),
		}
		httpx.WriteJSON(w, http.StatusOK, metadata)
	}
}
