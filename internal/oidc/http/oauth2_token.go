package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Redeems authorization codes and refresh tokens. When the grant carries
//	@Description	the openid scope the response includes a signed id_token whose at_hash
//	@Description	binds it to the access token.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, refresh_token)
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI bound at issuance (authorization_code grant)"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier (required when PKCE was used)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			client_id		formData	string					true	"Client identifier"
//	@Param			client_secret	formData	string					false	"Client secret (confidential clients; may also use Basic auth)"
//	@Param			scope			formData	string					false	"Space-delimited scopes (refresh_token grant; may narrow only)"
//	@Success		200				{object}	oauthx.TokenResponse	"access_token, token_type, expires_in, refresh_token, scope, id_token"
//	@Failure		400				{object}	oauthx.ErrorResponse
//	@Failure		401				{object}	oauthx.ErrorResponse
//	@Failure		500				{object}	oauthx.ErrorResponse
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/v1/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	default:
		oauthx.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()

	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))
	clientID, clientSecret := clientCredentials(r, form)

	if code == "" || clientID == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	set, err := h.TokenService.ExchangeAuthorizationCode(ctx, clientID, clientSecret, code, redirectURI, codeVerifier)
	if err != nil {
		writeTokenError(w, ctx, err)
		return
	}

	writeTokenResponse(w, set)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()

	refreshToken := strings.TrimSpace(form.Get("refresh_token"))
	scopes := httpx.ParseSpaceDelimitedFields(form.Get("scope"))
	clientID, clientSecret := clientCredentials(r, form)

	if refreshToken == "" || clientID == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	set, err := h.TokenService.ExchangeRefreshToken(ctx, clientID, clientSecret, refreshToken, scopes)
	if err != nil {
		writeTokenError(w, ctx, err)
		return
	}

	writeTokenResponse(w, set)
}

// clientCredentials pulls client authentication from Basic auth or the
// form body, preferring the header.
func clientCredentials(r *http.Request, form url.Values) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return strings.TrimSpace(form.Get("client_id")), form.Get("client_secret")
}

func writeTokenError(w http.ResponseWriter, ctx context.Context, err error) {
	log := slogx.FromContext(ctx)

	switch {
	case errors.Is(err, service.ErrInvalidClient):
		oauthx.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrExpiredCode):
		oauthx.ErrInvalidGrant.WithDescription("authorization code has expired").WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		oauthx.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauthx.ErrInvalidScope.WithDescription(err.Error()).WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		oauthx.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
	default:
		log.Error("token grant failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
	}
}

func writeTokenResponse(w http.ResponseWriter, set *domain.TokenSet) {
	response := oauthx.TokenResponse{
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		TokenType:    set.TokenType,
		ExpiresIn:    int(set.ExpiresIn.Seconds()),
		Scope:        strings.Join(set.Scopes, " "),
		IDToken:      set.IDToken,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
