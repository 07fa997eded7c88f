package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

// AuthorizeHandler processes OAuth2/OIDC authorization requests.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Verifier         *jwtx.Verifier
	Logger           *slog.Logger
}

// HandleGet processes GET requests to the authorization endpoint. A caller
// with a valid session token gets a code straight away; anyone else gets a
// login_required challenge echoing the request parameters.
//
//	@Summary		OAuth2 authorization endpoint (GET)
//	@Description	Initiates the authorization code flow. If the request carries a valid
//	@Description	Bearer token the code is issued immediately; otherwise a 401
//	@Description	login_required challenge is returned and the client re-submits via POST
//	@Description	with credentials.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type			query		string	true	"Space-delimited response types; must include code or id_token"	default(code)
//	@Param			client_id				query		string	true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string	false	"Callback URI (must match a registered redirect URI)"
//	@Param			scope					query		string	true	"Space-delimited list of scopes"	example("openid profile email")
//	@Param			state					query		string	false	"Opaque value echoed back to the client"
//	@Param			nonce					query		string	false	"OIDC nonce echoed into the id_token"
//	@Param			code_challenge			query		string	false	"PKCE code challenge (required for public clients)"
//	@Param			code_challenge_method	query		string	false	"PKCE method"	Enums(S256, plain)
//	@Success		302						{string}	string	"Redirect to redirect_uri with code and state"
//	@Failure		400						{object}	oauthx.ErrorResponse
//	@Failure		401						{object}	oauthx.ErrorResponse	"login_required"
//	@Router			/v1/oauth2/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req := h.buildAuthorizeRequest(nil, r.URL.Query())

	if userID := h.resolveSession(r); userID != "" {
		h.processAuthorize(w, r, req, userID, true)
		return
	}

	payload := map[string]any{
		"error":             "login_required",
		"error_description": "user authentication required",
		"response_type":     req.ResponseType,
		"client_id":         req.ClientID,
		"redirect_uri":      req.RedirectURI, // not yet validated here
	}
	if len(req.Scopes) > 0 {
		payload["scope"] = strings.Join(req.Scopes, " ")
	}
	if req.State != "" {
		payload["state"] = req.State
	}
	httpx.WriteJSON(w, http.StatusUnauthorized, payload)
}

// HandlePost processes POST requests carrying resource-owner credentials.
//
//	@Summary		OAuth2 authorization endpoint (POST)
//	@Description	Authenticates the resource owner with username/password (plus a TOTP
//	@Description	code when the account has MFA enabled) and issues the authorization
//	@Description	code. Posting approve=deny refuses the grant and redirects back with
//	@Description	error=access_denied.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			response_type			query		string	true	"Space-delimited response types; must include code or id_token"	default(code)
//	@Param			client_id				query		string	true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string	false	"Callback URI (must match a registered redirect URI)"
//	@Param			scope					query		string	true	"Space-delimited list of scopes"
//	@Param			state					query		string	false	"Opaque value echoed back to the client"
//	@Param			nonce					query		string	false	"OIDC nonce echoed into the id_token"
//	@Param			code_challenge			query		string	false	"PKCE code challenge (required for public clients)"
//	@Param			code_challenge_method	query		string	false	"PKCE method"	Enums(S256, plain)
//	@Param			username				formData	string	false	"Username"
//	@Param			password				formData	string	false	"Password"
//	@Param			otp_code				formData	string	false	"TOTP code (required when MFA is enabled)"
//	@Param			approve					formData	string	false	"Set to 'deny' to refuse the grant"
//	@Success		302						{string}	string	"Redirect to redirect_uri with code and state"
//	@Failure		400						{object}	oauthx.ErrorResponse
//	@Failure		401						{object}	oauthx.ErrorResponse
//	@Router			/v1/oauth2/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	req := h.buildAuthorizeRequest(r.PostForm, r.URL.Query())
	approved := !strings.EqualFold(r.PostForm.Get("approve"), "deny")

	userID := h.resolveSession(r)
	if userID == "" {
		user, err := h.AuthorizeService.Authenticate(r.Context(),
			strings.TrimSpace(r.PostForm.Get("username")),
			r.PostForm.Get("password"),
			strings.TrimSpace(r.PostForm.Get("otp_code")),
		)
		if err != nil {
			h.handleAuthorizeError(w, r, req, "", err)
			return
		}
		userID = user.ID
	}

	h.processAuthorize(w, r, req, userID, approved)
}

func (h *AuthorizeHandler) buildAuthorizeRequest(primary, secondary url.Values) service.AuthorizeRequest {
	pick := func(key string) string {
		if primary != nil {
			if v := strings.TrimSpace(primary.Get(key)); v != "" {
				return v
			}
		}
		if secondary != nil {
			return strings.TrimSpace(secondary.Get(key))
		}
		return ""
	}

	return service.AuthorizeRequest{
		ResponseType:        pick("response_type"),
		ClientID:            pick("client_id"),
		RedirectURI:         pick("redirect_uri"),
		Scopes:              httpx.ParseSpaceDelimitedFields(pick("scope")),
		State:               pick("state"),
		Nonce:               pick("nonce"),
		CodeChallenge:       pick("code_challenge"),
		CodeChallengeMethod: pick("code_challenge_method"),
	}
}

func (h *AuthorizeHandler) processAuthorize(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest, userID string, approved bool) {
	ctx := r.Context()

	ar, err := h.AuthorizeService.ValidateAuthorizationRequest(ctx, req)
	if err != nil {
		// A non-nil request on error means the client and redirect URI
		// were validated before the failure, so the error may bounce
		// back to the client.
		safeRedirectURI := ""
		if ar != nil {
			safeRedirectURI = ar.RedirectURI
		}
		h.handleAuthorizeError(w, r, req, safeRedirectURI, err)
		return
	}
	ar.UserID = userID
	ar.Approved = approved

	result, err := h.AuthorizeService.CompleteAuthorizationRequest(ctx, ar)
	if err != nil {
		h.handleAuthorizeError(w, r, req, ar.RedirectURI, err)
		return
	}

	redirectURL, err := buildAuthorizeRedirect(result.RedirectURI, result.Code, result.State)
	if err != nil {
		h.logger().Error("failed to build redirect URL", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// handleAuthorizeError renders a failed authorize call. safeRedirectURI is
// the redirect target validated against the client's registration, or empty
// when validation never got that far; errors are only ever redirected to a
// validated target (RFC 6749 3.1.2.4), everything else renders as JSON.
func (h *AuthorizeHandler) handleAuthorizeError(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest, safeRedirectURI string, err error) {
	logger := h.logger()

	if errors.Is(err, service.ErrInvalidClient) {
		oauthx.ErrInvalidClient.WriteError(w)
		logger.Debug("authorize request rejected",
			slog.String("client_id", req.ClientID),
			slog.String("redirect_uri", req.RedirectURI),
			slog.Any("error", err),
		)
		return
	}

	var oauthErr *oauthx.OAuth2Error
	switch {
	case errors.Is(err, service.ErrUnsupportedResponseType):
		oauthErr = oauthx.ErrUnsupportedResponseType
	case errors.Is(err, service.ErrInvalidScope):
		oauthErr = oauthx.ErrInvalidScope.WithDescription(err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		oauthErr = oauthx.ErrInvalidRequest.WithDescription(err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		oauthErr = oauthx.ErrAccessDenied
	case errors.Is(err, service.ErrMFARequired):
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "mfa_required",
			"error_description": "a TOTP code is required to complete login",
		})
		return
	case errors.Is(err, service.ErrLoginRequired):
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "login_required",
			"error_description": "user authentication required",
		})
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "invalid_grant",
			"error_description": "invalid credentials",
		})
		return
	default:
		logger.Error("authorize request failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	// Validation errors after the client checked out bounce back to the
	// client with state preserved.
	if safeRedirectURI != "" {
		if redirectURL := buildErrorRedirect(safeRedirectURI, req.State, oauthErr); redirectURL != "" {
			http.Redirect(w, r, redirectURL, http.StatusFound)
			return
		}
	}

	oauthErr.WriteError(w)
	logger.Debug("authorize request returned error response", "error_code", oauthErr.Code)
}

// resolveSession returns the subject of a valid Bearer token, or "".
func (h *AuthorizeHandler) resolveSession(r *http.Request) string {
	token := extractBearerToken(r)
	if token == "" {
		return ""
	}

	claims, err := h.Verifier.Verify(token)
	if err != nil {
		h.logger().Debug("failed to verify session token", "error", err)
		return ""
	}
	return claims.Subject
}

func (h *AuthorizeHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func buildAuthorizeRedirect(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func buildErrorRedirect(redirectURI, state string, oauthErr *oauthx.OAuth2Error) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("error", oauthErr.Code)
	if oauthErr.Description != "" {
		q.Set("error_description", oauthErr.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
