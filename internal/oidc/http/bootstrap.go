package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP handles the bootstrap endpoint for initial system setup.
//
//	@Summary		Bootstrap the provider
//	@Description	Seeds the standard OIDC scopes, the first admin user, and the first client. Only available when a bootstrap token is configured, and only once.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string					true	"Bootstrap token"
//	@Param			request				body		oauthx.BootstrapRequest	true	"Bootstrap configuration"
//	@Success		201					{object}	oauthx.BootstrapResponse
//	@Failure		400					{object}	oauthx.ErrorResponse
//	@Failure		401					{object}	oauthx.ErrorResponse
//	@Failure		404					{object}	oauthx.ErrorResponse	"Bootstrap not enabled"
//	@Router			/v1/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	if h.BootstrapService.Token == "" {
		httpx.WriteJSON(w, http.StatusNotFound, oauthx.ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "bootstrap endpoint is not enabled",
		})
		return
	}

	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, oauthx.ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "bootstrap token is required in X-Bootstrap-Token header",
		})
		return
	}

	var req oauthx.BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, oauthx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "request body must be valid JSON",
		})
		return
	}
	if msg := validateBootstrapRequest(&req); msg != "" {
		httpx.WriteJSON(w, http.StatusBadRequest, oauthx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: msg,
		})
		return
	}

	resp, err := h.BootstrapService.Bootstrap(r.Context(), token, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapAlready):
			httpx.WriteJSON(w, http.StatusUnauthorized, oauthx.ErrorResponse{
				Error:            "unauthorized",
				ErrorDescription: "system is already bootstrapped",
			})
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteJSON(w, http.StatusUnauthorized, oauthx.ErrorResponse{
				Error:            "unauthorized",
				ErrorDescription: "invalid bootstrap token",
			})
		default:
			l.Error("bootstrap failed", "err", err)
			oauthx.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func validateBootstrapRequest(req *oauthx.BootstrapRequest) string {
	req.AdminUsername = strings.TrimSpace(req.AdminUsername)
	req.ClientName = strings.TrimSpace(req.ClientName)

	switch {
	case len(req.AdminUsername) < 3 || len(req.AdminUsername) > 32:
		return "admin_username must be 3-32 characters"
	case len(req.AdminPassword) < 8 || len(req.AdminPassword) > 128:
		return "admin_password must be 8-128 characters"
	case req.ClientName == "":
		return "client_name is required"
	case len(req.ClientRedirectURIs) == 0:
		return "client_redirect_uris must not be empty"
	case len(req.ClientScopes) == 0:
		return "client_scopes must not be empty"
	}
	return ""
}
