package http

import (
	"net/http"

	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

// UserinfoHandler serves the OIDC userinfo endpoint. Requires a valid
// access token with the openid scope; the returned claim set depends on
// the token's other scopes.
type UserinfoHandler struct {
	UserinfoService *service.UserinfoService
}

// ServeHTTP godoc
//
//	@Summary		OIDC Userinfo Endpoint
//	@Description	Returns the authenticated user's claims filtered by the access token's scopes. sub is always present.
//	@Tags			OIDC
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	oauthx.UserinfoResponse
//	@Failure		401	{object}	oauthx.ErrorResponse
//	@Router			/v1/userinfo [get].
func (h *UserinfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok || userID == "" {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	resp, err := h.UserinfoService.Userinfo(ctx, userID, httpx.ScopesFromContext(ctx))
	if err != nil {
		log.Error("userinfo lookup failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
