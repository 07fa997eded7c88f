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

// MFAHandler manages TOTP enrollment for the authenticated user.
type MFAHandler struct {
	MFAService *service.MFAService
}

type totpEnrollResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type totpActivateRequest struct {
	Code string `json:"code"`
}

// HandleEnroll godoc
//
//	@Summary		Enroll TOTP
//	@Description	Generates a TOTP secret for the authenticated user. Login is unaffected until the secret is activated.
//	@Tags			MFA
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	totpEnrollResponse
//	@Failure		401	{object}	oauthx.ErrorResponse
//	@Failure		409	{object}	oauthx.ErrorResponse	"already enabled"
//	@Router			/v1/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	enrollment, err := h.MFAService.EnrollTOTP(ctx, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, totpEnrollResponse{
		Secret: enrollment.Secret,
		URL:    enrollment.URL,
	})
}

// HandleActivate godoc
//
//	@Summary		Activate TOTP
//	@Description	Verifies a code from the authenticator and makes TOTP mandatory for future logins.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body	totpActivateRequest	true	"Six digit TOTP code"
//	@Success		204
//	@Failure		400	{object}	oauthx.ErrorResponse
//	@Failure		401	{object}	oauthx.ErrorResponse
//	@Router			/v1/mfa/totp/activate [post].
func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	var req totpActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthx.ErrInvalidRequest.WithDescription("request body must be valid JSON").WriteError(w)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		oauthx.ErrInvalidRequest.WithDescription("code is required").WriteError(w)
		return
	}

	if err := h.MFAService.ActivateTOTP(ctx, userID, strings.TrimSpace(req.Code)); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable godoc
//
//	@Summary		Disable TOTP
//	@Description	Clears the TOTP secret and turns off the login step-up.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	oauthx.ErrorResponse
//	@Router			/v1/mfa/totp [delete].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.MFAService.DisableTOTP(ctx, userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MFAHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		oauthx.NewOAuth2Error(http.StatusConflict, "invalid_request", "totp is already enabled").WriteError(w)
	case errors.Is(err, service.ErrMFANotEnrolled):
		oauthx.ErrInvalidRequest.WithDescription("totp enrollment has not been started").WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		oauthx.ErrInvalidGrant.WithDescription("invalid totp code").WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("mfa operation failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
	}
}
