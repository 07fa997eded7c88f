package http

import (
	"net/http"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Probe
//	@Description	Checks the database connection and the signing key set.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	oauthx.HealthResponse
//	@Failure		503	{object}	oauthx.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &oauthx.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		status := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, oauthx.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
