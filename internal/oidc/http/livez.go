package http

import (
	"net/http"
	"time"

	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/oauthx"
)

// LivezHandler godoc
//
//	@Summary		Liveness Probe
//	@Description	Always returns 200 OK while the process is running, with uptime and version.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	oauthx.HealthResponse
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, oauthx.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
