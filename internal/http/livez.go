package http

import (
	"net/http"
	"time"

	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
)

// LivezHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Liveness probe returning uptime and version. Always 200 while the daemon runs.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	deskapi.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, deskapi.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
