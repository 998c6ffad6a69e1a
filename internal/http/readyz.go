package http

import (
	"net/http"
	"time"

	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe. Only the database decides readiness; session and realtime
//	@Description	are reported for information since a logged out daemon is still healthy.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	deskapi.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	deskapi.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, db Pinger, sess *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &deskapi.HealthChecks{
			Database: "ok",
			Session:  "logged_out",
			Realtime: string(sess.Realtime.State()),
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				checks.Database = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		if token, err := sess.Tokens.AccessToken(r.Context()); err != nil {
			checks.Session = "error: " + err.Error()
		} else if token != "" {
			checks.Session = "logged_in"
		}

		httpx.WriteJSON(w, statusCode, deskapi.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
