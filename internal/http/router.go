package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/talhabektas/smartdesk-sub000/internal/inbox"
	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"

	_ "github.com/talhabektas/smartdesk-sub000/api/session" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is the part of the store the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	controlled  httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	db      Pinger
	Session *session.Session
	Inbox   *inbox.Inbox
}

// NewRouter builds the control API. controlToken protects every /v1 route;
// an empty token leaves them open, which is only sensible on loopback.
func NewRouter(
	sess *session.Session,
	in *inbox.Inbox,
	db Pinger,
	controlToken, buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		db:           db,
		Session:      sess,
		Inbox:        in,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	r.controlled = httpx.RequireBearer(controlToken)

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerSession()
	r.registerRealtime()
	r.registerNotifications()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			SmartDesk Session Daemon API
//	@version		0.1.0
//	@description	Local control API of the helpdesk session daemon. It owns the backend
//	@description	credentials, keeps them fresh and holds the realtime connection.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:7070
//	@BasePath					/
//
//	@schemes					http
//
//	@securityDefinitions.apikey	ControlToken
//	@in							header
//	@name						Authorization
//	@description				Daemon control token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	// Probes poll often, keep them on the lenient limit
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.db, r.Session),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Session: r.Session}

	r.Mux.Handle("GET /v1/session", r.secure(http.HandlerFunc(h.HandleGet)))

	// Login goes to the backend with a password, so it gets the strict limit
	r.Mux.Handle("POST /v1/session/login",
		r.secure(http.HandlerFunc(h.HandleLogin), httpx.RateLimitByIP(httpx.StrictLimit)),
	)
	r.Mux.Handle("POST /v1/session/refresh", r.secure(http.HandlerFunc(h.HandleRefresh)))
	r.Mux.Handle("POST /v1/session/logout", r.secure(http.HandlerFunc(h.HandleLogout)))
}

func (r *Router) registerRealtime() {
	h := &RealtimeHandler{Session: r.Session, Logger: r.logger}

	r.Mux.Handle("GET /v1/realtime", r.secure(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("POST /v1/realtime/connect", r.secure(http.HandlerFunc(h.HandleConnect)))
	r.Mux.Handle("POST /v1/realtime/disconnect", r.secure(http.HandlerFunc(h.HandleDisconnect)))
	r.Mux.Handle("POST /v1/realtime/send", r.secure(http.HandlerFunc(h.HandleSend)))
	r.Mux.Handle("POST /v1/realtime/subscriptions", r.secure(http.HandlerFunc(h.HandleSubscribe)))
	r.Mux.Handle("DELETE /v1/realtime/subscriptions/{id}", r.secure(http.HandlerFunc(h.HandleUnsubscribe)))
}

func (r *Router) registerNotifications() {
	h := &NotificationsHandler{Inbox: r.Inbox}

	r.Mux.Handle("GET /v1/notifications", r.secure(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("POST /v1/notifications/read", r.secure(http.HandlerFunc(h.HandleMarkRead)))
}

// secure puts h behind the control token and the default rate limit. Extra
// middlewares run after the token check.
func (r *Router) secure(h http.Handler, extra ...httpx.Middleware) http.Handler {
	mws := []httpx.Middleware{r.controlled}
	if len(extra) == 0 {
		extra = []httpx.Middleware{httpx.RateLimitByIP(httpx.LenientLimit)}
	}
	return httpx.Chain(h, append(mws, extra...)...)
}
