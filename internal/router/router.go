package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"github.com/valyala/fasthttp/pprofhandler"

	apiHandler "github.com/fastygo/powerpanel/api/handler"
	"github.com/fastygo/powerpanel/internal/middleware"
)

type Handlers struct {
	Auth       *apiHandler.AuthHandler
	Computer   *apiHandler.ComputerHandler
	CommandLog *apiHandler.CommandLogHandler
	Health     *apiHandler.HealthHandler
}

type Options struct {
	// Metrics exposes the registry at /metrics when non-nil.
	Metrics *prometheus.Registry
	Pprof   bool
}

func New(handlers Handlers, requireSession func(fasthttp.RequestHandler) fasthttp.RequestHandler, opts Options) *router.Router {
	r := router.New()

	tab := middleware.TabScope
	authed := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return tab(requireSession(h))
	}

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", tab(handlers.Auth.Login))
	r.POST("/api/v1/auth/logout", tab(handlers.Auth.Logout))
	r.GET("/api/v1/auth/session", tab(handlers.Auth.Session))

	// Protected routes
	r.GET("/api/v1/computers", authed(handlers.Computer.List))
	r.GET("/api/v1/commands", authed(handlers.CommandLog.List))

	// Privileged actions; the dispatcher runs the session check itself.
	r.POST("/api/v1/computers/retry", tab(handlers.Computer.Retry))
	r.POST("/api/v1/computers/shutdown-all", tab(handlers.Computer.ShutdownAll))
	r.POST("/api/v1/computers/{name}/shutdown", tab(handlers.Computer.Shutdown))
	r.DELETE("/api/v1/computers/{name}", tab(handlers.Computer.Remove))

	if opts.Metrics != nil {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}
	if opts.Pprof {
		r.GET("/debug/pprof/{profile:*}", pprofhandler.PprofHandler)
	}

	return r
}
