// Package httpapi exposes the studio and the preview sandbox over HTTP and a
// websocket preview channel.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adalundhe/canvas/core/metrics"
	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/studio"
	"github.com/adalundhe/canvas/core/transpile"
)

// Deps are the collaborators the handlers use. Studio and Engine are
// required.
type Deps struct {
	Studio        *studio.Service
	Engine        *sandbox.Engine
	Transpiler    *transpile.Transpiler
	Authenticator Authenticator
	Metrics       *metrics.Metrics
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// UsagePath is the markdown file served at /api/docs/usage.
	UsagePath string
	Logger    *slog.Logger
}

type Server struct {
	studio     *studio.Service
	engine     *sandbox.Engine
	transpiler *transpile.Transpiler
	metrics    *metrics.Metrics
	usagePath  string
	logger     *slog.Logger
}

// NewHandler builds the chi router for deps.
func NewHandler(deps Deps) http.Handler {
	s := &Server{
		studio:     deps.Studio,
		engine:     deps.Engine,
		transpiler: deps.Transpiler,
		metrics:    deps.Metrics,
		usagePath:  deps.UsagePath,
		logger:     deps.Logger,
	}
	if s.transpiler == nil {
		s.transpiler = transpile.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	auth := deps.Authenticator
	if auth == nil {
		auth = HeaderAuthenticator{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/api/docs/usage", s.usage)

	r.Group(func(r chi.Router) {
		r.Use(requireUser(auth))

		r.Post("/api/chat", s.chat)
		r.Post("/api/design/chat", s.designChat)
		r.Post("/api/design/code", s.generateCode)
		r.Get("/api/design/tokens", s.getTokens)
		r.Post("/api/design/tokens", s.setTokens)
		r.Get("/api/design/components", s.getComponents)
		r.Get("/api/chats", s.listChats)
		r.Get("/api/chats/{id}", s.getChat)
		r.Post("/api/preview", s.preview)
		r.Get("/api/preview/frame", s.frame)
		r.Get("/ws/preview/{surface}", s.previewSocket)
	})

	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.Request(route, strconv.Itoa(status))
		s.logger.Debug("request served",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
