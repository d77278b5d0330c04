package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skillcoder/toolmanager/internal/infra/appstate"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
)

// Server serves the tool API and the probe endpoints.
type Server struct {
	*component
	appState appstater
	manager  toolManager
}

// New creates the API server.
func New(logger *slog.Logger, appState appstater, manager toolManager, port string) *Server {
	if port == "" {
		port = defaultPort
	}

	return &Server{
		component: newComponent(logger, "http-server", port),
		appState:  appState,
		manager:   manager,
	}
}

var _ shutdown.Shutdowner = (*Server)(nil)

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/-/healthz", appstate.HandleHealthz(s.logger, s.appState))
	router.Get("/-/readyz", appstate.HandleReadyz(s.logger, s.appState))
	router.Get("/-/status", appstate.HandleStatus(s.logger, s.appState))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/tools", s.handleListTools)
		r.Route("/tools/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetTool)
			r.Delete("/", s.handleUnregisterTool)
			r.Post("/{action}", s.handleCommand)
			r.Patch("/config", s.handleUpdateConfig)
		})

		r.Get("/resources", s.handleResources)
		r.Get("/autoscaling", s.handleGetAutoScaling)
		r.Put("/autoscaling", s.handleSetAutoScaling)
	})

	return router
}

// Start binds the API port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	return s.serve(ctx, s.Routes())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.DebugContext(r.Context(), "request served",
			"traceID", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
