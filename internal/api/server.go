package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/graphrun/internal/engine"
	"github.com/seantiz/graphrun/internal/store"
	"github.com/seantiz/graphrun/internal/tool"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Services are the application components the HTTP layer serves.
type Services struct {
	Graphs    store.GraphStore
	Runs      *store.RunRegistry
	Tools     *tool.Registry
	Engine    *engine.Engine
	Scheduler *engine.Scheduler
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router    *chi.Mux
	graphs    store.GraphStore
	runs      *store.RunRegistry
	tools     *tool.Registry
	engine    *engine.Engine
	scheduler *engine.Scheduler
	logger    *slog.Logger
	addr      string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, svc Services, logger *slog.Logger) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		graphs:    svc.Graphs,
		runs:      svc.Runs,
		tools:     svc.Tools,
		engine:    svc.Engine,
		scheduler: svc.Scheduler,
		logger:    logger.With("component", "api"),
		addr:      addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/tools", s.handleListTools)
	s.router.Get("/stats", s.handleGetStats)
	s.router.Get("/graphs", s.handleListGraphs)
	s.router.Get("/runs", s.handleListRuns)

	s.router.Route("/graph", func(r chi.Router) {
		r.Post("/create", s.handleCreateGraph)
		r.Post("/run", s.handleStartRun)
		r.Post("/run/sync", s.handleRunSync)
		r.Get("/state/{run_id}", s.handleGetState)
		r.Get("/state/{run_id}/logs", s.handleStreamLogs)
		r.Get("/{graph_id}", s.handleGetGraph)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
