package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Mediaquotes/docsport/analyzer"
	"github.com/Mediaquotes/docsport/config"
	"github.com/Mediaquotes/docsport/sandbox"
	"github.com/Mediaquotes/docsport/store"
)

// Server is the local HTTP API for DocsPort.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	executor sandbox.Executor
	analyzer *analyzer.Analyzer
	router   chi.Router
	http     *http.Server
}

// New creates a Server wired to the given components.
func New(cfg *config.Config, logger *zap.Logger, st *store.Store, executor sandbox.Executor, an *analyzer.Analyzer) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		executor: executor,
		analyzer: an,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(localOnly)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)

		r.Post("/execute", s.handleExecute)
		r.Get("/executions", s.handleListExecutions)

		r.Post("/analyze/file", s.handleAnalyzeFile)
		r.Post("/analyze/project", s.handleAnalyzeProject)

		r.Get("/visualization/flowchart", s.handleFlowchart)
		r.Get("/visualization/classes", s.handleClassDiagram)
		r.Get("/visualization/graph", s.handleGraph)

		r.Get("/comments", s.handleListComments)
		r.Post("/comments", s.handleCreateComment)
		r.Delete("/comments/{id}", s.handleDeleteComment)

		r.Get("/snippets", s.handleListSnippets)
		r.Post("/snippets", s.handleSaveSnippet)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/content", s.handleReadFile)
		r.Post("/files/content", s.handleSaveFile)
	})
}

// requestLogger logs each request with latency and status via zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// localOnly refuses requests that did not originate from the loopback
// interface. The API is a local development tool and must never be reachable
// from another host. An unparseable peer address is rejected, not excused.
func localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on host:port. It blocks until the listener fails
// or the server is shut down.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("http server listening", zap.String("addr", addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
