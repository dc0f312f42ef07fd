// Package server wires the catch log together: it opens the database, builds
// the service, handlers and metrics, mounts the routes, and runs the HTTP
// server with graceful shutdown.
//
// Route table:
//
//	POST   /catches        create a catch
//	GET    /catches        list catches, optional ?catch_type=
//	GET    /catches/{id}   get one catch
//	PUT    /catches/{id}   partial update
//	DELETE /catches/{id}   delete
//	GET    /stats          aggregate counts
//	GET    /health         liveness plus database ping
//	GET    /metrics        Prometheus scrape endpoint
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/catchlog/internal/config"
	"github.com/sakif/catchlog/internal/handler"
	"github.com/sakif/catchlog/internal/metrics"
	"github.com/sakif/catchlog/internal/middleware"
	sqliteRepo "github.com/sakif/catchlog/internal/repository/sqlite"
	"github.com/sakif/catchlog/internal/service"
)

// shutdownTimeout bounds how long in-flight requests get after a stop signal.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies. It owns the
// database connection and closes it on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	catches *service.CatchService
	metrics *metrics.Metrics
}

// New opens the database named by cfg.DBPath and builds the full dependency
// chain: sqlite.DB → CatchService → CatchHandler → routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != sqliteRepo.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	catches := service.NewCatchService(db, logger)

	m, err := metrics.New(catches.Stats, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		catches: catches,
		metrics: m,
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes installs middleware and routes.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware runs in the order it is added, outermost first:
//  1. RequestID: every later log line and the response carry the id
//  2. RealIP: X-Forwarded-For is resolved before anything logs the address
//  3. Metrics: wraps everything below, so a recovered panic still counts as a 500
//  4. Logger: one line per request with status and duration
//  5. Recoverer: turns a panic in a handler into a 500
//  6. CORS: answers browser preflights before they reach a route
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	catchHandler := handler.NewCatchHandler(s.catches, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Route("/catches", func(r chi.Router) {
		r.Get("/", catchHandler.HandleList)
		r.Post("/", catchHandler.HandleCreate)
		r.Get("/{id}", catchHandler.HandleGetByID)
		r.Put("/{id}", catchHandler.HandleUpdate)
		r.Delete("/{id}", catchHandler.HandleDelete)
	})
	s.router.Get("/stats", catchHandler.HandleStats)
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully:
// stop accepting connections, let in-flight requests finish, close the
// database.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
