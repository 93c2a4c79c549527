// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where the
// whole dependency chain is assembled in one place:
//
//	sqlite.DB ──────────────┐
//	session store ─┐        │
//	               ▼        ▼
//	session.Manager    AuthService ◀── PasswordHasher
//	       │                │
//	       ▼                ▼
//	session.Middleware   handlers ──▶ routes
//
// Each layer only receives what it needs: the service gets the
// repository interface (not the concrete sqlite.DB), handlers get the
// service (never the database).
package server

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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/securelearn/dashboard/internal/auth"
	"github.com/securelearn/dashboard/internal/config"
	"github.com/securelearn/dashboard/internal/handler"
	"github.com/securelearn/dashboard/internal/middleware"
	sqliteRepo "github.com/securelearn/dashboard/internal/repository/sqlite"
	"github.com/securelearn/dashboard/internal/service"
	"github.com/securelearn/dashboard/internal/session"
)

// Server owns the router and the resources that need closing on
// shutdown: the SQLite pool and, when configured, the Redis client.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client // nil when the in-memory session store is used
}

// New assembles the full dependency graph.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Session store: in-process by default, Redis when the deployment
	// runs more than one instance.
	var store session.Store
	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := s.redis.Ping(context.Background()).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		store = session.NewRedisStore(s.redis)
		logger.Info("using redis session store", slog.String("addr", cfg.RedisAddr))
	} else {
		store = session.NewMemoryStore()
	}

	if err := s.setupRoutes(store); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes wires middleware, handlers, and URL patterns.
//
// ROUTE STRUCTURE:
//
//	GET  /           → redirect by session state
//	GET  /login      → login form          POST /login    → credential check
//	GET  /register   → registration form   POST /register → account creation
//	POST /logout     → session destruction
//	GET  /dashboard  → protected page
//	GET  /stats      → protected page
//
// MIDDLEWARE ORDER MATTERS: RequestID/RealIP/Recoverer first, then
// logging, then security headers, then the session layer — by the time
// a handler runs, the request is traced, logged, hardened, and carries
// a live session.
func (s *Server) setupRoutes(store session.Store) error {
	sessions := session.NewManager(store, s.config.IdleThreshold, s.config.Lifetime, s.logger)
	cookies := session.NewCookieWriter(s.config.CookieSecure)
	sessionMW := session.NewMiddleware(sessions, cookies, s.logger)

	hasher := auth.NewPasswordHasher()
	authService, err := service.NewAuthService(s.db, hasher, sessions, s.logger)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	renderer, err := handler.NewRenderer(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	pages := handler.NewPageHandler(renderer, s.logger)
	authHandler := handler.NewAuthHandler(authService, sessions, cookies, renderer, s.logger)

	// Global middleware — every request, in order.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(sessionMW.Ensure)

	s.router.Get("/", pages.HandleIndex)
	s.router.Get("/login", pages.HandleLoginPage)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/register", pages.HandleRegisterPage)
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/logout", authHandler.HandleLogout)

	// Protected pages assert authentication via the session middleware;
	// failures redirect to /login rather than erroring.
	s.router.Group(func(r chi.Router) {
		r.Use(sessionMW.RequireAuthenticated)
		r.Get("/dashboard", pages.HandleDashboard)
		r.Get("/stats", pages.HandleStats)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests
// (30s), close the database and Redis client.
func (s *Server) Start() error {
	defer s.closeResources()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) closeResources() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}
