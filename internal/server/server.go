// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer — the composition root where storage,
// services, and handlers are assembled and connected to routes. Keeping it
// out of main.go means a test can build the full server without running
// the binary, and main.go stays minimal.
//
// DEPENDENCY CHAIN:
//
//	sqlite.Store (key-value persistence)
//	  → ProfileService, PostService        (the stores)
//	  → builtin.Provider                   (email/password accounts)
//	  → SessionService                     (the session controller)
//	  → handlers                           (HTTP surface)
//
// Each layer receives interfaces or services, never the layer below that:
// handlers don't touch storage, services don't touch HTTP.
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

	"github.com/sakif/threadlite/internal/auth"
	"github.com/sakif/threadlite/internal/handler"
	"github.com/sakif/threadlite/internal/identity/builtin"
	"github.com/sakif/threadlite/internal/identity/github"
	"github.com/sakif/threadlite/internal/middleware"
	"github.com/sakif/threadlite/internal/service"
	"github.com/sakif/threadlite/internal/storage/sqlite"
)

// Config holds server configuration, loaded from the environment by main.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// GitHub OAuth is optional; when the client id is empty the OAuth
	// routes answer 404.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and every long-lived resource behind it. The
// store and the provider subscription are released during shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger

	store       *sqlite.Store
	unsubscribe func()
}

// New assembles the full dependency chain and wires the routes.
//
// STARTUP ORDER MATTERS:
// The stores rehydrate from the database before the first request —
// Load/Restore run here, not lazily — so a half-initialized service can
// never serve a request.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes builds the services and binds them to URLs.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/register        → create account + sign in
//	POST   /api/auth/login           → sign in
//	POST   /api/auth/logout          → sign out
//	POST   /api/auth/reset           → request password reset
//	GET    /api/auth/me              → current user (or 401)
//	GET    /auth/github/login        → redirect to GitHub
//	GET    /auth/github/callback     → complete OAuth flow
//	GET    /api/posts                → list the feed
//	POST   /api/posts                → publish a post
//	POST   /api/posts/{id}/like      → toggle like
//	POST   /api/posts/{id}/comments  → add comment
//	PUT    /api/posts/{id}           → edit content
//	DELETE /api/posts/{id}           → delete post
//	GET    /api/search?q=            → search the feed
//	GET    /api/activity?filter=     → activity view
//	GET    /api/profile              → read profile
//	PUT    /api/profile              → edit name + bio
//	PUT    /api/profile/theme        → toggle dark mode
//	POST   /api/profile/avatar       → upload avatar
//	DELETE /api/profile/avatar       → remove avatar
//	POST   /api/uploads              → image → data URL
//
// Everything under /api except /api/auth requires a valid session cookie.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === SERVICES ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	profiles := service.NewProfileService(s.store, s.logger)
	if err := profiles.Load(); err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	posts := service.NewPostService(s.store, profiles, s.logger)
	if err := posts.Load(); err != nil {
		return fmt.Errorf("loading posts: %w", err)
	}
	activity := service.NewActivityService(posts)

	provider := builtin.New(s.store, auth.NewPasswordService(), s.logger)
	sessions := service.NewSessionService(provider, profiles, s.store, tokens, s.logger)
	s.unsubscribe = sessions.Start()
	if user, ok := sessions.Restore(); ok {
		s.logger.Info("resuming session", slog.String("username", user.Username))
	}

	var gh *github.Provider
	if s.config.GitHubClientID != "" {
		gh = github.New(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(sessions, gh, s.logger)
	postHandler := handler.NewPostHandler(posts, activity, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, s.logger)
	uploadHandler := handler.NewUploadHandler(s.logger)

	// === ROUTES ===
	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/reset", authHandler.HandlePasswordReset)
			r.Get("/me", authHandler.HandleMe)
		})

		// Everything below requires a session cookie
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/posts", postHandler.HandleList)
			r.Post("/posts", postHandler.HandleCreate)
			r.Post("/posts/{id}/like", postHandler.HandleLike)
			r.Post("/posts/{id}/comments", postHandler.HandleComment)
			r.Put("/posts/{id}", postHandler.HandleUpdate)
			r.Delete("/posts/{id}", postHandler.HandleDelete)
			r.Get("/search", postHandler.HandleSearch)
			r.Get("/activity", postHandler.HandleActivity)

			r.Get("/profile", profileHandler.HandleGet)
			r.Put("/profile", profileHandler.HandleUpdate)
			r.Put("/profile/theme", profileHandler.HandleTheme)
			r.Post("/profile/avatar", profileHandler.HandleAvatarUpload)
			r.Delete("/profile/avatar", profileHandler.HandleAvatarRemove)

			r.Post("/uploads", uploadHandler.HandleImage)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
//
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (30s timeout)
//  3. Drop the provider subscription and close the database
//
// Step 3 flushes the WAL and releases the file lock — skipping it can
// leave the last writes un-checkpointed.
func (s *Server) Start() error {
	defer s.store.Close()
	defer s.unsubscribe()

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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
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
