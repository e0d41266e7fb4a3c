// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server and the
// in-process reminder runner.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB → BlockService, AuthService → handlers → chi router
//	                          ↘ notify.Notifier → reminder.Job → ReminderHandler, Runner
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/quiet-hours/internal/auth"
	"github.com/sakif/quiet-hours/internal/config"
	"github.com/sakif/quiet-hours/internal/handler"
	"github.com/sakif/quiet-hours/internal/middleware"
	"github.com/sakif/quiet-hours/internal/notify"
	"github.com/sakif/quiet-hours/internal/reminder"
	sqliteRepo "github.com/sakif/quiet-hours/internal/repository/sqlite"
	"github.com/sakif/quiet-hours/internal/service"
	"github.com/sakif/quiet-hours/internal/web"
)

const (
	shutdownTimeout = 30 * time.Second
	reminderPath    = "/functions/send-study-reminders"
)

// Server owns the database connection, the router and the reminder job.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	job    *reminder.Job
}

// New opens the database and wires every route. The caller must eventually
// call Start (which closes the database on exit) or Close.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	job, err := NewReminderJob(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		job:    job,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// OpenDB creates the database directory if needed, then opens and migrates
// the database.
func OpenDB(path string) (*sqliteRepo.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// NewNotifier builds the email channel selected by cfg.Notifier.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierConsole:
		return notify.NewConsole(cfg.FromAddress(), logger), nil
	case config.NotifierSendGrid:
		return notify.NewSendGrid(cfg.SendGridAPIKey, cfg.FromAddress()), nil
	case config.NotifierResend:
		return notify.NewResend(cfg.ResendAPIKey, cfg.FromAddress()), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// NewReminderJob builds the dispatch job over db with the configured
// notifier. The serve and remind commands share it.
func NewReminderJob(cfg *config.Config, db *sqliteRepo.DB, logger *slog.Logger) (*reminder.Job, error) {
	notifier, err := NewNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	return reminder.NewJob(db, notifier, logger, reminder.Options{
		Concurrency: cfg.DispatchConcurrency,
		Location:    cfg.Location(),
	}), nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and routes.
//
// ROUTES:
//
//	GET     /                                  dashboard (HTML)
//	GET     /static/*                          embedded CSS and JS
//	POST    /auth/register | /auth/login | /auth/logout
//	GET     /auth/github/login | /auth/github/callback   (only when configured)
//	GET     /api/me                            (auth)
//	*       /api/blocks...                     (auth)
//	OPTIONS /functions/send-study-reminders    CORS preflight
//	POST    /functions/send-study-reminders    (bearer token when configured)
//
// Global middleware runs in order: RequestID, RealIP, Logger, Recoverer.
// Logger sits outside Recoverer so recovered panics are logged as 500s.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, auth.DefaultSessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	blockService := service.NewBlockService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	blockHandler := handler.NewBlockHandler(blockService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.config.CookieSecure, s.logger)
	reminderHandler := handler.NewReminderHandler(s.job, s.logger)
	dashboardHandler, err := handler.NewDashboardHandler(web.Templates(), blockService, authService,
		github != nil, s.config.Location(), s.logger)
	if err != nil {
		return fmt.Errorf("creating dashboard handler: %w", err)
	}

	// === Pages ===
	fileServer := http.FileServer(http.FS(web.Static()))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	s.router.With(auth.OptionalAuth(tokens)).Get("/", dashboardHandler.HandleDashboard)

	// === Auth ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/me", authHandler.HandleMe)

		r.Route("/blocks", func(r chi.Router) {
			r.Get("/", blockHandler.HandleList)
			r.Post("/", blockHandler.HandleCreate)
			r.Get("/stats", blockHandler.HandleStats)
			r.Get("/{id}", blockHandler.HandleGet)
			r.Put("/{id}", blockHandler.HandleUpdate)
			r.Delete("/{id}", blockHandler.HandleDelete)
		})
	})

	// === Reminder trigger ===
	// CORS headers go on every response, including 401s, so browser-based
	// schedulers can read the error.
	s.router.Route(reminderPath, func(r chi.Router) {
		r.Use(chimiddleware.SetHeader("Access-Control-Allow-Origin", "*"))
		r.Use(chimiddleware.SetHeader("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type"))
		r.Options("/", reminderHandler.HandlePreflight)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer(s.config.DispatchToken))
			r.Post("/", reminderHandler.HandleDispatch)
			r.Get("/", reminderHandler.HandleDispatch)
		})
	})

	return nil
}

// Start runs the HTTP server, and the reminder runner when a dispatch
// interval is configured, until SIGINT or SIGTERM.
//
// SHUTDOWN ORDER:
//  1. Stop accepting connections and drain in-flight requests (30s)
//  2. Stop the runner and wait for a run in progress
//  3. Close the database
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a dispatch invocation sends email inline
		IdleTimeout:  60 * time.Second,
	}

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	if s.config.DispatchInterval > 0 {
		runner := reminder.NewRunner(s.job, s.config.DispatchInterval, s.logger)
		go func() {
			defer close(runnerDone)
			runner.Start(runnerCtx)
		}()
	} else {
		close(runnerDone)
		s.logger.Info("in-process reminder runner disabled",
			slog.String("trigger", "POST "+reminderPath))
	}
	defer func() {
		stopRunner()
		<-runnerDone
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("notifier", s.config.Notifier),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
