package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/assets"
	"github.com/HammerMeetNail/ficarchive-web/internal/blockapi"
	"github.com/HammerMeetNail/ficarchive-web/internal/blocking"
	"github.com/HammerMeetNail/ficarchive-web/internal/config"
	"github.com/HammerMeetNail/ficarchive-web/internal/database"
	"github.com/HammerMeetNail/ficarchive-web/internal/handlers"
	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/middleware"
	"github.com/HammerMeetNail/ficarchive-web/internal/services"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.Debug {
		level = logging.LevelDebug
	}
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	logger.Info("Starting archive web server...", map[string]interface{}{
		"env":     cfg.Server.Environment,
		"archive": cfg.Archive.BaseURL,
	})

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	version, err := database.Migrate(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("Database schema ready", map[string]interface{}{
		"version": version,
	})

	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	// Services
	sessionService := services.NewSessionService(
		database.NewPoolAdapter(db.Pool),
		database.NewRedisAdapter(redisDB.Client),
		cfg.Server.SessionTTL,
	)
	archive := blockapi.NewClient(cfg.Archive.BaseURL, cfg.Archive.Timeout)
	registry := blocking.NewRegistry(archive, cfg.Block.DefaultReason)

	manifest := assets.NewManifest(".")
	if err := manifest.Load(); err != nil {
		logger.Warn("Asset manifest unavailable; using unhashed paths", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Handlers
	pageHandler, err := handlers.NewPageHandler("web/templates", registry, manifest)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	controlHandler := handlers.NewControlHandler(registry, pageHandler.Templates())
	sessionHandler := handlers.NewSessionHandler(sessionService, cfg.Server.Secure, cfg.Server.SessionTTL)
	healthHandler := handlers.NewHealthHandler(registry,
		handlers.NamedCheck{Name: "postgres", Checker: db},
		handlers.NamedCheck{Name: "redis", Checker: redisDB},
	)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(sessionService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Secure)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	cacheControl := middleware.NewCacheControl()
	compress := middleware.NewCompress()
	requestLogger := middleware.NewRequestLogger(logger)
	blockLimiter := middleware.NewBlockActionRateLimiter(redisDB.Client, cfg.Block.RateLimit)

	limited := func(h http.HandlerFunc) http.Handler {
		return blockLimiter.Middleware(h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	mux.HandleFunc("GET /api/csrf", csrfMiddleware.GetToken)

	mux.HandleFunc("GET /api/session", sessionHandler.Current)
	mux.HandleFunc("POST /api/session", sessionHandler.Create)
	mux.HandleFunc("DELETE /api/session", sessionHandler.Delete)

	// Block controls
	mux.HandleFunc("POST /api/controls", controlHandler.Mount)
	mux.HandleFunc("GET /api/controls/{id}", controlHandler.Get)
	mux.HandleFunc("DELETE /api/controls/{id}", controlHandler.Unmount)
	mux.Handle("POST /api/controls/{id}/trigger", blockLimiter.MiddlewareUnless(controlHandler.OpensDialog, http.HandlerFunc(controlHandler.Trigger)))
	mux.HandleFunc("POST /api/controls/{id}/cancel", controlHandler.Cancel)
	mux.Handle("POST /api/controls/{id}/select", limited(controlHandler.Select))
	mux.Handle("POST /api/controls/{id}/refresh", limited(controlHandler.Refresh))
	mux.HandleFunc("POST /api/controls/{id}/dismiss", controlHandler.DismissAlert)

	fs := http.FileServer(http.Dir("web/static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	mux.HandleFunc("GET /{$}", pageHandler.Index)
	mux.HandleFunc("GET /users/{username}", pageHandler.Profile)
	mux.HandleFunc("/", pageHandler.NotFound)

	// Outermost first: logger, security, compress, cache, csrf, auth.
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = cacheControl.Apply(handler)
	handler = compress.Apply(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Archive calls may take up to the client timeout.
		WriteTimeout: cfg.Archive.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweep(sweepCtx, logger, registry, sessionService, cfg.Block.IdleTTL)

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")
		stopSweeper()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// sweep drops abandoned controls and expired sessions until ctx is done.
func sweep(ctx context.Context, logger *logging.Logger, registry *blocking.Registry, sessions sessionPurger, idleTTL time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, logger, registry, sessions, idleTTL)
		}
	}
}

func sweepOnce(ctx context.Context, logger *logging.Logger, registry *blocking.Registry, sessions sessionPurger, idleTTL time.Duration) {
	if removed := registry.Sweep(idleTTL); removed > 0 {
		logger.Debug("Swept idle block controls", map[string]interface{}{
			"removed": removed,
			"mounted": registry.Len(),
		})
	}

	purged, err := sessions.PurgeExpired(ctx)
	if err != nil {
		logger.Warn("Purging expired sessions failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if purged > 0 {
		logger.Debug("Purged expired sessions", map[string]interface{}{
			"purged": purged,
		})
	}
}
