package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vivi-tora/mfc/internal/cache"
	"github.com/vivi-tora/mfc/internal/config"
	"github.com/vivi-tora/mfc/internal/handler"
	"github.com/vivi-tora/mfc/internal/metrics"
	"github.com/vivi-tora/mfc/internal/middleware"
	"github.com/vivi-tora/mfc/internal/repository"
	"github.com/vivi-tora/mfc/internal/router"
	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/internal/signer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting MFC availability service...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Open the log store once; it is shared by the submitter and the log API
	store, err := openLogStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize log store: %v", err)
	}
	log.Printf("Log store initialized (%s)", cfg.LogStore.Type)

	// Progress cache
	var progressCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Redis cache: %v", err)
		}
		progressCache = rc
	default:
		progressCache = cache.NewMemoryCache(0)
		log.Println("Memory cache initialized")
	}

	if cfg.MFC.PublicKey == "" || cfg.MFC.PrivateKey == "" {
		log.Println("Warning: MFC_PUBLIC_KEY / MFC_PRIVATE_KEY not set; submissions will be rejected")
	}

	// Initialize services
	m := metrics.New()
	submitter := service.NewSubmitter(service.SubmitterConfig{
		Endpoint: cfg.MFC.Endpoint,
		Timeout:  cfg.MFC.RequestTimeout,
	}, store, m)
	batches := service.NewBatchService(submitter, progressCache, service.BatchConfig{
		Credentials: signer.Credentials{
			PublicKey:  cfg.MFC.PublicKey,
			PrivateKey: cfg.MFC.PrivateKey,
		},
		ProgressTTL: cfg.Cache.TTL,
	}, m)

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version,
		handler.NamedPinger{Name: "log_store", Pinger: store},
		handler.NamedPinger{Name: "cache", Pinger: progressCache},
	)

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: cfg.Security.Keys(),
	})
	if cfg.Security.AuthEnabled() {
		log.Printf("API key auth enabled (%d keys)", len(cfg.Security.Keys()))
	}

	// Create router
	r := router.New(router.Config{
		Handler:             healthHandler,
		AvailabilityHandler: handler.NewAvailabilityHandler(batches, cfg.Server.MaxUploadBytes),
		BatchHandler:        handler.NewBatchHandler(batches),
		LogsHandler:         handler.NewLogsHandler(store),
		AdminHandler:        handler.NewAdminHandler(batches, cfg.LogStore.Type, cfg.Cache.Type),
		AuthMiddleware:      authMiddleware,
		Metrics:             m,
		RateLimit:           cfg.Security.RateLimit,
		AllowedOrigins:      cfg.Security.AllowedOrigins,
		Production:          cfg.App.IsProduction(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Stop the running batch after its in-flight item, then release backends
	if err := batches.Shutdown(ctx); err != nil {
		log.Printf("Batch shutdown error: %v", err)
	}
	if err := progressCache.Close(); err != nil {
		log.Printf("Cache close error: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("Log store close error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

func openLogStore(cfg *config.Config) (repository.LogRepository, error) {
	switch cfg.LogStore.Type {
	case "sqlite":
		return repository.NewSQLLogRepository(repository.DialectSQLite, cfg.LogStore.SQLitePath)
	case "mysql":
		return repository.NewSQLLogRepository(repository.DialectMySQL, cfg.Database.DSN())
	case "postgres":
		return repository.NewSQLLogRepository(repository.DialectPostgres, cfg.Postgres.DSN())
	default:
		return repository.NewFileLogRepository(cfg.LogStore.Path, cfg.LogStore.Fsync)
	}
}
