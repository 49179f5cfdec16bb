package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camden-git/acnesense/config"
	"github.com/camden-git/acnesense/database"
	"github.com/camden-git/acnesense/handlers"
	"github.com/camden-git/acnesense/media"
	"github.com/camden-git/acnesense/metrics"
	"github.com/camden-git/acnesense/realtime"
	"github.com/camden-git/acnesense/repository"
	"github.com/camden-git/acnesense/services"
	"github.com/camden-git/acnesense/workers"
)

func main() {
	startedAt := time.Now()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitGormDB(cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		LogQueries:   cfg.DatabaseLogging,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	store, err := newMediaStore(ctx, cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	processor := media.NewProcessor(store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		log.Fatalf("FATAL: Failed to register metrics: %v", err)
	}

	hub := realtime.NewHub(cfg.CORSAllowedOrigins...)
	go hub.Run(ctx)

	userRepo := repository.NewGormUserRepository(db)
	historyRepo := repository.NewGormHistoryRepository(db, cfg.DatabaseDriver)

	archiver := workers.NewCaptureArchiver(historyRepo, processor, hub, pipelineMetrics,
		cfg.ThumbnailMaxSize, cfg.ArchiveQueueSize, cfg.NumArchiveWorkers)

	detectionService := services.NewDetectionService(historyRepo, store, archiver, hub, pipelineMetrics, cfg.ReportCacheTTL)

	router := handlers.NewRouter(handlers.RouterDeps{
		Users:          userRepo,
		Tokens:         handlers.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpirationHours),
		Detections:     detectionService,
		Store:          store,
		Hub:            hub,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		StartedAt:      startedAt,
		SecureCookie:   cfg.CookieSecure,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (db=%s, media=%s)", cfg.Port, cfg.DatabaseDriver, cfg.MediaBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	archiver.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server stopped")
}

func newMediaStore(ctx context.Context, cfg config.Config) (media.Store, error) {
	subDirs := map[media.AssetType]string{
		media.AssetTypeCapture:   cfg.CapturesSubDir,
		media.AssetTypeThumbnail: cfg.ThumbnailsSubDir,
	}

	if cfg.MediaBackend == config.MediaBackendMinIO {
		return media.NewMinIOStorage(ctx, media.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		}, subDirs)
	}

	return media.NewLocalStorage(cfg.MediaStoragePath, subDirs)
}
