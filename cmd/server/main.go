package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	monitorapp "github.com/syncbridge/backend/internal/application/monitor"
	syncapp "github.com/syncbridge/backend/internal/application/sync"
	webhookapp "github.com/syncbridge/backend/internal/application/webhook"
	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/notify"
	"github.com/syncbridge/backend/internal/infrastructure/persistence"
	"github.com/syncbridge/backend/internal/infrastructure/providers"
	"github.com/syncbridge/backend/internal/infrastructure/scheduler"
	"github.com/syncbridge/backend/internal/infrastructure/storage"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
	"github.com/syncbridge/backend/internal/interfaces/http/handler"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
	"github.com/syncbridge/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SyncBridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Root context for background workers, cancelled on shutdown
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	credentialRepo := persistence.NewGormCredentialRepository(db.DB)
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	healthCheckRepo := persistence.NewGormHealthCheckRepository(db.DB)
	recordStore := persistence.NewGormExternalRecordStore(db.DB)

	// Telemetry: tracing, metrics, logs, profiling
	var (
		tracerProvider *telemetry.TracerProvider
		meterProvider  *telemetry.MeterProvider
		loggerProvider *telemetry.LoggerProvider
		engineMetrics  *telemetry.EngineMetrics
	)
	if cfg.Telemetry.Enabled {
		tracerProvider, err = telemetry.NewTracerProvider(rootCtx, telemetry.Config{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
			SpanProfiles:      cfg.Telemetry.ProfilerEnabled,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize tracer provider", zap.Error(err))
		}

		meterProvider, err = telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize meter provider", zap.Error(err))
		}

		engineMetrics, err = telemetry.NewEngineMetrics(telemetry.EngineMetricsConfig{
			Meter:  meterProvider.Meter("syncbridge.engine"),
			Logger: log,
			BacklogProvider: &engineBacklog{
				integrations:  integrationRepo,
				webhookEvents: webhookEventRepo,
				stuckDelay:    cfg.Monitor.StuckWebhookDelay,
			},
		})
		if err != nil {
			log.Fatal("Failed to initialize engine metrics", zap.Error(err))
		}
		engineMetrics.StartPeriodicCollection(rootCtx, 5*time.Minute)

		loggerProvider, err = telemetry.NewLoggerProvider(rootCtx, telemetry.LogsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize logger provider", zap.Error(err))
		}
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
		})
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))

		// GORM spans and query/pool metrics
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			SlowQueryThresh:  200 * time.Millisecond,
			DBSystem:         "postgresql",
			WithoutVariables: true,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
		if _, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log); err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		}

		log.Info("Telemetry initialized", zap.String("endpoint", cfg.Telemetry.CollectorEndpoint))
	}

	var profiler *telemetry.Profiler
	if cfg.Telemetry.ProfilerEnabled {
		profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:         true,
			ServerAddress:   cfg.Telemetry.ProfilerAddress,
			ApplicationName: cfg.App.Name,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize profiler", zap.Error(err))
		}
		log.Info("Continuous profiling enabled", zap.String("server", cfg.Telemetry.ProfilerAddress))
	}

	// Build provider adapters for every enabled provider
	var clients []integration.ProviderClient
	if cfg.Providers.Shopify.Enabled {
		shopify, err := providers.NewShopifyAdapter(&providers.ShopifyConfig{
			APIVersion:    cfg.Providers.Shopify.APIVersion,
			WebhookSecret: cfg.Providers.Shopify.WebhookSecret,
			PageSize:      cfg.Providers.Shopify.PageSize,
			Timeout:       cfg.Sync.RequestTimeout,
			MaxRetries:    cfg.Sync.MaxRetries,
		}, recordStore)
		if err != nil {
			log.Fatal("Failed to initialize Shopify adapter", zap.Error(err))
		}
		clients = append(clients, shopify)
	}
	if cfg.Providers.Amazon.Enabled {
		amazon, err := providers.NewAmazonAdapter(&providers.AmazonConfig{
			Endpoint:   cfg.Providers.Amazon.Endpoint,
			AuthURL:    cfg.Providers.Amazon.AuthURL,
			PageSize:   cfg.Providers.Amazon.PageSize,
			Timeout:    cfg.Sync.RequestTimeout,
			MaxRetries: cfg.Sync.MaxRetries,
		}, recordStore)
		if err != nil {
			log.Fatal("Failed to initialize Amazon adapter", zap.Error(err))
		}
		clients = append(clients, amazon)
	}
	if cfg.Providers.QuickBooks.Enabled {
		quickbooks, err := providers.NewQuickBooksAdapter(&providers.QuickBooksConfig{
			Endpoint:        cfg.Providers.QuickBooks.Endpoint,
			AuthURL:         cfg.Providers.QuickBooks.AuthURL,
			MinorVersion:    cfg.Providers.QuickBooks.MinorVersion,
			WebhookVerifier: cfg.Providers.QuickBooks.WebhookVerifier,
			PageSize:        cfg.Providers.QuickBooks.PageSize,
			Timeout:         cfg.Sync.RequestTimeout,
			MaxRetries:      cfg.Sync.MaxRetries,
		}, recordStore)
		if err != nil {
			log.Fatal("Failed to initialize QuickBooks adapter", zap.Error(err))
		}
		clients = append(clients, quickbooks)
	}

	registry, err := providers.NewStaticRegistry(clients...)
	if err != nil {
		log.Fatal("Failed to build provider registry", zap.Error(err))
	}
	log.Info("Provider registry built", zap.Int("providers", len(clients)))

	// TTL stores for webhook dedup and alert cooldown. Redis keeps both
	// consistent across replicas; the in-memory store is the single-node
	// fallback.
	var (
		dedupStore    shared.TTLStore
		cooldownStore shared.TTLStore
	)
	if cfg.Redis.Enabled {
		dedupStore, err = cache.NewRedisTTLStore(cfg.Redis, "webhook:dedup:")
		if err != nil {
			log.Fatal("Failed to connect to Redis for webhook dedup", zap.Error(err))
		}
		cooldownStore, err = cache.NewRedisTTLStore(cfg.Redis, "alert:cooldown:")
		if err != nil {
			log.Fatal("Failed to connect to Redis for alert cooldown", zap.Error(err))
		}
		log.Info("Redis TTL stores initialized", zap.String("addr", cfg.Redis.Addr()))
	} else {
		dedupStore = cache.NewInMemoryTTLStore()
		cooldownStore = cache.NewInMemoryTTLStore()
		log.Info("Using in-memory TTL stores")
	}

	// Application services
	orchestrator := syncapp.NewOrchestrator(credentialRepo, integrationRepo, syncLogRepo, registry, cfg.Sync, log)
	webhookService := webhookapp.NewService(webhookEventRepo, registry, dedupStore, cfg.Webhook, log)

	var notifier integration.Notifier
	if cfg.Monitor.NotifyURL != "" {
		webhookNotifier, err := notify.NewWebhookNotifier(cfg.Monitor.NotifyURL, log)
		if err != nil {
			log.Fatal("Failed to initialize alert notifier", zap.Error(err))
		}
		notifier = webhookNotifier
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	var archiver monitorapp.EventArchiver
	if cfg.Storage.Enabled {
		s3Archiver, err := storage.NewS3EventArchiver(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize event archiver", zap.Error(err))
		}
		archiver = s3Archiver
		log.Info("S3 event archiver initialized", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		archiver = storage.NewNoopEventArchiver(log)
	}

	monitorService := monitorapp.NewService(
		integrationRepo,
		credentialRepo,
		syncLogRepo,
		healthCheckRepo,
		webhookEventRepo,
		registry,
		orchestrator,
		webhookService,
		notifier,
		cooldownStore,
		archiver,
		cfg.Monitor,
		cfg.Webhook,
		log,
	)

	// Periodic monitoring cycle
	monitorTrigger := scheduler.NewMonitorTrigger(cfg.Monitor, monitorService, log)
	if cfg.Monitor.Enabled {
		if err := monitorTrigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start monitor trigger", zap.Error(err))
		}
		log.Info("Monitor trigger started", zap.Duration("interval", cfg.Monitor.CycleInterval))
	}

	// HTTP handlers
	systemHandler := handler.NewSystemHandler()
	webhookHandler := handler.NewWebhookHandler(webhookService)
	integrationHandler := handler.NewIntegrationHandler(credentialRepo, integrationRepo, syncLogRepo, orchestrator)
	monitorHandler := handler.NewMonitorHandler(monitorService, monitorTrigger)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Tracing and request metrics (if telemetry enabled)
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanAnnotations())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Telemetry.ProfilerEnabled {
		engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   true,
			SkipPaths: []string{"/health", "/api/v1/ping"},
		}))
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Provider webhook endpoints. These are called directly by the external
	// platforms, carry their own signature verification and stay outside
	// the versioned API.
	engine.POST("/webhooks/:provider", webhookHandler.Receive)

	// Versioned API
	router.Mount(engine, "v1", router.Handlers{
		Integrations: integrationHandler,
		Monitor:      monitorHandler,
		System:       systemHandler,
	})

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop background workers after the listener is drained
	if cfg.Monitor.Enabled {
		if err := monitorTrigger.Stop(ctx); err != nil {
			log.Error("Monitor trigger shutdown failed", zap.Error(err))
		}
	}
	rootCancel()

	if engineMetrics != nil {
		engineMetrics.Stop()
	}
	if meterProvider != nil {
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Meter provider shutdown failed", zap.Error(err))
		}
	}
	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Error("Logger provider shutdown failed", zap.Error(err))
		}
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Tracer provider shutdown failed", zap.Error(err))
		}
	}
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Error("Profiler shutdown failed", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// engineBacklog feeds the periodic engine gauges from the repositories.
type engineBacklog struct {
	integrations  integration.IntegrationRepository
	webhookEvents integration.WebhookEventRepository
	stuckDelay    time.Duration
}

func (b *engineBacklog) CountActiveIntegrations(ctx context.Context) (int64, error) {
	active, err := b.integrations.FindActive(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(active)), nil
}

func (b *engineBacklog) CountStuckWebhooks(ctx context.Context) (int64, error) {
	return b.webhookEvents.CountStuck(ctx, time.Now().Add(-b.stuckDelay))
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(c.Request.Context()); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
