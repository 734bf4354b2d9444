package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convlogger/internal/config"
	"convlogger/internal/database"
	"convlogger/internal/handlers"
	"convlogger/internal/jobs"
	"convlogger/internal/logging"
	"convlogger/internal/middleware"
	"convlogger/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting ConvLogger Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Keyword lists for the lexical classifier, hot-reloaded on file change
	keywords := config.LoadKeywordsOrDefault(cfg.KeywordsFile)
	classifier := services.NewKeywordClassifier(keywords)

	// MongoDB is the durable tier and is required
	ctx := context.Background()
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongoDB.Initialize(ctx, cfg.RetentionDays); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
	}

	// Redis is the fast tier and is optional; without it the cascade runs
	// on MongoDB alone
	redisService, err := services.NewRedisService(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️ Redis unavailable, recent-records cache disabled: %v", err)
		redisService = nil
	}

	cache := services.NewTTLCache(cfg.QueryCacheTTL, cfg.CacheSweepInterval)
	pool := services.NewRequestPool(cfg.PoolMaxConcurrent, cfg.PoolCallTimeout)

	// Metrics must exist before the services capture them
	services.InitMetrics(pool)

	var recentRecords *services.RecentRecordCache
	var recentCache services.RecentCache
	var broadcaster services.InvalidationBroadcaster
	var pubsubService *services.PubSubService

	if redisService != nil {
		recentRecords = services.NewRecentRecordCache(redisService, cfg.RecentLimit, cfg.RecentTTL)
		recentCache = recentRecords

		pubsubService = services.NewPubSubService(redisService, cache, "")
		if err := pubsubService.Start(); err != nil {
			log.Printf("⚠️ Cache invalidation pub/sub disabled: %v", err)
			pubsubService = nil
		} else {
			broadcaster = pubsubService
		}
	}

	store := services.NewMongoRecordStore(mongoDB)
	recordService := services.NewRecordService(store, recentCache, cache, broadcaster, cfg.QueryCacheTTL)
	scorer := services.NewScorer(services.DefaultScoreConfig(), classifier)
	searchService := services.NewSearchService(recordService, scorer)
	sessionService := services.NewSessionService(store, recordService, classifier, scorer, cache, pool, cfg.SessionMetaTTL)
	dashboardService := services.NewDashboardService(store, cache, cfg.DashboardTTL)

	// Background jobs
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Printf("⚠️ Background jobs disabled: %v", err)
		scheduler = nil
	} else {
		snapshotJob := jobs.NewSnapshotRefreshJob(dashboardService)
		if err := scheduler.AddIntervalJob("dashboard-snapshot", time.Minute, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := snapshotJob.Run(jobCtx); err != nil {
				log.Printf("⚠️ Snapshot refresh failed: %v", err)
			}
		}); err != nil {
			log.Printf("⚠️ Snapshot job not scheduled: %v", err)
		}

		if cfg.RetentionEnabled {
			var flusher jobs.RecentFlusher
			if recentRecords != nil {
				flusher = recentRecords
			}
			retentionJob := jobs.NewRetentionJob(store, flusher, recordService, cfg.RetentionDays)
			if err := scheduler.AddCronJob("retention-cleanup", cfg.RetentionCron, func() {
				jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				defer cancel()
				if err := retentionJob.Run(jobCtx); err != nil {
					log.Printf("⚠️ Retention cleanup failed: %v", err)
				}
			}); err != nil {
				log.Printf("⚠️ Retention job not scheduled: %v", err)
			}
		}

		scheduler.Start()
	}

	// Hot-reload of the keyword lists
	go config.WatchKeywords(cfg.KeywordsFile, classifier.Reload)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ConvLogger v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
		BodyLimit:    5 * 1024 * 1024, // single records, not uploads
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("convlogger")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting
	rateLimitConfig := middleware.LoadRateLimitConfig()
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	log.Printf("🛡️  [RATE-LIMIT] Global=%d/min, Ingest=%d/min",
		rateLimitConfig.GlobalAPIMax, rateLimitConfig.IngestMax)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		// Default to localhost for development
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(store, redisService)
	recordHandler := handlers.NewRecordHandler(recordService)
	searchHandler := handlers.NewSearchHandler(searchService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	statsHandler := handlers.NewStatsHandler(dashboardService, pool, cache, scheduler)

	// Health check stays public
	app.Get("/health", healthHandler.Handle)

	if cfg.APIKey == "" {
		log.Println("⚠️  API_KEY not set, API authentication disabled")
	}
	api := app.Group("/api", middleware.APIKeyMiddleware(cfg.APIKey))

	api.Post("/log", middleware.IngestRateLimiter(rateLimitConfig), recordHandler.Ingest)
	api.Get("/conversations", recordHandler.Query)
	api.Get("/search", searchHandler.Search)
	api.Get("/sessions", sessionHandler.List)
	api.Get("/sessions/:id", sessionHandler.Describe)
	api.Get("/sessions/:id/export", recordHandler.Export)
	api.Get("/stats", statsHandler.Dashboard)
	api.Get("/stats/runtime", statsHandler.Runtime)

	log.Printf("🌐 Server starting on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	if scheduler != nil {
		log.Printf("🕐 Background jobs: dashboard snapshot (every 1m), retention cleanup (%s)", cfg.RetentionCron)
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if scheduler != nil {
			if err := scheduler.Stop(); err != nil {
				log.Printf("⚠️ Error stopping scheduler: %v", err)
			}
		}

		if pubsubService != nil {
			if err := pubsubService.Stop(); err != nil {
				log.Printf("⚠️ Error stopping PubSub: %v", err)
			}
		}

		pool.Close()

		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
