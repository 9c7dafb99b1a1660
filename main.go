package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/credits"
	"vidscribe/handlers"
	"vidscribe/jobs"
	"vidscribe/logger"
	"vidscribe/media"
	"vidscribe/models"
	"vidscribe/notify"
	"vidscribe/queue"
	"vidscribe/ratelimit"
	"vidscribe/repository/sqlite"
	"vidscribe/storage"
	"vidscribe/summary"
	"vidscribe/transcribe"
)

const notifyCallbacksPerSecond = 10

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLog, err := logger.Init(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := sqlite.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	jobRepo := sqlite.NewJobRepository(db)
	ledgerRepo := sqlite.NewLedgerRepository(db)

	// Pricing and ledger
	pricing, err := credits.NewPricing(cfg.Credits)
	if err != nil {
		log.Fatalf("Invalid credit configuration: %v", err)
	}
	ledger := credits.NewLedger(ledgerRepo, cfg.Credits.FreeTierCap, appLog)

	// Media adapters
	prober := media.NewProber(cfg.Media, appLog)
	downloader := media.NewDownloader(cfg.Media, appLog)
	chunker := media.NewChunker(cfg.Media, appLog)

	// Rate tracker for the remote engine: in-memory for a single
	// node, Redis-backed when the worker fleet shares a queue.
	var tracker ratelimit.Tracker
	if cfg.Queue.RedisAddr != "" {
		trackerClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
		})
		defer trackerClient.Close()
		tracker = ratelimit.NewRedisTracker(
			trackerClient,
			"vidscribe:remote",
			cfg.Remote.HourlySecondsLimit,
			cfg.Remote.DailySecondsLimit,
		)
	} else {
		tracker = ratelimit.NewMemoryTracker(cfg.Remote.HourlySecondsLimit, cfg.Remote.DailySecondsLimit)
	}

	// Transcription engines and acquisition strategies
	localEngine := transcribe.NewLocalEngine(cfg.Media, appLog)
	remoteEngine := transcribe.NewRemoteEngine(cfg.Remote, tracker, chunker, appLog)

	strategies := map[models.Quality]jobs.Strategy{
		models.QualityCaptionFirst: jobs.NewCaptionStrategy(downloader, "en"),
		models.QualityStandard:     jobs.NewAudioStrategy(downloader, localEngine, cfg.TempDir, appLog),
		models.QualityPremium:      jobs.NewAudioStrategy(downloader, remoteEngine, cfg.TempDir, appLog),
	}

	// Artifact storage
	store, err := newStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	notifier := notify.NewNotifier(cfg.ReadTimeout, notifyCallbacksPerSecond, appLog)

	jobService := jobs.NewService(jobRepo, ledger, pricing, prober, strategies, store, notifier, appLog)

	// Work queue and worker pool
	workCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	workQueue, err := newQueue(workCtx, cfg.Queue, appLog)
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	defer workQueue.Close()

	pool := jobs.NewWorkerPool(workQueue, jobService, cfg.Queue.WorkerCount, appLog)
	pool.Start(workCtx)

	// Derived-content service
	generator := summary.NewOpenAIGenerator(cfg.Summary, appLog)
	summaryService := summary.NewService(jobRepo, ledger, pricing, generator, appLog)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: !cfg.Debug,
		StrictRouting:         true,
		CaseSensitive:         true,
		AppName:               "vidscribe " + cfg.Version,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Debug}))
	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))
	app.Use(compress.New())

	// Routes
	jobHandler := handlers.NewJobHandler(jobService, workQueue)
	creditHandler := handlers.NewCreditHandler(ledger)
	summaryHandler := handlers.NewSummaryHandler(summaryService)

	app.Post("/api/jobs", jobHandler.Submit)
	app.Get("/api/jobs/:id", jobHandler.Get)
	app.Post("/api/jobs/:id/summary", summaryHandler.Summarize)
	app.Post("/api/jobs/:id/content-ideas", summaryHandler.ContentIdeas)
	app.Get("/api/credits", creditHandler.Balance)
	app.Get("/api/credits/history", creditHandler.History)

	app.Get("/health", handlers.HealthCheck(cfg.Version))

	// Graceful shutdown setup
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		appLog.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			appLog.WithError(err).Error("Server shutdown error")
		}

		stopWorkers()
		waitWithTimeout(pool, cfg.ShutdownTimeout, appLog)
	}()

	serverAddr := ":" + cfg.ServerPort
	if cfg.Debug {
		appLog.Infof("Server starting on http://localhost%s", serverAddr)
	}

	if err := app.Listen(serverAddr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Mode == "s3" {
		return storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			PublicURL: cfg.PublicURL,
		})
	}
	return storage.NewLocalStore(cfg.LocalDir, cfg.PublicURL)
}

func newQueue(ctx context.Context, cfg config.QueueConfig, log *logrus.Logger) (queue.Queue, error) {
	if cfg.RedisAddr != "" {
		return queue.NewRedisQueue(ctx, cfg, log)
	}
	return queue.NewMemoryQueue(cfg.MaxQueueSize), nil
}

func waitWithTimeout(pool *jobs.WorkerPool, timeout time.Duration, log *logrus.Logger) {
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("Workers did not drain before shutdown timeout")
	}
}
