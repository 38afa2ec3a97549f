package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/time/rate"

	"alfredoptarigan/job-matcher/internal/config"
	"alfredoptarigan/job-matcher/internal/handlers"
	"alfredoptarigan/job-matcher/internal/repositories"
	"alfredoptarigan/job-matcher/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	ctx := context.Background()

	// Run archive
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	var runRepo repositories.RunRepository
	if db != nil {
		runRepo = repositories.NewRunRepository(db)
	} else {
		runRepo = repositories.NewMemoryRunRepository()
	}
	log.Println("✅ Repositories initialized successfully")

	// Export storage
	exportStore, err := newExportStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize export storage: %v", err)
	}
	if err := exportStore.EnsureReady(ctx); err != nil {
		log.Fatalf("❌ Export storage is not ready: %v", err)
	}

	// Ingestion
	cleaner := services.NewHTMLCleaner()
	pdfParser := services.NewPDFParserService()
	profileParser := services.NewProfileParserService(pdfParser, cfg.Storage.MaxFileSize)
	csvParser := services.NewCSVParserService(cleaner)
	log.Println("✅ Services initialized successfully")

	// Analysis
	analyzer, err := newAnalyzer(ctx, cfg, cleaner)
	if err != nil {
		log.Fatalf("❌ Failed to initialize analyzer: %v", err)
	}
	orchestrator := services.NewOrchestrator(analyzer, cfg.Analysis.RunConcurrency)
	log.Printf("✅ Analyzer initialized (%s backend)\n", cfg.Analysis.Backend)

	// Run events
	var publisher services.EventPublisher
	if cfg.Broker.RabbitMQURL != "" {
		publisher, err = services.NewAMQPPublisher(cfg.Broker.RabbitMQURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to RabbitMQ: %v", err)
		}
		log.Println("✅ RabbitMQ publisher connected")
	}
	hub := services.NewEventHub(publisher)

	// Initialize worker
	worker := services.NewWorker(orchestrator, runRepo, exportStore, hub, services.WorkerOptions{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
		RunTTL:      cfg.Worker.RunTTL,
	})
	worker.Start(ctx)

	// Initialize Handlers
	uploadHandler := handlers.NewUploadHandler(profileParser, csvParser, cfg.Storage.MaxFileSize)
	analyzeHandler := handlers.NewAnalyzeHandler(analyzer)
	runHandler := handlers.NewRunHandler(worker, runRepo, uploadHandler)
	eventsHandler := handlers.NewEventsHandler(worker, 15*time.Second)
	log.Println("✅ Handlers initialized")

	app := fiber.New(fiber.Config{
		AppName:      "Job Matcher API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Analysis.Timeout + 30*time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) * 2,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.RegisterRoutes(app, handlers.Routes{
		Upload:  uploadHandler,
		Analyze: analyzeHandler,
		Runs:    runHandler,
		Events:  eventsHandler,
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		worker.Stop()
		if err := hub.Close(); err != nil {
			log.Printf("⚠️  Failed to close event hub: %v", err)
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func newAnalyzer(ctx context.Context, cfg *config.Config, cleaner services.HTMLCleaner) (services.Analyzer, error) {
	if cfg.Analysis.Backend == "http" {
		return services.NewHTTPAnalyzer(cfg.Analysis.RemoteURL, nil, cfg.Analysis.Timeout), nil
	}

	var (
		llm services.LLMService
		err error
	)
	switch cfg.LLM.Provider {
	case "openai":
		llm, err = services.NewOpenAIService(services.OpenAIOptions{
			APIKey:      cfg.LLM.OpenAIAPIKey,
			BaseURL:     cfg.LLM.OpenAIBaseURL,
			Model:       cfg.LLM.OpenAIModel,
			Temperature: float32(cfg.LLM.Temperature),
			MaxTokens:   cfg.LLM.MaxOutputTokens,
		})
	default:
		llm, err = services.NewGeminiService(ctx, services.GeminiOptions{
			APIKey:          cfg.LLM.GeminiAPIKey,
			Model:           cfg.LLM.GeminiModel,
			Temperature:     float32(cfg.LLM.Temperature),
			MaxOutputTokens: int32(cfg.LLM.MaxOutputTokens),
		})
	}
	if err != nil {
		return nil, err
	}

	prompts, err := services.NewPromptBuilder(cleaner)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Analysis.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Analysis.RatePerMinute)), max(cfg.Analysis.Burst, 1))
	}

	return services.NewLLMAnalyzer(llm, prompts, limiter, cfg.Analysis.Timeout), nil
}

func newExportStore(ctx context.Context, cfg *config.Config) (services.ExportStore, error) {
	if cfg.Storage.Backend == "s3" {
		return services.NewS3ExportStore(ctx, services.S3Options{
			Bucket:    cfg.Storage.S3Bucket,
			Prefix:    cfg.Storage.S3Prefix,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
		})
	}
	return services.NewLocalExportStore(cfg.Storage.ExportPath), nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
