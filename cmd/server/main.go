package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zombar/denuncias/internal/analyzer"
	"github.com/zombar/denuncias/internal/api"
	"github.com/zombar/denuncias/internal/database"
	"github.com/zombar/denuncias/internal/export"
	"github.com/zombar/denuncias/internal/ollama"
	"github.com/zombar/denuncias/internal/privacy"
	"github.com/zombar/denuncias/internal/queue"
	"github.com/zombar/denuncias/pkg/logging"
	"github.com/zombar/denuncias/pkg/metrics"
	"github.com/zombar/denuncias/pkg/tracing"
)

func main() {
	// Load .env if present; real environment variables win
	godotenv.Load()

	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("denuncias service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer("denuncias")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	// Get default values from environment variables, with fallbacks
	portDefault := getEnv("PORT", "8080")
	dbConnDefault := getEnv("DATABASE_URL", "host=localhost port=5432 user=postgres password=postgres dbname=denuncias sslmode=disable")
	redisAddrDefault := getEnv("REDIS_ADDR", "localhost:6379")
	ollamaURLDefault := getEnv("OLLAMA_URL", "http://localhost:11434")
	ollamaModelDefault := getEnv("OLLAMA_MODEL", "gpt-oss:20b")
	useOllamaDefault := getEnvBool("USE_OLLAMA", true)
	strategyDefault := getEnv("ANALYSIS_STRATEGY", "")
	exportDirDefault := getEnv("EXPORT_DIR", "exports")
	concurrencyDefault := getEnvInt("WORKER_CONCURRENCY", 5)
	maxRetriesDefault := getEnvInt("OLLAMA_MAX_RETRIES", 10)

	var (
		port        = flag.String("port", portDefault, "Server port (env: PORT)")
		dbConn      = flag.String("db", dbConnDefault, "PostgreSQL connection string (env: DATABASE_URL)")
		redisAddr   = flag.String("redis", redisAddrDefault, "Redis address for the task queue (env: REDIS_ADDR)")
		ollamaURL   = flag.String("ollama-url", ollamaURLDefault, "Ollama API URL (env: OLLAMA_URL)")
		ollamaModel = flag.String("ollama-model", ollamaModelDefault, "Ollama model to use (env: OLLAMA_MODEL)")
		useOllama   = flag.Bool("use-ollama", useOllamaDefault, "Enable Ollama agent enrichment (env: USE_OLLAMA)")
		strategy    = flag.String("strategy", strategyDefault, "Routing strategy: local, smart or hybrid (env: ANALYSIS_STRATEGY)")
		exportDir   = flag.String("export-dir", exportDirDefault, "Directory for generated export files (env: EXPORT_DIR)")
		concurrency = flag.Int("concurrency", concurrencyDefault, "Worker concurrency (env: WORKER_CONCURRENCY)")
		maxRetries  = flag.Int("ollama-max-retries", maxRetriesDefault, "Max retries for agent enrichment tasks (env: OLLAMA_MAX_RETRIES)")
	)
	flag.Parse()

	// Initialize database
	db, err := database.New(*dbConn)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database metrics
	dbMetrics := metrics.NewDatabaseMetrics("denuncias")
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(db.Conn())
		}
	}()
	logger.Info("database metrics initialized")

	// Initialize analyzer
	var reportAnalyzer *analyzer.Analyzer
	if *useOllama {
		ollamaClient, err := ollama.New(*ollamaURL, *ollamaModel)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, falling back to rule-based analysis",
				"error", err,
				"ollama_url", *ollamaURL,
				"ollama_model", *ollamaModel,
			)
			reportAnalyzer = analyzer.New()
		} else {
			logger.Info("Ollama client initialized", "model", *ollamaModel, "url", *ollamaURL)
			reportAnalyzer = analyzer.NewWithOllama(ollamaClient)
		}
	} else {
		logger.Info("Ollama disabled, using rule-based analysis")
		reportAnalyzer = analyzer.New()
	}
	if *strategy != "" {
		reportAnalyzer.SetStrategy(*strategy)
		logger.Info("routing strategy overridden", "strategy", *strategy)
	}

	// Initialize the integrity sealer. Without a configured salt every
	// restart invalidates previously issued signatures.
	var sealer *privacy.Sealer
	if salt := os.Getenv("FIRMA_SALT"); salt != "" {
		sealer = privacy.NewSealerWithSalt(salt)
	} else {
		sealer, err = privacy.NewSealer()
		if err != nil {
			logger.Error("failed to initialize integrity sealer", "error", err)
			os.Exit(1)
		}
		logger.Warn("FIRMA_SALT not set, integrity signatures will not survive a restart")
	}

	// Initialize export renderer
	exporter, err := export.NewRenderer(*exportDir)
	if err != nil {
		logger.Error("failed to initialize export renderer", "error", err, "export_dir", *exportDir)
		os.Exit(1)
	}

	// Initialize queue client and worker
	queueClient := queue.NewClient(queue.ClientConfig{RedisAddr: *redisAddr})
	defer queueClient.Close()

	worker := queue.NewWorker(queue.WorkerConfig{
		RedisAddr:   *redisAddr,
		Concurrency: *concurrency,
		MaxRetries:  *maxRetries,
	}, db, reportAnalyzer, queueClient, exporter)

	go func() {
		if err := worker.Start(); err != nil {
			logger.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Initialize API handler
	apiHandler := api.NewHandler(db, reportAnalyzer, sealer, queueClient)

	// Wrap handler with middleware chain: HTTP logging -> tracing -> handlers
	handler := logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware("denuncias")(apiHandler),
	)

	// Create server with extended timeouts for AI processing
	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 420 * time.Second, // 7 minutes for AI analysis
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("denuncias service starting",
			"port", *port,
			"redis", *redisAddr,
			"export_dir", exporter.Dir(),
			"ollama_enabled", *useOllama,
			"ollama_url", *ollamaURL,
			"ollama_model", *ollamaModel,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	worker.Shutdown()

	logger.Info("server stopped")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
