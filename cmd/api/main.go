package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/bill-tracker/internal/api/handlers"
	"github.com/dvloznov/bill-tracker/internal/api/middleware"
	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/embedding"
	infraBQ "github.com/dvloznov/bill-tracker/internal/infra/bigquery"
	"github.com/dvloznov/bill-tracker/internal/jobs"
	"github.com/dvloznov/bill-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/dvloznov/bill-tracker/internal/store"
)

func main() {
	// Parse command-line flags
	var (
		port     = flag.String("port", "8080", "HTTP server port")
		token    = flag.String("api-token", os.Getenv("BILLS_API_TOKEN"), "Bearer token required on /api/ routes (or set BILLS_API_TOKEN env)")
		workers  = flag.Int("workers", 2, "Number of detection workers")
		exportBQ = flag.Bool("export-bq", false, "Also write every run's bills to BigQuery")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := logger.WithContext(context.Background(), log)

	docStore, err := store.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}

	embedder, closeEmbedder, err := embedding.FromConfig(ctx, cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedder")
	}
	defer closeEmbedder()

	runner := &jobs.DetectRunner{
		Config:   cfg,
		Embedder: embedder,
		Store:    docStore,
	}

	if cfg.BigQuery.Project != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()

		runner.Transactions = repo
		if *exportBQ {
			runner.Bills = repo
		}
	} else {
		log.Warn().Msg("No BigQuery project configured - bigquery detection source disabled")
	}

	if *token == "" {
		log.Warn().Msg("No API token configured - /api/ routes are unauthenticated")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(*workers))

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", *workers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	billsHandler := handlers.NewBillsHandler(docStore, log)
	detectHandler := handlers.NewDetectHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/bills", middleware.Method(http.MethodGet, billsHandler.ListBills))
	mux.HandleFunc("/api/transactions", middleware.Method(http.MethodGet, billsHandler.ListTransactions))
	mux.HandleFunc("/api/insights", middleware.Method(http.MethodGet, billsHandler.Insights))
	mux.HandleFunc("/api/alerts", middleware.Method(http.MethodGet, billsHandler.Alerts))
	mux.HandleFunc("/api/detect", middleware.Method(http.MethodPost, detectHandler.EnqueueDetection))

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", middleware.Method(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", middleware.Method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		// Extract job ID from path
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(*token)(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
