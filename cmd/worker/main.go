package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/embedding"
	infraBQ "github.com/dvloznov/bill-tracker/internal/infra/bigquery"
	"github.com/dvloznov/bill-tracker/internal/jobs"
	"github.com/dvloznov/bill-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/dvloznov/bill-tracker/internal/store"
)

// The worker re-runs bill detection on a fixed interval, either over the
// stored transactions or over a trailing window read from BigQuery.
func main() {
	var (
		interval = flag.Duration("interval", 24*time.Hour, "Time between detection runs")
		source   = flag.String("source", string(jobs.SourceDocument), "Transaction source: document or bigquery")
		lookback = flag.Int("lookback-days", 180, "Days of history to read from BigQuery")
		exportBQ = flag.Bool("export-bq", false, "Also write every run's bills to BigQuery")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	jobSource := jobs.Source(*source)
	if jobSource != jobs.SourceDocument && jobSource != jobs.SourceBigQuery {
		log.Fatal().Str("source", *source).Msg("Error: --source must be document or bigquery")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

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

	if jobSource == jobs.SourceBigQuery || *exportBQ {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()

		runner.Transactions = repo
		if *exportBQ {
			runner.Bills = repo
		}
	}

	// Initialize job store and queue; a single worker keeps runs serialized
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, jobStore, inmemory.WithWorkers(1))

	handler := func(ctx context.Context, job jobs.Job) error {
		if err := runner.Handle(ctx, job); err != nil {
			return err
		}
		if detectJob, ok := job.(*jobs.DetectBillsJob); ok {
			log.Info().
				Str("job_id", detectJob.JobID).
				Str("run_id", detectJob.RunID).
				Int("bills", detectJob.BillCount).
				Msg("Detection run completed")
		}
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	enqueue := func() {
		job := &jobs.DetectBillsJob{Source: jobSource}
		if jobSource == jobs.SourceBigQuery {
			end := civil.DateOf(time.Now())
			start := end.AddDays(-*lookback)
			job.StartDate, job.EndDate = &start, &end
		}
		if err := jobQueue.PublishDetectBills(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue detection run")
			return
		}
		log.Info().Str("job_id", job.JobID).Str("source", string(job.Source)).Msg("Detection run enqueued")
	}

	log.Info().
		Dur("interval", *interval).
		Str("source", *source).
		Msg("Worker service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	enqueue()
loop:
	for {
		select {
		case <-ticker.C:
			enqueue()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")

	// Wait for the in-flight run with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()

	log.Info().Msg("Worker service stopped")
}
