package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/embedding"
	infraBQ "github.com/dvloznov/bill-tracker/internal/infra/bigquery"
	"github.com/dvloznov/bill-tracker/internal/jobs"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/dvloznov/bill-tracker/internal/notionsync"
	"github.com/dvloznov/bill-tracker/internal/pipeline"
	"github.com/dvloznov/bill-tracker/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

//go:embed sample_transactions.json
var sampleTransactions []byte

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	switch os.Args[1] {
	case "detect":
		runDetect(log, cfg)
	case "demo":
		runDemo(log, cfg)
	case "bills":
		runBills(log, cfg)
	case "alerts":
		runAlerts(log, cfg)
	case "insights":
		runInsights(log, cfg)
	case "export-bq":
		runExportBQ(log, cfg)
	case "import-bq":
		runImportBQ(log, cfg)
	case "sync-notion":
		runSyncNotion(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bill Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  detect       Detect recurring bills from a transactions file, GCS object or BigQuery")
	fmt.Println("  demo         Load sample transactions and detect their bills")
	fmt.Println("  bills        Show all detected recurring bills")
	fmt.Println("  alerts       Show price alerts, upcoming bills and subscriptions")
	fmt.Println("  insights     Show a summary of your bills")
	fmt.Println("  export-bq    Write the stored bills to BigQuery")
	fmt.Println("  import-bq    Replace the stored bills with the latest BigQuery run")
	fmt.Println("  sync-notion  Sync the stored bills to a Notion database")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openStore(log zerolog.Logger, cfg config.Config) store.Store {
	st, err := store.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open bills store")
	}
	return st
}

func loadDocument(ctx context.Context, log zerolog.Logger, cfg config.Config) (store.Store, *domain.Document) {
	st := openStore(log, cfg)
	doc, err := st.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load bills")
	}
	return st, doc
}

func openRepository(ctx context.Context, log zerolog.Logger, cfg config.Config) *infraBQ.Repository {
	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository (set bigquery.project or BILLS_BIGQUERY_PROJECT)")
	}
	return repo
}

// readTransactions loads a transactions file from disk or from gs://bucket/object.
func readTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(path, "gs://") {
		bucket, object, perr := store.ParseGCSURI(path)
		if perr != nil {
			return nil, perr
		}
		data, err = store.NewGCSStorage().ReadObject(ctx, bucket, object)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return pipeline.DecodeTransactions(data)
}

// runDetection executes job through a DetectRunner, which saves the result.
func runDetection(ctx context.Context, log zerolog.Logger, cfg config.Config, job *jobs.DetectBillsJob, repo *infraBQ.Repository, exportBQ bool) []domain.Bill {
	embedder, closeEmbedder, err := embedding.FromConfig(ctx, cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedder")
	}
	defer closeEmbedder()

	st := openStore(log, cfg)
	runner := &jobs.DetectRunner{
		Config:   cfg,
		Embedder: embedder,
		Store:    st,
	}
	if repo != nil {
		runner.Transactions = repo
		if exportBQ {
			runner.Bills = repo
		}
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if err := runner.Run(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Detection failed")
	}

	doc, err := st.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to reload bills")
	}
	return doc.Bills
}

func runDetect(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	file := fs.String("file", "", "Transactions JSON file or gs://bucket/object (default: re-run over stored transactions)")
	startDate := fs.String("start-date", "", "Read transactions from BigQuery starting at this date (YYYY-MM-DD)")
	endDate := fs.String("end-date", "", "End date for the BigQuery read (YYYY-MM-DD)")
	noCanonical := fs.Bool("no-canonical", false, "Group by verbatim merchant names")
	exportBQ := fs.Bool("export-bq", false, "Also write the detected bills to BigQuery")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	job := &jobs.DetectBillsJob{
		Source:      jobs.SourceDocument,
		NoCanonical: *noCanonical,
	}

	switch {
	case *file != "" && *startDate != "":
		log.Fatal().Msg("Error: use either --file or --start-date/--end-date, not both")
	case *file != "":
		txs, err := readTransactions(ctx, *file)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read transactions")
		}
		job.Source = jobs.SourceInline
		job.Transactions = txs
	case *startDate != "" || *endDate != "":
		start, err := civil.ParseDate(*startDate)
		if err != nil {
			log.Fatal().Err(err).Str("start_date", *startDate).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
		}
		end, err := civil.ParseDate(*endDate)
		if err != nil {
			log.Fatal().Err(err).Str("end_date", *endDate).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
		}
		if end.Before(start) {
			log.Fatal().Msg("Error: end-date must be after start-date")
		}
		job.Source = jobs.SourceBigQuery
		job.StartDate, job.EndDate = &start, &end
	}

	var repo *infraBQ.Repository
	if job.Source == jobs.SourceBigQuery || *exportBQ {
		repo = openRepository(ctx, log, cfg)
		defer repo.Close()
	}

	log.Info().Str("source", string(job.Source)).Bool("no_canonical", *noCanonical).Msg("Starting detection")

	bills := runDetection(ctx, log, cfg, job, repo, *exportBQ)
	fmt.Printf("Found %d recurring bills!\n", len(bills))
	printDetected(os.Stdout, bills)
}

func runDemo(log zerolog.Logger, cfg config.Config) {
	ctx := logger.WithContext(context.Background(), log)

	fmt.Println("Loading Demo Data")
	txs, err := pipeline.DecodeTransactions(sampleTransactions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode sample transactions")
	}

	fmt.Println("Analyzing your transactions for recurring bills...")
	bills := runDetection(ctx, log, cfg, &jobs.DetectBillsJob{
		Source:       jobs.SourceInline,
		Transactions: txs,
	}, nil, false)

	fmt.Printf("Loaded %d sample transactions!\n", len(txs))
	fmt.Printf("Found %d recurring bills!\n", len(bills))
	printDetected(os.Stdout, bills)

	fmt.Println("\nDemo data loaded! Try these commands:")
	fmt.Println("  cli bills    - View your bills")
	fmt.Println("  cli alerts   - See bill alerts")
	fmt.Println("  cli insights - Get a summary")
}

func runBills(log zerolog.Logger, cfg config.Config) {
	ctx := logger.WithContext(context.Background(), log)
	_, doc := loadDocument(ctx, log, cfg)
	printBills(os.Stdout, doc.Bills)
}

func runAlerts(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("alerts", flag.ExitOnError)
	todayStr := fs.String("today", "", "Reference date for due-date checks (YYYY-MM-DD, default: today)")
	fs.Parse(os.Args[2:])

	today := civil.DateOf(time.Now())
	if *todayStr != "" {
		d, err := civil.ParseDate(*todayStr)
		if err != nil {
			log.Fatal().Err(err).Str("today", *todayStr).Msg("Error: invalid today format, expected YYYY-MM-DD")
		}
		today = d
	}

	ctx := logger.WithContext(context.Background(), log)
	_, doc := loadDocument(ctx, log, cfg)
	printAlerts(os.Stdout, today, doc.Bills, doc.UserProfile.AlertDaysBefore())
}

func runInsights(log zerolog.Logger, cfg config.Config) {
	ctx := logger.WithContext(context.Background(), log)
	_, doc := loadDocument(ctx, log, cfg)
	printInsights(os.Stdout, doc.UserProfile.Name, doc.Bills)
}

func runExportBQ(log zerolog.Logger, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	_, doc := loadDocument(ctx, log, cfg)

	repo := openRepository(ctx, log, cfg)
	defer repo.Close()

	runID := uuid.New().String()
	if err := repo.ReplaceBills(ctx, runID, doc.Bills); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d bills to %s.%s.bills (run %s)\n", len(doc.Bills), cfg.BigQuery.Project, cfg.BigQuery.Dataset, runID)
}

func runImportBQ(log zerolog.Logger, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, doc := loadDocument(ctx, log, cfg)

	repo := openRepository(ctx, log, cfg)
	defer repo.Close()

	bills, err := repo.ListBills(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	doc.Bills = bills
	if err := st.Save(ctx, doc); err != nil {
		log.Fatal().Err(err).Msg("Failed to save bills")
	}

	fmt.Printf("Imported %d bills from BigQuery\n", len(bills))
}

func runSyncNotion(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	notionDBID := fs.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[2:])

	token := os.Getenv(cfg.Notion.TokenEnv)
	if token == "" {
		log.Fatal().Str("env", cfg.Notion.TokenEnv).Msg("Error: Notion token is not set")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	_, doc := loadDocument(ctx, log, cfg)

	log.Info().
		Int("bills", len(doc.Bills)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	result, err := notionsync.SyncBills(ctx, notionsync.NewNotionClient(token), *notionDBID, doc.Bills, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Failed)
}
