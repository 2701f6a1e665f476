package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/bill-tracker/internal/canonicalize"
	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/domain"
	infra "github.com/dvloznov/bill-tracker/internal/infra/bigquery"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/dvloznov/bill-tracker/internal/pipeline"
	"github.com/dvloznov/bill-tracker/internal/store"
)

// DetectRunner executes DetectBillsJobs: it gathers transactions, runs the
// detection pipeline and saves the result to the document store.
type DetectRunner struct {
	Config   config.Config
	Embedder canonicalize.Embedder
	Store    store.Store

	// Transactions serves SourceBigQuery jobs. Optional.
	Transactions infra.TransactionSource
	// Bills, when set, receives a copy of every run's bills. Optional.
	Bills infra.BillRepository
}

// Handle implements JobHandler.
func (r *DetectRunner) Handle(ctx context.Context, job Job) error {
	detectJob, ok := job.(*DetectBillsJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}
	return r.Run(ctx, detectJob)
}

// Run executes job and records the run ID and bill count on it.
func (r *DetectRunner) Run(ctx context.Context, job *DetectBillsJob) error {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("source", string(job.Source)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	doc, err := r.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("DetectRunner.Run: %w", err)
	}

	txs, err := r.transactions(ctx, job, doc)
	if err != nil {
		return fmt.Errorf("DetectRunner.Run: %w", err)
	}
	for i, t := range txs {
		if !t.Date.IsValid() {
			return fmt.Errorf("DetectRunner.Run: transaction %d (%q): %w", i, t.ID, pipeline.ErrMissingDate)
		}
	}

	cfg := r.Config
	if job.NoCanonical {
		cfg.Canonicalize.Enabled = false
	}

	state, err := pipeline.Run(ctx, pipeline.FromConfig(cfg, r.Embedder), txs)
	if err != nil {
		return fmt.Errorf("DetectRunner.Run: %w", err)
	}

	ApplyResult(doc, txs, state.Bills)
	if err := r.Store.Save(ctx, doc); err != nil {
		return fmt.Errorf("DetectRunner.Run: %w", err)
	}

	if r.Bills != nil {
		if err := r.Bills.ReplaceBills(ctx, state.RunID, state.Bills); err != nil {
			return fmt.Errorf("DetectRunner.Run: %w", err)
		}
	}

	job.RunID = state.RunID
	job.BillCount = len(state.Bills)
	return nil
}

func (r *DetectRunner) transactions(ctx context.Context, job *DetectBillsJob, doc *domain.Document) ([]domain.Transaction, error) {
	switch job.Source {
	case SourceDocument, "":
		return doc.Transactions, nil
	case SourceInline:
		return job.Transactions, nil
	case SourceBigQuery:
		if r.Transactions == nil {
			return nil, fmt.Errorf("no BigQuery transaction source configured")
		}
		if job.StartDate == nil || job.EndDate == nil {
			return nil, fmt.Errorf("bigquery source requires start_date and end_date")
		}
		return r.Transactions.ListTransactions(ctx, *job.StartDate, *job.EndDate)
	default:
		return nil, fmt.Errorf("unknown source %q", job.Source)
	}
}

// ApplyResult stores a run's transactions and bills in doc and refreshes
// each merchant's streak, the number of consecutive monthly payments seen.
func ApplyResult(doc *domain.Document, txs []domain.Transaction, bills []domain.Bill) {
	doc.Transactions = append([]domain.Transaction{}, txs...)
	doc.Bills = append([]domain.Bill{}, bills...)

	streaks := make(map[string]int, len(bills))
	for _, b := range bills {
		streaks[b.Merchant] = b.TransactionCount
	}
	doc.UserProfile.BillStreaks = streaks
}
