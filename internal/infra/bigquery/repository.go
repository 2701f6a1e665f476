package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
)

// TransactionSource lists transactions for a date range.
type TransactionSource interface {
	ListTransactions(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error)
}

// BillRepository stores and reads detected bills.
type BillRepository interface {
	ReplaceBills(ctx context.Context, runID string, bills []domain.Bill) error
	ListBills(ctx context.Context) ([]domain.Bill, error)
}

// Repository implements TransactionSource and BillRepository on BigQuery.
// It holds a shared client to avoid creating a new connection for each
// operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a Repository for project and dataset.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	if project == "" {
		return nil, fmt.Errorf("NewRepository: project is required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error) {
	rows, err := QueryTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, start, end)
	if err != nil {
		return nil, err
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.ToDomain())
	}
	return txs, nil
}

// ReplaceBills inserts the bills of runID, then deletes every older run.
// Rows are inserted first so readers never see an empty table.
func (r *Repository) ReplaceBills(ctx context.Context, runID string, bills []domain.Bill) error {
	if err := InsertBillsWithClient(ctx, r.client, r.dataset, runID, bills); err != nil {
		return err
	}
	return DeleteBillsExceptRunWithClient(ctx, r.client, r.dataset, runID)
}

func (r *Repository) ListBills(ctx context.Context) ([]domain.Bill, error) {
	rows, err := QueryLatestBillsWithClient(ctx, r.client, r.dataset)
	if err != nil {
		return nil, err
	}
	bills := make([]domain.Bill, 0, len(rows))
	for _, row := range rows {
		bills = append(bills, row.ToDomain())
	}
	return bills, nil
}
