package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"google.golang.org/api/iterator"
)

const billsTable = "bills"

// InsertBillsWithClient writes one row per bill under runID.
func InsertBillsWithClient(ctx context.Context, client *bigquery.Client, dataset, runID string, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*BillRow, 0, len(bills))
	for _, b := range bills {
		rows = append(rows, NewBillRow(runID, b, now))
	}

	inserter := client.Dataset(dataset).Table(billsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertBills: inserting rows: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", runID).
		Int("bills", len(rows)).
		Msg("Inserted bills")
	return nil
}

// DeleteBillsExceptRunWithClient removes rows written by runs other than keepRunID.
func DeleteBillsExceptRunWithClient(ctx context.Context, client *bigquery.Client, dataset, keepRunID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE run_id != @run_id
	`, dataset, billsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: keepRunID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteBillsExceptRun: run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteBillsExceptRun: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("DeleteBillsExceptRun: job error: %w", err)
	}
	return nil
}

// QueryLatestBillsWithClient reads the bills of the most recent run.
func QueryLatestBillsWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]*BillRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %[1]s.%[2]s
		WHERE run_id = (
			SELECT run_id FROM %[1]s.%[2]s
			ORDER BY detected_ts DESC
			LIMIT 1
		)
		ORDER BY merchant
	`, dataset, billsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryLatestBills: query read: %w", err)
	}

	var rows []*BillRow
	for {
		var r BillRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryLatestBills: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
