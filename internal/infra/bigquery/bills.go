package bigquery

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
)

// BillRow is one detected bill in finance.bills. Each detection run writes a
// full set of rows under its run_id.
type BillRow struct {
	RunID            string     `bigquery:"run_id"`            // REQUIRED
	Merchant         string     `bigquery:"merchant"`          // REQUIRED
	Amount           float64    `bigquery:"amount"`            // REQUIRED FLOAT64
	Frequency        string     `bigquery:"frequency"`         // REQUIRED
	BillType         string     `bigquery:"bill_type"`         // REQUIRED
	LastPaid         civil.Date `bigquery:"last_paid"`         // REQUIRED
	NextDue          civil.Date `bigquery:"next_due"`          // REQUIRED
	TransactionCount int64      `bigquery:"transaction_count"` // REQUIRED
	AmountTrend      string     `bigquery:"amount_trend"`      // REQUIRED
	AmountHistory    []float64  `bigquery:"amount_history"`    // REPEATED FLOAT64
	IsAnomaly        bool       `bigquery:"is_anomaly"`        // REQUIRED
	AnomalyScore     float64    `bigquery:"anomaly_score"`     // REQUIRED
	DetectedTS       time.Time  `bigquery:"detected_ts"`       // REQUIRED
}

// NewBillRow maps a bill to its warehouse row.
func NewBillRow(runID string, b domain.Bill, detected time.Time) *BillRow {
	history := make([]float64, len(b.AmountHistory))
	copy(history, b.AmountHistory)

	return &BillRow{
		RunID:            runID,
		Merchant:         b.Merchant,
		Amount:           b.Amount,
		Frequency:        string(b.Frequency),
		BillType:         string(b.Type),
		LastPaid:         b.LastPaid,
		NextDue:          b.NextDue(),
		TransactionCount: int64(b.TransactionCount),
		AmountTrend:      string(b.AmountTrend),
		AmountHistory:    history,
		IsAnomaly:        b.Anomaly.IsAnomaly,
		AnomalyScore:     b.Anomaly.Score,
		DetectedTS:       detected,
	}
}

// ToDomain converts the row back into a bill.
func (r *BillRow) ToDomain() domain.Bill {
	history := make([]float64, len(r.AmountHistory))
	copy(history, r.AmountHistory)

	return domain.Bill{
		Merchant:         r.Merchant,
		Amount:           r.Amount,
		Frequency:        domain.Frequency(r.Frequency),
		Type:             domain.BillType(r.BillType),
		LastPaid:         r.LastPaid,
		TransactionCount: int(r.TransactionCount),
		AmountTrend:      domain.Trend(r.AmountTrend),
		AmountHistory:    history,
		Anomaly: domain.Anomaly{
			IsAnomaly: r.IsAnomaly,
			Score:     r.AnomalyScore,
		},
	}
}
