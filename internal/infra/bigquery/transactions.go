package bigquery

import (
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
)

// TransactionRow is the subset of finance.transactions read for detection.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	AccountID     string `bigquery:"account_id"`     // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Currency        string     `bigquery:"currency"`         // REQUIRED

	RawDescription        string              `bigquery:"raw_description"`        // REQUIRED
	NormalizedDescription bigquery.NullString `bigquery:"normalized_description"` // NULLABLE
}

// ToDomain converts the row into a domain transaction. The raw statement
// description becomes the grouping name; the normalized description, when
// present, is kept as the merchant name.
func (r *TransactionRow) ToDomain() domain.Transaction {
	var amount float64
	if r.Amount != nil {
		amount, _ = r.Amount.Float64()
	}

	name := strings.TrimSpace(r.RawDescription)
	merchant := name
	if r.NormalizedDescription.Valid && strings.TrimSpace(r.NormalizedDescription.StringVal) != "" {
		merchant = strings.TrimSpace(r.NormalizedDescription.StringVal)
	}

	return domain.Transaction{
		ID:           r.TransactionID,
		Amount:       amount,
		Date:         r.TransactionDate,
		MerchantName: merchant,
		Name:         name,
		AccountID:    r.AccountID,
	}
}
