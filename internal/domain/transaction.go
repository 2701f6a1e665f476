package domain

import (
	"cloud.google.com/go/civil"
)

// Transaction is one raw account movement as supplied by a data source.
// Transactions are treated as immutable values; canonicalization produces
// rewritten copies rather than touching the originals.
type Transaction struct {
	ID           string     `json:"id"`
	Amount       float64    `json:"amount"`        // negative = money OUT
	Date         civil.Date `json:"date"`          // ISO-8601 "YYYY-MM-DD"
	MerchantName string     `json:"merchant_name"` // label from the data source
	Name         string     `json:"name"`          // display label used for grouping
	AccountID    string     `json:"account_id"`
}

// CanonicalNameMap maps a raw display name to its canonical merchant label.
type CanonicalNameMap map[string]string

// Lookup returns the canonical label for raw, or raw itself when unmapped.
func (m CanonicalNameMap) Lookup(raw string) string {
	if canon, ok := m[raw]; ok {
		return canon
	}
	return raw
}
