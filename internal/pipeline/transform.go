package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
)

var (
	// ErrMissingDate is returned when a transaction has no date.
	ErrMissingDate = errors.New("missing date")
	// ErrInvalidDate is returned when a transaction date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")
)

// DecodeTransactions parses a JSON batch of transactions. The batch is either
// a bare array or an object with a "transactions" key.
//
// A missing or malformed amount decodes as 0. A missing or unparsable date
// rejects the whole batch.
func DecodeTransactions(data []byte) ([]domain.Transaction, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("DecodeTransactions: %w", err)
	}

	var txSlice []interface{}
	switch v := raw.(type) {
	case []interface{}:
		txSlice = v
	case map[string]interface{}:
		txAny, ok := v["transactions"]
		if !ok {
			return nil, fmt.Errorf("DecodeTransactions: missing 'transactions' key")
		}
		txSlice, ok = txAny.([]interface{})
		if !ok {
			return nil, fmt.Errorf("DecodeTransactions: 'transactions' is %T, want []interface{}", txAny)
		}
	default:
		return nil, fmt.Errorf("DecodeTransactions: top level is %T, want array or object", raw)
	}

	result := make([]domain.Transaction, 0, len(txSlice))
	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("DecodeTransactions: element %d is %T, want object", i, item)
		}
		t, err := transformTransaction(obj)
		if err != nil {
			return nil, fmt.Errorf("DecodeTransactions: transaction %d: %w", i, err)
		}
		result = append(result, t)
	}

	return result, nil
}

func transformTransaction(obj map[string]interface{}) (domain.Transaction, error) {
	dateStr := getStringField(obj, "date")
	if strings.TrimSpace(dateStr) == "" {
		return domain.Transaction{}, ErrMissingDate
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w %q", ErrInvalidDate, dateStr)
	}

	return domain.Transaction{
		ID:           getStringField(obj, "id"),
		Amount:       getAmountField(obj, "amount"),
		Date:         date,
		MerchantName: getStringField(obj, "merchant_name"),
		Name:         getStringField(obj, "name"),
		AccountID:    getStringField(obj, "account_id"),
	}, nil
}

// parseDate accepts a plain ISO date, an RFC 3339 timestamp or a civil
// date-time, keeping only the calendar date.
func parseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return civil.DateOf(t), nil
	}
	dt, err := civil.ParseDateTime(s)
	if err != nil {
		return civil.Date{}, err
	}
	return dt.Date, nil
}

// getStringField returns the string value of key. Numbers are formatted so
// numeric ids survive; anything else reads as "".
func getStringField(m map[string]interface{}, key string) string {
	switch val := m[key].(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// getAmountField returns the numeric value of key, accepting numeric strings.
// Missing, null and malformed values read as 0.
func getAmountField(m map[string]interface{}, key string) float64 {
	switch val := m[key].(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}
