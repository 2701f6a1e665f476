package pipeline

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
)

func TestDecodeTransactions(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantCount  int
		wantAmount float64
		wantDate   civil.Date
		wantErr    error
		wantAnyErr bool
	}{
		{
			name:       "bare array",
			input:      `[{"id":"t1","amount":-15.99,"date":"2024-01-15","merchant_name":"Netflix","name":"Netflix Inc","account_id":"a1"}]`,
			wantCount:  1,
			wantAmount: -15.99,
			wantDate:   civil.Date{Year: 2024, Month: 1, Day: 15},
		},
		{
			name:       "wrapped object",
			input:      `{"transactions":[{"amount":-20,"date":"2024-02-01","name":"Gym"}]}`,
			wantCount:  1,
			wantAmount: -20,
			wantDate:   civil.Date{Year: 2024, Month: 2, Day: 1},
		},
		{
			name:       "numeric string amount",
			input:      `[{"amount":"-42.50","date":"2024-03-01","name":"x"}]`,
			wantCount:  1,
			wantAmount: -42.5,
			wantDate:   civil.Date{Year: 2024, Month: 3, Day: 1},
		},
		{
			name:      "missing amount reads as zero",
			input:     `[{"date":"2024-03-01","name":"x"}]`,
			wantCount: 1,
			wantDate:  civil.Date{Year: 2024, Month: 3, Day: 1},
		},
		{
			name:      "malformed amount reads as zero",
			input:     `[{"amount":"abc","date":"2024-03-01","name":"x"},{"amount":null,"date":"2024-03-02"}]`,
			wantCount: 2,
			wantDate:  civil.Date{Year: 2024, Month: 3, Day: 1},
		},
		{
			name:       "rfc3339 timestamp",
			input:      `[{"amount":1,"date":"2024-04-05T23:10:00Z"}]`,
			wantCount:  1,
			wantAmount: 1,
			wantDate:   civil.Date{Year: 2024, Month: 4, Day: 5},
		},
		{
			name:    "missing date rejects batch",
			input:   `[{"amount":1,"date":"2024-01-01"},{"amount":2}]`,
			wantErr: ErrMissingDate,
		},
		{
			name:    "bad date rejects batch",
			input:   `[{"amount":1,"date":"01/02/2024"}]`,
			wantErr: ErrInvalidDate,
		},
		{
			name:       "not json",
			input:      `{`,
			wantAnyErr: true,
		},
		{
			name:       "object without transactions",
			input:      `{"items":[]}`,
			wantAnyErr: true,
		},
		{
			name:       "element is not an object",
			input:      `[1]`,
			wantAnyErr: true,
		},
		{
			name:      "empty array",
			input:     `[]`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTransactions([]byte(tt.input))
			if tt.wantErr != nil || tt.wantAnyErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d transactions, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", got[0].Amount, tt.wantAmount)
			}
			if got[0].Date != tt.wantDate {
				t.Errorf("Date = %v, want %v", got[0].Date, tt.wantDate)
			}
		})
	}
}

func TestDecodeTransactionsFields(t *testing.T) {
	got, err := DecodeTransactions([]byte(`[{"id":1234,"amount":-9,"date":"2024-01-01","merchant_name":"Spotify","name":"SPOTIFY AB","account_id":"acc"}]`))
	if err != nil {
		t.Fatal(err)
	}
	tx := got[0]
	if tx.ID != "1234" {
		t.Errorf("ID = %q, want 1234", tx.ID)
	}
	if tx.MerchantName != "Spotify" || tx.Name != "SPOTIFY AB" || tx.AccountID != "acc" {
		t.Errorf("unexpected fields: %+v", tx)
	}
}
