package bigquery

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
)

func TestTransactionRowToDomain(t *testing.T) {
	row := &TransactionRow{
		TransactionID:         "tx-1",
		AccountID:             "acc-1",
		TransactionDate:       civil.Date{Year: 2024, Month: 3, Day: 15},
		Amount:                big.NewRat(-1599, 100),
		Currency:              "GBP",
		RawDescription:        "  NETFLIX.COM 866-579  ",
		NormalizedDescription: bigquery.NullString{StringVal: "Netflix", Valid: true},
	}

	tx := row.ToDomain()

	if tx.ID != "tx-1" || tx.AccountID != "acc-1" {
		t.Errorf("ids not copied: %+v", tx)
	}
	if tx.Amount != -15.99 {
		t.Errorf("Amount = %v, want -15.99", tx.Amount)
	}
	if tx.Name != "NETFLIX.COM 866-579" {
		t.Errorf("Name = %q", tx.Name)
	}
	if tx.MerchantName != "Netflix" {
		t.Errorf("MerchantName = %q, want Netflix", tx.MerchantName)
	}
	if tx.Date != row.TransactionDate {
		t.Errorf("Date = %v", tx.Date)
	}
}

func TestTransactionRowToDomainNulls(t *testing.T) {
	row := &TransactionRow{RawDescription: "Gym"}

	tx := row.ToDomain()

	if tx.Amount != 0 {
		t.Errorf("Amount = %v, want 0 for nil NUMERIC", tx.Amount)
	}
	if tx.MerchantName != "Gym" {
		t.Errorf("MerchantName = %q, want raw description fallback", tx.MerchantName)
	}
}

func TestBillRowRoundTrip(t *testing.T) {
	b := domain.Bill{
		Merchant:         "Monthly Rent Payment",
		Amount:           1200,
		Frequency:        domain.FrequencyMonthly,
		Type:             domain.BillTypeRent,
		LastPaid:         civil.Date{Year: 2025, Month: 1, Day: 31},
		TransactionCount: 3,
		AmountTrend:      domain.TrendStable,
		AmountHistory:    []float64{1200, 1200, 1200},
		Anomaly:          domain.Anomaly{IsAnomaly: false, Score: 0},
	}
	detected := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	row := NewBillRow("run-1", b, detected)

	if row.RunID != "run-1" || row.BillType != "Rent/Mortgage" {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.NextDue != (civil.Date{Year: 2025, Month: 2, Day: 28}) {
		t.Errorf("NextDue = %v, want 2025-02-28", row.NextDue)
	}
	if row.TransactionCount != 3 {
		t.Errorf("TransactionCount = %d", row.TransactionCount)
	}

	row.AmountHistory[0] = 1
	if b.AmountHistory[0] != 1200 {
		t.Error("row shares the bill's history slice")
	}
	row.AmountHistory[0] = 1200

	back := row.ToDomain()
	if back.Merchant != b.Merchant || back.Type != b.Type || back.LastPaid != b.LastPaid ||
		back.TransactionCount != b.TransactionCount || len(back.AmountHistory) != 3 {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0002_create_bills.sql", true, 2, "create_bills"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("ok = %v, want %v", ok, tt.valid)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("got (%d, %q), want (%d, %q)", version, name, tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (x INT64);")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (x INT64);")},
		"README.md":       {Data: []byte("notes")},
	}

	migrations, err := ReadMigrations(context.Background(), fsys, "proj", "finance")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("not sorted by version: %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.finance.a`") {
		t.Errorf("placeholders not replaced: %s", migrations[0].SQL)
	}

	again, err := ReadMigrations(context.Background(), fsys, "other", "ds")
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Checksum != migrations[0].Checksum {
		t.Error("checksum must not depend on project or dataset")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := ReadMigrations(context.Background(), Migrations(), "proj", "finance")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("got %d embedded migrations, want at least 2", len(migrations))
	}
	found := false
	for _, m := range migrations {
		if strings.Contains(m.SQL, "`proj.finance.bills`") {
			found = true
		}
	}
	if !found {
		t.Error("bills table migration missing")
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	pending := PendingMigrations(all, applied)

	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("pending = %+v, want only version 2", pending)
	}
}
