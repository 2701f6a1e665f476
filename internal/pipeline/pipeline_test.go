package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/analysis"
	"github.com/dvloznov/bill-tracker/internal/canonicalize"
	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/recurrence"
)

type mapEmbedder map[string][]float64

func (m mapEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, ok := m[text]
		if !ok {
			v = []float64{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func tx(name string, amount float64, y int, m int, d int) domain.Transaction {
	return domain.Transaction{
		ID:     name,
		Amount: amount,
		Date:   civil.Date{Year: y, Month: time.Month(m), Day: d},
		Name:   name,
	}
}

func netflixTransactions() []domain.Transaction {
	return []domain.Transaction{
		tx("Netflix Inc", -15.99, 2024, 1, 15),
		tx("Starbucks Coffee", -5.50, 2024, 1, 20),
		tx("NETFLIX.COM", -15.99, 2024, 2, 14),
	}
}

func TestDetectBillsMergesMerchantVariants(t *testing.T) {
	embedder := mapEmbedder{
		"Netflix Inc": {1, 0.05, 0},
		"NETFLIX.COM": {0.98, 0.1, 0},
	}

	bills, err := DetectBills(context.Background(), netflixTransactions(), embedder)
	if err != nil {
		t.Fatalf("DetectBills() error = %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("got %d bills, want 1", len(bills))
	}

	b := bills[0]
	if b.Merchant != "Netflix Inc" {
		t.Errorf("Merchant = %q, want %q", b.Merchant, "Netflix Inc")
	}
	if b.TransactionCount != 2 {
		t.Errorf("TransactionCount = %d, want 2", b.TransactionCount)
	}
	if b.Type != domain.BillTypeSubscription {
		t.Errorf("Type = %q, want %q", b.Type, domain.BillTypeSubscription)
	}
	if b.AmountTrend != domain.TrendStable {
		t.Errorf("AmountTrend = %q, want stable", b.AmountTrend)
	}
	if b.Anomaly.IsAnomaly {
		t.Errorf("two-point history must not be anomalous")
	}
}

func TestDetectBillsWithoutCanonicalization(t *testing.T) {
	p := NewBillDetectionPipeline(nil, recurrence.New(recurrence.DefaultConfig()), nil)

	state, err := Run(context.Background(), p, netflixTransactions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Bills) != 0 {
		t.Errorf("got %d bills, want 0 when names are not merged", len(state.Bills))
	}
	if got := state.Rejected["Netflix Inc"]; got != recurrence.RejectTooFew {
		t.Errorf("Rejected[Netflix Inc] = %q, want %q", got, recurrence.RejectTooFew)
	}
	if state.CanonicalMap["NETFLIX.COM"] != "NETFLIX.COM" {
		t.Errorf("identity map expected, got %v", state.CanonicalMap)
	}
}

func TestRunEnrichesTrendAndAnomaly(t *testing.T) {
	txs := []domain.Transaction{
		tx("City Electric", -100, 2024, 1, 1),
		tx("City Electric", -100, 2024, 1, 31),
		tx("City Electric", -100, 2024, 3, 2),
		tx("City Electric", -100, 2024, 4, 1),
		tx("City Electric", -140, 2024, 5, 1),
	}
	p := FromConfig(config.Default(), nil)

	state, err := Run(context.Background(), p, txs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.RunID == "" {
		t.Error("RunID not set")
	}
	if len(state.Bills) != 1 {
		t.Fatalf("got %d bills, want 1", len(state.Bills))
	}

	b := state.Bills[0]
	if b.Type != domain.BillTypeUtilities {
		t.Errorf("Type = %q, want %q", b.Type, domain.BillTypeUtilities)
	}
	if b.AmountTrend != domain.TrendIncreasing {
		t.Errorf("AmountTrend = %q, want increasing", b.AmountTrend)
	}
	if !b.Anomaly.IsAnomaly {
		t.Errorf("last charge should be anomalous, score = %v", b.Anomaly.Score)
	}
	if b.LastPaid != (civil.Date{Year: 2024, Month: 5, Day: 1}) {
		t.Errorf("LastPaid = %v", b.LastPaid)
	}
	// drafts stay untouched by enrichment
	if state.Drafts[0].AmountTrend != domain.TrendStable {
		t.Errorf("draft trend = %q, want stable", state.Drafts[0].AmountTrend)
	}
}

func TestRunEmptyInput(t *testing.T) {
	p := FromConfig(config.Default(), nil)

	state, err := Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Bills == nil || len(state.Bills) != 0 {
		t.Errorf("Bills = %#v, want empty non-nil", state.Bills)
	}
}

type failingStep struct{}

func (failingStep) Execute(ctx context.Context, state *PipelineState) error {
	return errors.New("boom")
}

func TestPipelineStopsOnError(t *testing.T) {
	var ran bool
	p := NewPipeline(
		&CanonicalizeStep{},
		failingStep{},
		stepFunc(func(ctx context.Context, state *PipelineState) error {
			ran = true
			return nil
		}),
	)

	_, err := Run(context.Background(), p, netflixTransactions())
	if err == nil {
		t.Fatal("expected error")
	}
	if ran {
		t.Error("step after the failing one must not run")
	}
}

func TestDetectStepRequiresDetector(t *testing.T) {
	err := (&DetectStep{}).Execute(context.Background(), &PipelineState{})
	if err == nil {
		t.Error("expected error for nil detector")
	}
}

func TestCanonicalizeStepDoesNotMutateInput(t *testing.T) {
	txs := netflixTransactions()
	step := &CanonicalizeStep{
		Canonicalizer: canonicalize.New(mapEmbedder{
			"Netflix Inc": {1, 0, 0},
			"NETFLIX.COM": {1, 0, 0},
		}, canonicalize.DefaultConfig()),
	}
	state := &PipelineState{Transactions: txs}

	if err := step.Execute(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if txs[2].Name != "NETFLIX.COM" {
		t.Errorf("input mutated: %q", txs[2].Name)
	}
	if state.Canonical[2].Name != "Netflix Inc" {
		t.Errorf("canonical name = %q, want Netflix Inc", state.Canonical[2].Name)
	}
}

func TestEnrichStepUsesConfiguredThreshold(t *testing.T) {
	draft := domain.Bill{Merchant: "x", AmountHistory: []float64{10, 11, 10, 12, 13}}
	loose := &PipelineState{Drafts: []domain.Bill{draft}}
	if err := (&EnrichStep{Analyzer: analysis.New(1000)}).Execute(context.Background(), loose); err != nil {
		t.Fatal(err)
	}
	if loose.Bills[0].Anomaly.IsAnomaly {
		t.Error("threshold 1000 should not flag")
	}
}

type stepFunc func(ctx context.Context, state *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, state *PipelineState) error { return f(ctx, state) }
