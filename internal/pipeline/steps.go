package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/bill-tracker/internal/analysis"
	"github.com/dvloznov/bill-tracker/internal/canonicalize"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/dvloznov/bill-tracker/internal/recurrence"
)

// PipelineStep represents a single step in the bill detection pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID        string
	Transactions []domain.Transaction

	CanonicalMap domain.CanonicalNameMap
	Canonical    []domain.Transaction

	Drafts   []domain.Bill
	Rejected map[string]recurrence.Rejection

	Bills []domain.Bill
}

// Step 1: CanonicalizeStep rewrites merchant names to their cluster labels.
// A nil Canonicalizer leaves names as they are.
type CanonicalizeStep struct {
	Canonicalizer *canonicalize.Canonicalizer
}

func (s *CanonicalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Canonicalizer == nil {
		state.CanonicalMap = canonicalize.Identity(canonicalize.UniqueNames(state.Transactions))
	} else {
		state.CanonicalMap = s.Canonicalizer.Build(ctx, state.Transactions)
	}
	state.Canonical = canonicalize.Apply(state.Transactions, state.CanonicalMap)
	return nil
}

// Step 2: DetectStep groups canonical transactions into bill drafts.
type DetectStep struct {
	Detector *recurrence.Detector
}

func (s *DetectStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Detector == nil {
		return fmt.Errorf("DetectStep: detector is nil")
	}
	txs := state.Canonical
	if txs == nil {
		txs = state.Transactions
	}
	state.Drafts, state.Rejected = s.Detector.DetectWithRejections(txs)

	log := logger.FromContext(ctx)
	for name, reason := range state.Rejected {
		log.Debug().
			Str("run_id", state.RunID).
			Str("merchant", name).
			Str("reason", string(reason)).
			Msg("Merchant rejected")
	}
	return nil
}

// Step 3: EnrichStep adds trend and anomaly to every draft.
type EnrichStep struct {
	Analyzer *analysis.Analyzer
}

func (s *EnrichStep) Execute(ctx context.Context, state *PipelineState) error {
	a := s.Analyzer
	if a == nil {
		a = analysis.New(analysis.DefaultAnomalyThreshold)
	}
	state.Bills = make([]domain.Bill, 0, len(state.Drafts))
	for _, draft := range state.Drafts {
		state.Bills = append(state.Bills, a.Enrich(draft))
	}
	return nil
}
