// Package pipeline runs one bill detection pass: canonicalize merchant names,
// detect monthly recurrences, then add trend and anomaly to each bill.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/bill-tracker/internal/analysis"
	"github.com/dvloznov/bill-tracker/internal/canonicalize"
	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/logger"
	"github.com/dvloznov/bill-tracker/internal/recurrence"
	"github.com/google/uuid"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewBillDetectionPipeline creates the standard three-step pipeline.
// Pass a nil Canonicalizer to group by verbatim merchant names.
func NewBillDetectionPipeline(c *canonicalize.Canonicalizer, d *recurrence.Detector, a *analysis.Analyzer) *Pipeline {
	return NewPipeline(
		&CanonicalizeStep{Canonicalizer: c},
		&DetectStep{Detector: d},
		&EnrichStep{Analyzer: a},
	)
}

// FromConfig builds the detection pipeline from configuration. embedder may be
// nil, in which case canonicalization falls back to verbatim names.
func FromConfig(cfg config.Config, embedder canonicalize.Embedder) *Pipeline {
	var c *canonicalize.Canonicalizer
	if cfg.Canonicalize.Enabled {
		c = canonicalize.New(embedder, canonicalize.Config{
			Threshold: cfg.Canonicalize.Threshold,
			Merge:     canonicalize.MergeRule(cfg.Canonicalize.Merge),
		})
	}

	d := recurrence.New(recurrence.Config{
		MinAmount:         cfg.Detection.MinAmount,
		MinTransactions:   cfg.Detection.MinTransactions,
		MinGapDays:        cfg.Detection.MinGapDays,
		MaxGapDays:        cfg.Detection.MaxGapDays,
		VarianceTolerance: cfg.Detection.VarianceTolerance,
	})

	return NewBillDetectionPipeline(c, d, analysis.New(cfg.Analysis.AnomalyThreshold))
}

// Run executes p over txs under a fresh run ID and returns the final state.
func Run(ctx context.Context, p *Pipeline, txs []domain.Transaction) (*PipelineState, error) {
	state := &PipelineState{
		RunID:        uuid.New().String(),
		Transactions: txs,
	}

	log := logger.FromContext(ctx).With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	log.Info().Int("transactions", len(txs)).Msg("Starting bill detection")

	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Bill detection failed")
		return nil, fmt.Errorf("Run: %w", err)
	}

	log.Info().
		Int("bills", len(state.Bills)).
		Int("rejected", len(state.Rejected)).
		Dur("elapsed", time.Since(start)).
		Msg("Bill detection completed")

	return state, nil
}

// DetectBills runs the default pipeline, with canonicalization backed by
// embedder, and returns the enriched bills.
func DetectBills(ctx context.Context, txs []domain.Transaction, embedder canonicalize.Embedder) ([]domain.Bill, error) {
	p := NewBillDetectionPipeline(
		canonicalize.New(embedder, canonicalize.DefaultConfig()),
		recurrence.New(recurrence.DefaultConfig()),
		analysis.New(analysis.DefaultAnomalyThreshold),
	)
	state, err := Run(ctx, p, txs)
	if err != nil {
		return nil, err
	}
	return state.Bills, nil
}
