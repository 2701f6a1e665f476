// Package recurrence finds merchants that charge on a monthly cadence with a
// stable amount and turns each of them into a Bill draft.
package recurrence

import (
	"math"
	"sort"

	"github.com/dvloznov/bill-tracker/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Config holds the detection thresholds.
type Config struct {
	// MinAmount drops transactions whose absolute amount is below it.
	MinAmount float64
	// MinTransactions is the smallest group that can form a bill.
	MinTransactions int
	// MinGapDays and MaxGapDays bound every gap between consecutive charges.
	MinGapDays int
	MaxGapDays int
	// VarianceTolerance is the exclusive upper bound on (max-min)/mean.
	VarianceTolerance float64
}

// DefaultConfig returns the standard monthly-bill thresholds.
func DefaultConfig() Config {
	return Config{
		MinAmount:         5.0,
		MinTransactions:   2,
		MinGapDays:        25,
		MaxGapDays:        35,
		VarianceTolerance: 0.8,
	}
}

// Rejection explains why a merchant group produced no bill.
type Rejection string

const (
	RejectTooFew      Rejection = "too_few_transactions"
	RejectCadence     Rejection = "irregular_cadence"
	RejectZeroAverage Rejection = "zero_average"
	RejectVariance    Rejection = "amount_variance"
)

// Detector turns transactions into Bill drafts. It holds no state between
// calls.
type Detector struct {
	cfg Config
}

// New creates a Detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

type charge struct {
	amount float64
	tx     domain.Transaction
}

// Detect groups txs by Name and returns one Bill draft per group that passes
// the cadence and amount checks, in first-occurrence order of the names.
// Trend and anomaly are left for the analysis step.
func (d *Detector) Detect(txs []domain.Transaction) []domain.Bill {
	bills, _ := d.DetectWithRejections(txs)
	return bills
}

// DetectWithRejections is Detect plus the reason each rejected group failed.
func (d *Detector) DetectWithRejections(txs []domain.Transaction) ([]domain.Bill, map[string]Rejection) {
	bills := []domain.Bill{}
	rejected := map[string]Rejection{}

	var order []string
	groups := map[string][]charge{}
	for _, t := range txs {
		amount := math.Abs(t.Amount)
		if amount < d.cfg.MinAmount {
			continue
		}
		if _, ok := groups[t.Name]; !ok {
			order = append(order, t.Name)
		}
		groups[t.Name] = append(groups[t.Name], charge{amount: amount, tx: t})
	}

	for _, name := range order {
		bill, reason := d.evaluate(name, groups[name])
		if reason != "" {
			rejected[name] = reason
			continue
		}
		bills = append(bills, bill)
	}

	return bills, rejected
}

func (d *Detector) evaluate(name string, group []charge) (domain.Bill, Rejection) {
	if len(group) < d.cfg.MinTransactions {
		return domain.Bill{}, RejectTooFew
	}

	sort.SliceStable(group, func(i, j int) bool {
		return group[i].tx.Date.Before(group[j].tx.Date)
	})

	for i := 1; i < len(group); i++ {
		gap := group[i].tx.Date.DaysSince(group[i-1].tx.Date)
		if gap < d.cfg.MinGapDays || gap > d.cfg.MaxGapDays {
			return domain.Bill{}, RejectCadence
		}
	}

	amounts := make([]float64, len(group))
	for i, c := range group {
		amounts[i] = c.amount
	}

	avg := stat.Mean(amounts, nil)
	if avg == 0 {
		return domain.Bill{}, RejectZeroAverage
	}
	if (floats.Max(amounts)-floats.Min(amounts))/avg >= d.cfg.VarianceTolerance {
		return domain.Bill{}, RejectVariance
	}

	return domain.Bill{
		Merchant:         name,
		Amount:           avg,
		Frequency:        domain.FrequencyMonthly,
		Type:             Classify(name, avg),
		LastPaid:         group[len(group)-1].tx.Date,
		TransactionCount: len(group),
		AmountTrend:      domain.TrendStable,
		AmountHistory:    amounts,
	}, ""
}
