// Package analysis derives a trend label and a robust anomaly score from a
// bill's chronological amount history.
package analysis

import (
	"math"
	"sort"

	"github.com/dvloznov/bill-tracker/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultAnomalyThreshold is the |modified z-score| above which the most
	// recent charge is flagged.
	DefaultAnomalyThreshold = 3.5

	// MinPoints is the shortest history either analysis will score.
	MinPoints = 3

	madEpsilon    = 1e-6
	zScoreScale   = 0.6745
	increaseRatio = 1.1
	decreaseRatio = 0.9
)

// Analyzer computes trend and anomaly signals.
type Analyzer struct {
	AnomalyThreshold float64
}

// New returns an Analyzer with the given anomaly threshold. Configured
// thresholds are checked by config.Validate; a non-positive value here is
// treated as unset and replaced by DefaultAnomalyThreshold.
func New(anomalyThreshold float64) *Analyzer {
	if anomalyThreshold <= 0 {
		anomalyThreshold = DefaultAnomalyThreshold
	}
	return &Analyzer{AnomalyThreshold: anomalyThreshold}
}

// Enrich returns a copy of bill with AmountTrend and Anomaly filled in from
// its AmountHistory.
func (a *Analyzer) Enrich(bill domain.Bill) domain.Bill {
	bill.AmountHistory = append([]float64(nil), bill.AmountHistory...)
	bill.AmountTrend = Trend(bill.AmountHistory)
	bill.Anomaly = a.Anomaly(bill.AmountHistory)
	return bill
}

// Trend compares the mean of the last two amounts against the mean of
// everything before them. Histories shorter than MinPoints are stable.
func Trend(history []float64) domain.Trend {
	if len(history) < MinPoints {
		return domain.TrendStable
	}

	split := len(history) - 2
	recentAvg := stat.Mean(history[split:], nil)
	olderAvg := stat.Mean(history[:split], nil)

	switch {
	case recentAvg > olderAvg*increaseRatio:
		return domain.TrendIncreasing
	case recentAvg < olderAvg*decreaseRatio:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// Anomaly scores the last value of history with a median/MAD modified
// z-score.
func (a *Analyzer) Anomaly(history []float64) domain.Anomaly {
	if len(history) < MinPoints {
		return domain.Anomaly{}
	}

	scores := ModifiedZScores(history)
	last := scores[len(scores)-1]
	return domain.Anomaly{
		IsAnomaly: math.Abs(last) > a.AnomalyThreshold,
		Score:     last,
	}
}

// ModifiedZScores returns 0.6745*(x-median)/MAD for every value. A zero MAD
// is replaced by a small epsilon.
func ModifiedZScores(values []float64) []float64 {
	med := Median(values)

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := Median(deviations)
	if mad == 0 {
		mad = madEpsilon
	}

	scores := make([]float64, len(values))
	for i, v := range values {
		scores[i] = zScoreScale * (v - med) / mad
	}
	return scores
}

// Median returns the middle value of values, averaging the two middle
// values for even lengths. The input is not modified. Median of an empty
// slice is 0.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
