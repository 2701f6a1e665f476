// Package insights derives user-facing reports from detected bills: a
// summary, price alerts, upcoming due dates and subscription candidates.
package insights

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// SubscriptionCeiling is the monthly amount below which a bill counts
	// as a subscription.
	SubscriptionCeiling = 50.0
	// UpcomingWindowDays is how far ahead UpcomingBills looks by default.
	UpcomingWindowDays = 7
	// DueSoonDays is the default DUE SOON band.
	DueSoonDays = 3

	maxMerchantWidth = 35
	truncatedWidth   = 32
)

// Summary is the headline view of a user's bills.
type Summary struct {
	UserName          string       `json:"user_name"`
	BillCount         int          `json:"bill_count"`
	MonthlyTotal      float64      `json:"monthly_total"`
	Highest           *domain.Bill `json:"highest,omitempty"`
	SubscriptionCount int          `json:"subscription_count"`
	SubscriptionTotal float64      `json:"subscription_total"`
	Increasing        []string     `json:"increasing"`
}

// Summarize builds the Summary for bills.
func Summarize(userName string, bills []domain.Bill) Summary {
	s := Summary{
		UserName:     userName,
		BillCount:    len(bills),
		MonthlyTotal: floats.Sum(amounts(bills)),
		Increasing:   []string{},
	}

	var subs []float64
	for i := range bills {
		b := bills[i]
		if s.Highest == nil || b.Amount > s.Highest.Amount {
			s.Highest = &b
		}
		if b.Amount < SubscriptionCeiling {
			subs = append(subs, b.Amount)
		}
		if b.AmountTrend == domain.TrendIncreasing {
			s.Increasing = append(s.Increasing, b.Merchant)
		}
	}
	s.SubscriptionCount = len(subs)
	s.SubscriptionTotal = floats.Sum(subs)
	return s
}

// Lines renders the summary as short sentences, ending with the autopay tip.
func (s Summary) Lines() []string {
	lines := []string{
		fmt.Sprintf("Hi %s! You have %d recurring bills totaling $%.2f/month.", s.UserName, s.BillCount, s.MonthlyTotal),
	}
	if s.Highest != nil {
		lines = append(lines, fmt.Sprintf("Your highest bill is %s at $%.2f.", s.Highest.Merchant, s.Highest.Amount))
	}
	if s.SubscriptionCount > 0 {
		lines = append(lines, fmt.Sprintf("You're spending $%.2f/month on subscriptions. Consider reviewing these services.", s.SubscriptionTotal))
	}
	if len(s.Increasing) > 0 {
		lines = append(lines, "Some of your bills are increasing. Check the alerts for details.")
	}
	return append(lines, "Tip: Set up autopay for consistent bills to avoid late fees!")
}

func (s Summary) String() string {
	return strings.Join(s.Lines(), "\n")
}

// PriceAlert describes a bill whose latest charge is anomalous.
type PriceAlert struct {
	Merchant    string  `json:"merchant"`
	LastAmount  float64 `json:"last_amount"`
	UsualAmount float64 `json:"usual_amount"`
	Increase    float64 `json:"increase"`
	Score       float64 `json:"score"`
}

// PriceAlerts lists the anomalous bills, comparing the last charge with the
// mean of the earlier ones.
func PriceAlerts(bills []domain.Bill) []PriceAlert {
	alerts := []PriceAlert{}
	for _, b := range bills {
		if !b.Anomaly.IsAnomaly {
			continue
		}
		last, usual := b.Amount, b.Amount
		if n := len(b.AmountHistory); n > 0 {
			last = b.AmountHistory[n-1]
			if n > 1 {
				usual = stat.Mean(b.AmountHistory[:n-1], nil)
			}
		}
		alerts = append(alerts, PriceAlert{
			Merchant:    b.Merchant,
			LastAmount:  last,
			UsualAmount: usual,
			Increase:    last - usual,
			Score:       b.Anomaly.Score,
		})
	}
	return alerts
}

func (a PriceAlert) String() string {
	return fmt.Sprintf("UNUSUAL PRICE: %s charged $%.2f (usually $%.2f, %+.2f). This is unusually higher than normal.",
		a.Merchant, a.LastAmount, a.UsualAmount, a.Increase)
}

// DueStatus buckets an upcoming bill by how close it is.
type DueStatus string

const (
	StatusOverdue  DueStatus = "OVERDUE"
	StatusDueSoon  DueStatus = "DUE SOON"
	StatusUpcoming DueStatus = "UPCOMING"
)

// UpcomingBill is a bill whose next charge falls inside the look-ahead window.
type UpcomingBill struct {
	Merchant     string     `json:"merchant"`
	Amount       float64    `json:"amount"`
	NextDue      civil.Date `json:"next_due"`
	DaysUntilDue int        `json:"days_until_due"`
	Status       DueStatus  `json:"status"`
}

// UpcomingBills returns the bills due within withinDays of today, including
// overdue ones. Bills due in dueSoonDays or fewer are DUE SOON.
func UpcomingBills(today civil.Date, bills []domain.Bill, withinDays, dueSoonDays int) []UpcomingBill {
	out := []UpcomingBill{}
	for _, b := range bills {
		next := b.NextDue()
		days := next.DaysSince(today)
		if days > withinDays {
			continue
		}

		status := StatusUpcoming
		switch {
		case days <= 0:
			status = StatusOverdue
		case days <= dueSoonDays:
			status = StatusDueSoon
		}

		out = append(out, UpcomingBill{
			Merchant:     b.Merchant,
			Amount:       b.Amount,
			NextDue:      next,
			DaysUntilDue: days,
			Status:       status,
		})
	}
	return out
}

func (u UpcomingBill) String() string {
	return fmt.Sprintf("BILL: %s - $%.2f - %s (%d days)", u.Merchant, u.Amount, u.Status, u.DaysUntilDue)
}

// SubscriptionReport lists bills that look like cancellable subscriptions.
type SubscriptionReport struct {
	Bills []domain.Bill `json:"bills"`
	Total float64       `json:"total"`
}

// SubscriptionCandidates picks Subscription and Other bills under the
// subscription ceiling.
func SubscriptionCandidates(bills []domain.Bill) SubscriptionReport {
	r := SubscriptionReport{Bills: []domain.Bill{}}
	for _, b := range bills {
		if b.Type != domain.BillTypeSubscription && b.Type != domain.BillTypeOther {
			continue
		}
		if b.Amount >= SubscriptionCeiling {
			continue
		}
		r.Bills = append(r.Bills, b)
	}
	r.Total = floats.Sum(amounts(r.Bills))
	return r
}

// TruncateMerchant shortens names longer than 35 characters to 32 plus "...".
func TruncateMerchant(name string) string {
	if utf8.RuneCountInString(name) <= maxMerchantWidth {
		return name
	}
	return string([]rune(name)[:truncatedWidth]) + "..."
}

func amounts(bills []domain.Bill) []float64 {
	out := make([]float64, len(bills))
	for i, b := range bills {
		out[i] = b.Amount
	}
	return out
}
