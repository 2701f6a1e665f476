package insights

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bill(merchant string, amount float64, typ domain.BillType, lastPaid civil.Date) domain.Bill {
	return domain.Bill{
		Merchant:         merchant,
		Amount:           amount,
		Frequency:        domain.FrequencyMonthly,
		Type:             typ,
		LastPaid:         lastPaid,
		TransactionCount: 2,
		AmountTrend:      domain.TrendStable,
		AmountHistory:    []float64{amount, amount},
	}
}

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func demoBills() []domain.Bill {
	rent := bill("Monthly Rent Payment", 1200, domain.BillTypeRent, date(2025, 3, 1))
	netflix := bill("Netflix Monthly Subscription", 15.99, domain.BillTypeSubscription, date(2025, 3, 15))
	spotify := bill("Spotify Premium", 9.99, domain.BillTypeSubscription, date(2025, 3, 20))
	electric := bill("Electric Bill", 96.83, domain.BillTypeUtilities, date(2025, 3, 10))
	electric.AmountTrend = domain.TrendIncreasing
	return []domain.Bill{netflix, rent, electric, spotify}
}

func TestSummarize(t *testing.T) {
	s := Summarize("Derek", demoBills())

	assert.Equal(t, 4, s.BillCount)
	assert.InDelta(t, 1322.81, s.MonthlyTotal, 1e-9)
	require.NotNil(t, s.Highest)
	assert.Equal(t, "Monthly Rent Payment", s.Highest.Merchant)
	assert.Equal(t, 2, s.SubscriptionCount)
	assert.InDelta(t, 25.98, s.SubscriptionTotal, 1e-9)
	assert.Equal(t, []string{"Electric Bill"}, s.Increasing)

	lines := s.Lines()
	assert.Equal(t, "Hi Derek! You have 4 recurring bills totaling $1322.81/month.", lines[0])
	assert.Equal(t, "Your highest bill is Monthly Rent Payment at $1200.00.", lines[1])
	assert.Contains(t, s.String(), "$25.98/month on subscriptions")
	assert.Contains(t, s.String(), "Some of your bills are increasing")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "Tip: Set up autopay"))
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("Derek", nil)

	assert.Nil(t, s.Highest)
	assert.Equal(t, []string{
		"Hi Derek! You have 0 recurring bills totaling $0.00/month.",
		"Tip: Set up autopay for consistent bills to avoid late fees!",
	}, s.Lines())
}

func TestPriceAlerts(t *testing.T) {
	normal := bill("Gym", 30, domain.BillTypeOther, date(2025, 3, 1))
	spiked := bill("City Electric", 110, domain.BillTypeUtilities, date(2025, 3, 1))
	spiked.AmountHistory = []float64{100, 100, 100, 100, 140}
	spiked.Anomaly = domain.Anomaly{IsAnomaly: true, Score: 27.0}

	alerts := PriceAlerts([]domain.Bill{normal, spiked})

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "City Electric", a.Merchant)
	assert.Equal(t, 140.0, a.LastAmount)
	assert.Equal(t, 100.0, a.UsualAmount)
	assert.Equal(t, 40.0, a.Increase)
	assert.Contains(t, a.String(), "charged $140.00 (usually $100.00, +40.00)")
}

func TestPriceAlertsShortHistory(t *testing.T) {
	b := bill("X", 20, domain.BillTypeOther, date(2025, 1, 1))
	b.AmountHistory = []float64{25}
	b.Anomaly.IsAnomaly = true

	alerts := PriceAlerts([]domain.Bill{b})

	require.Len(t, alerts, 1)
	assert.Equal(t, 25.0, alerts[0].LastAmount)
	assert.Equal(t, 20.0, alerts[0].UsualAmount)
}

func TestUpcomingBills(t *testing.T) {
	today := date(2025, 4, 10)
	bills := []domain.Bill{
		bill("Overdue", 10, domain.BillTypeOther, date(2025, 3, 5)),   // due 04-05, -5
		bill("Today", 10, domain.BillTypeOther, date(2025, 3, 10)),    // due 04-10, 0
		bill("Soon", 10, domain.BillTypeOther, date(2025, 3, 13)),     // due 04-13, 3
		bill("Upcoming", 10, domain.BillTypeOther, date(2025, 3, 17)), // due 04-17, 7
		bill("Later", 10, domain.BillTypeOther, date(2025, 3, 18)),    // due 04-18, 8
	}

	got := UpcomingBills(today, bills, UpcomingWindowDays, DueSoonDays)

	require.Len(t, got, 4)
	want := []struct {
		merchant string
		days     int
		status   DueStatus
	}{
		{"Overdue", -5, StatusOverdue},
		{"Today", 0, StatusOverdue},
		{"Soon", 3, StatusDueSoon},
		{"Upcoming", 7, StatusUpcoming},
	}
	for i, w := range want {
		assert.Equal(t, w.merchant, got[i].Merchant)
		assert.Equal(t, w.days, got[i].DaysUntilDue, w.merchant)
		assert.Equal(t, w.status, got[i].Status, w.merchant)
	}
	assert.Equal(t, "BILL: Soon - $10.00 - DUE SOON (3 days)", got[2].String())
}

func TestUpcomingBillsClampsMonthEnd(t *testing.T) {
	got := UpcomingBills(date(2025, 2, 25), []domain.Bill{
		bill("Rent", 1000, domain.BillTypeRent, date(2025, 1, 31)),
	}, UpcomingWindowDays, DueSoonDays)

	require.Len(t, got, 1)
	assert.Equal(t, date(2025, 2, 28), got[0].NextDue)
	assert.Equal(t, 3, got[0].DaysUntilDue)
}

func TestSubscriptionCandidates(t *testing.T) {
	bills := []domain.Bill{
		bill("Netflix", 15.99, domain.BillTypeSubscription, date(2025, 1, 1)),
		bill("Gym", 35, domain.BillTypeOther, date(2025, 1, 1)),
		bill("Premium TV", 60, domain.BillTypeSubscription, date(2025, 1, 1)),
		bill("Phone", 40, domain.BillTypePhone, date(2025, 1, 1)),
		bill("Exactly50", 50, domain.BillTypeOther, date(2025, 1, 1)),
	}

	r := SubscriptionCandidates(bills)

	require.Len(t, r.Bills, 2)
	assert.Equal(t, "Netflix", r.Bills[0].Merchant)
	assert.Equal(t, "Gym", r.Bills[1].Merchant)
	assert.InDelta(t, 50.99, r.Total, 1e-9)
}

func TestTruncateMerchant(t *testing.T) {
	short := "Netflix"
	exact := strings.Repeat("a", 35)
	long := strings.Repeat("b", 36)

	assert.Equal(t, short, TruncateMerchant(short))
	assert.Equal(t, exact, TruncateMerchant(exact))
	assert.Equal(t, strings.Repeat("b", 32)+"...", TruncateMerchant(long))
	assert.Len(t, TruncateMerchant(long), 35)
}
