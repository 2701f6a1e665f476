package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Frequency is the detected cadence of a recurring bill.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
)

// BillType is the rule-based classification of a bill's merchant.
type BillType string

const (
	BillTypeRent         BillType = "Rent/Mortgage"
	BillTypeUtilities    BillType = "Utilities"
	BillTypeInternet     BillType = "Internet/Cable"
	BillTypePhone        BillType = "Phone/Mobile"
	BillTypeInsurance    BillType = "Insurance"
	BillTypeSubscription BillType = "Subscription"
	BillTypeCreditCard   BillType = "Credit Card"
	BillTypeLoan         BillType = "Loan Payment"
	BillTypeOther        BillType = "Other"
)

// BillTypes lists every classification label.
var BillTypes = []BillType{
	BillTypeRent,
	BillTypeUtilities,
	BillTypeInternet,
	BillTypePhone,
	BillTypeInsurance,
	BillTypeSubscription,
	BillTypeCreditCard,
	BillTypeLoan,
	BillTypeOther,
}

// Trend is the qualitative direction of a bill's recent amounts.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// Anomaly is the robust outlier signal for the most recent charge.
type Anomaly struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"score"`
}

// Bill is a recurring charge derived from a group of transactions.
//
// TransactionCount always equals len(AmountHistory) and LastPaid is the
// latest date in the group.
type Bill struct {
	Merchant         string     `json:"merchant"`
	Amount           float64    `json:"amount"`
	Frequency        Frequency  `json:"frequency"`
	Type             BillType   `json:"type"`
	LastPaid         civil.Date `json:"last_paid"`
	TransactionCount int        `json:"transaction_count"`
	AmountTrend      Trend      `json:"amount_trend"`
	AmountHistory    []float64  `json:"amount_history"`
	Anomaly          Anomaly    `json:"anomaly"`
}

// NextDue returns the expected date of the next charge, one calendar month
// after LastPaid. The day is clamped to the end of a shorter month, so a
// bill paid on Jan 31 is next due on Feb 28 (or 29).
func (b Bill) NextDue() civil.Date {
	return AddMonthClamped(b.LastPaid)
}

// AddMonthClamped moves d forward by one calendar month, clamping the day.
func AddMonthClamped(d civil.Date) civil.Date {
	year, month := d.Year, d.Month+1
	if month > time.December {
		year, month = year+1, time.January
	}
	// day 0 of the following month is the last day of this one
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := d.Day
	if day > lastDay {
		day = lastDay
	}
	return civil.Date{Year: year, Month: month, Day: day}
}
