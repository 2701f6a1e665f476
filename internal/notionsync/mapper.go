package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Bills database.
const (
	PropMerchant     = "Merchant"
	PropAmount       = "Amount"
	PropType         = "Type"
	PropFrequency    = "Frequency"
	PropLastPaid     = "Last Paid"
	PropNextDue      = "Next Due"
	PropTransactions = "Transactions"
	PropTrend        = "Trend"
	PropAnomaly      = "Unusual Price"
	PropAnomalyScore = "Anomaly Score"
)

// BillToNotionProperties converts a bill to the properties of its page.
func BillToNotionProperties(b domain.Bill) notionapi.Properties {
	return notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: b.Merchant},
				},
			},
		},
		PropAmount:       notionapi.NumberProperty{Number: b.Amount},
		PropType:         notionapi.SelectProperty{Select: notionapi.Option{Name: string(b.Type)}},
		PropFrequency:    notionapi.SelectProperty{Select: notionapi.Option{Name: string(b.Frequency)}},
		PropLastPaid:     dateProperty(b.LastPaid),
		PropNextDue:      dateProperty(b.NextDue()),
		PropTransactions: notionapi.NumberProperty{Number: float64(b.TransactionCount)},
		PropTrend:        notionapi.SelectProperty{Select: notionapi.Option{Name: string(b.AmountTrend)}},
		PropAnomaly:      notionapi.CheckboxProperty{Checkbox: b.Anomaly.IsAnomaly},
		PropAnomalyScore: notionapi.NumberProperty{Number: b.Anomaly.Score},
	}
}

func dateProperty(d civil.Date) notionapi.DateProperty {
	start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &start},
	}
}

// extractMerchant returns the title of a Bills page, or "" if it has none.
func extractMerchant(page notionapi.Page) string {
	prop, ok := page.Properties[PropMerchant]
	if !ok {
		return ""
	}
	var title []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		title = p.Title
	case notionapi.TitleProperty:
		title = p.Title
	}
	if len(title) == 0 {
		return ""
	}
	if title[0].PlainText != "" {
		return title[0].PlainText
	}
	if title[0].Text != nil {
		return title[0].Text.Content
	}
	return ""
}
