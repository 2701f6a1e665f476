package recurrence

import (
	"strings"

	"github.com/dvloznov/bill-tracker/internal/domain"
)

// classifyRule assigns label when the lower-cased merchant contains any keyword.
type classifyRule struct {
	label    domain.BillType
	keywords []string
}

// classifyRules are checked in order and the first match wins; "auto" and
// "payment" are broad, so the narrower categories come first.
var classifyRules = []classifyRule{
	{domain.BillTypeRent, []string{"rent", "apartment", "housing"}},
	{domain.BillTypeUtilities, []string{"electric", "gas", "water", "trash", "disposal", "utility"}},
	{domain.BillTypeInternet, []string{"internet", "cable", "wifi", "ethernet"}},
	{domain.BillTypePhone, []string{"phone", "mobile", "cellular"}},
	{domain.BillTypeInsurance, []string{"insurance", "auto", "health"}},
	{domain.BillTypeSubscription, []string{"netflix", "spotify", "subscription", "streaming"}},
	{domain.BillTypeCreditCard, []string{"credit", "card", "payment"}},
	{domain.BillTypeLoan, []string{"loan", "mortgage"}},
}

// Classify returns the bill type for a merchant label. The amount is
// accepted for future amount-aware rules and is currently unused.
func Classify(merchant string, amount float64) domain.BillType {
	lower := strings.ToLower(merchant)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return domain.BillTypeOther
}
