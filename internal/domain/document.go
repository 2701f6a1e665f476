package domain

// UserProfile holds the user-facing settings stored next to bills and
// transactions.
type UserProfile struct {
	Name              string                 `json:"name"`
	ConnectedAccounts []string               `json:"connected_accounts"`
	BillStreaks       map[string]int         `json:"bill_streaks"`
	Preferences       map[string]interface{} `json:"preferences"`
}

// Preference keys written into a new profile.
const (
	PrefAlertDaysBefore  = "alert_days_before"
	PrefEnableAICoaching = "enable_ai_coaching"
)

// AlertDaysBefore returns the alert_days_before preference, or 3 when it is
// unset or not a number.
func (p UserProfile) AlertDaysBefore() int {
	switch v := p.Preferences[PrefAlertDaysBefore].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 3
	}
}

// Document is the single persisted JSON document.
type Document struct {
	Bills        []Bill        `json:"bills"`
	Transactions []Transaction `json:"transactions"`
	UserProfile  UserProfile   `json:"user_profile"`
}

// NewDocument returns an empty document for the named user.
func NewDocument(userName string) *Document {
	return &Document{
		Bills:        []Bill{},
		Transactions: []Transaction{},
		UserProfile: UserProfile{
			Name:              userName,
			ConnectedAccounts: []string{},
			BillStreaks:       map[string]int{},
			Preferences: map[string]interface{}{
				PrefAlertDaysBefore:  3,
				PrefEnableAICoaching: true,
			},
		},
	}
}
