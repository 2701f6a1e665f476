package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/jomei/notionapi"
)

// mockNotionService is an in-memory NotionService with hand-set hooks.
type mockNotionService struct {
	pages      [][]notionapi.Page // one slice per query page
	created    []notionapi.Properties
	updated    map[string]notionapi.Properties
	archived   []string
	createFunc func(props notionapi.Properties) (*notionapi.Page, error)
	queries    int
}

func newMockNotionService(pages ...[]notionapi.Page) *mockNotionService {
	return &mockNotionService{pages: pages, updated: map[string]notionapi.Properties{}}
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.createFunc != nil {
		return m.createFunc(props)
	}
	m.created = append(m.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID("new-page")}, nil
}

func (m *mockNotionService) UpdatePage(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	m.updated[pageID] = props
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	i := m.queries
	m.queries++
	if i >= len(m.pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    m.pages[i],
		HasMore:    i < len(m.pages)-1,
		NextCursor: notionapi.Cursor("next"),
	}, nil
}

func (m *mockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	m.archived = append(m.archived, pageID)
	return nil
}

func page(id, merchant string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropMerchant: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: merchant}},
			},
		},
	}
}

func testBill(merchant string, amount float64) domain.Bill {
	return domain.Bill{
		Merchant:         merchant,
		Amount:           amount,
		Frequency:        domain.FrequencyMonthly,
		Type:             domain.BillTypeSubscription,
		LastPaid:         civil.Date{Year: 2025, Month: 3, Day: 15},
		TransactionCount: 3,
		AmountTrend:      domain.TrendStable,
		AmountHistory:    []float64{amount, amount, amount},
	}
}

func TestSyncBills(t *testing.T) {
	svc := newMockNotionService(
		[]notionapi.Page{page("p-netflix", "Netflix"), page("p-old", "Old Gym")},
		[]notionapi.Page{page("p-netflix-dup", "Netflix"), page("p-untitled", "")},
	)
	bills := []domain.Bill{testBill("Netflix", 15.99), testBill("Spotify", 9.99)}

	res, err := SyncBills(context.Background(), svc, "db", bills, false)
	if err != nil {
		t.Fatalf("SyncBills() error = %v", err)
	}

	if svc.queries != 2 {
		t.Errorf("queries = %d, want 2 (pagination)", svc.queries)
	}
	if res.Updated != 1 || res.Created != 1 || res.Archived != 3 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := svc.updated["p-netflix"]; !ok {
		t.Error("Netflix page not updated")
	}
	if len(svc.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(svc.created))
	}
	want := map[string]bool{"p-old": true, "p-netflix-dup": true, "p-untitled": true}
	for _, id := range svc.archived {
		if !want[id] {
			t.Errorf("unexpected archive of %s", id)
		}
	}
}

func TestSyncBillsDryRun(t *testing.T) {
	svc := newMockNotionService([]notionapi.Page{page("p-netflix", "Netflix"), page("p-old", "Old")})

	res, err := SyncBills(context.Background(), svc, "db", []domain.Bill{testBill("Netflix", 15.99), testBill("New", 5)}, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Updated != 1 || res.Archived != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(svc.created) != 0 || len(svc.updated) != 0 || len(svc.archived) != 0 {
		t.Error("dry run must not write")
	}
}

func TestSyncBillsCountsFailures(t *testing.T) {
	svc := newMockNotionService()
	svc.createFunc = func(props notionapi.Properties) (*notionapi.Page, error) {
		return nil, errors.New("rate limited")
	}

	res, err := SyncBills(context.Background(), svc, "db", []domain.Bill{testBill("A", 10)}, false)
	if err != nil {
		t.Fatalf("page failures must not fail the sync: %v", err)
	}
	if res.Failed != 1 || res.Created != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestBillToNotionProperties(t *testing.T) {
	b := testBill("Netflix", 15.99)
	b.Anomaly = domain.Anomaly{IsAnomaly: true, Score: 4.2}

	props := BillToNotionProperties(b)

	title, ok := props[PropMerchant].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "Netflix" {
		t.Errorf("title = %#v", props[PropMerchant])
	}
	if n := props[PropAmount].(notionapi.NumberProperty).Number; n != 15.99 {
		t.Errorf("amount = %v", n)
	}
	if s := props[PropType].(notionapi.SelectProperty).Select.Name; s != "Subscription" {
		t.Errorf("type = %q", s)
	}
	if !props[PropAnomaly].(notionapi.CheckboxProperty).Checkbox {
		t.Error("anomaly checkbox not set")
	}
	next := props[PropNextDue].(notionapi.DateProperty).Date.Start
	if got := time.Time(*next); !got.Equal(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("next due = %v", got)
	}
}

func TestExtractMerchant(t *testing.T) {
	if got := extractMerchant(page("p", "Netflix")); got != "Netflix" {
		t.Errorf("extractMerchant() = %q", got)
	}
	if got := extractMerchant(notionapi.Page{}); got != "" {
		t.Errorf("extractMerchant(empty) = %q", got)
	}
	value := notionapi.Page{Properties: notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{Title: []notionapi.RichText{{Text: &notionapi.Text{Content: "Rent"}}}},
	}}
	if got := extractMerchant(value); got != "Rent" {
		t.Errorf("extractMerchant(value) = %q", got)
	}
}
