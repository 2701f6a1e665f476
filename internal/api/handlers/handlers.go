package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/api/middleware"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/insights"
	"github.com/dvloznov/bill-tracker/internal/jobs"
	"github.com/dvloznov/bill-tracker/internal/pipeline"
	"github.com/dvloznov/bill-tracker/internal/store"
	"github.com/rs/zerolog"
)

// maxDetectBody caps the size of an inline POST /api/detect payload.
const maxDetectBody = 10 << 20

// BillsHandler serves the bills document: bills, transactions and the
// reports derived from them.
type BillsHandler struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewBillsHandler creates a new bills handler.
func NewBillsHandler(st store.Store, log zerolog.Logger) *BillsHandler {
	return &BillsHandler{
		store: st,
		log:   log,
		now:   time.Now,
	}
}

func (h *BillsHandler) load(w http.ResponseWriter, r *http.Request) (*domain.Document, bool) {
	doc, err := h.store.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load bills document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load bills")
		return nil, false
	}
	return doc, true
}

// ListBills handles GET /api/bills
//
// Optional filters: type=<label>, anomalous=true.
func (h *BillsHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	billType := domain.BillType(query.Get("type"))
	anomalousOnly, _ := strconv.ParseBool(query.Get("anomalous"))

	bills := []domain.Bill{}
	total := 0.0
	for _, b := range doc.Bills {
		if billType != "" && b.Type != billType {
			continue
		}
		if anomalousOnly && !b.Anomaly.IsAnomaly {
			continue
		}
		bills = append(bills, b)
		total += b.Amount
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills":         bills,
		"count":         len(bills),
		"monthly_total": total,
	})
}

// ListTransactions handles GET /api/transactions
//
// Optional filters: start_date and end_date (YYYY-MM-DD, inclusive).
func (h *BillsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	start, err := parseDateParam(query.Get("start_date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)")
		return
	}
	end, err := parseDateParam(query.Get("end_date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)")
		return
	}

	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	transactions := []domain.Transaction{}
	for _, tx := range doc.Transactions {
		if start != nil && tx.Date.Before(*start) {
			continue
		}
		if end != nil && tx.Date.After(*end) {
			continue
		}
		transactions = append(transactions, tx)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// Insights handles GET /api/insights
func (h *BillsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	summary := insights.Summarize(doc.UserProfile.Name, doc.Bills)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summary":       summary,
		"lines":         summary.Lines(),
		"subscriptions": insights.SubscriptionCandidates(doc.Bills),
	})
}

// Alerts handles GET /api/alerts
//
// today=YYYY-MM-DD overrides the reference date for due-date checks.
func (h *BillsHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	today := civil.DateOf(h.now())
	if v := r.URL.Query().Get("today"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid today format (use YYYY-MM-DD)")
			return
		}
		today = d
	}

	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	dueSoon := doc.UserProfile.AlertDaysBefore()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"today":        today,
		"price_alerts": insights.PriceAlerts(doc.Bills),
		"upcoming":     insights.UpcomingBills(today, doc.Bills, insights.UpcomingWindowDays, dueSoon),
	})
}

// DetectHandler enqueues detection runs.
type DetectHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewDetectHandler creates a new detect handler.
func NewDetectHandler(publisher jobs.Publisher, log zerolog.Logger) *DetectHandler {
	return &DetectHandler{
		publisher: publisher,
		log:       log,
	}
}

type detectRequest struct {
	Source       jobs.Source     `json:"source"`
	Transactions json.RawMessage `json:"transactions"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	NoCanonical  bool            `json:"no_canonical"`
}

// EnqueueDetection handles POST /api/detect
//
// An empty body re-runs detection over the stored transactions. A body with
// "transactions" runs over those instead; source "bigquery" with
// start_date/end_date reads them from the warehouse.
func (h *DetectHandler) EnqueueDetection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req detectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDetectBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := req.toJob()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.PublishDetectBills(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue detection job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue detection job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("source", string(job.Source)).
		Int("transactions", len(job.Transactions)).
		Msg("Detection job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.JobID,
		"status":  job.Status,
		"message": "Detection job enqueued",
	})
}

func (req detectRequest) toJob() (*jobs.DetectBillsJob, error) {
	job := &jobs.DetectBillsJob{
		Source:      req.Source,
		NoCanonical: req.NoCanonical,
	}

	hasTransactions := len(req.Transactions) > 0 && string(req.Transactions) != "null"
	if job.Source == "" {
		job.Source = jobs.SourceDocument
		if hasTransactions {
			job.Source = jobs.SourceInline
		}
	}

	switch job.Source {
	case jobs.SourceDocument:
	case jobs.SourceInline:
		if !hasTransactions {
			return nil, errors.New("transactions are required for the inline source")
		}
		txs, err := pipeline.DecodeTransactions(req.Transactions)
		if err != nil {
			return nil, err
		}
		job.Transactions = txs
	case jobs.SourceBigQuery:
		start, err := civil.ParseDate(req.StartDate)
		if err != nil {
			return nil, errors.New("start_date is required for the bigquery source (use YYYY-MM-DD)")
		}
		end, err := civil.ParseDate(req.EndDate)
		if err != nil {
			return nil, errors.New("end_date is required for the bigquery source (use YYYY-MM-DD)")
		}
		if end.Before(start) {
			return nil, errors.New("end_date is before start_date")
		}
		job.StartDate, job.EndDate = &start, &end
	default:
		return nil, errors.New("unknown source " + strconv.Quote(string(job.Source)))
	}
	return job, nil
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
		Source: jobs.Source(query.Get("source")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func parseDateParam(v string) (*civil.Date, error) {
	if v == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
