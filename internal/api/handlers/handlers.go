package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expenses-ingest/internal/api/middleware"
	"github.com/dvloznov/expenses-ingest/internal/assets"
	"github.com/dvloznov/expenses-ingest/internal/extract"
	"github.com/dvloznov/expenses-ingest/internal/jobs"
	"github.com/dvloznov/expenses-ingest/internal/normalize"
	"github.com/dvloznov/expenses-ingest/internal/report"
	"github.com/dvloznov/expenses-ingest/internal/schema"
	"github.com/dvloznov/expenses-ingest/internal/store"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// ExpensesHandler handles expense ingestion endpoints.
type ExpensesHandler struct {
	extractor  extract.Extractor
	normalizer *normalize.Normalizer
	txlog      store.TransactionLog
	assets     assets.AssetStore
	queue      jobs.Publisher
	log        zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler. queue may be nil when
// async ingestion is not wired.
func NewExpensesHandler(
	extractor extract.Extractor,
	normalizer *normalize.Normalizer,
	txlog store.TransactionLog,
	assetStore assets.AssetStore,
	queue jobs.Publisher,
	log zerolog.Logger,
) *ExpensesHandler {
	return &ExpensesHandler{
		extractor:  extractor,
		normalizer: normalizer,
		txlog:      txlog,
		assets:     assetStore,
		queue:      queue,
		log:        log,
	}
}

// IngestText handles POST /api/expenses/text. The expense text comes either
// as a JSON body {"text": ...} or a form field "text".
func (h *ExpensesHandler) IngestText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	text := h.readText(r)
	if text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	// Extraction never fails hard; a degraded result still becomes a
	// fully-defaulted record.
	parsed := h.extractor.ExtractText(ctx, text)
	rec := h.normalizer.Normalize(parsed, schema.SourceText, "")

	saved, err := h.txlog.Append(ctx, rec)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to append transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transaction")
		return
	}

	h.log.Info().
		Str("record_id", saved.ID).
		Str("category", saved.Category).
		Float64("total", saved.Total).
		Msg("Text expense stored")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"saved":  true,
		"parsed": parsed,
		"record": saved,
	})
}

// IngestReceipt handles POST /api/expenses/receipt: multipart upload of a
// receipt image, stored to the asset bucket, extracted and persisted. The
// upload-then-save sequence is best effort, not atomic; an extraction
// failure still yields a stored, defaulted record referencing the asset.
func (h *ExpensesHandler) IngestReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, contentType, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	assetURI, err := h.assets.PutAsset(ctx, data, contentType, filename)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upload receipt asset")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store receipt")
		return
	}

	parsed := h.extractor.ExtractReceipt(ctx, assetURI, contentType)
	rec := h.normalizer.Normalize(parsed, schema.SourceReceipt, assetURI)

	saved, err := h.txlog.Append(ctx, rec)
	if err != nil {
		h.log.Error().Err(err).Str("asset_uri", assetURI).Msg("Failed to append transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transaction")
		return
	}

	h.log.Info().
		Str("record_id", saved.ID).
		Str("asset_uri", assetURI).
		Msg("Receipt expense stored")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"uploaded":  true,
		"asset_uri": assetURI,
		"parsed":    parsed,
		"record":    saved,
	})
}

// EnqueueReceipt handles POST /api/receipts/async: uploads the receipt and
// queues extraction + persistence for a background worker.
func (h *ExpensesHandler) EnqueueReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.queue == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async ingestion is not enabled")
		return
	}

	data, contentType, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	assetURI, err := h.assets.PutAsset(ctx, data, contentType, filename)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upload receipt asset")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store receipt")
		return
	}

	job := &jobs.IngestReceiptJob{
		AssetURI:    assetURI,
		ContentType: contentType,
	}
	if err := h.queue.PublishIngestReceipt(ctx, job); err != nil {
		h.log.Error().Err(err).Str("asset_uri", assetURI).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("asset_uri", assetURI).Msg("Ingest job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"asset_uri": assetURI,
		"status":    string(job.Status),
	})
}

func (h *ExpensesHandler) readText(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ""
		}
		return strings.TrimSpace(req.Text)
	}
	return strings.TrimSpace(r.FormValue("text"))
}

// readUpload reads the multipart "file" field. On failure it writes the
// error response itself and returns ok=false.
func (h *ExpensesHandler) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, contentType, filename string, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart request")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return nil, "", "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return nil, "", "", false
	}

	contentType = header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return data, contentType, header.Filename, true
}

// ReportHandler handles the category report endpoint.
type ReportHandler struct {
	txlog  store.TransactionLog
	userID string
	nowFn  func() time.Time
	log    zerolog.Logger
}

// NewReportHandler creates a new report handler for the configured owning
// identity.
func NewReportHandler(txlog store.TransactionLog, userID string, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		txlog:  txlog,
		userID: userID,
		nowFn:  time.Now,
		log:    log,
	}
}

// Report handles GET /api/report?days=N (default 30).
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := report.DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	records, err := h.txlog.ReadAll(ctx, h.userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read transaction log")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read transactions")
		return
	}

	buckets := report.Summarize(records, days, h.nowFn().UTC())

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"days":        days,
		"by_category": buckets,
	})
}

// JobsHandler exposes async ingestion job status.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs with an optional ?status= filter.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:  100,
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
