package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/api/middleware"
	"github.com/dvloznov/txnflow/internal/gcsarchive"
	"github.com/dvloznov/txnflow/internal/jobs"
	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/patterns"
	"github.com/dvloznov/txnflow/internal/pipeline"
	"github.com/dvloznov/txnflow/internal/store"
)

// UploadsHandler handles export-file upload endpoints.
type UploadsHandler struct {
	ingestor   *pipeline.Ingestor
	publisher  jobs.Publisher
	bucket     string
	maxRetries int
	log        zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler. The bucket may be empty,
// which disables the async ingestion endpoint. maxRetries caps retry
// attempts for the published jobs; zero keeps the queue default.
func NewUploadsHandler(ingestor *pipeline.Ingestor, publisher jobs.Publisher, bucket string, maxRetries int, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		ingestor:   ingestor,
		publisher:  publisher,
		bucket:     bucket,
		maxRetries: maxRetries,
		log:        log,
	}
}

// readUploads pulls every uploaded file out of the multipart form. Both the
// singular "file" field and the repeated "files" field are accepted.
func readUploads(r *http.Request) ([]pipeline.File, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("readUploads: %w", err)
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = append(headers, r.MultipartForm.File["files"]...)
		headers = append(headers, r.MultipartForm.File["file"]...)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("readUploads: no files in request")
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("readUploads: open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("readUploads: read %s: %w", fh.Filename, err)
		}
		files = append(files, pipeline.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

// Upload handles POST /api/profiles/{profileID}/upload
// The uploaded files run through the full pipeline synchronously and the
// merge outcome is returned.
func (h *UploadsHandler) Upload(w http.ResponseWriter, r *http.Request, profileID string) {
	files, err := readUploads(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ingestor.IngestFiles(r.Context(), profileID, files)
	if err != nil {
		h.log.Error().Err(err).Str("profileID", profileID).Msg("Ingestion failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// EnqueueIngest handles POST /api/profiles/{profileID}/ingest
// Each file is archived to GCS and a background ingestion job is published
// per file. Poll /api/jobs/{id} for the outcome.
func (h *UploadsHandler) EnqueueIngest(w http.ResponseWriter, r *http.Request, profileID string) {
	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async ingestion requires a GCS bucket")
		return
	}

	files, err := readUploads(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	queued := make([]map[string]string, 0, len(files))
	for _, f := range files {
		uri, err := gcsarchive.Archive(ctx, h.bucket, profileID, f.Name, f.Data)
		if err != nil {
			h.log.Error().Err(err).Str("file", f.Name).Msg("Failed to archive upload")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to archive "+f.Name)
			return
		}

		job := &jobs.IngestFileJob{
			ProfileID:  profileID,
			GCSURI:     uri,
			FileName:   f.Name,
			MaxRetries: h.maxRetries,
		}
		if err := h.publisher.PublishIngestFile(ctx, job); err != nil {
			h.log.Error().Err(err).Str("file", f.Name).Msg("Failed to enqueue ingestion job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
			return
		}

		h.log.Info().Str("job_id", job.JobID).Str("file", f.Name).Msg("Ingestion job enqueued")
		queued = append(queued, map[string]string{
			"job_id":  job.JobID,
			"file":    f.Name,
			"gcs_uri": uri,
			"status":  string(job.Status),
		})
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobs":  queued,
		"count": len(queued),
	})
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	transactions store.TransactionStore
	mappings     store.MappingStore
	ingestor     *pipeline.Ingestor
	log          zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions store.TransactionStore, mappings store.MappingStore, ingestor *pipeline.Ingestor, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		transactions: transactions,
		mappings:     mappings,
		ingestor:     ingestor,
		log:          log,
	}
}

// List handles GET /api/profiles/{profileID}/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request, profileID string) {
	query := r.URL.Query()
	filter := store.TransactionFilter{
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
		Type:      model.TransactionType(query.Get("type")),
	}
	for _, d := range []string{filter.StartDate, filter.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Dates must be YYYY-MM-DD")
			return
		}
	}

	transactions, err := h.transactions.GetTransactions(r.Context(), profileID, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []model.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// Delete handles DELETE /api/profiles/{profileID}/transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, profileID, id string) {
	if err := h.transactions.DeleteTransaction(r.Context(), profileID, id); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// DeleteAll handles DELETE /api/profiles/{profileID}/transactions
func (h *TransactionsHandler) DeleteAll(w http.ResponseWriter, r *http.Request, profileID string) {
	if err := h.transactions.DeleteAllTransactions(r.Context(), profileID); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ConfirmCategory handles POST /api/profiles/{profileID}/transactions/{id}/category
// The confirmed category is written back to the transaction and remembered
// as a personal mapping so future uploads of the same merchant classify
// without review.
func (h *TransactionsHandler) ConfirmCategory(w http.ResponseWriter, r *http.Request, profileID, id string) {
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !model.ValidCategory(req.Category) {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown category: "+req.Category)
		return
	}

	ctx := r.Context()
	existing, err := h.transactions.GetTransactions(ctx, profileID, store.TransactionFilter{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	var txn *model.Transaction
	for i := range existing {
		if existing[i].ID == id {
			txn = &existing[i]
			break
		}
	}
	if txn == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	txn.Category = req.Category
	txn.UserConfirmed = true
	txn.NeedsReview = false
	txn.Confidence = 1.0
	txn.ClassificationReason = "사용자 확인"

	if err := h.transactions.SaveTransactions(ctx, profileID, []model.Transaction{*txn}); err != nil {
		h.log.Error().Err(err).Msg("Failed to save transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transaction")
		return
	}

	mappingKey := txn.OriginalText
	if mappingKey == "" {
		mappingKey = txn.Name
	}
	if err := h.mappings.SavePersonalMapping(ctx, profileID, mappingKey, req.Category); err != nil {
		// The confirmation itself succeeded; the mapping is best effort.
		h.log.Warn().Err(err).Str("text", mappingKey).Msg("Failed to save personal mapping")
	}

	middleware.WriteJSON(w, http.StatusOK, txn)
}

// Reclassify handles POST /api/profiles/{profileID}/transactions/reclassify
func (h *TransactionsHandler) Reclassify(w http.ResponseWriter, r *http.Request, profileID string) {
	var req struct {
		Scope     string  `json:"scope"`
		Threshold float64 `json:"threshold"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	res, err := h.ingestor.Reclassify(r.Context(), profileID, pipeline.ReclassifyScope(req.Scope), req.Threshold)
	if err != nil {
		h.log.Error().Err(err).Msg("Reclassification failed")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Source describes one upload source reconstructed from stored transactions.
type Source struct {
	SourceFile    string `json:"sourceFile"`
	CardName      string `json:"cardName,omitempty"`
	CardNumber    string `json:"cardNumber,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Count         int    `json:"transactionCount"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

// ListSources handles GET /api/profiles/{profileID}/sources
// Stored transactions are grouped by their source label.
func (h *TransactionsHandler) ListSources(w http.ResponseWriter, r *http.Request, profileID string) {
	transactions, err := h.transactions.GetTransactions(r.Context(), profileID, store.TransactionFilter{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	byFile := make(map[string]*Source)
	var order []string
	for _, txn := range transactions {
		key := txn.SourceFile
		if key == "" {
			key = "직접 입력"
		}
		src, ok := byFile[key]
		if !ok {
			src = &Source{
				SourceFile:    key,
				CardName:      txn.SourceCardName,
				CardNumber:    txn.SourceCardNumber,
				AccountNumber: txn.SourceAccountNumber,
				StartDate:     txn.Date,
				EndDate:       txn.Date,
			}
			byFile[key] = src
			order = append(order, key)
		}
		src.Count++
		if txn.Date < src.StartDate {
			src.StartDate = txn.Date
		}
		if txn.Date > src.EndDate {
			src.EndDate = txn.Date
		}
	}

	sources := make([]*Source, 0, len(order))
	for _, key := range order {
		sources = append(sources, byFile[key])
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

// Analyze handles GET /api/profiles/{profileID}/analyze
// The window defaults to the last six months; override with ?months=N.
func (h *TransactionsHandler) Analyze(w http.ResponseWriter, r *http.Request, profileID string) {
	months := patterns.DefaultWindowMonths
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		months = n
	}

	filter := store.TransactionFilter{
		StartDate: time.Now().AddDate(0, -months, 0).Format("2006-01-02"),
	}
	transactions, err := h.transactions.GetTransactions(r.Context(), profileID, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, patterns.Analyze(transactions))
}

// MappingsHandler handles personal and shared keyword mapping endpoints.
type MappingsHandler struct {
	mappings store.MappingStore
	log      zerolog.Logger
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(mappings store.MappingStore, log zerolog.Logger) *MappingsHandler {
	return &MappingsHandler{mappings: mappings, log: log}
}

// ListPersonal handles GET /api/profiles/{profileID}/mappings
func (h *MappingsHandler) ListPersonal(w http.ResponseWriter, r *http.Request, profileID string) {
	personal, err := h.mappings.PersonalMappings(r.Context(), profileID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list personal mappings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list personal mappings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"mappings": personal,
		"count":    len(personal),
	})
}

// SavePersonal handles POST /api/profiles/{profileID}/mappings
func (h *MappingsHandler) SavePersonal(w http.ResponseWriter, r *http.Request, profileID string) {
	var req struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Text is required")
		return
	}
	if !model.ValidCategory(req.Category) {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown category: "+req.Category)
		return
	}

	if err := h.mappings.SavePersonalMapping(r.Context(), profileID, req.Text, req.Category); err != nil {
		h.log.Error().Err(err).Msg("Failed to save personal mapping")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save personal mapping")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"text":     req.Text,
		"category": req.Category,
	})
}

// DeletePersonal handles DELETE /api/profiles/{profileID}/mappings/{text}
func (h *MappingsHandler) DeletePersonal(w http.ResponseWriter, r *http.Request, profileID, text string) {
	if err := h.mappings.DeletePersonalMapping(r.Context(), profileID, text); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete personal mapping")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete personal mapping")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"text": text, "status": "deleted"})
}

// ListKeywords handles GET /api/mappings/keywords
func (h *MappingsHandler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.mappings.KeywordMappings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list keyword mappings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list keyword mappings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"mappings": keywords,
		"count":    len(keywords),
	})
}

// SaveKeyword handles POST /api/mappings/keywords
func (h *MappingsHandler) SaveKeyword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyword  string `json:"keyword"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Keyword == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Keyword is required")
		return
	}
	if !model.ValidCategory(req.Category) {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown category: "+req.Category)
		return
	}

	if err := h.mappings.SaveKeywordMapping(r.Context(), req.Keyword, req.Category); err != nil {
		h.log.Error().Err(err).Msg("Failed to save keyword mapping")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save keyword mapping")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"keyword":  req.Keyword,
		"category": req.Category,
	})
}

// DeleteKeyword handles DELETE /api/mappings/keywords/{keyword}
func (h *MappingsHandler) DeleteKeyword(w http.ResponseWriter, r *http.Request, keyword string) {
	if err := h.mappings.DeleteKeywordMapping(r.Context(), keyword); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete keyword mapping")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete keyword mapping")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"keyword": keyword, "status": "deleted"})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		ProfileID: query.Get("profile_id"),
		Status:    jobs.JobStatus(query.Get("status")),
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

	jobsList, err := h.store.ListJobs(r.Context(), filter)
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
