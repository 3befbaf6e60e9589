package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/internal/service/invoice"
	"github.com/gestornet/invoice-extractor/internal/template"
	"github.com/gestornet/invoice-extractor/internal/utils/validator"
	"github.com/gestornet/invoice-extractor/pkg/logger"
	"github.com/gestornet/invoice-extractor/pkg/queue"
	"github.com/gestornet/invoice-extractor/pkg/storage"
)

// InvoiceHandler exposes batch extraction over HTTP: a synchronous path
// that returns the BatchResult inline and an asynchronous path that stages
// the files and enqueues a job.
type InvoiceHandler struct {
	service   *invoice.Service
	templates *template.Store
	queue     queue.Queue
	storage   storage.Storage
	validator *validator.BatchValidator
	logger    logger.Logger
}

// ErrorResponse is the error body of every handler.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// JobResponse acknowledges an asynchronous submission.
type JobResponse struct {
	BatchID   string `json:"batchId"`
	State     string `json:"state"`
	Documents int    `json:"documents"`
	CreatedAt string `json:"createdAt"`
}

func NewInvoiceHandler(
	service *invoice.Service,
	templates *template.Store,
	q queue.Queue,
	store storage.Storage,
	v *validator.BatchValidator,
	log logger.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		service:   service,
		templates: templates,
		queue:     q,
		storage:   store,
		validator: v,
		logger:    log,
	}
}

// ProcessBatch handles the synchronous path: extract every uploaded PDF
// and return the batch result inline.
func (h *InvoiceHandler) ProcessBatch(c *gin.Context) {
	files, advisor, forceOCR, ok := h.parseBatchForm(c)
	if !ok {
		return
	}

	docs, err := readDocuments(files, advisor, forceOCR)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Failed to read uploaded files", err)
		return
	}

	result, err := h.service.ProcessBatch(c.Request.Context(), docs, advisor, forceOCR)
	if err != nil {
		if errors.Is(err, invoice.ErrEmptyBatch) {
			h.handleError(c, http.StatusBadRequest, "No documents supplied", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to process batch", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SubmitJob handles the asynchronous path: stage the PDFs in object
// storage and enqueue a batch task.
func (h *InvoiceHandler) SubmitJob(c *gin.Context) {
	files, advisor, forceOCR, ok := h.parseBatchForm(c)
	if !ok {
		return
	}

	batchID := uuid.New().String()
	task := &queue.BatchTask{
		BatchID:   batchID,
		Advisor:   advisor,
		ForceOCR:  forceOCR,
		CreatedAt: time.Now().UTC(),
	}

	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			h.handleError(c, http.StatusBadRequest, "Failed to open uploaded file", err)
			return
		}
		key := batchID + "/" + header.Filename
		_, err = h.storage.Store(c.Request.Context(), f, key)
		f.Close()
		if err != nil {
			h.handleError(c, http.StatusInternalServerError, "Failed to stage document", err)
			return
		}
		task.Documents = append(task.Documents, queue.StagedDocument{
			Key:      key,
			Filename: header.Filename,
		})
	}

	if err := h.queue.Enqueue(c.Request.Context(), task); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to enqueue batch job", err)
		return
	}

	c.JSON(http.StatusAccepted, JobResponse{
		BatchID:   batchID,
		State:     "queued",
		Documents: len(task.Documents),
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	})
}

// JobStatus reports the state of an asynchronous batch job, including the
// full result once completed.
func (h *InvoiceHandler) JobStatus(c *gin.Context) {
	batchID := c.Param("batchId")
	if batchID == "" {
		h.handleError(c, http.StatusBadRequest, "Batch ID is required", nil)
		return
	}

	status, err := h.queue.GetJobStatus(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			h.handleError(c, http.StatusNotFound, "Job not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to get job status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListTemplates exposes the loaded template hierarchy for operators.
func (h *InvoiceHandler) ListTemplates(c *gin.Context) {
	advisors := h.templates.Advisors()
	out := make(map[string][]string, len(advisors))
	for _, advisor := range advisors {
		out[advisor] = h.templates.TemplateIDs(advisor)
	}
	c.JSON(http.StatusOK, gin.H{"advisors": out})
}

// ReloadTemplates re-reads the template tree and swaps it atomically.
func (h *InvoiceHandler) ReloadTemplates(c *gin.Context) {
	if err := h.templates.Reload(); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to reload templates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Templates reloaded"})
}

// parseBatchForm extracts and validates the multipart batch request.
// Spanish form aliases (asesoria, forzarOCR) are accepted for
// compatibility with existing uploaders.
func (h *InvoiceHandler) parseBatchForm(c *gin.Context) ([]*multipart.FileHeader, string, bool, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return nil, "", false, false
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}

	if err := h.validator.ValidateBatch(files); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid batch", err)
		return nil, "", false, false
	}

	advisor := c.PostForm("advisor")
	if advisor == "" {
		advisor = c.PostForm("asesoria")
	}

	forceOCR := false
	if v := c.PostForm("force_ocr"); v != "" {
		forceOCR = v == "true" || v == "1"
	} else if v := c.PostForm("forzarOCR"); v != "" {
		forceOCR = v == "true" || v == "1"
	}

	return files, advisor, forceOCR, true
}

func readDocuments(files []*multipart.FileHeader, advisor string, forceOCR bool) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		docs = append(docs, models.Document{
			Content:  content,
			Filename: header.Filename,
			Advisor:  advisor,
			ForceOCR: forceOCR,
		})
	}
	return docs, nil
}

// handleError logs and writes a uniform error response.
func (h *InvoiceHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
