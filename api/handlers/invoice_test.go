package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/internal/service/invoice"
	"github.com/gestornet/invoice-extractor/internal/template"
	"github.com/gestornet/invoice-extractor/internal/utils/validator"
	"github.com/gestornet/invoice-extractor/pkg/logger"
	"github.com/gestornet/invoice-extractor/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, _ models.Document) ([]models.ExtractedPage, error) {
	text := "Factura nº FAC-1\nFecha: 31/12/2024\nEmisor: Acme SL\nNIF: B27123456\nIVA: 21,00\nTotal: 121,00 €"
	return []models.ExtractedPage{{Number: 1, Text: text, Source: models.SourceEmbedded, Quality: 1}}, nil
}

type fakeQueue struct {
	enqueued []*queue.BatchTask
	status   *queue.JobStatus
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, task *queue.BatchTask) error {
	q.enqueued = append(q.enqueued, task)
	return q.err
}

func (q *fakeQueue) GetJobStatus(_ context.Context, batchID string) (*queue.JobStatus, error) {
	if q.err != nil {
		return nil, q.err
	}
	s := *q.status
	s.BatchID = batchID
	return &s, nil
}

type fakeStorage struct {
	stored map[string][]byte
}

func (s *fakeStorage) Store(_ context.Context, r io.Reader, key string) (string, error) {
	if s.stored == nil {
		s.stored = map[string][]byte{}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.stored[key] = data
	return key, nil
}

func (s *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.stored[key])), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	delete(s.stored, key)
	return nil
}

func (s *fakeStorage) CleanupBefore(context.Context, time.Time) error { return nil }

func newTestRouter(t *testing.T, q queue.Queue, store *fakeStorage) *gin.Engine {
	t.Helper()

	log := logger.NewTestLogger()
	templates, err := template.NewStore(t.TempDir(), log)
	require.NoError(t, err)

	svc := invoice.NewService(stubExtractor{}, templates, invoice.Config{}, log)
	h := NewInvoiceHandler(svc, templates, q, store, validator.NewBatchValidator(10), log)

	r := gin.New()
	r.POST("/process", h.ProcessBatch)
	r.POST("/jobs", h.SubmitJob)
	r.GET("/jobs/:batchId", h.JobStatus)
	r.GET("/templates", h.ListTemplates)
	r.POST("/templates/reload", h.ReloadTemplates)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestProcessBatch_Sync(t *testing.T) {
	r := newTestRouter(t, &fakeQueue{}, &fakeStorage{})

	body, contentType := multipartBody(t,
		map[string]string{"asesoria": "gestoria-lugo", "forzarOCR": "1"},
		map[string][]byte{"factura.pdf": []byte("%PDF-fake")},
	)
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	// Spanish form aliases feed the same parameters as the english names.
	assert.Equal(t, "gestoria-lugo", result.Advisor)
	assert.True(t, result.ForceOCR)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "factura.pdf", result.Documents[0].Filename)
	assert.Equal(t, models.StatusOK, result.Documents[0].Status)
}

func TestProcessBatch_RejectsNonPDF(t *testing.T) {
	r := newTestRouter(t, &fakeQueue{}, &fakeStorage{})

	body, contentType := multipartBody(t, nil, map[string][]byte{"notas.txt": []byte("hola")})
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid batch", resp.Message)
}

func TestProcessBatch_NoFiles(t *testing.T) {
	r := newTestRouter(t, &fakeQueue{}, &fakeStorage{})

	body, contentType := multipartBody(t, map[string]string{"advisor": "a"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitJob(t *testing.T) {
	q := &fakeQueue{}
	store := &fakeStorage{}
	r := newTestRouter(t, q, store)

	body, contentType := multipartBody(t,
		map[string]string{"advisor": "gestoria-lugo"},
		map[string][]byte{"a.pdf": []byte("%PDF-a"), "b.pdf": []byte("%PDF-b")},
	)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, "queued", resp.State)
	assert.Equal(t, 2, resp.Documents)

	require.Len(t, q.enqueued, 1)
	task := q.enqueued[0]
	assert.Equal(t, resp.BatchID, task.BatchID)
	assert.Equal(t, "gestoria-lugo", task.Advisor)
	require.Len(t, task.Documents, 2)

	// Every document is staged under the batch id before the job exists.
	require.Len(t, store.stored, 2)
	for _, d := range task.Documents {
		assert.True(t, strings.HasPrefix(d.Key, resp.BatchID+"/"), d.Key)
		assert.Contains(t, store.stored, d.Key)
	}
}

func TestJobStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		q := &fakeQueue{status: &queue.JobStatus{State: "completed", Result: json.RawMessage(`{"batchId":"x"}`)}}
		r := newTestRouter(t, q, &fakeStorage{})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/abc-123", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var status queue.JobStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, "abc-123", status.BatchID)
		assert.Equal(t, "completed", status.State)
		assert.NotEmpty(t, status.Result)
	})

	t.Run("not found", func(t *testing.T) {
		q := &fakeQueue{err: queue.ErrJobNotFound}
		r := newTestRouter(t, q, &fakeStorage{})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListAndReloadTemplates(t *testing.T) {
	r := newTestRouter(t, &fakeQueue{}, &fakeStorage{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"advisors":{}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/templates/reload", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVersionInfo(t *testing.T) {
	r := gin.New()
	r.GET("/version", VersionInfo("staging"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, "staging", body["env"])
}
