package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytipspro/checkmychecks/internal/config"
	"github.com/mytipspro/checkmychecks/internal/queue"
	"github.com/mytipspro/checkmychecks/internal/repository"
)

// pdfStub is enough of a PDF header for content sniffing to identify it.
var pdfStub = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{' '}, 64)...)

type fakeObjectStore struct {
	uploadErr   error
	uploads     int
	lastKey     string
	presignErr  error
	presignedTo string
}

func (f *fakeObjectStore) UploadPaystub(_ context.Context, objectKey string, r io.Reader, _ int64, _ string) error {
	f.uploads++
	f.lastKey = objectKey
	_, _ = io.Copy(io.Discard, r)
	return f.uploadErr
}

func (f *fakeObjectStore) PresignReportURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presignedTo = objectKey
	return "https://signed.example.com/" + objectKey, nil
}

type fakeEnqueuer struct {
	err      error
	calls    int
	payloads []queue.ProcessPayload
}

func (f *fakeEnqueuer) enqueue(_ context.Context, payload queue.ProcessPayload) error {
	f.calls++
	f.payloads = append(f.payloads, payload)
	return f.err
}

func newTestServer(store *fakeObjectStore, enq *fakeEnqueuer) (*Server, *repository.MemoryStore) {
	cfg := &config.Config{
		MaxUploadBytes:   10 << 20,
		ReportURLTTLSecs: 300,
	}
	jobs := repository.NewMemoryStore()
	return New(cfg, jobs, store, enq.enqueue, zerolog.Nop()), jobs
}

func multipartBody(t *testing.T, filename, recipient string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("recipient_email", recipient))
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHandleUpload_HappyPath(t *testing.T) {
	store := &fakeObjectStore{}
	srv, jobs := newTestServer(store, &fakeEnqueuer{})
	body, contentType := multipartBody(t, "stub.pdf", "jane@example.com", pdfStub)

	req := httptest.NewRequest(http.MethodPost, "/upload-paystub", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, "uploaded", out["status"])
	assert.NotEmpty(t, out["source_handle"])
	assert.True(t, strings.HasPrefix(out["source_handle"], "paystubs/"))
	assert.Equal(t, 1, store.uploads)

	job, err := jobs.Get(context.Background(), repository.JobIDFor(out["source_handle"]))
	require.NoError(t, err)
	assert.Equal(t, repository.StatusUploaded, job.Status)
	assert.Equal(t, "stub.pdf", job.FileName)
	assert.Equal(t, "jane@example.com", job.Recipient)
}

func TestHandleUpload_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		recipient string
		content   []byte
		wantMsg   string
	}{
		{"bad extension", "stub.txt", "jane@example.com", pdfStub, "only .pdf"},
		{"bad content", "stub.pdf", "jane@example.com", []byte("plain text, not a pdf at all"), "not a PDF"},
		{"bad email", "stub.pdf", "not-an-email", pdfStub, "recipient_email"},
		{"missing file", "", "jane@example.com", nil, "missing file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeObjectStore{}
			srv, _ := newTestServer(store, &fakeEnqueuer{})
			body, contentType := multipartBody(t, tt.filename, tt.recipient, tt.content)

			req := httptest.NewRequest(http.MethodPost, "/upload-paystub", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.wantMsg)
			assert.Zero(t, store.uploads, "rejected uploads must not reach storage")
		})
	}
}

func TestHandleUpload_SizeLimit(t *testing.T) {
	store := &fakeObjectStore{}
	srv, _ := newTestServer(store, &fakeEnqueuer{})
	srv.cfg.MaxUploadBytes = 128

	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{'x'}, 4096)...)
	body, contentType := multipartBody(t, "stub.pdf", "jane@example.com", big)

	req := httptest.NewRequest(http.MethodPost, "/upload-paystub", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "exceeds limit")
}

func submitUpload(t *testing.T, srv *Server) string {
	t.Helper()
	body, contentType := multipartBody(t, "stub.pdf", "jane@example.com", pdfStub)
	req := httptest.NewRequest(http.MethodPost, "/upload-paystub", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody(t, rec)["source_handle"]
}

func TestHandleProcess_HappyPath(t *testing.T) {
	enq := &fakeEnqueuer{}
	srv, jobs := newTestServer(&fakeObjectStore{}, enq)
	handle := submitUpload(t, srv)

	payload := fmt.Sprintf(`{
		"source_handle": %q,
		"recipient_email": "jane@example.com",
		"manual_shift_input": {"shifts_exceeded_threshold": true, "exceeded_shift_count": 2}
	}`, handle)
	req := httptest.NewRequest(http.MethodPost, "/process-paystub", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, "processing", out["status"])

	require.Equal(t, 1, enq.calls)
	assert.Equal(t, handle, enq.payloads[0].SourceHandle)
	assert.True(t, enq.payloads[0].ManualShift.ShiftsExceededThreshold)
	assert.Equal(t, 2, enq.payloads[0].ManualShift.ExceededShiftCount)

	job, err := jobs.Get(context.Background(), repository.JobIDFor(handle))
	require.NoError(t, err)
	assert.Equal(t, repository.StatusProcessing, job.Status)
}

func TestHandleProcess_Rejections(t *testing.T) {
	enq := &fakeEnqueuer{}
	srv, _ := newTestServer(&fakeObjectStore{}, enq)
	handle := submitUpload(t, srv)

	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{"unknown handle", `{"source_handle":"paystubs/nope/x.pdf","recipient_email":"jane@example.com"}`, http.StatusNotFound},
		{"missing handle", `{"recipient_email":"jane@example.com"}`, http.StatusBadRequest},
		{"bad email", fmt.Sprintf(`{"source_handle":%q,"recipient_email":"nope"}`, handle), http.StatusBadRequest},
		{"negative shift count", fmt.Sprintf(`{"source_handle":%q,"recipient_email":"jane@example.com","manual_shift_input":{"shifts_exceeded_threshold":true,"exceeded_shift_count":-1}}`, handle), http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/process-paystub", strings.NewReader(tt.payload))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, enq.calls)
}

func TestHandleStatus(t *testing.T) {
	srv, jobs := newTestServer(&fakeObjectStore{}, &fakeEnqueuer{})
	handle := submitUpload(t, srv)
	jobID := repository.JobIDFor(handle)
	require.NoError(t, jobs.MarkProcessing(context.Background(), jobID, "jane@example.com"))
	require.NoError(t, jobs.MarkFailed(context.Background(), jobID, "extract text: no text could be extracted from document"))

	req := httptest.NewRequest(http.MethodGet, "/check-status?source_handle="+handle, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Equal(t, "failed", out["status"])
	assert.Contains(t, out["message"], "no text could be extracted")
}

func TestHandleStatus_Unknown(t *testing.T) {
	srv, _ := newTestServer(&fakeObjectStore{}, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/check-status?source_handle=paystubs/none/x.pdf", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unknown", decodeBody(t, rec)["status"])
}

func TestHandleReportURL(t *testing.T) {
	store := &fakeObjectStore{}
	srv, jobs := newTestServer(store, &fakeEnqueuer{})
	handle := submitUpload(t, srv)
	jobID := repository.JobIDFor(handle)

	// Before the report exists.
	req := httptest.NewRequest(http.MethodGet, "/report-url?source_handle="+handle, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, jobs.MarkCompleted(context.Background(), jobID, "reports/"+jobID+"/compliance-report.pdf"))

	req = httptest.NewRequest(http.MethodGet, "/report-url?source_handle="+handle, nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["url"], "compliance-report.pdf")
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(&fakeObjectStore{}, &fakeEnqueuer{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}
