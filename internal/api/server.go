// Package api exposes the HTTP surface: paystub upload, processing
// submission, status checks, and report retrieval.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mytipspro/checkmychecks/internal/config"
	"github.com/mytipspro/checkmychecks/internal/obs"
	"github.com/mytipspro/checkmychecks/internal/paystub"
	"github.com/mytipspro/checkmychecks/internal/queue"
	"github.com/mytipspro/checkmychecks/internal/repository"
)

// ObjectStore is the slice of blob storage the API needs.
type ObjectStore interface {
	UploadPaystub(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PresignReportURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// TaskEnqueuer hands a processing job to the background queue.
type TaskEnqueuer func(ctx context.Context, payload queue.ProcessPayload) error

// Server exposes HTTP endpoints for uploads, processing, and job status.
type Server struct {
	cfg     *config.Config
	jobs    repository.Store
	store   ObjectStore
	enqueue TaskEnqueuer
	logger  zerolog.Logger
	server  *http.Server
	once    sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, jobs repository.Store, store ObjectStore, enqueue TaskEnqueuer, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		jobs:    jobs,
		store:   store,
		enqueue: enqueue,
		logger:  logger,
	}
}

// Router builds the route table. Exposed separately so tests can exercise
// handlers without binding a socket.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", obs.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/upload-paystub", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/process-paystub", s.handleProcess).Methods(http.MethodPost)
	r.HandleFunc("/check-status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/report-url", s.handleReportURL).Methods(http.MethodGet)
	r.Use(corsMiddleware, s.loggingMiddleware, obs.MetricsMiddleware)
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.HTTPAddress,
			Handler: s.Router(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("address", s.cfg.HTTPAddress).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}

	var recipient string
	var tmp *tempUpload
	defer func() {
		if tmp != nil {
			tmp.f.Close()
			os.Remove(tmp.path)
		}
	}()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "malformed multipart form")
			return
		}
		switch part.FormName() {
		case "recipient_email":
			raw, readErr := io.ReadAll(io.LimitReader(part, 512))
			part.Close()
			if readErr != nil {
				respondError(w, http.StatusBadRequest, "read recipient_email")
				return
			}
			recipient = strings.TrimSpace(string(raw))
		case "file":
			tmp, err = s.persistTemp(part)
			part.Close()
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		default:
			part.Close()
		}
	}

	if tmp == nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		respondError(w, http.StatusBadRequest, "invalid recipient_email")
		return
	}
	if !strings.EqualFold(filepath.Ext(tmp.filename), ".pdf") {
		respondError(w, http.StatusBadRequest, "only .pdf files are accepted")
		return
	}
	if tmp.contentType != "application/pdf" {
		respondError(w, http.StatusBadRequest, "file content is not a PDF")
		return
	}

	objectKey := fmt.Sprintf("paystubs/%s/%s", uuid.NewString(), filepath.Base(tmp.filename))
	if _, err := tmp.f.Seek(0, 0); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	if err := s.store.UploadPaystub(ctx, objectKey, tmp.f, tmp.size, tmp.contentType); err != nil {
		s.logger.Error().Err(err).Msg("upload to storage failed")
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	job := &repository.PaystubJob{
		ID:           repository.JobIDFor(objectKey),
		SourceHandle: objectKey,
		FileName:     tmp.filename,
		Recipient:    recipient,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error().Err(err).Msg("create job record failed")
		respondError(w, http.StatusInternalServerError, "failed to record job")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"source_handle": objectKey,
		"job_id":        job.ID,
		"status":        string(repository.StatusUploaded),
	})
}

type processRequest struct {
	SourceHandle   string                    `json:"source_handle"`
	RecipientEmail string                    `json:"recipient_email"`
	ManualShift    *paystub.ManualShiftInput `json:"manual_shift_input"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceHandle == "" {
		respondError(w, http.StatusBadRequest, "source_handle is required")
		return
	}
	if _, err := mail.ParseAddress(req.RecipientEmail); err != nil {
		respondError(w, http.StatusBadRequest, "invalid recipient_email")
		return
	}
	manual := paystub.ManualShiftInput{}
	if req.ManualShift != nil {
		if req.ManualShift.ExceededShiftCount < 0 {
			respondError(w, http.StatusBadRequest, "exceeded_shift_count must not be negative")
			return
		}
		manual = *req.ManualShift
	}

	jobID := repository.JobIDFor(req.SourceHandle)
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown source handle")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	if err := s.jobs.MarkProcessing(ctx, jobID, req.RecipientEmail); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update job")
		return
	}
	payload := queue.ProcessPayload{
		JobID:        jobID,
		SourceHandle: job.SourceHandle,
		FileName:     job.FileName,
		Recipient:    req.RecipientEmail,
		ManualShift:  manual,
	}
	if err := s.enqueue(ctx, payload); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
		_ = s.jobs.MarkFailed(ctx, jobID, "failed to queue processing job")
		respondError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(repository.StatusProcessing),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("source_handle")
	if handle == "" {
		respondError(w, http.StatusBadRequest, "source_handle is required")
		return
	}
	job, err := s.jobs.Get(r.Context(), repository.JobIDFor(handle))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "unknown"})
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id":  job.ID,
		"status":  string(job.Status),
		"message": job.Message,
	})
}

func (s *Server) handleReportURL(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("source_handle")
	if handle == "" {
		respondError(w, http.StatusBadRequest, "source_handle is required")
		return
	}
	job, err := s.jobs.Get(r.Context(), repository.JobIDFor(handle))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown source handle")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job.ReportKey == nil {
		respondError(w, http.StatusNotFound, "report not available")
		return
	}
	ttl := time.Duration(s.cfg.ReportURLTTLSecs) * time.Second
	url, err := s.store.PresignReportURL(r.Context(), *job.ReportKey, ttl)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate url")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

// persistTemp streams the multipart file part to a temp file, enforcing the
// size cap and sniffing the content type from the first 512 bytes.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "checkmychecks-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxUploadBytes {
				cleanup()
				return nil, fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxUploadBytes)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				cleanup()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			cleanup()
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		cleanup()
		return nil, errors.New("empty file")
	}
	filename := part.FileName()
	if filename == "" {
		filename = "upload.pdf"
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
		filename:    filename,
	}, nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
