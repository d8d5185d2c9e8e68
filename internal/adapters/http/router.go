package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/config"
	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
	"github.com/kirillkom/invoice-extractor/internal/observability/metrics"
)

const (
	filesField          = "files"
	multipartMemory     = 8 << 20
	backpressureWait    = 100 * time.Millisecond
	defaultMaxUploadMiB = 50
)

type BatchService interface {
	ports.BatchSubmitter
	ports.BatchReader
}

type Router struct {
	cfg            config.Config
	batches        BatchService
	verifier       ports.CredentialVerifier
	metrics        *metrics.HTTPServerMetrics
	metricsHandler http.Handler
	log            *slog.Logger
}

type RouterOption func(*Router)

// WithMetrics instruments requests and serves handler on GET /metrics.
func WithMetrics(m *metrics.HTTPServerMetrics, handler http.Handler) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
		rt.metricsHandler = handler
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.log = logger
		}
	}
}

func NewRouter(cfg config.Config, batches BatchService, verifier ports.CredentialVerifier, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:      cfg,
		batches:  batches,
		verifier: verifier,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}
	mux.HandleFunc("POST /v1/credentials/verify", rt.verifyCredential)
	mux.HandleFunc("POST /v1/batches", rt.submitBatch)
	mux.HandleFunc("GET /v1/batches/{id}", rt.getBatch)
	mux.HandleFunc("GET /v1/batches/{id}/files/{index}/report", rt.getReport)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait, rt.reject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.reject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.log, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) verifyCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider   string `json:"provider"`
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		rt.recordCredentialCheck("unknown", "error")
		rt.writeDomainError(w, r, err)
		return
	}

	valid, err := rt.verifier.Verify(r.Context(), provider, req.Credential)
	result := strconv.FormatBool(valid)
	if err != nil {
		result = "error"
	}
	rt.recordCredentialCheck(string(provider), result)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// recordCredentialCheck labels by parsed provider only, keeping client input out of metric labels.
func (rt *Router) recordCredentialCheck(provider, result string) {
	if rt.metrics != nil {
		rt.metrics.RecordCredentialCheck(provider, result)
	}
}

func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	files, err := rt.readUploads(w, r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		batch, err := rt.batches.Enqueue(r.Context(), files)
		if err != nil {
			rt.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, batch)
		return
	}

	batch, err := rt.batches.Run(r.Context(), files)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (rt *Router) getBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := rt.batches.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "file index must be a non-negative integer")
		return
	}

	report, err := rt.batches.Report(r.Context(), r.PathValue("id"), index)
	if rt.metrics != nil {
		result := "rendered"
		if err != nil {
			result = "error"
		}
		rt.metrics.RecordReport(result)
	}
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Content)
}

func (rt *Router) readUploads(w http.ResponseWriter, r *http.Request) ([]domain.UploadedFile, error) {
	maxMiB := rt.cfg.APIMaxUploadMB
	if maxMiB <= 0 {
		maxMiB = defaultMaxUploadMiB
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMiB)<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read uploads", fmt.Errorf("request body exceeds %d MiB", maxMiB))
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "read uploads", err)
	}

	headers := r.MultipartForm.File[filesField]
	if len(headers) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read uploads", fmt.Errorf("multipart field %q is required", filesField))
	}

	files := make([]domain.UploadedFile, 0, len(headers))
	for _, header := range headers {
		content, err := readPart(header)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read uploads", err)
		}
		files = append(files, domain.UploadedFile{Name: header.Filename, Content: content})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	part, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", header.Filename, err)
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", header.Filename, err)
	}
	return content, nil
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.log.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func (rt *Router) reject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(reason)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
