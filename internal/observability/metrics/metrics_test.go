package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(body)
}

func TestPipelineMetricsRecordsOutcomes(t *testing.T) {
	registry := NewRegistry()
	m := NewPipelineMetrics("worker", registry)

	m.BatchStarted(2)
	m.FileStarted()
	m.FileFinished(domain.SucceededOutcome(0, "a.pdf", domain.InvoiceRecord{}), time.Second)
	m.FileStarted()
	m.FileFinished(domain.FailedOutcome(1, "b.pdf", domain.FailureExtraction, "b.pdf: boom"), time.Second)
	m.ScratchCleanupFailed()
	m.ObserveQueueLag(2 * time.Second)
	m.FinishBatch(3*time.Second, nil)

	body := scrape(t, Handler(registry))
	for _, want := range []string{
		`invoice_pipeline_files_total{failure_kind="",service="worker",status="succeeded"} 1`,
		`invoice_pipeline_files_total{failure_kind="extraction_failed",service="worker",status="failed"} 1`,
		`invoice_pipeline_files_in_flight{service="worker"} 0`,
		`invoice_pipeline_scratch_cleanup_failures_total{service="worker"} 1`,
		`invoice_worker_batch_process_total{service="worker",status="success"} 1`,
		`invoice_worker_queue_lag_seconds_count{service="worker"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}
}

func TestHTTPMiddlewareNormalizesBatchPaths(t *testing.T) {
	registry := NewRegistry()
	m := NewHTTPServerMetrics("api", registry)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/batches/abc/files/3/report", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/batches/def", nil))

	body := scrape(t, Handler(registry))
	for _, want := range []string{
		`invoice_http_requests_total{method="GET",path="/v1/batches/{id}/files/{index}/report",service="api",status="404"} 1`,
		`invoice_http_requests_total{method="GET",path="/v1/batches/{id}",service="api",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}
}
