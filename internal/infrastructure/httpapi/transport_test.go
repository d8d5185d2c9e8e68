package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
)

func TestDoIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, server.URL, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("NewJSONRequest() error = %v", err)
	}
	err = Do(server.Client(), req, &struct{}{}, "openai", "chat")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestDoDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing json content type")
		}
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	req, _ := NewJSONRequest(context.Background(), http.MethodPost, server.URL, map[string]string{"q": "x"})
	var out struct {
		Value string `json:"value"`
	}
	if err := Do(server.Client(), req, &out, "svc", "op"); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("unexpected decoded value %q", out.Value)
	}
}

func TestExecuteWrapsUnavailableStatusAsTemporary(t *testing.T) {
	exec := resilience.NewExecutor(resilience.Config{BreakerEnabled: false})
	err := Execute(context.Background(), exec, "gemini.generate", func(context.Context) error {
		return &StatusError{Service: "gemini", Operation: "generate", StatusCode: http.StatusServiceUnavailable, Status: "503"}
	})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestExecuteKeepsClientErrorsPermanent(t *testing.T) {
	err := Execute(context.Background(), nil, "openai.chat", func(context.Context) error {
		return &StatusError{Service: "openai", Operation: "chat", StatusCode: http.StatusBadRequest, Status: "400"}
	})
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
