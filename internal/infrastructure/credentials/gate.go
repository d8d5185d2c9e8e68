// Package credentials checks provider API keys by listing the provider's models.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	geminiInvalidKeyReason = "API_KEY_INVALID"
)

type Options struct {
	OpenAIBaseURL string
	GeminiBaseURL string
	Timeout       time.Duration
}

type Gate struct {
	openAIBaseURL string
	geminiBaseURL string
	httpClient    *http.Client
	log           *slog.Logger
}

func NewGate(opts Options, logger *slog.Logger) *Gate {
	if opts.OpenAIBaseURL == "" {
		opts.OpenAIBaseURL = DefaultOpenAIBaseURL
	}
	if opts.GeminiBaseURL == "" {
		opts.GeminiBaseURL = DefaultGeminiBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		openAIBaseURL: strings.TrimRight(opts.OpenAIBaseURL, "/"),
		geminiBaseURL: strings.TrimRight(opts.GeminiBaseURL, "/"),
		httpClient:    &http.Client{Timeout: opts.Timeout},
		log:           logger,
	}
}

// Verify reports whether the provider accepts credential. A definite rejection is (false, nil);
// anything that prevents a verdict is an error wrapping domain.ErrCredentialCheckFailed.
func (g *Gate) Verify(ctx context.Context, provider domain.Provider, credential string) (bool, error) {
	switch provider {
	case domain.ProviderOpenAI, domain.ProviderGemini:
	default:
		return false, domain.WrapError(domain.ErrInvalidInput, "verify credential", fmt.Errorf("unsupported provider %q", provider))
	}
	if strings.TrimSpace(credential) == "" {
		return false, nil
	}

	var req *http.Request
	var err error
	switch provider {
	case domain.ProviderOpenAI:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, g.openAIBaseURL+"/v1/models", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
	case domain.ProviderGemini:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet,
			g.geminiBaseURL+"/v1/models?key="+url.QueryEscape(credential), nil)
	}
	if err != nil {
		return false, domain.WrapError(domain.ErrCredentialCheckFailed, "verify credential", err)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn("credential_check_failed", "provider", provider, "error", err)
		return false, domain.WrapError(domain.ErrCredentialCheckFailed, "verify credential", redact(err, credential))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, domain.WrapError(domain.ErrCredentialCheckFailed, "verify credential", fmt.Errorf("read response: %w", err))
	}
	valid, err := verdict(provider, resp.StatusCode, body)
	if err != nil {
		g.log.Warn("credential_check_failed", "provider", provider, "status", resp.StatusCode, "error", err)
		return false, domain.WrapError(domain.ErrCredentialCheckFailed, "verify credential", err)
	}

	g.log.Info("credential_checked",
		"provider", provider,
		"valid", valid,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return valid, nil
}

func verdict(provider domain.Provider, status int, body []byte) (bool, error) {
	switch {
	case status >= 200 && status < 300:
		return true, nil
	case status == http.StatusUnauthorized:
		return false, nil
	case provider == domain.ProviderGemini && status == http.StatusBadRequest &&
		strings.Contains(string(body), geminiInvalidKeyReason):
		return false, nil
	default:
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return false, fmt.Errorf("%s models status %d: %s", provider, status, msg)
	}
}

// redact keeps the key out of transport errors, which quote the request URL.
func redact(err error, credential string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return errors.New(strings.ReplaceAll(err.Error(), credential, "***"))
}
