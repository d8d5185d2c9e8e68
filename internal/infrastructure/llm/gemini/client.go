package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/infrastructure/httpapi"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
)

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
	log        *slog.Logger
}

func NewClient(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   executor,
		log:        logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Complete sends prompt as a single user turn and joins the text parts of the first candidate.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	request := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))

	var response generateResponse
	err := httpapi.Execute(ctx, c.executor, "gemini.generate", func(ctx context.Context) error {
		req, err := httpapi.NewJSONRequest(ctx, http.MethodPost, endpoint, request)
		if err != nil {
			return fmt.Errorf("gemini generate: %w", err)
		}
		return httpapi.Do(c.httpClient, req, &response, "gemini", "generate")
	})
	if err != nil {
		c.log.Error("llm_complete_failed", "provider", "gemini", "model", c.cfg.Model, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return "", err
	}

	if response.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", response.PromptFeedback.BlockReason)
	}
	if len(response.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}

	var sb strings.Builder
	for _, p := range response.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	c.log.Debug("llm_complete",
		"provider", "gemini",
		"model", c.cfg.Model,
		"finish_reason", response.Candidates[0].FinishReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(sb.String()), nil
}
