package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/infrastructure/httpapi"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4-turbo"
	DefaultEmbeddingModel = "text-embedding-ada-002"
)

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	EmbeddingModel string
	Timeout        time.Duration
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
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
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

// Generator answers prompts through chat completions.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	c := g.client
	start := time.Now()

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := c.post(ctx, "/chat/completions", "chat", body, &response); err != nil {
		c.log.Error("llm_complete_failed", "provider", "openai", "model", c.cfg.Model, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}

	c.log.Debug("llm_complete",
		"provider", "openai",
		"model", c.cfg.Model,
		"prompt_tokens", response.Usage.PromptTokens,
		"completion_tokens", response.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.cfg.EmbeddingModel,
		"input": texts,
	}
	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := e.client.post(ctx, "/embeddings", "embed", request, &response); err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed returned %d vectors for %d inputs", len(response.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("openai embed index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) post(ctx context.Context, path, operation string, payload, out any) error {
	return httpapi.Execute(ctx, c.executor, "openai."+operation, func(ctx context.Context) error {
		req, err := httpapi.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+path, payload)
		if err != nil {
			return fmt.Errorf("openai %s: %w", operation, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		return httpapi.Do(c.httpClient, req, out, "openai", operation)
	})
}
