// Package llamaparse parses documents through the LlamaParse job API and returns markdown.
package llamaparse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/infrastructure/httpapi"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL      = "https://api.cloud.llamaindex.ai"
	DefaultPollInterval = time.Second
	DefaultMaxWait      = 5 * time.Minute
)

const (
	statusPending  = "PENDING"
	statusSuccess  = "SUCCESS"
	statusError    = "ERROR"
	statusCanceled = "CANCELED"
)

type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxWait      time.Duration
	Timeout      time.Duration
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
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
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

// Parse uploads the file, waits for the job to finish and returns its markdown.
func (c *Client) Parse(ctx context.Context, path string) (string, error) {
	start := time.Now()

	jobID, err := c.upload(ctx, path)
	if err != nil {
		return "", err
	}
	if err := c.waitForJob(ctx, jobID); err != nil {
		return "", err
	}
	markdown, err := c.result(ctx, jobID)
	if err != nil {
		return "", err
	}

	c.log.Debug("document_parsed",
		"parser", "llamaparse",
		"job_id", jobID,
		"file", filepath.Base(path),
		"chars", len(markdown),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(markdown), nil
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	var response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err = httpapi.Execute(ctx, c.executor, "llamaparse.upload", func(ctx context.Context) error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
			return fmt.Errorf("write form file: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close multipart: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/parsing/upload", body)
		if err != nil {
			return fmt.Errorf("create upload request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		return httpapi.Do(c.httpClient, req, &response, "llamaparse", "upload")
	})
	if err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("llamaparse upload: empty job id")
	}
	return response.ID, nil
}

func (c *Client) waitForJob(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var job struct {
			Status string `json:"status"`
		}
		if err := c.get(ctx, "/api/parsing/job/"+jobID, "job", &job); err != nil {
			return err
		}

		switch strings.ToUpper(job.Status) {
		case statusSuccess:
			return nil
		case statusError, statusCanceled:
			return fmt.Errorf("llamaparse job %s finished with status %s", jobID, job.Status)
		case statusPending, "":
		default:
			c.log.Debug("llamaparse_job_status", "job_id", jobID, "status", job.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for llamaparse job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) result(ctx context.Context, jobID string) (string, error) {
	var response struct {
		Markdown string `json:"markdown"`
	}
	if err := c.get(ctx, "/api/parsing/job/"+jobID+"/result/markdown", "result", &response); err != nil {
		return "", err
	}
	return response.Markdown, nil
}

func (c *Client) get(ctx context.Context, path, operation string, out any) error {
	return httpapi.Execute(ctx, c.executor, "llamaparse."+operation, func(ctx context.Context) error {
		req, err := httpapi.NewJSONRequest(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return fmt.Errorf("llamaparse %s: %w", operation, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		return httpapi.Do(c.httpClient, req, out, "llamaparse", operation)
	})
}
