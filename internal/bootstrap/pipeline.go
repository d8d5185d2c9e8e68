package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/config"
	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
	"github.com/kirillkom/invoice-extractor/internal/core/usecase"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/chunking"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/credentials"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/embedding"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/llm/openai"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/parser/llamaparse"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/parser/local"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/vector/memory"
)

const credentialCheckTimeout = 20 * time.Second

// Pipeline is everything needed to turn uploaded files into outcomes.
type Pipeline struct {
	Settings    domain.ExtractionSettings
	Verifier    ports.CredentialVerifier
	Coordinator *usecase.BatchCoordinator
}

// NewPipeline verifies the configured model credential and assembles the extraction pipeline.
// A rejected credential is a hard failure: nothing is processed with a key the provider refuses.
func NewPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.FileObserver) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings := cfg.Settings()

	gate := credentials.NewGate(credentials.Options{
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiBaseURL: cfg.GeminiBaseURL,
	}, logger)
	if err := VerifyCredential(ctx, gate, settings.Provider, settings.LLMCredential); err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	parser := newParser(cfg, executor, logger)
	embedder, err := newEmbedder(cfg, executor, logger)
	if err != nil {
		return nil, err
	}
	llm, err := newLanguageModel(cfg, executor, logger)
	if err != nil {
		return nil, err
	}
	normalizer, err := usecase.NewRecordNormalizer()
	if err != nil {
		return nil, fmt.Errorf("init normalizer: %w", err)
	}
	scratch, err := localfs.New(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("init scratch storage: %w", err)
	}

	backend := usecase.NewExtractionBackend(
		settings,
		parser,
		chunking.NewSplitter(settings.ChunkSize),
		embedder,
		memory.Factory,
		llm,
		logger,
	)
	lifecycle := usecase.NewFileLifecycleManager(scratch, backend, normalizer,
		usecase.WithFileTimeout(cfg.FileTimeout()),
		usecase.WithFileObserver(observer),
		usecase.WithLifecycleLogger(logger),
	)

	logger.Info("pipeline_ready",
		"provider", settings.Provider,
		"model", settings.Model,
		"parser", cfg.ParserMode,
		"embedding", settings.EmbeddingStrategy,
		"chunk_size", settings.ChunkSize,
		"top_k", settings.RetrievalTopK,
	)
	return &Pipeline{
		Settings:    settings,
		Verifier:    gate,
		Coordinator: usecase.NewBatchCoordinator(lifecycle, observer, logger),
	}, nil
}

// VerifyCredential turns a negative verdict into domain.ErrCredentialInvalid.
func VerifyCredential(ctx context.Context, verifier ports.CredentialVerifier, provider domain.Provider, credential string) error {
	ctx, cancel := context.WithTimeout(ctx, credentialCheckTimeout)
	defer cancel()

	valid, err := verifier.Verify(ctx, provider, credential)
	if err != nil {
		return err
	}
	if !valid {
		return domain.WrapError(domain.ErrCredentialInvalid, "verify credential",
			fmt.Errorf("%s rejected the configured LLM_API_KEY", provider))
	}
	return nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.BreakerEnabled = cfg.BreakerEnabled
	return out
}

func newParser(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) ports.DocumentParser {
	if cfg.ParserMode == config.ParserLocal {
		return local.NewParser()
	}
	return llamaparse.NewClient(llamaparse.Config{
		APIKey:       cfg.LlamaParseAPIKey,
		BaseURL:      cfg.LlamaParseBaseURL,
		PollInterval: cfg.LlamaParsePollInterval(),
		MaxWait:      time.Duration(cfg.LlamaParseMaxWaitSeconds) * time.Second,
	}, executor, logger)
}

func newEmbedder(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.Embedder, error) {
	kind, model, err := config.ParseEmbeddingStrategy(cfg.EmbeddingStrategy)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "init embedder", err)
	}
	switch kind {
	case config.EmbeddingOpenAI:
		return openai.NewEmbedder(openai.NewClient(openai.Config{
			APIKey:         cfg.LLMAPIKey,
			BaseURL:        openAIAPIBase(cfg),
			EmbeddingModel: model,
		}, executor, logger)), nil
	case config.EmbeddingLocal:
		return ollama.NewEmbedder(ollama.New(cfg.OllamaURL, model, executor)), nil
	default:
		return embedding.NewHashedEmbedder(0), nil
	}
}

func newLanguageModel(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.LanguageModel, error) {
	switch domain.Provider(cfg.LLMProvider) {
	case domain.ProviderOpenAI:
		return openai.NewGenerator(openai.NewClient(openai.Config{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     openAIAPIBase(cfg),
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		}, executor, logger)), nil
	case domain.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:          cfg.LLMAPIKey,
			BaseURL:         cfg.GeminiBaseURL,
			Model:           cfg.LLMModel,
			Temperature:     cfg.LLMTemperature,
			MaxOutputTokens: cfg.LLMMaxTokens,
		}, executor, logger), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "init llm", errors.New("unsupported provider "+cfg.LLMProvider))
	}
}

// OPENAI_BASE_URL is the host root shared with the credential gate; API calls live under /v1.
func openAIAPIBase(cfg config.Config) string {
	base := cfg.OpenAIBaseURL
	if base == "" {
		base = credentials.DefaultOpenAIBaseURL
	}
	return strings.TrimRight(base, "/") + "/v1"
}
