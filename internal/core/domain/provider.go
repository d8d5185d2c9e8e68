package domain

import (
	"fmt"
	"strings"
)

// Provider is the language model family used for extraction.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse provider", fmt.Errorf("unsupported provider %q", raw))
	}
}

// DefaultModel is the model used for a provider when none is configured.
func (p Provider) DefaultModel() string {
	switch p {
	case ProviderGemini:
		return "gemini-1.5-flash"
	default:
		return "gpt-4-turbo"
	}
}

// DefaultEmbeddingStrategy mirrors what each provider was paired with historically:
// OpenAI embeddings for OpenAI, a local bge model for Gemini.
func (p Provider) DefaultEmbeddingStrategy() string {
	switch p {
	case ProviderGemini:
		return "local:BAAI/bge-small-en-v1.5"
	default:
		return "openai:text-embedding-ada-002"
	}
}

// ExtractionSettings is the configuration snapshot shared read-only by every extraction of a process.
type ExtractionSettings struct {
	ParseCredential   string
	LLMCredential     string
	Provider          Provider
	Model             string
	Temperature       float64
	MaxTokens         int
	ChunkSize         int
	RetrievalTopK     int
	EmbeddingStrategy string
}
