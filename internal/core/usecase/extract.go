package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
)

const defaultRetrievalTopK = 2

// ExtractionBackend answers the fixed extraction query for one document.
// It is safe for concurrent use; every call builds its own index.
type ExtractionBackend struct {
	settings domain.ExtractionSettings
	parser   ports.DocumentParser
	chunker  ports.Chunker
	embedder ports.Embedder
	newIndex ports.IndexFactory
	llm      ports.LanguageModel
	log      *slog.Logger
}

func NewExtractionBackend(
	settings domain.ExtractionSettings,
	parser ports.DocumentParser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	newIndex ports.IndexFactory,
	llm ports.LanguageModel,
	logger *slog.Logger,
) *ExtractionBackend {
	if settings.RetrievalTopK <= 0 {
		settings.RetrievalTopK = defaultRetrievalTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionBackend{
		settings: settings,
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		newIndex: newIndex,
		llm:      llm,
		log:      logger,
	}
}

// Settings returns the configuration snapshot the backend was built with.
func (b *ExtractionBackend) Settings() domain.ExtractionSettings {
	return b.settings
}

func (b *ExtractionBackend) Extract(ctx context.Context, filePath string) (string, error) {
	start := time.Now()
	raw, err := b.extract(ctx, filePath)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract "+filepath.Base(filePath), err)
	}
	b.log.Debug("extraction_completed",
		"file", filepath.Base(filePath),
		"provider", b.settings.Provider,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}

func (b *ExtractionBackend) extract(ctx context.Context, filePath string) (string, error) {
	text, err := b.parse(ctx, filePath)
	if err != nil {
		return "", err
	}

	chunks, err := b.chunk(text)
	if err != nil {
		return "", err
	}

	index, err := b.index(ctx, chunks)
	if err != nil {
		return "", err
	}

	hits, err := b.retrieve(ctx, index)
	if err != nil {
		return "", err
	}

	answer, err := b.llm.Complete(ctx, buildExtractionPrompt(hits))
	if err != nil {
		return "", fmt.Errorf("query language model: %w", err)
	}
	return StripCodeFences(answer), nil
}

func (b *ExtractionBackend) parse(ctx context.Context, filePath string) (string, error) {
	text, err := b.parser.Parse(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	if text == "" {
		return "", errors.New("parse document: empty document text")
	}
	return text, nil
}

func (b *ExtractionBackend) chunk(text string) ([]string, error) {
	chunks := b.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, errors.New("chunk document: zero chunks")
	}
	return chunks, nil
}

func (b *ExtractionBackend) index(ctx context.Context, chunks []string) (ports.VectorIndex, error) {
	vectors, err := b.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(chunks))
	}

	index := b.newIndex()
	if err := index.Add(chunks, vectors); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}
	return index, nil
}

func (b *ExtractionBackend) retrieve(ctx context.Context, index ports.VectorIndex) ([]domain.RetrievedChunk, error) {
	queryVector, err := b.embedder.EmbedQuery(ctx, extractionQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits := index.Search(queryVector, b.settings.RetrievalTopK)
	if len(hits) == 0 {
		return nil, errors.New("retrieve context: no segments matched")
	}
	// Context is presented in document order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Position < hits[j].Position })
	return hits, nil
}
