// Package embedding contains the offline embedder used by the "hash" embedding strategy.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	DefaultDimension = 512
	saturationK      = 1.2
)

// HashedEmbedder maps text to a dense bag-of-words vector by hashing tokens into buckets.
// It needs no network and is deterministic, which makes it usable offline and in tests.
type HashedEmbedder struct {
	dimension int
}

func NewHashedEmbedder(dimension int) *HashedEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashedEmbedder{dimension: dimension}
}

func (e *HashedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.encode(text))
	}
	return out, nil
}

func (e *HashedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.encode(text), nil
}

func (e *HashedEmbedder) encode(text string) []float32 {
	termFreq := make(map[int]float64, 64)
	for _, token := range tokenizeAlphaNum(text) {
		termFreq[e.bucket(token)]++
	}

	vector := make([]float32, e.dimension)
	for idx, tf := range termFreq {
		weight := (tf * (saturationK + 1.0)) / (tf + saturationK)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		vector[idx] = float32(weight)
	}
	return vector
}

func (e *HashedEmbedder) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimension))
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
