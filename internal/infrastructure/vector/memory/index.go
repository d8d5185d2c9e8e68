// Package memory holds a document's segment vectors in process memory for the
// duration of one extraction.
package memory

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
)

type point struct {
	position int
	text     string
	vector   []float32
	norm     float64
}

// Index is not safe for concurrent use; every extraction builds its own.
type Index struct {
	points    []point
	dimension int
}

func New() *Index {
	return &Index{}
}

// Factory adapts New to ports.IndexFactory.
func Factory() ports.VectorIndex {
	return New()
}

func (ix *Index) Add(chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks))
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return fmt.Errorf("empty vector for chunk %d", i)
		}
		if ix.dimension == 0 {
			ix.dimension = len(vector)
		}
		if len(vector) != ix.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), ix.dimension)
		}
		ix.points = append(ix.points, point{
			position: len(ix.points),
			text:     chunks[i],
			vector:   vector,
			norm:     norm(vector),
		})
	}
	return nil
}

func (ix *Index) Len() int {
	return len(ix.points)
}

// Search returns up to limit chunks ordered by cosine similarity, ties broken by position.
func (ix *Index) Search(queryVector []float32, limit int) []domain.RetrievedChunk {
	if len(ix.points) == 0 || len(queryVector) != ix.dimension {
		return nil
	}
	if limit <= 0 || limit > len(ix.points) {
		limit = len(ix.points)
	}

	queryNorm := norm(queryVector)
	hits := make([]domain.RetrievedChunk, 0, len(ix.points))
	for _, p := range ix.points {
		hits = append(hits, domain.RetrievedChunk{
			Position: p.position,
			Text:     p.text,
			Score:    cosine(queryVector, p.vector, queryNorm, p.norm),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits[:limit]
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
