package embedding

import (
	"context"
	"testing"
)

func TestHashedEmbedderIsDeterministic(t *testing.T) {
	e := NewHashedEmbedder(64)
	a, err := e.EmbedQuery(context.Background(), "Invoice Number INV-7")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	b, _ := e.EmbedQuery(context.Background(), "invoice number inv-7")
	if len(a) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashedEmbedderEmbedKeepsOrder(t *testing.T) {
	e := NewHashedEmbedder(0)
	vectors, err := e.Embed(context.Background(), []string{"alpha", "", "beta"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for _, v := range vectors[1] {
		if v != 0 {
			t.Fatalf("expected zero vector for empty text")
		}
	}
}

func TestHashedEmbedderHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashedEmbedder(8).Embed(ctx, []string{"x"}); err == nil {
		t.Fatalf("expected context error")
	}
}
