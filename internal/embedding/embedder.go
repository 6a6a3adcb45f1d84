// Package embedding generates and normalizes the 384-dimension vectors used
// for chunk storage and query retrieval.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Dimensions is the vector size every backend must produce. The chunk store
// schema is declared with the same width.
const Dimensions = 384

var (
	// ErrEmptyText is returned when text is empty.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when a backend produces a vector of
	// the wrong width.
	ErrWrongDimensions = fmt.Errorf("embedding has wrong dimensions, expected %d", Dimensions)
)

// Backend turns text into raw, unnormalized vectors.
type Backend interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Open(ctx context.Context) error
}

// Embedder wraps a Backend with lazy initialization and L2 normalization.
// The backend is opened on first use; concurrent first calls block until the
// single open attempt resolves.
type Embedder struct {
	backend Backend

	mu     sync.Mutex
	loaded bool
}

// New wraps backend. Nothing is opened until the first Embed call.
func New(backend Backend) *Embedder {
	return &Embedder{backend: backend}
}

func (e *Embedder) ensureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	if err := e.backend.Open(ctx); err != nil {
		return fmt.Errorf("failed to initialize embedding backend: %w", err)
	}
	e.loaded = true
	return nil
}

// Embed generates a normalized embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates normalized embeddings for texts, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
	}

	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.backend.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("backend returned %d embeddings for %d texts", len(vectors), len(texts))
	}

	for _, vector := range vectors {
		if len(vector) != Dimensions {
			return nil, ErrWrongDimensions
		}
		Normalize(vector)
	}
	return vectors, nil
}

// Normalize scales the vector to unit L2 norm in place. Vectors with a norm
// close to zero are left untouched.
func Normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm < 1e-6 {
		return
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
}
