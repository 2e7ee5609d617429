// Package mock provides a test double for the embeddings.Embedder interface.
package mock

import (
	"context"
	"sync"

	"github.com/bella-ai/bella/pkg/provider/embeddings"
)

// Compile-time interface assertion.
var _ embeddings.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of embeddings.Embedder.
// The zero value returns a zero vector of dimension Dims from every call.
type Embedder struct {
	mu sync.Mutex

	// Dims is the reported and produced vector dimension. Zero means 4.
	Dims int

	// Vector, if non-nil, is returned for every Embed input.
	Vector []float32

	// VectorFunc, if non-nil, computes the vector per text and wins over Vector.
	VectorFunc func(text string) []float32

	// Err, if non-nil, is returned from Embed and EmbedBatch.
	Err error

	// Texts records every embedded text in order, batch calls flattened.
	Texts []string
}

func (e *Embedder) dims() int {
	if e.Dims > 0 {
		return e.Dims
	}
	return 4
}

func (e *Embedder) vectorFor(text string) []float32 {
	if e.VectorFunc != nil {
		return e.VectorFunc(text)
	}
	if e.Vector != nil {
		return e.Vector
	}
	return make([]float32, e.dims())
}

// Embed implements embeddings.Embedder.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Texts = append(e.Texts, text)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.vectorFor(text), nil
}

// EmbedBatch implements embeddings.Embedder.
func (e *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Texts = append(e.Texts, texts...)
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectorFor(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Embedder.
func (e *Embedder) Dimensions() int { return e.dims() }

// ModelID implements embeddings.Embedder.
func (e *Embedder) ModelID() string { return "mock-embedder" }
