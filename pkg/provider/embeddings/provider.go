// Package embeddings defines the Embedder interface for vector embedding
// backends.
//
// An embedder maps text to dense float32 vectors. The conversation memory
// layer uses these vectors to recall past exchanges that are semantically
// close to the current utterance.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Embedder is the abstraction over any text-embedding backend.
//
// All vectors from one Embedder instance share the dimensionality reported by
// Dimensions. Vectors from different instances must not be compared unless
// both use the same model.
type Embedder interface {
	// Embed computes the vector for a single text. The text is passed through
	// verbatim; any model-specific prefixing is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for several texts in one backend call.
	// result[i] corresponds to texts[i]; on error the whole result is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by this embedder.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, for logging and
	// for detecting model changes against a stored index.
	ModelID() string
}
