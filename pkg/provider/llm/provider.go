// Package llm defines the interfaces for the two kinds of language-model
// backends Bella talks to.
//
// A [Generator] is a local completion model: it receives one fully composed
// prompt string plus explicit decoding parameters and returns raw generated
// text (which may echo the prompt — sanitisation is the caller's job).
//
// A [Chatter] is a chat-style backend, typically a cloud API: it receives a
// message history and returns the assistant's reply.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is a single turn in a chat-style conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the text of the turn.
	Content string
}

// GenerationParams carries the decoding parameters for local text generation.
// The zero value requests the backend's defaults for every knob.
type GenerationParams struct {
	// MaxNewTokens caps the number of newly generated tokens (the prompt does
	// not count against it). Zero means the backend default.
	MaxNewTokens int

	// Temperature controls output randomness. Higher values increase variety.
	Temperature float64

	// TopK restricts sampling to the K most likely tokens. Zero disables the cap.
	TopK int

	// TopP restricts sampling to the smallest token set whose cumulative
	// probability exceeds P. Zero disables nucleus sampling.
	TopP float64

	// Sample enables stochastic sampling; when false, decoding is greedy and
	// Temperature/TopK/TopP are ignored.
	Sample bool

	// RepetitionPenalty discourages the model from repeating recent tokens.
	// 1.0 (or zero) means no penalty.
	RepetitionPenalty float64
}

// Generator is the abstraction over a local completion backend.
type Generator interface {
	// Generate sends the prompt to the model and returns the generated text.
	// The returned text may include an echo of the prompt prefix; callers that
	// need a clean reply must strip it themselves.
	//
	// Returns an error if the backend is unreachable, the request fails, or
	// ctx is cancelled. No partial text is returned on error.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Chatter is the abstraction over a chat-completion backend.
type Chatter interface {
	// Chat sends the ordered message history to the backend and returns the
	// assistant's reply text. The last message is typically the "user" turn
	// that drives the response.
	//
	// Returns an error if the request fails, the response is malformed, or
	// ctx is cancelled.
	Chat(ctx context.Context, messages []Message) (string, error)
}
