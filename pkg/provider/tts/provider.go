// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A synthesizer turns reply text into mono float32 PCM plus a sample rate;
// the caller encodes the result into a WAV container for playback. One HTTP
// or model call per utterance is expected, so implementations are batch
// rather than streaming.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no synthesis backend is reachable. Callers
// surface it to their own caller rather than substituting silence.
var ErrUnavailable = errors.New("tts: synthesizer unavailable")

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize renders text as mono float32 PCM in [-1, 1] and reports the
	// sample rate of the returned buffer. An empty text input is an error.
	Synthesize(ctx context.Context, text string) (samples []float32, sampleRate int, err error)
}
