// Package stt defines the Transcriber interface for server-side speech
// recognition.
//
// Browsers with a native speech API send finalized text directly; the rest
// upload a recorded utterance, which a Transcriber turns into text in one
// shot. There is no streaming session here: one buffer in, one transcript
// out.
package stt

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no recognition backend is loaded. Callers
// surface it rather than substituting text.
var ErrUnavailable = errors.New("stt: transcriber unavailable")

// Transcriber is the abstraction over any speech recognition backend.
//
// Implementations must be safe for concurrent use.
type Transcriber interface {
	// Transcribe converts one finished utterance, given as mono float32 PCM
	// in [-1, 1] at the stated sample rate, into text. An empty transcript
	// with a nil error means the audio contained no recognizable speech.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
