// Package mock provides a test double for the tts.Synthesizer interface.
package mock

import (
	"context"
	"sync"

	"github.com/bella-ai/bella/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a mock implementation of tts.Synthesizer.
// The zero value returns nil samples at rate 0 with a nil error.
type Synthesizer struct {
	mu sync.Mutex

	// Samples and Rate are returned from Synthesize.
	Samples []float32
	Rate    int

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Texts records every text passed to Synthesize in order.
	Texts []string
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(_ context.Context, text string) ([]float32, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Texts = append(s.Texts, text)
	if s.Err != nil {
		return nil, 0, s.Err
	}
	return s.Samples, s.Rate, nil
}

// Calls returns a copy of the recorded texts.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Texts))
	copy(out, s.Texts)
	return out
}
