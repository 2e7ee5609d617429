// Package localserver provides a tts.Synthesizer backed by a local Coqui-style
// TTS server reached over its REST API (GET /api/tts with URL query
// parameters, WAV response body).
//
// Typical usage:
//
//	s := localserver.New("http://localhost:5002",
//	    localserver.WithLanguage("en"),
//	    localserver.WithTimeout(15*time.Second),
//	)
//	samples, rate, err := s.Synthesize(ctx, "Hello there!")
package localserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bella-ai/bella/pkg/audio/wav"
	"github.com/bella-ai/bella/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	ttsEndpoint    = "/api/tts"
	defaultTimeout = 30 * time.Second
)

// Synthesizer calls a local TTS server and decodes its WAV responses.
type Synthesizer struct {
	baseURL    string
	language   string
	speakerID  string
	targetRate int
	httpClient *http.Client
}

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithLanguage sets the language code sent to the server (e.g., "en", "de").
func WithLanguage(lang string) Option {
	return func(s *Synthesizer) {
		s.language = lang
	}
}

// WithSpeaker sets the server-side speaker/voice identifier.
func WithSpeaker(id string) Option {
	return func(s *Synthesizer) {
		s.speakerID = id
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.httpClient.Timeout = d
	}
}

// WithTargetRate resamples every response to the given rate, regardless of
// what the server produced. Zero keeps the server's native rate.
func WithTargetRate(rate int) Option {
	return func(s *Synthesizer) {
		s.targetRate = rate
	}
}

// New creates a Synthesizer talking to the server at baseURL.
func New(baseURL string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize implements tts.Synthesizer with one GET /api/tts call.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, fmt.Errorf("localserver: text must not be empty")
	}

	q := url.Values{}
	q.Set("text", text)
	if s.language != "" {
		q.Set("language_id", s.language)
	}
	if s.speakerID != "" {
		q.Set("speaker_id", s.speakerID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+ttsEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("localserver: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, 0, fmt.Errorf("localserver: %w: %w", tts.ErrUnavailable, err)
		}
		return nil, 0, fmt.Errorf("localserver: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("localserver: server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("localserver: read response: %w", err)
	}

	info, err := wav.Parse(data)
	if err != nil {
		return nil, 0, fmt.Errorf("localserver: decode response: %w", err)
	}

	samples := wav.DecodeMono(data[info.DataOffset:info.DataOffset+info.DataLen], info.Channels)
	rate := info.SampleRate
	if s.targetRate > 0 && s.targetRate != rate {
		samples = wav.ResampleMono(samples, rate, s.targetRate)
		rate = s.targetRate
	}
	return samples, rate, nil
}
