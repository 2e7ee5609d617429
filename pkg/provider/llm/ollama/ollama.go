// Package ollama provides a local text-generation backend backed by an Ollama
// server's native /api/generate endpoint.
//
// Ollama (https://ollama.com) hosts local language models. Its generate API
// accepts the full set of decoding options Bella's response policy uses
// (num_predict, temperature, top_k, top_p, repeat_penalty), which is why the
// local path talks to Ollama directly rather than through a multi-provider
// SDK that only exposes temperature and token caps.
//
// Example usage:
//
//	g, err := ollama.New("", "qwen2.5:1.5b") // connects to http://localhost:11434
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := g.Generate(ctx, prompt, params)
//
// Only standard library packages are used — no additional dependencies are
// required beyond Go's net/http and encoding/json.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bella-ai/bella/pkg/provider/llm"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// Compile-time interface assertion.
var _ llm.Generator = (*Generator)(nil)

// Generator implements llm.Generator using a local Ollama server.
// It is safe for concurrent use.
type Generator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout time.Duration
}

// Option is a functional option for Generator.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout on the underlying HTTP client.
// A zero or negative value means no timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Ollama Generator.
//
// baseURL is the base URL of the Ollama server. If empty, [DefaultBaseURL] is
// used. A trailing slash is stripped automatically. model is the Ollama model
// name (e.g., "qwen2.5:1.5b") and must not be empty.
func New(baseURL string, model string, opts ...Option) (*Generator, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Generator{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

// generateRequest is the JSON request body sent to Ollama's /api/generate endpoint.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

// generateOptions maps llm.GenerationParams onto Ollama's decoding options.
type generateOptions struct {
	NumPredict    int     `json:"num_predict,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	TopK          int     `json:"top_k,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

// generateResponse is the JSON response body returned by /api/generate with
// stream disabled.
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements llm.Generator by issuing a single non-streaming
// /api/generate request.
//
// When params.Sample is false the request pins temperature to zero, which
// Ollama treats as greedy decoding; the remaining sampling knobs are omitted.
func (g *Generator) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	reqBody := generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
	}
	if params.Sample {
		reqBody.Options = generateOptions{
			NumPredict:    params.MaxNewTokens,
			Temperature:   params.Temperature,
			TopK:          params.TopK,
			TopP:          params.TopP,
			RepeatPenalty: params.RepetitionPenalty,
		}
	} else {
		reqBody.Options = generateOptions{
			NumPredict: params.MaxNewTokens,
			// temperature omitted → 0 → greedy decoding
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return result.Response, nil
}

// ModelID returns the Ollama model name supplied at construction time.
func (g *Generator) ModelID() string {
	return g.model
}
