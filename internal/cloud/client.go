// Package cloud manages the remote chat side of the companion: a registry of
// named API providers, their credentials, the active selection, and a bounded
// conversation history shared across provider switches.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bella-ai/bella/pkg/provider/llm"
)

// DefaultHistoryLimit is the number of past messages kept per conversation
// when no explicit limit is configured.
const DefaultHistoryLimit = 20

// ChatterFactory builds a chat backend for a provider once a key is known.
// Called lazily on the first Chat after a key or provider change.
type ChatterFactory func(apiKey string) (llm.Chatter, error)

// ProviderInfo describes the active provider for status reporting.
type ProviderInfo struct {
	Name  string
	Model string
}

// provider is one registry entry.
type provider struct {
	name    string
	model   string
	apiKey  string
	factory ChatterFactory
	chatter llm.Chatter
}

// Client is the cloud chat collaborator. All methods are safe for concurrent
// use. The zero value is not usable; construct with New.
type Client struct {
	mu           sync.Mutex
	providers    map[string]*provider
	current      string
	history      []llm.Message
	historyLimit int
	log          *slog.Logger
}

// Option is a functional option for New.
type Option func(*Client)

// WithHistoryLimit caps the number of messages retained and replayed per
// Chat call. Values below 1 fall back to DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates an empty Client. Register providers with Register, then select
// one with SwitchProvider.
func New(opts ...Option) *Client {
	c := &Client{
		providers:    map[string]*provider{},
		historyLimit: DefaultHistoryLimit,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Register adds a provider to the registry. The first registered provider
// becomes the current selection. An empty apiKey leaves the provider
// unconfigured until SetAPIKey supplies one.
func (c *Client) Register(name, model, apiKey string, factory ChatterFactory) error {
	if name == "" {
		return fmt.Errorf("cloud: provider name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("cloud: provider %q needs a factory", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.providers[name]; exists {
		return fmt.Errorf("cloud: provider %q already registered", name)
	}
	c.providers[name] = &provider{name: name, model: model, apiKey: apiKey, factory: factory}
	if c.current == "" {
		c.current = name
	}
	return nil
}

// IsConfigured reports whether the current provider has a non-empty API key.
func (c *Client) IsConfigured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.providers[c.current]
	return p != nil && p.apiKey != ""
}

// SwitchProvider makes the named provider current. The conversation history
// is kept so the dialogue continues across the switch. Returns false for
// names not in the registry.
func (c *Client) SwitchProvider(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[name]; !ok {
		c.log.Warn("unknown cloud provider", "provider", name)
		return false
	}
	c.current = name
	c.log.Info("cloud provider selected", "provider", name)
	return true
}

// SetAPIKey stores the key for the named provider and drops any cached
// backend so the next Chat reconnects with the new credential. Returns false
// for names not in the registry.
func (c *Client) SetAPIKey(providerName, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.providers[providerName]
	if !ok {
		c.log.Warn("cannot set key for unknown provider", "provider", providerName)
		return false
	}
	p.apiKey = key
	p.chatter = nil
	return true
}

// CurrentProvider returns the name and model of the active provider.
func (c *Client) CurrentProvider() ProviderInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.providers[c.current]
	if p == nil {
		return ProviderInfo{}
	}
	return ProviderInfo{Name: p.name, Model: p.model}
}

// ClearHistory forgets the conversation so far.
func (c *Client) ClearHistory() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

// History returns a copy of the retained conversation messages.
func (c *Client) History() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Chat sends the prompt to the current provider together with the retained
// history and records both sides of the exchange. A failed call records
// nothing, so a retry or fallback does not poison the history.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	p := c.providers[c.current]
	if p == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("cloud: no provider selected")
	}
	if p.apiKey == "" {
		c.mu.Unlock()
		return "", fmt.Errorf("cloud: provider %q has no API key", p.name)
	}
	if p.chatter == nil {
		chatter, err := p.factory(p.apiKey)
		if err != nil {
			c.mu.Unlock()
			return "", fmt.Errorf("cloud: connect %q: %w", p.name, err)
		}
		p.chatter = chatter
	}
	chatter := p.chatter
	name := p.name

	messages := make([]llm.Message, 0, len(c.history)+1)
	messages = append(messages, c.history...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	c.mu.Unlock()

	reply, err := chatter.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("cloud: %s chat: %w", name, err)
	}

	c.mu.Lock()
	c.history = append(c.history,
		llm.Message{Role: "user", Content: prompt},
		llm.Message{Role: "assistant", Content: reply},
	)
	if over := len(c.history) - c.historyLimit; over > 0 {
		c.history = append(c.history[:0:0], c.history[over:]...)
	}
	c.mu.Unlock()

	return reply, nil
}
