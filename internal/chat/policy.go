package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/bella-ai/bella/pkg/provider/llm"
)

// DefaultParams are the decoding parameters used for every local generation
// call. They are tuned for short, lively conversational turns.
var DefaultParams = llm.GenerationParams{
	MaxNewTokens:      80,
	Temperature:       0.8,
	TopK:              40,
	TopP:              0.9,
	Sample:            true,
	RepetitionPenalty: 1.2,
}

// Source identifies where the text of a [Result] came from.
type Source string

const (
	// SourceCloud means the cloud backend produced the reply.
	SourceCloud Source = "cloud"

	// SourceLocal means the local model produced the reply.
	SourceLocal Source = "local"

	// SourcePool means the backend output was degenerate and a canned
	// natural response was substituted.
	SourcePool Source = "pool"

	// SourcePlaceholder means no local model is loaded and the fixed
	// still-learning line was returned.
	SourcePlaceholder Source = "placeholder"

	// SourceApology means every backend attempt failed and an apology was
	// substituted.
	SourceApology Source = "apology"
)

// Result is the outcome of a single Respond call. Respond never returns an
// error to its caller; failures surface as SourceApology results instead.
type Result struct {
	// Text is the reply shown (and spoken) to the user. Never empty.
	Text string

	// Source reports which path produced Text.
	Source Source
}

// CloudClient is the cloud side of the responder. It is satisfied by
// [github.com/bella-ai/bella/internal/cloud.Client].
type CloudClient interface {
	// IsConfigured reports whether the active provider has an API key and
	// cloud calls can be attempted.
	IsConfigured() bool

	// Chat sends one prompt to the active provider and returns the reply.
	Chat(ctx context.Context, prompt string) (string, error)

	// SwitchProvider selects a different cloud provider by name. It returns
	// false if the name is unknown.
	SwitchProvider(name string) bool

	// SetAPIKey stores the API key for a provider. It returns false if the
	// provider name is unknown.
	SetAPIKey(provider, key string) bool
}

// Responder owns the conversational session state (mode and backend) and
// turns user utterances into replies. All methods are safe for concurrent
// use; each Respond call snapshots mode and backend once at entry, so a
// concurrent SetMode or SwitchBackend affects only subsequent calls.
type Responder struct {
	mu      sync.Mutex
	mode    Mode
	backend Backend

	local llm.Generator
	cloud CloudClient

	responsePool []string
	apologyPool  []string
	placeholder  string

	// pick selects an index in [0, n). Injectable for deterministic tests.
	pick func(n int) int

	log *slog.Logger
}

// ResponderOption is a functional option for NewResponder.
type ResponderOption func(*Responder)

// WithLocal sets the local generation model. A nil local model is valid:
// local requests then yield the placeholder line.
func WithLocal(g llm.Generator) ResponderOption {
	return func(r *Responder) {
		r.local = g
	}
}

// WithCloud sets the cloud client. A nil cloud client behaves like an
// unconfigured one.
func WithCloud(c CloudClient) ResponderOption {
	return func(r *Responder) {
		r.cloud = c
	}
}

// WithResponsePool overrides the canned replies substituted for degenerate
// output. At least five entries are required so substitution stays varied.
func WithResponsePool(pool []string) ResponderOption {
	return func(r *Responder) {
		r.responsePool = pool
	}
}

// WithApologyPool overrides the apologies used when all backends fail.
func WithApologyPool(pool []string) ResponderOption {
	return func(r *Responder) {
		r.apologyPool = pool
	}
}

// WithPicker overrides the random index picker used for pool selection.
func WithPicker(pick func(n int) int) ResponderOption {
	return func(r *Responder) {
		r.pick = pick
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) ResponderOption {
	return func(r *Responder) {
		r.log = log
	}
}

// NewResponder builds a Responder starting in casual mode on the local
// backend.
func NewResponder(opts ...ResponderOption) (*Responder, error) {
	r := &Responder{
		mode:         ModeCasual,
		backend:      BackendLocal,
		responsePool: defaultResponsePool,
		apologyPool:  defaultApologyPool,
		placeholder:  defaultPlaceholder,
		pick:         rand.IntN,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}

	if len(r.responsePool) < 5 {
		return nil, fmt.Errorf("chat: response pool needs at least 5 entries, got %d", len(r.responsePool))
	}
	if len(r.apologyPool) == 0 {
		return nil, fmt.Errorf("chat: apology pool must not be empty")
	}
	if r.pick == nil {
		return nil, fmt.Errorf("chat: picker must not be nil")
	}
	return r, nil
}

// Mode returns the current conversation mode.
func (r *Responder) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Backend returns the currently selected backend.
func (r *Responder) Backend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// SetMode switches the conversation mode. Unknown modes are rejected and the
// current mode is left unchanged.
func (r *Responder) SetMode(mode Mode) bool {
	if !mode.IsValid() {
		r.log.Warn("rejecting unknown conversation mode", "mode", string(mode))
		return false
	}
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()
	r.log.Info("conversation mode changed", "mode", string(mode))
	return true
}

// SwitchBackend selects the backend used by subsequent Respond calls.
// Selection "local" always succeeds. Any other selection is treated as a
// cloud provider name and delegated to the cloud client: the optional
// credential is stored first, then the provider is activated. The backend
// flips to cloud only if the client ends up configured; on any failure the
// current selection is left unchanged.
func (r *Responder) SwitchBackend(selection, credential string) bool {
	if selection == string(BackendLocal) {
		r.mu.Lock()
		r.backend = BackendLocal
		r.mu.Unlock()
		r.log.Info("backend switched", "backend", selection)
		return true
	}

	if r.cloud == nil {
		r.log.Warn("cannot switch to cloud backend: no cloud client", "provider", selection)
		return false
	}
	if credential != "" && !r.cloud.SetAPIKey(selection, credential) {
		r.log.Warn("cloud provider rejected credential", "provider", selection)
		return false
	}
	if !r.cloud.SwitchProvider(selection) {
		r.log.Warn("unknown cloud provider", "provider", selection)
		return false
	}
	if !r.cloud.IsConfigured() {
		r.log.Warn("cloud provider not configured", "provider", selection)
		return false
	}

	r.mu.Lock()
	r.backend = BackendCloud
	r.mu.Unlock()
	r.log.Info("backend switched", "backend", string(BackendCloud), "provider", selection)
	return true
}

// Respond turns one user utterance into a reply. It never returns an error:
// backend failures degrade to the local model, then to an apology.
//
// When the cloud backend is selected and configured, the cloud path is tried
// first and falls back to the local path at most once. With the local backend
// selected, the cloud is never contacted.
func (r *Responder) Respond(ctx context.Context, utterance string) Result {
	r.mu.Lock()
	mode := r.mode
	backend := r.backend
	r.mu.Unlock()

	if backend == BackendCloud && r.cloud != nil && r.cloud.IsConfigured() {
		prompt := ComposePrompt(utterance, mode, BackendCloud)
		reply, err := r.cloud.Chat(ctx, prompt)
		if err == nil {
			if text, degenerate := sanitizeReply(reply, prompt); !degenerate {
				return Result{Text: text, Source: SourceCloud}
			}
			r.log.Warn("cloud reply degenerate, substituting from pool")
			return r.fromPool()
		}
		r.log.Warn("cloud backend failed, falling back to local", "error", err)
	}

	return r.respondLocal(ctx, utterance, mode)
}

// respondLocal runs the local half of the response chain.
func (r *Responder) respondLocal(ctx context.Context, utterance string, mode Mode) Result {
	if r.local == nil {
		return Result{Text: r.placeholder, Source: SourcePlaceholder}
	}

	prompt := ComposePrompt(utterance, mode, BackendLocal)
	raw, err := r.local.Generate(ctx, prompt, DefaultParams)
	if err != nil {
		r.log.Error("local generation failed", "error", err)
		return r.apologize()
	}

	if text, degenerate := sanitizeReply(raw, prompt); !degenerate {
		return Result{Text: text, Source: SourceLocal}
	}
	r.log.Warn("local reply degenerate, substituting from pool")
	return r.fromPool()
}

// fromPool picks a canned natural response uniformly at random.
func (r *Responder) fromPool() Result {
	return Result{Text: r.responsePool[r.pick(len(r.responsePool))], Source: SourcePool}
}

// apologize picks an apology uniformly at random.
func (r *Responder) apologize() Result {
	return Result{Text: r.apologyPool[r.pick(len(r.apologyPool))], Source: SourceApology}
}
