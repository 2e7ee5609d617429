// Package mock provides test doubles for the llm.Generator and llm.Chatter
// interfaces.
//
// Use these in unit tests to verify the prompts the response policy sends and
// to feed controlled responses without a live model backend. All fields are
// safe to set before calling any method; mutating them during a concurrent
// call is the caller's responsibility.
//
// Example:
//
//	g := &mock.Generator{Response: "Hello!"}
//	text, err := g.Generate(ctx, prompt, params)
package mock

import (
	"context"
	"sync"

	"github.com/bella-ai/bella/pkg/provider/llm"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Prompt is the prompt passed to Generate.
	Prompt string
	// Params are the decoding parameters passed to Generate.
	Params llm.GenerationParams
}

// Generator is a mock implementation of llm.Generator.
// The zero value returns "" and a nil error from every call.
type Generator struct {
	mu sync.Mutex

	// Response is returned by Generate. If ResponseFunc is set it wins.
	Response string

	// ResponseFunc, if non-nil, computes the Generate return value from the
	// prompt. Useful for echo-the-prompt degenerate-output tests.
	ResponseFunc func(prompt string) string

	// Err, if non-nil, is returned as the error from Generate.
	Err error

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall
}

// Compile-time interface assertion.
var _ llm.Generator = (*Generator)(nil)

// Generate implements llm.Generator.
func (g *Generator) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GenerateCalls = append(g.GenerateCalls, GenerateCall{Prompt: prompt, Params: params})
	if g.Err != nil {
		return "", g.Err
	}
	if g.ResponseFunc != nil {
		return g.ResponseFunc(prompt), nil
	}
	return g.Response, nil
}

// Calls returns a copy of the recorded Generate invocations.
func (g *Generator) Calls() []GenerateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GenerateCall, len(g.GenerateCalls))
	copy(out, g.GenerateCalls)
	return out
}

// ChatCall records a single invocation of Chat.
type ChatCall struct {
	// Messages is the history passed to Chat.
	Messages []llm.Message
}

// Chatter is a mock implementation of llm.Chatter.
// The zero value returns "" and a nil error from every call.
type Chatter struct {
	mu sync.Mutex

	// Response is returned by Chat.
	Response string

	// Err, if non-nil, is returned as the error from Chat.
	Err error

	// ChatCalls records every invocation of Chat in order.
	ChatCalls []ChatCall
}

// Compile-time interface assertion.
var _ llm.Chatter = (*Chatter)(nil)

// Chat implements llm.Chatter.
func (c *Chatter) Chat(_ context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]llm.Message, len(messages))
	copy(cp, messages)
	c.ChatCalls = append(c.ChatCalls, ChatCall{Messages: cp})
	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}

// Calls returns a copy of the recorded Chat invocations.
func (c *Chatter) Calls() []ChatCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatCall, len(c.ChatCalls))
	copy(out, c.ChatCalls)
	return out
}
