package cloud

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bella-ai/bella/pkg/provider/llm"
	llmmock "github.com/bella-ai/bella/pkg/provider/llm/mock"
)

func staticFactory(c llm.Chatter) ChatterFactory {
	return func(string) (llm.Chatter, error) { return c, nil }
}

func TestRegisterAndCurrentProvider(t *testing.T) {
	c := New()
	if err := c.Register("openai", "gpt-4o-mini", "sk-1", staticFactory(&llmmock.Chatter{})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register("anthropic", "claude-3-5-haiku-latest", "", staticFactory(&llmmock.Chatter{})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := c.CurrentProvider(); got.Name != "openai" || got.Model != "gpt-4o-mini" {
		t.Errorf("CurrentProvider = %+v, want first registered", got)
	}

	if err := c.Register("openai", "other", "", staticFactory(&llmmock.Chatter{})); err == nil {
		t.Error("duplicate Register accepted")
	}
	if err := c.Register("", "m", "", staticFactory(&llmmock.Chatter{})); err == nil {
		t.Error("empty provider name accepted")
	}
	if err := c.Register("x", "m", "", nil); err == nil {
		t.Error("nil factory accepted")
	}
}

func TestIsConfigured(t *testing.T) {
	c := New()
	if c.IsConfigured() {
		t.Error("empty client reports configured")
	}

	c.Register("openai", "gpt-4o-mini", "", staticFactory(&llmmock.Chatter{}))
	if c.IsConfigured() {
		t.Error("provider without key reports configured")
	}

	if !c.SetAPIKey("openai", "sk-test") {
		t.Fatal("SetAPIKey returned false for registered provider")
	}
	if !c.IsConfigured() {
		t.Error("provider with key reports unconfigured")
	}

	if c.SetAPIKey("nope", "sk") {
		t.Error("SetAPIKey accepted unknown provider")
	}
}

func TestSwitchProvider(t *testing.T) {
	c := New()
	c.Register("openai", "gpt-4o-mini", "sk-1", staticFactory(&llmmock.Chatter{}))
	c.Register("groq", "llama-3.3-70b-versatile", "", staticFactory(&llmmock.Chatter{}))

	if !c.SwitchProvider("groq") {
		t.Fatal("SwitchProvider rejected registered provider")
	}
	if got := c.CurrentProvider().Name; got != "groq" {
		t.Errorf("current = %q, want groq", got)
	}
	if c.IsConfigured() {
		t.Error("keyless provider reports configured after switch")
	}

	if c.SwitchProvider("cloud-provider-x") {
		t.Error("SwitchProvider accepted unknown name")
	}
	if got := c.CurrentProvider().Name; got != "groq" {
		t.Errorf("failed switch changed current to %q", got)
	}
}

func TestChatRecordsBoundedHistory(t *testing.T) {
	chatter := &llmmock.Chatter{Response: "hello back"}
	c := New(WithHistoryLimit(4))
	c.Register("openai", "gpt-4o-mini", "sk-1", staticFactory(chatter))

	for i := 0; i < 5; i++ {
		if _, err := c.Chat(context.Background(), fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("Chat %d: %v", i, err)
		}
	}

	hist := c.History()
	if len(hist) != 4 {
		t.Fatalf("history length = %d, want limit 4", len(hist))
	}
	if hist[0].Content != "turn 3" || hist[0].Role != "user" {
		t.Errorf("oldest retained = %+v, want user turn 3", hist[0])
	}
	if hist[3].Role != "assistant" {
		t.Errorf("newest retained role = %q, want assistant", hist[3].Role)
	}

	// The last call replays the retained window plus the new prompt.
	calls := chatter.Calls()
	last := calls[len(calls)-1].Messages
	if last[len(last)-1].Content != "turn 4" {
		t.Errorf("final message = %+v, want the new prompt", last[len(last)-1])
	}
	if len(last) != 5 {
		t.Errorf("replayed %d messages, want 4 history + 1 prompt", len(last))
	}
}

func TestChatFailureLeavesHistoryClean(t *testing.T) {
	chatter := &llmmock.Chatter{Err: errors.New("HTTP 500")}
	c := New()
	c.Register("openai", "gpt-4o-mini", "sk-1", staticFactory(chatter))

	if _, err := c.Chat(context.Background(), "hi"); err == nil {
		t.Fatal("Chat returned nil error for failing backend")
	}
	if got := len(c.History()); got != 0 {
		t.Errorf("history length = %d after failed call, want 0", got)
	}
}

func TestChatWithoutKeyFails(t *testing.T) {
	c := New()
	c.Register("openai", "gpt-4o-mini", "", staticFactory(&llmmock.Chatter{}))

	if _, err := c.Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat succeeded without an API key")
	}

	empty := New()
	if _, err := empty.Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat succeeded with no provider registered")
	}
}

func TestSetAPIKeyDropsCachedBackend(t *testing.T) {
	built := 0
	factory := func(key string) (llm.Chatter, error) {
		built++
		return &llmmock.Chatter{Response: "ok with " + key}, nil
	}
	c := New()
	c.Register("openai", "gpt-4o-mini", "sk-old", factory)

	if _, err := c.Chat(context.Background(), "one"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := c.Chat(context.Background(), "two"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if built != 1 {
		t.Fatalf("backend built %d times, want 1 (cached)", built)
	}

	c.SetAPIKey("openai", "sk-new")
	reply, err := c.Chat(context.Background(), "three")
	if err != nil {
		t.Fatalf("Chat after rekey: %v", err)
	}
	if built != 2 {
		t.Errorf("backend built %d times, want rebuild after rekey", built)
	}
	if reply != "ok with sk-new" {
		t.Errorf("reply = %q, want backend built with new key", reply)
	}
}

func TestFactoryErrorSurfaces(t *testing.T) {
	c := New()
	c.Register("openai", "gpt-4o-mini", "sk-1", func(string) (llm.Chatter, error) {
		return nil, errors.New("bad credentials")
	})
	if _, err := c.Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat swallowed factory error")
	}
}

func TestClearHistory(t *testing.T) {
	c := New()
	c.Register("openai", "gpt-4o-mini", "sk-1", staticFactory(&llmmock.Chatter{Response: "yo"}))
	c.Chat(context.Background(), "hi")
	if len(c.History()) == 0 {
		t.Fatal("history empty after successful chat")
	}
	c.ClearHistory()
	if got := len(c.History()); got != 0 {
		t.Errorf("history length = %d after clear, want 0", got)
	}
}

func TestHistorySurvivesProviderSwitch(t *testing.T) {
	a := &llmmock.Chatter{Response: "from a"}
	b := &llmmock.Chatter{Response: "from b"}
	c := New()
	c.Register("openai", "gpt-4o-mini", "sk-1", staticFactory(a))
	c.Register("groq", "llama-3.3-70b-versatile", "sk-2", staticFactory(b))

	c.Chat(context.Background(), "first")
	c.SwitchProvider("groq")
	c.Chat(context.Background(), "second")

	calls := b.Calls()
	if len(calls) != 1 {
		t.Fatalf("second provider called %d times", len(calls))
	}
	msgs := calls[0].Messages
	if len(msgs) != 3 {
		t.Fatalf("second provider saw %d messages, want prior exchange + prompt", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "from a" {
		t.Errorf("history not carried across switch: %+v", msgs[:2])
	}
}
