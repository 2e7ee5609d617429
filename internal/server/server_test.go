package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/bella-ai/bella/internal/chat"
	"github.com/bella-ai/bella/internal/memory"
	"github.com/bella-ai/bella/internal/transcript"
	"github.com/bella-ai/bella/pkg/audio/wav"
	llmmock "github.com/bella-ai/bella/pkg/provider/llm/mock"
	sttmock "github.com/bella-ai/bella/pkg/provider/stt/mock"
	ttsmock "github.com/bella-ai/bella/pkg/provider/tts/mock"
)

// fakeCloud satisfies chat.CloudClient for backend-switch tests.
type fakeCloud struct {
	configured bool
	response   string
	cleared    int
}

func (f *fakeCloud) IsConfigured() bool { return f.configured }

func (f *fakeCloud) Chat(_ context.Context, _ string) (string, error) {
	if !f.configured {
		return "", errors.New("no provider configured")
	}
	return f.response, nil
}

func (f *fakeCloud) SwitchProvider(name string) bool { return name == "openai" }

func (f *fakeCloud) SetAPIKey(_, key string) bool {
	if key != "" {
		f.configured = true
	}
	return true
}

func (f *fakeCloud) ClearHistory() { f.cleared++ }

// appendedTurn records one AppendTurn call on the memory fake.
type appendedTurn struct {
	sessionID, role, text string
}

// fakeMemory satisfies ConversationMemory in-process.
type fakeMemory struct {
	mu        sync.Mutex
	turns     []appendedTurn
	hits      []memory.Recalled
	recallErr error
	cleared   []string
}

func (f *fakeMemory) AppendTurn(_ context.Context, sessionID, role, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, appendedTurn{sessionID, role, text})
	return nil
}

func (f *fakeMemory) Recent(_ context.Context, sessionID string, limit int) ([]memory.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []memory.Turn
	for _, a := range f.turns {
		if a.sessionID == sessionID {
			out = append(out, memory.Turn{SessionID: a.sessionID, Role: a.role, Text: a.text})
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMemory) Recall(_ context.Context, _, _ string, _ int) ([]memory.Recalled, error) {
	if f.recallErr != nil {
		return nil, f.recallErr
	}
	return f.hits, nil
}

func (f *fakeMemory) ClearSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func (f *fakeMemory) appended() []appendedTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]appendedTurn, len(f.turns))
	copy(out, f.turns)
	return out
}

// fixture bundles a running gateway with its collaborators.
type fixture struct {
	ts     *httptest.Server
	gen    *llmmock.Generator
	cloud  *fakeCloud
	synth  *ttsmock.Synthesizer
	trans  *sttmock.Transcriber
	mem    *fakeMemory
	server *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		gen:   &llmmock.Generator{Response: "Hello! Lovely to see you."},
		cloud: &fakeCloud{response: "Cloud says hi."},
		synth: &ttsmock.Synthesizer{Samples: []float32{0, 0.5, -0.5, 0.25}, Rate: 22050},
		trans: &sttmock.Transcriber{Text: "hello there"},
		mem:   &fakeMemory{},
	}

	responder, err := chat.NewResponder(
		chat.WithLocal(f.gen),
		chat.WithCloud(f.cloud),
	)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}

	corrector := transcript.New([]string{"Bella"})
	all := append([]Option{
		WithSynthesizer(f.synth),
		WithTranscriber(f.trans),
		WithCorrector(corrector),
		WithMemory(f.mem),
		WithHistoryClearer(f.cloud),
	}, opts...)

	srv, err := New(":0", responder, all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.server = srv

	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

// dial opens a WebSocket session against the fixture.
func (f *fixture) dial(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn, ctx
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, msg clientMessage) serverMessage {
	t.Helper()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("write %+v: %v", msg, err)
	}
	var reply serverMessage
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read reply to %+v: %v", msg, err)
	}
	return reply
}

func TestUtteranceProducesSpokenReply(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeUtterance, Text: "Hi!"})

	if reply.Type != TypeReply {
		t.Fatalf("reply type = %q, want %q (detail %q)", reply.Type, TypeReply, reply.Detail)
	}
	if reply.Text != "Hello! Lovely to see you." {
		t.Errorf("reply text = %q", reply.Text)
	}
	if reply.Source != string(chat.SourceLocal) {
		t.Errorf("reply source = %q, want %q", reply.Source, chat.SourceLocal)
	}
	if reply.Audio == "" {
		t.Fatal("reply carries no audio despite a working synthesizer")
	}

	data, err := base64.StdEncoding.DecodeString(reply.Audio)
	if err != nil {
		t.Fatalf("reply audio is not base64: %v", err)
	}
	info, err := wav.Parse(data)
	if err != nil {
		t.Fatalf("reply audio is not WAV: %v", err)
	}
	if info.SampleRate != 22050 {
		t.Errorf("audio sample rate = %d, want 22050", info.SampleRate)
	}
	if got := f.synth.Calls(); len(got) != 1 || got[0] != reply.Text {
		t.Errorf("synthesized texts = %q, want the reply text once", got)
	}
}

func TestUtteranceIsCorrectedBeforeResponding(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeUtterance, Text: "hi bela"})

	if reply.Utterance != "hi Bella" {
		t.Errorf("echoed utterance = %q, want %q", reply.Utterance, "hi Bella")
	}
	if len(reply.Corrections) != 1 || reply.Corrections[0].Heard != "bela" || reply.Corrections[0].Corrected != "Bella" {
		t.Errorf("corrections = %+v", reply.Corrections)
	}
	calls := f.gen.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Prompt, "hi Bella") {
		t.Errorf("model prompt did not receive the corrected utterance: %+v", calls)
	}
}

func TestUtteranceIsLoggedToMemory(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	roundTrip(t, ctx, conn, clientMessage{Type: TypeUtterance, Text: "remember me"})

	turns := f.mem.appended()
	if len(turns) != 2 {
		t.Fatalf("logged %d turns, want 2", len(turns))
	}
	if turns[0].role != memory.RoleUser || turns[0].text != "remember me" {
		t.Errorf("user turn = %+v", turns[0])
	}
	if turns[1].role != memory.RoleCompanion || turns[1].text != "Hello! Lovely to see you." {
		t.Errorf("companion turn = %+v", turns[1])
	}
	if turns[0].sessionID == "" || turns[0].sessionID != turns[1].sessionID {
		t.Errorf("turns carry inconsistent session ids: %+v", turns)
	}
}

func TestAudioUtteranceIsTranscribed(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	pcm, err := wav.Encode([]float32{0, 0.1, -0.1, 0.2}, 16000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	reply := roundTrip(t, ctx, conn, clientMessage{
		Type:  TypeAudioUtterance,
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})

	if reply.Type != TypeReply {
		t.Fatalf("reply type = %q (detail %q)", reply.Type, reply.Detail)
	}
	if reply.Utterance != "hello there" {
		t.Errorf("transcript = %q, want %q", reply.Utterance, "hello there")
	}
	calls := f.trans.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcriber called %d times, want 1", len(calls))
	}
	if calls[0].SampleRate != 16000 || len(calls[0].Samples) != 4 {
		t.Errorf("transcriber received rate=%d n=%d", calls[0].SampleRate, len(calls[0].Samples))
	}
}

func TestAudioUtteranceRejectsBadPayloads(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	tests := []struct {
		name  string
		audio string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"not wav", base64.StdEncoding.EncodeToString([]byte("definitely not audio"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeAudioUtterance, Audio: tt.audio})
			if reply.Type != TypeError {
				t.Errorf("reply type = %q, want %q", reply.Type, TypeError)
			}
		})
	}
}

func TestAudioUtteranceWithoutTranscriber(t *testing.T) {
	f := newFixture(t, WithTranscriber(nil))
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeAudioUtterance, Audio: "aGk="})
	if reply.Type != TypeError {
		t.Errorf("reply type = %q, want %q", reply.Type, TypeError)
	}
}

func TestSetMode(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	if reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeSetMode, Text: "creative"}); !reply.OK {
		t.Errorf("set_mode creative rejected: %+v", reply)
	}
	if got := f.server.responder.Mode(); got != chat.ModeCreative {
		t.Errorf("mode = %q after set_mode", got)
	}
	if reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeSetMode, Text: "pirate"}); reply.OK {
		t.Error("set_mode pirate accepted")
	}
}

func TestSwitchBackend(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeSwitchBackend, Text: "openai", APIKey: "sk-test"})
	if !reply.OK {
		t.Fatalf("switch to openai rejected: %+v", reply)
	}
	if got := f.server.responder.Backend(); got != chat.BackendCloud {
		t.Errorf("backend = %q after switch", got)
	}

	if reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeSwitchBackend, Text: "frontier-9000"}); reply.OK {
		t.Error("switch to unknown provider accepted")
	}
	if reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeSwitchBackend, Text: "local"}); !reply.OK {
		t.Error("switch back to local rejected")
	}
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	roundTrip(t, ctx, conn, clientMessage{Type: TypeUtterance, Text: "hello"})
	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeClearHistory})
	if !reply.OK {
		t.Fatalf("clear_history rejected: %+v", reply)
	}
	if f.cloud.cleared != 1 {
		t.Errorf("cloud history cleared %d times, want 1", f.cloud.cleared)
	}
	if len(f.mem.cleared) != 1 {
		t.Errorf("session memory cleared %d times, want 1", len(f.mem.cleared))
	}
}

func TestRecall(t *testing.T) {
	f := newFixture(t)
	f.mem.hits = []memory.Recalled{
		{Turn: memory.Turn{Role: memory.RoleUser, Text: "my cat is called Momo"}, Distance: 0.1},
		{Turn: memory.Turn{Role: memory.RoleCompanion, Text: "Momo is a lovely name!"}, Distance: 0.2},
	}
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeRecall, Text: "what is my cat called?"})
	if reply.Type != TypeRecallResult {
		t.Fatalf("reply type = %q (detail %q)", reply.Type, reply.Detail)
	}
	if len(reply.Matches) != 2 || reply.Matches[0].Text != "my cat is called Momo" {
		t.Errorf("matches = %+v", reply.Matches)
	}
}

func TestRecallWithEmptyQueryReturnsRecentTurns(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	roundTrip(t, ctx, conn, clientMessage{Type: TypeUtterance, Text: "first"})
	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeRecall})
	if reply.Type != TypeRecallResult {
		t.Fatalf("reply type = %q (detail %q)", reply.Type, reply.Detail)
	}
	if len(reply.Matches) != 2 || reply.Matches[0].Text != "first" {
		t.Errorf("matches = %+v", reply.Matches)
	}
}

func TestRecallWithoutMemory(t *testing.T) {
	f := newFixture(t, WithMemory(nil))
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeRecall, Text: "anything"})
	if reply.Type != TypeError {
		t.Errorf("reply type = %q, want %q", reply.Type, TypeError)
	}
}

func TestUnknownMessageType(t *testing.T) {
	f := newFixture(t)
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: "dance"})
	if reply.Type != TypeError || !strings.Contains(reply.Detail, "dance") {
		t.Errorf("reply = %+v", reply)
	}
}

func TestSynthesisFailureStillReplies(t *testing.T) {
	f := newFixture(t)
	f.synth.Err = errors.New("speaker on fire")
	conn, ctx := f.dial(t)

	reply := roundTrip(t, ctx, conn, clientMessage{Type: TypeUtterance, Text: "hi"})
	if reply.Type != TypeReply || reply.Text == "" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Audio != "" {
		t.Error("reply carries audio despite synthesis failure")
	}
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(f.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestNewRequiresResponder(t *testing.T) {
	if _, err := New(":0", nil); err == nil {
		t.Error("nil responder accepted")
	}
}
