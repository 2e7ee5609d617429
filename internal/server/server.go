// Package server is the WebSocket gateway between the browser UI and the
// companion: it receives utterances (text or recorded audio), drives the
// responder, speaks replies through the synthesis provider, and exposes the
// operational HTTP endpoints (/healthz, /readyz, /metrics).
package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bella-ai/bella/internal/chat"
	"github.com/bella-ai/bella/internal/health"
	"github.com/bella-ai/bella/internal/memory"
	"github.com/bella-ai/bella/internal/observe"
	"github.com/bella-ai/bella/internal/transcript"
	"github.com/bella-ai/bella/pkg/audio/wav"
	"github.com/bella-ai/bella/pkg/provider/stt"
	"github.com/bella-ai/bella/pkg/provider/tts"
)

// shutdownTimeout bounds graceful HTTP shutdown once the run context ends.
const shutdownTimeout = 10 * time.Second

// recallLimit is the number of past turns returned per semantic recall.
const recallLimit = 5

// defaultRecentLimit is the recent-window size when none is configured.
const defaultRecentLimit = 10

// ConversationMemory is the slice of the memory store the gateway needs.
// Satisfied by [memory.Store].
type ConversationMemory interface {
	AppendTurn(ctx context.Context, sessionID, role, text string) error
	Recent(ctx context.Context, sessionID string, limit int) ([]memory.Turn, error)
	Recall(ctx context.Context, sessionID, query string, topK int) ([]memory.Recalled, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// HistoryClearer is the cloud-side hook for the clear_history request.
type HistoryClearer interface {
	ClearHistory()
}

// Server owns the gateway. Construct with New; all collaborators except the
// responder are optional and degrade the corresponding feature when absent.
type Server struct {
	addr           string
	allowedOrigins []string

	responder   *chat.Responder
	historian   HistoryClearer
	synth       tts.Synthesizer
	transcriber stt.Transcriber
	corrector   *transcript.Corrector
	store       ConversationMemory
	recentLimit int

	metrics *observe.Metrics
	health  *health.Handler
	log     *slog.Logger
}

// Option is a functional option for New.
type Option func(*Server)

// WithAllowedOrigins sets the origins accepted for WebSocket upgrades.
// Empty means same-origin only.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithHistoryClearer wires the cloud client's history reset.
func WithHistoryClearer(h HistoryClearer) Option {
	return func(s *Server) { s.historian = h }
}

// WithSynthesizer enables spoken replies.
func WithSynthesizer(t tts.Synthesizer) Option {
	return func(s *Server) { s.synth = t }
}

// WithTranscriber enables server-side recognition of uploaded audio.
func WithTranscriber(t stt.Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithCorrector enables vocabulary correction of utterances.
func WithCorrector(c *transcript.Corrector) Option {
	return func(s *Server) { s.corrector = c }
}

// WithMemory enables turn logging and semantic recall.
func WithMemory(m ConversationMemory) Option {
	return func(s *Server) { s.store = m }
}

// WithRecentLimit sets how many turns an empty recall query returns.
func WithRecentLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// WithHealth sets the health handler. Defaults to one with no probes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server listening on addr once Run is called.
func New(addr string, responder *chat.Responder, opts ...Option) (*Server, error) {
	if responder == nil {
		return nil, errors.New("server: responder must not be nil")
	}
	s := &Server{
		addr:        addr,
		responder:   responder,
		recentLimit: defaultRecentLimit,
		health:      health.New(),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Handler returns the HTTP routes: /ws plus the operational endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("gateway listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// handleWS upgrades the connection and serves one companion session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")

	sessionID := newSessionID()
	log := s.log.With("session", sessionID)
	log.Info("session opened", "remote", r.RemoteAddr)

	s.metrics.ActiveSessions.Add(r.Context(), 1)
	defer s.metrics.ActiveSessions.Add(context.Background(), -1)

	ctx := r.Context()
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				log.Info("session closed")
			} else {
				log.Warn("session read failed", "error", err)
			}
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}

		reply := s.dispatch(ctx, sessionID, msg, log)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			log.Warn("session write failed", "error", err)
			return
		}
	}
}

// dispatch routes one client message and produces the response envelope.
func (s *Server) dispatch(ctx context.Context, sessionID string, msg clientMessage, log *slog.Logger) serverMessage {
	switch msg.Type {
	case TypeUtterance:
		return s.handleUtterance(ctx, sessionID, msg.Text, nil, log)

	case TypeAudioUtterance:
		return s.handleAudioUtterance(ctx, sessionID, msg.Audio, log)

	case TypeSetMode:
		ok := s.responder.SetMode(chat.Mode(msg.Text))
		return ack(ok, pickDetail(ok, "", fmt.Sprintf("unknown mode %q", msg.Text)))

	case TypeSwitchBackend:
		ok := s.responder.SwitchBackend(msg.Text, msg.APIKey)
		return ack(ok, pickDetail(ok, "", fmt.Sprintf("cannot switch to %q", msg.Text)))

	case TypeClearHistory:
		if s.historian != nil {
			s.historian.ClearHistory()
		}
		if s.store != nil {
			if err := s.store.ClearSession(ctx, sessionID); err != nil {
				log.Warn("failed to clear session memory", "error", err)
			}
		}
		return ack(true, "")

	case TypeRecall:
		return s.handleRecall(ctx, sessionID, msg.Text)

	default:
		return serverMessage{Type: TypeError, Detail: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
}

// handleUtterance turns text into a (possibly spoken) reply. corrections may
// carry fixes already applied by the audio path.
func (s *Server) handleUtterance(ctx context.Context, sessionID, text string, corrections []wordFix, log *slog.Logger) serverMessage {
	if s.corrector != nil && corrections == nil {
		corrected, fixes := s.corrector.Correct(text)
		text = corrected
		for _, f := range fixes {
			corrections = append(corrections, wordFix{Heard: f.Heard, Corrected: f.Corrected})
		}
		s.metrics.TranscriptCorrections.Add(ctx, int64(len(fixes)))
	}

	backend := s.responder.Backend()
	start := time.Now()
	result := s.responder.Respond(ctx, text)
	s.metrics.RecordReply(ctx, string(result.Source), string(backend), time.Since(start))
	if result.Source == chat.SourceApology {
		s.metrics.RecordBackendError(ctx, string(backend))
	}

	if s.store != nil {
		if err := s.store.AppendTurn(ctx, sessionID, memory.RoleUser, text); err != nil {
			log.Warn("failed to log user turn", "error", err)
		}
		if err := s.store.AppendTurn(ctx, sessionID, memory.RoleCompanion, result.Text); err != nil {
			log.Warn("failed to log companion turn", "error", err)
		}
	}

	out := serverMessage{
		Type:        TypeReply,
		Text:        result.Text,
		Source:      string(result.Source),
		Utterance:   text,
		Corrections: corrections,
	}
	out.Audio = s.speak(ctx, result.Text, log)
	return out
}

// handleAudioUtterance decodes and transcribes uploaded audio, then answers
// it like a text utterance.
func (s *Server) handleAudioUtterance(ctx context.Context, sessionID, audioB64 string, log *slog.Logger) serverMessage {
	if s.transcriber == nil {
		return serverMessage{Type: TypeError, Detail: "speech recognition is not available"}
	}

	data, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		return serverMessage{Type: TypeError, Detail: "audio is not valid base64"}
	}
	info, err := wav.Parse(data)
	if err != nil {
		return serverMessage{Type: TypeError, Detail: "audio is not a valid WAV container"}
	}
	samples := wav.DecodeMono(data[info.DataOffset:info.DataOffset+info.DataLen], info.Channels)

	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, samples, info.SampleRate)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		log.Warn("transcription failed", "error", err)
		return serverMessage{Type: TypeError, Detail: "could not understand the recording"}
	}
	if text == "" {
		return serverMessage{Type: TypeError, Detail: "no speech detected"}
	}

	var corrections []wordFix
	if s.corrector != nil {
		corrected, fixes := s.corrector.Correct(text)
		text = corrected
		for _, f := range fixes {
			corrections = append(corrections, wordFix{Heard: f.Heard, Corrected: f.Corrected})
		}
		s.metrics.TranscriptCorrections.Add(ctx, int64(len(fixes)))
	}
	if corrections == nil {
		corrections = []wordFix{}
	}
	return s.handleUtterance(ctx, sessionID, text, corrections, log)
}

// handleRecall searches long-term memory for turns related to the query.
// An empty query returns the most recent turns of the session instead.
func (s *Server) handleRecall(ctx context.Context, sessionID, query string) serverMessage {
	if s.store == nil {
		return serverMessage{Type: TypeError, Detail: "memory is not available"}
	}

	var matches []recalledTurn
	if query == "" {
		turns, err := s.store.Recent(ctx, sessionID, s.recentLimit)
		if err != nil {
			return serverMessage{Type: TypeError, Detail: "recall failed"}
		}
		matches = make([]recalledTurn, len(turns))
		for i, t := range turns {
			matches[i] = recalledTurn{Role: t.Role, Text: t.Text}
		}
	} else {
		hits, err := s.store.Recall(ctx, sessionID, query, recallLimit)
		if err != nil {
			return serverMessage{Type: TypeError, Detail: "recall failed"}
		}
		matches = make([]recalledTurn, len(hits))
		for i, h := range hits {
			matches[i] = recalledTurn{Role: h.Role, Text: h.Text}
		}
	}
	return serverMessage{Type: TypeRecallResult, Matches: matches}
}

// speak synthesizes the reply into base64 WAV, or returns "" when synthesis
// is unavailable or fails. Spoken output is best-effort: a reply without
// audio is still a reply.
func (s *Server) speak(ctx context.Context, text string, log *slog.Logger) string {
	if s.synth == nil {
		return ""
	}
	start := time.Now()
	samples, rate, err := s.synth.Synthesize(ctx, text)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		log.Warn("synthesis failed", "error", err)
		return ""
	}
	encoded, err := wav.Encode(samples, rate)
	if err != nil {
		log.Warn("audio encoding failed", "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(encoded)
}

func ack(ok bool, detail string) serverMessage {
	return serverMessage{Type: TypeAck, OK: ok, Detail: detail}
}

func pickDetail(ok bool, okDetail, failDetail string) string {
	if ok {
		return okDetail
	}
	return failDetail
}

// newSessionID returns a short random identifier for log correlation.
func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
