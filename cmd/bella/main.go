// Command bella runs the Bella companion server: a WebSocket gateway that
// listens, thinks, and talks back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/bella-ai/bella/internal/chat"
	"github.com/bella-ai/bella/internal/cloud"
	"github.com/bella-ai/bella/internal/config"
	"github.com/bella-ai/bella/internal/health"
	"github.com/bella-ai/bella/internal/memory"
	"github.com/bella-ai/bella/internal/observe"
	"github.com/bella-ai/bella/internal/server"
	"github.com/bella-ai/bella/internal/transcript"
	ollamaembed "github.com/bella-ai/bella/pkg/provider/embeddings/ollama"
	"github.com/bella-ai/bella/pkg/provider/llm"
	"github.com/bella-ai/bella/pkg/provider/llm/anyllm"
	ollamallm "github.com/bella-ai/bella/pkg/provider/llm/ollama"
	openaillm "github.com/bella-ai/bella/pkg/provider/llm/openai"
	"github.com/bella-ai/bella/pkg/provider/stt/whisper"
	"github.com/bella-ai/bella/pkg/provider/tts/localserver"
)

const defaultListenAddr = ":8080"

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "bella: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "bella: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("bella starting",
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "bella",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Response policy collaborators ─────────────────────────────────────────
	var chatOpts []chat.ResponderOption

	if cfg.Local.BaseURL != "" {
		gen, err := ollamallm.New(cfg.Local.BaseURL, cfg.Local.Model)
		if err != nil {
			slog.Error("failed to create local generator", "err", err)
			return 1
		}
		chatOpts = append(chatOpts, chat.WithLocal(gen))
		slog.Info("local model configured", "base_url", cfg.Local.BaseURL, "model", cfg.Local.Model)
	}

	var cloudClient *cloud.Client
	if len(cfg.Cloud.Providers) > 0 {
		cloudClient, err = buildCloudClient(cfg.Cloud)
		if err != nil {
			slog.Error("failed to create cloud client", "err", err)
			return 1
		}
		chatOpts = append(chatOpts, chat.WithCloud(cloudClient))
	}

	responder, err := chat.NewResponder(chatOpts...)
	if err != nil {
		slog.Error("failed to create responder", "err", err)
		return 1
	}
	if cfg.Persona.Mode != "" {
		responder.SetMode(chat.Mode(cfg.Persona.Mode))
	}

	// ── Speech pipeline ───────────────────────────────────────────────────────
	serverOpts := []server.Option{
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		server.WithLogger(logger),
	}
	if cloudClient != nil {
		serverOpts = append(serverOpts, server.WithHistoryClearer(cloudClient))
	}

	if cfg.Speech.TTSBaseURL != "" {
		var ttsOpts []localserver.Option
		if cfg.Speech.TTSLanguage != "" {
			ttsOpts = append(ttsOpts, localserver.WithLanguage(cfg.Speech.TTSLanguage))
		}
		if cfg.Speech.TTSSpeaker != "" {
			ttsOpts = append(ttsOpts, localserver.WithSpeaker(cfg.Speech.TTSSpeaker))
		}
		serverOpts = append(serverOpts, server.WithSynthesizer(localserver.New(cfg.Speech.TTSBaseURL, ttsOpts...)))
		slog.Info("speech synthesis configured", "base_url", cfg.Speech.TTSBaseURL)
	}

	if cfg.Speech.WhisperModelPath != "" {
		var sttOpts []whisper.Option
		if cfg.Speech.Language != "" {
			sttOpts = append(sttOpts, whisper.WithLanguage(cfg.Speech.Language))
		}
		transcriber, err := whisper.New(cfg.Speech.WhisperModelPath, sttOpts...)
		if err != nil {
			slog.Error("failed to load whisper model", "err", err)
			return 1
		}
		defer transcriber.Close()
		serverOpts = append(serverOpts, server.WithTranscriber(transcriber))
		slog.Info("speech recognition configured", "model", cfg.Speech.WhisperModelPath)
	}

	if len(cfg.Persona.Vocabulary) > 0 {
		serverOpts = append(serverOpts, server.WithCorrector(transcript.New(cfg.Persona.Vocabulary)))
	}

	// ── Long-term memory ──────────────────────────────────────────────────────
	var probes []health.Probe
	if cfg.Memory.PostgresDSN != "" {
		embedBase := cfg.Memory.EmbeddingBaseURL
		if embedBase == "" {
			embedBase = cfg.Local.BaseURL
		}
		embedder, err := ollamaembed.New(embedBase, cfg.Memory.EmbeddingModel)
		if err != nil {
			slog.Error("failed to create embedder", "err", err)
			return 1
		}
		store, err := memory.NewStore(ctx, cfg.Memory.PostgresDSN, embedder)
		if err != nil {
			slog.Error("failed to open conversation memory", "err", err)
			return 1
		}
		defer store.Close()
		serverOpts = append(serverOpts, server.WithMemory(store))
		if cfg.Memory.RecentLimit > 0 {
			serverOpts = append(serverOpts, server.WithRecentLimit(cfg.Memory.RecentLimit))
		}
		probes = append(probes, health.Probe{Name: "postgres", Check: store.Ping})
		slog.Info("conversation memory configured", "embedding_model", cfg.Memory.EmbeddingModel)
	}
	serverOpts = append(serverOpts, server.WithHealth(health.New(probes...)))

	// ── Gateway ───────────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	srv, err := server.New(listenAddr(cfg), responder, serverOpts...)
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildCloudClient registers every configured cloud provider with the bridge.
// The first entry becomes the initial selection.
func buildCloudClient(cfg config.CloudConfig) (*cloud.Client, error) {
	var opts []cloud.Option
	if cfg.HistoryLimit > 0 {
		opts = append(opts, cloud.WithHistoryLimit(cfg.HistoryLimit))
	}
	client := cloud.New(opts...)

	for _, p := range cfg.Providers {
		if err := client.Register(p.Name, p.Model, p.APIKey, chatterFactory(p.Name, p.Model)); err != nil {
			return nil, fmt.Errorf("register cloud provider %q: %w", p.Name, err)
		}
		slog.Info("cloud provider registered", "name", p.Name, "model", p.Model, "has_key", p.APIKey != "")
	}
	return client, nil
}

// chatterFactory returns the constructor for one provider's chat backend.
// OpenAI uses the official SDK; everything else goes through any-llm.
func chatterFactory(name, model string) cloud.ChatterFactory {
	if name == "openai" {
		return func(apiKey string) (llm.Chatter, error) {
			return openaillm.New(apiKey, model)
		}
	}
	return func(apiKey string) (llm.Chatter, error) {
		var opts []anyllmlib.Option
		if apiKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(apiKey))
		}
		return anyllm.New(name, model, opts...)
	}
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return defaultListenAddr
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Bella — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Local model", cfg.Local.Model)
	cloudNames := ""
	for i, p := range cfg.Cloud.Providers {
		if i > 0 {
			cloudNames += ","
		}
		cloudNames += p.Name
	}
	printRow("Cloud", cloudNames)
	printRow("Synthesis", cfg.Speech.TTSBaseURL)
	printRow("Recognition", cfg.Speech.WhisperModelPath)
	printRow("Memory", cfg.Memory.EmbeddingModel)
	printRow("Mode", cfg.Persona.Mode)
	printRow("Listen addr", listenAddr(cfg))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-12s : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
