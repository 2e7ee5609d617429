// Package config provides the configuration schema and loader for the Bella
// companion server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. Loaded from YAML via [Load] or
// [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Persona PersonaConfig `yaml:"persona"`
	Local   LocalConfig   `yaml:"local"`
	Cloud   CloudConfig   `yaml:"cloud"`
	Speech  SpeechConfig  `yaml:"speech"`
	Memory  MemoryConfig  `yaml:"memory"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origins accepted for WebSocket upgrades. Empty
	// means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PersonaConfig shapes the companion's behaviour.
type PersonaConfig struct {
	// Mode is the starting conversation mode: casual, assistant, or creative.
	Mode string `yaml:"mode"`

	// Vocabulary lists names and topics speech recognition must get right;
	// recognized utterances are corrected against this list.
	Vocabulary []string `yaml:"vocabulary"`
}

// LocalConfig selects the local generation model.
type LocalConfig struct {
	// BaseURL is the Ollama server address. Empty disables local generation;
	// the companion then answers with its still-learning line unless a cloud
	// provider is active.
	BaseURL string `yaml:"base_url"`

	// Model is the Ollama model name (e.g., "llama3.2:1b").
	Model string `yaml:"model"`
}

// CloudConfig declares the optional cloud chat providers.
type CloudConfig struct {
	// Providers lists the registered cloud providers in priority order; the
	// first entry is the initial selection.
	Providers []CloudProvider `yaml:"providers"`

	// HistoryLimit caps the conversation messages replayed per cloud call.
	HistoryLimit int `yaml:"history_limit"`
}

// CloudProvider is one cloud chat backend entry.
type CloudProvider struct {
	// Name selects the backend (openai, anthropic, gemini, ollama, deepseek,
	// mistral, groq).
	Name string `yaml:"name"`

	// Model is the provider-specific model identifier.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. Empty leaves the provider
	// registered but unconfigured until a key arrives over the gateway.
	APIKey string `yaml:"api_key"`
}

// SpeechConfig wires the speech pipeline.
type SpeechConfig struct {
	// TTSBaseURL is the local synthesis server address. Empty disables
	// spoken replies.
	TTSBaseURL string `yaml:"tts_base_url"`

	// TTSLanguage is the language code sent to the synthesis server.
	TTSLanguage string `yaml:"tts_language"`

	// TTSSpeaker is the voice identifier on the synthesis server.
	TTSSpeaker string `yaml:"tts_speaker"`

	// WhisperModelPath points at a whisper.cpp model file for server-side
	// recognition of uploaded audio. Empty disables it; browsers must then
	// recognize speech themselves.
	WhisperModelPath string `yaml:"whisper_model_path"`

	// Language is the recognition language code.
	Language string `yaml:"language"`
}

// MemoryConfig wires long-term conversation memory.
type MemoryConfig struct {
	// PostgresDSN is the conversation database. Empty disables memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingBaseURL is the Ollama server used for turn embeddings.
	// Defaults to local.base_url when empty.
	EmbeddingBaseURL string `yaml:"embedding_base_url"`

	// EmbeddingModel is the embedding model name (e.g., "nomic-embed-text").
	EmbeddingModel string `yaml:"embedding_model"`

	// RecentLimit is the number of recent turns replayed into context.
	RecentLimit int `yaml:"recent_limit"`
}
