package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidCloudProviders lists the cloud provider names the chat bridge
// supports. [Validate] warns about names outside this list.
var ValidCloudProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// validPersonaModes lists the accepted starting conversation modes.
var validPersonaModes = []string{"casual", "assistant", "creative"}

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected to catch typos early.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every validation failure found; soft issues are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Persona.Mode != "" && !slices.Contains(validPersonaModes, cfg.Persona.Mode) {
		errs = append(errs, fmt.Errorf("persona.mode %q is invalid; valid values: casual, assistant, creative", cfg.Persona.Mode))
	}

	if cfg.Local.BaseURL != "" && cfg.Local.Model == "" {
		errs = append(errs, errors.New("local.model is required when local.base_url is set"))
	}
	if cfg.Local.BaseURL == "" && len(cfg.Cloud.Providers) == 0 {
		slog.Warn("neither local.base_url nor cloud.providers is configured; every reply will be the still-learning placeholder")
	}

	seen := make(map[string]int, len(cfg.Cloud.Providers))
	for i, p := range cfg.Cloud.Providers {
		prefix := fmt.Sprintf("cloud.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of cloud.providers[%d]", prefix, p.Name, prev))
		}
		seen[p.Name] = i
		if !slices.Contains(ValidCloudProviders, p.Name) {
			slog.Warn("unknown cloud provider name — may be a typo",
				"name", p.Name, "known", ValidCloudProviders)
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
	}
	if cfg.Cloud.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("cloud.history_limit %d must not be negative", cfg.Cloud.HistoryLimit))
	}

	if cfg.Memory.PostgresDSN != "" && cfg.Memory.EmbeddingModel == "" {
		errs = append(errs, errors.New("memory.embedding_model is required when memory.postgres_dsn is set"))
	}
	if cfg.Memory.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("memory.recent_limit %d must not be negative", cfg.Memory.RecentLimit))
	}

	return errors.Join(errs...)
}
