// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete assistant configuration.
type Config struct {
	Ollama     OllamaConfig     `toml:"ollama"`
	Chroma     ChromaConfig     `toml:"chroma"`
	Classifier ClassifierConfig `toml:"classifier"`
	Session    SessionConfig    `toml:"session"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Prompts    PromptsConfig    `toml:"prompts"`
}

// OllamaConfig contains model backend configuration.
type OllamaConfig struct {
	// URL is the Ollama server base URL
	URL string `toml:"url"`
	// Model is the default generation model
	Model string `toml:"model"`
	// EmbeddingModel is the model used for query embeddings
	EmbeddingModel string `toml:"embedding_model"`
	// ReasoningModels supplements the built-in list of model name
	// fragments treated as reasoning models
	ReasoningModels []string `toml:"reasoning_models"`
}

// ChromaConfig contains vector store configuration.
type ChromaConfig struct {
	// URL is the ChromaDB server base URL
	URL string `toml:"url"`
	// Tenant and Database locate the collection in the v2 API
	Tenant   string `toml:"tenant"`
	Database string `toml:"database"`
	// Collection is the textbook passage collection name
	Collection string `toml:"collection"`
	// TopK is how many passages to retrieve per question
	TopK int `toml:"top_k"`
}

// ClassifierConfig contains routing thresholds, hot-reloadable.
type ClassifierConfig struct {
	// HitDensityThreshold is the minimum hit density for the RAG route
	HitDensityThreshold float64 `toml:"hit_density_threshold"`
	// MinSources is the minimum distinct sources for the RAG route
	MinSources int `toml:"min_sources"`
	// DistanceThreshold is the distance below which a passage counts
	// as a hit
	DistanceThreshold float64 `toml:"distance_threshold"`
}

// SessionConfig contains session lifecycle configuration.
type SessionConfig struct {
	// TTLMinutes is the idle lifetime of a session (default: 60)
	TTLMinutes int `toml:"ttl_minutes"`
}

// TelemetryConfig contains decision log configuration.
type TelemetryConfig struct {
	// Enabled controls whether routing decisions are recorded
	Enabled bool `toml:"enabled"`
	// Path is the SQLite database path (empty = default
	// ~/.cj-assistant/decisions.db)
	Path string `toml:"path"`
}

// PromptsConfig contains prompt template configuration.
type PromptsConfig struct {
	// RAGTemplate is an optional template file replacing the built-in
	// textbook prompt. Uses {context} and {question} placeholders.
	RAGTemplate string `toml:"rag_template"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:            "http://127.0.0.1:11434",
			Model:          "qwen2.5:14b",
			EmbeddingModel: "nomic-embed-text",
		},
		Chroma: ChromaConfig{
			URL:        "http://127.0.0.1:8000",
			Tenant:     "default_tenant",
			Database:   "default_database",
			Collection: "classical_japanese",
			TopK:       5,
		},
		Classifier: ClassifierConfig{
			HitDensityThreshold: 0.40,
			MinSources:          2,
			DistanceThreshold:   0.40,
		},
		Session: SessionConfig{
			TTLMinutes: 60,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the assistant's configuration directory.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cj-assistant"), nil
}

// ConfigPath returns the default configuration file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultTelemetryPath returns the default decision log path.
func DefaultTelemetryPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return "decisions.db"
	}
	return filepath.Join(dir, "decisions.db")
}

// =============================================================================
// LOADING
// =============================================================================

// Load loads configuration from the default location, falling back to
// defaults when no config file exists.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file with env
// overrides and validation applied.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides. Env vars
// win over file values so containerized deployments can reconfigure
// without editing files.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.Ollama.URL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.Ollama.Model = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		c.Ollama.EmbeddingModel = model
	}
	if url := os.Getenv("CHROMA_URL"); url != "" {
		c.Chroma.URL = url
	}
	if coll := os.Getenv("CHROMA_COLLECTION"); coll != "" {
		c.Chroma.Collection = coll
	}
	if k := os.Getenv("RETRIEVAL_TOP_K"); k != "" {
		if n, err := strconv.Atoi(k); err == nil && n > 0 {
			c.Chroma.TopK = n
		}
	}
}

// Validate checks configuration invariants, clamping recoverable
// values and rejecting unusable ones.
func (c *Config) Validate() error {
	var errs []string

	if !strings.HasPrefix(c.Ollama.URL, "http://") && !strings.HasPrefix(c.Ollama.URL, "https://") {
		errs = append(errs, fmt.Sprintf("ollama.url must be an http(s) URL, got %q", c.Ollama.URL))
	}
	if !strings.HasPrefix(c.Chroma.URL, "http://") && !strings.HasPrefix(c.Chroma.URL, "https://") {
		errs = append(errs, fmt.Sprintf("chroma.url must be an http(s) URL, got %q", c.Chroma.URL))
	}
	if c.Ollama.Model == "" {
		errs = append(errs, "ollama.model must not be empty")
	}

	if c.Chroma.TopK <= 0 {
		c.Chroma.TopK = 5
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 60
	}
	if c.Classifier.HitDensityThreshold <= 0 || c.Classifier.HitDensityThreshold > 1 {
		c.Classifier.HitDensityThreshold = 0.40
	}
	if c.Classifier.DistanceThreshold <= 0 || c.Classifier.DistanceThreshold > 1 {
		c.Classifier.DistanceThreshold = 0.40
	}
	if c.Classifier.MinSources < 1 {
		c.Classifier.MinSources = 2
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// TelemetryPath returns the configured decision log path or the
// default.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return DefaultTelemetryPath()
}

// Save writes the configuration as TOML, creating the directory if
// needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
