// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Ollama.URL != "http://127.0.0.1:11434" {
		t.Errorf("Ollama.URL = %q", cfg.Ollama.URL)
	}
	if cfg.Ollama.Model == "" || cfg.Ollama.EmbeddingModel == "" {
		t.Error("default models must be set")
	}
	if cfg.Chroma.TopK != 5 {
		t.Errorf("Chroma.TopK = %d", cfg.Chroma.TopK)
	}
	if cfg.Classifier.HitDensityThreshold != 0.40 || cfg.Classifier.MinSources != 2 || cfg.Classifier.DistanceThreshold != 0.40 {
		t.Errorf("classifier defaults = %+v", cfg.Classifier)
	}
	if cfg.Session.TTLMinutes != 60 {
		t.Errorf("Session.TTLMinutes = %d", cfg.Session.TTLMinutes)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("telemetry should default on")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[ollama]
url = "http://127.0.0.1:11434"
model = "deepseek-r1:14b"
reasoning_models = ["tutor-ft"]

[chroma]
collection = "bungo_textbook"
top_k = 8

[classifier]
hit_density_threshold = 0.5
min_sources = 3

[session]
ttl_minutes = 15

[telemetry]
enabled = false
path = "/tmp/decisions.db"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Ollama.Model != "deepseek-r1:14b" {
		t.Errorf("Ollama.Model = %q", cfg.Ollama.Model)
	}
	if len(cfg.Ollama.ReasoningModels) != 1 || cfg.Ollama.ReasoningModels[0] != "tutor-ft" {
		t.Errorf("ReasoningModels = %v", cfg.Ollama.ReasoningModels)
	}
	if cfg.Chroma.Collection != "bungo_textbook" || cfg.Chroma.TopK != 8 {
		t.Errorf("chroma = %+v", cfg.Chroma)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Chroma.Tenant != "default_tenant" {
		t.Errorf("Chroma.Tenant = %q", cfg.Chroma.Tenant)
	}
	if cfg.Classifier.HitDensityThreshold != 0.5 || cfg.Classifier.MinSources != 3 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Classifier.DistanceThreshold != 0.40 {
		t.Errorf("DistanceThreshold = %v, want default kept", cfg.Classifier.DistanceThreshold)
	}
	if cfg.Session.TTLMinutes != 15 {
		t.Errorf("TTLMinutes = %d", cfg.Session.TTLMinutes)
	}
	if cfg.Telemetry.Enabled || cfg.TelemetryPath() != "/tmp/decisions.db" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama.internal:11434")
	t.Setenv("OLLAMA_MODEL", "qwq:32b")
	t.Setenv("EMBEDDING_MODEL", "mxbai-embed-large")
	t.Setenv("CHROMA_URL", "http://chroma.internal:8000")
	t.Setenv("CHROMA_COLLECTION", "override_collection")
	t.Setenv("RETRIEVAL_TOP_K", "12")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Ollama.URL != "http://ollama.internal:11434" {
		t.Errorf("Ollama.URL = %q", cfg.Ollama.URL)
	}
	if cfg.Ollama.Model != "qwq:32b" {
		t.Errorf("Ollama.Model = %q", cfg.Ollama.Model)
	}
	if cfg.Ollama.EmbeddingModel != "mxbai-embed-large" {
		t.Errorf("EmbeddingModel = %q", cfg.Ollama.EmbeddingModel)
	}
	if cfg.Chroma.URL != "http://chroma.internal:8000" || cfg.Chroma.Collection != "override_collection" {
		t.Errorf("chroma = %+v", cfg.Chroma)
	}
	if cfg.Chroma.TopK != 12 {
		t.Errorf("TopK = %d", cfg.Chroma.TopK)
	}
}

func TestEnvOverrideInvalidTopKIgnored(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Chroma.TopK != 5 {
		t.Errorf("TopK = %d, want default kept", cfg.Chroma.TopK)
	}
}

func TestValidateClampsRecoverableValues(t *testing.T) {
	cfg := Default()
	cfg.Chroma.TopK = -1
	cfg.Session.TTLMinutes = 0
	cfg.Classifier.HitDensityThreshold = 1.5
	cfg.Classifier.DistanceThreshold = -0.2
	cfg.Classifier.MinSources = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Chroma.TopK != 5 {
		t.Errorf("TopK = %d", cfg.Chroma.TopK)
	}
	if cfg.Session.TTLMinutes != 60 {
		t.Errorf("TTLMinutes = %d", cfg.Session.TTLMinutes)
	}
	if cfg.Classifier.HitDensityThreshold != 0.40 || cfg.Classifier.DistanceThreshold != 0.40 || cfg.Classifier.MinSources != 2 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
}

func TestValidateRejectsUnusableValues(t *testing.T) {
	cfg := Default()
	cfg.Ollama.URL = "not-a-url"
	if err := cfg.Validate(); err == nil {
		t.Error("non-http ollama URL should fail validation")
	}

	cfg = Default()
	cfg.Chroma.URL = "ftp://somewhere"
	if err := cfg.Validate(); err == nil {
		t.Error("non-http chroma URL should fail validation")
	}

	cfg = Default()
	cfg.Ollama.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty model should fail validation")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")

	cfg := Default()
	cfg.Ollama.Model = "deepseek-r1:14b"
	cfg.Chroma.TopK = 7
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Ollama.Model != "deepseek-r1:14b" || loaded.Chroma.TopK != 7 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
