package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MergesDefaultsAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "voicecontrol.json")
	data := `{
		"logging": {"level": "debug"},
		"engine": {"backend": "dashscope"},
		"audio": {"sample_rate": 8000}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DASHSCOPE_API_KEY", "dash-key")
	t.Setenv("AZURE_SPEECH_KEY", "azure-key")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to override config, got %q", cfg.Logging.Level)
	}
	if cfg.Audio.SampleRate != 8000 {
		t.Fatalf("expected sample rate to be 8000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("expected default channels to be preserved")
	}
	if cfg.Engine.Backend != BackendDashScope {
		t.Fatalf("expected backend from file, got %q", cfg.Engine.Backend)
	}
	if cfg.DashScope.APIKey != "dash-key" {
		t.Fatalf("expected dashscope api key from env")
	}
	if cfg.Azure.SubscriptionKey != "azure-key" || cfg.Azure.Region != "westeurope" {
		t.Fatalf("expected azure credentials from env")
	}
	if err := cfg.ValidateBackend(); err != nil {
		t.Fatalf("ValidateBackend() error = %v", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicecontrol.yaml")
	data := `
engine:
  backend: azure
azure:
  region: eastus
host:
  tick_ms: 250
session:
  capacity: 4
fake:
  script:
    - sound_start
    - "recognized: hello"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Backend != BackendAzure || cfg.Azure.Region != "eastus" {
		t.Fatalf("unexpected engine config: %+v %+v", cfg.Engine, cfg.Azure)
	}
	if cfg.Azure.Language != "en-US" {
		t.Fatalf("expected default language to be preserved, got %q", cfg.Azure.Language)
	}
	if cfg.Host.TickMs != 250 || cfg.Session.Capacity != 4 {
		t.Fatalf("unexpected host/session config: %+v %+v", cfg.Host, cfg.Session)
	}
	if len(cfg.Fake.Script) != 2 || cfg.Fake.Script[1] != "recognized: hello" {
		t.Fatalf("unexpected fake script: %v", cfg.Fake.Script)
	}
	if err := cfg.ValidateBackend(); err == nil {
		t.Fatal("expected missing azure key to fail")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Backend != BackendFake {
		t.Fatalf("expected fake backend by default, got %q", cfg.Engine.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"backend", func(c *AppConfig) { c.Engine.Backend = "sapi" }},
		{"sample rate", func(c *AppConfig) { c.Audio.SampleRate = 0 }},
		{"channels", func(c *AppConfig) { c.Audio.Channels = 0 }},
		{"tick", func(c *AppConfig) { c.Host.TickMs = 0 }},
		{"capacity", func(c *AppConfig) { c.Session.Capacity = -1 }},
		{"queue", func(c *AppConfig) { c.Session.QueueSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidateBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Backend = BackendDashScope
	if err := cfg.ValidateBackend(); err == nil {
		t.Fatalf("expected error when key is missing")
	}

	cfg.DashScope.APIKey = "asr"
	if err := cfg.ValidateBackend(); err != nil {
		t.Fatalf("unexpected key validation error: %v", err)
	}
}
