package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/voicecontrol.json"

const (
	BackendFake      = "fake"
	BackendDashScope = "dashscope"
	BackendAzure     = "azure"
)

type AppConfig struct {
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	DashScope DashScopeConfig `json:"dashscope" yaml:"dashscope"`
	Azure     AzureConfig     `json:"azure" yaml:"azure"`
	Audio     AudioConfig     `json:"audio" yaml:"audio"`
	Host      HostConfig      `json:"host" yaml:"host"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Fake      FakeConfig      `json:"fake" yaml:"fake"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type EngineConfig struct {
	Backend string `json:"backend" yaml:"backend"`
}

type DashScopeConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	Model      string `json:"model" yaml:"model"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
}

type AzureConfig struct {
	SubscriptionKey string `json:"subscription_key" yaml:"subscription_key"`
	Region          string `json:"region" yaml:"region"`
	Language        string `json:"language" yaml:"language"`
}

type AudioConfig struct {
	SampleRate  int    `json:"sample_rate" yaml:"sample_rate"`
	Channels    int    `json:"channels" yaml:"channels"`
	BufferSize  int    `json:"buffer_size" yaml:"buffer_size"`
	InputDevice string `json:"input_device" yaml:"input_device"`
	HighLatency bool   `json:"high_latency" yaml:"high_latency"`
}

type HostConfig struct {
	TickMs int    `json:"tick_ms" yaml:"tick_ms"`
	Skin   string `json:"skin" yaml:"skin"`
}

type SessionConfig struct {
	Capacity  int `json:"capacity" yaml:"capacity"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

type FakeConfig struct {
	Script     []string `json:"script" yaml:"script"`
	IntervalMs int      `json:"interval_ms" yaml:"interval_ms"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Engine: EngineConfig{
			Backend: BackendFake,
		},
		DashScope: DashScopeConfig{
			Model:      "fun-asr-realtime",
			SampleRate: 16000,
		},
		Azure: AzureConfig{
			Language: "en-US",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BufferSize: 3200,
		},
		Host: HostConfig{
			TickMs: 1000,
			Skin:   "config/skin.yaml",
		},
		Session: SessionConfig{
			Capacity:  8,
			QueueSize: 256,
		},
		Fake: FakeConfig{
			Script: []string{
				"sound_start",
				"recognized: turn on lights",
				"sound_end",
			},
			IntervalMs: 700,
		},
	}
}

// Load reads path (JSON, or YAML for .yaml/.yml) over the defaults, then applies the environment.
// A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := Decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// Decode unmarshals data into out, picking the codec from the file extension.
func Decode(path string, data []byte, out any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, out)
	default:
		return json.Unmarshal(data, out)
	}
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if backend := strings.TrimSpace(os.Getenv("VOICECONTROL_ENGINE")); backend != "" {
		c.Engine.Backend = backend
	}

	if dash := strings.TrimSpace(os.Getenv("DASHSCOPE_API_KEY")); dash != "" {
		c.DashScope.APIKey = dash
	}

	if key := strings.TrimSpace(os.Getenv("AZURE_SPEECH_KEY")); key != "" {
		c.Azure.SubscriptionKey = key
	}
	if region := strings.TrimSpace(os.Getenv("AZURE_SPEECH_REGION")); region != "" {
		c.Azure.Region = region
	}
}

func (c *AppConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Backend)) {
	case BackendFake, BackendDashScope, BackendAzure:
	default:
		return fmt.Errorf("invalid engine.backend: %s", c.Engine.Backend)
	}

	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if c.Audio.BufferSize < 0 {
		return errors.New("audio.buffer_size must be non-negative")
	}
	if c.Host.TickMs <= 0 {
		return errors.New("host.tick_ms must be positive")
	}
	if c.Session.Capacity < 0 {
		return errors.New("session.capacity must be non-negative")
	}
	if c.Session.QueueSize < 0 {
		return errors.New("session.queue_size must be non-negative")
	}
	if c.Fake.IntervalMs < 0 {
		return errors.New("fake.interval_ms must be non-negative")
	}

	return nil
}

// ValidateBackend checks the credentials the selected backend needs.
func (c *AppConfig) ValidateBackend() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Backend)) {
	case BackendDashScope:
		if strings.TrimSpace(c.DashScope.APIKey) == "" {
			return errors.New("dashscope api_key is required")
		}
	case BackendAzure:
		if strings.TrimSpace(c.Azure.SubscriptionKey) == "" {
			return errors.New("azure subscription_key is required")
		}
		if strings.TrimSpace(c.Azure.Region) == "" {
			return errors.New("azure region is required")
		}
	}
	return nil
}
