package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Raikerian/go-livecapture/pkg/audio"
)

// Defaults applied by LoadConfig for keys left empty.
const (
	DefaultSource              = "microphone"
	DefaultSampleRate          = audio.DefaultSampleRate
	DefaultBackend             = "auto"
	DefaultApplicationName     = "livecapture"
	DefaultQueueSize           = 64
	DefaultTranscriptCacheSize = 256
	DefaultStallTimeout        = 5 * time.Second
	DefaultLogLevel            = "info"
)

// APIKeyEnv is consulted when realtime.api_key is empty.
const APIKeyEnv = "OPENAI_API_KEY"

// CaptureConfig stores the capture session settings.
type CaptureConfig struct {
	Source        string `yaml:"source"`
	SampleRate    int    `yaml:"sample_rate"`
	StrictSources bool   `yaml:"strict_sources"`
	Device        string `yaml:"device"`
}

// PlatformConfig selects the host audio backend.
type PlatformConfig struct {
	Backend         string `yaml:"backend"` // auto, pulse, miniaudio, fake
	ApplicationName string `yaml:"application_name"`
}

// RealtimeConfig stores OpenAI Realtime streaming settings.
type RealtimeConfig struct {
	Enabled             bool          `yaml:"enabled"`
	APIKey              string        `yaml:"api_key"`
	QueueSize           int           `yaml:"queue_size"`
	TranscriptCacheSize int           `yaml:"transcript_cache_size"`
	StallTimeout        time.Duration `yaml:"stall_timeout"`
}

// Config stores the application configuration.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Platform PlatformConfig `yaml:"platform"`
	Realtime RealtimeConfig `yaml:"realtime"`
	LogLevel string         `yaml:"log_level"`
}

// Source tells NewConfig where the configuration comes from.
type Source struct {
	// Path of the YAML file. A missing file is not an error when
	// AllowMissing is set; defaults are used instead.
	Path         string
	AllowMissing bool
	// Override, when set, runs after the file is read and before defaults
	// and validation, e.g. to apply command-line flags.
	Override func(*Config)
}

// NewConfig loads, overrides, defaults and validates the configuration.
func NewConfig(src Source) (*Config, error) {
	cfg, err := LoadConfig(src.Path)
	if err != nil {
		if !src.AllowMissing || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
	}

	if src.Override != nil {
		src.Override(cfg)
	}
	if cfg.Realtime.APIKey == "" {
		cfg.Realtime.APIKey = os.Getenv(APIKeyEnv)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig loads the configuration from the given file path without
// applying defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filePath, err)
	}

	return &cfg, nil
}

// ApplyDefaults fills empty keys. The capture sample rate defaults to 24 kHz
// when realtime streaming is enabled, since that is what the API consumes.
func (c *Config) ApplyDefaults() {
	c.Capture.Source = NormalizeSource(c.Capture.Source)
	if c.Capture.Source == "" {
		c.Capture.Source = DefaultSource
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = DefaultSampleRate
		if c.Realtime.Enabled {
			c.Capture.SampleRate = audio.RealtimeSampleRate
		}
	}
	if c.Platform.Backend == "" {
		c.Platform.Backend = DefaultBackend
	}
	if c.Platform.ApplicationName == "" {
		c.Platform.ApplicationName = DefaultApplicationName
	}
	if c.Realtime.QueueSize == 0 {
		c.Realtime.QueueSize = DefaultQueueSize
	}
	if c.Realtime.TranscriptCacheSize == 0 {
		c.Realtime.TranscriptCacheSize = DefaultTranscriptCacheSize
	}
	if c.Realtime.StallTimeout == 0 {
		c.Realtime.StallTimeout = DefaultStallTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// NormalizeSource is the canonical spelling of a capture source name:
// trimmed and lower-cased.
func NormalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch NormalizeSource(c.Capture.Source) {
	case "microphone", "system", "both":
	default:
		errs = append(errs, fmt.Errorf("capture.source: unknown mode %q", c.Capture.Source))
	}
	if c.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate: must be positive, got %d", c.Capture.SampleRate))
	}

	switch c.Platform.Backend {
	case "auto", "pulse", "miniaudio", "fake":
	default:
		errs = append(errs, fmt.Errorf("platform.backend: unknown backend %q", c.Platform.Backend))
	}

	if c.Realtime.Enabled {
		if c.Realtime.APIKey == "" {
			errs = append(errs, errors.New("realtime.api_key: required when realtime is enabled"))
		}
		if c.Capture.SampleRate != audio.RealtimeSampleRate {
			errs = append(errs, fmt.Errorf("capture.sample_rate: realtime streaming needs %d Hz, got %d",
				audio.RealtimeSampleRate, c.Capture.SampleRate))
		}
	}
	if c.Realtime.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("realtime.queue_size: must be positive, got %d", c.Realtime.QueueSize))
	}
	if c.Realtime.TranscriptCacheSize < 0 {
		errs = append(errs, fmt.Errorf("realtime.transcript_cache_size: must be positive, got %d", c.Realtime.TranscriptCacheSize))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}
