package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/pkg/audio"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
capture:
  source: both
  strict_sources: true
  device: hw:1
platform:
  backend: pulse
realtime:
  enabled: true
  api_key: sk-test
  stall_timeout: 2s
log_level: debug
`)

	cfg, err := config.NewConfig(config.Source{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "both", cfg.Capture.Source)
	assert.True(t, cfg.Capture.StrictSources)
	assert.Equal(t, "hw:1", cfg.Capture.Device)
	assert.Equal(t, audio.RealtimeSampleRate, cfg.Capture.SampleRate, "realtime selects 24 kHz")
	assert.Equal(t, "pulse", cfg.Platform.Backend)
	assert.Equal(t, config.DefaultApplicationName, cfg.Platform.ApplicationName)
	assert.Equal(t, 2*time.Second, cfg.Realtime.StallTimeout)
	assert.Equal(t, config.DefaultQueueSize, cfg.Realtime.QueueSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfig_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := config.NewConfig(config.Source{Path: missing})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := config.NewConfig(config.Source{Path: missing, AllowMissing: true})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSource, cfg.Capture.Source)
	assert.Equal(t, config.DefaultSampleRate, cfg.Capture.SampleRate)
	assert.Equal(t, config.DefaultBackend, cfg.Platform.Backend)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestNewConfig_OverrideRunsBeforeValidation(t *testing.T) {
	path := writeConfig(t, "capture:\n  source: microphone\n")

	cfg, err := config.NewConfig(config.Source{
		Path: path,
		Override: func(c *config.Config) {
			c.Capture.Source = "system"
			c.Capture.SampleRate = 48000
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "system", cfg.Capture.Source)
	assert.Equal(t, 48000, cfg.Capture.SampleRate)

	_, err = config.NewConfig(config.Source{
		Path:     path,
		Override: func(c *config.Config) { c.Capture.Source = "speakers" },
	})
	assert.ErrorContains(t, err, "capture.source")
}

func TestNewConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "capture: [unterminated")

	_, err := config.NewConfig(config.Source{Path: path})
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*config.Config)
		wantErr string
	}{
		"defaults_are_valid": {
			mutate: func(*config.Config) {},
		},
		"padded_source": {
			mutate: func(c *config.Config) { c.Capture.Source = " Both " },
		},
		"unknown_source": {
			mutate:  func(c *config.Config) { c.Capture.Source = "tab" },
			wantErr: "capture.source",
		},
		"unknown_backend": {
			mutate:  func(c *config.Config) { c.Platform.Backend = "alsa" },
			wantErr: "platform.backend",
		},
		"realtime_without_key": {
			mutate: func(c *config.Config) {
				c.Realtime.Enabled = true
				c.Capture.SampleRate = audio.RealtimeSampleRate
			},
			wantErr: "realtime.api_key",
		},
		"realtime_wrong_rate": {
			mutate: func(c *config.Config) {
				c.Realtime.Enabled = true
				c.Realtime.APIKey = "sk"
				c.Capture.SampleRate = 16000
			},
			wantErr: "realtime streaming needs 24000 Hz",
		},
		"negative_queue": {
			mutate:  func(c *config.Config) { c.Realtime.QueueSize = -1 },
			wantErr: "realtime.queue_size",
		},
		"unknown_log_level": {
			mutate:  func(c *config.Config) { c.LogLevel = "trace" },
			wantErr: "log_level",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestModule(t *testing.T) {
	var cfg *config.Config

	app := fxtest.New(t,
		fx.Supply(config.Source{AllowMissing: true, Path: filepath.Join(t.TempDir(), "config.yaml")}),
		config.Module,
		fx.Populate(&cfg),
	)
	app.RequireStart()
	app.RequireStop()

	require.NotNil(t, cfg)
	assert.Equal(t, config.DefaultSource, cfg.Capture.Source)
}

func TestNewConfig_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "sk-env")
	path := writeConfig(t, "realtime:\n  enabled: true\n")

	cfg, err := config.NewConfig(config.Source{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Realtime.APIKey)
	assert.Equal(t, audio.RealtimeSampleRate, cfg.Capture.SampleRate)
}

func TestNewConfig_NormalizesSource(t *testing.T) {
	path := writeConfig(t, "capture:\n  source: \" System \"\n")

	cfg, err := config.NewConfig(config.Source{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "system", cfg.Capture.Source)
}
