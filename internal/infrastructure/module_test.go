package infrastructure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/internal/infrastructure"
)

func TestLoggerModule(t *testing.T) {
	tests := map[string]struct {
		level   string
		enabled zapcore.Level
	}{
		"debug": {level: "debug", enabled: zapcore.DebugLevel},
		"info":  {level: "info", enabled: zapcore.InfoLevel},
		"warn":  {level: "warn", enabled: zapcore.WarnLevel},
		"error": {level: "error", enabled: zapcore.ErrorLevel},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var logger *zap.Logger
			app := fxtest.New(t,
				fx.Supply(&config.Config{LogLevel: tt.level}),
				infrastructure.LoggerModule,
				fx.Populate(&logger),
			)
			app.RequireStart()

			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))

			app.RequireStop()
		})
	}
}

func TestNewZapLogger_RejectsUnknownLevel(t *testing.T) {
	app := fx.New(
		fx.NopLogger,
		fx.Supply(&config.Config{LogLevel: "verbose"}),
		infrastructure.LoggerModule,
		fx.Invoke(func(*zap.Logger) {}),
	)

	assert.ErrorContains(t, app.Err(), "log level")
}
