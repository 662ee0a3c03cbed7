// Package backends selects and opens the host audio platform.
package backends

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/internal/platform/fake"
	"github.com/Raikerian/go-livecapture/internal/platform/miniaudio"
)

// Module provides the platform.Platform named by platform.backend.
var Module = fx.Module("platform",
	fx.Provide(New),
)

// Params holds dependencies for New.
type Params struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	LC     fx.Lifecycle
}

type closer interface {
	Close() error
}

// New opens the configured backend and closes it when the app stops.
func New(params Params) (platform.Platform, error) {
	name := Resolve(params.Cfg.Platform.Backend)

	p, err := open(name, params.Cfg.Platform.ApplicationName, params.Logger)
	if err != nil {
		return nil, fmt.Errorf("open %s platform: %w", name, err)
	}

	if c, ok := p.(closer); ok {
		params.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return c.Close()
			},
		})
	}

	params.Logger.Info("Audio platform ready",
		zap.String("backend", p.Name()),
		zap.Bool("display_capture", p.SupportsDisplayCapture()))

	return p, nil
}

// Resolve maps "auto" (or an empty name) to the host's default backend.
func Resolve(name string) string {
	if name == "" || name == "auto" {
		return autoBackend
	}
	return name
}

func open(name, appName string, logger *zap.Logger) (platform.Platform, error) {
	switch name {
	case "fake":
		return fake.New(), nil
	case "miniaudio":
		p, err := miniaudio.New(logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "pulse":
		return openPulse(logger, appName)
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
