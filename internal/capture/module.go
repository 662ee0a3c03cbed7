package capture

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/internal/platform"
)

// Module provides the process-wide *Capture.
var Module = fx.Module("capture",
	fx.Provide(NewFromConfig),
)

// Params holds dependencies for NewFromConfig.
type Params struct {
	fx.In
	Logger   *zap.Logger
	Cfg      *config.Config
	Platform platform.Platform
	LC       fx.Lifecycle
}

// NewFromConfig creates a Capture and makes sure any session still running
// when the app stops is released.
func NewFromConfig(params Params) *Capture {
	c := New(params.Logger.Named("capture"), params.Platform, Options{
		StrictSources: params.Cfg.Capture.StrictSources,
		DeviceID:      params.Cfg.Capture.Device,
	})

	params.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Stop()
			return nil
		},
	})

	return c
}
