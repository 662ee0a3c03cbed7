// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/capture"
	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/internal/transcribe"
)

// Module runs a capture session for the lifetime of the app.
var Module = fx.Module("app",
	fx.Invoke(registerLifecycleHooks),
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, Module)

	return &Application{
		app: fx.New(options...),
	}
}

// Err returns any error raised while building the dependency graph.
func (a *Application) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// LifecycleParams holds the dependencies of the capture session hooks.
type LifecycleParams struct {
	fx.In
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Cfg        *config.Config
	Logger     *zap.Logger
	Capture    *capture.Capture
	Sink       transcribe.Sink
}

// registerLifecycleHooks starts a capture session streaming into the sink
// when the app starts and ends it when the app stops.
//
// Start runs in the background because it waits on permission grants; a
// failed start shuts the app down with exit code 1.
func registerLifecycleHooks(params LifecycleParams) error {
	mode, err := capture.ParseSourceMode(params.Cfg.Capture.Source)
	if err != nil {
		return fmt.Errorf("capture.source: %w", err)
	}
	logger := params.Logger

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	params.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if mode.WantsDisplay() && !params.Capture.IsSupported() {
				logger.Warn("Display audio capture is not supported on this platform",
					zap.String("mode", string(mode)))
			}

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})

			go func() {
				defer close(done)

				err := params.Capture.Start(runCtx, mode, params.Sink.HandleChunk, params.Cfg.Capture.SampleRate)
				if err != nil {
					if runCtx.Err() != nil {
						return
					}
					logger.Error("Failed to start capture", zap.Error(err))
					if serr := params.Shutdowner.Shutdown(fx.ExitCode(1)); serr != nil {
						logger.Error("Failed to request shutdown", zap.Error(serr))
					}
					return
				}
				logger.Info("Application started successfully")
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping application: ending capture session")

			// Abandon a grant that is still pending, then wait for Start to
			// return so that Stop sees the session it may have created.
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				return fmt.Errorf("waiting for capture start: %w", ctx.Err())
			}
			params.Capture.Stop()

			logger.Info("Application stopped successfully")

			return nil
		},
	})

	return nil
}
