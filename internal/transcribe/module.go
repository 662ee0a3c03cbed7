package transcribe

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/config"
)

// Module provides the Sink capture chunks are delivered to.
var Module = fx.Module("transcribe",
	fx.Provide(
		NewTranscriptStoreProvider,
		NewSink,
	),
)

// NewTranscriptStoreProvider creates a TranscriptStore with config-derived size.
func NewTranscriptStoreProvider(cfg *config.Config, logger *zap.Logger) (*TranscriptStore, error) {
	size := cfg.Realtime.TranscriptCacheSize
	if size <= 0 {
		logger.Warn("TranscriptCacheSize is not configured or is invalid, defaulting",
			zap.Int("configuredSize", size),
			zap.Int("default", config.DefaultTranscriptCacheSize))
		size = config.DefaultTranscriptCacheSize
	}

	return NewTranscriptStore(size)
}

// SinkParams holds the dependencies for NewSink.
type SinkParams struct {
	fx.In
	Cfg         *config.Config
	Logger      *zap.Logger
	Transcripts *TranscriptStore
	LC          fx.Lifecycle
	Shutdowner  fx.Shutdowner
}

// NewSink returns the realtime Streamer when realtime streaming is enabled and
// a stdout WriterSink otherwise. The streamer connects on app start; the
// writer shuts the app down when stdout goes away.
func NewSink(params SinkParams) Sink {
	if !params.Cfg.Realtime.Enabled {
		params.Logger.Info("Realtime streaming disabled, writing chunks to stdout")
		return NewWriterSink(params.Logger, os.Stdout, func(error) {
			// Capturing with nowhere to write is pointless.
			if err := params.Shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
				params.Logger.Error("Failed to request shutdown", zap.Error(err))
			}
		})
	}

	s := NewStreamer(params.Logger.Named("realtime"), params.Cfg.Realtime, params.Transcripts)
	params.LC.Append(fx.Hook{
		OnStart: s.Open,
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})

	return s
}
