//go:build linux

// Package pulse captures the microphone and the default sink's monitor
// (system audio) through a PulseAudio or PipeWire-pulse server.
package pulse

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
)

const recordLatency = 0.05 // seconds

// Platform is a platform.Platform backed by one pulse client.
type Platform struct {
	logger *zap.Logger
	client *pulse.Client
	seq    atomic.Uint64
}

// New connects to the pulse server.
func New(logger *zap.Logger, appName string) (*Platform, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName(appName))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &Platform{logger: logger, client: c}, nil
}

func (p *Platform) Name() string { return "pulse" }

// SupportsDisplayCapture reports whether a default sink exists whose monitor
// can be recorded.
func (p *Platform) SupportsDisplayCapture() bool {
	sink, err := p.client.DefaultSink()
	return err == nil && sink != nil
}

// RequestDisplay records the default sink's monitor. Pulse has no video, so
// the stream never contains a video track.
func (p *Platform) RequestDisplay(ctx context.Context, c platform.DisplayConstraints) (platform.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio {
		return platform.NewMediaStream(p.nextID("display")), nil
	}

	sink, err := p.client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("pulse default sink: %w", platform.ErrUnsupported)
	}

	opts := []pulse.RecordOption{pulse.RecordMonitor(sink), pulse.RecordStereo}
	if c.SampleRate > 0 {
		opts = append(opts, pulse.RecordSampleRate(c.SampleRate))
	}

	track, err := p.record("monitor of "+sink.Name(), 2, opts...)
	if err != nil {
		return nil, err
	}
	return platform.NewMediaStream(p.nextID("display"), track), nil
}

// RequestMicrophone records a mono source, the configured device or the
// server default. Pulse does not expose echo cancellation per stream, so the
// processing flags are only logged.
func (p *Platform) RequestMicrophone(ctx context.Context, c platform.MicrophoneConstraints) (platform.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []pulse.RecordOption{pulse.RecordMono}
	if c.SampleRate > 0 {
		opts = append(opts, pulse.RecordSampleRate(c.SampleRate))
	}

	label := "default source"
	if c.DeviceID != "" {
		source, err := p.client.SourceByID(c.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("pulse source %q: %w", c.DeviceID, err)
		}
		opts = append(opts, pulse.RecordSource(source))
		label = source.Name()
	}

	p.logger.Debug("Opening pulse microphone",
		zap.String("source", label),
		zap.Int("sample_rate", c.SampleRate),
		zap.Bool("echo_cancellation", c.EchoCancellation),
		zap.Bool("noise_suppression", c.NoiseSuppression))

	track, err := p.record(label, 1, opts...)
	if err != nil {
		return nil, err
	}
	return platform.NewMediaStream(p.nextID("microphone"), track), nil
}

// Close disconnects from the server.
func (p *Platform) Close() error {
	p.client.Close()
	return nil
}

func (p *Platform) record(label string, channels int, opts ...pulse.RecordOption) (platform.Track, error) {
	var track *platform.LiveTrack

	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		if len(buf) > 0 && track != nil {
			samples := make([]float32, len(buf))
			copy(samples, buf)
			track.Emit(samples)
		}
		return len(buf), nil
	})

	opts = append(opts, pulse.RecordLatency(recordLatency))
	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse record %s: %w", label, err)
	}

	track = platform.NewLiveTrack(p.nextID("track"), platform.KindAudio, label, channels, func() {
		stream.Stop()
		stream.Close()
	})
	stream.Start()

	return track, nil
}

func (p *Platform) nextID(prefix string) string {
	return fmt.Sprintf("pulse-%s-%d", prefix, p.seq.Add(1))
}
