// Package miniaudio captures the microphone and, where the host supports it,
// loopback system audio through miniaudio (malgo).
package miniaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
)

const (
	loopbackChannels = 2
	fallbackRate     = 48000
)

// Platform is a platform.Platform backed by one miniaudio context.
type Platform struct {
	logger *zap.Logger
	ctx    *malgo.AllocatedContext
	seq    atomic.Uint64
}

// New initialises the miniaudio context.
func New(logger *zap.Logger) (*Platform, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: %w", err)
	}
	return &Platform{logger: logger, ctx: ctx}, nil
}

func (p *Platform) Name() string { return "miniaudio" }

// SupportsDisplayCapture is true only where miniaudio implements loopback
// devices (WASAPI).
func (p *Platform) SupportsDisplayCapture() bool {
	return runtime.GOOS == "windows"
}

// RequestDisplay opens a loopback device on the default output. There is no
// video, so the stream never contains a video track.
func (p *Platform) RequestDisplay(ctx context.Context, c platform.DisplayConstraints) (platform.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.SupportsDisplayCapture() {
		return nil, fmt.Errorf("loopback on %s: %w", runtime.GOOS, platform.ErrUnsupported)
	}
	if !c.Audio {
		return platform.NewMediaStream(p.nextID("display")), nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Loopback)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = loopbackChannels
	cfg.SampleRate = uint32(c.SampleRate)
	if c.SampleRate <= 0 {
		cfg.SampleRate = fallbackRate
	}

	track, err := p.open(cfg, "loopback", loopbackChannels)
	if err != nil {
		return nil, err
	}
	return platform.NewMediaStream(p.nextID("display"), track), nil
}

// RequestMicrophone opens a capture device. miniaudio has no echo
// cancellation, so the processing flags are only logged.
func (p *Platform) RequestMicrophone(ctx context.Context, c platform.MicrophoneConstraints) (platform.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	channels := c.ChannelCount
	if channels <= 0 {
		channels = 1
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(c.SampleRate)
	if c.SampleRate <= 0 {
		cfg.SampleRate = fallbackRate
	}

	label := "default capture device"
	if c.DeviceID != "" {
		devID, name, err := p.findDevice(c.DeviceID)
		if err != nil {
			return nil, err
		}
		cfg.Capture.DeviceID = devID.Pointer()
		label = name
	}

	p.logger.Debug("Opening miniaudio microphone",
		zap.String("device", label),
		zap.Uint32("sample_rate", cfg.SampleRate),
		zap.Bool("echo_cancellation", c.EchoCancellation),
		zap.Bool("noise_suppression", c.NoiseSuppression))

	track, err := p.open(cfg, label, channels)
	if err != nil {
		return nil, err
	}
	return platform.NewMediaStream(p.nextID("microphone"), track), nil
}

// Close releases the miniaudio context.
func (p *Platform) Close() error {
	if err := p.ctx.Uninit(); err != nil {
		return fmt.Errorf("malgo uninit: %w", err)
	}
	p.ctx.Free()
	return nil
}

func (p *Platform) open(cfg malgo.DeviceConfig, label string, channels int) (platform.Track, error) {
	var track atomic.Pointer[platform.LiveTrack]

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			t := track.Load()
			if t == nil || len(input) == 0 {
				return
			}
			t.Emit(bytesToFloat32(input))
		},
	}

	dev, err := malgo.InitDevice(p.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", label, err)
	}

	t := platform.NewLiveTrack(p.nextID("track"), platform.KindAudio, label, channels, func() {
		if err := dev.Stop(); err != nil {
			p.logger.Warn("Stopping miniaudio device failed",
				zap.String("device", label),
				zap.Error(err))
		}
		dev.Uninit()
	})
	track.Store(t)

	if err := dev.Start(); err != nil {
		t.Stop()
		return nil, fmt.Errorf("start %s: %w", label, err)
	}

	return t, nil
}

// findDevice matches a capture device by its display name.
func (p *Platform) findDevice(id string) (malgo.DeviceID, string, error) {
	devices, err := p.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, "", fmt.Errorf("malgo devices: %w", err)
	}
	for _, d := range devices {
		if d.Name() == id {
			return d.ID, d.Name(), nil
		}
	}
	return malgo.DeviceID{}, "", fmt.Errorf("capture device %q not found", id)
}

func (p *Platform) nextID(prefix string) string {
	return fmt.Sprintf("miniaudio-%s-%d", prefix, p.seq.Add(1))
}

// bytesToFloat32 decodes little-endian f32 samples.
func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
