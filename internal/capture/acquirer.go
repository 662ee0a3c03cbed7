package capture

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/pkg/audio"
)

// SourceKind tells where an acquired source came from.
type SourceKind string

const (
	SourceKindDisplay    SourceKind = "display"
	SourceKindMicrophone SourceKind = "microphone"
)

// Source is one usable audio track and the stream that owns it.
type Source struct {
	Kind   SourceKind
	Stream platform.Stream
	Track  platform.Track
}

// Acquisition holds everything granted during one Acquire call. Streams
// lists every granted stream, including those that turned out to carry no
// audio, so that the owner can release all of them.
type Acquisition struct {
	Streams []platform.Stream
	Sources []Source
}

// Tracks returns the audio track of every usable source, in acquisition
// order (display first).
func (a *Acquisition) Tracks() []platform.Track {
	out := make([]platform.Track, 0, len(a.Sources))
	for _, s := range a.Sources {
		out = append(out, s.Track)
	}
	return out
}

// Acquirer requests the live sources a SourceMode needs.
type Acquirer struct {
	logger   *zap.Logger
	platform platform.Platform
	strict   bool
	deviceID string
}

func NewAcquirer(logger *zap.Logger, p platform.Platform, strict bool, deviceID string) *Acquirer {
	return &Acquirer{
		logger:   logger,
		platform: p,
		strict:   strict,
		deviceID: deviceID,
	}
}

// Acquire requests the display and/or microphone grants for mode, one after
// the other. The returned Acquisition is never nil: on error it still holds
// whatever was granted before the failure and the caller owns its release.
func (a *Acquirer) Acquire(ctx context.Context, mode SourceMode, sampleRate int) (*Acquisition, error) {
	acq := &Acquisition{}
	missing := false

	if mode.WantsDisplay() {
		src, stream, err := a.acquireDisplay(ctx, sampleRate)
		if stream != nil {
			acq.Streams = append(acq.Streams, stream)
		}
		if err != nil {
			return acq, err
		}
		if src != nil {
			acq.Sources = append(acq.Sources, *src)
		} else {
			missing = true
		}
	}

	if mode.WantsMicrophone() {
		src, stream, err := a.acquireMicrophone(ctx, sampleRate)
		if stream != nil {
			acq.Streams = append(acq.Streams, stream)
		}
		if err != nil {
			return acq, err
		}
		if src != nil {
			acq.Sources = append(acq.Sources, *src)
		} else {
			missing = true
		}
	}

	if len(acq.Sources) == 0 {
		return acq, ErrNoAudioSources
	}
	if missing && a.strict {
		return acq, fmt.Errorf("%s session: %w", mode, ErrMissingSource)
	}
	if missing {
		a.logger.Warn("Continuing with a subset of the requested sources",
			zap.String("mode", string(mode)),
			zap.Int("sources", len(acq.Sources)))
	}

	return acq, nil
}

func (a *Acquirer) acquireDisplay(ctx context.Context, sampleRate int) (*Source, platform.Stream, error) {
	if !a.platform.SupportsDisplayCapture() {
		return nil, nil, fmt.Errorf("display audio on %s: %w", a.platform.Name(), platform.ErrUnsupported)
	}

	// Video is requested only because the share prompt needs it.
	stream, err := a.platform.RequestDisplay(ctx, platform.DisplayConstraints{
		Video:      true,
		Audio:      true,
		SampleRate: sampleRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("request display audio: %w", err)
	}

	for _, t := range stream.VideoTracks() {
		t.Stop()
		stream.RemoveTrack(t)
	}

	tracks := stream.AudioTracks()
	if len(tracks) == 0 {
		a.logger.Warn("Display share has no audio track",
			zap.String("stream_id", stream.ID()))
		return nil, stream, nil
	}

	a.logger.Debug("Display audio granted",
		zap.String("stream_id", stream.ID()),
		zap.String("track", tracks[0].Label()),
		zap.Int("channels", tracks[0].Channels()))

	return &Source{Kind: SourceKindDisplay, Stream: stream, Track: tracks[0]}, stream, nil
}

func (a *Acquirer) acquireMicrophone(ctx context.Context, sampleRate int) (*Source, platform.Stream, error) {
	stream, err := a.platform.RequestMicrophone(ctx, platform.MicrophoneConstraints{
		DeviceID:         a.deviceID,
		ChannelCount:     audio.Channels,
		SampleRate:       sampleRate,
		EchoCancellation: true,
		NoiseSuppression: false,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("request microphone: %w", err)
	}

	tracks := stream.AudioTracks()
	if len(tracks) == 0 {
		a.logger.Warn("Microphone grant has no audio track",
			zap.String("stream_id", stream.ID()))
		return nil, stream, nil
	}

	a.logger.Debug("Microphone granted",
		zap.String("stream_id", stream.ID()),
		zap.String("track", tracks[0].Label()),
		zap.Int("sample_rate", sampleRate))

	return &Source{Kind: SourceKindMicrophone, Stream: stream, Track: tracks[0]}, stream, nil
}
