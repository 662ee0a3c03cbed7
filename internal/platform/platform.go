// Package platform describes the host capabilities the capture core consumes:
// display-share audio, microphone audio and the live tracks they produce.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned (wrapped) when the user or the host
	// refuses a grant.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupported is returned (wrapped) when the backend cannot provide the
	// requested kind of source at all.
	ErrUnsupported = errors.New("not supported by platform")
)

// Kind is the media kind of a track.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// SampleFunc receives interleaved float32 samples from a live audio track.
// It runs on the backend's audio goroutine and must return quickly.
type SampleFunc func(samples []float32)

// Track is one live media track inside a Stream.
type Track interface {
	ID() string
	Kind() Kind
	Label() string
	// Channels is the number of interleaved channels delivered to the
	// attached SampleFunc. Zero for video tracks.
	Channels() int

	// Attach registers fn as the sample consumer, replacing any previous one.
	Attach(fn SampleFunc)
	// Detach removes the sample consumer. Samples arriving afterwards are
	// discarded.
	Detach()

	// Stop releases the underlying device or display resource. Safe to call
	// more than once.
	Stop()
	Ended() bool
}

// Stream is the set of tracks returned by a single grant.
type Stream interface {
	ID() string
	Tracks() []Track
	AudioTracks() []Track
	VideoTracks() []Track
	RemoveTrack(t Track)
}

// DisplayConstraints select what a display-share grant should include.
// SampleRate, when set, is the rate the audio track should be delivered at so
// that it lines up with the microphone.
type DisplayConstraints struct {
	Video      bool
	Audio      bool
	SampleRate int
}

// MicrophoneConstraints select how the microphone should be opened.
type MicrophoneConstraints struct {
	DeviceID         string
	ChannelCount     int
	SampleRate       int
	EchoCancellation bool
	NoiseSuppression bool
}

// Platform requests live sources from the host.
//
// Both request methods may block for as long as the user takes to answer a
// permission prompt.
type Platform interface {
	Name() string
	SupportsDisplayCapture() bool
	RequestDisplay(ctx context.Context, c DisplayConstraints) (Stream, error)
	RequestMicrophone(ctx context.Context, c MicrophoneConstraints) (Stream, error)
}

// StopAll stops every track of s.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
