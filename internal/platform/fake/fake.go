// Package fake provides a scripted Platform for tests and dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/Raikerian/go-livecapture/internal/platform"
)

// Platform hands out in-memory tracks according to its exported fields.
// Fields must be set before the first request.
type Platform struct {
	// DisplaySupported is reported by SupportsDisplayCapture.
	DisplaySupported bool

	// DisplayErr and MicrophoneErr, when set, are returned instead of a grant.
	DisplayErr    error
	MicrophoneErr error

	// DisplayAudioTracks and DisplayVideoTracks shape the display grant.
	DisplayAudioTracks int
	DisplayVideoTracks int
	DisplayChannels    int

	// DisplayGate and MicrophoneGate, when non-nil, hold the matching request
	// pending until they are closed, like an unanswered permission prompt.
	DisplayGate    chan struct{}
	MicrophoneGate chan struct{}

	mu          sync.Mutex
	seq         int
	tracks      []*platform.LiveTrack
	displayReqs []platform.DisplayConstraints
	micReqs     []platform.MicrophoneConstraints
	display     []*platform.LiveTrack
	microphone  []*platform.LiveTrack
}

// New returns a platform that grants one display audio track, one display
// video track and a microphone.
func New() *Platform {
	return &Platform{
		DisplaySupported:   true,
		DisplayAudioTracks: 1,
		DisplayVideoTracks: 1,
		DisplayChannels:    2,
	}
}

func (p *Platform) Name() string { return "fake" }

func (p *Platform) SupportsDisplayCapture() bool { return p.DisplaySupported }

func (p *Platform) RequestDisplay(ctx context.Context, c platform.DisplayConstraints) (platform.Stream, error) {
	p.mu.Lock()
	p.displayReqs = append(p.displayReqs, c)
	p.mu.Unlock()

	if err := wait(ctx, p.DisplayGate); err != nil {
		return nil, err
	}
	if p.DisplayErr != nil {
		return nil, p.DisplayErr
	}
	if !p.DisplaySupported {
		return nil, fmt.Errorf("display capture: %w", platform.ErrUnsupported)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var tracks []platform.Track
	if c.Audio {
		for i := 0; i < p.DisplayAudioTracks; i++ {
			t := p.newTrackLocked(platform.KindAudio, "display audio", p.DisplayChannels)
			p.display = append(p.display, t)
			tracks = append(tracks, t)
		}
	}
	if c.Video {
		for i := 0; i < p.DisplayVideoTracks; i++ {
			tracks = append(tracks, p.newTrackLocked(platform.KindVideo, "display video", 0))
		}
	}
	return platform.NewMediaStream(p.nextIDLocked("display"), tracks...), nil
}

func (p *Platform) RequestMicrophone(ctx context.Context, c platform.MicrophoneConstraints) (platform.Stream, error) {
	p.mu.Lock()
	p.micReqs = append(p.micReqs, c)
	p.mu.Unlock()

	if err := wait(ctx, p.MicrophoneGate); err != nil {
		return nil, err
	}
	if p.MicrophoneErr != nil {
		return nil, p.MicrophoneErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	channels := c.ChannelCount
	if channels <= 0 {
		channels = 1
	}
	t := p.newTrackLocked(platform.KindAudio, "microphone", channels)
	p.microphone = append(p.microphone, t)
	return platform.NewMediaStream(p.nextIDLocked("microphone"), t), nil
}

// Tracks returns every track handed out so far.
func (p *Platform) Tracks() []*platform.LiveTrack {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*platform.LiveTrack, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// LiveTracks returns the tracks that have not been stopped.
func (p *Platform) LiveTracks() []*platform.LiveTrack {
	var live []*platform.LiveTrack
	for _, t := range p.Tracks() {
		if !t.Ended() {
			live = append(live, t)
		}
	}
	return live
}

// DisplayRequests returns the constraints of every display request.
func (p *Platform) DisplayRequests() []platform.DisplayConstraints {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]platform.DisplayConstraints(nil), p.displayReqs...)
}

// MicrophoneRequests returns the constraints of every microphone request.
func (p *Platform) MicrophoneRequests() []platform.MicrophoneConstraints {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]platform.MicrophoneConstraints(nil), p.micReqs...)
}

// DisplayAudio returns the most recent display audio track, or nil.
func (p *Platform) DisplayAudio() *platform.LiveTrack {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.display) == 0 {
		return nil
	}
	return p.display[len(p.display)-1]
}

// Microphone returns the most recent microphone track, or nil.
func (p *Platform) Microphone() *platform.LiveTrack {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.microphone) == 0 {
		return nil
	}
	return p.microphone[len(p.microphone)-1]
}

func (p *Platform) newTrackLocked(kind platform.Kind, label string, channels int) *platform.LiveTrack {
	t := platform.NewLiveTrack(p.nextIDLocked(string(kind)), kind, label, channels, nil)
	p.tracks = append(p.tracks, t)
	return t
}

func (p *Platform) nextIDLocked(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", prefix, p.seq)
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
