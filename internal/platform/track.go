package platform

import (
	"sync"
	"sync/atomic"
)

// LiveTrack is the Track implementation shared by the backends. The backend
// feeds samples through Emit and supplies a release hook that is run exactly
// once on the first Stop.
type LiveTrack struct {
	id       string
	kind     Kind
	label    string
	channels int

	sink    atomic.Pointer[SampleFunc]
	ended   atomic.Bool
	once    sync.Once
	release func()
}

// NewLiveTrack creates a track. release may be nil.
func NewLiveTrack(id string, kind Kind, label string, channels int, release func()) *LiveTrack {
	if kind != KindAudio {
		channels = 0
	}
	return &LiveTrack{
		id:       id,
		kind:     kind,
		label:    label,
		channels: channels,
		release:  release,
	}
}

func (t *LiveTrack) ID() string    { return t.id }
func (t *LiveTrack) Kind() Kind    { return t.kind }
func (t *LiveTrack) Label() string { return t.label }
func (t *LiveTrack) Channels() int { return t.channels }
func (t *LiveTrack) Ended() bool   { return t.ended.Load() }

func (t *LiveTrack) Attach(fn SampleFunc) {
	if fn == nil {
		t.sink.Store(nil)
		return
	}
	t.sink.Store(&fn)
}

func (t *LiveTrack) Detach() {
	t.sink.Store(nil)
}

// Stop marks the track ended, drops the consumer and runs the release hook.
func (t *LiveTrack) Stop() {
	t.once.Do(func() {
		t.ended.Store(true)
		t.sink.Store(nil)
		if t.release != nil {
			t.release()
		}
	})
}

// Emit delivers samples to the attached consumer. It reports whether the
// samples were consumed.
func (t *LiveTrack) Emit(samples []float32) bool {
	if t.ended.Load() {
		return false
	}
	fn := t.sink.Load()
	if fn == nil {
		return false
	}
	(*fn)(samples)
	return true
}

// MediaStream is the Stream implementation shared by the backends.
type MediaStream struct {
	id string

	mu     sync.Mutex
	tracks []Track
}

func NewMediaStream(id string, tracks ...Track) *MediaStream {
	return &MediaStream{id: id, tracks: tracks}
}

func (s *MediaStream) ID() string { return s.id }

func (s *MediaStream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *MediaStream) AudioTracks() []Track { return s.byKind(KindAudio) }
func (s *MediaStream) VideoTracks() []Track { return s.byKind(KindVideo) }

func (s *MediaStream) RemoveTrack(t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.tracks {
		if cur == t {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			return
		}
	}
}

func (s *MediaStream) byKind(k Kind) []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == k {
			out = append(out, t)
		}
	}
	return out
}
