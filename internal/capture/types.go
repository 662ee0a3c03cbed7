package capture

import (
	"errors"
	"fmt"

	"github.com/Raikerian/go-livecapture/internal/config"
)

var (
	// ErrNoAudioSources is returned by Start when every requested grant
	// succeeded but none of them carried a usable audio track.
	ErrNoAudioSources = errors.New("no audio sources available")

	// ErrMissingSource is returned in strict mode when a "both" session
	// would otherwise start with only one of its two sources.
	ErrMissingSource = errors.New("requested audio source unavailable")

	errNilHandler = errors.New("chunk handler is nil")
)

// SourceMode selects which live sources a session captures.
type SourceMode string

const (
	SourceMicrophone SourceMode = "microphone"
	SourceSystem     SourceMode = "system"
	SourceBoth       SourceMode = "both"
)

// ParseSourceMode accepts the mode names case-insensitively.
func ParseSourceMode(s string) (SourceMode, error) {
	m := SourceMode(config.NormalizeSource(s))
	if !m.Valid() {
		return "", fmt.Errorf("unknown source mode %q (want microphone, system or both)", s)
	}
	return m, nil
}

func (m SourceMode) Valid() bool {
	switch m {
	case SourceMicrophone, SourceSystem, SourceBoth:
		return true
	}
	return false
}

// WantsDisplay reports whether the mode captures display-share audio.
func (m SourceMode) WantsDisplay() bool { return m == SourceSystem || m == SourceBoth }

// WantsMicrophone reports whether the mode captures the microphone.
func (m SourceMode) WantsMicrophone() bool { return m == SourceMicrophone || m == SourceBoth }

// ChunkHandler receives one base64 PCM16 chunk per processed frame. It runs
// on the audio path and must not block; it must not call Stop synchronously.
type ChunkHandler func(chunk string)

// Stats counts frames seen by the frame processor.
type Stats struct {
	Delivered uint64
	Dropped   uint64
}
