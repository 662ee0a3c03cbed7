// Package capture merges live display and microphone audio into a single
// mono PCM16 stream delivered as base64 chunks.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/pkg/audio"
)

// Options tune how sources are acquired.
type Options struct {
	// StrictSources refuses to start a "both" session with only one source.
	StrictSources bool
	// DeviceID selects the microphone; empty means the default device.
	DeviceID string
}

// Capture owns at most one active session at a time.
//
// Start and Stop are serialised: a Stop issued while Start is waiting on a
// permission grant blocks until the grant settles and then tears the new
// session down.
type Capture struct {
	logger   *zap.Logger
	platform platform.Platform
	acquirer *Acquirer

	mu    sync.Mutex
	state *session
	// proc is the frame processor of the current or most recent session.
	proc atomic.Pointer[frameProcessor]
}

// session is everything acquired for one Idle → Active transition.
type session struct {
	mode       SourceMode
	sampleRate int
	startedAt  time.Time
	streams    []platform.Stream
	graph      *Graph
	proc       *frameProcessor
}

func New(logger *zap.Logger, p platform.Platform, opts Options) *Capture {
	return &Capture{
		logger:   logger,
		platform: p,
		acquirer: NewAcquirer(logger, p, opts.StrictSources, opts.DeviceID),
	}
}

// IsSupported reports whether p can capture display-share audio, so callers
// can avoid the system and both modes where they cannot work.
func IsSupported(p platform.Platform) bool {
	return p != nil && p.SupportsDisplayCapture()
}

// IsSupported reports whether this capture's platform can capture
// display-share audio.
func (c *Capture) IsSupported() bool {
	return IsSupported(c.platform)
}

// Streaming reports whether a session is active.
func (c *Capture) Streaming() bool {
	p := c.proc.Load()
	return p != nil && p.active.Load()
}

// Stats returns frame counters for the current or most recent session.
func (c *Capture) Stats() Stats {
	p := c.proc.Load()
	if p == nil {
		return Stats{}
	}
	return p.stats()
}

// Start acquires the sources for mode, builds the processing graph and
// begins delivering chunks to onChunk. A sampleRate of zero or less selects
// the default 16 kHz.
//
// Calling Start while a session is active logs a warning and returns nil.
// Any failure releases everything acquired so far before returning.
func (c *Capture) Start(ctx context.Context, mode SourceMode, onChunk ChunkHandler, sampleRate int) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil {
		c.logger.Warn("Capture already streaming, ignoring start",
			zap.String("active_mode", string(c.state.mode)),
			zap.String("requested_mode", string(mode)))
		return nil
	}
	if !mode.Valid() {
		return fmt.Errorf("start capture: unknown source mode %q", mode)
	}
	if onChunk == nil {
		return fmt.Errorf("start capture: %w", errNilHandler)
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	s := &session{
		mode:       mode,
		sampleRate: sampleRate,
		startedAt:  time.Now(),
		proc:       &frameProcessor{},
	}
	defer func() {
		if err != nil {
			c.teardown(s)
			c.logger.Error("Capture start failed",
				zap.String("mode", string(mode)),
				zap.Error(err))
		}
	}()

	c.logger.Info("Starting capture",
		zap.String("mode", string(mode)),
		zap.Int("sample_rate", sampleRate),
		zap.String("platform", c.platform.Name()))

	acq, err := c.acquirer.Acquire(ctx, mode, sampleRate)
	s.streams = acq.Streams
	if err != nil {
		return err
	}

	// Each session gets its own processor so that frames still in flight
	// from an earlier graph can never reach this session's handler.
	g, err := BuildGraph(c.logger, acq.Tracks(), s.proc.process)
	if err != nil {
		return fmt.Errorf("build processing graph: %w", err)
	}
	s.graph = g

	s.proc.arm(onChunk)
	c.proc.Store(s.proc)
	c.state = s

	if err := g.Connect(); err != nil {
		return fmt.Errorf("connect processing graph: %w", err)
	}

	c.logger.Info("Capture streaming",
		zap.String("mode", string(mode)),
		zap.Int("sources", g.SourceCount()),
		zap.Bool("merged", g.HasMerge()))

	return nil
}

// Stop ends the active session and releases every resource it holds. It is
// a no-op when idle.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	if s == nil {
		return
	}
	c.teardown(s)

	stats := s.proc.stats()
	c.logger.Info("Capture stopped",
		zap.String("mode", string(s.mode)),
		zap.Duration("duration", time.Since(s.startedAt)),
		zap.Uint64("chunks", stats.Delivered),
		zap.Uint64("dropped_frames", stats.Dropped))
}

// teardown releases s. It runs on every exit path, tolerates partially
// built sessions and is safe to repeat. Callers hold c.mu.
func (c *Capture) teardown(s *session) {
	s.proc.deactivate()

	if s.graph != nil {
		s.graph.Disconnect()
	}
	for _, stream := range s.streams {
		platform.StopAll(stream)
	}
	s.streams = nil
	if s.graph != nil {
		s.graph.Close()
		s.graph = nil
	}

	s.proc.clearHandler()
	if c.state == s {
		c.state = nil
	}
}
