package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/pkg/audio"
)

// StageKind identifies a node of the processing graph.
type StageKind int

const (
	StageSource StageKind = iota
	StageMerge
	StageProcessor
	StageGain
	StageDestination
)

func (k StageKind) String() string {
	switch k {
	case StageSource:
		return "source"
	case StageMerge:
		return "merge"
	case StageProcessor:
		return "processor"
	case StageGain:
		return "gain"
	case StageDestination:
		return "destination"
	}
	return fmt.Sprintf("stage(%d)", int(k))
}

// Stage is one node of the graph.
type Stage struct {
	ID    int
	Kind  StageKind
	Label string
}

// Edge connects the output of From to input slot Input of To.
type Edge struct {
	From  int
	To    int
	Input int
}

// FrameFunc receives one full processor frame of mono samples.
type FrameFunc func(frame []float32)

const maxSources = 2

// Graph is the fixed-shape processing graph of one session:
//
//	source ─┐
//	        ├─▶ merge ─▶ processor ─▶ gain(0) ─▶ destination
//	source ─┘
//
// The merge stage exists only when there are two sources. The processor
// hands every FrameSize samples to the FrameFunc; its own output is silence
// routed through the zero-gain stage so nothing captured is ever played.
type Graph struct {
	logger *zap.Logger

	stages []Stage
	edges  []Edge

	sources []*sourceStage
	merge   *mergeStage
	proc    *processorStage
	gain    float32
	dest    *destinationStage
	onFrame FrameFunc

	// mu guards buffering state; dispatchMu keeps frames in order once they
	// leave mu.
	mu           sync.Mutex
	dispatchMu   sync.Mutex
	connected    bool
	disconnected bool
	closed       bool
	// detached mirrors disconnected for the dispatch loop, which runs
	// without mu.
	detached atomic.Bool
}

type sourceStage struct {
	stage Stage
	track platform.Track
	slot  int
}

// BuildGraph wires one or two audio tracks into a processing graph. The
// graph is inert until Connect.
func BuildGraph(logger *zap.Logger, tracks []platform.Track, onFrame FrameFunc) (*Graph, error) {
	if len(tracks) == 0 || len(tracks) > maxSources {
		return nil, fmt.Errorf("graph needs 1 or %d sources, got %d", maxSources, len(tracks))
	}
	if onFrame == nil {
		return nil, errors.New("graph needs a frame func")
	}

	g := &Graph{
		logger:  logger,
		onFrame: onFrame,
		gain:    0,
	}

	for i, t := range tracks {
		st := g.addStage(StageSource, t.Label())
		g.sources = append(g.sources, &sourceStage{stage: st, track: t, slot: i})
	}

	var procInput int
	if len(tracks) > 1 {
		mst := g.addStage(StageMerge, "channel merge")
		g.merge = newMergeStage(mst, len(tracks), audio.FrameSize)
		for _, src := range g.sources {
			g.edges = append(g.edges, Edge{From: src.stage.ID, To: mst.ID, Input: src.slot})
		}
		procInput = mst.ID
	}

	pst := g.addStage(StageProcessor, "frame processor")
	g.proc = newProcessorStage(pst, audio.FrameSize)
	if g.merge != nil {
		g.edges = append(g.edges, Edge{From: procInput, To: pst.ID})
	} else {
		g.edges = append(g.edges, Edge{From: g.sources[0].stage.ID, To: pst.ID})
	}

	gst := g.addStage(StageGain, "silent gain")
	g.edges = append(g.edges, Edge{From: pst.ID, To: gst.ID})

	dst := g.addStage(StageDestination, "destination")
	g.dest = &destinationStage{stage: dst}
	g.edges = append(g.edges, Edge{From: gst.ID, To: dst.ID})

	return g, nil
}

func (g *Graph) addStage(kind StageKind, label string) Stage {
	st := Stage{ID: len(g.stages), Kind: kind, Label: label}
	g.stages = append(g.stages, st)
	return st
}

// Stages returns the nodes in construction order.
func (g *Graph) Stages() []Stage { return append([]Stage(nil), g.stages...) }

// Edges returns the connections in construction order.
func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// HasMerge reports whether the graph contains a merge stage.
func (g *Graph) HasMerge() bool { return g.merge != nil }

// SourceCount returns the number of source stages.
func (g *Graph) SourceCount() int { return len(g.sources) }

// Connect starts pulling samples from the source tracks.
func (g *Graph) Connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.disconnected {
		return errors.New("graph already torn down")
	}
	if g.connected {
		return nil
	}
	g.connected = true

	for _, src := range g.sources {
		channels := src.track.Channels()
		src.track.Attach(func(samples []float32) {
			g.push(src.slot, audio.Downmix(samples, channels))
		})
	}

	g.logger.Debug("Processing graph connected",
		zap.Int("sources", len(g.sources)),
		zap.Bool("merge", g.merge != nil))

	return nil
}

// Disconnect detaches the processor from its inputs and drops any partially
// filled frame. Safe to call more than once.
func (g *Graph) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disconnected {
		return
	}
	g.disconnected = true
	g.detached.Store(true)

	for _, src := range g.sources {
		src.track.Detach()
	}
	if g.merge != nil {
		g.merge.reset()
	}
	g.proc.reset()
}

// Close releases the processing context. It disconnects first when needed.
// Safe to call more than once.
func (g *Graph) Close() {
	g.Disconnect()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true

	g.logger.Debug("Processing graph closed",
		zap.Uint64("frames", g.proc.frames),
		zap.Uint64("rendered", g.dest.rendered.Load()))
}

// Connected reports whether the graph is pulling samples.
func (g *Graph) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.connected && !g.disconnected
}

// Closed reports whether Close has run.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.closed
}

// RenderedFrames returns how many (silent) frames reached the destination.
func (g *Graph) RenderedFrames() uint64 { return g.dest.rendered.Load() }

// push is the per-source entry point, called from the tracks' goroutines.
func (g *Graph) push(slot int, mono []float32) {
	g.mu.Lock()
	if g.disconnected {
		g.mu.Unlock()
		return
	}

	in := mono
	if g.merge != nil {
		in = g.merge.write(slot, mono)
	}
	frames := g.proc.write(in)
	if len(frames) == 0 {
		g.mu.Unlock()
		return
	}

	g.dispatchMu.Lock()
	g.mu.Unlock()
	defer g.dispatchMu.Unlock()

	for _, f := range frames {
		if g.detached.Load() {
			return
		}
		g.onFrame(f)
		g.dest.render(applyGain(make([]float32, len(f)), g.gain))
	}
}

// applyGain scales buf in place.
func applyGain(buf []float32, gain float32) []float32 {
	for i := range buf {
		buf[i] *= gain
	}
	return buf
}

// mergeStage aligns its input slots and averages them into one channel.
type mergeStage struct {
	stage  Stage
	queues [][]float32
	// maxLag is how far one slot may run ahead before the others are
	// treated as silent.
	maxLag int
}

func newMergeStage(st Stage, inputs, maxLag int) *mergeStage {
	return &mergeStage{
		stage:  st,
		queues: make([][]float32, inputs),
		maxLag: maxLag,
	}
}

func (m *mergeStage) write(slot int, mono []float32) []float32 {
	m.queues[slot] = append(m.queues[slot], mono...)

	longest := 0
	for _, q := range m.queues {
		longest = max(longest, len(q))
	}
	for i, q := range m.queues {
		if longest-len(q) > m.maxLag {
			m.queues[i] = append(q, make([]float32, longest-len(q)-m.maxLag)...)
		}
	}

	n := longest
	for _, q := range m.queues {
		n = min(n, len(q))
	}
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	inputs := make([][]float32, len(m.queues))
	for i, q := range m.queues {
		inputs[i] = q[:n]
	}
	audio.Average(out, inputs...)

	for i, q := range m.queues {
		m.queues[i] = q[n:]
	}
	return out
}

func (m *mergeStage) reset() {
	for i := range m.queues {
		m.queues[i] = nil
	}
}

// processorStage cuts the incoming sample stream into fixed-size frames.
type processorStage struct {
	stage  Stage
	size   int
	buf    []float32
	frames uint64
}

func newProcessorStage(st Stage, size int) *processorStage {
	return &processorStage{stage: st, size: size, buf: make([]float32, 0, size)}
}

func (p *processorStage) write(samples []float32) [][]float32 {
	var out [][]float32
	for len(samples) > 0 {
		n := min(p.size-len(p.buf), len(samples))
		p.buf = append(p.buf, samples[:n]...)
		samples = samples[n:]
		if len(p.buf) == p.size {
			out = append(out, p.buf)
			p.buf = make([]float32, 0, p.size)
			p.frames++
		}
	}
	return out
}

func (p *processorStage) reset() {
	p.buf = p.buf[:0]
}

// destinationStage is the audible output. It only counts what reaches it.
type destinationStage struct {
	stage    Stage
	rendered atomic.Uint64
}

func (d *destinationStage) render([]float32) {
	d.rendered.Add(1)
}
