package capture_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-livecapture/internal/capture"
	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/pkg/audio"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames [][]float32
}

func (r *frameRecorder) record(frame []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) all() [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]float32(nil), r.frames...)
}

func constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func stageKinds(g *capture.Graph) []capture.StageKind {
	var kinds []capture.StageKind
	for _, s := range g.Stages() {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func TestBuildGraph_SingleSource(t *testing.T) {
	mic := platform.NewLiveTrack("mic", platform.KindAudio, "mic", 1, nil)
	rec := &frameRecorder{}

	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{mic}, rec.record)
	require.NoError(t, err)

	assert.False(t, g.HasMerge())
	assert.Equal(t, []capture.StageKind{
		capture.StageSource, capture.StageProcessor, capture.StageGain, capture.StageDestination,
	}, stageKinds(g))
	assert.Equal(t, []capture.Edge{
		{From: 0, To: 1},
		{From: 1, To: 2},
		{From: 2, To: 3},
	}, g.Edges())
}

func TestBuildGraph_TwoSourcesMerge(t *testing.T) {
	display := platform.NewLiveTrack("d", platform.KindAudio, "display", 2, nil)
	mic := platform.NewLiveTrack("m", platform.KindAudio, "mic", 1, nil)

	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{display, mic}, func([]float32) {})
	require.NoError(t, err)

	assert.True(t, g.HasMerge())
	assert.Equal(t, 2, g.SourceCount())
	assert.Equal(t, []capture.StageKind{
		capture.StageSource, capture.StageSource, capture.StageMerge,
		capture.StageProcessor, capture.StageGain, capture.StageDestination,
	}, stageKinds(g))
	assert.Equal(t, []capture.Edge{
		{From: 0, To: 2, Input: 0},
		{From: 1, To: 2, Input: 1},
		{From: 2, To: 3},
		{From: 3, To: 4},
		{From: 4, To: 5},
	}, g.Edges())
}

func TestBuildGraph_Rejects(t *testing.T) {
	logger := zaptest.NewLogger(t)
	track := func() platform.Track { return platform.NewLiveTrack("x", platform.KindAudio, "", 1, nil) }

	_, err := capture.BuildGraph(logger, nil, func([]float32) {})
	assert.Error(t, err)

	_, err = capture.BuildGraph(logger, []platform.Track{track(), track(), track()}, func([]float32) {})
	assert.Error(t, err)

	_, err = capture.BuildGraph(logger, []platform.Track{track()}, nil)
	assert.Error(t, err)
}

func TestGraph_FramesAreFixedSize(t *testing.T) {
	mic := platform.NewLiveTrack("mic", platform.KindAudio, "mic", 1, nil)
	rec := &frameRecorder{}
	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{mic}, rec.record)
	require.NoError(t, err)

	assert.False(t, mic.Emit(constant(10, 0.1)), "nothing attached before Connect")
	require.NoError(t, g.Connect())
	assert.True(t, g.Connected())

	// 3000 + 3000 + 3000 samples = 2 full frames with 808 left over.
	for i := 0; i < 3; i++ {
		mic.Emit(constant(3000, 0.5))
	}

	frames := rec.all()
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Len(t, f, audio.FrameSize)
		assert.Equal(t, float32(0.5), f[0])
	}
	assert.Equal(t, uint64(2), g.RenderedFrames())
}

func TestGraph_StereoSourceIsDownmixed(t *testing.T) {
	display := platform.NewLiveTrack("d", platform.KindAudio, "display", 2, nil)
	rec := &frameRecorder{}
	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{display}, rec.record)
	require.NoError(t, err)
	require.NoError(t, g.Connect())

	stereo := make([]float32, audio.FrameSize*2)
	for i := 0; i < audio.FrameSize; i++ {
		stereo[2*i] = 1
		stereo[2*i+1] = 0
	}
	display.Emit(stereo)

	frames := rec.all()
	require.Len(t, frames, 1)
	assert.Equal(t, constant(audio.FrameSize, 0.5), frames[0])
}

func TestGraph_MergeAveragesSources(t *testing.T) {
	display := platform.NewLiveTrack("d", platform.KindAudio, "display", 1, nil)
	mic := platform.NewLiveTrack("m", platform.KindAudio, "mic", 1, nil)
	rec := &frameRecorder{}
	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{display, mic}, rec.record)
	require.NoError(t, err)
	require.NoError(t, g.Connect())

	display.Emit(constant(audio.FrameSize, 0.8))
	assert.Empty(t, rec.all(), "merge waits for the other slot")

	mic.Emit(constant(audio.FrameSize, 0.2))

	frames := rec.all()
	require.Len(t, frames, 1)
	assert.InDelta(t, 0.5, frames[0][0], 1e-6)
	assert.InDelta(t, 0.5, frames[0][audio.FrameSize-1], 1e-6)
}

func TestGraph_MergeTreatsStalledSourceAsSilence(t *testing.T) {
	display := platform.NewLiveTrack("d", platform.KindAudio, "display", 1, nil)
	mic := platform.NewLiveTrack("m", platform.KindAudio, "mic", 1, nil)
	rec := &frameRecorder{}
	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{display, mic}, rec.record)
	require.NoError(t, err)
	require.NoError(t, g.Connect())

	// The display never delivers; after the mic runs more than one frame
	// ahead, the gap is filled with silence.
	mic.Emit(constant(audio.FrameSize*3, 1))

	frames := rec.all()
	require.Len(t, frames, 2)
	assert.Equal(t, constant(audio.FrameSize, 0.5), frames[0])
}

func TestGraph_DisconnectAndCloseAreIdempotent(t *testing.T) {
	mic := platform.NewLiveTrack("mic", platform.KindAudio, "mic", 1, nil)
	rec := &frameRecorder{}
	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{mic}, rec.record)
	require.NoError(t, err)
	require.NoError(t, g.Connect())

	mic.Emit(constant(audio.FrameSize-1, 0.1))
	g.Disconnect()
	g.Disconnect()

	assert.False(t, g.Connected())
	assert.False(t, mic.Emit(constant(10, 0.1)), "source detached")
	assert.Empty(t, rec.all(), "partial frame dropped")

	g.Close()
	g.Close()
	assert.True(t, g.Closed())
	assert.Error(t, g.Connect())
}

func TestGraph_DisconnectStopsPendingDispatch(t *testing.T) {
	mic := platform.NewLiveTrack("mic", platform.KindAudio, "mic", 1, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	var frames atomic.Int32
	g, err := capture.BuildGraph(zaptest.NewLogger(t), []platform.Track{mic}, func([]float32) {
		if frames.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	require.NoError(t, err)
	require.NoError(t, g.Connect())

	done := make(chan struct{})
	go func() {
		defer close(done)
		mic.Emit(constant(audio.FrameSize*3, 0.5))
	}()
	<-entered

	g.Disconnect()
	close(release)
	<-done

	assert.Equal(t, int32(1), frames.Load())
}
