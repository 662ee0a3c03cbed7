package capture

import (
	"sync/atomic"

	"github.com/Raikerian/go-livecapture/pkg/audio"
)

// frameProcessor is the thin boundary between one session's graph and its
// chunk handler. It holds the session's active flag and the registered
// handler so that frames arriving during or after teardown are dropped. A
// processor is never re-armed once its session ends.
type frameProcessor struct {
	active    atomic.Bool
	handler   atomic.Pointer[ChunkHandler]
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func (p *frameProcessor) arm(h ChunkHandler) {
	p.handler.Store(&h)
	p.delivered.Store(0)
	p.dropped.Store(0)
	p.active.Store(true)
}

func (p *frameProcessor) deactivate() {
	p.active.Store(false)
}

func (p *frameProcessor) clearHandler() {
	p.handler.Store(nil)
}

// process converts one frame and hands it to the handler on the calling
// goroutine.
func (p *frameProcessor) process(frame []float32) {
	h := p.handler.Load()
	if !p.active.Load() || h == nil {
		p.dropped.Add(1)
		return
	}
	chunk := audio.EncodeChunk(frame)
	p.delivered.Add(1)
	(*h)(chunk)
}

func (p *frameProcessor) stats() Stats {
	return Stats{
		Delivered: p.delivered.Load(),
		Dropped:   p.dropped.Load(),
	}
}
