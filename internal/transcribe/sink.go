// Package transcribe consumes the base64 PCM16 chunks produced by a capture
// session, either streaming them to the OpenAI Realtime API for transcription
// or writing them out as text lines.
package transcribe

import (
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sink receives capture chunks. HandleChunk runs on the audio path and must
// return quickly.
type Sink interface {
	HandleChunk(chunk string)
}

// WriterSink writes one chunk per line.
type WriterSink struct {
	logger  *zap.Logger
	onError func(error)

	mu     sync.Mutex
	w      io.Writer
	err    error
	chunks atomic.Uint64
}

// NewWriterSink creates a sink writing to w. onError, when non-nil, is called
// once with the first write error.
func NewWriterSink(logger *zap.Logger, w io.Writer, onError func(error)) *WriterSink {
	return &WriterSink{logger: logger, w: w, onError: onError}
}

// HandleChunk writes chunk followed by a newline. After the first write error
// every further chunk is discarded; see Err.
func (s *WriterSink) HandleChunk(chunk string) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	_, err := io.WriteString(s.w, chunk+"\n")
	if err == nil {
		s.chunks.Add(1)
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()

	s.logger.Error("Failed to write chunk, discarding further output",
		zap.Uint64("chunks_written", s.chunks.Load()),
		zap.Error(err))
	if s.onError != nil {
		s.onError(err)
	}
}

// Chunks returns how many chunks were written.
func (s *WriterSink) Chunks() uint64 { return s.chunks.Load() }

// Err returns the first write error, if any.
func (s *WriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}
