package transcribe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/config"
	"github.com/Raikerian/go-livecapture/pkg/util"
)

// sender is the part of a realtime connection the streamer writes to.
type sender interface {
	SendMessage(ctx context.Context, msg openairt.ClientEvent) error
	Close() error
}

// eventFunc receives server events for the lifetime of a connection.
type eventFunc func(ctx context.Context, event openairt.ServerEvent)

// dialFunc opens a connection whose server events are delivered to onEvent
// until ctx is cancelled.
type dialFunc func(ctx context.Context, onEvent eventFunc) (sender, error)

func realtimeDialer(apiKey string) dialFunc {
	client := openairt.NewClient(apiKey)

	return func(ctx context.Context, onEvent eventFunc) (sender, error) {
		conn, err := client.Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to OpenAI Realtime: %w", err)
		}

		handler := openairt.NewConnHandler(ctx, conn, func(ctx context.Context, event openairt.ServerEvent) {
			onEvent(ctx, event)
		})
		go handler.Start()

		return conn, nil
	}
}

// Streamer forwards capture chunks to the OpenAI Realtime API as
// input_audio_buffer.append events and collects the transcripts of what was
// heard.
type Streamer struct {
	logger      *zap.Logger
	dial        dialFunc
	transcripts *TranscriptStore
	stallAfter  time.Duration

	queue   chan string
	running atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64

	mu     sync.Mutex
	conn   sender
	stall  *util.IdleTimer
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamer creates a Streamer for the given realtime settings. It does not
// connect until Open.
func NewStreamer(logger *zap.Logger, cfg config.RealtimeConfig, transcripts *TranscriptStore) *Streamer {
	return newStreamer(logger, cfg, transcripts, realtimeDialer(cfg.APIKey))
}

func newStreamer(logger *zap.Logger, cfg config.RealtimeConfig, transcripts *TranscriptStore, dial dialFunc) *Streamer {
	return &Streamer{
		logger:      logger,
		dial:        dial,
		transcripts: transcripts,
		stallAfter:  cfg.StallTimeout,
		queue:       make(chan string, max(cfg.QueueSize, 1)),
	}
}

// Open connects, configures the transcription session and starts forwarding
// queued chunks.
func (s *Streamer) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	s.logger.Info("Connecting to OpenAI Realtime API")

	// The connection outlives ctx, which only bounds the dial.
	runCtx, cancel := context.WithCancel(context.Background())
	conn, err := s.dial(runCtx, s.handleServerEvent)
	if err != nil {
		cancel()
		return err
	}

	if err := conn.SendMessage(ctx, sessionUpdate()); err != nil {
		cancel()
		if cerr := conn.Close(); cerr != nil {
			s.logger.Warn("Error closing connection", zap.Error(cerr))
		}
		return fmt.Errorf("failed to configure session: %w", err)
	}

	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.stall = util.NewIdleTimer(s.stallAfter, s.warnStalled)
	s.running.Store(true)
	go s.forward(runCtx, conn, s.stall, s.done)

	s.logger.Info("Connected to OpenAI Realtime API",
		zap.String("input_format", string(openairt.AudioFormatPcm16)),
		zap.String("transcription_model", openai.Whisper1))

	return nil
}

func sessionUpdate() *openairt.SessionUpdateEvent {
	return &openairt.SessionUpdateEvent{
		Session: openairt.ClientSession{
			Modalities:       []openairt.Modality{openairt.ModalityText},
			InputAudioFormat: openairt.AudioFormatPcm16,
			InputAudioTranscription: &openairt.InputAudioTranscription{
				Model: openai.Whisper1,
			},
		},
	}
}

// HandleChunk queues chunk for sending. It never blocks: when the queue is
// full the chunk is dropped.
func (s *Streamer) HandleChunk(chunk string) {
	if !s.running.Load() {
		s.dropped.Add(1)
		return
	}

	select {
	case s.queue <- chunk:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("Realtime queue full, dropping audio",
				zap.Int("queue_size", cap(s.queue)),
				zap.Uint64("dropped", n))
		}
	}
}

func (s *Streamer) warnStalled() {
	s.logger.Warn("No audio forwarded recently",
		zap.Duration("stall_timeout", s.stallAfter),
		zap.Uint64("chunks_sent", s.sent.Load()))
}

func (s *Streamer) forward(ctx context.Context, conn sender, stall *util.IdleTimer, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-s.queue:
			stall.Touch()
			err := conn.SendMessage(ctx, &openairt.InputAudioBufferAppendEvent{Audio: chunk})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Failed to send audio", zap.Error(err))
				continue
			}
			s.sent.Add(1)
		}
	}
}

// Close stops forwarding and closes the connection. Chunks still queued are
// discarded. Safe to call when not open.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.running.Store(false)
	s.cancel()
	<-s.done
	s.stall.Stop()
	for len(s.queue) > 0 {
		<-s.queue
		s.dropped.Add(1)
	}

	err := s.conn.Close()
	s.conn = nil

	s.logger.Info("Closed OpenAI Realtime connection",
		zap.Uint64("chunks_sent", s.sent.Load()),
		zap.Uint64("chunks_dropped", s.dropped.Load()),
		zap.Int("transcripts", s.transcripts.Len()))

	if err != nil {
		return fmt.Errorf("close realtime connection: %w", err)
	}
	return nil
}

// Sent returns how many chunks reached the connection.
func (s *Streamer) Sent() uint64 { return s.sent.Load() }

// Dropped returns how many chunks were discarded.
func (s *Streamer) Dropped() uint64 { return s.dropped.Load() }

func (s *Streamer) handleServerEvent(_ context.Context, event openairt.ServerEvent) {
	switch e := event.(type) {
	case openairt.ConversationItemInputAudioTranscriptionCompletedEvent:
		s.transcripts.Add(Transcript{ItemID: e.ItemID, Text: e.Transcript, At: time.Now()})
		s.logger.Info("Transcript",
			zap.String("item_id", e.ItemID),
			zap.String("text", e.Transcript))

	case openairt.ConversationItemInputAudioTranscriptionFailedEvent:
		s.logger.Warn("Audio transcription failed",
			zap.String("item_id", e.ItemID),
			zap.String("error", e.Error.Message))

	case openairt.ErrorEvent:
		s.logger.Error("OpenAI Realtime error",
			zap.String("message", e.Error.Message))

	default:
		s.logger.Debug("Received server event",
			zap.String("event_type", string(event.ServerEventType())))
	}
}
