package transcribe

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Transcript is one completed transcription of captured speech.
type Transcript struct {
	ItemID string
	Text   string
	At     time.Time
}

// TranscriptStore keeps the most recent transcripts, keyed by conversation
// item id.
type TranscriptStore struct {
	cache *lru.Cache[string, Transcript]
}

// NewTranscriptStore creates a store holding at most size transcripts.
func NewTranscriptStore(size int) (*TranscriptStore, error) {
	cache, err := lru.New[string, Transcript](size)
	if err != nil {
		return nil, err
	}

	return &TranscriptStore{cache: cache}, nil
}

// Add records t, evicting the oldest transcript when full.
func (s *TranscriptStore) Add(t Transcript) {
	s.cache.Add(t.ItemID, t)
}

func (s *TranscriptStore) Get(itemID string) (Transcript, bool) {
	return s.cache.Get(itemID)
}

func (s *TranscriptStore) Len() int {
	return s.cache.Len()
}

// Recent returns the stored transcripts, oldest first.
func (s *TranscriptStore) Recent() []Transcript {
	keys := s.cache.Keys()
	out := make([]Transcript, 0, len(keys))
	for _, k := range keys {
		if t, ok := s.cache.Peek(k); ok {
			out = append(out, t)
		}
	}
	return out
}
