package turns

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultSilenceWindow is how long the caller must stay quiet before
// buffered fragments are promoted to a turn. Tuned for conversational
// Spanish on phone audio; overridable via TURN_SILENCE_MS.
const DefaultSilenceWindow = 800 * time.Millisecond

// minFragmentChars filters transcription noise ("a", "e", lone fillers)
const minFragmentChars = 2

// Segmenter groups streaming transcription fragments into caller turns.
// Every accepted fragment re-arms the silence timer; when it expires the
// buffered fragments are joined into one turn. Only one turn is handed
// to the emit callback at a time: turns completed while a previous one
// is still being processed are queued, and Done releases the next one.
type Segmenter struct {
	silenceWindow time.Duration
	emit          func(text string)
	logger        *zap.Logger

	mu         sync.Mutex
	fragments  []string
	timer      *time.Timer
	processing bool
	queue      []string
	closed     bool
}

func NewSegmenter(silenceWindow time.Duration, emit func(text string), logger *zap.Logger) *Segmenter {
	if silenceWindow <= 0 {
		silenceWindow = DefaultSilenceWindow
	}
	return &Segmenter{
		silenceWindow: silenceWindow,
		emit:          emit,
		logger:        logger,
	}
}

// AddFragment buffers a final transcription fragment and re-arms the
// silence timer. Fragments below the noise threshold are dropped and do
// not touch the timer.
func (s *Segmenter) AddFragment(text string) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minFragmentChars {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.fragments = append(s.fragments, text)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.silenceWindow, s.flush)
}

// Done signals that the current turn finished processing and releases
// the next queued turn, if any.
func (s *Segmenter) Done() {
	s.mu.Lock()

	if len(s.queue) == 0 {
		s.processing = false
		s.mu.Unlock()
		return
	}

	next := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	go s.emit(next)
}

// Close stops the timer and discards any buffered fragments. Used when
// the call ends; there is no one left to answer.
func (s *Segmenter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fragments = nil
	s.queue = nil
}

func (s *Segmenter) flush() {
	s.mu.Lock()

	if s.closed || len(s.fragments) == 0 {
		s.mu.Unlock()
		return
	}

	text := strings.Join(s.fragments, " ")
	s.fragments = nil

	if s.processing {
		s.queue = append(s.queue, text)
		s.logger.Debug("Turn queued behind active turn", zap.Int("queue_len", len(s.queue)))
		s.mu.Unlock()
		return
	}

	s.processing = true
	s.mu.Unlock()

	go s.emit(text)
}
