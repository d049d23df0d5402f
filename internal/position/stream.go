package position

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"routekeeper/internal/geo"
	"routekeeper/internal/logging"
)

// Stream reads fixes from a reader it does not own, such as stdin. A single
// reader goroutine runs for the life of the process and forwards each line
// to whichever subscriber is current; lines read while nobody is subscribed
// are dropped.
type Stream struct {
	name   string
	r      io.Reader
	logger *slog.Logger

	start   sync.Once
	mu      sync.Mutex
	nextID  uint64
	current *streamSubscription
	ended   bool
}

// NewStream returns a source over r. Reading starts on the first Subscribe.
func NewStream(name string, r io.Reader, logger *slog.Logger) *Stream {
	return &Stream{
		name:   name,
		r:      r,
		logger: logging.NewComponentLogger(logger, "position"),
	}
}

// Subscribe installs the handlers, replacing any previous subscriber. It
// fails with ErrUnavailable once the reader has reached EOF.
func (s *Stream) Subscribe(onFix FixHandler, onError ErrorHandler) (Subscription, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has ended", ErrUnavailable, s.name)
	}
	s.nextID++
	sub := &streamSubscription{owner: s, id: s.nextID, onFix: onFix, onError: onError}
	s.current = sub
	s.mu.Unlock()

	s.start.Do(func() { go s.run() })
	return sub, nil
}

func (s *Stream) subscriber() *streamSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Stream) run() {
	lines, err := scanFixes(s.r, s.name, func(fix geo.Fix) bool {
		if sub := s.subscriber(); sub != nil {
			sub.onFix(fix)
		}
		return true
	}, func(err error) bool {
		if sub := s.subscriber(); sub != nil && sub.onError != nil {
			sub.onError(err)
		}
		return true
	})

	s.mu.Lock()
	s.ended = true
	sub := s.current
	s.mu.Unlock()

	if err != nil {
		if sub != nil && sub.onError != nil {
			sub.onError(err)
		}
		return
	}
	logEOF(s.logger, s.name, lines)
}

type streamSubscription struct {
	owner   *Stream
	id      uint64
	onFix   FixHandler
	onError ErrorHandler
}

func (s *streamSubscription) Unsubscribe() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.owner.current != nil && s.owner.current.id == s.id {
		s.owner.current = nil
	}
}
