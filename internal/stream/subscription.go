package stream

import (
	"sync"

	"github.com/google/uuid"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// Subscription is one consumer's view of the shared stream.
type Subscription struct {
	id   uuid.UUID
	m    *Multiplexer
	max  int
	wake chan struct{}
	stop func() bool // unregisters the ctx hook set by Subscribe

	mu      sync.Mutex
	queue   []domain.PriceUpdate
	dropped int
	err     error // terminal stream error, reported after the queue drains
	closed  error // set once the subscriber has left
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id.String()
}

// Next returns the next update in upstream order. It blocks until one is
// available, the stream terminates, or the subscription is closed. After
// termination every call returns the terminal error. Next is not safe for
// concurrent use by multiple goroutines.
func (s *Subscription) Next() (domain.PriceUpdate, error) {
	for {
		s.mu.Lock()
		if s.closed != nil {
			err := s.closed
			s.mu.Unlock()
			return domain.PriceUpdate{}, err
		}
		if len(s.queue) > 0 {
			u := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return u, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return domain.PriceUpdate{}, err
		}
		s.mu.Unlock()
		<-s.wake
	}
}

// Close leaves the stream. Pending and future calls to Next return
// ErrSubscriptionClosed.
func (s *Subscription) Close() {
	if s.stop != nil {
		s.stop()
	}
	s.closeWith(ErrSubscriptionClosed)
}

func (s *Subscription) closeWith(err error) {
	if err == nil {
		err = ErrSubscriptionClosed
	}
	s.m.remove(s)

	s.mu.Lock()
	if s.closed == nil {
		s.closed = err
		s.queue = nil
	}
	s.mu.Unlock()
	s.notify()
}

// push queues u and reports how many updates this subscriber has lost so
// far, or 0 if none.
func (s *Subscription) push(u domain.PriceUpdate) int {
	s.mu.Lock()
	if s.closed != nil {
		s.mu.Unlock()
		return 0
	}
	dropped := 0
	if len(s.queue) >= s.max {
		s.queue = s.queue[1:]
		s.dropped++
		dropped = s.dropped
	}
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	s.notify()
	return dropped
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify()
}

func (s *Subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
