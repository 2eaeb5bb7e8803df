package sse

import (
	"Dropzone/internal/entity"
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
	"github.com/rs/xid"
)

// ErrSubscriberClosed is returned by Next once the subscriber has been unsubscribed.
var ErrSubscriberClosed = errors.New("sse: subscriber closed")

// Subscriber is the event queue owned by a single connection.
// The queue is unbounded and strictly FIFO, producers never wait on the consumer.
type Subscriber struct {
	id string

	mu     sync.Mutex
	queue  *deque.Deque[entity.Event]
	closed bool

	// notify holds at most one pending wake-up for the consumer.
	notify chan struct{}
	done   chan struct{}
}

func newSubscriber() *Subscriber {
	return &Subscriber{
		id:     xid.New().String(),
		queue:  deque.New[entity.Event](),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID uniquely identifies the subscriber in logs.
func (s *Subscriber) ID() string {
	return s.id
}

// enqueue appends ev and wakes the consumer. Returns false when the subscriber is already closed.
func (s *Subscriber) enqueue(ev entity.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue.PushBack(ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an event is queued, ctx is done or the subscriber is closed.
func (s *Subscriber) Next(ctx context.Context) (entity.Event, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return entity.Event{}, ErrSubscriberClosed
		}
		if s.queue.Len() > 0 {
			ev := s.queue.PopFront()
			s.mu.Unlock()
			return ev, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return entity.Event{}, ctx.Err()
		}
	}
}

// Pending returns the number of queued, not yet consumed events.
func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Done is closed once the subscriber has been unsubscribed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// close drops undelivered events. Returns false if it was closed already.
func (s *Subscriber) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	// Zero value subscribers have neither
	if s.queue != nil {
		s.queue.Clear()
	}
	if s.done != nil {
		close(s.done)
	}
	return true
}
