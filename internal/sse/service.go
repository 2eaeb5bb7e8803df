// Service layer of Server Side Events (SSE) in Dropzone.
// The service is the event bus fanning every broadcasted event out to all subscribers.

package sse

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/metrics"
	"Dropzone/pkg/log"
	"sync"
)

type Service interface {
	// Subscribe registers a new subscriber, the caller must Unsubscribe it when done.
	Subscribe() *Subscriber
	// Unsubscribe removes sub from the registry. Calling it more than once is a no-op.
	Unsubscribe(sub *Subscriber)
	// Broadcast queues ev onto every subscriber registered at the time of the call.
	Broadcast(ev entity.Event)
	// Count returns the number of registered subscribers.
	Count() int
	// Close unsubscribes everyone, used on server shutdown to end open streams.
	Close()
}

// Object of this will be passed around from main to routers to API and to every event producer.
type service struct {
	logger  log.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	closed      bool
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
func NewService(logger log.Logger, m *metrics.Metrics) Service {
	return &service{
		logger:      logger,
		metrics:     m,
		subscribers: make(map[*Subscriber]struct{}),
	}
}

func (s *service) Subscribe() *Subscriber {
	sub := newSubscriber()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// Bus is shutting down, hand out a subscriber which ends right away
		sub.close()
		return sub
	}
	s.subscribers[sub] = struct{}{}
	total := len(s.subscribers)
	s.mu.Unlock()

	s.metrics.SubscriberAdded()
	s.logger.Debug().Msgf("Added subscriber %s, %d connected", sub.ID(), total)
	return sub
}

func (s *service) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	_, ok := s.subscribers[sub]
	delete(s.subscribers, sub)
	total := len(s.subscribers)
	s.mu.Unlock()

	if !ok {
		// Not registered here, possibly owned by another bus
		return
	}
	sub.close()
	s.metrics.SubscriberRemoved()
	s.logger.Debug().Msgf("Removed subscriber %s, %d connected", sub.ID(), total)
}

func (s *service) Broadcast(ev entity.Event) {
	// Snapshot first so subscribe / unsubscribe never wait on delivery
	s.mu.RLock()
	targets := make([]*Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		targets = append(targets, sub)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.enqueue(ev) {
			delivered++
		}
	}
	s.metrics.EventBroadcast(ev.Kind)
	s.logger.Debug().Msgf("Broadcasted %s event to %d subscriber(s)", ev.Kind, delivered)
}

func (s *service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	targets := make([]*Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		targets = append(targets, sub)
	}
	s.subscribers = make(map[*Subscriber]struct{})
	s.mu.Unlock()

	for _, sub := range targets {
		sub.close()
		s.metrics.SubscriberRemoved()
	}
	s.logger.Info().Msgf("Closed event bus, dropped %d subscriber(s)", len(targets))
}
