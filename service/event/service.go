package event

import (
	"context"
	"log"
	"sync"
)

// Handler consumes a published event. Handlers run concurrently during
// fan-out; a handler's error or panic is isolated and never blocks delivery
// to the remaining subscribers.
type Handler func(ctx context.Context, event *Event) error

// Config represents event service configuration
type Config struct {
	// HistoryLimit bounds the in-memory event history ring.
	HistoryLimit int
}

// DefaultConfig returns the default event service configuration
func DefaultConfig() Config {
	return Config{HistoryLimit: 1000}
}

// Service is an in-process publish/subscribe bus with a bounded history.
// Subscriber lists and the history buffer are bus-local mutable state.
type Service struct {
	config      Config
	mu          sync.RWMutex
	subscribers map[string]map[int]Handler
	nextID      int
	history     []*Event
}

// Option customises the event service.
type Option func(*Service)

// WithHistoryLimit overrides the history ring size.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.config.HistoryLimit = limit
		}
	}
}

// New creates a new event service
func New(options ...Option) *Service {
	s := &Service{
		config:      DefaultConfig(),
		subscribers: make(map[string]map[int]Handler),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Subscribe registers a handler for the given event type and returns a
// subscription id used to unsubscribe.
func (s *Service) Subscribe(eventType string, handler Handler) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	if s.subscribers[eventType] == nil {
		s.subscribers[eventType] = make(map[int]Handler)
	}
	s.subscribers[eventType][id] = handler
	return id
}

// Unsubscribe removes a previously registered handler.
func (s *Service) Unsubscribe(eventType string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers[eventType], id)
}

// Publish appends the event to the bounded history and fans it out
// concurrently to every handler currently subscribed to its type. Publish
// returns once every handler has finished.
func (s *Service) Publish(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	s.mu.Lock()
	s.history = append(s.history, event)
	if overflow := len(s.history) - s.config.HistoryLimit; overflow > 0 {
		s.history = append(s.history[:0], s.history[overflow:]...)
	}
	handlers := make([]Handler, 0, len(s.subscribers[event.Type]))
	for _, handler := range s.subscribers[event.Type] {
		handlers = append(handlers, handler)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(handler Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("event handler panic on %s: %v", event.Type, r)
				}
			}()
			if err := handler(ctx, event); err != nil {
				log.Printf("event handler error on %s: %v", event.Type, err)
			}
		}(handler)
	}
	wg.Wait()
}

// History returns the most recent events, newest last, optionally filtered
// by event type and workflow id. A non-positive limit returns every match.
func (s *Service) History(eventType, workflowID string, limit int) []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Event
	for _, event := range s.history {
		if eventType != "" && event.Type != eventType {
			continue
		}
		if workflowID != "" && event.WorkflowID != workflowID {
			continue
		}
		matched = append(matched, event)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}
