// Package realtime fans dashboard and ticket events out to websocket
// subscribers.
package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TopicAdmin = "admin"

	defaultBuffer = 32
)

// TicketTopic is the topic of a single ticket conversation.
func TicketTopic(ticketID string) string {
	return "ticket:" + ticketID
}

// Event is the JSON message pushed to subscribers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

// Subscriber receives the events of its topics. Events is never closed;
// Done is closed when the subscriber is removed.
type Subscriber struct {
	topics map[string]struct{}
	ch     chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscriber) Events() <-chan Event  { return s.ch }
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub is an in-process publish/subscribe broker.
type Hub struct {
	log     *zap.Logger
	buffer  int
	origins []string

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, buffer: defaultBuffer, subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber for the given topics. On a closed hub
// the subscriber is returned already stopped.
func (h *Hub) Subscribe(topics ...string) *Subscriber {
	s := &Subscriber{
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.stop()
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.stop()
}

// Publish delivers ev to every subscriber of topic without blocking. A
// subscriber whose buffer is full is dropped.
func (h *Hub) Publish(topic string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if _, ok := s.topics[topic]; !ok {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.log.Warn("dropping slow realtime subscriber", zap.String("topic", topic), zap.String("event", ev.Type))
			delete(h.subs, s)
			s.stop()
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Run blocks until ctx is done and then stops every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.Close()
	return nil
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		s.stop()
	}
}
