// Package notify fans out conversation events to live websocket
// subscribers. Delivery is advisory: the persisted record is the source of
// truth and a dropped event only delays a client until its next poll.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/parleyhq/parley/internal/logging"
)

const subscriberBuffer = 256

// Envelope wraps every pushed event with the conversation it belongs to.
type Envelope struct {
	ConversationKey string `json:"conversationKey"`
	Payload         any    `json:"payload"`
}

// Subscriber is one live connection's view of the hub: a bounded outbound
// queue plus the set of conversation keys it listens to.
type Subscriber struct {
	memberID string

	mu     sync.Mutex
	keys   map[string]struct{}
	closed bool

	send chan []byte
}

// Out is the channel the connection's write loop drains. It is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) Out() <-chan []byte { return s.send }

// MemberID returns the authenticated member this subscriber belongs to.
func (s *Subscriber) MemberID() string { return s.memberID }

// Listen adds conversation keys to the subscription set.
func (s *Subscriber) Listen(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

// Mute removes conversation keys from the subscription set.
func (s *Subscriber) Mute(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
}

func (s *Subscriber) wants(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// trySend queues data for the write loop. It reports false only when the
// queue is full; a closed subscriber swallows the event. Sending under the
// mutex keeps close from racing an in-flight send.
func (s *Subscriber) trySend(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Hub tracks subscribers and routes published events to the ones listening
// on the event's conversation key.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	logger      logging.Logger
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a new subscriber for the member. The caller owns the
// returned subscriber and must Unsubscribe it when the connection ends.
func (h *Hub) Subscribe(memberID string) *Subscriber {
	s := &Subscriber{
		memberID: memberID,
		keys:     make(map[string]struct{}),
		send:     make(chan []byte, subscriberBuffer),
	}
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the subscriber and closes its outbound channel.
// Unsubscribing twice is a no-op.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	delete(h.subscribers, s)
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

// Publish sends the event to every subscriber listening on the key. A
// subscriber whose queue is full is dropped rather than blocking the
// publisher.
func (h *Hub) Publish(conversationKey string, event any) {
	ctx := context.Background()
	data, err := json.Marshal(Envelope{ConversationKey: conversationKey, Payload: event})
	if err != nil {
		h.logger.Error(ctx, "marshaling event", "key", conversationKey, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		if s.wants(conversationKey) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.trySend(data) {
			h.logger.Warn(ctx, "dropping slow subscriber", "member", s.memberID)
			h.Unsubscribe(s)
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
