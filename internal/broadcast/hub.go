package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"marketchat/backend/pkg/logger"
	"marketchat/backend/pkg/metrics"
)

const defaultSubscriberBuffer = 64

// Hub is the in-process Broadcaster. It keeps a set of subscriber channels
// per topic; a subscriber whose channel is full is dropped rather than
// allowing one slow client to stall a publish.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	logger *logger.Logger
}

// Subscription is one listener on a topic. Payloads arrive on C as the JSON
// encoding of the published message.
type Subscription struct {
	Topic string
	C     chan []byte

	hub    *Hub
	closed bool
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		logger: log,
	}
}

// Subscribe registers a new listener on the topic
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		Topic: topic,
		C:     make(chan []byte, defaultSubscriberBuffer),
		hub:   h,
	}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "topic", topic)
	return sub
}

// Close removes the subscription from its topic and closes its channel
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// removeLocked deletes the subscription; callers hold h.mu
func (h *Hub) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	if subs, ok := h.topics[sub.Topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.Topic)
		}
	}
	sub.closed = true
	close(sub.C)
}

// Publish implements Broadcaster. The message is JSON-encoded once and the
// same payload is handed to every subscriber of the topic.
func (h *Hub) Publish(ctx context.Context, topic string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.Deliver(topic, payload)
	return nil
}

// Deliver hands an already-encoded payload to every subscriber of the topic.
// Subscribers with a full channel are dropped.
func (h *Hub) Deliver(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[topic]
	if len(subs) == 0 {
		return
	}

	metrics.BroadcastsPublished.Inc()
	for sub := range subs {
		select {
		case sub.C <- payload:
		default:
			h.logger.Warn("dropping slow subscriber", "topic", topic)
			h.removeLocked(sub)
		}
	}
}

// SubscriberCount returns the number of live subscribers on a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
