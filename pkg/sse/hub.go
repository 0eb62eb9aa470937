// Package sse implements a topic-based hub for pushing job events to
// subscribed HTTP clients.
package sse

import "sync"

// Hub broadcasts messages published on a topic to every channel subscribed
// to that topic. Subscribers own their channels; the hub only sends, and a
// subscriber that is not reading has messages dropped rather than blocking
// the publisher.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[chan []byte]bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan []byte]bool)}
}

func (h *Hub) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[chan []byte]bool)
		h.topics[topic] = subs
	}
	subs[ch] = true
	return ch
}

func (h *Hub) Unsubscribe(topic string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) Publish(topic string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[topic] {
		select {
		case ch <- msg:
		default:
			// drop if client not reading
		}
	}
}
