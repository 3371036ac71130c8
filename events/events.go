// Package events carries outcome notifications from the radio state
// machine to its consumers (console echo, trace log, monitor stream).
//
// The hub is a single-producer, multi-consumer broadcast with bounded
// per-subscriber buffers. Publishing never blocks: a subscriber that
// falls behind loses its oldest unread events, not the producer's
// liveness. A consumer that needs current state should query the state
// machine rather than replay history.
package events

import (
	"fmt"
	"sync"
	"time"
)

// Type discriminates the event variants.
type Type int

//goland:noinspection GoUnnecessarilyExportedIdentifiers
const (
	ModeChanged Type = iota
	FrequencyChanged
	VolumeChanged
	SeekResult
	OperationError
)

func (t Type) String() string {
	switch t {
	case ModeChanged:
		return "mode_changed"
	case FrequencyChanged:
		return "frequency_changed"
	case VolumeChanged:
		return "volume_changed"
	case SeekResult:
		return "seek_result"
	case OperationError:
		return "error"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Event is one completed-operation outcome. Immutable after creation;
// only the fields relevant to the Type are set.
type Event struct {
	Type Type
	Time time.Time

	Mode      string
	Frequency uint16
	Volume    int
	Muted     bool
	Found     bool
	Err       string
}

// DefaultCapacity is the per-subscriber buffer depth.
const DefaultCapacity = 16

// Subscriber receives the event stream through a bounded channel.
type Subscriber struct {
	name    string
	ch      chan Event
	dropped uint64
}

// Events returns the receive side of the subscriber's buffer.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Name identifies the subscriber in logs.
func (s *Subscriber) Name() string {
	return s.name
}

// Hub broadcasts every published event to all current subscribers in
// publish order.
type Hub struct {
	mu       sync.Mutex
	subs     map[*Subscriber]struct{}
	capacity int
	closed   bool
}

// NewHub creates a hub with the given per-subscriber buffer capacity.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		subs:     make(map[*Subscriber]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a named consumer. The returned subscriber must be
// released with Unsubscribe when the consumer stops reading.
func (h *Hub) Subscribe(name string) *Subscriber {
	sub := &Subscriber{
		name: name,
		ch:   make(chan Event, h.capacity),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the consumer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Publish delivers ev to every subscriber. A full subscriber buffer
// drops its oldest unread event to make room.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		// Buffer full: evict the oldest, then retry once. The inner
		// default covers a consumer that raced us and drained.
		select {
		case <-sub.ch:
			sub.dropped++
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Dropped reports how many events the subscriber has lost to overflow.
func (h *Hub) Dropped(sub *Subscriber) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sub.dropped
}

// Close shuts the hub down and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
	}
	h.subs = nil
}
