package events

import (
	"sync"
	"sync/atomic"
)

const defaultBuffer = 256

// Bus fans events out to per-topic subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool

	termMu   sync.Mutex
	terminal map[string]Event

	dropped atomic.Uint64
}

// NewBus creates a bus whose subscribers buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		terminal: make(map[string]Event),
		buffer:   buffer,
	}
}

// Publish delivers evt to every matching subscriber without blocking.
// Subscribers whose buffer is full miss the event.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if sub.topic != "" && sub.topic != evt.Topic {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
	if evt.Status.Terminal() {
		b.termMu.Lock()
		b.terminal[evt.Topic] = evt
		b.termMu.Unlock()
	}
}

// Subscribe registers for topic. An empty topic receives every event. With
// replayTerminal set, the last retained terminal event for the topic is
// queued first.
func (b *Bus) Subscribe(topic string, replayTerminal bool) *Subscription {
	sub := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, b.buffer),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		sub.closed = true
		return sub
	}
	if replayTerminal {
		b.termMu.Lock()
		for _, t := range Topics() {
			evt, ok := b.terminal[t]
			if !ok || (topic != "" && topic != t) {
				continue
			}
			select {
			case sub.ch <- evt:
			default:
			}
		}
		if evt, ok := b.terminal[topic]; ok && topic != "" && !KnownTopic(topic) {
			select {
			case sub.ch <- evt:
			default:
			}
		}
		b.termMu.Unlock()
	}
	b.subs[sub] = struct{}{}
	return sub
}

// LastTerminal returns the most recent terminal event published on topic.
func (b *Bus) LastTerminal(topic string) (Event, bool) {
	b.termMu.Lock()
	defer b.termMu.Unlock()
	evt, ok := b.terminal[topic]
	return evt, ok
}

// Dropped returns how many deliveries were skipped because a subscriber
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.closed = true
		close(sub.ch)
	}
	b.subs = map[*Subscription]struct{}{}
}

// Subscription receives events for one topic.
type Subscription struct {
	bus    *Bus
	topic  string
	ch     chan Event
	closed bool
}

// Events returns the delivery channel. It is closed by Close or Bus.Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Topic returns the subscribed topic; empty means all topics.
func (s *Subscription) Topic() string {
	return s.topic
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(b.subs, s)
	close(s.ch)
}
