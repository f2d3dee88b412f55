package eventbus

import (
	"context"
	"sync"
)

const memorySubscriberBuffer = 1024

// MemoryBus is an in-process Bus. Publish delivers to every matching
// subscriber before returning, so per-topic order is publish order.
type MemoryBus struct {
	mu   sync.Mutex
	subs []*memorySub
}

type memorySub struct {
	topics map[string]struct{}
	ch     chan Message
	done   <-chan struct{}
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish delivers the payload to all current subscribers of the topic.
// A subscriber whose context ended is dropped; a subscriber with a full
// buffer blocks delivery until it drains or its context ends.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := Message{Topic: topic, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	alive := make([]*memorySub, 0, len(b.subs))
	for _, sub := range b.subs {
		_, match := sub.topics[topic]
		if !match || err != nil {
			alive = append(alive, sub)
			continue
		}
		select {
		case <-sub.done:
			close(sub.ch)
			continue
		case sub.ch <- msg:
			alive = append(alive, sub)
		case <-ctx.Done():
			err = ctx.Err()
			alive = append(alive, sub)
		}
	}
	b.subs = alive
	return err
}

// Subscribe registers a consumer for the topics until ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (<-chan Message, error) {
	sub := &memorySub{
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan Message, memorySubscriberBuffer),
		done:   ctx.Done(),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.ch, nil
}
