// Package events fans lifecycle events out to in-process subscribers and
// external publishers.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

const defaultBuffer = 64

// Publisher is anything that accepts lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev domain.LifecycleEvent) error
}

// Bus delivers events to subscribers without blocking the publisher. A
// subscriber whose buffer is full misses the event.
type Bus struct {
	subscribers *xsync.Map[uint64, *subscriber]
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	buffer      int
}

func NewBus() *Bus {
	return &Bus{
		subscribers: xsync.NewMap[uint64, *subscriber](),
		buffer:      defaultBuffer,
	}
}

// Subscribe returns a channel of events for jobID, or for every job when
// jobID is empty, and a func that ends the subscription and closes the channel.
func (b *Bus) Subscribe(jobID string) (<-chan domain.LifecycleEvent, func()) {
	id := b.nextID.Add(1)
	sub := &subscriber{ch: make(chan domain.LifecycleEvent, b.buffer), jobID: jobID}
	b.subscribers.Store(id, sub)

	return sub.ch, func() {
		if s, ok := b.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}
}

func (b *Bus) Publish(_ context.Context, ev domain.LifecycleEvent) error {
	b.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if !sub.trySend(ev) {
			b.dropped.Add(1)
		}
		return true
	})
	return nil
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	return b.subscribers.Size()
}

// Dropped returns how many deliveries were skipped because a subscriber lagged.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

type subscriber struct {
	ch     chan domain.LifecycleEvent
	jobID  string
	mu     sync.Mutex
	closed bool
}

// trySend reports false only when the event was meant for this subscriber
// and its buffer was full.
func (s *subscriber) trySend(ev domain.LifecycleEvent) bool {
	if s.jobID != "" && s.jobID != ev.JobID {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
