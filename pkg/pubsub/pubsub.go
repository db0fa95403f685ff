// Package pubsub fans graph events out to subscribers by event kind.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/pvcgraph/pkg/islands"
)

// TopicAll receives every event regardless of kind
const TopicAll = "*"

// DefaultBuffer is the per-subscription channel capacity
const DefaultBuffer = 100

// ErrShutdown is returned when subscribing to a closed PubSub
var ErrShutdown = errors.New("pubsub is shut down")

// PubSub publishes graph events to subscribers. It implements
// islands.EventSink, so it can be handed to a graph directly.
//
// Publishing never blocks the graph: events for a subscriber whose buffer is
// full are dropped and counted. Channels are sent on under mu's read lock and
// closed only under its write lock, so a subscription ending concurrently
// with a publish cannot close a channel mid-send.
type PubSub struct {
	subscribers map[string]map[*Subscription]bool
	mu          sync.RWMutex
	buffer      int
	dropped     atomic.Uint64
	shutdown    chan struct{}
	isShutdown  bool // guarded by mu
}

// Subscription represents a subscription to a topic
type Subscription struct {
	topic     string
	channel   chan islands.Event
	ps        *PubSub
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	return NewPubSubWithBuffer(DefaultBuffer)
}

// NewPubSubWithBuffer creates a PubSub whose subscriptions buffer n events
func NewPubSubWithBuffer(n int) *PubSub {
	if n < 1 {
		n = 1
	}
	return &PubSub{
		subscribers: make(map[string]map[*Subscription]bool),
		buffer:      n,
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a subscription to a topic: an event kind such as
// "island.split", or TopicAll. The subscription ends when ctx is cancelled.
func (ps *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan islands.Event, ps.buffer),
		ps:      ps,
		ctx:     subCtx,
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.isShutdown {
		ps.mu.Unlock()
		cancel()
		return nil, ErrShutdown
	}
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			// Shutdown closes the channel
			cancel()
		}
	}()

	return sub, nil
}

// SubscribeKind subscribes to a single event kind
func (ps *PubSub) SubscribeKind(ctx context.Context, kind islands.EventKind) (*Subscription, error) {
	return ps.Subscribe(ctx, string(kind))
}

// HandleEvent implements islands.EventSink. The event goes to subscribers of
// its kind and to TopicAll subscribers.
func (ps *PubSub) HandleEvent(e islands.Event) {
	ps.Publish(string(e.Kind), e)
	ps.Publish(TopicAll, e)
}

// Publish sends an event to all subscribers of a topic without blocking
func (ps *PubSub) Publish(topic string, e islands.Event) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if ps.isShutdown {
		return
	}

	// Sends never block, so holding the read lock across them is safe
	for sub := range ps.subscribers[topic] {
		select {
		case sub.channel <- e:
		default:
			ps.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were discarded because a subscriber was full
func (ps *PubSub) Dropped() uint64 {
	return ps.dropped.Load()
}

// GetSubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) GetSubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// Shutdown closes all subscriptions and shuts down the PubSub
func (ps *PubSub) Shutdown() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.isShutdown {
		return
	}
	ps.isShutdown = true
	close(ps.shutdown)

	for topic, subs := range ps.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(ps.subscribers, topic)
	}
}

// Topic returns the subscription's topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Channel returns the subscription's event channel. It is closed when the
// subscription ends.
func (s *Subscription) Channel() <-chan islands.Event {
	return s.channel
}

// Unsubscribe removes the subscription
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()

	if s.ps.subscribers[s.topic] != nil {
		delete(s.ps.subscribers[s.topic], s)
		if len(s.ps.subscribers[s.topic]) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}

	s.close()
}

// close must be called with ps.mu held for writing
func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
