package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/fleetcore/otamqtt/packet"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Consumer is the capability a subscriber must provide to receive delivered
// messages for its subscribed topics.
type Consumer interface {
	HandleMessage(*packet.Message)
}

// wireSubscriber is the slice of Client a Dispatcher needs: sending the
// actual SUBSCRIBE/UNSUBSCRIBE packets and waiting for their acks. Kept
// small so the dispatcher doesn't depend on the rest of Client.
type wireSubscriber interface {
	sendSubscribe(ctx context.Context, topic string) error
	sendUnsubscribe(ctx context.Context, topic string) error
}

// topicConsumers tracks which consumers are registered for one topic.
// Exact match only: wildcards are passed through to the broker but never
// matched locally.
type topicConsumers struct {
	mu  sync.RWMutex
	set map[Consumer]struct{}
}

// Dispatcher owns the topic->consumer table and fans out each inbound
// PUBLISH to every registered consumer in parallel.
type Dispatcher struct {
	mu     sync.RWMutex
	topics map[string]*topicConsumers
	wire   wireSubscriber
	log    zerolog.Logger

	watchdog Watchdog
}

// Watchdog is an optional external collaborator fed after every dispatch
// round that reaches at least one consumer. No OS watchdog syscalls live
// here; a concrete Watchdog is supplied by the caller.
type Watchdog interface {
	Arm(d time.Duration)
	Feed()
}

// NewDispatcher constructs an empty dispatcher bound to wire for sending
// SUBSCRIBE/UNSUBSCRIBE packets.
func NewDispatcher(wire wireSubscriber) *Dispatcher {
	return &Dispatcher{topics: make(map[string]*topicConsumers), wire: wire, log: zerolog.Nop()}
}

// WithLogger attaches a logger, returning d for chaining.
func (d *Dispatcher) WithLogger(log zerolog.Logger) *Dispatcher {
	d.log = log
	return d
}

// SetWatchdog installs an external watchdog. Dispatch calls its Feed after
// delivering a message to the topic's consumers; a message for a topic with
// no consumers does not feed it. The dispatcher never calls Arm.
func (d *Dispatcher) SetWatchdog(w Watchdog) {
	d.watchdog = w
}

// Subscribe registers c for topic, sending a wire SUBSCRIBE iff c is the
// first consumer of that topic (the empty->non-empty transition).
func (d *Dispatcher) Subscribe(ctx context.Context, topic string, c Consumer) error {
	d.mu.Lock()
	tc, ok := d.topics[topic]
	firstConsumer := false
	if !ok {
		tc = &topicConsumers{set: make(map[Consumer]struct{})}
		d.topics[topic] = tc
		firstConsumer = true
	}
	d.mu.Unlock()

	tc.mu.Lock()
	tc.set[c] = struct{}{}
	tc.mu.Unlock()

	if firstConsumer {
		return d.wire.sendSubscribe(ctx, topic)
	}
	return nil
}

// Unsubscribe removes c from topic, sending a wire UNSUBSCRIBE iff c was
// the last consumer (the non-empty->empty transition).
func (d *Dispatcher) Unsubscribe(ctx context.Context, topic string, c Consumer) error {
	d.mu.RLock()
	tc, ok := d.topics[topic]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	tc.mu.Lock()
	delete(tc.set, c)
	empty := len(tc.set) == 0
	tc.mu.Unlock()

	if !empty {
		return nil
	}

	d.mu.Lock()
	delete(d.topics, topic)
	d.mu.Unlock()

	return d.wire.sendUnsubscribe(ctx, topic)
}

// Dispatch delivers msg in parallel to every consumer subscribed to its
// topic, waiting for all of them to finish before the caller's read loop
// processes the next message. A consumer that panics is logged and does not
// affect sibling deliveries or the caller.
func (d *Dispatcher) Dispatch(msg *packet.Message) error {
	d.mu.RLock()
	tc, ok := d.topics[msg.Topic]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	tc.mu.RLock()
	consumers := make([]Consumer, 0, len(tc.set))
	for c := range tc.set {
		consumers = append(consumers, c)
	}
	tc.mu.RUnlock()

	group, _ := errgroup.WithContext(context.Background())
	for _, c := range consumers {
		c := c
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error().Interface("panic", r).Str("topic", msg.Topic).
						Msg("consumer panicked handling message, discarding")
					err = nil
				}
			}()
			c.HandleMessage(msg)
			return nil
		})
	}
	err := group.Wait()
	if d.watchdog != nil {
		d.watchdog.Feed()
	}
	return err
}
