// Package bus implements the typed, topic-addressed publish/subscribe bus
// that every CantinaOS service communicates through. It guarantees
// at-most-once delivery and per-subscriber ordering, and accepts emissions
// from arbitrary goroutines (mic capture threads, vendor SDK callbacks)
// without requiring those callers to know about the bus's internal loop.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler processes one delivered event. It must not block indefinitely;
// a handler that panics is recovered and logged, and does not take down
// the bus's dispatch loop or other subscribers.
type Handler func(ctx context.Context, payload interface{})

// inboundQueueSize bounds the hand-off channel every Emit call feeds,
// regardless of the calling goroutine. Background producers (mic capture,
// vendor STT callbacks) and the services' own scheduler-loop calls all
// funnel through it; one bus-owned goroutine drains it in order. Sized
// generously since mic/transcription callbacks can burst; a full queue
// drops the event and logs rather than blocking the producer.
const inboundQueueSize = 256

// subscriberQueueSize bounds each subscriber's private delivery channel.
// A slow handler drops events rather than stalling the dispatch loop or
// other subscribers on the same topic.
const subscriberQueueSize = 64

type event struct {
	topic   Topic
	payload interface{}
}

type subscription struct {
	id      uint64
	handler Handler
	queue   chan event
	done    chan struct{}
}

// Bus is the central event dispatcher. Zero value is not usable; build one
// with New.
type Bus struct {
	logger *zap.SugaredLogger

	inbound chan event

	mu   sync.RWMutex
	subs map[Topic][]*subscription

	nextSubID uint64

	stopOnce sync.Once
	stopped  chan struct{}
}

// New constructs a Bus. The returned bus does nothing until Run is called.
func New(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		logger:  logger.Named("bus"),
		inbound: make(chan event, inboundQueueSize),
		subs:    make(map[Topic][]*subscription),
		stopped: make(chan struct{}),
	}
}

// Run drains the inbound hand-off queue until ctx is cancelled, dispatching
// each event to every subscriber on its topic. Call this once, typically
// from its own goroutine started by the service container at startup.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.shutdownSubscribers()
			return
		case ev := <-b.inbound:
			b.dispatch(ev)
		}
	}
}

// Emit publishes payload on topic. Safe to call from any goroutine: the
// event is handed off through a bounded queue and dispatched in order by
// the bus's own Run loop, matching spec's thread-to-loop hand-off model.
// Drops and logs rather than blocking the caller if the queue is full or
// the bus has already stopped.
func (b *Bus) Emit(_ context.Context, topic Topic, payload interface{}) {
	select {
	case <-b.stopped:
		b.logger.Debugw("bus stopped, dropping event", "topic", topic)
		return
	default:
	}
	select {
	case b.inbound <- event{topic: topic, payload: payload}:
	default:
		b.logger.Warnw("inbound queue full, dropping event", "topic", topic)
	}
}

func (b *Bus) dispatch(ev event) {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[ev.topic]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub.queue <- ev:
		default:
			b.logger.Warnw("subscriber queue full, dropping event",
				"topic", ev.topic, "subscriber", sub.id)
		}
	}
}

// Subscribe registers handler to be called, in order, for every event
// published on topic. Returns an Unsubscribe func which is idempotent and
// safe to call multiple times.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	id := atomic.AddUint64(&b.nextSubID, 1)
	sub := &subscription{
		id:      id,
		handler: handler,
		queue:   make(chan event, subscriberQueueSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	go b.runSubscriber(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			list := b.subs[topic]
			for i, s := range list {
				if s.id == id {
					b.subs[topic] = append(list[:i], list[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

func (b *Bus) runSubscriber(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case ev := <-sub.queue:
			b.invoke(sub, ev)
		}
	}
}

// invoke calls the subscriber's handler with panic recovery, converting a
// panicking handler into a logged error rather than a crashed process.
func (b *Bus) invoke(sub *subscription, ev event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("handler panicked",
				"topic", ev.topic, "subscriber", sub.id, "recovered", fmt.Sprint(r))
		}
	}()
	sub.handler(context.Background(), ev.payload)
}

func (b *Bus) shutdownSubscribers() {
	b.stopOnce.Do(func() {
		close(b.stopped)
	})
}
