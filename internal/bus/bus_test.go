package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) (*Bus, context.CancelFunc) {
	t.Helper()
	b := New(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return b, cancel
}

func TestSubscribeReceivesEmittedPayload(t *testing.T) {
	b, cancel := newTestBus(t)
	defer cancel()

	received := make(chan interface{}, 1)
	unsub := b.Subscribe(CLICommand, func(ctx context.Context, payload interface{}) {
		received <- payload
	})
	defer unsub()

	b.Emit(context.Background(), CLICommand, "hello")

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPerSubscriberOrderingPreserved(t *testing.T) {
	b, cancel := newTestBus(t)
	defer cancel()

	var mu sync.Mutex
	var order []int
	unsub := b.Subscribe(MusicCommand, func(ctx context.Context, payload interface{}) {
		mu.Lock()
		order = append(order, payload.(int))
		mu.Unlock()
	})
	defer unsub()

	for i := 0; i < 20; i++ {
		b.Emit(context.Background(), MusicCommand, i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 20
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b, cancel := newTestBus(t)
	defer cancel()

	calls := 0
	var mu sync.Mutex
	unsub := b.Subscribe(DebugCommand, func(ctx context.Context, payload interface{}) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	b.Emit(context.Background(), DebugCommand, "one")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	unsub()
	unsub() // idempotent, must not panic

	b.Emit(context.Background(), DebugCommand, "two")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestHandlerPanicDoesNotStopOtherSubscribers(t *testing.T) {
	b, cancel := newTestBus(t)
	defer cancel()

	okReceived := make(chan struct{}, 1)
	b.Subscribe(VoiceError, func(ctx context.Context, payload interface{}) {
		panic("boom")
	})
	b.Subscribe(VoiceError, func(ctx context.Context, payload interface{}) {
		okReceived <- struct{}{}
	})

	b.Emit(context.Background(), VoiceError, "x")

	select {
	case <-okReceived:
	case <-time.After(time.Second):
		t.Fatal("sibling subscriber never received event after panic")
	}
}

func TestEmitAfterStopDoesNotBlockOrPanic(t *testing.T) {
	b, cancel := newTestBus(t)
	cancel()
	time.Sleep(20 * time.Millisecond)

	assert.NotPanics(t, func() {
		b.Emit(context.Background(), CLICommand, "ignored")
	})
}

func TestNoCrossTopicDelivery(t *testing.T) {
	b, cancel := newTestBus(t)
	defer cancel()

	wrongTopic := make(chan struct{}, 1)
	unsub := b.Subscribe(MusicCommand, func(ctx context.Context, payload interface{}) {
		wrongTopic <- struct{}{}
	})
	defer unsub()

	b.Emit(context.Background(), DJCommand, "next")

	select {
	case <-wrongTopic:
		t.Fatal("received event for a topic it did not subscribe to")
	case <-time.After(100 * time.Millisecond):
	}
}
