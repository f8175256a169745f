package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
)

func newTestEnv(t *testing.T) (*bus.Bus, context.CancelFunc) {
	t.Helper()
	b := bus.New(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return b, cancel
}

func TestStartIsIdempotentAndReachesRunning(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	svc := New("test-svc", b, zap.NewNop().Sugar())
	calls := 0
	err := svc.Start(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Running, svc.Status())

	err = svc.Start(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second Start must not re-invoke the hook")
}

func TestStartFailureSetsErrorStatus(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	svc := New("test-svc", b, zap.NewNop().Sugar())
	err := svc.Start(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, Error, svc.Status())
}

func TestStopRemovesSubscriptions(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	svc := New("test-svc", b, zap.NewNop().Sugar())
	require.NoError(t, svc.Start(context.Background(), nil))

	received := make(chan struct{}, 1)
	svc.Subscribe(bus.CLICommand, func(ctx context.Context, payload interface{}) {
		received <- struct{}{}
	})

	require.NoError(t, svc.Stop(context.Background(), nil))
	assert.Equal(t, Stopped, svc.Status())

	b.Emit(context.Background(), bus.CLICommand, "after-stop")
	select {
	case <-received:
		t.Fatal("handler still receiving events after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopIsIdempotent(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	svc := New("test-svc", b, zap.NewNop().Sugar())
	require.NoError(t, svc.Start(context.Background(), nil))

	calls := 0
	hook := func(ctx context.Context) error {
		calls++
		return nil
	}
	require.NoError(t, svc.Stop(context.Background(), hook))
	require.NoError(t, svc.Stop(context.Background(), hook))
	assert.Equal(t, 1, calls)
}

func TestStopHookErrorDoesNotPreventShutdown(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	svc := New("test-svc", b, zap.NewNop().Sugar())
	require.NoError(t, svc.Start(context.Background(), nil))

	err := svc.Stop(context.Background(), func(ctx context.Context) error {
		return errors.New("cleanup failed")
	})
	require.NoError(t, err, "Stop itself must still succeed")
	assert.Equal(t, Stopped, svc.Status())
}

func TestMarkDegradedEmitsStatusUpdate(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	received := make(chan bus.ServiceStatusPayload, 1)
	b.Subscribe(bus.ServiceStatusUpdate, func(ctx context.Context, payload interface{}) {
		if p, ok := payload.(bus.ServiceStatusPayload); ok && p.Status == string(Degraded) {
			received <- p
		}
	})

	svc := New("test-svc", b, zap.NewNop().Sugar())
	require.NoError(t, svc.Start(context.Background(), nil))
	svc.MarkDegraded(context.Background(), "vendor retries exhausted")

	select {
	case p := <-received:
		assert.Equal(t, "test-svc", p.Service)
		assert.Equal(t, "vendor retries exhausted", p.Message)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for degraded status update")
	}
}
