package tts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
)

type fakeSession struct {
	amplitudes chan AmplitudeSample
	waitDone   chan struct{}
	stopped    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		amplitudes: make(chan AmplitudeSample, 4),
		waitDone:   make(chan struct{}),
	}
}

func (f *fakeSession) Amplitudes() <-chan AmplitudeSample { return f.amplitudes }

func (f *fakeSession) Wait(ctx context.Context) error {
	select {
	case <-f.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSession) Stop() error {
	f.stopped = true
	close(f.waitDone)
	return nil
}

type fakeOpener struct {
	session *fakeSession
}

func (f *fakeOpener) Open(ctx context.Context, text string) (Session, error) {
	return f.session, nil
}

func newTestEnv(t *testing.T) (*bus.Bus, context.CancelFunc) {
	t.Helper()
	b := bus.New(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return b, cancel
}

func TestLLMResponseTriggersSynthesisLifecycle(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	session := newFakeSession()
	svc := New(b, zap.NewNop().Sugar(), &fakeOpener{session: session}, DefaultConfig())
	require.NoError(t, svc.Start(context.Background()))

	var started, completed, ended bool
	b.Subscribe(bus.SpeechSynthesisStarted, func(ctx context.Context, payload interface{}) { started = true })
	b.Subscribe(bus.SpeechSynthesisCompleted, func(ctx context.Context, payload interface{}) { completed = true })
	b.Subscribe(bus.SpeechSynthesisEnded, func(ctx context.Context, payload interface{}) { ended = true })

	b.Emit(context.Background(), bus.LLMResponse, bus.LLMResponsePayload{Text: "hello there", IsComplete: true})

	require.Eventually(t, func() bool { return started }, time.Second, time.Millisecond)
	session.amplitudes <- AmplitudeSample{Level: 0.5}
	close(session.amplitudes)
	session.Stop()

	require.Eventually(t, func() bool { return completed && ended }, time.Second, time.Millisecond)
}

func TestIncompleteLLMResponseIsIgnored(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	session := newFakeSession()
	svc := New(b, zap.NewNop().Sugar(), &fakeOpener{session: session}, DefaultConfig())
	require.NoError(t, svc.Start(context.Background()))

	var started bool
	b.Subscribe(bus.SpeechSynthesisStarted, func(ctx context.Context, payload interface{}) { started = true })

	b.Emit(context.Background(), bus.LLMResponse, bus.LLMResponsePayload{Text: "partial", IsComplete: false})
	time.Sleep(20 * time.Millisecond)
	assert.False(t, started)
}

func TestStopHaltsInProgressPlayback(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	session := newFakeSession()
	svc := New(b, zap.NewNop().Sugar(), &fakeOpener{session: session}, DefaultConfig())
	require.NoError(t, svc.Start(context.Background()))

	b.Emit(context.Background(), bus.LLMResponse, bus.LLMResponsePayload{Text: "hello", IsComplete: true})
	require.Eventually(t, func() bool { return svc.session != nil }, time.Second, time.Millisecond)

	require.NoError(t, svc.Stop(context.Background()))
	assert.True(t, session.stopped)
}
