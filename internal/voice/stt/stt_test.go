package stt

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
	writes [][]byte
	closed bool
}

func (f *fakeSession) Write(samples []byte) error {
	f.writes = append(f.writes, samples)
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	session *fakeSession
	emit    []Segment
}

func (f *fakeOpener) Open(ctx context.Context, segments chan<- Segment) (Session, error) {
	go func() {
		for _, seg := range f.emit {
			segments <- seg
		}
	}()
	return f.session, nil
}

func newTestEnv(t *testing.T) (*bus.Bus, context.CancelFunc) {
	t.Helper()
	b := bus.New(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return b, cancel
}

func TestInterimAndFinalSegmentsRouteToDistinctTopics(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	opener := &fakeOpener{
		session: &fakeSession{},
		emit: []Segment{
			{Text: "hel", IsFinal: false},
			{Text: "hello there", IsFinal: true},
		},
	}
	svc := New(b, zap.NewNop().Sugar(), opener, DefaultConfig())
	require.NoError(t, svc.Start(context.Background()))

	var interim, final []string
	b.Subscribe(bus.TranscriptionInterim, func(ctx context.Context, payload interface{}) {
		interim = append(interim, payload.(bus.TranscriptionSegmentPayload).Text)
	})
	b.Subscribe(bus.TranscriptionFinal, func(ctx context.Context, payload interface{}) {
		final = append(final, payload.(bus.TranscriptionSegmentPayload).Text)
	})

	b.Emit(context.Background(), bus.VoiceListeningStarted, struct{}{})

	require.Eventually(t, func() bool {
		return len(interim) == 1 && len(final) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, "hel", interim[0])
	assert.Equal(t, "hello there", final[0])
	require.Eventually(t, func() bool { return svc.Transcript() == "hello there" }, time.Second, time.Millisecond)
}

func TestAudioChunksForwardedToSession(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	session := &fakeSession{}
	opener := &fakeOpener{session: session}
	svc := New(b, zap.NewNop().Sugar(), opener, DefaultConfig())
	require.NoError(t, svc.Start(context.Background()))

	b.Emit(context.Background(), bus.VoiceListeningStarted, struct{}{})
	require.Eventually(t, func() bool { return svc.session != nil }, time.Second, time.Millisecond)

	b.Emit(context.Background(), bus.AudioChunk, bus.AudioChunkPayload{Samples: []byte{9, 9, 9}})

	require.Eventually(t, func() bool { return len(session.writes) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []byte{9, 9, 9}, session.writes[0])
}

func TestListeningStoppedClosesSession(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	session := &fakeSession{}
	opener := &fakeOpener{session: session}
	svc := New(b, zap.NewNop().Sugar(), opener, DefaultConfig())
	require.NoError(t, svc.Start(context.Background()))

	b.Emit(context.Background(), bus.VoiceListeningStarted, struct{}{})
	require.Eventually(t, func() bool { return svc.session != nil }, time.Second, time.Millisecond)

	b.Emit(context.Background(), bus.VoiceListeningStopped, struct{}{})
	require.Eventually(t, func() bool { return session.closed }, time.Second, time.Millisecond)
}
