package music

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/mode"
)

type fakePlayer struct {
	mu      sync.Mutex
	path    string
	volume  int
	stopped bool
	ended   bool
}

func (f *fakePlayer) Play(path string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
	f.volume = volume
	return nil
}

func (f *fakePlayer) SetVolume(volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return nil
}

func (f *fakePlayer) Position() (time.Duration, time.Duration, error) {
	return 10 * time.Second, 100 * time.Second, nil
}

func (f *fakePlayer) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

func (f *fakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakePlayer) getVolume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func newTestEnv(t *testing.T) (*bus.Bus, context.CancelFunc) {
	t.Helper()
	b := bus.New(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return b, cancel
}

func newTestService(t *testing.T, b *bus.Bus, players *[]*fakePlayer) *Service {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.mp3"), []byte("x"), 0o644))

	cfg := DefaultConfig()
	cfg.MusicDir = dir
	cfg.ProgressInterval = 5 * time.Millisecond

	factory := func() Player {
		p := &fakePlayer{}
		*players = append(*players, p)
		return p
	}

	svc := New(b, zap.NewNop().Sugar(), factory, &fixedProber{duration: 100}, cfg)
	require.NoError(t, svc.Start(context.Background()))
	return svc
}

func TestPlayCommandStartsPlaybackAndEmitsStarted(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	var players []*fakePlayer
	svc := newTestService(t, b, &players)

	var started bus.MusicPlaybackStartedPayload
	b.Subscribe(bus.MusicPlaybackStarted, func(ctx context.Context, payload interface{}) {
		started = payload.(bus.MusicPlaybackStartedPayload)
	})

	b.Emit(context.Background(), bus.MusicCommand, bus.MusicCommandPayload{Action: "play", SongQuery: "1"})

	require.Eventually(t, func() bool { return started.TrackName != "" }, time.Second, time.Millisecond)
	assert.Equal(t, "one", started.TrackName)
	require.Len(t, players, 1)
	assert.Equal(t, svc.cfg.NormalVolume, players[0].volume)
}

func TestStopCommandReleasesPlayer(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	var players []*fakePlayer
	newTestService(t, b, &players)

	var stopped bool
	b.Subscribe(bus.MusicPlaybackStopped, func(ctx context.Context, payload interface{}) { stopped = true })

	b.Emit(context.Background(), bus.MusicCommand, bus.MusicCommandPayload{Action: "play", SongQuery: "1"})
	require.Eventually(t, func() bool { return len(players) == 1 }, time.Second, time.Millisecond)

	b.Emit(context.Background(), bus.MusicCommand, bus.MusicCommandPayload{Action: "stop"})

	require.Eventually(t, func() bool { return stopped }, time.Second, time.Millisecond)
	assert.True(t, players[0].stopped)
}

func TestSpeechStartedDucksVolumeInInteractiveMode(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	var players []*fakePlayer
	svc := newTestService(t, b, &players)
	svc.currentMode = mode.Interactive

	b.Emit(context.Background(), bus.MusicCommand, bus.MusicCommandPayload{Action: "play", SongQuery: "1"})
	require.Eventually(t, func() bool { return len(players) == 1 }, time.Second, time.Millisecond)

	b.Emit(context.Background(), bus.SpeechSynthesisStarted, bus.SpeechSynthesisPayload{})
	require.Eventually(t, func() bool { return players[0].getVolume() == svc.cfg.DuckingVolume }, time.Second, time.Millisecond)

	b.Emit(context.Background(), bus.SpeechSynthesisEnded, bus.SpeechSynthesisPayload{})
	require.Eventually(t, func() bool { return players[0].getVolume() == svc.cfg.NormalVolume }, time.Second, time.Millisecond)
}

func TestModeChangeToIdleStopsPlayback(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	var players []*fakePlayer
	newTestService(t, b, &players)

	b.Emit(context.Background(), bus.MusicCommand, bus.MusicCommandPayload{Action: "play", SongQuery: "1"})
	require.Eventually(t, func() bool { return len(players) == 1 }, time.Second, time.Millisecond)

	b.Emit(context.Background(), bus.SystemModeChange, bus.ModeChangePayload{NewMode: "IDLE"})

	require.Eventually(t, func() bool { return players[0].stopped }, time.Second, time.Millisecond)
}

func TestPlayUnknownQueryRespondsWithError(t *testing.T) {
	b, cancel := newTestEnv(t)
	defer cancel()

	var players []*fakePlayer
	newTestService(t, b, &players)

	var resp bus.CLIResponsePayload
	b.Subscribe(bus.CLIResponse, func(ctx context.Context, payload interface{}) {
		resp = payload.(bus.CLIResponsePayload)
	})

	b.Emit(context.Background(), bus.MusicCommand, bus.MusicCommandPayload{Action: "play", SongQuery: "nonexistent"})

	require.Eventually(t, func() bool { return resp.Message != "" }, time.Second, time.Millisecond)
	assert.Equal(t, "error", resp.Severity)
	assert.Empty(t, players)
}
