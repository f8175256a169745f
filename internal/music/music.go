package music

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/mode"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// Player is the vendor-neutral playback abstraction this service drives
// — a stand-in for the teacher's direct `vlc.MediaPlayer` use, since
// SPEC_FULL.md keeps audio backends external to this core.
type Player interface {
	// Play begins playback of path at the given volume (0-100).
	Play(path string, volume int) error
	SetVolume(volume int) error
	// Position reports elapsed/total playback time.
	Position() (elapsed, total time.Duration, err error)
	// Stopped reports whether playback has reached the end of the track
	// on its own (natural end-of-track, not an explicit Stop call).
	Stopped() bool
	Stop() error
}

// Config controls volumes and the scan directory, mirroring
// MusicControllerConfig.
type Config struct {
	MusicDir      string
	NormalVolume  int
	DuckingVolume int
	// ProgressInterval is how often music.progress is emitted while
	// playing.
	ProgressInterval time.Duration
}

// DefaultConfig matches the teacher's field defaults.
func DefaultConfig() Config {
	return Config{
		MusicDir:         "assets/music",
		NormalVolume:     70,
		DuckingVolume:    30,
		ProgressInterval: time.Second,
	}
}

// PlayerFactory constructs a fresh Player for each playback, matching
// the teacher's "new vlc.MediaPlayer per track" pattern — acquiring a
// new player rather than reusing one avoids stale decoder state from a
// previous file.
type PlayerFactory func() Player

// Service owns the track library and the single in-flight player,
// enforcing the "at most one player exists at any time" invariant.
type Service struct {
	*service.Base

	cfg           Config
	newPlayer     PlayerFactory
	prober        DurationProber
	library       *Library

	currentMode   mode.Mode

	// mu guards everything below: player state is mutated both from the
	// bus.MusicCommand subscriber goroutine (play/stopPlayback/duck/unduck)
	// and from the per-track trackProgress goroutine it spawns, and only
	// one player may exist at a time.
	mu          sync.Mutex
	isDucking   bool
	player      Player
	currentName string
	cancelPlay  context.CancelFunc
}

// New constructs a music Service. newPlayer must return a usable Player
// for each call; prober may be nil to skip duration probing.
func New(b *bus.Bus, logger *zap.SugaredLogger, newPlayer PlayerFactory, prober DurationProber, cfg Config) *Service {
	return &Service{
		Base:        service.New("music_controller", b, logger),
		cfg:         cfg,
		newPlayer:   newPlayer,
		prober:      prober,
		library:     NewLibrary(),
		currentMode: mode.Idle,
	}
}

// Start loads the library and subscribes to music commands, mode
// changes, and speech synthesis ducking events.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		if _, err := s.library.Load(s.cfg.MusicDir, s.prober); err != nil {
			s.Logger().Warnw("music library load failed", "dir", s.cfg.MusicDir, "error", err)
		} else {
			s.Logger().Infow("music library loaded", "tracks", s.library.Len())
		}

		s.Subscribe(bus.MusicCommand, func(ctx context.Context, payload interface{}) {
			s.handleCommand(ctx, payload)
		})
		s.Subscribe(bus.SystemModeChange, func(ctx context.Context, payload interface{}) {
			s.handleModeChange(ctx, payload)
		})
		s.Subscribe(bus.SpeechSynthesisStarted, func(ctx context.Context, payload interface{}) {
			s.duck(ctx)
		})
		s.Subscribe(bus.SpeechSynthesisCompleted, func(ctx context.Context, payload interface{}) {
			s.unduck(ctx)
		})
		s.Subscribe(bus.SpeechSynthesisEnded, func(ctx context.Context, payload interface{}) {
			s.unduck(ctx)
		})
		return nil
	})
}

// Library returns the service's track library, for the web bridge's
// read-only /api/music/library endpoint to list the same tracks this
// service plays from.
func (s *Service) Library() *Library {
	return s.library
}

// Stop releases any in-progress playback.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		s.stopPlayback(ctx)
		return nil
	})
}

func (s *Service) handleCommand(ctx context.Context, payload interface{}) {
	cmd, ok := payload.(bus.MusicCommandPayload)
	if !ok {
		return
	}
	switch cmd.Action {
	case "play":
		s.play(ctx, cmd.SongQuery, cmd.ConversationID)
	case "stop":
		s.stopPlayback(ctx)
		s.Emit(ctx, bus.MusicPlaybackStopped, bus.NewEnvelope(cmd.ConversationID))
	case "list":
		s.respondWithList(ctx, cmd.ConversationID)
	case "install":
		s.install(ctx, cmd.InstallDir, cmd.ConversationID)
	default:
		s.respondError(ctx, fmt.Sprintf("unknown music command: %s", cmd.Action), cmd.ConversationID)
	}
}

func (s *Service) play(ctx context.Context, query, conversationID string) {
	track, ok := s.library.Resolve(query)
	if !ok {
		s.respondError(ctx, fmt.Sprintf("track not found: %s", query), conversationID)
		return
	}

	s.stopPlayback(ctx)

	s.mu.Lock()
	isDucking := s.isDucking
	s.mu.Unlock()

	player := s.newPlayer()
	volume := s.cfg.NormalVolume
	if isDucking {
		volume = s.cfg.DuckingVolume
	}
	if err := player.Play(track.Path, volume); err != nil {
		s.respondError(ctx, fmt.Sprintf("failed to play %s: %v", track.Name, err), conversationID)
		return
	}

	playCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.player = player
	s.currentName = track.Name
	s.cancelPlay = cancel
	s.mu.Unlock()

	go s.trackProgress(playCtx, player, track)

	s.Emit(ctx, bus.MusicPlaybackStarted, bus.MusicPlaybackStartedPayload{
		Envelope:        bus.NewEnvelope(conversationID),
		TrackName:       track.Name,
		DurationSeconds: track.DurationSeconds,
		StartTimestamp:  float64(time.Now().Unix()),
	})
}

func (s *Service) stopPlayback(ctx context.Context) {
	s.mu.Lock()
	player := s.player
	cancel := s.cancelPlay
	s.player = nil
	s.currentName = ""
	s.cancelPlay = nil
	s.mu.Unlock()

	if player == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	if err := player.Stop(); err != nil {
		s.Logger().Warnw("error stopping player", "error", err)
	}
}

func (s *Service) trackProgress(ctx context.Context, player Player, track Track) {
	ticker := time.NewTicker(s.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if player.Stopped() {
				s.Emit(ctx, bus.MusicPlaybackStopped, bus.NewEnvelope(""))
				s.Emit(ctx, bus.MusicTrackEnded, bus.NewEnvelope(""))
				s.mu.Lock()
				if s.player == player {
					s.player = nil
					s.currentName = ""
					s.cancelPlay = nil
				}
				s.mu.Unlock()
				return
			}
			elapsed, total, err := player.Position()
			if err != nil {
				continue
			}
			progress := 0.0
			if total > 0 {
				progress = elapsed.Seconds() / total.Seconds()
			}
			s.Emit(ctx, bus.MusicProgress, bus.MusicProgressPayload{
				PositionSeconds: elapsed.Seconds(),
				DurationSeconds: total.Seconds(),
				Progress:        progress,
			})
		}
	}
}

func (s *Service) duck(ctx context.Context) {
	s.mu.Lock()
	player := s.player
	s.mu.Unlock()
	if s.currentMode != mode.Interactive || player == nil {
		return
	}
	s.mu.Lock()
	s.isDucking = true
	s.mu.Unlock()
	if err := player.SetVolume(s.cfg.DuckingVolume); err != nil {
		s.Logger().Warnw("failed to duck volume", "error", err)
	}
}

func (s *Service) unduck(ctx context.Context) {
	s.mu.Lock()
	player := s.player
	s.mu.Unlock()
	if s.currentMode != mode.Interactive || player == nil {
		s.mu.Lock()
		s.isDucking = false
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.isDucking = false
	s.mu.Unlock()
	if err := player.SetVolume(s.cfg.NormalVolume); err != nil {
		s.Logger().Warnw("failed to restore volume", "error", err)
	}
}

func (s *Service) handleModeChange(ctx context.Context, payload interface{}) {
	change, ok := payload.(bus.ModeChangePayload)
	if !ok {
		return
	}
	newMode, err := mode.ParseMode(change.NewMode)
	if err != nil {
		return
	}
	s.currentMode = newMode
	if newMode == mode.Idle {
		s.stopPlayback(ctx)
	}
}

func (s *Service) respondWithList(ctx context.Context, conversationID string) {
	names := s.library.Names()
	if len(names) == 0 {
		s.respondInfo(ctx, "no tracks loaded", conversationID)
		return
	}
	var b strings.Builder
	for i, name := range names {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	s.respondInfo(ctx, strings.TrimRight(b.String(), "\n"), conversationID)
}

func (s *Service) install(ctx context.Context, sourceDir, conversationID string) {
	if sourceDir == "" {
		s.respondError(ctx, "source directory required: install <dir>", conversationID)
		return
	}
	copied, err := installFiles(sourceDir, s.cfg.MusicDir)
	if err != nil {
		s.respondError(ctx, fmt.Sprintf("failed to install music files: %v", err), conversationID)
		return
	}
	if copied == 0 {
		s.respondInfo(ctx, fmt.Sprintf("no new music files found in %s", sourceDir), conversationID)
		return
	}
	if _, err := s.library.Load(s.cfg.MusicDir, s.prober); err != nil {
		s.Logger().Warnw("music library reload failed after install", "error", err)
	}
	s.respondInfo(ctx, fmt.Sprintf("installed %d music files from %s", copied, sourceDir), conversationID)
}

// installFiles copies audio files from source into dest that don't
// already exist there, mirroring install_music_files.
func installFiles(source, dest string) (int, error) {
	if _, err := os.Stat(source); err != nil {
		return 0, fmt.Errorf("source directory not found: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("create music directory: %w", err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return 0, fmt.Errorf("read source directory: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !audioExtensions[ext] {
			continue
		}
		destPath := filepath.Join(dest, entry.Name())
		if _, err := os.Stat(destPath); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(source, entry.Name()), destPath); err != nil {
			return copied, fmt.Errorf("copy %s: %w", entry.Name(), err)
		}
		copied++
	}
	return copied, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (s *Service) respondError(ctx context.Context, message, conversationID string) {
	s.Emit(ctx, bus.CLIResponse, bus.CLIResponsePayload{
		Envelope: bus.NewEnvelope(conversationID),
		Message:  message,
		Severity: string(service.SeverityError),
	})
}

func (s *Service) respondInfo(ctx context.Context, message, conversationID string) {
	s.Emit(ctx, bus.CLIResponse, bus.CLIResponsePayload{
		Envelope: bus.NewEnvelope(conversationID),
		Message:  message,
		Severity: string(service.SeverityInfo),
	})
}
