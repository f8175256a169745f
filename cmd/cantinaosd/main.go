// Command cantinaosd runs the CantinaOS runtime: the event bus and every
// service in spec.md's dependency order, wired from a loaded AppConfig.
// Grounded on cantina_os/main.py's create_services/start_services
// sequencing, re-expressed as an explicit Go construction order since
// there is no DI container doing it implicitly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/command/cliio"
	"github.com/makeorbreak-studio/cantina-os/internal/config"
	"github.com/makeorbreak-studio/cantina-os/internal/debug"
	"github.com/makeorbreak-studio/cantina-os/internal/logging"
	"github.com/makeorbreak-studio/cantina-os/internal/mode"
	"github.com/makeorbreak-studio/cantina-os/internal/music"
	"github.com/makeorbreak-studio/cantina-os/internal/peripherals"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/intent"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/llm"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/mic"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/stt"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/tools"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/tts"
	"github.com/makeorbreak-studio/cantina-os/internal/web"
)

// startStopper is every service's common shape, matching BaseService's
// async start()/stop() pair.
type startStopper interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging config:", err)
		return 1
	}
	core, sessionID, levels, err := logging.BuildCore(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging init:", err)
		return 1
	}
	// The root logger stays unnamed so each service logger's name begins
	// with its own service name, which LevelController overrides and the
	// dashboard display labels key on.
	root := zap.New(core).Sugar()
	defer root.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New(root)
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		b.Run(ctx)
	}()

	toolRegistry, err := buildToolRegistry()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tool registry:", err)
		return 1
	}

	loggingSvc, err := logging.New(b, root, core, sessionID, logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging service:", err)
		return 1
	}
	modeMgr := mode.New(b, root, cfg.ModeConfig())
	musicSvc := music.New(b, root, unconfiguredPlayerFactory, nil, cfg.MusicConfig())
	webSvc := web.New(b, root, musicSvc.Library(), cfg.WebConfig())
	micSvc := mic.New(b, root, unconfiguredMicDevice{}, cfg.MicConfig())
	sttSvc := stt.New(b, root, unconfiguredSTTOpener{}, cfg.STTConfig())
	ttsSvc := tts.New(b, root, unconfiguredTTSOpener{}, cfg.TTSConfig())
	llmSvc := llm.New(b, root, unconfiguredLLMOpener{}, toolRegistry, cfg.LLMConfig())
	intentSvc := intent.New(b, root)
	debugSvc := debug.New(b, root, levels, cfg.DebugConfig())
	peripheralsSvc := peripherals.New(b, root)

	// Services start in spec's declared dependency order: Event Bus,
	// Service Base (already satisfied by New above), {Mode Manager,
	// Logging}, {Mic, STT, LLM, TTS, Music, Intent Router}, {Web
	// Bridge, CLI, Debug, Peripherals}.
	startOrder := []startStopper{
		modeMgr, loggingSvc,
		micSvc, sttSvc, llmSvc, ttsSvc, musicSvc, intentSvc,
		webSvc, debugSvc, peripheralsSvc,
	}

	for _, svc := range startOrder {
		if err := svc.Start(ctx); err != nil {
			root.Errorw("service failed to start", "error", err)
			stopServices(context.Background(), reversed(startOrder))
			cancel()
			<-busDone
			return 1
		}
	}

	termDone := make(chan struct{})
	go func() {
		defer close(termDone)
		cliio.New(b, os.Stdin, os.Stdout, os.Stderr).Run(ctx)
	}()

	shutdown := make(chan struct{}, 1)
	unsubscribe := b.Subscribe(bus.SystemShutdownRequest, func(context.Context, interface{}) {
		select {
		case shutdown <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		root.Info("shutdown signal received")
	case <-shutdown:
		root.Info("shutdown requested over the command pipeline")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	stopServices(shutdownCtx, reversed(startOrder))

	cancel()
	<-busDone
	<-termDone

	return 0
}

// stopServices stops every service concurrently, matching
// stop_services's asyncio.gather fan-in; a stop hook error is logged by
// the service itself and never aborts the rest of the shutdown.
func stopServices(ctx context.Context, services []startStopper) {
	var g errgroup.Group
	for _, svc := range services {
		svc := svc
		g.Go(func() error {
			return svc.Stop(ctx)
		})
	}
	_ = g.Wait()
}

func reversed(services []startStopper) []startStopper {
	out := make([]startStopper, len(services))
	for i, svc := range services {
		out[len(services)-1-i] = svc
	}
	return out
}

// buildToolRegistry registers the same three tool shapes
// internal/voice/intent's default handler table consumes, matching
// command_functions.py's function_definitions list.
func buildToolRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry()

	type playMusicArgs struct {
		Track string `json:"track" jsonschema:"required,description=Name or partial name of the track to play"`
	}
	type stopMusicArgs struct{}
	type setEyeColorArgs struct {
		Color     string  `json:"color" jsonschema:"required,description=Eye color name, e.g. blue, red, purple"`
		Pattern   string  `json:"pattern,omitempty" jsonschema:"description=Eye animation pattern, e.g. solid, pulse, ambient"`
		Intensity float64 `json:"intensity,omitempty" jsonschema:"description=Brightness from 0 to 1"`
	}

	if err := registry.Register("play_music", "Plays a track from the music library", playMusicArgs{}); err != nil {
		return nil, err
	}
	if err := registry.Register("stop_music", "Stops any currently playing track", stopMusicArgs{}); err != nil {
		return nil, err
	}
	if err := registry.Register("set_eye_color", "Sets the eye light pattern, color and intensity", setEyeColorArgs{}); err != nil {
		return nil, err
	}
	return registry, nil
}
