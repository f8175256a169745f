package main

import (
	"context"
	"errors"
	"time"

	"github.com/makeorbreak-studio/cantina-os/internal/cerrors"
	"github.com/makeorbreak-studio/cantina-os/internal/music"
	"github.com/makeorbreak-studio/cantina-os/internal/voice"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/llm"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/mic"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/stt"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/tts"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/tools"
)

// This file is the integration seam a real deployment fills in: every
// type here satisfies a vendor-neutral interface internal/voice/* or
// internal/music defines, but none of them reach an actual microphone,
// speech vendor or audio backend. SPEC_FULL.md keeps those SDKs external
// to this core, so cantinaosd ships with clearly-failing stand-ins
// rather than a fabricated vendor client. A real binary replaces these
// five constructors with ones backed by portaudio, a Deepgram/OpenAI/
// ElevenLabs-shaped client, and an audio codec library, respectively.

type unconfiguredMicDevice struct{}

func (unconfiguredMicDevice) Start(chunks chan<- mic.Chunk) (func(), error) {
	return func() {}, cerrors.WrapResourceUnavailable("mic_device", errUnconfigured)
}

type unconfiguredSTTOpener struct{}

func (unconfiguredSTTOpener) Open(ctx context.Context, segments chan<- stt.Segment) (stt.Session, error) {
	return nil, cerrors.WrapResourceUnavailable("stt_vendor", errUnconfigured)
}

type unconfiguredTTSOpener struct{}

func (unconfiguredTTSOpener) Open(ctx context.Context, text string) (tts.Session, error) {
	return nil, cerrors.WrapResourceUnavailable("tts_vendor", errUnconfigured)
}

type unconfiguredLLMOpener struct{}

func (unconfiguredLLMOpener) Open(ctx context.Context, messages []voice.Message, toolDefs []tools.Definition) (llm.Stream, error) {
	return nil, cerrors.WrapResourceUnavailable("llm_vendor", errUnconfigured)
}

type unconfiguredPlayer struct{}

func (unconfiguredPlayer) Play(path string, volume int) error {
	return cerrors.WrapResourceUnavailable("music_player", errUnconfigured)
}
func (unconfiguredPlayer) SetVolume(volume int) error                      { return nil }
func (unconfiguredPlayer) Position() (elapsed, total time.Duration, err error) {
	return 0, 0, cerrors.WrapResourceUnavailable("music_player", errUnconfigured)
}
func (unconfiguredPlayer) Stopped() bool { return true }
func (unconfiguredPlayer) Stop() error   { return nil }

func unconfiguredPlayerFactory() music.Player { return unconfiguredPlayer{} }

var errUnconfigured = errors.New("no vendor backend configured for this deployment")
