package bus

// Topic identifies a logical event channel. The canonical form is dotted
// lowercase; there is exactly one enumeration (the original source carried
// two overlapping dotted/slashed definitions — this consolidates them, per
// the open question in SPEC_FULL.md §12).
type Topic string

const (
	// system.*
	SystemSetModeRequest  Topic = "system.set_mode.request"
	SystemModeChange      Topic = "system.mode.change"
	SystemShutdownRequest Topic = "system.shutdown.request"

	// service.*
	ServiceStatusUpdate Topic = "service.status.update"

	// mode.*
	ModeTransitionStarted  Topic = "mode.transition.started"
	ModeTransitionComplete Topic = "mode.transition.complete"
	ModeTransitionFailed   Topic = "mode.transition.failed"

	// cli.*
	CLICommand  Topic = "cli.command"
	CLIResponse Topic = "cli.response"

	// voice.*
	VoiceListeningStarted Topic = "voice.listening.started"
	VoiceListeningStopped Topic = "voice.listening.stopped"
	VoiceProcessingComplete Topic = "voice.processing.complete"
	VoiceError            Topic = "voice.error"

	// audio.*
	AudioChunk Topic = "audio.chunk"

	// transcription.*
	TranscriptionInterim Topic = "transcription.interim"
	TranscriptionFinal   Topic = "transcription.final"

	// llm.*
	LLMResponse          Topic = "llm.response"
	LLMProcessingEnded   Topic = "llm.processing.ended"
	LLMError             Topic = "llm.error"

	// tts.*
	TTSRequest Topic = "tts.request"

	// speech.*
	SpeechSynthesisStarted   Topic = "speech.synthesis.started"
	SpeechSynthesisAmplitude Topic = "speech.synthesis.amplitude"
	SpeechSynthesisCompleted Topic = "speech.synthesis.completed"
	SpeechSynthesisEnded     Topic = "speech.synthesis.ended"

	// music.*
	MusicCommand          Topic = "music.command"
	MusicPlaybackStarted  Topic = "music.playback.started"
	MusicPlaybackStopped  Topic = "music.playback.stopped"
	MusicProgress         Topic = "music.progress"
	MusicTrackEnded       Topic = "track.ended"

	// dj.*
	DJCommand    Topic = "dj.command"
	DJNextTrack  Topic = "dj.next_track"

	// intent.*
	IntentDetected Topic = "intent.detected"

	// eye.*
	EyeCommand Topic = "eye.command"

	// debug.*
	DebugCommand          Topic = "debug.command"
	DebugLog              Topic = "debug.log"
	DebugCommandTrace     Topic = "debug.command_trace"
	DebugPerformance      Topic = "debug.performance_metric"
	DebugStateTransition  Topic = "debug.state_transition"
	PerformanceMetric     Topic = "performance.metric"

	// dashboard.*
	DashboardLog Topic = "dashboard.log"
)
