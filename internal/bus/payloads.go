package bus

import (
	"time"

	"github.com/google/uuid"
)

// Envelope carries the fields every payload must have. It is embedded,
// never re-parsed by handlers — ingress edges (CLI parse, web schema,
// vendor SDK result) are the only places that construct one from raw input.
type Envelope struct {
	ID             string  `json:"id"`
	Timestamp      float64 `json:"timestamp"`
	ConversationID string  `json:"conversation_id,omitempty"`
	SchemaVersion  string  `json:"schema_version"`
}

// SchemaVersion is the current payload schema version stamped on every
// envelope produced by this build.
const SchemaVersion = "1.0"

// NewEnvelope stamps a fresh envelope: a unique id, the current time and
// the given conversation id (may be empty for conversation-less events).
func NewEnvelope(conversationID string) Envelope {
	return Envelope{
		ID:             uuid.NewString(),
		Timestamp:      float64(time.Now().UnixNano()) / 1e9,
		ConversationID: conversationID,
		SchemaVersion:  SchemaVersion,
	}
}

// ServiceStatusPayload is published on ServiceStatusUpdate.
type ServiceStatusPayload struct {
	Envelope
	Service string `json:"service"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Severity string `json:"severity"`
}

// SetModeRequestPayload is published on SystemSetModeRequest.
type SetModeRequestPayload struct {
	Envelope
	Mode string `json:"mode"`
}

// ModeChangePayload is published on SystemModeChange.
type ModeChangePayload struct {
	Envelope
	OldMode string `json:"old_mode"`
	NewMode string `json:"new_mode"`
}

// ModeTransitionPayload is published on the three mode.transition.* topics.
type ModeTransitionPayload struct {
	Envelope
	OldMode string `json:"old_mode"`
	NewMode string `json:"new_mode"`
	Status  string `json:"status,omitempty"` // "failed" on ModeTransitionFailed
	Reason  string `json:"reason,omitempty"`
}

// CLIResponsePayload is published on CLIResponse.
type CLIResponsePayload struct {
	Envelope
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// VoiceListeningStartedPayload is published on VoiceListeningStarted.
type VoiceListeningStartedPayload struct {
	Envelope
	Source string `json:"source"` // "mouse", "cli", "web"
}

// VoiceListeningStoppedPayload is published on VoiceListeningStopped.
type VoiceListeningStoppedPayload struct {
	Envelope
	Transcript string `json:"transcript"`
}

// AudioChunkPayload is published on AudioChunk by the mic capture service
// and consumed by the STT session, mirroring AudioChunkPayload in
// event_payloads.py.
type AudioChunkPayload struct {
	Envelope
	Samples    []byte `json:"-"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// TranscriptionSegmentPayload is published on transcription.interim/final.
type TranscriptionSegmentPayload struct {
	Envelope
	Text string `json:"text"`
}

// LLMResponsePayload is published on LLMResponse.
type LLMResponsePayload struct {
	Envelope
	Text        string           `json:"text"`
	IsComplete  bool             `json:"is_complete"`
	ToolCalls   []ToolCallResult `json:"tool_calls,omitempty"`
}

// ToolCallResult is a completed, schema-validated tool call extracted from
// an LLM stream.
type ToolCallResult struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// TTSRequestPayload is published on TTSRequest.
type TTSRequestPayload struct {
	Envelope
	Text string `json:"text"`
}

// SpeechSynthesisPayload is published on the speech.synthesis.* topics.
type SpeechSynthesisPayload struct {
	Envelope
	Amplitude float64 `json:"amplitude,omitempty"`
}

// MusicCommandPayload is published on MusicCommand.
type MusicCommandPayload struct {
	Envelope
	Action       string `json:"action"`
	SongQuery    string `json:"song_query,omitempty"`
	InstallDir   string `json:"install_dir,omitempty"`
	VolumeLevel  float64 `json:"volume_level,omitempty"`
}

// MusicPlaybackStartedPayload is published on MusicPlaybackStarted.
type MusicPlaybackStartedPayload struct {
	Envelope
	TrackName      string  `json:"track_name"`
	DurationSeconds float64 `json:"duration_seconds"`
	StartTimestamp float64 `json:"start_timestamp"`
}

// MusicProgressPayload is published on MusicProgress.
type MusicProgressPayload struct {
	Envelope
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Progress        float64 `json:"progress"`
}

// IntentDetectedPayload is published on IntentDetected.
type IntentDetectedPayload struct {
	Envelope
	IntentName   string                 `json:"intent_name"`
	Parameters   map[string]interface{} `json:"parameters"`
	OriginalText string                 `json:"original_text"`
}

// EyeCommandPayload is published on EyeCommand.
type EyeCommandPayload struct {
	Envelope
	Pattern   string  `json:"pattern"`
	Color     string  `json:"color"`
	Intensity float64 `json:"intensity"`
}

// DebugCommandPayload is published on DebugCommand.
type DebugCommandPayload struct {
	Envelope
	Component string `json:"component"` // name or "all"
	Level     string `json:"level"`
}

// PerformanceMetricPayload is published on PerformanceMetric, one entry
// per timed operation (e.g. one LLM turn).
type PerformanceMetricPayload struct {
	Envelope
	Operation  string  `json:"operation"`
	DurationMs float64 `json:"duration_ms"`
}

// DashboardLogPayload is published on DashboardLog.
type DashboardLogPayload struct {
	Envelope
	Service string `json:"service"`
	Level   string `json:"level"`
	Message string `json:"message"`
}
