// Package webschema defines the WebSocket command envelopes accepted from
// the dashboard and validates them before they are translated to bus
// events. Grounded on cantina_os/schemas/web_commands.py's
// VoiceCommandSchema/MusicCommandSchema/DJCommandSchema/SystemCommandSchema,
// re-expressed as go-playground/validator struct tags in place of
// pydantic validators.
package webschema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
)

var validate = validator.New()

func init() {
	// Report the JSON field name (e.g. "volume_level") rather than the
	// Go struct field name, since that's the name the client sent and
	// the one boundary scenario 5 expects back in validation_errors.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
}

// Envelope wraps every inbound WebSocket command with a discriminator and
// a client-assigned command id, matching BaseWebCommand's command_id.
type Envelope struct {
	Type      string `json:"type" validate:"required,oneof=voice_command music_command dj_command system_command"`
	CommandID string `json:"command_id"`
}

// VoiceCommand mirrors VoiceCommandSchema: action in {start, stop}.
type VoiceCommand struct {
	Envelope
	Action string `json:"action" validate:"required,oneof=start stop"`
}

// ToSetModeRequest converts a validated VoiceCommand into the system mode
// it requests: start -> INTERACTIVE, stop -> AMBIENT.
func (c VoiceCommand) ToSetModeRequest() bus.SetModeRequestPayload {
	mode := "AMBIENT"
	if c.Action == "start" {
		mode = "INTERACTIVE"
	}
	return bus.SetModeRequestPayload{
		Envelope: bus.NewEnvelope(""),
		Mode:     mode,
	}
}

// MusicCommand mirrors MusicCommandSchema: action plus the optional
// fields each action needs.
type MusicCommand struct {
	Envelope
	Action      string   `json:"action" validate:"required,oneof=play pause resume stop next queue volume"`
	TrackName   string   `json:"track_name,omitempty" validate:"omitempty,max=200"`
	TrackID     string   `json:"track_id,omitempty"`
	VolumeLevel *float64 `json:"volume_level,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ToMusicCommandPayload converts a validated MusicCommand into the bus
// payload, erroring if a volume action is missing its level.
func (c MusicCommand) ToMusicCommandPayload() (bus.MusicCommandPayload, error) {
	payload := bus.MusicCommandPayload{
		Envelope: bus.NewEnvelope(""),
		Action:   c.Action,
	}
	switch c.Action {
	case "play", "queue":
		query := c.TrackName
		if query == "" {
			query = c.TrackID
		}
		payload.SongQuery = query
	case "volume":
		if c.VolumeLevel == nil {
			return bus.MusicCommandPayload{}, fmt.Errorf("volume_level required for volume action")
		}
		payload.VolumeLevel = *c.VolumeLevel
	}
	return payload, nil
}

// DJCommand mirrors DJCommandSchema.
type DJCommand struct {
	Envelope
	Action             string   `json:"action" validate:"required,oneof=start stop next update_settings"`
	AutoTransition      *bool    `json:"auto_transition,omitempty"`
	TransitionDuration  *float64 `json:"transition_duration,omitempty" validate:"omitempty,gte=1,lte=30"`
	GenrePreference     string   `json:"genre_preference,omitempty" validate:"omitempty,max=50"`
}

// Topic returns the bus topic this DJ command routes to: "next" has its
// own immediate-transition topic, everything else goes through the
// general DJ command topic.
func (c DJCommand) Topic() bus.Topic {
	if c.Action == "next" {
		return bus.DJNextTrack
	}
	return bus.DJCommand
}

// SystemCommand mirrors SystemCommandSchema.
type SystemCommand struct {
	Envelope
	Action       string `json:"action" validate:"required,oneof=set_mode restart refresh_config"`
	Mode         string `json:"mode,omitempty" validate:"omitempty,oneof=IDLE AMBIENT INTERACTIVE"`
	RestartDelay *float64 `json:"restart_delay,omitempty" validate:"omitempty,gte=0,lte=60"`
}

// Validate checks struct tags and the cross-field rule pydantic expressed
// as a validator: mode is required when action is set_mode.
func (c SystemCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid system command: %w", err)
	}
	if c.Action == "set_mode" && c.Mode == "" {
		return fmt.Errorf("mode is required for set_mode action")
	}
	return nil
}

// Validate runs struct-tag validation for any of the four command types.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// FieldErrors extracts the offending JSON field names from err, for a
// command_error response's validation_errors list. Returns nil if err
// doesn't wrap a validator.ValidationErrors (e.g. a plain business-rule
// error like SystemCommand.Validate's "mode is required").
func FieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
