package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type playMusicArgs struct {
	TrackName string `json:"track_name" jsonschema:"required"`
}

func TestRegisterExposesToolInTools(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("play_music", "play a named track", playMusicArgs{}))

	found := r.Tools()
	require.Len(t, found, 1)
	assert.Equal(t, "play_music", found[0].Name)
	assert.Contains(t, found[0].InputSchema.Required, "track_name")
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("play_music", "play a named track", playMusicArgs{}))

	err := r.Validate("play_music", []byte(`{}`))
	assert.Error(t, err)
}

func TestValidateAcceptsWellFormedArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("play_music", "play a named track", playMusicArgs{}))

	err := r.Validate("play_music", []byte(`{"track_name":"Mad About You"}`))
	assert.NoError(t, err)
}

func TestValidateUnknownToolErrors(t *testing.T) {
	r := NewRegistry()
	err := r.Validate("nonexistent", []byte(`{}`))
	assert.Error(t, err)
}
