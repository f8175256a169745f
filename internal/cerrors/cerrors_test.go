package cerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapConfigIsConfigError(t *testing.T) {
	err := WrapConfig("stt_api_key", errors.New("missing"))
	assert.True(t, Is(err, ErrConfig))
	assert.False(t, Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "stt_api_key")
}

func TestWrapResourceUnavailablePreservesCause(t *testing.T) {
	cause := errors.New("no such directory")
	err := WrapResourceUnavailable("music_dir", cause)
	assert.True(t, Is(err, ErrResourceUnavailable))
	assert.True(t, errors.Is(err, cause))
}

func TestWrapValidationCarriesFieldAndReason(t *testing.T) {
	err := WrapValidation("volume_level", "must be between 0 and 1")
	assert.True(t, Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "volume_level")
	assert.Contains(t, err.Error(), "must be between 0 and 1")
}

func TestWrapTransientUpstreamIsDistinctFromHandlerFault(t *testing.T) {
	err := WrapTransientUpstream("openai", errors.New("429"))
	assert.True(t, Is(err, ErrTransientUpstream))
	assert.False(t, Is(err, ErrHandlerFault))
}

func TestWrapHandlerFaultIsDistinctFromTransientUpstream(t *testing.T) {
	err := WrapHandlerFault("music_controller", errors.New("nil pointer"))
	assert.True(t, Is(err, ErrHandlerFault))
	assert.False(t, Is(err, ErrTransientUpstream))
}

func TestShutdownSentinelIsComparableDirectly(t *testing.T) {
	assert.True(t, errors.Is(ErrShutdown, ErrShutdown))
}
