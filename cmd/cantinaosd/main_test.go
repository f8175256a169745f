package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildToolRegistryRegistersIntentRouterShapes(t *testing.T) {
	registry, err := buildToolRegistry()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tool := range registry.Tools() {
		names[tool.Name] = true
	}
	assert.True(t, names["play_music"])
	assert.True(t, names["stop_music"])
	assert.True(t, names["set_eye_color"])

	assert.NoError(t, registry.Validate("play_music", []byte(`{"track":"cantina band"}`)))
	assert.Error(t, registry.Validate("play_music", []byte(`{}`)))
}

func TestReversedPreservesElementsInOppositeOrder(t *testing.T) {
	a, b, c := &countingService{}, &countingService{}, &countingService{}
	in := []startStopper{a, b, c}
	out := reversed(in)
	require.Len(t, out, 3)
	assert.Same(t, c, out[0])
	assert.Same(t, b, out[1])
	assert.Same(t, a, out[2])
}

func TestStopServicesCallsStopOnEveryService(t *testing.T) {
	s1 := &countingService{}
	s2 := &countingService{}
	stopServices(context.Background(), []startStopper{s1, s2})
	assert.Equal(t, 1, s1.stopped)
	assert.Equal(t, 1, s2.stopped)
}

type countingService struct {
	stopped int
}

func (s *countingService) Start(ctx context.Context) error { return nil }
func (s *countingService) Stop(ctx context.Context) error {
	s.stopped++
	return nil
}
