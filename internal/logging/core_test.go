package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDisplayNameMapsKnownLoggersAndTitlesUnknownOnes(t *testing.T) {
	assert.Equal(t, "Music Controller", displayName("music_controller"))
	assert.Equal(t, "Music Controller", displayName("music_controller.progress"))
	assert.Equal(t, "Logging Service", displayName("logging"))
	assert.Equal(t, "Peripherals", displayName("peripherals"))
}

func TestShouldFilterLoggerExcludesOwnAndTransportNoise(t *testing.T) {
	assert.True(t, shouldFilterLogger("logging"))
	assert.True(t, shouldFilterLogger("web_bridge.gin"))
	assert.True(t, shouldFilterLogger("websocket"))
	assert.False(t, shouldFilterLogger("music_controller"))
}

func TestCircuitBreakerTripsOverCeilingWithinOneSecond(t *testing.T) {
	cb := newCircuitBreaker(3)
	now := time.Unix(0, 0)

	assert.True(t, cb.allow(now))
	assert.True(t, cb.allow(now))
	assert.True(t, cb.allow(now))
	assert.False(t, cb.allow(now), "fourth entry within the same second should trip the breaker")
	assert.True(t, cb.isActive())
}

func TestCircuitBreakerResetsNextSecond(t *testing.T) {
	cb := newCircuitBreaker(1)
	now := time.Unix(0, 0)

	assert.True(t, cb.allow(now))
	assert.False(t, cb.allow(now))

	assert.True(t, cb.allow(now.Add(time.Second+time.Millisecond)))
	assert.False(t, cb.isActive())
}

func TestCollectorHandleFiltersOwnLoggerName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQueueSize = 8
	c := newCollector(cfg, "session-1")

	c.handle(zapcore.Entry{LoggerName: "logging", Message: "should not appear", Level: zapcore.InfoLevel, Time: time.Now()})
	assert.Equal(t, 0, c.buffer.len())
}

func TestCollectorHandleBuffersAndQueuesAcceptedEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQueueSize = 8
	c := newCollector(cfg, "session-1")

	c.handle(zapcore.Entry{LoggerName: "music_controller", Message: "playing track", Level: zapcore.InfoLevel, Time: time.Now()})

	require.Equal(t, 1, c.buffer.len())
	select {
	case entry := <-c.out:
		assert.Equal(t, "Music Controller", entry.Service)
		assert.Equal(t, "playing track", entry.Message)
		assert.Equal(t, "session-1", entry.SessionID)
	default:
		t.Fatal("expected entry on out channel")
	}
}

func TestLevelControllerFallsBackToDefault(t *testing.T) {
	lc := NewLevelController(zapcore.InfoLevel)
	assert.False(t, lc.enabled("music_controller", zapcore.DebugLevel))
	assert.True(t, lc.enabled("music_controller", zapcore.InfoLevel))
}

func TestLevelControllerComponentOverrideTakesPrecedence(t *testing.T) {
	lc := NewLevelController(zapcore.InfoLevel)
	lc.SetComponent("music_controller", zapcore.DebugLevel)

	assert.True(t, lc.enabled("music_controller", zapcore.DebugLevel))
	assert.True(t, lc.enabled("web_bridge", zapcore.InfoLevel))
	assert.False(t, lc.enabled("web_bridge", zapcore.DebugLevel))
}

func TestLevelControllerSetDefaultClearsOverrides(t *testing.T) {
	lc := NewLevelController(zapcore.InfoLevel)
	lc.SetComponent("music_controller", zapcore.ErrorLevel)

	lc.SetDefault(zapcore.DebugLevel)

	assert.True(t, lc.enabled("music_controller", zapcore.DebugLevel), "component override should be cleared by SetDefault")
	lvl, ok := lc.ComponentLevel("music_controller")
	assert.False(t, ok)
	assert.Equal(t, zapcore.Level(0), lvl)
}

func TestCollectorHandleDeduplicatesRepeatedMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQueueSize = 8
	cfg.DeduplicationWindow = time.Minute
	c := newCollector(cfg, "session-1")

	for i := 0; i < 3; i++ {
		c.handle(zapcore.Entry{LoggerName: "music_controller", Message: "repeated", Level: zapcore.InfoLevel, Time: time.Now()})
	}

	assert.Equal(t, 1, c.buffer.len())
}
