package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCacheDropsRepeatsWithinWindow(t *testing.T) {
	d := newDedupCache(100 * time.Millisecond)

	assert.False(t, d.seen("music:INFO:hello"), "first occurrence should not be deduplicated")
	assert.True(t, d.seen("music:INFO:hello"), "repeat within window should be deduplicated")
	assert.True(t, d.seen("music:INFO:hello"))
}

func TestDedupCacheAllowsAgainAfterWindowElapses(t *testing.T) {
	d := newDedupCache(20 * time.Millisecond)

	require.False(t, d.seen("music:INFO:hello"))
	require.Eventually(t, func() bool { return d.size() == 0 }, time.Second, time.Millisecond)
	assert.False(t, d.seen("music:INFO:hello"), "should be allowed again once its window entry expired")
}

func TestDedupCacheTreatsDistinctKeysIndependently(t *testing.T) {
	d := newDedupCache(time.Second)

	assert.False(t, d.seen("music:INFO:hello"))
	assert.False(t, d.seen("web_bridge:ERROR:hello"))
}
