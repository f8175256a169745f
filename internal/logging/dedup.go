package logging

import (
	"sync"
	"time"

	"github.com/desertbit/timer"
)

// dedupCache suppresses repeated "service:level:message" triples seen
// within window, matching _should_deduplicate's dedup_key scheme. Unlike
// the teacher, which re-walks and prunes its whole dict on every call,
// each key here carries its own desertbit/timer that deletes it once the
// window elapses, so bookkeeping cost doesn't scale with cache size.
type dedupCache struct {
	mu      sync.Mutex
	entries map[string]*timer.Timer
	window  time.Duration
}

func newDedupCache(window time.Duration) *dedupCache {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &dedupCache{entries: make(map[string]*timer.Timer), window: window}
}

// seen reports whether key has already been recorded within the window.
// A fresh key is remembered and returns false (don't deduplicate); a key
// still within its window has its timer extended and returns true.
func (d *dedupCache) seen(key string) bool {
	d.mu.Lock()
	if t, ok := d.entries[key]; ok {
		t.Reset(d.window)
		d.mu.Unlock()
		return true
	}
	t := timer.NewTimer(d.window)
	d.entries[key] = t
	d.mu.Unlock()

	go func() {
		<-t.C
		d.mu.Lock()
		delete(d.entries, key)
		d.mu.Unlock()
	}()

	return false
}

func (d *dedupCache) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
