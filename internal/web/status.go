package web

import (
	"sort"
	"time"

	"github.com/tidwall/sjson"
)

// statusCache aggregates the last-seen status of each service and
// decides when the periodic broadcaster should resend it: only when the
// serialized status differs from what was last sent, or when the
// ceiling interval has elapsed, matching _periodic_status_broadcast's
// "should_broadcast" check.
type statusCache struct {
	services map[string]string // service name -> status string

	lastSent    string
	lastSentAt  time.Time
	ceiling     time.Duration
}

func newStatusCache(ceiling time.Duration) *statusCache {
	return &statusCache{services: make(map[string]string), ceiling: ceiling}
}

func (s *statusCache) update(service, status string) {
	s.services[service] = status
}

// snapshot serializes the current status map in stable (sorted) key
// order using sjson, since map iteration order is not stable and would
// make every call look "changed".
func (s *statusCache) snapshot() (string, error) {
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)

	json := "{}"
	var err error
	for _, name := range names {
		json, err = sjson.Set(json, name, s.services[name])
		if err != nil {
			return "", err
		}
	}
	return json, nil
}

// shouldBroadcast reports whether the periodic broadcaster should
// resend now, and if so returns the serialized payload to send.
func (s *statusCache) shouldBroadcast(now time.Time) (payload string, send bool, err error) {
	snap, err := s.snapshot()
	if err != nil {
		return "", false, err
	}
	if snap != s.lastSent || now.Sub(s.lastSentAt) > s.ceiling {
		s.lastSent = snap
		s.lastSentAt = now
		return snap, true, nil
	}
	return "", false, nil
}
