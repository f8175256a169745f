// Package music manages the track library and playback lifecycle,
// including speech ducking and progress reporting. Grounded on
// cantina_os/services/music_controller_service.py's
// MusicControllerService.
package music

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Track is one loaded library entry.
type Track struct {
	Name            string
	Path            string
	DurationSeconds float64
}

// audioExtensions mirrors the teacher's filename.endswith((".mp3",
// ".wav", ".m4a")) filter.
var audioExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".m4a": true,
}

// DurationProber measures a track file's duration. Real deployments
// wire in whatever audio backend decodes the file's header; probing is
// kept external per SPEC_FULL.md's vendor-boundary convention so this
// package never depends on an audio codec library directly.
type DurationProber interface {
	Duration(path string) (float64, error)
}

// Library is the name-keyed, insertion-ordered track collection 1-based
// index resolution depends on, matching self.tracks: Dict[str,
// MusicTrack] (Python dicts preserve insertion order).
type Library struct {
	tracks *orderedmap.OrderedMap[string, Track]
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{tracks: orderedmap.New[string, Track]()}
}

// Load scans dir for audio files and populates the library, replacing
// any previously loaded tracks. Unreadable files are skipped with their
// error returned in skipped rather than aborting the whole scan.
func (l *Library) Load(dir string, prober DurationProber) (skipped map[string]error, err error) {
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return nil, fmt.Errorf("read music directory %s: %w", dir, readErr)
	}

	fresh := orderedmap.New[string, Track]()
	skipped = make(map[string]error)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !audioExtensions[ext] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		var duration float64
		if prober != nil {
			d, probeErr := prober.Duration(path)
			if probeErr != nil {
				skipped[name] = probeErr
				continue
			}
			duration = d
		}

		fresh.Set(name, Track{Name: name, Path: path, DurationSeconds: duration})
	}

	l.tracks = fresh
	return skipped, nil
}

// Len returns the number of loaded tracks.
func (l *Library) Len() int {
	return l.tracks.Len()
}

// Names returns track names in insertion order, the shape a 1-based
// enumerated listing needs.
func (l *Library) Names() []string {
	names := make([]string, 0, l.tracks.Len())
	for pair := l.tracks.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ByName looks up a track by exact name.
func (l *Library) ByName(name string) (Track, bool) {
	return l.tracks.Get(name)
}

// ByIndex resolves a 1-based insertion-order index into a track.
func (l *Library) ByIndex(i int) (Track, bool) {
	if i < 1 || i > l.tracks.Len() {
		return Track{}, false
	}
	idx := 1
	for pair := l.tracks.Oldest(); pair != nil; pair = pair.Next() {
		if idx == i {
			return pair.Value, true
		}
		idx++
	}
	return Track{}, false
}

// Resolve finds a track from a play query: an integer is treated as a
// 1-based index, anything else as an exact name match, matching
// _play_track's digit-string branch.
func (l *Library) Resolve(query string) (Track, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Track{}, false
	}
	if n, err := strconv.Atoi(query); err == nil {
		return l.ByIndex(n)
	}
	return l.ByName(query)
}
