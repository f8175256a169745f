package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// LogEntry is the structured log record every zap call is converted into
// before it reaches the ring buffer, the session file and the dashboard,
// matching logging_service.py's LogEntry dataclass.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	EntryID   string `json:"entry_id"`
}

// serviceDisplayNames maps a zap logger name to the human label the
// dashboard shows, mirroring _extract_service_name's service_map.
var serviceDisplayNames = map[string]string{
	"mic_input":        "Voice Input",
	"stt":              "Voice Input",
	"gpt":              "AI Assistant",
	"tts":              "Speech Synthesis",
	"elevenlabs":       "Speech Synthesis",
	"music_controller": "Music Controller",
	"eye_light":        "Eye Lights",
	"mode_manager":     "Mode Manager",
	"web_bridge":       "Web Bridge",
	"logging":          "Logging Service",
}

func displayName(loggerName string) string {
	base := baseComponent(loggerName)
	if label, ok := serviceDisplayNames[base]; ok {
		return label
	}
	if base == "" {
		return "Unknown"
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

// filteredLoggerSubstrings mirrors _should_filter_logger's list: names
// that would otherwise recurse (the logging service's own logger) or
// drown the dashboard in transport noise (the web bridge's gin/gorilla
// plumbing), adapted from the teacher's socketio/engineio/uvicorn/asyncio
// list to this build's actual logger names.
var filteredLoggerSubstrings = []string{
	"logging",
	"gin",
	"websocket",
	"gorilla",
}

func shouldFilterLogger(name string) bool {
	lower := strings.ToLower(name)
	for _, substr := range filteredLoggerSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// circuitBreaker trips when more than maxPerSecond entries arrive within
// a rolling one-second window, matching the teacher's "Emergency limit"
// comment on _max_logs_per_second: once tripped, further entries this
// second are dropped rather than risking a logging-induced cascade.
type circuitBreaker struct {
	mu           sync.Mutex
	windowStart  time.Time
	count        int
	maxPerSecond int
	active       bool
}

func newCircuitBreaker(maxPerSecond int) *circuitBreaker {
	if maxPerSecond <= 0 {
		maxPerSecond = 50
	}
	// windowStart stays zero so the first allow call opens the window at
	// that entry's own timestamp.
	return &circuitBreaker{maxPerSecond: maxPerSecond}
}

func (c *circuitBreaker) allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.count = 0
		c.active = false
	}
	c.count++
	if c.count > c.maxPerSecond {
		c.active = true
		return false
	}
	return true
}

func (c *circuitBreaker) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// collector is the sink every log entry flows through before landing in
// the ring buffer and the outbound entry channel, equivalent to
// CantinaLogHandler.emit calling LoggingService.handle_log_record.
type collector struct {
	buffer   *ringBuffer
	dedup    *dedupCache
	breaker  *circuitBreaker
	sessionID string
	out      chan LogEntry
}

func newCollector(cfg Config, sessionID string) *collector {
	return &collector{
		buffer:    newRingBuffer(cfg.MaxMemoryLogs),
		dedup:     newDedupCache(cfg.DeduplicationWindow),
		breaker:   newCircuitBreaker(cfg.MaxLogsPerSecond),
		sessionID: sessionID,
		out:       make(chan LogEntry, cfg.MaxQueueSize),
	}
}

// handle converts a zap entry to a LogEntry and runs it through
// filtering, the circuit breaker and deduplication, exactly the sequence
// handle_log_record follows before queuing for file write/dashboard.
func (c *collector) handle(ent zapcore.Entry) {
	if shouldFilterLogger(ent.LoggerName) {
		return
	}
	if !c.breaker.allow(ent.Time) {
		return
	}

	entry := LogEntry{
		Timestamp: ent.Time.UTC().Format(time.RFC3339Nano),
		Level:     ent.Level.CapitalString(),
		Service:   displayName(ent.LoggerName),
		Message:   ent.Message,
		SessionID: c.sessionID,
		EntryID:   fmt.Sprintf("%d-%x", ent.Time.UnixNano(), hashString(ent.Message)),
	}

	dedupKey := entry.Service + ":" + entry.Level + ":" + entry.Message
	if c.dedup.seen(dedupKey) {
		return
	}

	c.buffer.add(entry)

	select {
	case c.out <- entry:
	default:
	}
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// forwardingCore wraps an underlying zapcore.Core (the session file
// writer) and additionally routes every accepted entry through a
// collector, the same dual-destination shape CantinaLogHandler.emit
// gives Python's root logger: one write path to file, one to in-memory
// aggregation.
type forwardingCore struct {
	zapcore.Core
	collector *collector
	levels    *LevelController
}

func newForwardingCore(inner zapcore.Core, c *collector, levels *LevelController) zapcore.Core {
	return &forwardingCore{Core: inner, collector: c, levels: levels}
}

func (f *forwardingCore) With(fields []zapcore.Field) zapcore.Core {
	return &forwardingCore{Core: f.Core.With(fields), collector: f.collector, levels: f.levels}
}

// Check gates entirely on the LevelController rather than the wrapped
// core's fixed level, so internal/debug's DebugCommand handling (set
// one component, or "all") takes effect immediately without rebuilding
// any logger.
func (f *forwardingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if f.levels.enabled(ent.LoggerName, ent.Level) {
		return ce.AddCore(ent, f)
	}
	return ce
}

func (f *forwardingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	f.collector.handle(ent)
	return f.Core.Write(ent, fields)
}

// LevelController is the live-mutable log-level façade DebugCommand
// handling goes through: a default level plus optional per-component
// overrides, equivalent to DebugService's _default_log_level and
// _component_log_levels dict, re-expressed as a concurrency-safe Go type
// instead of mutating Python logging.Logger objects in place.
type LevelController struct {
	mu      sync.RWMutex
	def     zapcore.Level
	byComp  map[string]zapcore.Level
}

// NewLevelController builds a controller with def as the starting
// default level and no component overrides.
func NewLevelController(def zapcore.Level) *LevelController {
	return &LevelController{def: def, byComp: make(map[string]zapcore.Level)}
}

// SetDefault changes the fallback level used by any component without an
// explicit override, matching handle_debug_level_command's component
// == "all" branch.
func (l *LevelController) SetDefault(level zapcore.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.def = level
	l.byComp = make(map[string]zapcore.Level)
}

// SetComponent overrides the level for one component by name.
func (l *LevelController) SetComponent(component string, level zapcore.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byComp[strings.ToLower(component)] = level
}

// Default returns the current fallback level.
func (l *LevelController) Default() zapcore.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.def
}

// ComponentLevel returns the override level for component, if any.
func (l *LevelController) ComponentLevel(component string) (zapcore.Level, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lvl, ok := l.byComp[strings.ToLower(component)]
	return lvl, ok
}

func (l *LevelController) enabled(loggerName string, level zapcore.Level) bool {
	component := baseComponent(loggerName)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if override, ok := l.byComp[component]; ok {
		return level >= override
	}
	return level >= l.def
}

func baseComponent(loggerName string) string {
	name := loggerName
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name)
}

// ParseLevel maps a case-insensitive level name (DEBUG/INFO/WARNING or
// WARN/ERROR/CRITICAL) to a zapcore.Level, shared by internal/config's
// startup level and internal/debug's DebugCommand handling so both parse
// the same table once. zapcore has no literal CRITICAL level;
// DPanicLevel is the closest analogue.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
