package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/command/webschema"
	"github.com/makeorbreak-studio/cantina-os/internal/music"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

var dashboardValidate = validator.New()

// Config controls the HTTP listen address and status broadcast ceiling.
type Config struct {
	Addr                string
	StatusBroadcastCeiling time.Duration
}

// DefaultConfig mirrors the teacher's 60s status ceiling.
func DefaultConfig() Config {
	return Config{Addr: ":8000", StatusBroadcastCeiling: 60 * time.Second}
}

// dashboardTopics is the curated set of bus topics republished to
// connected dashboards, matching WebBridgeService's handler list.
var dashboardTopics = []bus.Topic{
	bus.ServiceStatusUpdate,
	bus.TranscriptionInterim,
	bus.TranscriptionFinal,
	bus.VoiceListeningStarted,
	bus.VoiceListeningStopped,
	bus.LLMResponse,
	bus.SpeechSynthesisStarted,
	bus.SpeechSynthesisAmplitude,
	bus.SpeechSynthesisCompleted,
	bus.SpeechSynthesisEnded,
	bus.MusicPlaybackStarted,
	bus.MusicPlaybackStopped,
	bus.MusicProgress,
	bus.SystemModeChange,
	bus.ModeTransitionStarted,
	bus.ModeTransitionComplete,
	bus.ModeTransitionFailed,
	bus.DashboardLog,
}

// statusCarryingTopics are run through dashboardValidate before
// broadcast. The check covers the dashboardMessage wrapper's validate
// tags (topic and timestamp present); the bus payload structs carry no
// validate tags, so their fields are not checked.
var statusCarryingTopics = map[bus.Topic]bool{
	bus.ServiceStatusUpdate: true,
	bus.MusicPlaybackStarted: true,
	bus.MusicProgress:        true,
}

// dashboardMessage is the envelope every republished bus event is
// wrapped in before broadcast, matching _broadcast_event_to_dashboard's
// {topic, data, timestamp} shape.
type dashboardMessage struct {
	Topic     string      `json:"topic" validate:"required"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp" validate:"required"`
}

// Service serves the dashboard HTTP/WebSocket surface and bridges it to
// the bus: bus events fan out to connected clients, and validated
// client commands are translated into bus events.
type Service struct {
	*service.Base

	cfg     Config
	library *music.Library
	hub     *hub
	status  *statusCache
	server  *http.Server
}

// New constructs a web Service. library is read (never mutated) to
// serve /api/music/library.
func New(b *bus.Bus, logger *zap.SugaredLogger, library *music.Library, cfg Config) *Service {
	return &Service{
		Base:    service.New("web_bridge", b, logger),
		cfg:     cfg,
		library: library,
		hub:     newHub(logger),
		status:  newStatusCache(cfg.StatusBroadcastCeiling),
	}
}

// Start subscribes to the dashboard topic set and serves HTTP.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		for _, topic := range dashboardTopics {
			topic := topic
			s.Subscribe(topic, func(ctx context.Context, payload interface{}) {
				s.republish(topic, payload)
			})
		}

		router := s.buildRouter(ctx)
		s.server = &http.Server{Addr: s.cfg.Addr, Handler: router}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.Logger().Errorw("web server stopped unexpectedly", "error", err)
			}
		}()

		go s.periodicStatusBroadcast(ctx)
		return nil
	})
}

// Stop shuts down the HTTP server.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		if s.server == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
}

func (s *Service) buildRouter(ctx context.Context) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"cantina_os_connected": true})
	})
	router.GET("/api/system/status", s.handleSystemStatus)
	router.GET("/api/music/library", s.handleMusicLibrary)
	router.GET("/ws", func(c *gin.Context) { s.handleWebsocket(ctx, c) })

	return router
}

func (s *Service) handleSystemStatus(c *gin.Context) {
	snap, err := s.status.snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build status snapshot"})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(snap))
}

func (s *Service) handleMusicLibrary(c *gin.Context) {
	names := s.library.Names()
	tracks := make([]gin.H, 0, len(names))
	for i, name := range names {
		track, _ := s.library.ByName(name)
		tracks = append(tracks, gin.H{
			"index":            i + 1,
			"name":             track.Name,
			"duration_seconds": track.DurationSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

func (s *Service) handleWebsocket(ctx context.Context, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger().Warnw("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 32)}
	s.hub.register(cl)
	go cl.writePump()
	cl.readPump(ctx, s.handleInboundCommand)
	s.hub.unregister(cl.id)
}

// handleInboundCommand decodes a client message's discriminator with
// gjson before committing to a full unmarshal into the matching command
// schema, mirroring socketio's per-event-name dispatch without needing
// a full parse to route.
func (s *Service) handleInboundCommand(ctx context.Context, clientID string, data []byte) {
	result := gjson.GetBytes(data, "type")
	if !result.Exists() {
		s.sendError(clientID, "", "missing command type", nil)
		return
	}

	var commandID string
	if id := gjson.GetBytes(data, "command_id"); id.Exists() {
		commandID = id.String()
	}

	switch result.String() {
	case "voice_command":
		s.routeVoiceCommand(ctx, clientID, commandID, data)
	case "music_command":
		s.routeMusicCommand(ctx, clientID, commandID, data)
	case "dj_command":
		s.routeDJCommand(ctx, clientID, commandID, data)
	case "system_command":
		s.routeSystemCommand(ctx, clientID, commandID, data)
	default:
		s.sendError(clientID, commandID, fmt.Sprintf("unknown command type: %s", result.String()), nil)
	}
}

func (s *Service) routeVoiceCommand(ctx context.Context, clientID, commandID string, data []byte) {
	var cmd webschema.VoiceCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.Logger().Warnw("invalid voice_command", "error", err)
		s.sendError(clientID, commandID, "malformed voice_command", nil)
		return
	}
	if err := webschema.Validate(cmd); err != nil {
		s.Logger().Warnw("invalid voice_command", "error", err)
		s.sendError(clientID, commandID, err.Error(), webschema.FieldErrors(err))
		return
	}
	s.Emit(ctx, bus.SystemSetModeRequest, cmd.ToSetModeRequest())
	s.sendAck(clientID, commandID)
}

func (s *Service) routeMusicCommand(ctx context.Context, clientID, commandID string, data []byte) {
	var cmd webschema.MusicCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.Logger().Warnw("invalid music_command", "error", err)
		s.sendError(clientID, commandID, "malformed music_command", nil)
		return
	}
	if err := webschema.Validate(cmd); err != nil {
		s.Logger().Warnw("invalid music_command", "error", err)
		s.sendError(clientID, commandID, err.Error(), webschema.FieldErrors(err))
		return
	}
	payload, err := cmd.ToMusicCommandPayload()
	if err != nil {
		s.Logger().Warnw("invalid music_command payload", "error", err)
		s.sendError(clientID, commandID, err.Error(), nil)
		return
	}
	s.Emit(ctx, bus.MusicCommand, payload)
	s.sendAck(clientID, commandID)
}

func (s *Service) routeDJCommand(ctx context.Context, clientID, commandID string, data []byte) {
	var cmd webschema.DJCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.Logger().Warnw("invalid dj_command", "error", err)
		s.sendError(clientID, commandID, "malformed dj_command", nil)
		return
	}
	if err := webschema.Validate(cmd); err != nil {
		s.Logger().Warnw("invalid dj_command", "error", err)
		s.sendError(clientID, commandID, err.Error(), webschema.FieldErrors(err))
		return
	}
	s.Emit(ctx, cmd.Topic(), cmd)
	s.sendAck(clientID, commandID)
}

func (s *Service) routeSystemCommand(ctx context.Context, clientID, commandID string, data []byte) {
	var cmd webschema.SystemCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.Logger().Warnw("invalid system_command", "error", err)
		s.sendError(clientID, commandID, "malformed system_command", nil)
		return
	}
	if err := cmd.Validate(); err != nil {
		s.Logger().Warnw("invalid system_command", "error", err)
		s.sendError(clientID, commandID, err.Error(), webschema.FieldErrors(err))
		return
	}
	if cmd.Action == "set_mode" {
		s.Emit(ctx, bus.SystemSetModeRequest, bus.SetModeRequestPayload{
			Envelope: bus.NewEnvelope(""),
			Mode:     cmd.Mode,
		})
	}
	s.sendAck(clientID, commandID)
}

// ackMessage is the command_ack/command_error shape sent back to the
// originating client only, matching spec.md §6's WebSocket server
// message kinds and boundary scenario 5's validation_errors list.
type ackMessage struct {
	Type             string   `json:"type"`
	CommandID        string   `json:"command_id"`
	OK               bool     `json:"ok"`
	Message          string   `json:"message,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// sendAck confirms a command was accepted and emitted.
func (s *Service) sendAck(clientID, commandID string) {
	s.sendToClient(clientID, ackMessage{Type: "command_ack", CommandID: commandID, OK: true})
}

// sendError reports a rejected command back to the originating client,
// never onto the bus, per the ValidationError taxonomy entry.
func (s *Service) sendError(clientID, commandID, message string, validationErrors []string) {
	s.sendToClient(clientID, ackMessage{
		Type:             "command_error",
		CommandID:        commandID,
		OK:               false,
		Message:          message,
		ValidationErrors: validationErrors,
	})
}

func (s *Service) sendToClient(clientID string, msg ackMessage) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		s.Logger().Warnw("failed to encode command ack", "client", clientID, "error", err)
		return
	}
	if !s.hub.sendTo(clientID, encoded) {
		s.Logger().Warnw("dropped command ack, client gone or slow", "client", clientID, "type", msg.Type)
	}
}

// republish wraps payload in a dashboardMessage and broadcasts it. For
// status-carrying topics it first validates the wrapper and broadcasts a
// structured error payload instead if that fails; the payload's own
// fields are not validated.
func (s *Service) republish(topic bus.Topic, payload interface{}) {
	if topic == bus.ServiceStatusUpdate {
		if status, ok := payload.(bus.ServiceStatusPayload); ok {
			s.status.update(status.Service, status.Status)
		}
	}

	msg := dashboardMessage{
		Topic:     string(topic),
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if statusCarryingTopics[topic] {
		if err := dashboardValidate.Struct(msg); err != nil {
			s.Logger().Warnw("dashboard payload failed validation, broadcasting fallback", "topic", topic, "error", err)
			msg = dashboardMessage{
				Topic:     string(topic),
				Data:      gin.H{"error": "payload validation failed"},
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			}
		}
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		s.Logger().Warnw("failed to encode dashboard message", "topic", topic, "error", err)
		return
	}
	s.hub.broadcast(encoded)
}

func (s *Service) periodicStatusBroadcast(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.clientCount() == 0 {
				continue
			}
			payload, send, err := s.status.shouldBroadcast(time.Now())
			if err != nil {
				s.Logger().Warnw("status snapshot failed", "error", err)
				continue
			}
			if !send {
				continue
			}
			msg := dashboardMessage{
				Topic:     "system_status",
				Data:      json.RawMessage(payload),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			}
			encoded, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			s.hub.broadcast(encoded)
		}
	}
}
