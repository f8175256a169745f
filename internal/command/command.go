// Package command normalizes CLI and WebSocket ingress into one Command
// form and decides which topic a parsed command routes to. Grounded on
// cantina_os/services/cli_service.py's _process_command, with the
// WebSocket side grounded on cantina_os/schemas/web_commands.py (see
// internal/command/webschema).
package command

import (
	"strings"

	"github.com/google/uuid"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
)

// Command is the normalized form every ingress path (stdin, WebSocket)
// converges on before being routed and emitted onto the bus.
type Command struct {
	Command        string
	Subcommand     string
	Args           []string
	RawInput       string
	ConversationID string
}

// Shortcuts is the CLI's one-letter/short alias table, mirrored verbatim
// from CLIService.SHORTCUTS.
var Shortcuts = map[string]string{
	"e":   "engage",
	"a":   "ambient",
	"d":   "disengage",
	"h":   "help",
	"st":  "status",
	"r":   "reset",
	"q":   "quit",
	"l":   "list music",
	"p":   "play music",
	"s":   "stop music",
	"rec": "record",
}

// ModeCommands maps a CLI word to the mode it requests, mirrored from
// CLIService.MODE_COMMANDS.
var ModeCommands = map[string]string{
	"engage":    "INTERACTIVE",
	"ambient":   "AMBIENT",
	"disengage": "IDLE",
}

// Parse splits raw input into a Command, expanding shortcuts. Multi-word
// shortcut expansions (e.g. "l" -> "list music") are re-split so Command
// and Subcommand land correctly.
func Parse(raw string) Command {
	raw = strings.TrimSpace(raw)
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{RawInput: raw}
	}

	head := strings.ToLower(fields[0])
	args := fields[1:]

	if expansion, ok := Shortcuts[head]; ok {
		expFields := strings.Fields(expansion)
		head = expFields[0]
		if len(expFields) > 1 {
			args = append(expFields[1:], args...)
		}
	}

	cmd := Command{
		Command:  head,
		Args:     args,
		RawInput: raw,
	}
	if len(args) > 0 {
		cmd.Subcommand = args[0]
	}
	return cmd
}

// Topic decides which bus topic a parsed command routes to, mirroring the
// branch in CLIService._process_command: mode words go through
// system.set_mode.request, status/help/reset go through the debug/mode
// command topic, play/list/stop-music go through music.command, and
// everything else is a generic cli.command.
func (c Command) Topic() bus.Topic {
	switch {
	case c.Command == "quit" || c.Command == "exit":
		return bus.SystemShutdownRequest
	case isModeCommand(c.Command):
		return bus.SystemSetModeRequest
	case c.Command == "status" || c.Command == "help" || c.Command == "reset":
		return bus.DebugCommand
	case strings.HasPrefix(c.Command, "play") || strings.HasPrefix(c.Command, "list") ||
		(c.Command == "stop" && c.Subcommand == "music"):
		return bus.MusicCommand
	default:
		return bus.CLICommand
	}
}

func isModeCommand(word string) bool {
	_, ok := ModeCommands[word]
	return ok
}

// NewConversationID mints a fresh conversation id for a command that starts
// a new voice/text turn, matching the teacher's use of google/uuid for
// correlation ids throughout event_payloads.py.
func NewConversationID() string {
	return uuid.NewString()
}
