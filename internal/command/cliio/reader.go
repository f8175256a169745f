// Package cliio provides the terminal ingress/egress surface for the
// command pipeline: a stdin line reader that parses and emits commands,
// and a response printer for cli.response events. Grounded on
// cantina_os/services/cli_service.py's CLIService (_process_input,
// _handle_response), translated from its asyncio stream-reader approach to
// a background goroutine feeding the bus through command.Parse, per
// SPEC_FULL.md §8's thread-to-loop hand-off model.
package cliio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/command"
)

const prompt = "DJ-R3X> "

// Terminal reads lines from an input stream, parses them into Commands,
// and emits them onto the bus; it also prints cli.response events back to
// an output stream, color-coded by severity.
type Terminal struct {
	b   *bus.Bus
	in  io.Reader
	out io.Writer
	err io.Writer
}

// New constructs a Terminal bound to the given bus and I/O streams.
func New(b *bus.Bus, in io.Reader, out, errOut io.Writer) *Terminal {
	return &Terminal{b: b, in: in, out: out, err: errOut}
}

// Run subscribes to cli.response and reads lines from the input stream
// until ctx is cancelled or the stream is exhausted. Intended to run in
// its own goroutine, started by cmd/cantinaosd's main after the bus is
// running.
func (t *Terminal) Run(ctx context.Context) {
	unsub := t.b.Subscribe(bus.CLIResponse, func(ctx context.Context, payload interface{}) {
		t.handleResponse(payload)
	})
	defer unsub()

	fmt.Fprintln(t.out, "\nDJ R3X Voice Control CLI")
	fmt.Fprintln(t.out, "Type 'help' for available commands")
	fmt.Fprint(t.out, "\n"+prompt)

	lines := make(chan string)
	go t.scan(lines)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				t.emitShutdown(ctx)
				return
			}
			if t.process(ctx, line) {
				return
			}
			fmt.Fprint(t.out, prompt)
		}
	}
}

func (t *Terminal) scan(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// process parses and emits one line of input, returning true if the
// terminal should stop reading further input (a quit/exit command).
func (t *Terminal) process(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	cmd := command.Parse(trimmed)
	if cmd.Command == "quit" || cmd.Command == "exit" {
		t.emitShutdown(ctx)
		return true
	}

	t.b.Emit(ctx, cmd.Topic(), buildPayload(cmd))
	return false
}

func (t *Terminal) emitShutdown(ctx context.Context) {
	t.b.Emit(ctx, bus.SystemShutdownRequest, bus.NewEnvelope(""))
}

func buildPayload(cmd command.Command) interface{} {
	switch cmd.Topic() {
	case bus.SystemSetModeRequest:
		return bus.SetModeRequestPayload{
			Envelope: bus.NewEnvelope(""),
			Mode:     command.ModeCommands[cmd.Command],
		}
	case bus.MusicCommand:
		query := cmd.Args
		if cmd.Subcommand == "music" {
			query = cmd.Args[1:]
		}
		return bus.MusicCommandPayload{
			Envelope:  bus.NewEnvelope(""),
			Action:    cmd.Command,
			SongQuery: strings.Join(query, " "),
		}
	default:
		return cliCommandPayload{
			Envelope:   bus.NewEnvelope(""),
			Command:    cmd.Command,
			Subcommand: cmd.Subcommand,
			Args:       cmd.Args,
			RawInput:   cmd.RawInput,
		}
	}
}

// cliCommandPayload is the generic normalized command shape published on
// cli.command/debug.command, matching CliCommandPayload in
// event_payloads.py.
type cliCommandPayload struct {
	bus.Envelope
	Command    string   `json:"command"`
	Subcommand string   `json:"subcommand,omitempty"`
	Args       []string `json:"args,omitempty"`
	RawInput   string   `json:"raw_input"`
}

func (t *Terminal) handleResponse(payload interface{}) {
	p, ok := payload.(bus.CLIResponsePayload)
	if !ok {
		return
	}
	switch p.Severity {
	case "error", "critical":
		color.New(color.FgRed).Fprintln(t.err, p.Message)
	case "warning":
		color.New(color.FgYellow).Fprintln(t.out, p.Message)
	default:
		color.New(color.FgGreen).Fprintln(t.out, p.Message)
	}
	fmt.Fprint(t.out, prompt)
}
