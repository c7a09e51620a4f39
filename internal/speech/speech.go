// Package speech vocalizes stimulus letters.
package speech

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Sink speaks a text payload.
type Sink interface {
	Speak(ctx context.Context, text string) error
}

// NopSink discards every payload.
type NopSink struct{}

// Speak implements Sink.
func (NopSink) Speak(context.Context, string) error { return nil }

// BellSink rings the terminal bell for every non-empty payload.
type BellSink struct {
	W io.Writer
}

// Speak implements Sink.
func (b BellSink) Speak(_ context.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := io.WriteString(b.W, "\a")
	return err
}

// CommandSink runs an external text-to-speech command with the payload as its
// final argument. A new payload interrupts the one still being spoken.
type CommandSink struct {
	name string
	args []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandSink parses command ("espeak -s 160") into a sink.
func NewCommandSink(command string) (*CommandSink, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &CommandSink{name: parts[0], args: parts[1:]}, nil
}

// Speak implements Sink. It returns once the command has started.
func (s *CommandSink) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	cmdCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	cmd := exec.CommandContext(cmdCtx, s.name, append(append([]string(nil), s.args...), text)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", s.name, err)
	}
	go func() {
		_ = cmd.Wait()
		cancel()
	}()
	return nil
}

// Close stops the payload still being spoken, if any.
func (s *CommandSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

var knownCommands = []string{"espeak-ng", "espeak", "say", "spd-say"}

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// Detect returns a sink for command, or for the first text-to-speech program
// found on PATH when command is empty. Without one, it falls back to the
// terminal bell on fallback.
func Detect(command string, fallback io.Writer) Sink {
	if command != "" {
		if sink, err := NewCommandSink(command); err == nil {
			return sink
		}
	}
	for _, name := range knownCommands {
		if _, err := lookPath(name); err == nil {
			sink, _ := NewCommandSink(name)
			return sink
		}
	}
	if fallback == nil {
		return NopSink{}
	}
	return BellSink{W: fallback}
}
