// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// NoEvent is the event value published while no stimulus is active.
const NoEvent = -1

// GameMode selects how each stimulus is presented.
type GameMode int

const (
	ModeVisual GameMode = iota
	ModeAudio
	ModeAudioVisual
)

// String returns the flag/config spelling of the mode.
func (m GameMode) String() string {
	switch m {
	case ModeAudio:
		return "audio"
	case ModeVisual:
		return "visual"
	case ModeAudioVisual:
		return "audio-visual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Speaks reports whether ticks in this mode queue a speech payload.
func (m GameMode) Speaks() bool {
	return m == ModeAudio || m == ModeAudioVisual
}

// Shows reports whether ticks in this mode light up the grid.
func (m GameMode) Shows() bool {
	return m == ModeVisual || m == ModeAudioVisual
}

// ParseGameMode parses a mode name. Matching is case-insensitive.
func ParseGameMode(s string) (GameMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio":
		return ModeAudio, nil
	case "visual":
		return ModeVisual, nil
	case "audio-visual", "audiovisual", "av":
		return ModeAudioVisual, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (expected audio, visual or audio-visual)", s)
	}
}

// GuessOutcome is the result of the last guess on the current event.
type GuessOutcome int

const (
	GuessNone GuessOutcome = iota
	GuessCorrect
	GuessWrong
)

func (g GuessOutcome) String() string {
	switch g {
	case GuessCorrect:
		return "correct"
	case GuessWrong:
		return "wrong"
	default:
		return "none"
	}
}

// Phase is the controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	if p == PhaseRunning {
		return "running"
	}
	return "idle"
}

// SessionConfig defines game settings. It does not change while a session runs.
type SessionConfig struct {
	Mode         GameMode      `validate:"gte=0,lte=2"`
	N            int           `validate:"gte=1"`
	EventDelay   time.Duration `validate:"gt=0"`
	Events       int           `validate:"gte=1"`
	MatchPercent int           `validate:"gte=0,lte=100"`
}

// DefaultSessionConfig returns the stock game settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Mode:         ModeVisual,
		N:            2,
		EventDelay:   2000 * time.Millisecond,
		Events:       10,
		MatchPercent: 30,
	}
}

// GameState is an immutable snapshot of a game session.
type GameState struct {
	Phase     Phase
	Config    SessionConfig
	SessionID string

	// Index is the number of events shown so far in the session.
	Index       int
	EventValue  int
	History     []int
	EventScored bool
	Guess       GuessOutcome
	Correct     int
	Score       int
	HighScore   int

	SpeechText    string
	SpeechPending bool
	ShouldSpeak   bool
}

// NewGameState returns an idle state for cfg.
func NewGameState(cfg SessionConfig) GameState {
	return GameState{
		Phase:       PhaseIdle,
		Config:      cfg,
		EventValue:  NoEvent,
		ShouldSpeak: true,
	}
}

// Clone returns a copy that shares no memory with s.
func (s GameState) Clone() GameState {
	out := s
	if s.History != nil {
		out.History = append([]int(nil), s.History...)
	}
	return out
}

// Running reports whether a session is in progress.
func (s GameState) Running() bool {
	return s.Phase == PhaseRunning
}

// Result summarizes a finished session.
type Result struct {
	SessionID    string
	Config       SessionConfig
	Score        int
	Correct      int
	Wrong        int
	Missed       int
	Matches      int
	StartedAt    time.Time
	EndedAt      time.Time
	NewHighScore bool
}

// Accuracy returns correct guesses over all guesses, or 0 without guesses.
func (r Result) Accuracy() float64 {
	total := r.Correct + r.Wrong
	if total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(total)
}
