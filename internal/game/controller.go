// Package game implements the N-back round controller.
//
// A Controller owns one session at a time. StartGame launches a single
// goroutine that advances through a generated stimulus sequence, one event
// per configured delay; CheckMatch scores the user's guess against the value
// shown N events earlier. Every transition replaces the current GameState
// snapshot and publishes a copy to subscribers.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/nback/internal/generator"
	"github.com/verte-zerg/nback/internal/model"
)

// Scoring applied to the first guess on an event.
const (
	RewardCorrect = 10
	PenaltyWrong  = 5
)

var (
	// ErrSessionActive is returned when settings change while a session runs.
	ErrSessionActive = errors.New("session in progress")
	// ErrShortSequence is returned when the generator yields fewer values than requested.
	ErrShortSequence = errors.New("sequence shorter than requested")
)

// SequenceGenerator produces stimulus sequences.
type SequenceGenerator interface {
	Generate(total, targetMatches, matchPercent, lag int) ([]int, error)
}

// HighScoreStore persists the high score across runs.
type HighScoreStore interface {
	LoadHighScore(ctx context.Context) (int, error)
	SaveHighScore(ctx context.Context, v int) error
}

// Options carries the collaborators of a Controller. Store may be nil.
type Options struct {
	Generator SequenceGenerator
	Store     HighScoreStore
	Clock     clockwork.Clock
	Logger    *zerolog.Logger
}

// Controller drives N-back sessions.
type Controller struct {
	gen   SequenceGenerator
	store HighScoreStore
	clock clockwork.Clock
	log   zerolog.Logger

	// opMu serializes StartGame and ResetGame so at most one loop runs.
	opMu sync.Mutex

	mu         sync.Mutex
	state      model.GameState
	sequence   []int
	wrong      int
	startedAt  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	lastResult *model.Result

	broker *broker
}

// NewController builds an idle controller and loads the stored high score.
func NewController(ctx context.Context, cfg model.SessionConfig, opts Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Generator == nil {
		opts.Generator = generator.New()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	c := &Controller{
		gen:    opts.Generator,
		store:  opts.Store,
		clock:  opts.Clock,
		log:    logger.With().Str("component", "game").Logger(),
		state:  model.NewGameState(cfg),
		broker: newBroker(),
	}
	if c.store != nil {
		hs, err := c.store.LoadHighScore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load high score: %w", err)
		}
		c.state.HighScore = hs
	}
	return c, nil
}

// State returns the current snapshot.
func (c *Controller) State() model.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe returns a channel of snapshots in the order they were produced
// and a func that cancels the subscription.
func (c *Controller) Subscribe() (<-chan model.GameState, func()) {
	return c.broker.subscribe()
}

// LastResult returns the summary of the most recently finished session.
func (c *Controller) LastResult() (model.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil {
		return model.Result{}, false
	}
	return *c.lastResult, true
}

// Configure sets the mode for the next session.
func (c *Controller) Configure(mode model.GameMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Running() {
		return ErrSessionActive
	}
	cfg := c.state.Config
	cfg.Mode = mode
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.state.Config = cfg
	c.publishLocked()
	return nil
}

// SetConfig replaces all settings for the next session.
func (c *Controller) SetConfig(cfg model.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Running() {
		return ErrSessionActive
	}
	c.state.Config = cfg
	c.publishLocked()
	return nil
}

// SetShouldSpeak toggles whether speaking modes queue a speech payload.
func (c *Controller) SetShouldSpeak(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ShouldSpeak = v
	if !v {
		c.state.SpeechPending = false
	}
	c.publishLocked()
}

// ConsumeSpeech returns the pending speech payload once.
func (c *Controller) ConsumeSpeech() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.SpeechPending {
		return "", false
	}
	c.state.SpeechPending = false
	c.publishLocked()
	return c.state.SpeechText, true
}

// StartGame replaces any running session with a new one. The sequence is
// generated synchronously; events are then advanced on a background
// goroutine bound to ctx. If generation fails the previous session is
// still stopped and the controller is left idle. Cancelling ctx abandons the session without
// ending it; ResetGame returns the controller to idle.
func (c *Controller) StartGame(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopLoop()

	c.mu.Lock()
	cfg := c.state.Config
	c.mu.Unlock()

	seq, err := c.generate(cfg)
	if err != nil {
		c.mu.Lock()
		c.clearSessionLocked()
		c.state.Phase = model.PhaseIdle
		c.publishLocked()
		c.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.clearSessionLocked()
	c.state.Phase = model.PhaseRunning
	c.state.SessionID = uuid.NewString()
	c.sequence = seq
	c.startedAt = c.clock.Now()
	c.cancel = cancel
	c.done = done
	sessionID := c.state.SessionID
	c.publishLocked()
	c.mu.Unlock()

	c.log.Info().
		Str("session_id", sessionID).
		Str("mode", cfg.Mode.String()).
		Int("n", cfg.N).
		Dur("delay", cfg.EventDelay).
		Ints("sequence", seq).
		Msg("session started")

	go c.run(loopCtx, cancel, done, seq, cfg.EventDelay)
	return nil
}

// generate asks for a sequence with a match on all but one event and trims
// it to cfg.Events.
func (c *Controller) generate(cfg model.SessionConfig) ([]int, error) {
	seq, err := c.gen.Generate(cfg.Events, cfg.Events-1, cfg.MatchPercent, cfg.N)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}
	if len(seq) < cfg.Events {
		return nil, fmt.Errorf("%w: got %d of %d events", ErrShortSequence, len(seq), cfg.Events)
	}
	return seq[:cfg.Events], nil
}

// CheckMatch scores a guess that the current value matches the value shown
// N events earlier. Guesses without enough history, repeated guesses on one
// event and guesses while idle are rejected: they return false, leave the
// score alone and reset the outcome to GuessNone.
func (c *Controller) CheckMatch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.state
	n := s.Config.N
	if !s.Running() || len(s.History) < n+1 || s.EventScored {
		s.Guess = model.GuessNone
		c.publishLocked()
		return false
	}

	ref := s.History[len(s.History)-n-1]
	match := ref == s.EventValue
	if match {
		s.Score += RewardCorrect
		s.Correct++
		s.Guess = model.GuessCorrect
	} else {
		s.Score -= PenaltyWrong
		c.wrong++
		s.Guess = model.GuessWrong
	}
	s.EventScored = true
	c.publishLocked()

	c.log.Debug().
		Str("session_id", s.SessionID).
		Int("index", s.Index).
		Bool("match", match).
		Int("score", s.Score).
		Msg("guess scored")
	return match
}

// ResetGame stops the running session and clears session state. The high
// score and settings are kept.
func (c *Controller) ResetGame() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopLoop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearSessionLocked()
	c.state.Phase = model.PhaseIdle
	c.publishLocked()
}

// Wait blocks until the current session loop has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops any running session and closes all subscriptions.
func (c *Controller) Close() {
	c.ResetGame()
	c.broker.close()
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, seq []int, delay time.Duration) {
	defer close(done)
	defer cancel()

	for i, v := range seq {
		if !c.tick(ctx, i, v) {
			return
		}
		if !c.sleep(ctx, delay) {
			return
		}
	}
	if !c.sleep(ctx, delay) {
		return
	}
	c.endGame(ctx)
}

func (c *Controller) tick(ctx context.Context, i, v int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s := &c.state
	s.Index = i + 1
	s.EventValue = v
	s.EventScored = false
	s.History = append(s.History, v)
	s.Guess = model.GuessNone
	if s.Config.Mode.Speaks() && s.ShouldSpeak {
		s.SpeechText = Letter(v)
		s.SpeechPending = true
	}
	c.publishLocked()

	c.log.Debug().
		Str("session_id", s.SessionID).
		Int("index", s.Index).
		Int("value", v).
		Msg("event")
	return true
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		timer.Stop()
		return false
	}
}

// endGame returns the controller to idle and records the high score.
func (c *Controller) endGame(ctx context.Context) {
	c.mu.Lock()
	s := &c.state
	improved := s.Score > s.HighScore
	if improved {
		s.HighScore = s.Score
	}

	matches := generator.CountMatches(c.sequence, s.Config.N)
	missed := matches - s.Correct
	if missed < 0 {
		missed = 0
	}
	result := model.Result{
		SessionID:    s.SessionID,
		Config:       s.Config,
		Score:        s.Score,
		Correct:      s.Correct,
		Wrong:        c.wrong,
		Missed:       missed,
		Matches:      matches,
		StartedAt:    c.startedAt,
		EndedAt:      c.clock.Now(),
		NewHighScore: improved,
	}
	if s.SessionID != "" {
		c.lastResult = &result
	}

	s.Phase = model.PhaseIdle
	s.Index = 0
	s.EventValue = model.NoEvent
	s.EventScored = false
	s.History = nil
	s.SpeechPending = false
	highScore := s.HighScore
	c.publishLocked()
	c.mu.Unlock()

	c.log.Info().
		Str("session_id", result.SessionID).
		Int("score", result.Score).
		Int("correct", result.Correct).
		Int("wrong", result.Wrong).
		Int("missed", result.Missed).
		Bool("new_high_score", improved).
		Msg("session finished")

	if improved && c.store != nil {
		if err := c.store.SaveHighScore(ctx, highScore); err != nil {
			c.log.Error().Err(err).Int("high_score", highScore).Msg("failed to save high score")
		}
	}
}

// stopLoop cancels the running loop, if any, and waits for it to exit.
// Calling it with no loop running is a no-op.
func (c *Controller) stopLoop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Controller) clearSessionLocked() {
	s := &c.state
	s.EventValue = model.NoEvent
	s.Index = 0
	s.History = nil
	s.EventScored = false
	s.Guess = model.GuessNone
	s.Correct = 0
	s.Score = 0
	s.SpeechText = ""
	s.SpeechPending = false
	c.wrong = 0
}

func (c *Controller) publishLocked() {
	c.broker.publish(c.state)
}
