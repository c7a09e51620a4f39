package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/nback/internal/model"
)

const testDelay = time.Second

type fixedGen struct {
	seq []int
	err error

	mu    sync.Mutex
	calls [][4]int
}

func (g *fixedGen) Generate(total, targetMatches, matchPercent, lag int) ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, [4]int{total, targetMatches, matchPercent, lag})
	if g.err != nil {
		return nil, g.err
	}
	return append([]int(nil), g.seq...), nil
}

type memStore struct {
	mu      sync.Mutex
	score   int
	saves   []int
	loadErr error
}

func (s *memStore) LoadHighScore(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.loadErr
}

func (s *memStore) SaveHighScore(_ context.Context, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, v)
	if v > s.score {
		s.score = v
	}
	return nil
}

func (s *memStore) saved() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.saves...)
}

type harness struct {
	c     *Controller
	clock *clockwork.FakeClock
	gen   *fixedGen
	store *memStore
}

func newHarness(t *testing.T, mode model.GameMode, n int, seq []int) *harness {
	t.Helper()
	cfg := model.SessionConfig{
		Mode:         mode,
		N:            n,
		EventDelay:   testDelay,
		Events:       len(seq),
		MatchPercent: 30,
	}
	h := &harness{
		clock: clockwork.NewFakeClock(),
		gen:   &fixedGen{seq: seq},
		store: &memStore{},
	}
	c, err := NewController(context.Background(), cfg, Options{
		Generator: h.gen,
		Store:     h.store,
		Clock:     h.clock,
	})
	require.NoError(t, err)
	h.c = c
	t.Cleanup(c.Close)
	return h
}

// waitTick blocks until the loop has published an event and is sleeping.
func (h *harness) waitTick(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
}

func (h *harness) next(t *testing.T) {
	t.Helper()
	h.clock.Advance(testDelay)
	h.waitTick(t)
}

func TestSessionScoringScenario(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 2, []int{3, 5, 3, 7, 3})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)

	require.Equal(t, [][4]int{{5, 4, 30, 2}}, h.gen.calls)

	st := h.c.State()
	require.True(t, st.Running())
	require.Equal(t, 1, st.Index)
	require.Equal(t, []int{3}, st.History)
	require.False(t, h.c.CheckMatch(), "no history yet")
	require.Equal(t, 0, h.c.State().Score)

	h.next(t)
	require.False(t, h.c.CheckMatch(), "history shorter than n+1")
	require.Equal(t, 0, h.c.State().Score)
	require.Equal(t, model.GuessNone, h.c.State().Guess)

	h.next(t)
	st = h.c.State()
	require.Equal(t, 3, st.EventValue)
	require.Equal(t, []int{3, 5, 3}, st.History)
	require.True(t, h.c.CheckMatch())
	st = h.c.State()
	require.Equal(t, RewardCorrect, st.Score)
	require.Equal(t, 1, st.Correct)
	require.Equal(t, model.GuessCorrect, st.Guess)
	require.True(t, st.EventScored)

	require.False(t, h.c.CheckMatch(), "second guess on one event is rejected")
	st = h.c.State()
	require.Equal(t, RewardCorrect, st.Score)
	require.Equal(t, model.GuessNone, st.Guess)

	h.next(t)
	require.False(t, h.c.CheckMatch())
	st = h.c.State()
	require.Equal(t, RewardCorrect-PenaltyWrong, st.Score)
	require.Equal(t, model.GuessWrong, st.Guess)

	h.next(t)
	require.True(t, h.c.CheckMatch())
	require.Equal(t, 2*RewardCorrect-PenaltyWrong, h.c.State().Score)

	// Trailing delay after the last event.
	h.next(t)
	st = h.c.State()
	require.True(t, st.Running())
	require.Equal(t, 5, st.Index)

	h.clock.Advance(testDelay)
	h.c.Wait()

	st = h.c.State()
	require.False(t, st.Running())
	require.Zero(t, st.Index)
	require.Equal(t, model.NoEvent, st.EventValue)
	require.Empty(t, st.History)
	require.False(t, st.EventScored)
	require.Equal(t, 15, st.Score)
	require.Equal(t, 15, st.HighScore)
	require.Equal(t, []int{15}, h.store.saved())

	res, ok := h.c.LastResult()
	require.True(t, ok)
	require.Equal(t, 15, res.Score)
	require.Equal(t, 2, res.Correct)
	require.Equal(t, 1, res.Wrong)
	require.Equal(t, 2, res.Matches)
	require.Equal(t, 0, res.Missed)
	require.True(t, res.NewHighScore)
	require.Equal(t, st.Config, res.Config)
}

func TestHistoryTracksIndex(t *testing.T) {
	seq := []int{1, 2, 3, 4, 5, 6}
	h := newHarness(t, model.ModeVisual, 1, seq)
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	for i := range seq {
		st := h.c.State()
		require.Equal(t, i+1, st.Index)
		require.Len(t, st.History, st.Index)
		require.Equal(t, seq[:i+1], st.History)
		h.next(t)
	}
}

func TestScoreCanGoNegative(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1, 2, 3, 4})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	for i := 0; i < 3; i++ {
		h.next(t)
		require.False(t, h.c.CheckMatch())
	}
	require.Equal(t, -3*PenaltyWrong, h.c.State().Score)

	h.next(t)
	h.clock.Advance(testDelay)
	h.c.Wait()
	st := h.c.State()
	require.Equal(t, 0, st.HighScore)
	require.Empty(t, h.store.saved())
	res, ok := h.c.LastResult()
	require.True(t, ok)
	require.False(t, res.NewHighScore)
	require.Equal(t, 3, res.Wrong)
}

func TestResetGameClearsSession(t *testing.T) {
	h := newHarness(t, model.ModeAudio, 1, []int{4, 4, 4, 4})
	h.store.score = 50
	c, err := NewController(context.Background(), h.c.State().Config, Options{
		Generator: h.gen,
		Store:     h.store,
		Clock:     h.clock,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	h.c = c

	require.NoError(t, c.StartGame(context.Background()))
	h.waitTick(t)
	h.next(t)
	require.True(t, c.CheckMatch())

	c.ResetGame()
	c.Wait()
	st := c.State()
	require.False(t, st.Running())
	require.Equal(t, model.NoEvent, st.EventValue)
	require.Empty(t, st.History)
	require.Equal(t, 0, st.Score)
	require.Equal(t, 0, st.Correct)
	require.False(t, st.SpeechPending)
	require.Equal(t, 50, st.HighScore)
	require.Equal(t, model.ModeAudio, st.Config.Mode)
	require.Equal(t, 1, st.Config.N)

	// The loop is gone: advancing the clock publishes nothing new.
	h.clock.Advance(10 * testDelay)
	require.Equal(t, st, c.State())

	// Reset on an idle controller is a no-op.
	c.ResetGame()
	require.Equal(t, st, c.State())
}

func TestStartGameReplacesRunningLoop(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{2, 2, 2})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	h.next(t)
	require.True(t, h.c.CheckMatch())
	first := h.c.State().SessionID

	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	st := h.c.State()
	require.NotEqual(t, first, st.SessionID)
	require.Equal(t, 1, st.Index)
	require.Equal(t, []int{2}, st.History)
	require.Equal(t, 0, st.Score)

	h.next(t)
	st = h.c.State()
	require.Equal(t, 2, st.Index)
	require.Equal(t, []int{2, 2}, st.History)
}

func TestStartGameShortSequence(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 2, []int{1, 2, 3, 4, 5})
	h.gen.seq = []int{1, 2}
	err := h.c.StartGame(context.Background())
	require.ErrorIs(t, err, ErrShortSequence)
	require.False(t, h.c.State().Running())

	h.gen.seq = nil
	err = h.c.StartGame(context.Background())
	require.ErrorIs(t, err, ErrShortSequence)
}

// requireIdleAfterFailedRestart checks that a failed StartGame on a running
// controller stops the old session and leaves the controller usable.
func requireIdleAfterFailedRestart(t *testing.T, h *harness, err error) {
	t.Helper()
	require.Error(t, err)
	h.c.Wait()
	st := h.c.State()
	require.False(t, st.Running())
	require.Zero(t, st.Index)
	require.Empty(t, st.History)
	require.Equal(t, model.NoEvent, st.EventValue)
	require.NoError(t, h.c.Configure(model.ModeAudio))

	h.clock.Advance(10 * testDelay)
	st = h.c.State()
	require.False(t, st.Running())
	require.Zero(t, st.Index)
}

func TestStartGameShortSequenceWhileRunning(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1, 2, 3})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	require.True(t, h.c.State().Running())

	h.gen.seq = []int{1}
	err := h.c.StartGame(context.Background())
	require.ErrorIs(t, err, ErrShortSequence)
	requireIdleAfterFailedRestart(t, h, err)
}

func TestStartGameGeneratorError(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 2, []int{1, 2, 3})
	boom := errors.New("boom")
	h.gen.err = boom
	err := h.c.StartGame(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, h.c.State().Running())
}

func TestStartGameGeneratorErrorWhileRunning(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1, 2, 3})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	h.next(t)

	boom := errors.New("boom")
	h.gen.err = boom
	err := h.c.StartGame(context.Background())
	require.ErrorIs(t, err, boom)
	requireIdleAfterFailedRestart(t, h, err)
}

func TestConfigureOnlyWhileIdle(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1, 2, 3})
	require.NoError(t, h.c.Configure(model.ModeAudio))
	require.Equal(t, model.ModeAudio, h.c.State().Config.Mode)

	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	require.ErrorIs(t, h.c.Configure(model.ModeVisual), ErrSessionActive)
	cfg := model.DefaultSessionConfig()
	require.ErrorIs(t, h.c.SetConfig(cfg), ErrSessionActive)
	require.Equal(t, model.ModeAudio, h.c.State().Config.Mode)

	h.c.ResetGame()
	require.NoError(t, h.c.SetConfig(cfg))
	require.Equal(t, cfg, h.c.State().Config)

	cfg.N = 0
	require.Error(t, h.c.SetConfig(cfg))
}

func TestConfigureRejectsUnknownMode(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1, 2, 3})
	require.ErrorContains(t, h.c.Configure(model.GameMode(7)), "mode must be")
	require.Equal(t, model.ModeVisual, h.c.State().Config.Mode)
}

func TestCheckMatchWhileIdle(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1, 1})
	require.False(t, h.c.CheckMatch())
	require.Equal(t, 0, h.c.State().Score)
}

func TestSpeechPayload(t *testing.T) {
	h := newHarness(t, model.ModeAudio, 1, []int{3, 12})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)

	text, ok := h.c.ConsumeSpeech()
	require.True(t, ok)
	require.Equal(t, "C", text)
	_, ok = h.c.ConsumeSpeech()
	require.False(t, ok, "payload is consumed once")

	h.next(t)
	text, ok = h.c.ConsumeSpeech()
	require.True(t, ok)
	require.Equal(t, "", text)
}

func TestVisualModeQueuesNoSpeech(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{3, 4})
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	_, ok := h.c.ConsumeSpeech()
	require.False(t, ok)
}

func TestMutedSpeech(t *testing.T) {
	h := newHarness(t, model.ModeAudioVisual, 1, []int{3, 4})
	h.c.SetShouldSpeak(false)
	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	_, ok := h.c.ConsumeSpeech()
	require.False(t, ok)
	require.Equal(t, 3, h.c.State().EventValue)
}

func TestEndGameTwiceKeepsHighScore(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{1})
	ctx := context.Background()
	h.c.mu.Lock()
	h.c.state.Score = 20
	h.c.mu.Unlock()

	h.c.endGame(ctx)
	require.Equal(t, 20, h.c.State().HighScore)
	h.c.endGame(ctx)
	require.Equal(t, 20, h.c.State().HighScore)
	require.Equal(t, []int{20}, h.store.saved())
}

func TestNewControllerLoadsHighScore(t *testing.T) {
	st := &memStore{score: 85}
	c, err := NewController(context.Background(), model.DefaultSessionConfig(), Options{Store: st})
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, 85, c.State().HighScore)

	st.loadErr = errors.New("disk gone")
	_, err = NewController(context.Background(), model.DefaultSessionConfig(), Options{Store: st})
	require.Error(t, err)

	bad := model.DefaultSessionConfig()
	bad.Events = 0
	_, err = NewController(context.Background(), bad, Options{})
	require.Error(t, err)
}

func TestSubscribeSeesSnapshotsInOrder(t *testing.T) {
	h := newHarness(t, model.ModeVisual, 1, []int{5, 6, 7})
	ch, unsubscribe := h.c.Subscribe()
	defer unsubscribe()

	require.NoError(t, h.c.StartGame(context.Background()))
	h.waitTick(t)
	h.next(t)
	h.next(t)

	var indices []int
	for len(indices) < 4 {
		select {
		case s := <-ch:
			indices = append(indices, s.Index)
		case <-time.After(2 * time.Second):
			require.Failf(t, "timed out waiting for snapshots", "got %v", indices)
		}
	}
	require.Equal(t, []int{0, 1, 2, 3}, indices)
}

func TestLetter(t *testing.T) {
	require.Equal(t, "A", Letter(1))
	require.Equal(t, "I", Letter(9))
	require.Equal(t, "", Letter(0))
	require.Equal(t, "", Letter(10))
	require.Equal(t, "", Letter(-1))
}
