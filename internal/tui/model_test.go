package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/nback/internal/game"
	"github.com/verte-zerg/nback/internal/model"
)

type fixedGen []int

func (g fixedGen) Generate(int, int, int, int) ([]int, error) {
	return append([]int(nil), g...), nil
}

type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSink) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func newTestModel(t *testing.T, seq []int) (*Model, *clockwork.FakeClock, *recordingSink) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cfg := model.SessionConfig{
		Mode:         model.ModeVisual,
		N:            1,
		EventDelay:   time.Second,
		Events:       len(seq),
		MatchPercent: 30,
	}
	ctrl, err := game.NewController(context.Background(), cfg, game.Options{
		Generator: fixedGen(seq),
		Clock:     clock,
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	sink := &recordingSink{}
	return NewModel(context.Background(), ctrl, sink, zerolog.Nop()), clock, sink
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func waitSleeping(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "loop never slept")
}

func TestHomeScreenModeToggle(t *testing.T) {
	m, _, _ := newTestModel(t, []int{1, 2, 3})
	require.Contains(t, m.View(), "High score: 0")
	m.Update(runes("a"))
	require.Equal(t, model.ModeAudio, m.state.Config.Mode)
	m.Update(runes("b"))
	require.Equal(t, model.ModeAudioVisual, m.ctrl.State().Config.Mode)
	m.Update(runes("s"))
	require.False(t, m.ctrl.State().ShouldSpeak)
	require.Contains(t, m.View(), "Speech: off")
}

func TestStartMatchAndStop(t *testing.T) {
	m, clock, _ := newTestModel(t, []int{4, 4, 5})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, screenGame, m.screen)
	waitSleeping(t, clock)
	clock.Advance(time.Second)
	waitSleeping(t, clock)

	m.Update(runes("m"))
	require.Equal(t, game.RewardCorrect, m.state.Score)
	require.Equal(t, model.GuessCorrect, m.state.Guess)
	out := m.renderFooter()
	require.Contains(t, out, "Event 2/3")
	require.Contains(t, out, "Score 10")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, screenHome, m.screen)
	require.False(t, m.ctrl.State().Running())
}

func TestStateMessagesSpeakAndShowResult(t *testing.T) {
	m, clock, sink := newTestModel(t, []int{2})
	m.Update(runes("a"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	waitSleeping(t, clock)

	_, cmd := m.Update(stateMsg(m.ctrl.State()))
	require.NotNil(t, cmd)
	require.False(t, m.ctrl.State().SpeechPending)
	msg, ok := m.speak("B")().(spokeMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	require.Equal(t, []string{"B"}, sink.texts)

	clock.Advance(time.Second)
	waitSleeping(t, clock)
	clock.Advance(time.Second)
	m.ctrl.Wait()

	m.Update(stateMsg(m.ctrl.State()))
	require.NotNil(t, m.result)
	require.Contains(t, m.View(), "Final score 0")
}

func TestRenderGridLightsOneCell(t *testing.T) {
	lit := renderGrid(5)
	dark := renderGrid(model.NoEvent)
	require.NotEqual(t, dark, lit)
	require.NotEqual(t, renderGrid(1), renderGrid(9))
}

func TestRenderFooterTruncates(t *testing.T) {
	m, _, _ := newTestModel(t, []int{1})
	m.screen = screenGame
	m.width = 12
	out := m.renderFooter()
	require.NotContains(t, out, "match")
	require.Contains(t, out, "…")
}
