// Package tui provides the Bubble Tea N-back interface.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/nback/internal/game"
	"github.com/verte-zerg/nback/internal/model"
	"github.com/verte-zerg/nback/internal/speech"
)

type screen int

const (
	screenHome screen = iota
	screenGame
)

type stateMsg model.GameState

type spokeMsg struct {
	err error
}

// Model implements the Bubble Tea N-back UI.
type Model struct {
	ctx  context.Context
	ctrl *game.Controller
	sink speech.Sink
	log  zerolog.Logger

	updates     <-chan model.GameState
	unsubscribe func()

	state  model.GameState
	screen screen
	result *model.Result
	errMsg string

	keys keyMap
	help help.Model

	width  int
	height int
}

// NewModel constructs the UI over ctrl. Speech payloads go to sink.
func NewModel(ctx context.Context, ctrl *game.Controller, sink speech.Sink, log zerolog.Logger) *Model {
	if sink == nil {
		sink = speech.NopSink{}
	}
	updates, unsubscribe := ctrl.Subscribe()
	return &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		sink:        sink,
		log:         log,
		updates:     updates,
		unsubscribe: unsubscribe,
		state:       ctrl.State(),
		screen:      screenHome,
		keys:        newKeyMap(),
		help:        help.New(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForState(m.updates)
}

func waitForState(ch <-chan model.GameState) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case stateMsg:
		return m, m.applyState(model.GameState(msg))
	case spokeMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("failed to speak stimulus")
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) applyState(s model.GameState) tea.Cmd {
	wasRunning := m.state.Running()
	prevSession := m.state.SessionID
	m.state = s
	if wasRunning && !s.Running() && m.screen == screenGame {
		if r, ok := m.ctrl.LastResult(); ok && r.SessionID == prevSession {
			m.result = &r
		}
	}
	cmds := []tea.Cmd{waitForState(m.updates)}
	if s.SpeechPending {
		if text, ok := m.ctrl.ConsumeSpeech(); ok {
			cmds = append(cmds, m.speak(text))
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) speak(text string) tea.Cmd {
	sink := m.sink
	ctx := m.ctx
	return func() tea.Msg {
		return spokeMsg{err: sink.Speak(ctx, text)}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.shutdown()
		return m, tea.Quit
	}
	if m.screen == screenHome {
		m.handleHomeKey(msg)
		return m, nil
	}
	m.handleGameKey(msg)
	return m, nil
}

func (m *Model) handleHomeKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Start):
		m.start()
	case key.Matches(msg, m.keys.Audio):
		m.configure(model.ModeAudio)
	case key.Matches(msg, m.keys.Visual):
		m.configure(model.ModeVisual)
	case key.Matches(msg, m.keys.AudioVisual):
		m.configure(model.ModeAudioVisual)
	case key.Matches(msg, m.keys.Speak):
		m.ctrl.SetShouldSpeak(!m.ctrl.State().ShouldSpeak)
		m.state = m.ctrl.State()
	}
}

func (m *Model) handleGameKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Match):
		m.ctrl.CheckMatch()
		m.state = m.ctrl.State()
	case key.Matches(msg, m.keys.Start):
		if !m.state.Running() {
			m.start()
		}
	case key.Matches(msg, m.keys.Back):
		m.ctrl.ResetGame()
		m.state = m.ctrl.State()
		m.result = nil
		m.screen = screenHome
	}
}

func (m *Model) configure(mode model.GameMode) {
	if err := m.ctrl.Configure(mode); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.state = m.ctrl.State()
}

func (m *Model) start() {
	if err := m.ctrl.StartGame(m.ctx); err != nil {
		m.errMsg = err.Error()
		m.log.Error().Err(err).Msg("failed to start game")
		return
	}
	m.errMsg = ""
	m.result = nil
	m.screen = screenGame
	m.state = m.ctrl.State()
}

func (m *Model) shutdown() {
	m.ctrl.ResetGame()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}
