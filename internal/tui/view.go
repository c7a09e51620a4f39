package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/nback/internal/model"
)

const gridSize = 3

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	textStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	wrongStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	cellStyle      = lipgloss.NewStyle().Width(5).Height(2).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#4A4A4A"))
	activeCell     = cellStyle.Background(lipgloss.Color("#C89A3A")).BorderForeground(lipgloss.Color("#C89A3A"))
	letterStyle    = lipgloss.NewStyle().Width(9).Height(3).Align(lipgloss.Center, lipgloss.Center).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#C89A3A")).Bold(true)
	activeModeChip = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#C89A3A"))
	modeChip       = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0")).Padding(0, 1).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#4A4A4A"))
)

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	if m.screen == screenHome {
		body = m.renderHome()
	} else {
		body = m.renderGame()
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return body + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	content := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, body)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return content + "\n" + footerLine
}

func (m *Model) renderHome() string {
	cfg := m.state.Config
	lines := []string{
		titleStyle.Render("N-Back"),
		"",
		textStyle.Render(fmt.Sprintf("High score: %d", m.state.HighScore)),
		"",
		mutedStyle.Render(settingsLine(cfg)),
		mutedStyle.Render(fmt.Sprintf("Speech: %s", onOff(m.state.ShouldSpeak))),
		"",
		renderModeChips(cfg.Mode),
	}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func settingsLine(cfg model.SessionConfig) string {
	return fmt.Sprintf("Mode %s · N = %d · %d events · %dms per event",
		cfg.Mode, cfg.N, cfg.Events, cfg.EventDelay.Milliseconds())
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func renderModeChips(active model.GameMode) string {
	modes := []model.GameMode{model.ModeAudio, model.ModeVisual, model.ModeAudioVisual}
	chips := make([]string, 0, len(modes))
	for _, mode := range modes {
		style := modeChip
		if mode == active {
			style = activeModeChip
		}
		chips = append(chips, style.Render(mode.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

func (m *Model) renderGame() string {
	s := m.state
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%d-Back · %s", s.Config.N, s.Config.Mode)),
		"",
	}
	value := model.NoEvent
	if s.Running() {
		value = s.EventValue
	}
	var stage []string
	if s.Config.Mode.Shows() {
		stage = append(stage, renderGrid(value))
	}
	if s.Config.Mode.Speaks() {
		stage = append(stage, renderLetter(s.SpeechText, s.Running()))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center, stage...), "")
	lines = append(lines, renderGuess(s.Guess))
	if !s.Running() && m.result != nil {
		lines = append(lines, "", renderResult(*m.result))
	}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

// renderGrid draws the 3x3 board with the cell for value lit. Values are
// numbered 1-9 row by row.
func renderGrid(value int) string {
	rows := make([]string, 0, gridSize)
	for r := 0; r < gridSize; r++ {
		cells := make([]string, 0, gridSize)
		for c := 0; c < gridSize; c++ {
			if r*gridSize+c+1 == value {
				cells = append(cells, activeCell.Render("  ●"))
				continue
			}
			cells = append(cells, cellStyle.Render(""))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderLetter(letter string, running bool) string {
	if !running || letter == "" {
		letter = "·"
	}
	return letterStyle.Render(letter)
}

func renderGuess(g model.GuessOutcome) string {
	switch g {
	case model.GuessCorrect:
		return correctStyle.Render("Match!")
	case model.GuessWrong:
		return wrongStyle.Render("No match")
	default:
		return " "
	}
}

func renderResult(r model.Result) string {
	lines := []string{
		textStyle.Render(fmt.Sprintf("Final score %d", r.Score)),
		mutedStyle.Render(fmt.Sprintf("Correct %d · Wrong %d · Missed %d of %d matches · Accuracy %.0f%%",
			r.Correct, r.Wrong, r.Missed, r.Matches, r.Accuracy()*100)),
	}
	if r.NewHighScore {
		lines = append(lines, correctStyle.Render("New high score!"))
	}
	lines = append(lines, mutedStyle.Render("enter to play again · esc for home"))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) renderFooter() string {
	var segments []string
	if m.screen == screenGame {
		s := m.state
		segments = append(segments,
			fmt.Sprintf("Event %d/%d", s.Index, s.Config.Events),
			fmt.Sprintf("Score %d", s.Score),
			fmt.Sprintf("Correct %d", s.Correct),
		)
	}
	segments = append(segments, fmt.Sprintf("High %d", m.state.HighScore))
	plain := strings.Join(segments, "  ")
	if m.width > 0 {
		plain = runewidth.Truncate(plain, m.width, "…")
	}
	out := footerStyle.Render(plain)

	keys := m.keys
	keys.home = m.screen == screenHome
	helpView := m.help.View(keys)
	if m.width == 0 || runewidth.StringWidth(plain)+2+lipgloss.Width(helpView) <= m.width {
		out += "  " + helpView
	}
	return out
}
