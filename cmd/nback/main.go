// Package main provides the CLI entrypoint for nback.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/nback/internal/config"
	"github.com/verte-zerg/nback/internal/game"
	"github.com/verte-zerg/nback/internal/generator"
	"github.com/verte-zerg/nback/internal/logging"
	"github.com/verte-zerg/nback/internal/model"
	"github.com/verte-zerg/nback/internal/speech"
	"github.com/verte-zerg/nback/internal/store"
	"github.com/verte-zerg/nback/internal/tui"
)

var (
	playMode      string
	playN         int
	playDelay     time.Duration
	playEvents    int
	playMatchPct  int
	playSpeak     bool
	playSpeechCmd string

	highscoreReset bool

	sequenceSeed int64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := model.DefaultSessionConfig()
	rootCmd := &cobra.Command{
		Use:           "nback",
		Short:         "TUI N-back memory trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	addSessionFlags(rootCmd, defaults)
	rootCmd.Flags().BoolVar(&playSpeak, "speak", true, "speak letters in audio modes")
	rootCmd.Flags().StringVar(&playSpeechCmd, "speech-cmd", "", "text-to-speech command (default: detect espeak/say)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHighscoreCmd())
	rootCmd.AddCommand(newSequenceCmd(defaults))

	return rootCmd
}

func addSessionFlags(cmd *cobra.Command, defaults model.SessionConfig) {
	cmd.Flags().StringVar(&playMode, "mode", defaults.Mode.String(), "game mode: audio, visual or audio-visual")
	cmd.Flags().IntVar(&playN, "n", defaults.N, "how many events back a match looks")
	cmd.Flags().DurationVar(&playDelay, "delay", defaults.EventDelay, "time each event is shown")
	cmd.Flags().IntVar(&playEvents, "events", defaults.Events, "events per session")
	cmd.Flags().IntVar(&playMatchPct, "match-pct", defaults.MatchPercent, "chance (0-100) an event is generated as a match")
}

type runtimeConfig struct {
	env       config.EnvConfig
	session   model.SessionConfig
	speak     bool
	speechCmd string
}

func resolveConfig(cmd *cobra.Command) (runtimeConfig, error) {
	envCfg, err := config.LoadEnv()
	if err != nil {
		return runtimeConfig{}, err
	}
	fileCfg, err := config.LoadConfig(envCfg.ConfigPath)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	session, err := fileCfg.Game.Apply(model.DefaultSessionConfig())
	if err != nil {
		return runtimeConfig{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("mode") {
		mode, err := model.ParseGameMode(playMode)
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("--mode: %w", err)
		}
		session.Mode = mode
	}
	if flags.Changed("n") {
		session.N = playN
	}
	if flags.Changed("delay") {
		session.EventDelay = playDelay
	}
	if flags.Changed("events") {
		session.Events = playEvents
	}
	if flags.Changed("match-pct") {
		session.MatchPercent = playMatchPct
	}
	if err := session.Validate(); err != nil {
		return runtimeConfig{}, err
	}
	applyBoolConfig(cmd, "speak", &playSpeak, fileCfg.Game.Speak)
	speechCmd := fileCfg.Game.SpeechCmd
	if envCfg.SpeechCmd != "" {
		speechCmd = &envCfg.SpeechCmd
	}
	applyStringConfig(cmd, "speech-cmd", &playSpeechCmd, speechCmd)

	return runtimeConfig{
		env:       envCfg,
		session:   session,
		speak:     playSpeak,
		speechCmd: playSpeechCmd,
	}, nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("nback needs an interactive terminal")
	}
	rc, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := logging.OpenFile(rc.env.LogPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()
	logger, err := logging.New(logFile, rc.env.LogLevel)
	if err != nil {
		return err
	}

	st, err := store.Open(rc.env.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctrl, err := game.NewController(ctx, rc.session, game.Options{
		Generator: generator.New(),
		Store:     st,
		Logger:    &logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()
	ctrl.SetShouldSpeak(rc.speak)

	sink := speech.Detect(rc.speechCmd, os.Stdout)
	if cs, ok := sink.(*speech.CommandSink); ok {
		defer cs.Close()
	}
	logger.Info().
		Str("mode", rc.session.Mode.String()).
		Int("n", rc.session.N).
		Str("sink", fmt.Sprintf("%T", sink)).
		Msg("starting nback")

	ui := tui.NewModel(ctx, ctrl, sink, logger)
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	envCfg, err := config.LoadEnv()
	if err != nil {
		return err
	}
	path := envCfg.ConfigPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newHighscoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "highscore",
		Short: "Show the saved high score",
		Args:  cobra.NoArgs,
		RunE:  runHighscoreCmd,
	}
	cmd.Flags().BoolVar(&highscoreReset, "reset", false, "clear the saved high score")
	return cmd
}

func runHighscoreCmd(cmd *cobra.Command, _ []string) error {
	envCfg, err := config.LoadEnv()
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, envCfg.LogLevel)
	if err != nil {
		return err
	}
	st, err := store.Open(envCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("failed to close db")
		}
	}()

	ctx := cmd.Context()
	if highscoreReset {
		if err := st.ResetHighScore(ctx); err != nil {
			return fmt.Errorf("failed to reset high score: %w", err)
		}
		logger.Info().Str("db", envCfg.DBPath).Msg("high score cleared")
		return nil
	}
	hs, err := st.LoadHighScore(ctx)
	if err != nil {
		return fmt.Errorf("failed to load high score: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), hs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newSequenceCmd(defaults model.SessionConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Print a generated stimulus sequence",
		Args:  cobra.NoArgs,
		RunE:  runSequenceCmd,
	}
	addSessionFlags(cmd, defaults)
	cmd.Flags().Int64Var(&sequenceSeed, "seed", 0, "random seed (default: time based)")
	return cmd
}

func runSequenceCmd(cmd *cobra.Command, _ []string) error {
	rc, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	gen := generator.New()
	if cmd.Flags().Changed("seed") {
		gen = generator.NewWithSeed(sequenceSeed)
	}
	cfg := rc.session
	seq, err := gen.Generate(cfg.Events, cfg.Events-1, cfg.MatchPercent, cfg.N)
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	return writeSequence(cmd, cfg, seq)
}

func writeSequence(cmd *cobra.Command, cfg model.SessionConfig, seq []int) error {
	out := cmd.OutOrStdout()
	values := make([]string, len(seq))
	letters := make([]string, len(seq))
	for i, v := range seq {
		values[i] = fmt.Sprint(v)
		letters[i] = game.Letter(v)
	}
	lines := []string{
		strings.Join(values, " "),
		strings.Join(letters, " "),
		fmt.Sprintf("%d matches at n=%d", generator.CountMatches(seq, cfg.N), cfg.N),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Lookup(name) == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Lookup(name) == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	defaults := model.DefaultSessionConfig()
	return fmt.Sprintf(`# nback configuration
# Uncomment a value to enable it. CLI flags override config values.

[game]
# mode = %q               # audio, visual or audio-visual
# n = %d                  # How many events back a match looks
# delay-ms = %d           # Time each event is shown
# events = %d             # Events per session
# match-pct = %d          # Chance (0-100) an event is generated as a match
# speak = true            # Speak letters in audio modes
# speech-cmd = "espeak"   # Text-to-speech command
`,
		defaults.Mode.String(),
		defaults.N,
		defaults.EventDelay.Milliseconds(),
		defaults.Events,
		defaults.MatchPercent,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
