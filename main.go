// Package main is the entry point for the pokeagent CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gerunddev/pokeagent/internal/app"
	"github.com/gerunddev/pokeagent/internal/log"
)

// appFactory is the function used to create a new app.App.
// It can be replaced in tests to mock app creation.
var appFactory = defaultAppFactory

// defaultAppFactory is the production app factory implementation.
func defaultAppFactory(cfg app.Config) (App, error) {
	return app.New(cfg)
}

// App interface defines the methods needed from app.App for testing.
type App interface {
	Run(ctx context.Context) error
	RunHeadless(ctx context.Context) (*app.Result, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// runFlags holds the root command's flag values.
type runFlags struct {
	configPath string
	mode       string
	maxTicks   int
	replay     string
	noTUI      bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "pokeagent",
		Short: "Play Pokemon Emerald with a language-model agent",
		Long: `pokeagent reads game state from an emulator server (or a replay file),
asks a language model what to do, and sends the chosen buttons back.

Each tick runs perception, planning, memory and action stages, or a single
combined query in simple mode. Every tick is recorded for later inspection.

Examples:
  pokeagent                              # Run against the configured emulator
  pokeagent --mode simple                # Single-query agent
  pokeagent --replay run.jsonl --no-tui  # Replay snapshots headless
  pokeagent --max-ticks 200              # Stop after 200 ticks
  pokeagent sessions list                # Show recorded sessions`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"Config file (default ~/.config/pokeagent/config.yaml)")
	rootCmd.Flags().StringVarP(&flags.mode, "mode", "m", "",
		"Agent mode: four-module or simple (overrides config)")
	rootCmd.Flags().IntVar(&flags.maxTicks, "max-ticks", 0,
		"Stop after this many ticks (overrides config)")
	rootCmd.Flags().StringVar(&flags.replay, "replay", "",
		"Read snapshots from a JSONL replay file instead of the emulator")
	rootCmd.Flags().BoolVar(&flags.noTUI, "no-tui", false,
		"Log ticks to stderr instead of showing the TUI")
	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(sessionsCmd(&flags.configPath))

	return rootCmd
}

// runSession creates the app and runs one session.
func runSession(ctx context.Context, flags *runFlags, out io.Writer) error {
	if flags.maxTicks < 0 {
		return errors.New("--max-ticks cannot be negative")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := appFactory(app.Config{
		ConfigPath:       flags.configPath,
		ModeOverride:     flags.mode,
		MaxTicksOverride: flags.maxTicks,
		ReplayOverride:   flags.replay,
	})
	if err != nil {
		return err
	}

	if flags.verbose {
		log.SetLevelFromString("debug")
	}

	if !flags.noTUI {
		return a.Run(ctx)
	}

	result, err := a.RunHeadless(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s %s after %d tick(s)\n", result.SessionID, result.Status, result.Ticks)

	// Interrupting a headless run is a normal way to stop it
	if result.Error != nil && !errors.Is(result.Error, context.Canceled) {
		return result.Error
	}
	return nil
}
