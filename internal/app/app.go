// Package app wires configuration, the oracle, the state source and the
// trace store into one agent session, with or without the TUI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerunddev/pokeagent/internal/agent"
	"github.com/gerunddev/pokeagent/internal/config"
	"github.com/gerunddev/pokeagent/internal/db"
	"github.com/gerunddev/pokeagent/internal/emulator"
	"github.com/gerunddev/pokeagent/internal/log"
	"github.com/gerunddev/pokeagent/internal/loop"
	"github.com/gerunddev/pokeagent/internal/metrics"
	"github.com/gerunddev/pokeagent/internal/oracle"
	"github.com/gerunddev/pokeagent/internal/prompt"
	"github.com/gerunddev/pokeagent/internal/tracing"
	"github.com/gerunddev/pokeagent/internal/tui"
)

// App orchestrates one agent session.
type App struct {
	cfg *config.Config

	db      *db.DB
	metrics *metrics.Metrics
	oracle  oracle.Oracle
	source  emulator.Source
	agent   agent.Runner

	// loop is set after initialization
	loop *loop.Loop

	stopMetrics     context.CancelFunc
	metricsDone     chan struct{}
	shutdownTracing func(context.Context) error

	// For testing: allow injecting fake dependencies
	oracleOverride oracle.Oracle
	sourceOverride emulator.Source
}

// Config holds command-line overrides for creating a new App.
type Config struct {
	// ConfigPath selects the config file. Empty uses the standard location.
	ConfigPath string

	// ModeOverride overrides agent.mode when non-empty.
	ModeOverride string

	// MaxTicksOverride overrides agent.max_ticks when > 0.
	MaxTicksOverride int

	// ReplayOverride overrides emulator.replay_path when non-empty.
	ReplayOverride string
}

// New loads configuration, applies overrides and creates an App.
func New(cfg Config) (*App, error) {
	var (
		appConfig *config.Config
		err       error
	)
	if cfg.ConfigPath != "" {
		appConfig, err = config.LoadFromPath(cfg.ConfigPath)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ModeOverride != "" {
		appConfig.Agent.Mode = cfg.ModeOverride
	}
	if cfg.MaxTicksOverride > 0 {
		appConfig.Agent.MaxTicks = cfg.MaxTicksOverride
	}
	if cfg.ReplayOverride != "" {
		appConfig.Emulator.ReplayPath = cfg.ReplayOverride
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return NewWithConfig(appConfig), nil
}

// NewWithConfig creates an App from an already loaded configuration.
func NewWithConfig(cfg *config.Config) *App {
	if cfg.LogLevel != "" && !log.SetLevelFromString(cfg.LogLevel) {
		log.Warn("unknown log level, keeping current", "level", cfg.LogLevel)
	}
	return &App{cfg: cfg}
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// SetOracle allows injecting a fake oracle for testing.
func (a *App) SetOracle(o oracle.Oracle) {
	a.oracleOverride = o
}

// SetSource allows injecting a fake state source for testing.
func (a *App) SetSource(s emulator.Source) {
	a.sourceOverride = s
}

// initDependencies initializes all required dependencies.
func (a *App) initDependencies(ctx context.Context) error {
	database, err := db.New(a.cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = database

	a.metrics = metrics.New()
	if a.cfg.Metrics.Addr != "" {
		a.startMetrics(a.cfg.Metrics.Addr)
	}

	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "pokeagent",
		Endpoint:    a.cfg.Tracing.Endpoint,
		Insecure:    a.cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.shutdownTracing = shutdown

	if a.oracleOverride != nil {
		a.oracle = a.oracleOverride
	} else {
		client, err := oracle.NewFromConfig(ctx, a.cfg, a.metrics)
		if err != nil {
			return fmt.Errorf("failed to create oracle: %w", err)
		}
		a.oracle = client
	}

	system, err := a.cfg.GetSystemPrompt()
	if err != nil {
		return err
	}

	a.agent, err = agent.New(agent.Options{
		Mode:    a.cfg.Agent.Mode,
		Oracle:  a.oracle,
		Prompts: prompt.NewBuilder(system),
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	if a.sourceOverride != nil {
		a.source = a.sourceOverride
	} else {
		a.source, err = emulator.NewFromConfig(a.cfg.Emulator)
		if err != nil {
			return fmt.Errorf("failed to open state source: %w", err)
		}
	}

	return nil
}

// startMetrics serves /metrics in the background until cleanup.
func (a *App) startMetrics(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopMetrics = cancel
	a.metricsDone = make(chan struct{})
	go func() {
		defer close(a.metricsDone)
		if err := a.metrics.Serve(ctx, addr); err != nil {
			log.Error("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
}

// cleanup releases resources.
func (a *App) cleanup() {
	if a.source != nil {
		log.CloseError("state source", a.source.Close())
	}
	if a.db != nil {
		log.CloseError("database", a.db.Close())
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		<-a.metricsDone
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}
}

// sourceName describes where snapshots come from, for the session row.
func (a *App) sourceName() string {
	if a.sourceOverride != nil {
		return "injected"
	}
	if a.cfg.Emulator.ReplayPath != "" {
		return a.cfg.Emulator.ReplayPath
	}
	return a.cfg.Emulator.URL
}

// createLoop creates a new loop instance with the initialized dependencies.
func (a *App) createLoop() {
	a.loop = loop.New(loop.Config{
		MaxTicks:  a.cfg.Agent.MaxTicks,
		TickDelay: a.cfg.Agent.TickDelay,
		Backend:   a.cfg.Oracle.Backend,
		Model:     a.cfg.Oracle.Model,
		Source:    a.sourceName(),
	}, loop.Deps{
		Agent:  a.agent,
		Source: a.source,
		DB:     a.db,
	})
}

// Result holds the result of a finished session.
type Result struct {
	SessionID string
	Ticks     int
	Status    db.SessionStatus
	Error     error
}

// Run runs a session with the TUI. Quitting the TUI cancels the session.
func (a *App) Run(ctx context.Context) error {
	// Keep log lines off the alt screen
	logFile, err := openLogFile(a.cfg.DataDir)
	if err != nil {
		return err
	}
	log.SetOutput(logFile)
	defer func() {
		log.SetOutput(os.Stderr)
		log.CloseError("log file", logFile.Close())
	}()

	if err := a.initDependencies(ctx); err != nil {
		a.cleanup()
		return err
	}
	defer a.cleanup()

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	a.createLoop()

	model := tui.NewModelWithEvents(a.loop.Events(), a.agent.Mode())
	p := tea.NewProgram(model, tea.WithAltScreen())

	loopDone := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		loopDone <- a.loop.Run(loopCtx)
	}()

	// Run the TUI (blocks until quit)
	_, tuiErr := p.Run()

	cancelLoop()
	wg.Wait()
	loopErr := <-loopDone

	if tuiErr != nil {
		return tuiErr
	}

	// Context.Canceled is expected when user quits
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return loopErr
	}
	return nil
}

// openLogFile opens DataDir/pokeagent.log for appending.
func openLogFile(dataDir string) (*os.File, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "pokeagent.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// RunHeadless runs a session without the TUI, logging each event.
func (a *App) RunHeadless(ctx context.Context) (*Result, error) {
	if err := a.initDependencies(ctx); err != nil {
		a.cleanup()
		return nil, err
	}
	defer a.cleanup()

	a.createLoop()

	// Loop.Run closes the events channel on return, ending this goroutine.
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for ev := range a.loop.Events() {
			logEvent(ev)
		}
	}()

	loopErr := a.loop.Run(ctx)
	<-logged

	result := &Result{
		SessionID: a.loop.SessionID(),
		Ticks:     a.loop.CurrentTick(),
		Error:     loopErr,
	}
	if session, err := a.db.GetSession(result.SessionID); err == nil {
		result.Status = session.Status
	} else {
		log.Warn("failed to read session status", "session", result.SessionID, "error", err)
	}
	return result, nil
}

// logEvent writes a loop event as a structured log line.
func logEvent(ev loop.Event) {
	switch ev.Type {
	case loop.EventTickEnd:
		kv := []interface{}{"tick", ev.Tick, "frame", ev.FrameID, "duration", ev.Duration}
		if ev.Result != nil {
			kv = append(kv, "buttons", ev.Result.Buttons)
			if ev.Result.PlanCreated {
				kv = append(kv, "plan", ev.Result.Plan)
			}
			if ev.Result.Fallback != "" {
				kv = append(kv, "fallback", ev.Result.Fallback)
			}
		}
		log.Info("tick", kv...)
	case loop.EventTickFailed:
		log.Warn("tick failed", "tick", ev.Tick, "frame", ev.FrameID, "error", ev.Message)
	case loop.EventError:
		log.Error("session stopped", "tick", ev.Tick, "error", ev.Message)
	case loop.EventTickStart:
		log.Debug("tick start", "tick", ev.Tick, "state", ev.Summary)
	default:
		log.Info(ev.Message, "session", ev.SessionID)
	}
}
