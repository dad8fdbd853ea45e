// Package tui provides the Bubble Tea view of a running agent session.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerunddev/pokeagent/internal/agent"
	"github.com/gerunddev/pokeagent/internal/game"
	"github.com/gerunddev/pokeagent/internal/loop"
)

// feedTextLimit caps observation and plan text in the feed.
const feedTextLimit = 400

// Model is the main Bubble Tea model for the session view.
type Model struct {
	header         Header
	planPanel      *ScrollablePanel
	feedPanel      *ScrollablePanel
	floatingWindow FloatingWindow

	keys KeyMap
	help help.Model

	// Event channel from the loop
	events <-chan loop.Event

	// State
	sessionID   string
	tick        int
	maxTicks    int
	status      string
	completed   bool
	err         error
	quitting    bool
	initialized bool

	// Session tallies for the summary window
	startTime time.Time
	okTicks   int
	failed    int
	fallbacks int
	lastPlan  string

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel() Model {
	planPanel := NewTextPanel("Plan")
	feedPanel := NewFeedPanel("Ticks", defaultFeedSections)
	feedPanel.SetFocused(true)
	return Model{
		header:         NewHeader(),
		planPanel:      &planPanel,
		feedPanel:      &feedPanel,
		floatingWindow: NewFloatingWindow("Session finished"),
		keys:           DefaultKeyMap(),
		help:           help.New(),
		startTime:      time.Now(),
	}
}

// NewModelWithEvents creates a new TUI model reading from a loop's events.
func NewModelWithEvents(events <-chan loop.Event, mode string) Model {
	m := NewModel()
	m.events = events
	m.header.SetMode(mode)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.listenForEvents()
}

// listenForEvents returns a command that waits for the next loop event.
func (m Model) listenForEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return EventsClosedMsg{}
		}
		return LoopEventMsg{Event: event}
	}
}

// LoopEventMsg wraps a loop event for Bubble Tea.
type LoopEventMsg struct {
	Event loop.Event
}

// EventsClosedMsg signals that the event channel has closed.
type EventsClosedMsg struct{}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

		if m.floatingWindow.IsVisible() {
			if key.Matches(msg, m.keys.Dismiss) {
				m.floatingWindow.Hide()
				return m, nil
			}
			return m.handleFloatingScroll(msg)
		}

		return m.handleScroll(msg)

	case LoopEventMsg:
		m.handleLoopEvent(msg.Event)
		return m, m.listenForEvents()

	case EventsClosedMsg:
		if !m.completed && m.err == nil {
			m.completed = true
			m.setStatus("Completed")
			m.feedPanel.AppendLine("\n" + sectionDividerStyle.Render("─── Session finished ───"))
		}
		return m, nil
	}

	return m, nil
}

// focused returns the panel receiving scroll keys.
func (m Model) focused() *ScrollablePanel {
	if m.planPanel.Focused {
		return m.planPanel
	}
	return m.feedPanel
}

func (m Model) handleScroll(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.focused()
	switch {
	case key.Matches(msg, m.keys.Up):
		p.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		p.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		p.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		p.PageDown()
	case key.Matches(msg, m.keys.Focus):
		planFocused := m.planPanel.Focused
		m.planPanel.SetFocused(!planFocused)
		m.feedPanel.SetFocused(planFocused)
	}
	return m, nil
}

func (m Model) handleFloatingScroll(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.floatingWindow.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.floatingWindow.ScrollDown(1)
	}
	return m, nil
}

func (m *Model) setStatus(status string) {
	m.status = status
	m.header.SetStatus(status)
}

// handleLoopEvent processes a loop event.
func (m *Model) handleLoopEvent(event loop.Event) {
	if event.SessionID != "" {
		m.sessionID = event.SessionID
	}
	if event.Tick > 0 {
		m.tick = event.Tick
		m.maxTicks = event.MaxTicks
		m.header.SetTick(event.Tick, event.MaxTicks)
	}

	switch event.Type {
	case loop.EventStarted:
		m.setStatus("Running")
		m.feedPanel.AppendLine(systemMessageStyle.Render(event.Message))

	case loop.EventTickStart:
		m.setStatus("Running")
		marker := fmt.Sprintf("━━━ Tick %d ━━━", event.Tick)
		if event.MaxTicks > 0 {
			marker = fmt.Sprintf("━━━ Tick %d/%d ━━━", event.Tick, event.MaxTicks)
		}
		m.feedPanel.BeginSection(tickMarkerStyle.Render(marker))
		if event.Summary != "" {
			m.feedPanel.AppendLine(systemMessageStyle.Render(event.Summary))
		}

	case loop.EventTickEnd:
		m.okTicks++
		if event.Result != nil {
			m.appendResult(event.Result, event.Duration)
		}

	case loop.EventTickFailed:
		m.failed++
		m.header.SetFailed(m.failed)
		m.feedPanel.AppendLine(errorStyle.Render("✗ " + event.Message))
		m.feedPanel.AppendLine(systemMessageStyle.Render("No buttons sent"))

	case loop.EventSourceExhausted:
		m.completed = true
		m.setStatus("Completed")
		m.feedPanel.AppendLine("\n" + doneMarkerStyle.Render("✓ "+event.Message))
		m.showSummaryWindow()

	case loop.EventMaxTicks:
		m.completed = true
		m.setStatus("Max Ticks")
		m.feedPanel.AppendLine("\n" + statusFailedStyle.Render("⚠ "+event.Message))
		m.showSummaryWindow()

	case loop.EventError:
		m.err = event.Error
		m.setStatus("Failed")
		m.feedPanel.AppendLine(errorStyle.Render(fmt.Sprintf("✗ ERROR: %s", event.Message)))
		m.showSummaryWindow()
	}
}

// appendResult renders one successful tick into the feed and plan panels.
func (m *Model) appendResult(res *agent.TickResult, d time.Duration) {
	if res.Observation != "" {
		m.feedPanel.AppendLine(stageLabelStyle.Render("Observation: ") + clip(res.Observation))
	}
	if res.PlanCreated {
		m.feedPanel.AppendLine(stageLabelStyle.Render("New plan: ") + clip(res.Plan))
		m.planPanel.SetNote(fmt.Sprintf("since tick %d", m.tick))
	}
	if res.Plan != "" {
		m.lastPlan = res.Plan
		m.planPanel.Replace(res.Plan)
	}
	if res.Reasoning != "" {
		m.feedPanel.AppendLine(stageLabelStyle.Render("Reasoning: ") + clip(res.Reasoning))
	}
	if len(res.Dropped) > 0 {
		m.feedPanel.AppendLine(warningStyle.Render("Ignored tokens: " + strings.Join(res.Dropped, ", ")))
	}
	if res.Fallback != "" {
		m.fallbacks++
		m.feedPanel.AppendLine(warningStyle.Render("Default buttons (" + res.Fallback + ")"))
	}
	m.feedPanel.AppendLine(formatButtons(res.Buttons) + systemMessageStyle.Render(fmt.Sprintf("  %s", formatDuration(d))))
}

// formatButtons renders a batch as "▶ UP, A".
func formatButtons(buttons []game.Button) string {
	return buttonArrowStyle.Render("▶ ") + buttonStyle.Render(game.JoinButtons(buttons))
}

// clip flattens s to one line and truncates it for the feed.
func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > feedTextLimit {
		return string(r[:feedTextLimit-3]) + "..."
	}
	return s
}

// updateLayout updates component sizes based on window size.
func (m *Model) updateLayout() {
	m.header.SetWidth(m.width)

	m.help.Width = m.width

	// Header takes 3 lines and help 1, the plan panel a quarter of the rest
	availableHeight := m.height - 4
	if availableHeight < 14 {
		availableHeight = 14
	}
	planHeight := availableHeight / 4
	if planHeight < 5 {
		planHeight = 5
	}

	m.planPanel.SetSize(m.width, planHeight)
	m.feedPanel.SetSize(m.width, availableHeight-planHeight)
	m.floatingWindow.SetSize(m.width, m.height)
}

// showSummaryWindow displays the floating window with session totals.
func (m *Model) showSummaryWindow() {
	var summary strings.Builder

	fmt.Fprintf(&summary, "Session %s\n", m.sessionID)
	fmt.Fprintf(&summary, "Finished after %d tick(s) (%s)\n\n", m.tick, formatDuration(time.Since(m.startTime)))
	fmt.Fprintf(&summary, "Buttons sent: %d\n", m.okTicks)
	fmt.Fprintf(&summary, "Failed ticks: %d\n", m.failed)
	fmt.Fprintf(&summary, "Default buttons used: %d\n", m.fallbacks)
	if m.err != nil {
		fmt.Fprintf(&summary, "\nStopped on error: %v\n", m.err)
	}
	if m.lastPlan != "" {
		summary.WriteString("\n## Last plan\n")
		summary.WriteString(m.lastPlan)
	}

	m.floatingWindow.Show(summary.String())
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.initialized {
		return "Initializing..."
	}

	var s strings.Builder
	s.WriteString(m.header.View())
	s.WriteString("\n")
	s.WriteString(m.planPanel.View())
	s.WriteString("\n")
	s.WriteString(m.feedPanel.View())
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	baseView := lipgloss.NewStyle().MaxWidth(m.width).Render(s.String())

	if m.floatingWindow.IsVisible() {
		return m.overlayFloatingWindow(baseView)
	}
	return baseView
}

// overlayFloatingWindow renders the floating window on top of the base view.
func (m Model) overlayFloatingWindow(baseView string) string {
	floatingView := m.floatingWindow.View()
	if floatingView == "" {
		return baseView
	}

	baseLines := strings.Split(baseView, "\n")
	floatLines := strings.Split(floatingView, "\n")

	for len(baseLines) < m.height {
		baseLines = append(baseLines, "")
	}

	// Skip empty leading lines from centering
	floatStartLine := 0
	for i, line := range floatLines {
		if strings.TrimSpace(line) != "" {
			floatStartLine = i
			break
		}
	}

	floatContentLines := floatLines[floatStartLine:]
	verticalOffset := (m.height - len(floatContentLines)) / 2
	if verticalOffset < 0 {
		verticalOffset = 0
	}

	for i, floatLine := range floatContentLines {
		targetLine := verticalOffset + i
		if targetLine < len(baseLines) && strings.TrimSpace(floatLine) != "" {
			baseLines[targetLine] = floatLine
		}
	}

	return strings.Join(baseLines, "\n")
}

// IsCompleted returns whether the session has finished.
func (m Model) IsCompleted() bool {
	return m.completed
}

// Error returns the error the session stopped on, if any.
func (m Model) Error() error {
	return m.err
}

// Run starts the TUI for a loop's event channel. It returns when the user
// quits; the caller cancels the loop.
func Run(events <-chan loop.Event, mode string) error {
	m := NewModelWithEvents(events, mode)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
