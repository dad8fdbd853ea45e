package tui

import "github.com/charmbracelet/lipgloss"

// Monokai Pro color palette
var (
	colorForeground = lipgloss.Color("#fcfcfa")
	colorYellow     = lipgloss.Color("#ffd866")
	colorOrange     = lipgloss.Color("#fc9867")
	colorRed        = lipgloss.Color("#ff6188")
	colorMagenta    = lipgloss.Color("#ab9df2")
	colorGreen      = lipgloss.Color("#a9dc76")
	colorCyan       = lipgloss.Color("#78dce8")
	colorLightCyan  = lipgloss.Color("#a1eaf8")
	colorGray       = lipgloss.Color("#727072")
	colorDimGray    = lipgloss.Color("#5b595c")
)

// Panel styles
var (
	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDimGray).
			Padding(0, 1)

	headerLabelStyle = lipgloss.NewStyle().
				Foreground(colorGray)

	headerValueStyle = lipgloss.NewStyle().
				Foreground(colorForeground).
				Bold(true)

	// panelStyle is used for scrollable panels (plan and feed)
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDimGray).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	panelFocusedStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorYellow).
				Padding(0, 1)

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(colorGray).
				Italic(true)
)

// Status indicator styles
var (
	statusRunningStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true)

	statusCompletedStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	statusPendingStyle = lipgloss.NewStyle().
				Foreground(colorGray)
)

// Help text styles
var (
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	helpSeparatorStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)
)

// Error styles
var (
	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// Floating window styles
var (
	floatingWindowStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.DoubleBorder()).
				BorderForeground(colorGreen).
				Padding(0, 1)

	floatingTitleStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)
)

// Tick feed styles
var (
	tickMarkerStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	sectionDividerStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)

	doneMarkerStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	// Stage labels (Observation, Plan, Buttons)
	stageLabelStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorLightCyan).
			Bold(true)

	buttonArrowStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)

	// Fallbacks and dropped tokens
	warningStyle = lipgloss.NewStyle().
			Foreground(colorOrange)

	systemMessageStyle = lipgloss.NewStyle().
				Foreground(colorGray).
				Italic(true)
)
