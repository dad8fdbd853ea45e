package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// FloatingWindow is a centered modal overlay for the session summary.
type FloatingWindow struct {
	Title    string
	Content  string
	viewport viewport.Model
	visible  bool
	width    int
	height   int
}

// NewFloatingWindow creates a new floating window.
func NewFloatingWindow(title string) FloatingWindow {
	vp := viewport.New(60, 10)
	return FloatingWindow{
		Title:    title,
		viewport: vp,
	}
}

// SetSize sets the available screen size for centering calculations.
func (f *FloatingWindow) SetSize(width, height int) {
	f.width = width
	f.height = height

	windowWidth, windowHeight := f.windowSize()
	frameH, frameV := floatingWindowStyle.GetFrameSize()

	// Title takes 1 line
	f.viewport.Width = windowWidth - frameH
	f.viewport.Height = windowHeight - frameV - 1
}

// windowSize is 60% of the screen, clamped to 40..100 columns and 10..30 rows.
func (f FloatingWindow) windowSize() (int, int) {
	return clamp(f.width*60/100, 40, 100), clamp(f.height*60/100, 10, 30)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Show displays the floating window with the given content.
func (f *FloatingWindow) Show(content string) {
	f.Content = content
	f.viewport.SetContent(content)
	f.viewport.GotoTop()
	f.visible = true
}

// Hide hides the floating window.
func (f *FloatingWindow) Hide() {
	f.visible = false
}

// IsVisible returns whether the window is visible.
func (f *FloatingWindow) IsVisible() bool {
	return f.visible
}

// ScrollUp scrolls the content up.
func (f *FloatingWindow) ScrollUp(n int) {
	f.viewport.LineUp(n)
}

// ScrollDown scrolls the content down.
func (f *FloatingWindow) ScrollDown(n int) {
	f.viewport.LineDown(n)
}

// View renders the floating window centered on screen.
// Returns empty string if not visible.
func (f FloatingWindow) View() string {
	if !f.visible {
		return ""
	}

	windowWidth, windowHeight := f.windowSize()

	// Get frame size dynamically
	frameH, _ := floatingWindowStyle.GetFrameSize()
	contentWidth := windowWidth - frameH

	// Title line
	title := floatingTitleStyle.Render(f.Title)

	// Key hints for the floating window
	hints := helpKeyStyle.Render("↑↓") + helpDescStyle.Render(":scroll") +
		helpSeparatorStyle.Render("  ") +
		helpKeyStyle.Render("Enter/Esc") + helpDescStyle.Render(":close")

	// Title with hints right-aligned
	titleWidth := lipgloss.Width(title)
	hintsWidth := lipgloss.Width(hints)
	spacing := contentWidth - titleWidth - hintsWidth
	if spacing < 1 {
		spacing = 1
	}
	titleLine := title + strings.Repeat(" ", spacing) + hints

	// Viewport content
	viewportContent := f.viewport.View()

	// Combine title and viewport
	content := titleLine + "\n" + viewportContent

	// Apply style with safety cap
	windowStyle := floatingWindowStyle.Width(contentWidth).MaxHeight(windowHeight)
	window := windowStyle.Render(content)

	// Calculate centering offsets
	windowRenderedWidth := lipgloss.Width(window)
	windowRenderedHeight := lipgloss.Height(window)

	horizontalPadding := (f.width - windowRenderedWidth) / 2
	verticalPadding := (f.height - windowRenderedHeight) / 2

	if horizontalPadding < 0 {
		horizontalPadding = 0
	}
	if verticalPadding < 0 {
		verticalPadding = 0
	}

	// Build the centered view
	var result strings.Builder

	// Vertical padding (top)
	for i := 0; i < verticalPadding; i++ {
		result.WriteString("\n")
	}

	// Add horizontal padding to each line
	lines := strings.Split(window, "\n")
	padding := strings.Repeat(" ", horizontalPadding)
	for i, line := range lines {
		result.WriteString(padding)
		result.WriteString(line)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}

	return result.String()
}
