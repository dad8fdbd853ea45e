package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header displays tick progress, session status and key hints.
type Header struct {
	Tick     int
	MaxTicks int
	Status   string
	Mode     string
	Failed   int
	width    int
}

// NewHeader creates a new header component.
func NewHeader() Header {
	return Header{
		Status: "Pending",
	}
}

// SetTick sets the current tick and the limit (0 for none).
func (h *Header) SetTick(current, max int) {
	h.Tick = current
	h.MaxTicks = max
}

// SetStatus sets the status text.
func (h *Header) SetStatus(status string) {
	h.Status = status
}

// SetMode sets the agent mode shown next to the status.
func (h *Header) SetMode(mode string) {
	h.Mode = mode
}

// SetFailed sets the failed tick count.
func (h *Header) SetFailed(n int) {
	h.Failed = n
}

// SetWidth sets the component width.
func (h *Header) SetWidth(w int) {
	h.width = w
}

// View renders the header.
func (h Header) View() string {
	contentWidth := h.width - 4 // Account for border padding
	if contentWidth < 40 {
		contentWidth = 40
	}

	tickStr := "---"
	switch {
	case h.MaxTicks > 0:
		tickStr = fmt.Sprintf("Tick %d/%d", h.Tick, h.MaxTicks)
	case h.Tick > 0:
		tickStr = fmt.Sprintf("Tick %d", h.Tick)
	}

	sections := []string{
		headerValueStyle.Render(tickStr),
		lipgloss.JoinHorizontal(lipgloss.Center,
			headerLabelStyle.Render("Status: "),
			h.renderStatus(),
		),
	}
	if h.Mode != "" {
		sections = append(sections, headerLabelStyle.Render("Mode: ")+headerValueStyle.Render(h.Mode))
	}
	if h.Failed > 0 {
		sections = append(sections, statusFailedStyle.Render(fmt.Sprintf("%d failed", h.Failed)))
	}

	leftContent := strings.Join(sections, headerLabelStyle.Render("  |  "))
	hints := h.renderKeyHints()

	leftWidth := lipgloss.Width(leftContent)
	hintsWidth := lipgloss.Width(hints)
	spacing := contentWidth - leftWidth - hintsWidth
	if spacing < 1 {
		spacing = 1
	}

	content := leftContent + strings.Repeat(" ", spacing) + hints

	style := headerStyle.Width(contentWidth)
	return style.Render(content)
}

// renderStatus renders the status with appropriate styling.
func (h Header) renderStatus() string {
	status := h.Status
	if status == "" {
		status = "Pending"
	}

	switch strings.ToLower(status) {
	case "running":
		return statusRunningStyle.Render(status)
	case "completed", "max ticks":
		return statusCompletedStyle.Render(status)
	case "failed", "error", "interrupted":
		return statusFailedStyle.Render(status)
	default:
		return statusPendingStyle.Render(status)
	}
}

func (h Header) renderKeyHints() string {
	parts := []string{
		h.renderHint("↑↓", "scroll"),
		h.renderHint("tab", "panel"),
		h.renderHint("q", "quit"),
	}
	return strings.Join(parts, helpSeparatorStyle.Render("  "))
}

func (h Header) renderHint(key, desc string) string {
	return helpKeyStyle.Render(key) + helpDescStyle.Render(":"+desc)
}
