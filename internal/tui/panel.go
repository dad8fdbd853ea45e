package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// defaultFeedSections is how many tick sections the feed keeps.
const defaultFeedSections = 500

// section is a run of lines that belongs together, usually one tick.
type section []string

// ScrollablePanel is a bordered viewport over a list of sections.
//
// A feed panel follows new lines and drops its oldest sections past a limit.
// A text panel holds one block that is replaced wholesale and read from the
// top, like the current plan.
type ScrollablePanel struct {
	Title   string
	Follow  bool // keep the newest line in view
	Focused bool

	viewport    viewport.Model
	sections    []section
	maxSections int // 0 keeps everything
	hidden      int // sections dropped past maxSections
	note        string
	width       int
	height      int
	dirty       bool // sections changed since last viewport sync
}

// NewFeedPanel creates a following panel that keeps at most maxSections
// sections.
func NewFeedPanel(title string, maxSections int) ScrollablePanel {
	return ScrollablePanel{
		Title:       title,
		Follow:      true,
		viewport:    viewport.New(80, 10),
		maxSections: maxSections,
	}
}

// NewTextPanel creates a panel for a single replaceable block of text.
func NewTextPanel(title string) ScrollablePanel {
	return ScrollablePanel{
		Title:    title,
		viewport: viewport.New(80, 10),
	}
}

// SetSize sets the panel dimensions, leaving room for borders and the title.
func (p *ScrollablePanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.viewport.Width = max(width-4, 10)
	p.viewport.Height = max(height-4, 3)
}

// BeginSection starts a new section headed by header. Past the limit the
// oldest section is dropped.
func (p *ScrollablePanel) BeginSection(header string) {
	p.sections = append(p.sections, section{header})
	if p.maxSections > 0 && len(p.sections) > p.maxSections {
		n := len(p.sections) - p.maxSections
		p.sections = append(p.sections[:0], p.sections[n:]...)
		p.hidden += n
	}
	p.dirty = true
}

// AppendLine adds a line to the current section.
func (p *ScrollablePanel) AppendLine(line string) {
	if len(p.sections) == 0 {
		p.sections = append(p.sections, section{})
	}
	last := len(p.sections) - 1
	p.sections[last] = append(p.sections[last], line)
	p.dirty = true
}

// Replace swaps the whole content for text and scrolls back to the top.
func (p *ScrollablePanel) Replace(text string) {
	p.sections = []section{{text}}
	p.hidden = 0
	p.viewport.SetContent(p.Content())
	p.viewport.GotoTop()
	p.dirty = false
}

// SetNote sets a short annotation shown after the title.
func (p *ScrollablePanel) SetNote(note string) {
	p.note = note
}

// Clear removes all content.
func (p *ScrollablePanel) Clear() {
	p.sections = nil
	p.hidden = 0
	p.viewport.SetContent("")
	p.dirty = false
}

// Content returns the retained lines. Sections are separated by a blank line.
func (p *ScrollablePanel) Content() string {
	var sb strings.Builder
	for i, s := range p.sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.Join(s, "\n"))
	}
	return sb.String()
}

// Sections returns how many sections are retained.
func (p *ScrollablePanel) Sections() int {
	return len(p.sections)
}

// Hidden returns how many sections were dropped past the limit.
func (p *ScrollablePanel) Hidden() int {
	return p.hidden
}

// SetFocused sets the focus state.
func (p *ScrollablePanel) SetFocused(focused bool) {
	p.Focused = focused
}

// ScrollUp scrolls up by n lines and stops following.
func (p *ScrollablePanel) ScrollUp(n int) {
	p.viewport.LineUp(n)
	p.Follow = false
}

// ScrollDown scrolls down by n lines. Reaching the bottom resumes following.
func (p *ScrollablePanel) ScrollDown(n int) {
	p.viewport.LineDown(n)
	p.Follow = p.Follow || p.viewport.AtBottom()
}

// PageUp scrolls up by one page and stops following.
func (p *ScrollablePanel) PageUp() {
	p.viewport.ViewUp()
	p.Follow = false
}

// PageDown scrolls down by one page. Reaching the bottom resumes following.
func (p *ScrollablePanel) PageDown() {
	p.viewport.ViewDown()
	p.Follow = p.Follow || p.viewport.AtBottom()
}

// AtBottom returns whether the viewport is at the bottom.
func (p *ScrollablePanel) AtBottom() bool {
	return p.viewport.AtBottom()
}

func (p *ScrollablePanel) sync() {
	if !p.dirty {
		return
	}
	p.viewport.SetContent(p.Content())
	if p.Follow {
		p.viewport.GotoBottom()
	}
	p.dirty = false
}

// titleLine renders "Title  note  (n older hidden)" with the scroll state
// right-aligned.
func (p *ScrollablePanel) titleLine(width int) string {
	left := panelTitleStyle.Render(p.Title)
	if p.note != "" {
		left += " " + systemMessageStyle.Render(p.note)
	}
	if p.hidden > 0 {
		left += " " + systemMessageStyle.Render(fmt.Sprintf("(%d older hidden)", p.hidden))
	}

	state := "[top]"
	switch {
	case p.Follow:
		state = "[following]"
	case !p.viewport.AtTop():
		state = fmt.Sprintf("[%d%%]", int(p.viewport.ScrollPercent()*100))
	}
	right := scrollIndicatorStyle.Render(state)

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return left + strings.Repeat(" ", gap) + right
}

// View renders the panel.
func (p *ScrollablePanel) View() string {
	p.sync()
	width := max(p.width-2, 10)

	style := panelStyle
	if p.Focused {
		style = panelFocusedStyle
	}
	return style.Width(width).Render(p.titleLine(width) + "\n" + p.viewport.View())
}
