package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

const (
	defaultWidth = 60
	panelHeight  = 5
	meterWidth   = 20
)

var (
	mutedColor  = lipgloss.Color("#888888")
	accentColor = lipgloss.Color("#FFA500")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))
)

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderPanels(m))
	b.WriteString("\n\n")
	b.WriteString(renderDetections(m))
	b.WriteString("\n")
	b.WriteString(renderFooter(m))

	return b.String()
}

// renderHeader renders the title and engine state
func renderHeader(m Model) string {
	title := titleStyle.Render("HearingAI")

	state := string(m.State)
	if m.State == types.StateRunning {
		state = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render(state)
	} else {
		state = mutedStyle.Render(state)
	}

	line := title + "  " + state
	if m.Device != "" {
		line += "  " + mutedStyle.Render(m.Device)
	}
	return line
}

// renderPanels renders the left and right flash panels side by side
func renderPanels(m Model) string {
	width := m.Width
	if width <= 0 {
		width = defaultWidth
	}
	panelWidth := max(width/2-2, meterWidth+4)
	now := m.now()

	left := renderPanel(m, audio.ChannelLeft, "LEFT", m.Levels.Left, m.Levels.PeakLeft, panelWidth, now)
	right := renderPanel(m, audio.ChannelRight, "RIGHT", m.Levels.Right, m.Levels.PeakRight, panelWidth, now)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

func renderPanel(m Model, ch audio.Channel, label string, level, peak float64, width int, now time.Time) string {
	color := m.PanelColor(ch, now)
	style := lipgloss.NewStyle().
		Width(width).
		Height(panelHeight).
		Align(lipgloss.Center, lipgloss.Center).
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color("#FFFFFF")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(util.DarkenColor(color, 40)))

	content := titleStyle.Render(label) + "\n" +
		renderMeter(level, peak, m.Levels.Threshold, meterWidth)
	return style.Render(content)
}

// renderMeter renders a level bar with the held peak and the detection
// threshold marked.
func renderMeter(level, peak, threshold float64, width int) string {
	cells := []rune(strings.Repeat("░", width))
	filled := min(int(level*float64(width)), width)
	for i := range filled {
		cells[i] = '█'
	}
	if p := min(int(peak*float64(width)), width-1); p > 0 {
		cells[p] = '▌'
	}
	if t := min(int(threshold*float64(width)), width-1); t > 0 {
		cells[t] = '|'
	}
	return string(cells)
}

// renderDetections renders the most recent classified events
func renderDetections(m Model) string {
	if len(m.Detections) == 0 {
		return mutedStyle.Render("No sounds detected yet")
	}

	var b strings.Builder
	for i := range m.Detections {
		d := &m.Detections[i]
		icon := lipgloss.NewStyle().Foreground(accentColor).Render("●")
		fmt.Fprintf(&b, " %s %s %s  %s %.0f%%\n",
			icon,
			mutedStyle.Render(util.ClockTime(d.Timestamp)),
			d.Name,
			mutedStyle.Render(string(d.Channel)),
			d.Confidence*100)
	}
	return b.String()
}

// renderFooter renders key help and the last toggle error
func renderFooter(m Model) string {
	help := mutedStyle.Render("t toggle monitoring • q quit")
	if m.Err != nil {
		return errorStyle.Render("Error: "+m.Err.Error()) + "\n" + help
	}
	return help
}
