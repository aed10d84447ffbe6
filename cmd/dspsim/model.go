package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hdspcore"
)

// Color palette and styles, grounded on linuxmatters-jivetalking's
// internal/cli/styles.go.
var (
	titleColor = lipgloss.Color("#00AFFF")
	mutedColor = lipgloss.Color("#888888")
	barColor   = lipgloss.Color("#00D787")
	peakColor  = lipgloss.Color("#FFD700")
	vadColor   = lipgloss.Color("#FF5F5F")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(titleColor).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(6)
	barStyle   = lipgloss.NewStyle().Foreground(barColor)
	peakStyle  = lipgloss.NewStyle().Foreground(peakColor)
	vadStyle   = lipgloss.NewStyle().Bold(true).Foreground(vadColor)
	footStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// tickMsg requests the model pull a fresh Levels snapshot from the engine.
type tickMsg time.Time

// model is the bubbletea model for dspsim's live meter display, grounded on
// linuxmatters-jivetalking's internal/ui.Model — a small poll-driven model
// whose Update re-arms its own tick command, rather than a push model, since
// the engine has no event stream of its own to subscribe to.
type model struct {
	engine   *hdspcore.Engine
	deadline time.Time
	levels   hdspcore.Levels
	quitting bool
}

func newModel(engine *hdspcore.Engine, duration time.Duration) model {
	return model{engine: engine, deadline: time.Now().Add(duration)}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		now := time.Time(msg)
		m.levels = m.engine.GetLevels()
		if !now.Before(m.deadline) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("hdspcore dspsim — live meters"))
	b.WriteString("\n")

	b.WriteString(meterLine("L", m.levels.RMSLeft, m.levels.PeakLeft))
	b.WriteString(meterLine("R", m.levels.RMSRight, m.levels.PeakRight))
	b.WriteString(meterLine("HP", m.levels.RMSHP, m.levels.PeakHP))
	b.WriteString("\n")

	vad := "no"
	style := footStyle
	if m.levels.VADSpeechDetected {
		vad = "yes"
		style = vadStyle
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("vad"), style.Render(vad)))
	b.WriteString("\n")
	b.WriteString(footStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

// meterLine renders one RMS/peak bar, grounded on views.go's renderProgressBar:
// a fixed-width run of filled/empty block characters plus a numeric readout,
// generalized here to a dBFS-scaled bar with a separate peak marker.
func meterLine(label string, rms, peak float32) string {
	const width = 40
	rmsFilled := dbfsToCells(rms, width)
	peakCell := dbfsToCells(peak, width)

	cells := make([]byte, width)
	for i := range cells {
		cells[i] = ' '
	}
	for i := 0; i < rmsFilled && i < width; i++ {
		cells[i] = '#'
	}

	bar := barStyle.Render(string(cells[:min(rmsFilled, width)]))
	rest := strings.Repeat(" ", width-min(rmsFilled, width))
	marker := ""
	if peakCell > 0 && peakCell <= width {
		marker = peakStyle.Render("|")
	}

	return fmt.Sprintf("%s [%s%s]%s %5.1f dBFS (peak %5.1f)\n",
		labelStyle.Render(label), bar, rest, marker,
		linearToDbfs(rms), linearToDbfs(peak))
}

func dbfsToCells(linear float32, width int) int {
	db := linearToDbfs(linear)
	// Map [-60, 0] dBFS onto [0, width] cells.
	frac := (db + 60) / 60
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return int(frac * float32(width))
}

func linearToDbfs(linear float32) float32 {
	if linear <= 0 {
		return -60
	}
	db := float32(20 * math.Log10(float64(linear)))
	if db < -60 {
		return -60
	}
	return db
}
