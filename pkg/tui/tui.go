// Package tui provides a terminal monitor for a running geo-sequencer engine
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GiesN/geo-sequencer/pkg/geo"
	"github.com/GiesN/geo-sequencer/pkg/sequencer"
)

// Storm-inspired color scheme (lightning over dark sky)
var (
	// Primary colors - electric blue and flash yellow
	boltYellow = lipgloss.Color("#FFE135")
	skyBlue    = lipgloss.Color("#4FC3F7")
	cloudGray  = lipgloss.Color("#C0C0C0")
	nightGray  = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(boltYellow).
			Background(nightGray).
			Padding(0, 2).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(cloudGray).
			PaddingLeft(2)

	valueStyle = lipgloss.NewStyle().
			Foreground(skyBlue).
			Bold(true)

	stateStyle = lipgloss.NewStyle().
			Foreground(boltYellow).
			PaddingTop(1)

	noteStyle = lipgloss.NewStyle().
			Foreground(skyBlue).
			PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(skyBlue).
			Padding(1, 2)
)

// Engine is the view of the scheduler the monitor reads from.
type Engine interface {
	Stats() sequencer.Snapshot
	State() sequencer.State
}

// NoteEvent describes a fired note for the recent-notes list.
type NoteEvent struct {
	Pitch     uint8
	Velocity  uint8
	Channel   uint8
	Latitude  float64
	Longitude float64
	At        time.Time
}

// maxRecent bounds the rolling note list.
const maxRecent = 8

// refreshInterval is how often the stats panel re-polls the engine.
const refreshInterval = 200 * time.Millisecond

// Model renders live engine state.
type Model struct {
	engine  Engine
	source  string
	events  <-chan NoteEvent
	spinner spinner.Model
	recent  []NoteEvent
	stats   sequencer.Snapshot
	state   sequencer.State
	width   int
	height  int
}

// refreshMsg triggers a stats poll
type refreshMsg time.Time

// New creates a monitor for engine. events feeds the recent-notes list
// and may be nil; sourceName labels the active coordinate source.
func New(engine Engine, sourceName string, events <-chan NoteEvent) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(boltYellow)

	return Model{
		engine:  engine,
		source:  sourceName,
		events:  events,
		spinner: s,
	}
}

// Init starts the spinner and the refresh loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshAfter())
}

func refreshAfter() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		m.stats = m.engine.Stats()
		m.state = m.engine.State()
		m.drainEvents()
		if m.state == sequencer.StateStopped {
			return m, tea.Quit
		}
		return m, refreshAfter()
	}

	return m, nil
}

// drainEvents pulls every pending note event without blocking.
func (m *Model) drainEvents() {
	if m.events == nil {
		return
	}
	for {
		select {
		case ev := <-m.events:
			m.recent = append(m.recent, ev)
			if len(m.recent) > maxRecent {
				m.recent = m.recent[len(m.recent)-maxRecent:]
			}
		default:
			return
		}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" ⚡ GEO SEQUENCER "))
	s.WriteString("\n")

	s.WriteString(stateStyle.Render(fmt.Sprintf("%s %s · source: %s",
		m.spinner.View(), strings.ToUpper(m.state.String()), m.source)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.viewStats()))
	s.WriteString("\n\n")

	s.WriteString(m.viewRecent())

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("q: quit"))

	return s.String()
}

func (m Model) viewStats() string {
	rows := []struct {
		label string
		value int64
	}{
		{"processed", m.stats.Processed},
		{"fired", m.stats.Fired},
		{"dropped", m.stats.Dropped},
		{"merged", m.stats.Merged},
		{"sink errors", m.stats.SinkErrors},
		{"queue depth", m.stats.QueueDepth},
		{"active notes", m.stats.ActiveNotes},
	}

	var s strings.Builder
	for i, row := range rows {
		if i > 0 {
			s.WriteString("\n")
		}
		s.WriteString(labelStyle.Render(fmt.Sprintf("%-13s", row.label)))
		s.WriteString(valueStyle.Render(fmt.Sprintf("%8d", row.value)))
	}
	return s.String()
}

func (m Model) viewRecent() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("recent notes"))
	s.WriteString("\n")

	if len(m.recent) == 0 {
		s.WriteString(noteStyle.Render("waiting for strikes..."))
		return s.String()
	}

	// Newest first.
	for i := len(m.recent) - 1; i >= 0; i-- {
		ev := m.recent[i]
		s.WriteString(noteStyle.Render(fmt.Sprintf("%s  %-4s vel %3d  (%+7.2f, %+8.2f)",
			ev.At.Format("15:04:05"), geo.NoteName(ev.Pitch), ev.Velocity,
			ev.Latitude, ev.Longitude)))
		if i > 0 {
			s.WriteString("\n")
		}
	}
	return s.String()
}
