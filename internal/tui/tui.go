// Package tui renders the ambient light reading as a full-screen terminal
// view painted in the active theme.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/ambient-theme/internal/light"
	"github.com/sweeney/ambient-theme/internal/sensor"
)

var subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

type updateMsg sensor.Update
type doneMsg struct{}

// Model is the bubbletea model for the watch view.
type Model struct {
	updates  <-chan sensor.Update
	selector *light.Selector
	spinner  spinner.Model

	state    light.State
	counts   light.Counts
	theme    light.ThemeName
	width    int
	height   int
	quitting bool
}

// New creates a Model that consumes updates until the channel closes.
func New(updates <-chan sensor.Update, selector *light.Selector) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		updates:  updates,
		selector: selector,
		spinner:  s,
		state:    light.NewState(),
		theme:    selector.Theme(),
	}
}

// Init starts the spinner and the first wait on the update channel.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForActivity(m.updates),
	)
}

func waitForActivity(sub <-chan sensor.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-sub
		if !ok {
			return doneMsg{}
		}
		return updateMsg(u)
	}
}

// Update handles key presses, resizes, spinner ticks and sensor updates.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case doneMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.state = msg.State
		m.counts = msg.Counts
		m.theme, _ = m.selector.Observe(msg.State.Reading)
		return m, waitForActivity(m.updates)
	}

	return m, nil
}

// Theme returns the theme currently painted.
func (m Model) Theme() light.ThemeName { return m.theme }

// State returns the last state received.
func (m Model) State() light.State { return m.state }

// Quitting reports whether the view has been asked to exit.
func (m Model) Quitting() bool { return m.quitting }

// View renders the reading centred on a block filled with the palette.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	p := m.theme.Palette()
	bg := lipgloss.Color(p.Background)
	fg := lipgloss.Color(p.Foreground)
	base := lipgloss.NewStyle().Background(bg).Foreground(fg)

	reading := m.state.Reading.String()
	if !m.state.Reading.Known {
		reading = m.spinner.View() + " " + reading
	}

	var b strings.Builder
	b.WriteString(base.Bold(true).Render("Current ambient light level:"))
	b.WriteString("\n\n")
	b.WriteString(base.Render(reading))
	b.WriteString("\n\n")
	b.WriteString(base.Render(fmt.Sprintf("sensor %s  theme %s  readings %d  errors %d",
		m.state.Status, m.theme, m.counts.Readings, m.counts.Errors)))
	if m.state.Err != nil {
		b.WriteString("\n")
		b.WriteString(base.Render("error: " + m.state.ErrString()))
	}
	b.WriteString("\n\n")
	b.WriteString(subtleStyle.Background(bg).Render("q to quit"))

	block := base.Padding(1, 4).Render(b.String())
	if m.width == 0 || m.height == 0 {
		return block
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, block,
		lipgloss.WithWhitespaceBackground(bg))
}

// Run drives the view in the alternate screen until the user quits or the
// update channel closes.
func Run(updates <-chan sensor.Update, selector *light.Selector) error {
	p := tea.NewProgram(New(updates, selector), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
