// Package tui is an interactive step-through inspector for a traced circuit.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/engine"
)

// Model represents the inspector state. cursor indexes snaps, so 0 is the
// initial state and len(snaps)-1 the final one.
type Model struct {
	circuit  *circuit.Circuit
	snaps    []engine.Snapshot
	cursor   int
	offset   int // first basis row shown in the state panel
	showZero bool
	width    int
	height   int
	keys     keyMap
	help     help.Model
}

// New returns an inspector over snaps, which must come from
// engine.Trace(c) and therefore hold at least the initial state.
func New(c *circuit.Circuit, snaps []engine.Snapshot) Model {
	return Model{
		circuit: c,
		snaps:   snaps,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
}

// Run starts the inspector on the alternate screen and blocks until it
// quits.
func Run(c *circuit.Circuit, snaps []engine.Snapshot) error {
	_, err := tea.NewProgram(New(c, snaps), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Prev):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Next):
			if m.cursor < len(m.snaps)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.First):
			m.cursor = 0
		case key.Matches(msg, m.keys.Last):
			m.cursor = len(m.snaps) - 1
		case key.Matches(msg, m.keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		case key.Matches(msg, m.keys.Down):
			if m.offset < len(m.rows())-1 {
				m.offset++
			}
		case key.Matches(msg, m.keys.ShowZero):
			m.showZero = !m.showZero
			m.offset = 0
		}
	}
	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	helpView := m.help.View(m.keys)
	helpHeight := lipgloss.Height(helpView)

	circuitHeight := m.circuit.NumQubits + 6
	lowerHeight := max(m.height-circuitHeight-helpHeight-4, 6)
	marginalWidth := max(m.width/3, 30)
	stateWidth := max(m.width-marginalWidth-4, 30)

	circuitPanel := m.renderCircuitPanel(m.width - 2)
	statePanel := m.renderStatePanel(stateWidth, lowerHeight)
	marginalPanel := m.renderMarginalPanel(marginalWidth, lowerHeight)

	lower := lipgloss.JoinHorizontal(lipgloss.Top, statePanel, marginalPanel)
	return lipgloss.JoinVertical(lipgloss.Left, circuitPanel, lower, helpView)
}

// Cursor reports the snapshot index currently displayed.
func (m Model) Cursor() int { return m.cursor }

func (m Model) current() engine.Snapshot { return m.snaps[m.cursor] }
