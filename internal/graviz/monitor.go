// Package graviz is a live terminal monitor for a distributed run, the
// bubbletea/lipgloss render-loop shape of the teacher's
// internal/tui/interactive.go repurposed: instead of a model's state
// trail, it renders per-rank export/import/termination counters as they
// arrive on a distgrav.RoundEvent channel.
package graviz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/gravtree/internal/distgrav"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// rankState is one rank's running tally, refreshed every RoundEvent it
// sends.
type rankState struct {
	round          int
	lastExported   int
	lastImported   int
	totalExported  int
	exhausted      bool
}

// Model is the bubbletea program's state: one rankState per rank, plus the
// channel every RoundEvent arrives on.
type Model struct {
	numRanks int
	ranks    []rankState
	events   <-chan distgrav.RoundEvent
	done     bool
	started  time.Time
}

// NewMonitor returns a Model subscribed to events. numRanks sizes the
// per-rank table up front so the view never has to grow it.
func NewMonitor(numRanks int, events <-chan distgrav.RoundEvent) Model {
	return Model{numRanks: numRanks, ranks: make([]rankState, numRanks), events: events}
}

type eventMsg distgrav.RoundEvent
type closedMsg struct{}

// waitForEvent is the tea.Cmd that blocks on the channel — the same shape
// as interactive.go's tick(), a Cmd that returns one message and is
// re-issued from Update to keep listening.
func waitForEvent(events <-chan distgrav.RoundEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case eventMsg:
		if m.started.IsZero() {
			m.started = time.Now()
		}
		ev := distgrav.RoundEvent(msg)
		if ev.Rank >= 0 && ev.Rank < len(m.ranks) {
			rs := &m.ranks[ev.Rank]
			rs.round = ev.Round
			rs.lastExported = ev.Exported
			rs.lastImported = ev.Imported
			rs.totalExported += ev.Exported
			rs.exhausted = ev.Exhausted
		}
		allDone := true
		for _, rs := range m.ranks {
			if !rs.exhausted {
				allDone = false
				break
			}
		}
		m.done = allDone
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(dimmer.Render("  ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("       " + cyan.Render("g r a v t r e e  —  ranks") + "\n")
	b.WriteString(dimmer.Render("  ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	b.WriteString("  " + dim.Render(fmt.Sprintf("%-6s %8s %10s %10s %12s %10s", "rank", "round", "exported", "imported", "total-export", "status")) + "\n")
	for i, rs := range m.ranks {
		status := yellow.Render("running")
		if rs.exhausted {
			status = green.Render("done")
		}
		b.WriteString(fmt.Sprintf("  %-6d %8d %10d %10d %12d %10s\n",
			i, rs.round, rs.lastExported, rs.lastImported, rs.totalExported, status))
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts a tea.Program over m and blocks until the run completes or the
// user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
