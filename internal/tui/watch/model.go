package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/launchbridge/internal/events"
)

const (
	maxEventLog  = 50
	pollInterval = 5 * time.Second
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string

	width  int
	height int

	health   HealthState
	runs     map[string]*RunState
	runTable table.Model
	eventLog []events.Event
	lastID   int64

	pulse   Pulse
	spinner Spinner
	theme   Theme
	now     func() time.Time

	hubEvents chan events.Event

	lastError string
}

// New creates a watch model reading from the status API at apiURL.
func New(apiURL string) *Model {
	return &Model{
		apiURL:    apiURL,
		runs:      make(map[string]*RunState),
		runTable:  newRunTable(),
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		pulse:     NewPulse(),
		spinner:   NewSpinner(),
		theme:     NewDefaultTheme(),
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL) },
		func() tea.Msg { return fetchRuns(m.apiURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, func() tea.Msg { return fetchRuns(m.apiURL) }
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runTable.SetWidth(m.width - 6)
		if h := m.height/2 - 4; h > 3 {
			m.runTable.SetHeight(h)
		}
		return m, nil

	case tickMsg:
		m.spinner.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		if e.ID > m.lastID {
			m.lastID = e.ID
		}

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		m.spinner.OnEvent(m.now())
		if e.Type == events.TypeHeartbeatOK {
			m.pulse.Beat(m.now())
		}

		applyRunEvent(m.runs, e)
		m.runTable.SetRows(runRows(m.runs))

		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.SweepID = msg.SweepID
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.QueueDepth = msg.QueueDepth
		m.health.QueueCapacity = msg.QueueCapacity
		m.health.Runs = msg.Runs
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return fetchHealth(m.apiURL) })

	case runsMsg:
		for _, r := range msg.Runs {
			rs := ensureRun(m.runs, r.RunID)
			rs.State = r.State
			if r.UpdatedAt != nil {
				rs.UpdatedAt = *r.UpdatedAt
			}
		}
		m.runTable.SetRows(runRows(m.runs))
		return m, nil

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		// The pending receiveNextEvent keeps waiting on the channel and picks
		// up events from the new subscription.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return fetchHealth(m.apiURL) })
	}

	var cmd tea.Cmd
	m.runTable, cmd = m.runTable.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to launchbridge..."
	}
	now := m.now()

	header := renderHeader(m.health, m.pulse, m.spinner, m.theme, m.width, now)
	runs := m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(fmt.Sprintf("RUNS (%d)", len(m.runs))),
		m.runTable.View(),
	))
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Select run • [r] Refresh")

	parts := []string{header, runs, eventStream}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
