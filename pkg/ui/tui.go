// Package ui provides the Bubble Tea TUI for depth-compare.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/depth-compare/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	ranking   *components.RankingComponent
	breakdown *components.BreakdownComponent
	status    *components.StatusComponent
	stats     *components.StatsComponent
	keys      KeyMap
	help      help.Model

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	request    string
	quitting   bool
	paused     bool
	showTrail  bool
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // last 3

	// Startup state
	startupSteps map[string]*StartupStep
	stepOrder    []string
	startupTime  time.Time

	activityFeed []string
}

// New creates a new TUI model. request describes the compared order.
func New(request string, exchanges []string) Model {
	now := time.Now()
	steps := map[string]*StartupStep{
		"config": {Name: "Loading configuration", Status: "done"},
	}
	order := []string{"config"}
	for _, ex := range exchanges {
		steps[ex] = &StartupStep{Name: "Syncing " + ex + " order book", Status: "pending"}
		order = append(order, ex)
	}

	status := components.NewStatusComponent()
	for _, ex := range exchanges {
		status.Update(components.ExchangeStatus{Name: ex})
	}

	return Model{
		ranking:      components.NewRankingComponent(),
		breakdown:    components.NewBreakdownComponent(),
		status:       status,
		stats:        components.NewStatsComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		request:      request,
		showTrail:    true,
		errors:       make([]ErrorEntry, 0, 3),
		startupSteps: steps,
		stepOrder:    order,
		startupTime:  now,
		activityFeed: make([]string, 0, 8),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Signal directly; Send() must not be called from within Update.
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.ranking.Clear()
			m.breakdown.Set(nil)
		case key.Matches(msg, m.keys.Trail):
			m.showTrail = !m.showTrail
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case ComparisonMsg:
		if msg.Comparison == nil {
			return m, nil
		}
		m.phase = PhaseDashboard
		c := msg.Comparison

		stats := m.stats.Stats()
		stats.Comparisons++
		stats.Failures += int64(len(c.Failures))
		if best, ok := c.Ranking.Best(); ok && best.Exchange != stats.LastBest {
			if stats.LastBest != "" {
				stats.BestChanges++
				m.activityFeed = addActivity(m.activityFeed,
					fmt.Sprintf("best moved %s → %s", stats.LastBest, best.Exchange))
			}
			stats.LastBest = best.Exchange
		}
		m.stats.Update(stats)

		if m.paused {
			return m, nil
		}
		rows, failures := rankingRows(c)
		m.ranking.Update(m.request, rows, failures)
		m.breakdown.Set(bestBreakdown(c))
		m.lastUpdate = time.Now()

	case StatusMsg:
		for _, s := range msg.Statuses {
			m.status.Update(components.ExchangeStatus{
				Name:      s.Exchange,
				Connected: s.Connected,
				Synced:    s.Synced,
				Watched:   s.Watched,
				LastError: s.LastError,
			})
			if step, ok := m.startupSteps[s.Exchange]; ok {
				switch {
				case s.Connected && s.Watched > 0 && s.Synced == s.Watched:
					step.Status = "connected"
				case s.LastError != "" && !s.Connected:
					step.Status = "failed"
				default:
					step.Status = "connecting"
				}
			}
		}

	case ErrorMsg:
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}
		stats := m.stats.Stats()
		stats.Errors++
		m.stats.Update(stats)

	case LogMsg:
		m.activityFeed = addActivity(m.activityFeed, msg.Level+": "+msg.Message)
	}

	return m, nil
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" depth-compare "))
	b.WriteString("  ")
	b.WriteString(HeaderStyle.Render(m.request))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.ranking.View()

	var right strings.Builder
	if m.showTrail {
		right.WriteString(m.breakdown.View())
		right.WriteString("\n\n")
	}
	right.WriteString(m.renderActivityFeed())
	rightCol := right.String()

	if m.width > 140 {
		left := BoxStyle.Width(m.width*3/5 - 2).Render(leftCol)
		r := BoxStyle.Width(m.width*2/5 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, r))
	} else {
		width := m.width - 4
		if width < 20 {
			width = 20
		}
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Nothing yet"))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		sb.WriteString(MutedValue.Render("  " + activity))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(titleStyle.Render(`
    ╺┳┓┏━╸┏━┓╺┳╸╻ ╻   ┏━╸┏━┓┏┳┓┏━┓┏━┓┏━┓┏━╸
     ┃┃┣╸ ┣━┛ ┃ ┣━┫   ┃  ┃ ┃┃┃┃┣━┛┣━┫┣┳┛┣╸
    ╺┻┛┗━╸╹   ╹ ╹ ╹   ┗━╸┗━┛╹ ╹╹  ╹ ╹╹┗╸┗━╸
`))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("        cross-exchange execution cost, live from the book"))
	sb.WriteString("\n\n")
	sb.WriteString(HeaderStyle.Render("        " + m.request))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  depth-compare"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	spinners := []string{"◐", "◓", "◑", "◒"}
	for _, k := range m.stepOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Syncing...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for the first synced book..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{m.status.View()}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}
	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
var OnStartModules func()

// Send sends a message to the running program, if any.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
