package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/aipm/internal/core"
	"github.com/valter-silva-au/aipm/internal/observability"
	"github.com/valter-silva-au/aipm/pkg/models"
)

// Dashboard panel indices.
const (
	panelLanes = iota
	panelActivity
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	laneCounts map[models.Progress]int
	stats      *observability.Stats
	alerts     []observability.Alert

	// State.
	loading bool
	err     error
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	laneCounts map[models.Progress]int
	stats      *observability.Stats
	alerts     []observability.Alert
	err        error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelLanes,
		loading:     true,
		laneCounts:  make(map[models.Progress]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.laneCounts = msg.laneCounts
		m.stats = msg.stats
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" aipm dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	lanesPanel := m.renderLanesPanel()
	activityPanel := m.renderActivityPanel()
	alertsPanel := m.renderAlertsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		lanesPanel = m.applyPanelStyle(panelLanes, lanesPanel, colWidth-4)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, lanesPanel, activityPanel, alertsPanel)
	} else {
		panelWidth := max(availableWidth-4, 20)
		lanesPanel = m.applyPanelStyle(panelLanes, lanesPanel, panelWidth)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, lanesPanel, activityPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderLanesPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tasks"))
	b.WriteString("\n")

	total := 0
	for _, c := range m.laneCounts {
		total += c
	}
	if total == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	for _, p := range models.AllProgress {
		label := fmt.Sprintf("  %-14s %d", p.Label(), m.laneCounts[p])
		b.WriteString(progressStyles[p].Render(label))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))

	return b.String()
}

func (m dashboardModel) renderActivityPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Activity (7d)"))
	b.WriteString("\n")

	if m.stats == nil {
		b.WriteString("  No activity recorded.")
		return b.String()
	}

	s := m.stats
	lines := []struct {
		label string
		value int
	}{
		{"Events", s.EventCount},
		{"AI created", s.AICreated},
		{"AI updated", s.AIUpdated + s.AIEdits},
		{"AI deleted", s.AIDeleted},
		{"Sub-tasks", s.SubTasks},
		{"Direct", s.UserChanges},
		{"Undos", s.Undos},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.Severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(string(a.Severity))))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.Message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForSeverity(severity observability.AlertSeverity) lipgloss.Style {
	switch severity {
	case observability.SeverityHigh:
		return severityHigh
	case observability.SeverityMedium:
		return severityMedium
	case observability.SeverityLow:
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{
		laneCounts: make(map[models.Progress]int),
	}

	if TaskMgr != nil {
		tasks, err := TaskMgr.List(core.TaskFilter{})
		if err != nil {
			result.err = fmt.Errorf("loading tasks: %w", err)
			return result
		}
		for _, t := range tasks {
			result.laneCounts[t.Progress]++
		}
		// EvaluateAlerts already orders by severity.
		result.alerts = observability.EvaluateAlerts(tasks, alertThresholds, time.Now())
	}

	if StatsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		stats, err := StatsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading activity: %w", err)
			return result
		}
		result.stats = stats
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive summary of lanes, recent activity and alerts",
	Long: `Launch a terminal dashboard showing how many tasks sit in each lane,
what the AI and you changed over the last week, and any active alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskMgr == nil {
			return fmt.Errorf("task manager not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
