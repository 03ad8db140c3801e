package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

// Dashboard panel indices.
const (
	panelTasks = iota
	panelSchedule
	panelActivity
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	snapshot dashboardSnapshot

	loading bool
	err     error
}

// dashboardSnapshot is everything the dashboard shows, loaded in one go.
type dashboardSnapshot struct {
	statusCounts map[models.TaskStatus]int
	ready        int
	critical     []string
	projectDays  float64
	projectEnd   time.Time
	scheduleErr  string
	activity     *activitySnapshot
	alerts       []alertSnapshot
}

type activitySnapshot struct {
	events      int
	created     int
	completed   int
	moved       int
	depsAdded   int
	rejected    int
	rescheduled int
}

type alertSnapshot struct {
	severity string
	message  string
}

type dashboardLoadedMsg struct {
	snapshot dashboardSnapshot
	err      error
}

var (
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTasks,
		loading:     true,
		snapshot:    dashboardSnapshot{statusCounts: make(map[models.TaskStatus]int)},
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadDashboard
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
			return m, loadDashboard
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dashboardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.snapshot = msg.snapshot
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" v3t Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	panels := []string{
		m.renderTasksPanel(),
		m.renderSchedulePanel(),
		m.renderActivityPanel(),
		m.renderAlertsPanel(),
	}

	availableWidth := m.width - 2
	var body string
	if availableWidth > 100 {
		colWidth := availableWidth/2 - 4
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], colWidth)
		}
		body = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, panels[panelTasks], panels[panelSchedule]),
			lipgloss.JoinHorizontal(lipgloss.Top, panels[panelActivity], panels[panelAlerts]),
		)
	} else {
		panelWidth := max(availableWidth-4, 20)
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], panelWidth)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, panels...)
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

func (m dashboardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tasks"))
	b.WriteString("\n\n")

	total := 0
	for _, c := range m.snapshot.statusCounts {
		total += c
	}
	if total == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	for _, status := range []models.TaskStatus{models.StatusInProgress, models.StatusTodo, models.StatusDone, models.StatusCancelled} {
		count := m.snapshot.statusCounts[status]
		if count == 0 {
			continue
		}
		b.WriteString(styleForStatus(status).Render(fmt.Sprintf("  %-14s %d", status, count)))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n  Ready to start: %d\n  Total: %d", m.snapshot.ready, total)
	return b.String()
}

func (m dashboardModel) renderSchedulePanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Schedule"))
	b.WriteString("\n\n")

	if m.snapshot.scheduleErr != "" {
		b.WriteString(severityHigh.Render("  " + m.snapshot.scheduleErr))
		return b.String()
	}
	if len(m.snapshot.critical) == 0 {
		b.WriteString("  No critical path.")
		return b.String()
	}

	fmt.Fprintf(&b, "  Critical path: %.1f days\n", m.snapshot.projectDays)
	fmt.Fprintf(&b, "  Ends:          %s\n\n", m.snapshot.projectEnd.Format(dateLayout))
	for i, title := range m.snapshot.critical {
		b.WriteString(criticalBarStyle.Render(fmt.Sprintf("  %d. %s", i+1, title)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m dashboardModel) renderActivityPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Activity (7d)"))
	b.WriteString("\n\n")

	a := m.snapshot.activity
	if a == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	lines := []struct {
		label string
		value int
	}{
		{"Events", a.events},
		{"Created", a.created},
		{"Completed", a.completed},
		{"Moved", a.moved},
		{"Deps added", a.depsAdded},
		{"Deps rejected", a.rejected},
		{"Rescheduled", a.rescheduled},
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "  %-14s %d\n", l.label, l.value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n\n")

	if len(m.snapshot.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.snapshot.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		fmt.Fprintf(&b, "  %s %s\n", sev, a.message)
	}
	fmt.Fprintf(&b, "\n  Total: %d alert(s)", len(m.snapshot.alerts))
	return b.String()
}

func loadDashboard() tea.Msg {
	snap := dashboardSnapshot{statusCounts: make(map[models.TaskStatus]int)}

	if TaskGraph == nil {
		return dashboardLoadedMsg{err: fmt.Errorf("task graph service not initialized")}
	}
	tasks, err := TaskGraph.Tasks()
	if err != nil {
		return dashboardLoadedMsg{err: fmt.Errorf("loading tasks: %w", err)}
	}
	for _, t := range tasks {
		snap.statusCounts[t.Status]++
	}
	ready, err := TaskGraph.ReadyTasks()
	if err != nil {
		return dashboardLoadedMsg{err: fmt.Errorf("loading ready tasks: %w", err)}
	}
	snap.ready = len(ready)

	res, err := TaskGraph.Schedule()
	switch {
	case errors.Is(err, core.ErrCycle):
		snap.scheduleErr = "dependency cycle, run 'v3t dep validate'"
	case err != nil:
		return dashboardLoadedMsg{err: fmt.Errorf("computing schedule: %w", err)}
	default:
		titles := make(map[string]string, len(res.Tasks))
		for _, t := range res.Tasks {
			titles[t.ID] = t.Title
		}
		for _, id := range res.CriticalPath.TaskIDs {
			snap.critical = append(snap.critical, titles[id])
		}
		snap.projectDays = res.CriticalPath.TotalDuration
		snap.projectEnd = res.CriticalPath.EndDate
	}

	if MetricsCalc != nil {
		metrics, err := MetricsCalc.Calculate(time.Now().UTC().AddDate(0, 0, -7))
		if err != nil {
			return dashboardLoadedMsg{err: fmt.Errorf("loading metrics: %w", err)}
		}
		rejected := 0
		for _, n := range metrics.RejectedEdges {
			rejected += n
		}
		snap.activity = &activitySnapshot{
			events:      metrics.EventCount,
			created:     metrics.TasksCreated,
			completed:   metrics.TasksCompleted,
			moved:       metrics.TasksMoved,
			depsAdded:   metrics.DependenciesAdded,
			rejected:    rejected,
			rescheduled: metrics.TasksRescheduled,
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return dashboardLoadedMsg{err: fmt.Errorf("loading alerts: %w", err)}
		}
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})
		for _, a := range alerts {
			snap.alerts = append(snap.alerts, alertSnapshot{severity: string(a.Severity), message: a.Message})
		}
	}

	return dashboardLoadedMsg{snapshot: snap}
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for tasks, schedule, activity and alerts",
	Long: `Launch an interactive terminal dashboard showing task status counts,
the critical path, recent activity and active alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
