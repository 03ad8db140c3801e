package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

// ganttChrome is the number of lines the TUI uses outside the chart rows.
const ganttChrome = 7

type ganttModel struct {
	granularity models.Granularity
	schedule    *core.ScheduleResult
	timeline    *core.Timeline
	offset      int
	width       int
	height      int
	loading     bool
	err         error
}

type ganttLoadedMsg struct {
	schedule *core.ScheduleResult
	timeline *core.Timeline
	err      error
}

func newGanttModel(g models.Granularity) ganttModel {
	return ganttModel{granularity: g, loading: true}
}

func (m ganttModel) Init() tea.Cmd {
	return loadGantt(m.granularity)
}

func (m ganttModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
			return m, nil
		case "down", "j":
			if m.offset < m.rowCount()-1 {
				m.offset++
			}
			return m, nil
		case "g":
			m.granularity = nextGranularity(m.granularity)
			m.loading = true
			return m, loadGantt(m.granularity)
		case "r":
			m.loading = true
			return m, loadGantt(m.granularity)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ganttLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.schedule = msg.schedule
		m.timeline = msg.timeline
		if m.timeline != nil {
			m.granularity = m.timeline.Granularity
		}
		m.offset = min(m.offset, max(m.rowCount()-1, 0))
		return m, nil
	}

	return m, nil
}

func (m ganttModel) rowCount() int {
	if m.schedule == nil {
		return 0
	}
	return len(m.schedule.Tasks)
}

func (m ganttModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(fmt.Sprintf(" v3t Gantt (%s) ", m.granularity))
	help := helpStyle.Render("j/k: scroll | g: granularity | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading schedule...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	visible := max(m.height-ganttChrome, 1)
	rows := m.schedule.Tasks[m.offset:min(m.offset+visible, len(m.schedule.Tasks))]
	chart := renderGantt(rows, m.timeline, m.width-2)

	var footer strings.Builder
	cp := m.schedule.CriticalPath
	if len(cp.TaskIDs) > 0 {
		fmt.Fprintf(&footer, "Critical path: %d task(s), %.1f days, ends %s",
			len(cp.TaskIDs), cp.TotalDuration, cp.EndDate.Format(dateLayout))
	}
	if n := len(m.schedule.Tasks); n > visible {
		fmt.Fprintf(&footer, "  [%d-%d of %d]", m.offset+1, m.offset+len(rows), n)
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, chart, footer.String(), help)
}

func nextGranularity(g models.Granularity) models.Granularity {
	switch g {
	case models.GranularityDay:
		return models.GranularityWeek
	case models.GranularityWeek:
		return models.GranularityMonth
	default:
		return models.GranularityDay
	}
}

func loadGantt(g models.Granularity) tea.Cmd {
	return func() tea.Msg {
		if TaskGraph == nil {
			return ganttLoadedMsg{err: fmt.Errorf("task graph service not initialized")}
		}
		res, err := TaskGraph.Schedule()
		if err != nil {
			return ganttLoadedMsg{err: fmt.Errorf("computing schedule: %w", err)}
		}
		tl, err := TaskGraph.Timeline(g)
		if err != nil {
			return ganttLoadedMsg{err: fmt.Errorf("computing timeline: %w", err)}
		}
		return ganttLoadedMsg{schedule: res, timeline: tl}
	}
}

var (
	ganttTUI         bool
	ganttWidth       int
	ganttGranularity string
)

var ganttCmd = &cobra.Command{
	Use:   "gantt",
	Short: "Render the schedule as a Gantt chart",
	Long: `Render the critical-path schedule as a Gantt chart.

Critical tasks are marked with '*'. With --tui the chart opens in an
interactive view: scroll with j/k, cycle granularity with g, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		g, err := granularityFlag(ganttGranularity)
		if err != nil {
			return err
		}

		if ganttTUI {
			p := tea.NewProgram(newGanttModel(g), tea.WithAltScreen())
			_, err := p.Run()
			return err
		}

		msg := loadGantt(g)().(ganttLoadedMsg)
		if msg.err != nil {
			return msg.err
		}
		fmt.Print(renderGantt(msg.schedule.Tasks, msg.timeline, ganttWidth))
		return nil
	},
}

func init() {
	ganttCmd.Flags().BoolVar(&ganttTUI, "tui", false, "Open the interactive chart")
	ganttCmd.Flags().IntVar(&ganttWidth, "width", 100, "Chart width in columns")
	ganttCmd.Flags().StringVar(&ganttGranularity, "granularity", "", "Header granularity: day, week, month")
	_ = ganttCmd.RegisterFlagCompletionFunc("granularity", completeGranularities)
	rootCmd.AddCommand(ganttCmd)
}
