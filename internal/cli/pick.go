package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

var (
	pickAll   bool
	pickReady bool
)

// pickStatusOrder is the display order of the picker: active work first.
var pickStatusOrder = []models.TaskStatus{
	models.StatusInProgress,
	models.StatusTodo,
	models.StatusDone,
	models.StatusCancelled,
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactively choose a task and print its ID",
	Long: `Open a filterable list of tasks and print the ID of the chosen one.

The list is drawn on stderr so the result composes with other commands:

  v3t task show $(v3t pick)
  v3t task status $(v3t pick --ready) in_progress

Open tasks are listed by default, in-progress work first and then by
priority. Press / to filter, enter to choose, q or esc to cancel.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		var tasks []models.Task
		var err error
		if pickReady {
			tasks, err = TaskGraph.ReadyTasks()
		} else {
			tasks, err = TaskGraph.Tasks()
		}
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		tasks = pickableTasks(tasks, pickAll)
		if len(tasks) == 0 {
			return fmt.Errorf("no tasks to pick from (use 'v3t task add <title>' to create one)")
		}

		p := tea.NewProgram(newPickModel(tasks), tea.WithAltScreen(), tea.WithOutput(os.Stderr))
		final, err := p.Run()
		if err != nil {
			return fmt.Errorf("running picker: %w", err)
		}
		m, ok := final.(pickModel)
		if !ok || m.selected == "" {
			return fmt.Errorf("cancelled")
		}
		fmt.Println(m.selected)
		return nil
	},
}

// pickableTasks filters out closed tasks unless all is set and orders the
// rest by status, then priority. Outline order breaks ties.
func pickableTasks(tasks []models.Task, all bool) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !all && (t.Status == models.StatusDone || t.Status == models.StatusCancelled) {
			continue
		}
		out = append(out, t)
	}
	slices.SortStableFunc(out, func(a, b models.Task) int {
		if c := rankOf(pickStatusOrder, a.Status) - rankOf(pickStatusOrder, b.Status); c != 0 {
			return c
		}
		return rankOf(models.ValidPriorities, a.Priority) - rankOf(models.ValidPriorities, b.Priority)
	})
	return out
}

func rankOf[T comparable](order []T, v T) int {
	if i := slices.Index(order, v); i >= 0 {
		return i
	}
	return len(order)
}

type pickItem struct {
	task models.Task
}

func (i pickItem) Title() string { return statusGlyph(i.task.Status) + " " + i.task.Title }
func (i pickItem) Description() string {
	return fmt.Sprintf("%s  %s  %s", shortID(i.task.ID), i.task.Priority, i.task.Status)
}
func (i pickItem) FilterValue() string { return i.task.Title + " " + i.task.ID }

type pickModel struct {
	list     list.Model
	selected string
}

func newPickModel(tasks []models.Task) pickModel {
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = pickItem{task: t}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Pick a task"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(true)
	l.DisableQuitKeybindings()
	return pickModel{list: l}
}

func (m pickModel) Init() tea.Cmd {
	return nil
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc":
			if m.list.FilterState() == list.FilterApplied && msg.String() == "esc" {
				break
			}
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(pickItem); ok {
				m.selected = item.task.ID
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() string {
	return m.list.View()
}

func init() {
	pickCmd.Flags().BoolVar(&pickAll, "all", false, "Include done and cancelled tasks")
	pickCmd.Flags().BoolVar(&pickReady, "ready", false, "Only offer tasks whose dependencies are done")
	rootCmd.AddCommand(pickCmd)
}
