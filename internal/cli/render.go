package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	idStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	statusTodo       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusCancelled  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)

	barStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	criticalBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	doneBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

const (
	dateLayout   = "2006-01-02"
	ganttBar     = "█"
	minBarWidth  = 10
	maxNameWidth = 28
)

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusDone:
		return statusDone
	case models.StatusCancelled:
		return statusCancelled
	default:
		return statusTodo
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func statusGlyph(status models.TaskStatus) string {
	switch status {
	case models.StatusInProgress:
		return "◐"
	case models.StatusDone:
		return "●"
	case models.StatusCancelled:
		return "✕"
	default:
		return "○"
	}
}

// shortID abbreviates generated UUIDs for display.
func shortID(id string) string {
	if len(id) > 8 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// renderTree draws the forest as an outline with box-drawing connectors.
func renderTree(forest []*core.TreeNode) string {
	if len(forest) == 0 {
		return "No tasks found.\n"
	}

	type frame struct {
		node   *core.TreeNode
		prefix string
		last   bool
		root   bool
	}

	var b strings.Builder
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: forest[i], root: true})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		childPrefix := ""
		if !f.root {
			connector := "├── "
			childPrefix = f.prefix + "│   "
			if f.last {
				connector = "└── "
				childPrefix = f.prefix + "    "
			}
			b.WriteString(f.prefix + connector)
		}

		t := f.node.Task
		fmt.Fprintf(&b, "%s %s  %s\n",
			styleForStatus(t.Status).Render(statusGlyph(t.Status)),
			t.Title,
			idStyle.Render(shortID(t.ID)),
		)

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				node:   f.node.Children[i],
				prefix: childPrefix,
				last:   i == len(f.node.Children)-1,
			})
		}
	}
	return b.String()
}

// renderGantt draws one bar per task across the timeline range. width is
// the total line width including the name column.
func renderGantt(tasks []models.ScheduleTask, tl *core.Timeline, width int) string {
	if len(tasks) == 0 || tl == nil {
		return "No tasks to schedule.\n"
	}
	span := tl.End.Sub(tl.Start)
	if span <= 0 {
		return "No tasks to schedule.\n"
	}

	nameWidth := 0
	for _, t := range tasks {
		nameWidth = max(nameWidth, len([]rune(t.Title)))
	}
	// Room for the critical marker plus two spaces of gutter.
	nameWidth = min(nameWidth, maxNameWidth) + 3
	barWidth := max(width-nameWidth, minBarWidth)

	col := func(at time.Time) int {
		c := int(float64(at.Sub(tl.Start)) / float64(span) * float64(barWidth))
		return min(max(c, 0), barWidth)
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", nameWidth))
	b.WriteString(headerStyle.Render(ganttHeader(tl.Labels, barWidth, col)))
	b.WriteString("\n")

	for _, t := range tasks {
		start, end := col(t.Start), col(t.End)
		if start >= barWidth {
			start = barWidth - 1
		}
		if end <= start {
			end = start + 1
		}

		style := barStyle
		switch {
		case t.Status == models.StatusDone:
			style = doneBarStyle
		case t.Critical:
			style = criticalBarStyle
		}

		name := truncate(t.Title, nameWidth-3)
		if t.Critical {
			name += "*"
		}
		b.WriteString(padRight(name, nameWidth))
		b.WriteString(strings.Repeat(" ", start))
		b.WriteString(style.Render(strings.Repeat(ganttBar, end-start)))
		b.WriteString("\n")
	}
	return b.String()
}

// ganttHeader places each label at its column, skipping labels that would
// overlap the previous one.
func ganttHeader(labels []models.TimelineLabel, width int, col func(time.Time) int) string {
	line := []rune(strings.Repeat(" ", width))
	next := 0
	for _, l := range labels {
		pos := col(l.Date)
		if pos < next || pos >= width {
			continue
		}
		text := []rune(l.Label)
		n := copy(line[pos:], text)
		next = pos + n + 1
	}
	return strings.TrimRight(string(line), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func padRight(s string, n int) string {
	if pad := n - len([]rune(s)); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}
