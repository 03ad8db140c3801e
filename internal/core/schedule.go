package core

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/palazero/v3tasks/pkg/models"
)

// ScheduleEngine computes Critical-Path-Method schedules over the dependency
// graph. Every method works on copies and returns new slices; inputs are
// never modified.
type ScheduleEngine interface {
	ToScheduleTasks(tasks []models.Task) []models.ScheduleTask
	ComputeCriticalPath(tasks []models.ScheduleTask) ([]models.ScheduleTask, models.CriticalPath)
	AutoSchedule(tasks []models.ScheduleTask) []models.ScheduleTask
	ComputeSlack(tasks []models.ScheduleTask) map[string]float64
	TimelineRange(tasks []models.ScheduleTask) (start, end time.Time)
	TimelineLabels(start, end time.Time, g models.Granularity) iter.Seq[models.TimelineLabel]
	GenerateTimelineLabels(start, end time.Time, g models.Granularity) []models.TimelineLabel
}

type scheduleEngine struct {
	cfg models.EngineConfig
	now func() time.Time
}

// NewScheduleEngine creates a ScheduleEngine. now supplies the default start
// for tasks without dates; nil means time.Now.
func NewScheduleEngine(cfg models.EngineConfig, now func() time.Time) ScheduleEngine {
	def := models.DefaultEngineConfig()
	if cfg.DefaultDurationDays <= 0 {
		cfg.DefaultDurationDays = def.DefaultDurationDays
	}
	if cfg.MinDurationDays <= 0 {
		cfg.MinDurationDays = def.MinDurationDays
	}
	if cfg.TimelinePaddingDays < 0 {
		cfg.TimelinePaddingDays = def.TimelinePaddingDays
	}
	if cfg.EmptyTimelineDays <= 0 {
		cfg.EmptyTimelineDays = def.EmptyTimelineDays
	}
	if now == nil {
		now = time.Now
	}
	return &scheduleEngine{cfg: cfg, now: now}
}

// ParseGranularity converts user input into a Granularity.
func ParseGranularity(s string) (models.Granularity, error) {
	switch g := models.Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case models.GranularityDay, models.GranularityWeek, models.GranularityMonth:
		return g, nil
	default:
		return "", fmt.Errorf("invalid granularity %q: must be one of day, week, month", s)
	}
}

// ToScheduleTasks converts tasks into schedule working copies, filling in
// missing dates and clamping every window to the minimum duration.
// Progress is derived from status only: done is 100, in_progress is 50.
func (e *scheduleEngine) ToScheduleTasks(tasks []models.Task) []models.ScheduleTask {
	now := e.now()
	out := make([]models.ScheduleTask, 0, len(tasks))
	for _, t := range tasks {
		start := now
		if t.StartDate != nil {
			start = *t.StartDate
		}
		end := start.Add(time.Duration(e.cfg.DefaultDurationDays) * models.Day)
		if t.EndDate != nil {
			end = *t.EndDate
		}
		if minEnd := start.Add(time.Duration(e.cfg.MinDurationDays) * models.Day); end.Before(minEnd) {
			end = minEnd
		}

		progress := 0
		switch t.Status {
		case models.StatusDone:
			progress = 100
		case models.StatusInProgress:
			progress = 50
		}

		out = append(out, models.ScheduleTask{
			ID:           t.ID,
			Title:        t.Title,
			Status:       t.Status,
			Start:        start,
			End:          end,
			Progress:     progress,
			Dependencies: slices.Clone(t.DependencyIDs),
		})
	}
	return out
}

// scheduleGraph holds resolved predecessor and successor indices and a
// topological processing order for a slice of schedule tasks.
type scheduleGraph struct {
	preds [][]int
	succs [][]int
	order []int
}

// newScheduleGraph indexes tasks and orders them with Kahn's algorithm.
// Unknown dependency ids are ignored. Tasks caught in a cycle are appended
// after the acyclic part in input order so every task is still visited.
func newScheduleGraph(tasks []models.ScheduleTask) *scheduleGraph {
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, dup := byID[t.ID]; !dup {
			byID[t.ID] = i
		}
	}

	g := &scheduleGraph{
		preds: make([][]int, len(tasks)),
		succs: make([][]int, len(tasks)),
	}
	indeg := make([]int, len(tasks))
	for i, t := range tasks {
		for _, dep := range t.Dependencies {
			p, ok := byID[dep]
			if !ok || p == i || slices.Contains(g.preds[i], p) {
				continue
			}
			g.preds[i] = append(g.preds[i], p)
			g.succs[p] = append(g.succs[p], i)
			indeg[i]++
		}
	}

	queue := make([]int, 0, len(tasks))
	for i := range tasks {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	placed := make([]bool, len(tasks))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		placed[n] = true
		g.order = append(g.order, n)
		for _, s := range g.succs[n] {
			indeg[s]--
			if indeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	for i := range tasks {
		if !placed[i] {
			g.order = append(g.order, i)
		}
	}
	return g
}

// forwardPass fills EarlyStart and EarlyFinish in place and returns the
// latest early finish.
func (g *scheduleGraph) forwardPass(tasks []models.ScheduleTask) time.Time {
	done := make([]bool, len(tasks))
	var projectEnd time.Time
	for _, i := range g.order {
		t := &tasks[i]
		es := t.Start
		found := false
		for _, p := range g.preds[i] {
			if !done[p] {
				continue
			}
			if ef := tasks[p].EarlyFinish; !found || ef.After(es) {
				es = ef
				found = true
			}
		}
		t.EarlyStart = es
		t.EarlyFinish = es.Add(t.Duration())
		done[i] = true
		if projectEnd.IsZero() || t.EarlyFinish.After(projectEnd) {
			projectEnd = t.EarlyFinish
		}
	}
	return projectEnd
}

// backwardPass fills LateStart and LateFinish in place.
func (g *scheduleGraph) backwardPass(tasks []models.ScheduleTask, projectEnd time.Time) {
	done := make([]bool, len(tasks))
	for k := len(g.order) - 1; k >= 0; k-- {
		i := g.order[k]
		t := &tasks[i]
		lf := projectEnd
		found := false
		for _, s := range g.succs[i] {
			if !done[s] {
				continue
			}
			if ls := tasks[s].LateStart; !found || ls.Before(lf) {
				lf = ls
				found = true
			}
		}
		t.LateFinish = lf
		t.LateStart = lf.Add(-t.Duration())
		done[i] = true
	}
}

// ComputeCriticalPath runs the forward and backward passes and marks every
// task whose early and late starts are less than a day apart as critical.
// The dependency graph is assumed to be acyclic.
func (e *scheduleEngine) ComputeCriticalPath(tasks []models.ScheduleTask) ([]models.ScheduleTask, models.CriticalPath) {
	out := cloneScheduleTasks(tasks)
	g := newScheduleGraph(out)
	projectEnd := g.forwardPass(out)
	g.backwardPass(out, projectEnd)

	cp := models.CriticalPath{TaskIDs: []string{}, EndDate: projectEnd}
	var total time.Duration
	for i := range out {
		t := &out[i]
		diff := t.EarlyStart.Sub(t.LateStart)
		if diff < 0 {
			diff = -diff
		}
		t.Critical = diff < models.Day
		if t.Critical {
			cp.TaskIDs = append(cp.TaskIDs, t.ID)
			total += t.Duration()
		}
	}
	cp.TotalDuration = days(total)
	return out, cp
}

// AutoSchedule shifts every task so it starts no earlier than the latest
// finish of its dependencies, keeping each task's own duration.
func (e *scheduleEngine) AutoSchedule(tasks []models.ScheduleTask) []models.ScheduleTask {
	out := cloneScheduleTasks(tasks)
	g := newScheduleGraph(out)
	scheduled := make([]bool, len(out))
	for _, i := range g.order {
		t := &out[i]
		var latest time.Time
		for _, p := range g.preds[i] {
			if scheduled[p] && out[p].End.After(latest) {
				latest = out[p].End
			}
		}
		if !latest.IsZero() && latest.After(t.Start) {
			delta := latest.Sub(t.Start)
			t.Start = t.Start.Add(delta)
			t.End = t.End.Add(delta)
		}
		t.EarlyStart = t.Start
		t.EarlyFinish = t.End
		scheduled[i] = true
	}
	return out
}

// ComputeSlack returns, per task, the days between its early finish and the
// earliest early start among its successors, floored at zero. Tasks without
// successors have zero slack. This is not full CPM total or free float.
func (e *scheduleEngine) ComputeSlack(tasks []models.ScheduleTask) map[string]float64 {
	work := cloneScheduleTasks(tasks)
	g := newScheduleGraph(work)
	g.forwardPass(work)

	slack := make(map[string]float64, len(work))
	for i, t := range work {
		if len(g.succs[i]) == 0 {
			slack[t.ID] = 0
			continue
		}
		earliest := work[g.succs[i][0]].EarlyStart
		for _, s := range g.succs[i][1:] {
			if es := work[s].EarlyStart; es.Before(earliest) {
				earliest = es
			}
		}
		slack[t.ID] = max(0, days(earliest.Sub(t.EarlyFinish)))
	}
	return slack
}

// TimelineRange returns the padded bounding box of all task windows, or
// [now, now+EmptyTimelineDays] for an empty input.
func (e *scheduleEngine) TimelineRange(tasks []models.ScheduleTask) (time.Time, time.Time) {
	if len(tasks) == 0 {
		now := e.now()
		return now, now.Add(time.Duration(e.cfg.EmptyTimelineDays) * models.Day)
	}
	start, end := tasks[0].Start, tasks[0].End
	for _, t := range tasks[1:] {
		if t.Start.Before(start) {
			start = t.Start
		}
		if t.End.After(end) {
			end = t.End
		}
	}
	pad := time.Duration(e.cfg.TimelinePaddingDays) * models.Day
	return start.Add(-pad), end.Add(pad)
}

// TimelineLabels yields one label per calendar period from the period
// containing start up to end. The sequence is finite and can be ranged over
// any number of times.
func (e *scheduleEngine) TimelineLabels(start, end time.Time, g models.Granularity) iter.Seq[models.TimelineLabel] {
	return func(yield func(models.TimelineLabel) bool) {
		for cur := alignPeriod(start, g); !cur.After(end); cur = stepPeriod(cur, g) {
			if !yield(models.TimelineLabel{Date: cur, Label: formatPeriod(cur, g)}) {
				return
			}
		}
	}
}

// GenerateTimelineLabels collects TimelineLabels into a slice.
func (e *scheduleEngine) GenerateTimelineLabels(start, end time.Time, g models.Granularity) []models.TimelineLabel {
	return slices.Collect(e.TimelineLabels(start, end, g))
}

func alignPeriod(t time.Time, g models.Granularity) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch g {
	case models.GranularityWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func stepPeriod(t time.Time, g models.Granularity) time.Time {
	switch g {
	case models.GranularityWeek:
		return t.AddDate(0, 0, 7)
	case models.GranularityMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func formatPeriod(t time.Time, g models.Granularity) string {
	switch g {
	case models.GranularityWeek:
		_, week := t.ISOWeek()
		return fmt.Sprintf("Wk %02d %s", week, t.Format("Jan 2"))
	case models.GranularityMonth:
		return t.Format("Jan 2006")
	default:
		return t.Format("Jan 2")
	}
}

func cloneScheduleTasks(tasks []models.ScheduleTask) []models.ScheduleTask {
	out := make([]models.ScheduleTask, len(tasks))
	for i, t := range tasks {
		out[i] = t
		out[i].Dependencies = slices.Clone(t.Dependencies)
	}
	return out
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
