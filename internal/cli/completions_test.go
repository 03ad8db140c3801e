package cli

import (
	"strings"
	"testing"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

func TestCompleteTaskIDs_NilTaskGraph(t *testing.T) {
	withoutTaskGraph(t)

	ids, directive := completeTaskIDs()(&cobra.Command{}, nil, "")
	if ids != nil {
		t.Errorf("expected nil ids, got %v", ids)
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("expected NoFileComp directive, got %d", directive)
	}
}

func TestCompleteTaskIDs_LoadError(t *testing.T) {
	useTaskGraphYAML(t, "tasks: [this is not a map")

	ids, directive := completeTaskIDs()(&cobra.Command{}, nil, "")
	if ids != nil {
		t.Errorf("expected nil ids on error, got %v", ids)
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("expected NoFileComp directive, got %d", directive)
	}
}

func TestCompleteTaskIDs_FiltersAndDescribes(t *testing.T) {
	g := useTaskGraph(t)
	a := mustCreateTask(t, g, core.NewTaskInput{Title: "Backend"})
	b := mustCreateTask(t, g, core.NewTaskInput{Title: "Frontend"})
	if err := g.SetStatus(b.ID, models.StatusDone); err != nil {
		t.Fatal(err)
	}

	all, _ := completeTaskIDs()(&cobra.Command{}, nil, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 completions, got %v", all)
	}
	if all[0] != a.ID+"\tBackend" {
		t.Errorf("completion = %q, want id<TAB>title", all[0])
	}

	open, _ := completeTaskIDs(models.StatusDone)(&cobra.Command{}, nil, "")
	if len(open) != 1 || !strings.HasPrefix(open[0], a.ID) {
		t.Errorf("expected only the open task, got %v", open)
	}

	prefixed, _ := completeTaskIDs()(&cobra.Command{}, nil, b.ID[:6])
	if len(prefixed) != 1 || !strings.HasPrefix(prefixed[0], b.ID) {
		t.Errorf("expected prefix match on %s, got %v", b.ID[:6], prefixed)
	}
}

func TestCompleteFirstArg(t *testing.T) {
	calls := 0
	fn := completeFirstArg(func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		calls++
		return []string{"x"}, cobra.ShellCompDirectiveNoFileComp
	})

	if got, _ := fn(&cobra.Command{}, nil, ""); len(got) != 1 {
		t.Errorf("expected completions for the first arg, got %v", got)
	}
	if got, _ := fn(&cobra.Command{}, []string{"a"}, ""); got != nil {
		t.Errorf("expected no completions after the first arg, got %v", got)
	}
	if calls != 1 {
		t.Errorf("wrapped func called %d times, want 1", calls)
	}
}

func TestCompleteTaskPair(t *testing.T) {
	g := useTaskGraph(t)
	mustCreateTask(t, g, core.NewTaskInput{Title: "A"})

	fn := completeTaskPair()
	for n, want := range map[int]int{0: 1, 1: 1, 2: 0} {
		args := make([]string, n)
		got, _ := fn(&cobra.Command{}, args, "")
		if len(got) != want {
			t.Errorf("with %d args: got %d completions, want %d", n, len(got), want)
		}
	}
}

func TestCompleteStatusArgs(t *testing.T) {
	g := useTaskGraph(t)
	mustCreateTask(t, g, core.NewTaskInput{Title: "A"})

	ids, _ := completeStatusArgs(&cobra.Command{}, nil, "")
	if len(ids) != 1 {
		t.Errorf("first arg should complete task IDs, got %v", ids)
	}
	statuses, _ := completeStatusArgs(&cobra.Command{}, []string{"x"}, "")
	if len(statuses) != len(models.ValidStatuses) {
		t.Errorf("second arg should complete statuses, got %v", statuses)
	}
	for i, s := range models.ValidStatuses {
		if !strings.HasPrefix(statuses[i], string(s)+"\t") {
			t.Errorf("status completion %d = %q, want prefix %q", i, statuses[i], s)
		}
	}
	if rest, _ := completeStatusArgs(&cobra.Command{}, []string{"x", "y"}, ""); rest != nil {
		t.Errorf("no completions expected after two args, got %v", rest)
	}
}

func TestStaticCompletions(t *testing.T) {
	tests := []struct {
		name string
		fn   completionFunc
		want []string
	}{
		{"priorities", completePriorities, []string{"urgent", "high", "medium", "low"}},
		{"positions", completePositions, []string{string(core.PositionBefore), string(core.PositionAfter), string(core.PositionChild)}},
		{"granularities", completeGranularities, []string{"day", "week", "month"}},
		{"drivers", completeDrivers, []string{"yaml", "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, directive := tt.fn(&cobra.Command{}, nil, "")
			if directive != cobra.ShellCompDirectiveNoFileComp {
				t.Errorf("expected NoFileComp directive, got %d", directive)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i, w := range tt.want {
				if !strings.HasPrefix(got[i], w+"\t") {
					t.Errorf("completion %d = %q, want prefix %q", i, got[i], w)
				}
			}
		})
	}
}
