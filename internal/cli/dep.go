package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Aliases: []string{"deps"},
	Short:   "Manage finish-to-start dependencies between tasks",
	Long: `Manage dependency edges. "v3t dep add A B" means task A cannot start
until task B is done. Edges that would close a cycle are rejected.`,
}

var (
	depStatusJSON bool
	depGraphFmt   string
	depReadyJSON  bool
)

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <dependency-id>",
	Short: "Make a task wait for another task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		if err := TaskGraph.AddDependency(args[0], args[1]); err != nil {
			return fmt.Errorf("adding dependency: %w", err)
		}
		fmt.Printf("Task %s now depends on %s\n", args[0], args[1])
		return nil
	},
}

var depRmCmd = &cobra.Command{
	Use:     "rm <task-id> <dependency-id>",
	Aliases: []string{"remove"},
	Short:   "Remove a dependency edge",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		if err := TaskGraph.RemoveDependency(args[0], args[1]); err != nil {
			return fmt.Errorf("removing dependency: %w", err)
		}
		fmt.Printf("Task %s no longer depends on %s\n", args[0], args[1])
		return nil
	},
}

var depStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show what a task waits on and what waits on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		ds, err := TaskGraph.DependencyStatus(args[0])
		if err != nil {
			return fmt.Errorf("loading dependency status: %w", err)
		}
		if depStatusJSON {
			return printJSON(ds)
		}

		state := statusDone.Render("ready to start")
		if !ds.CanStart {
			state = statusInProgress.Render(fmt.Sprintf("blocked by %d task(s)", len(ds.BlockedBy)))
		}
		fmt.Printf("Task %s: %s\n", args[0], state)
		fmt.Printf("  Completion: %.0f%% of %d dependency(ies)\n", ds.CompletionRate*100, len(ds.DependsOn))
		printTaskRefs("Depends on", ds.DependsOn)
		printTaskRefs("Blocked by", ds.BlockedBy)
		printTaskRefs("Blocking", ds.Blocking)
		return nil
	},
}

var depValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the dependency graph for dangling references and cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		report, err := TaskGraph.Validate()
		if err != nil {
			return fmt.Errorf("validating dependencies: %w", err)
		}
		if report.Valid {
			fmt.Println("Dependency graph is valid.")
			return nil
		}

		fmt.Printf("%d problem(s) found:\n\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("  [%s] %s\n", strings.ToUpper(string(e.Kind)), e.Message)
		}
		return fmt.Errorf("dependency graph is invalid")
	},
}

var depReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuild blocked-by lists from the dependency edges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		n, err := TaskGraph.Reconcile()
		if err != nil {
			return fmt.Errorf("reconciling dependencies: %w", err)
		}
		fmt.Printf("Reconciled %d task(s)\n", n)
		return nil
	},
}

var depReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List open tasks whose dependencies are all done",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		tasks, err := TaskGraph.ReadyTasks()
		if err != nil {
			return fmt.Errorf("listing ready tasks: %w", err)
		}
		if depReadyJSON {
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks are ready to start.")
			return nil
		}
		for _, t := range tasks {
			fmt.Printf("  %-10s %-8s %s\n", shortID(t.ID), t.Priority, t.Title)
		}
		return nil
	},
}

var depGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dependency graph (text, json or dot)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		g, err := TaskGraph.Graph()
		if err != nil {
			return fmt.Errorf("building graph: %w", err)
		}
		switch depGraphFmt {
		case "json":
			return printJSON(g)
		case "dot":
			writeDOT(os.Stdout, g)
			return nil
		case "", "text":
			writeEdgeList(os.Stdout, g)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (use text, json or dot)", depGraphFmt)
		}
	},
}

func writeEdgeList(w io.Writer, g *core.Graph) {
	titles := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		titles[n.ID] = n.Title
	}
	if len(g.Edges) == 0 {
		_, _ = fmt.Fprintf(w, "%d task(s), no dependencies.\n", len(g.Nodes))
		return
	}
	for _, e := range g.Edges {
		_, _ = fmt.Fprintf(w, "%s (%s) -> %s (%s)\n", titles[e.From], shortID(e.From), titles[e.To], shortID(e.To))
	}
}

// writeDOT renders the graph in Graphviz format. Edges point from the
// dependency to the waiting task.
func writeDOT(w io.Writer, g *core.Graph) {
	_, _ = fmt.Fprintln(w, "digraph tasks {")
	_, _ = fmt.Fprintln(w, "  rankdir=LR;")
	for _, n := range g.Nodes {
		_, _ = fmt.Fprintf(w, "  %q [label=%q];\n", n.ID, fmt.Sprintf("%s\n[%s]", n.Title, n.Status))
	}
	for _, e := range g.Edges {
		_, _ = fmt.Fprintf(w, "  %q -> %q;\n", e.From, e.To)
	}
	_, _ = fmt.Fprintln(w, "}")
}

func init() {
	depStatusCmd.Flags().BoolVar(&depStatusJSON, "json", false, "Output as JSON")
	depReadyCmd.Flags().BoolVar(&depReadyJSON, "json", false, "Output as JSON")
	depGraphCmd.Flags().StringVar(&depGraphFmt, "format", "text", "Output format: text, json, dot")

	depAddCmd.ValidArgsFunction = completeTaskPair()
	depRmCmd.ValidArgsFunction = completeTaskPair()
	depStatusCmd.ValidArgsFunction = completeFirstArg(completeTaskIDs())

	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRmCmd)
	depCmd.AddCommand(depStatusCmd)
	depCmd.AddCommand(depValidateCmd)
	depCmd.AddCommand(depReconcileCmd)
	depCmd.AddCommand(depReadyCmd)
	depCmd.AddCommand(depGraphCmd)

	rootCmd.AddCommand(depCmd)
}
