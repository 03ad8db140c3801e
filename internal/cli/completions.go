package cli

import (
	"strings"

	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

type completionFunc func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective)

// completeTaskIDs returns a completion function that lists task IDs,
// optionally filtered to exclude certain statuses.
func completeTaskIDs(excludeStatuses ...models.TaskStatus) completionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if TaskGraph == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		tasks, err := TaskGraph.Tasks()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		exclude := make(map[models.TaskStatus]bool)
		for _, s := range excludeStatuses {
			exclude[s] = true
		}

		var ids []string
		for _, task := range tasks {
			if exclude[task.Status] {
				continue
			}
			if toComplete == "" || strings.HasPrefix(task.ID, toComplete) {
				ids = append(ids, task.ID+"\t"+task.Title)
			}
		}

		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeFirstArg applies fn to the first positional argument only.
func completeFirstArg(fn completionFunc) completionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return fn(cmd, args, toComplete)
	}
}

// completeTaskPair completes task IDs for commands taking two of them.
func completeTaskPair() completionFunc {
	ids := completeTaskIDs()
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) >= 2 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return ids(cmd, args, toComplete)
	}
}

// completeStatusArgs completes "<task-id> <status>".
func completeStatusArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return completeTaskIDs()(cmd, args, toComplete)
	case 1:
		return completeStatuses(cmd, args, toComplete)
	default:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"urgent\tDrop everything",
		"high\tNext up",
		"medium\tDefault",
		"low\tWhen there is time",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"todo\tNot started",
		"in_progress\tActively being worked on",
		"done\tCompleted",
		"cancelled\tWill not be done",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completePositions(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"before\tSibling placed before the target",
		"after\tSibling placed after the target",
		"child\tLast child of the target",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeGranularities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"day\tOne column per day",
		"week\tOne column per ISO week",
		"month\tOne column per month",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeDrivers(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"yaml\tSingle tasks.yaml file",
		"sqlite\tSQLite database",
	}, cobra.ShellCompDirectiveNoFileComp
}
