package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devloophq/devloop/models"
)

var (
	addModule   string
	addPriority int
	addDesc     string
	addEstimate int
	addDepends  []string
	addCriteria []string
	addTests    []string
	addNotes    string
)

// addCmd records a task emitted by the breakdown phase: it writes the
// task document and its index entry.
var addCmd = &cobra.Command{
	Use:   "add <task-id>",
	Short: "Add a pending task to the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !models.IsValidTaskID(id) {
			return fmt.Errorf("invalid task id %q (expected dotted segments like auth.login)", id)
		}
		svc, err := GetService()
		if err != nil {
			return err
		}

		task := models.NewTask(id, addModule, addPriority)
		task.Description = addDesc
		task.EstimatedMinutes = addEstimate
		task.Dependencies = addDepends
		task.AcceptanceCriteria = addCriteria
		task.TestRequirements = addTests
		task.Notes = addNotes

		if err := svc.Save(cmd.Context(), task); err != nil {
			return err
		}
		fmt.Printf("Added %s (priority %d)\n", task.ID, task.Priority)
		return nil
	},
}

// listCmd prints index entries, optionally filtered by status.
var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks from the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idxStore, err := GetIndexStore(GetFileSystem())
		if err != nil {
			return err
		}

		var ids []string
		if listStatus != "" {
			ids, err = idxStore.QueryByStatus(ctx, models.TaskStatus(listStatus))
		} else {
			ids, err = idxStore.AllIDs(ctx)
		}
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		idx, err := idxStore.Read(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			entry := idx.Tasks[id]
			fmt.Printf("%-30s %-12s p%-3d %s\n", id, entry.Status, entry.Priority, entry.Description)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addModule, "module", "core", "module the task belongs to")
	addCmd.Flags().IntVar(&addPriority, "priority", 50, "priority (lower = more urgent)")
	addCmd.Flags().StringVar(&addDesc, "desc", "", "one-line description")
	addCmd.Flags().IntVar(&addEstimate, "estimate", 0, "estimated minutes")
	addCmd.Flags().StringSliceVar(&addDepends, "depends", nil, "dependency task ids")
	addCmd.Flags().StringArrayVar(&addCriteria, "criterion", nil, "acceptance criterion (repeatable)")
	addCmd.Flags().StringArrayVar(&addTests, "test", nil, "test requirement (repeatable)")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "free-text notes")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	rootCmd.AddCommand(addCmd, listCmd)
}
