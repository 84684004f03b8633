package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// nextCmd suggests the next ready task: the index supplies priority-ordered
// candidates and the service filters out tasks whose dependencies are not
// all completed.
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Suggest the next ready task to start",
	Long: `Finds the next task whose dependencies are all completed, ordered by
priority (lower value = more urgent). An in-progress task is always
suggested first so interrupted work is resumed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := GetService()
		if err != nil {
			return fmt.Errorf("failed to get task service: %w", err)
		}
		task, ok, err := svc.Next(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to resolve next task: %w", err)
		}
		if !ok {
			fmt.Println("No ready tasks found (dependencies may be incomplete).")
			return nil
		}

		fmt.Printf("%s  [%s, priority %d, %s]\n", task.ID, task.Module, task.Priority, task.Status)
		if task.Description != "" {
			fmt.Printf("  %s\n", task.Description)
		}
		if len(task.Dependencies) > 0 {
			fmt.Printf("  depends on: %s\n", strings.Join(task.Dependencies, ", "))
		}
		if task.EstimatedMinutes > 0 {
			fmt.Printf("  estimate: %dm\n", task.EstimatedMinutes)
		}
		fmt.Printf("\nStart it with: devloop start %s\n", task.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
