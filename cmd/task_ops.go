package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devloophq/devloop/internal/git"
)

var doneCommit bool

// startCmd moves a pending task to in_progress and records it as the
// session's current task.
var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Start working on a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := GetService()
		if err != nil {
			return err
		}
		task, err := svc.Start(ctx, args[0])
		if err != nil {
			return err
		}

		fsys := GetFileSystem()
		sessions := GetSessionStore(fsys)
		if exists, _ := sessions.Exists(ctx); exists {
			session, err := sessions.Load(ctx)
			if err != nil {
				return err
			}
			session.SetCurrentTask(task.ID)
			if err := sessions.Save(ctx, session); err != nil {
				return err
			}
		}

		fmt.Printf("Started %s (%s)\n", task.ID, task.Description)
		return nil
	},
}

// doneCmd completes an in_progress task.
var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := GetService()
		if err != nil {
			return err
		}
		task, err := svc.Complete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if minutes, ok := task.ActualDuration(); ok {
			fmt.Printf("Completed %s in %dm\n", task.ID, minutes)
		} else {
			fmt.Printf("Completed %s\n", task.ID)
		}

		if doneCommit {
			g := git.New(nil)
			if !g.IsRepo() {
				PrintError("Not a git repository; skipping commit.", git.ErrNotGitRepository)
				return nil
			}
			changed, err := g.HasChanges()
			if err != nil {
				return err
			}
			if changed {
				if err := g.CommitAll(fmt.Sprintf("%s: %s", task.ID, task.Description)); err != nil {
					return err
				}
				fmt.Println("Committed working tree changes.")
			}
		}
		return nil
	},
}

// failCmd marks an in_progress task failed.
var failCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Mark a task failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := GetService()
		if err != nil {
			return err
		}
		task, err := svc.Fail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Marked %s failed. Run 'devloop heal %s' to attempt repair.\n", task.ID, task.ID)
		return nil
	},
}

func init() {
	doneCmd.Flags().BoolVar(&doneCommit, "commit", false, "commit working tree changes after completing")
	rootCmd.AddCommand(startCmd, doneCmd, failCmd)
}
