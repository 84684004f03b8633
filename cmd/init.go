package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devloophq/devloop/models"
	"github.com/devloophq/devloop/store"
)

var initGoal string

// initCmd creates the workspace state: an empty index and a fresh
// session in the clarify phase.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the DevLoop workspace in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fsys := GetFileSystem()
		idxStore, err := GetIndexStore(fsys)
		if err != nil {
			return err
		}

		exists, err := fsys.Exists(ctx, indexPath())
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("workspace already initialized at %s", rootDir())
		}

		idx := store.NewIndex()
		idx.Metadata.ProjectGoal = initGoal
		if err := idxStore.Write(ctx, idx); err != nil {
			return fmt.Errorf("failed to write index: %w", err)
		}

		session := models.NewSessionState()
		if err := GetSessionStore(fsys).Save(ctx, session); err != nil {
			return fmt.Errorf("failed to write session state: %w", err)
		}
		if err := fsys.EnsureDir(ctx, tasksDir()); err != nil {
			return err
		}

		fmt.Printf("Initialized DevLoop workspace in %s (session %s, phase %s)\n",
			rootDir(), session.ID, session.Phase)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initGoal, "goal", "", "project goal recorded in the index metadata")
	rootCmd.AddCommand(initCmd)
}
