package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devloophq/devloop/models"
)

// sessionCmd shows the session record.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or advance the workflow session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessions := GetSessionStore(GetFileSystem())
		exists, err := sessions.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Println("No session. Run 'devloop init' first.")
			return nil
		}
		session, err := sessions.Load(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Session %s\n", session.ID)
		fmt.Printf("  phase:      %s\n", session.Phase)
		if session.CurrentTask != "" {
			fmt.Printf("  current:    %s\n", session.CurrentTask)
		}
		if targets := session.Phase.AllowedTargets(); len(targets) > 0 {
			names := make([]string, len(targets))
			for i, p := range targets {
				names[i] = string(p)
			}
			fmt.Printf("  next:       %s\n", strings.Join(names, ", "))
		} else {
			fmt.Printf("  next:       none (terminal)\n")
		}
		fmt.Printf("  errors:     %d\n", len(session.Errors))
		fmt.Printf("  started:    %s\n", session.StartedAt.Format(time.RFC3339))
		fmt.Printf("  updated:    %s\n", session.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

// sessionAdvanceCmd transitions the session to a new phase.
var sessionAdvanceCmd = &cobra.Command{
	Use:   "advance <phase>",
	Short: "Transition the session to the given phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, ok := models.ParsePhase(args[0])
		if !ok {
			return fmt.Errorf("unknown phase %q", args[0])
		}
		sessions := GetSessionStore(GetFileSystem())
		session, err := sessions.Load(ctx)
		if err != nil {
			return err
		}
		if err := session.TransitionTo(target); err != nil {
			return err
		}
		if err := sessions.Save(ctx, session); err != nil {
			return err
		}
		fmt.Printf("Session phase is now %s\n", session.Phase)
		return nil
	},
}

// sessionClearErrorsCmd drops the accumulated error records.
var sessionClearErrorsCmd = &cobra.Command{
	Use:   "clear-errors",
	Short: "Clear the session's error records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessions := GetSessionStore(GetFileSystem())
		session, err := sessions.Load(ctx)
		if err != nil {
			return err
		}
		session.ClearErrors()
		if err := sessions.Save(ctx, session); err != nil {
			return err
		}
		fmt.Println("Cleared session errors.")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionAdvanceCmd, sessionClearErrorsCmd)
	rootCmd.AddCommand(sessionCmd)
}
