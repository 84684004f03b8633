package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devloophq/devloop/models"
)

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true)
	statusCountStyles = map[models.TaskStatus]lipgloss.Style{
		models.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		models.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		models.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		models.StatusBlocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	}
)

// render applies styling only when stdout is a terminal.
func render(style lipgloss.Style, s string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return s
	}
	return style.Render(s)
}

// statusCmd summarizes the session phase and the index by task status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session phase and task counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fsys := GetFileSystem()
		idxStore, err := GetIndexStore(fsys)
		if err != nil {
			return err
		}
		idx, err := idxStore.Read(ctx)
		if err != nil {
			return err
		}

		sessions := GetSessionStore(fsys)
		if exists, _ := sessions.Exists(ctx); exists {
			session, err := sessions.Load(ctx)
			if err != nil {
				return err
			}
			fmt.Println(render(statusHeaderStyle, fmt.Sprintf("Session phase: %s", session.Phase)))
			if session.CurrentTask != "" {
				fmt.Printf("Current task: %s\n", session.CurrentTask)
			}
		}

		if idx.Metadata.ProjectGoal != "" {
			fmt.Printf("Goal: %s\n", idx.Metadata.ProjectGoal)
		}

		counts := make(map[models.TaskStatus]int)
		for _, entry := range idx.Tasks {
			counts[entry.Status]++
		}
		fmt.Println(render(statusHeaderStyle, fmt.Sprintf("Tasks (%d):", len(idx.Tasks))))
		for _, status := range models.CoreStatuses() {
			if counts[status] == 0 {
				continue
			}
			line := fmt.Sprintf("  %-12s %d", status, counts[status])
			fmt.Println(render(statusCountStyles[status], line))
		}

		if dangling := idx.Dangling(); len(dangling) > 0 {
			fmt.Printf("Warning: %d task(s) reference missing dependencies; run 'devloop doctor'.\n", len(dangling))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
