package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/devloophq/devloop/types"
)

var (
	healCommand  string
	healAttempts int
	healPause    time.Duration
)

// healCmd runs an automated repair command for a task through the
// circuit breaker. The breaker lives for this process, so repeated
// failures within one invocation trip it and later attempts fail fast.
var healCmd = &cobra.Command{
	Use:   "heal <task-id>",
	Short: "Run automated repair attempts for a task",
	Long: `Runs the repair command up to --attempts times through the circuit
breaker. Once the failure threshold is reached the breaker opens and
further attempts are rejected without running the command, until the
configured timeout elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if healCommand == "" {
			return fmt.Errorf("--cmd is required")
		}
		taskID := args[0]
		ctx := cmd.Context()

		fsys := GetFileSystem()
		coordinator := GetHealingCoordinator(fsys)

		repair := func(ctx context.Context) error {
			c := exec.CommandContext(ctx, "sh", "-c", healCommand)
			out, err := c.CombinedOutput()
			if err != nil {
				return fmt.Errorf("repair command failed: %w: %s", err, out)
			}
			return nil
		}

		for attempt := 0; attempt < healAttempts; attempt++ {
			result := coordinator.Heal(ctx, taskID, repair)
			if result.Success {
				fmt.Printf("Healed %s on attempt %d\n", taskID, result.Attempt)
				return nil
			}
			if types.IsCircuitOpen(result.Err) {
				fmt.Printf("Attempt %d rejected: %v\n", result.Attempt, result.Err)
			} else {
				fmt.Printf("Attempt %d failed (breaker %s): %v\n", result.Attempt, result.CircuitState, result.Err)
			}
			if attempt+1 < healAttempts && healPause > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(healPause):
				}
			}
		}

		stats := coordinator.Snapshot()
		fmt.Printf("Healing exhausted for %s: %d attempts, %d failures, breaker opened %d time(s)\n",
			taskID, stats.TotalAttempts, stats.Failures, stats.BreakerOpens)
		return fmt.Errorf("task %s not healed", taskID)
	},
}

func init() {
	healCmd.Flags().StringVar(&healCommand, "cmd", "", "shell command that attempts the repair")
	healCmd.Flags().IntVar(&healAttempts, "attempts", 3, "maximum healing attempts this run")
	healCmd.Flags().DurationVar(&healPause, "pause", 0, "pause between attempts")
	rootCmd.AddCommand(healCmd)
}
