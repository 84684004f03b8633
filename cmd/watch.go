package cmd

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/devloophq/devloop/models"
)

// watchCmd tails the index file and reports task status changes as the
// workflow (or an agent driving it) mutates the workspace.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the index and report task status changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idxStore, err := GetIndexStore(GetFileSystem())
		if err != nil {
			return err
		}

		last := make(map[string]models.TaskStatus)
		snapshot := func() error {
			idx, err := idxStore.Read(ctx)
			if err != nil {
				return err
			}
			for id, entry := range idx.Tasks {
				if prev, seen := last[id]; !seen {
					fmt.Printf("+ %s (%s)\n", id, entry.Status)
				} else if prev != entry.Status {
					fmt.Printf("~ %s: %s -> %s\n", id, prev, entry.Status)
				}
				last[id] = entry.Status
			}
			for id := range last {
				if _, ok := idx.Tasks[id]; !ok {
					fmt.Printf("- %s removed\n", id)
					delete(last, id)
				}
			}
			return nil
		}
		if err := snapshot(); err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		// Watch the directory: the store replaces the index via rename,
		// so watching the file itself would lose the watch on each write.
		if err := watcher.Add(rootDir()); err != nil {
			return fmt.Errorf("failed to watch %s: %w", rootDir(), err)
		}
		fmt.Printf("Watching %s (Ctrl-C to stop)\n", indexPath())

		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Name != indexPath() {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := snapshot(); err != nil {
					PrintError("Failed to re-read index.", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				PrintError("Watcher error.", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
