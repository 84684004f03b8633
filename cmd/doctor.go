package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// doctorCmd reports index problems. Dangling dependency references keep
// their dependent task blocked forever, so they are surfaced here for
// manual repair instead of being silently dropped.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the index for dangling dependency references",
	RunE: func(cmd *cobra.Command, args []string) error {
		idxStore, err := GetIndexStore(GetFileSystem())
		if err != nil {
			return err
		}
		idx, err := idxStore.Read(cmd.Context())
		if err != nil {
			return err
		}

		dangling := idx.Dangling()
		if len(dangling) == 0 {
			fmt.Println("Index is healthy: no dangling dependencies.")
			return nil
		}

		ids := make([]string, 0, len(dangling))
		for id := range dangling {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("%s -> missing: %s\n", id, strings.Join(dangling[id], ", "))
		}
		return fmt.Errorf("%d task(s) are permanently blocked by missing dependencies", len(dangling))
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
