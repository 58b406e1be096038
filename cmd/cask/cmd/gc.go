package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim space held by unreachable chunks",
	Long: "Open a fresh generation, forward every chunk reachable from a " +
		"stored name into it, then delete the older generations with " +
		"whatever garbage they still hold.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		err := withExclusiveLock(ctx, store, func() error {
			results, err := r.GC(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("walked %d names into generation %s, removed %d old generations\n",
				results.NamesWalked, results.Generation, len(results.GenerationsRemoved))
			return nil
		})
		if err != nil {
			logFatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
