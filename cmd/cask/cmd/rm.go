package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a stored name",
	Long: "Unbind <name>. The chunks it referenced stay on disk until " +
		"`cask gc` finds them unreachable.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		err := withExclusiveLock(ctx, store, func() error {
			return r.RemoveName(ctx, args[0])
		})
		if err != nil {
			logFatalln(err)
		}
		fmt.Printf("removed %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
