package cmd

import (
	"bufio"
	"context"
	"os"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Write a stored object to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		err := withSharedLock(ctx, store, func() error {
			out := bufio.NewWriter(os.Stdout)
			if err := r.Load(ctx, args[0], out); err != nil {
				return err
			}
			return out.Flush()
		})
		if err != nil {
			logFatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
