package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored names",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		err := withSharedLock(ctx, store, func() error {
			names, err := r.ListNames(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		})
		if err != nil {
			logFatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
