package cmd

import (
	"context"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var duCmd = &cobra.Command{
	Use:   "du <name>",
	Short: "Report the stored object's plaintext size",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		err := withSharedLock(ctx, store, func() error {
			size, err := r.ObjectSize(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", units.BytesSize(float64(size)), args[0])
			return nil
		})
		if err != nil {
			logFatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(duCmd)
}
