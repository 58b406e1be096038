package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store <name>",
	Short: "Store stdin under a name",
	Long: "Read a byte stream from stdin, deduplicate it against everything " +
		"already stored, and bind the result to <name>. Names are write-once.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		err := withExclusiveLock(ctx, store, func() error {
			addr, stats, err := r.WriteFrom(ctx, bufio.NewReader(os.Stdin))
			if err != nil {
				return err
			}
			if err := r.SaveName(ctx, args[0], addr); err != nil {
				return err
			}
			fmt.Printf("stored %s: %d new chunks (%s), %d reused (%s)\n",
				args[0],
				stats.ChunksNew, units.BytesSize(float64(stats.BytesNew)),
				stats.ChunksReused, units.BytesSize(float64(stats.BytesReused)))
			return nil
		})
		if err != nil {
			logFatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
}
