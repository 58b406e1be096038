package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caskstore/cask/pkg/repo"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [name]",
	Short: "Read back every reachable chunk and report corruption",
	Long: "Verify one name, or with no argument the whole repository. " +
		"Chunks shared between names are read once. The command exits " +
		"non-zero when any chunk fails to read back.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		r, store := openRepo(ctx)

		var results repo.VerifyResults
		err := withSharedLock(ctx, store, func() error {
			var err error
			if len(args) == 1 {
				results, err = r.VerifyName(ctx, args[0])
			} else {
				results, err = r.VerifyAll(ctx)
			}
			return err
		})
		if err != nil {
			logFatalln(err)
		}

		for _, chunkErr := range results.Errors {
			fmt.Printf("bad chunk %s: %v\n", chunkErr.Digest, chunkErr.Err)
		}
		fmt.Printf("scanned %d chunks, %d bad\n", results.Scanned, len(results.Errors))
		if len(results.Errors) > 0 {
			logFatalf("verification failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
