package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caskstore/cask/pkg/repo"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository",
	Long: "Initialize a repository at the location given by --repo. " +
		"The configuration written here is fixed for the repository's lifetime.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		l := mustLogger()

		store, err := openStore(l)
		if err != nil {
			logFatalln(err)
		}

		cfg := repo.DefaultConfig()
		cfg.Chunking = repo.ChunkingConfig{
			Algorithm: params.repoInit.chunking,
			Size:      params.repoInit.chunkSize,
		}
		if params.repoInit.encrypt {
			cfg.Encryption.Type = repo.EncryptionXChaCha
		}

		if _, err := repo.Init(ctx, store, cfg, repo.Logger(l)); err != nil {
			logFatalln(err)
		}
		fmt.Printf("initialized repository at %s\n", store)
	},
}

func init() {
	initCmd.Flags().StringVar(&params.repoInit.chunking, "chunking", repo.ChunkingBuzhash,
		"chunking algorithm (buzhash, fixed)")
	initCmd.Flags().Int64Var(&params.repoInit.chunkSize, "chunk-size", 0,
		"leaf chunk size in bytes for fixed chunking (0 picks the default)")
	initCmd.Flags().BoolVar(&params.repoInit.encrypt, "encrypt", false,
		"seal data chunks with a generated XChaCha20-Poly1305 key")

	rootCmd.AddCommand(initCmd)
}
