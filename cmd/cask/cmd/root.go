package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/caskstore/cask/pkg/backend"
	"github.com/caskstore/cask/pkg/backend/localfs"
	"github.com/caskstore/cask/pkg/backend/remote"
	"github.com/caskstore/cask/pkg/backend/status"
	"github.com/caskstore/cask/pkg/clogger"
	"github.com/caskstore/cask/pkg/errors"
	"github.com/caskstore/cask/pkg/repo"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cask",
	Short: "Cask is a deduplicating, content addressed backup store",
	Long: `Cask stores arbitrary byte streams as trees of content addressed chunks.

Identical content is stored once, whatever name it was saved under.
The repository lives in a local directory or behind a caskd server;
point --repo (or CASK_REPO) at either.
`,
}

type paramsT struct {
	repoInit struct {
		chunking  string
		chunkSize int64
		encrypt   bool
	}
}

var params paramsT

// used to patch over calls to os.Exit() during test
var logFatalln = log.Fatalln
var logFatalf = log.Fatalf

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("repo", "",
		"repository location: a local directory, or the http(s) URL of a caskd server")
	rootCmd.PersistentFlags().String("log-level", clogger.LogLevelInfo,
		"log level (info, debug, none)")
	_ = viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	viper.SetEnvPrefix("cask")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func mustLogger() *zap.Logger {
	return clogger.MustGetLogger(viper.GetString("log-level"))
}

func openStore(l *zap.Logger) (backend.Store, error) {
	loc := viper.GetString("repo")
	if loc == "" {
		return nil, fmt.Errorf("no repository given; set --repo or CASK_REPO")
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return remote.New(loc, remote.Logger(l))
	}
	return localfs.NewAtPath(loc), nil
}

func openRepo(ctx context.Context) (*repo.Repo, backend.Store) {
	l := mustLogger()
	store, err := openStore(l)
	if err != nil {
		logFatalln(err)
	}
	r, err := repo.Open(ctx, store, repo.Logger(l))
	if err != nil {
		logFatalln(err)
	}
	return r, store
}

// withSharedLock runs fn while holding the lock readers take.
func withSharedLock(ctx context.Context, store backend.Store, fn func() error) error {
	lock, err := store.LockShared(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

// withExclusiveLock runs fn while holding the single-writer lock.
// Stores that serialize writers themselves decline it; that is fine.
func withExclusiveLock(ctx context.Context, store backend.Store, fn func() error) error {
	lock, err := store.LockExclusive(ctx)
	if err == nil {
		defer func() { _ = lock.Release() }()
	} else if !errors.Is(err, status.ErrNotSupported) {
		return err
	}
	return fn()
}
