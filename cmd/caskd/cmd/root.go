package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/caskstore/cask/internal/server"
	"github.com/caskstore/cask/pkg/backend/localfs"
	"github.com/caskstore/cask/pkg/clogger"
)

// rootCmd runs the server; caskd has no subcommands.
var rootCmd = &cobra.Command{
	Use:   "caskd",
	Short: "Caskd serves a local cask repository over HTTP",
	Long: `Caskd exposes a directory-backed repository to remote cask clients.

Every client operation maps onto one HTTP endpoint; the server itself
knows nothing about chunks or names, it only moves blobs.
`,
	Run: func(cmd *cobra.Command, args []string) {
		l := clogger.MustGetLogger(viper.GetString("log-level"))

		dataDir := viper.GetString("data-dir")
		if dataDir == "" {
			logFatalln("no data directory given; set --data-dir or CASKD_DATA_DIR")
		}

		srv, err := server.New(localfs.NewAtPath(dataDir),
			server.Logger(l),
			server.CacheSize(viper.GetInt("cache-size")))
		if err != nil {
			logFatalln(err)
		}

		listen := viper.GetString("listen")
		l.Info("caskd listening",
			zap.String("addr", listen),
			zap.String("data-dir", dataDir))
		if err := http.ListenAndServe(listen, server.InitRouter(srv)); err != nil {
			logFatalln(err)
		}
	},
}

var logFatalln = log.Fatalln

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().String("listen", ":8732", "address to listen on")
	rootCmd.Flags().String("data-dir", "", "directory holding the repository")
	rootCmd.Flags().String("log-level", clogger.LogLevelInfo, "log level (info, debug, none)")
	rootCmd.Flags().Int("cache-size", server.DefaultCacheSize,
		"chunk read cache capacity in entries (0 disables)")
	_ = viper.BindPFlag("listen", rootCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("data-dir", rootCmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("cache-size", rootCmd.Flags().Lookup("cache-size"))
}

func initConfig() {
	viper.SetEnvPrefix("caskd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
