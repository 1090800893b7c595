package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rennervale/pagestore/internal/applog"
	"github.com/rennervale/pagestore/internal/config"
)

var (
	rootCmd = &cobra.Command{
		Use:               "pagestore",
		Short:             "Raw page-store operations",
		Long:              "pagestore drives insert/get-page/checkpoint operations directly against the transactional page store, with no SQL layer above it.",
		PersistentPreRunE: rootPreRun,
	}

	configFile = ""
	dataDir    = "./data"
	walPath    = "./data/wal.log"
	tupleWidth = 32
	logLevel   = "info"
)

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config", configFile, "`file` to load an HCL config from")
	fs.StringVar(&dataDir, "data-dir", dataDir, "`directory` containing table files")
	fs.StringVar(&walPath, "wal", walPath, "`file` used for the write-ahead log")
	fs.IntVar(&tupleWidth, "tuple-width", tupleWidth, "fixed tuple byte width for this invocation's table")
	fs.StringVar(&logLevel, "log-level", logLevel, "log level: debug, info, warn, error")
}

// Execute runs the pagestore command tree.
func Execute() error {
	return rootCmd.Execute()
}

func rootPreRun(cmd *cobra.Command, args []string) error {
	level := applog.LevelInfo
	switch logLevel {
	case "debug":
		level = applog.LevelDebug
	case "warn":
		level = applog.LevelWarn
	case "error":
		level = applog.LevelError
	}
	if err := applog.Init(applog.Config{Level: level, Format: "text"}); err != nil {
		log.WithError(err).Debug("logger already initialized")
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.WALPath = walPath
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pagestore: %w", err)
	}
	return cfg, nil
}
