package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"salesboard/internal/config"
	"salesboard/internal/logging"
	"salesboard/internal/storage"
)

var (
	dataDirFlag  string
	sourcesFlag  string
	logLevelFlag string
	noCacheFlag  bool
)

var rootCmd = &cobra.Command{
	Use:           "salesboard",
	Short:         "Consolidate monthly sales extracts into a four-month comparison",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "directory holding the monthly extracts (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&sourcesFlag, "sources", "", "sources yaml file (overrides SOURCES_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&noCacheFlag, "no-cache", false, "always re-parse source files")

	rootCmd.AddCommand(runCmd, exportCmd, serveCmd, watchCmd, runsCmd, cacheClearCmd, versionCmd)
}

func main() {
	must(rootCmd.Execute())
}

// setup loads the configuration, applies flag overrides and installs the
// global logger. The returned func flushes the logger.
func setup() (config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, func() {}, err
	}
	if sourcesFlag != "" {
		sources, err := config.LoadSources(sourcesFlag)
		if err != nil {
			return config.Config{}, func() {}, err
		}
		cfg.SourcesFile = sourcesFlag
		cfg.Sources = sources
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if noCacheFlag {
		cfg.CacheEnabled = false
	}

	flush, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return config.Config{}, func() {}, err
	}
	return cfg, flush, nil
}

func openDB(cfg config.Config) (*storage.DB, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, eris.Wrapf(err, "open database %s", cfg.DBPath)
	}
	return db, nil
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
