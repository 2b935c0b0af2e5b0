package main

import (
	"fmt"

	"github.com/smallnest/campusrag/config"
	"github.com/smallnest/campusrag/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg    config.Config
	logger log.Logger = log.GetDefaultLogger()
)

var rootCmd = &cobra.Command{
	Use:   "campusrag",
	Short: "Campus question answering over hybrid retrieval",
	Long: `campusrag answers campus questions with hybrid dense and sparse retrieval,
keeps a rolling summary of each conversation and indexes documents into Qdrant.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, none)")
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	level, err := log.ParseLevel(loaded.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	cfg = loaded
	logger = log.NewGologLoggerFor("[campusrag] ", level)
	log.SetDefaultLogger(logger)
	return nil
}
