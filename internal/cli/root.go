// Package cli implements the grind command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
	"github.com/grind-ai/grind/internal/logging"
)

// Command annotations read by setup.
const (
	annotationSkipSetup = "grind/skip-setup" // command runs without config or logger
	annotationFileLog   = "grind/file-log"   // log to the file only, the terminal belongs to the UI
)

var (
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "grind",
	Short: "Personal assistant with memory, routing and a Jarvis persona",
	Long: "GRIND answers through a chain of language model and search backends, " +
		"remembers what you tell it, and replies in character over the console, HTTP or Telegram.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command and prints any error with its
// recovery suggestions.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatUserMessage(err))
	}
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.grind/config.toml)")

	RootCmd.AddCommand(chatCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(askCmd)
	RootCmd.AddCommand(configCmd)
	RootCmd.AddCommand(versionCmd)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("GRIND_CONFIG"); env != "" {
		return env
	}
	return config.DefaultPath()
}

// setup loads and validates the configuration and builds the logger.
// A missing primary credential stops the process here.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[annotationSkipSetup] == "true" {
		return nil
	}

	loaded, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(loaded.Paths.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logCfg, logFile := loaded.Logging, loaded.Paths.LogFile
	if cmd.Annotations[annotationFileLog] == "true" && logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		logCfg.OutputPaths = []string{logFile}
		logFile = ""
	}

	l, err := logging.New(logCfg, logFile)
	if err != nil {
		return err
	}

	cfg, logger = loaded, l
	logger.Debug("configuration loaded", zap.String("path", getConfigPath()), zap.String("database", cfg.Paths.Database))
	return nil
}
