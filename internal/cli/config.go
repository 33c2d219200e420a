package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a configuration file with the defaults",
	Annotations: map[string]string{annotationSkipSetup: "true"},
	RunE:        runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the configuration file in use",
	Annotations: map[string]string{annotationSkipSetup: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), getConfigPath())
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !forceInit {
		return errors.NewBuilder(errors.CodeConfigInvalid, path+" already exists").
			Permanent().
			WithSuggestion("pass --force to overwrite it").
			Build()
	}

	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
