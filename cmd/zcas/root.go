package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zcas/internal/config"
	"zcas/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "zcas",
		Short:         "Zcas is a compressing content-addressed file store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && yamlOutput {
				return errors.New("--json and --yaml are mutually exclusive")
			}
			outputFormatter = format.JSONFormatter{}
			if yamlOutput {
				outputFormatter = format.YAMLFormatter{}
				jsonOutput = true
			}
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")

	// --yaml routes through the structured writer, so commands only check
	// one flag.
	structured := &jsonOutput

	cmd.AddCommand(
		newImportCmd(cfg, structured),
		newCatCmd(cfg),
		newShowCmd(cfg, structured),
		newListCmd(cfg, structured),
		newVerifyCmd(cfg, structured),
		newCodecsCmd(cfg, structured),
		newMigrateCmd(cfg, structured),
		newSrvCmd(cfg),
		newPushCmd(cfg, structured),
		newPullCmd(cfg),
		newConfigCmd(cfg, structured),
	)

	return cmd
}
