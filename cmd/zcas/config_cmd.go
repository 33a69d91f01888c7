package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/codec"
	"zcas/internal/config"
)

func newConfigCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change zcas settings",
	}
	cmd.AddCommand(
		newConfigListCmd(cfg, jsonOutput),
		newConfigGetCmd(cfg),
		newConfigSetCmd(),
	)
	return cmd
}

func newConfigListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every effective setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := effectiveSettings(cfg)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(settings)
			}
			for _, key := range config.AllowedKeys() {
				if err := writePlain("%s = %s\n", key, settings[key]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.IsAllowedKey(args[0]) {
				return unknownConfigKey(args[0])
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a setting to the project or global config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if !config.IsAllowedKey(key) {
				return unknownConfigKey(key)
			}
			if key == "codec" {
				// Stored as the canonical name so aliases never reach addresses.
				c, err := codec.Builtin().Lookup(value)
				if err != nil {
					return &blobstore.ConfigurationError{Option: key, Value: value, Err: err}
				}
				value = c.Name()
			}

			path, err := configTarget(global)
			if err != nil {
				return err
			}
			if err := config.SetKey(path, key, value); err != nil {
				return err
			}
			return writePlain("%s = %s (%s)\n", key, value, path)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to the global config (~/.zcas.toml)")
	return cmd
}

func effectiveSettings(cfg *config.Config) (map[string]string, error) {
	settings := make(map[string]string, len(config.AllowedKeys()))
	for _, key := range config.AllowedKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, nil
}

func configTarget(global bool) (string, error) {
	if global {
		return config.GlobalPath()
	}
	return config.ProjectPath()
}

func unknownConfigKey(key string) error {
	return fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(config.AllowedKeys(), ", "))
}
