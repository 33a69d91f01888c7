package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zcas/internal/config"
	"zcas/internal/registry"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect registry schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect {
				plan, err := registry.Inspect(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writeMigrationPlan(plan)
			}

			return withRegistry(cfg, func(reg *registry.Registry) error {
				plan, err := reg.MigrationPlan()
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writePlain("Migrations applied; schema version %d.\n", plan.CurrentVersion)
			})
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status without applying")

	return cmd
}

func writeMigrationPlan(plan *registry.MigrationStatus) error {
	if err := writePlain("Current version: %d\nAvailable version: %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	if err := writePlain("Pending migrations: %d\n", len(plan.Pending)); err != nil {
		return err
	}
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
