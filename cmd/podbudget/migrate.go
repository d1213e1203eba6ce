package main

import (
	"github.com/smallbiznis/podbudget/internal/migration"
	"github.com/smallbiznis/podbudget/internal/organization"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply public and tenant schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return runOnce(ctx, func(p *migration.Provisioner, log *zap.Logger) error {
			if err := p.MigrateAll(ctx); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
			infraModules(),
			organization.Module,
			migration.Module,
		)
	},
}
