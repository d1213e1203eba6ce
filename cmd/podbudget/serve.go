package main

import (
	"github.com/smallbiznis/podbudget/internal/migration"
	"github.com/smallbiznis/podbudget/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []fx.Option{
			infraModules(),
			domainModules(),
			server.Module,
		}
		if migrateOnStart {
			opts = append(opts, migration.RunOnStart)
		}

		app := fx.New(opts...)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Migrate the public and tenant schemas before serving")
}
