package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/advertiser"
	"github.com/smallbiznis/podbudget/internal/agency"
	"github.com/smallbiznis/podbudget/internal/audit"
	"github.com/smallbiznis/podbudget/internal/budget"
	"github.com/smallbiznis/podbudget/internal/campaign"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/smallbiznis/podbudget/internal/migration"
	"github.com/smallbiznis/podbudget/internal/observability"
	"github.com/smallbiznis/podbudget/internal/organization"
	"github.com/smallbiznis/podbudget/internal/ownership"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	nodeID       int64
	startTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "podbudget",
	Short: "Podcast ad sales budget service",
	Long: `podbudget serves the hierarchical budget API and runs the operational
jobs around it: schema migrations, tenant provisioning and integrity audits.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node", 1, "Snowflake node id for generated ids")
	rootCmd.PersistentFlags().DurationVar(&startTimeout, "start-timeout", 30*time.Second, "Dependency startup timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}

// infraModules wires config, telemetry and the database.
func infraModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
	)
}

// domainModules wires the tenant-scoped services shared by the server and the jobs.
func domainModules() fx.Option {
	return fx.Options(
		organization.Module,
		migration.Module,
		ownership.Module,
		agency.Module,
		advertiser.Module,
		campaign.Module,
		budget.Module,
		audit.Module,
	)
}

// runOnce builds a short-lived fx app whose invoke fn runs the job, then
// cycles the lifecycle so hooks such as the database close still run.
func runOnce(ctx context.Context, fn any, opts ...fx.Option) error {
	opts = append(opts, fx.NopLogger, fx.Invoke(fn))
	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
	defer stopCancel()
	return app.Stop(stopCtx)
}
