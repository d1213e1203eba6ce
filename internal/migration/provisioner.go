package migration

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/smallbiznis/podbudget/internal/config"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Config  config.Config
	Log     *zap.Logger
	OrgRepo orgdomain.Repository
}

// Provisioner creates and upgrades the public schema and every tenant schema.
type Provisioner struct {
	db      *gorm.DB
	cfg     config.Config
	log     *zap.Logger
	orgRepo orgdomain.Repository
}

func NewProvisioner(p Params) *Provisioner {
	return &Provisioner{
		db:      p.DB,
		cfg:     p.Config,
		log:     p.Log.Named("migration.provisioner"),
		orgRepo: p.OrgRepo,
	}
}

func (p *Provisioner) postgres() bool {
	return p.db.Dialector.Name() == "postgres"
}

// MigratePublic applies the shared migrations.
func (p *Provisioner) MigratePublic(ctx context.Context) error {
	if !p.postgres() {
		return AutoMigrate(p.db.WithContext(ctx))
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// ProvisionTenant creates the schema if needed and brings it to the latest version.
func (p *Provisioner) ProvisionTenant(ctx context.Context, schema string) error {
	if !tenant.ValidSchema(schema) {
		return tenant.ErrInvalidSchema
	}
	if !p.postgres() {
		p.log.Debug("schema isolation unavailable, tenant tables are shared", zap.String("schema", schema))
		return AutoMigrate(p.db.WithContext(ctx))
	}

	if err := tenant.CreateSchema(ctx, p.db, schema); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	// A dedicated handle keeps the search_path out of the shared pool.
	conn, err := sql.Open("pgx", db.DSN(p.cfg)+" search_path="+schema)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	if err := RunTenantMigrations(conn, schema); err != nil {
		return fmt.Errorf("migrate schema %s: %w", schema, err)
	}
	p.log.Info("tenant schema migrated", zap.String("schema", schema))
	return nil
}

// MigrateAll applies the shared migrations and then every tenant's.
func (p *Provisioner) MigrateAll(ctx context.Context) error {
	if err := p.MigratePublic(ctx); err != nil {
		return err
	}
	orgs, err := p.orgRepo.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.ProvisionTenant(ctx, org.SchemaName); err != nil {
			return err
		}
	}
	p.log.Info("migrations applied", zap.Int("tenants", len(orgs)))
	return nil
}
