package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	auditdomain "github.com/smallbiznis/podbudget/internal/audit/domain"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"gorm.io/gorm"
)

//go:embed migrations
var embeddedMigrations embed.FS

const (
	publicDir = "migrations/public"
	tenantDir = "migrations/tenant"
)

// RunMigrations applies the shared tables in the connection's current schema.
func RunMigrations(db *sql.DB) error {
	return up(db, publicDir, &postgres.Config{})
}

// RunTenantMigrations applies the tenant tables. The handle must already
// resolve unqualified names to schema, and the version table lives there too.
func RunTenantMigrations(db *sql.DB, schema string) error {
	return up(db, tenantDir, &postgres.Config{SchemaName: schema})
}

func up(db *sql.DB, dir string, cfg *postgres.Config) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, cfg)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the caller's *sql.DB.

	return nil
}

// Models lists every table for dialects without schema support. There all
// tenants share one namespace, which is only suitable for local use and tests.
func Models() []any {
	return []any{
		&orgdomain.User{},
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&auditdomain.AuditLog{},
		&agencydomain.Agency{},
		&advertiserdomain.Advertiser{},
		&campaigndomain.Campaign{},
		&budgetdomain.HierarchicalBudget{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
