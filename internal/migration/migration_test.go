package migration

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/config"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/organization/repository"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	for _, dir := range []string{publicDir, tenantDir} {
		entries, err := fs.ReadDir(embeddedMigrations, dir)
		require.NoError(t, err)
		require.NotEmpty(t, entries, dir)

		ups, downs := 0, 0
		for _, entry := range entries {
			switch {
			case strings.HasSuffix(entry.Name(), ".up.sql"):
				ups++
			case strings.HasSuffix(entry.Name(), ".down.sql"):
				downs++
			}
		}
		assert.Equal(t, ups, downs, dir)
	}
}

func TestMigrateAllOnSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	repo := repository.NewRepository(conn)
	p := NewProvisioner(Params{
		DB:      conn,
		Config:  config.Config{DBType: "sqlite"},
		Log:     zaptest.NewLogger(t),
		OrgRepo: repo,
	})

	ctx := context.Background()
	require.NoError(t, p.MigratePublic(ctx))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, repo.CreateOrganization(ctx, orgdomain.Organization{
		ID:         node.Generate(),
		Name:       "Acme",
		Slug:       "acme",
		SchemaName: "tenant_acme",
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	require.NoError(t, p.MigrateAll(ctx))
	for _, model := range Models() {
		assert.True(t, conn.Migrator().HasTable(model))
	}

	assert.ErrorIs(t, p.ProvisionTenant(ctx, "Robert'); DROP TABLE users;--"), tenant.ErrInvalidSchema)
}
