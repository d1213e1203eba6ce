// Package testkit seeds an in-memory tenant for service and handler tests.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/migration"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const Schema = "tenant_acme"

// Fixture is one organization with a master, an admin and two sales members.
type Fixture struct {
	DB    *gorm.DB
	Node  *snowflake.Node
	OrgID snowflake.ID

	Master orgcontext.Member
	Admin  orgcontext.Member
	Sales  orgcontext.Member
	Sales2 orgcontext.Member
}

func New(t *testing.T) *Fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &Fixture{DB: conn, Node: node, OrgID: node.Generate()}
	now := time.Now().UTC()
	require.NoError(t, conn.Create(&orgdomain.Organization{
		ID:         f.OrgID,
		Name:       "Acme",
		Slug:       "acme",
		SchemaName: Schema,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error)

	f.Master = f.AddMember(t, "Mara Master", orgcontext.RoleMaster)
	f.Admin = f.AddMember(t, "Ada Admin", orgcontext.RoleAdmin)
	f.Sales = f.AddMember(t, "Sam Seller", orgcontext.RoleSales)
	f.Sales2 = f.AddMember(t, "Tia Seller", orgcontext.RoleSales)
	return f
}

// AddMember creates an active user and adds it to the organization.
func (f *Fixture) AddMember(t *testing.T, name, role string) orgcontext.Member {
	t.Helper()
	now := time.Now().UTC()
	user := orgdomain.User{
		ID:        f.Node.Generate(),
		Name:      name,
		Email:     f.Node.Generate().String() + "@example.com",
		IsActive:  true,
		CreatedAt: now,
	}
	require.NoError(t, f.DB.Create(&user).Error)
	require.NoError(t, f.DB.Create(&orgdomain.OrganizationMember{
		ID:        f.Node.Generate(),
		OrgID:     f.OrgID,
		UserID:    user.ID,
		Role:      role,
		CreatedAt: now,
	}).Error)
	return orgcontext.Member{UserID: user.ID, Role: role}
}

// Ctx returns a request context acting as member inside the fixture tenant.
func (f *Fixture) Ctx(member orgcontext.Member) context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), int64(f.OrgID))
	ctx = orgcontext.WithMember(ctx, member)
	return tenant.WithSchema(ctx, Schema)
}

// Seed inserts rows directly, bypassing service validation.
func (f *Fixture) Seed(t *testing.T, rows ...any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, f.DB.Create(row).Error)
	}
}
