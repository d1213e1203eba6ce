package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/organization/repository"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingProvisioner struct {
	schemas []string
}

func (p *recordingProvisioner) ProvisionTenant(_ context.Context, schema string) error {
	p.schemas = append(p.schemas, schema)
	return nil
}

func newTestService(t *testing.T) (domain.Service, *recordingProvisioner) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.User{}, &domain.Organization{}, &domain.OrganizationMember{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	prov := &recordingProvisioner{}
	svc := NewService(Params{
		DB:          conn,
		Log:         zaptest.NewLogger(t),
		GenID:       node,
		Repo:        repository.NewRepository(conn),
		Provisioner: prov,
	})
	return svc, prov
}

func TestCreateOrganizationProvisionsSchema(t *testing.T) {
	svc, prov := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, domain.CreateOrganizationRequest{Name: "Wave Audio Network"})
	require.NoError(t, err)
	assert.Equal(t, "wave-audio-network", org.Slug)
	assert.Equal(t, "tenant_wave_audio_network", org.SchemaName)
	assert.Equal(t, []string{"tenant_wave_audio_network"}, prov.schemas)

	_, err = svc.Create(ctx, domain.CreateOrganizationRequest{Name: "Wave Audio Network"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Create(ctx, domain.CreateOrganizationRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestMembershipAndSellers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, err := snowflake.ParseString(org.ID)
	require.NoError(t, err)

	alice, err := svc.EnsureUser(ctx, domain.EnsureUserRequest{Name: "Alice", Email: "Alice@Example.com"})
	require.NoError(t, err)
	again, err := svc.EnsureUser(ctx, domain.EnsureUserRequest{Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)

	bob, err := svc.EnsureUser(ctx, domain.EnsureUserRequest{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, org.ID, domain.AddMemberRequest{UserID: alice.ID, Role: "MASTER"}))
	require.NoError(t, svc.AddMember(ctx, org.ID, domain.AddMemberRequest{UserID: bob.ID, Role: "sales"}))
	assert.ErrorIs(t, svc.AddMember(ctx, org.ID, domain.AddMemberRequest{UserID: bob.ID, Role: "sales"}), domain.ErrMemberExists)
	assert.ErrorIs(t, svc.AddMember(ctx, org.ID, domain.AddMemberRequest{UserID: bob.ID, Role: "owner"}), domain.ErrInvalidRole)

	bobID, _ := snowflake.ParseString(bob.ID)
	member, err := svc.ResolveMember(ctx, orgID, bobID)
	require.NoError(t, err)
	assert.Equal(t, orgcontext.RoleSales, member.Role)
	assert.True(t, member.Restricted())

	_, err = svc.ResolveMember(ctx, orgID, 12345)
	assert.ErrorIs(t, err, domain.ErrNotMember)

	sellers, err := svc.ListSellers(orgcontext.WithOrgID(ctx, int64(orgID)))
	require.NoError(t, err)
	require.Len(t, sellers, 2)
	assert.Equal(t, "Alice", sellers[0].Name)
	assert.Equal(t, "Bob", sellers[1].Name)

	_, err = svc.ListSellers(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
