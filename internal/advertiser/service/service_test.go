package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/advertiser/domain"
	"github.com/smallbiznis/podbudget/internal/advertiser/repository"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	agencyrepo "github.com/smallbiznis/podbudget/internal/agency/repository"
	"github.com/smallbiznis/podbudget/internal/authorization"
	orgrepo "github.com/smallbiznis/podbudget/internal/organization/repository"
	"github.com/smallbiznis/podbudget/internal/ownership"
	"github.com/smallbiznis/podbudget/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) (domain.Service, *testkit.Fixture) {
	t.Helper()
	f := testkit.New(t)
	repo := repository.Provide()
	agencies := agencyrepo.Provide()
	svc := New(Params{
		DB:         f.DB,
		Log:        zaptest.NewLogger(t),
		GenID:      f.Node,
		Repo:       repo,
		AgencyRepo: agencies,
		Ownership: ownership.New(ownership.Params{
			OrgRepo:        orgrepo.NewRepository(f.DB),
			AgencyRepo:     agencies,
			AdvertiserRepo: repo,
		}),
	})
	return svc, f
}

func seedAgency(t *testing.T, f *testkit.Fixture, name string, seller snowflake.ID) agencydomain.Agency {
	t.Helper()
	agency := agencydomain.Agency{ID: f.Node.Generate(), Name: name, SellerID: &seller}
	f.Seed(t, &agency)
	return agency
}

func TestCreateAdvertiserValidatesReferences(t *testing.T) {
	svc, f := newTestService(t)
	agency := seedAgency(t, f, "Blue", f.Sales.UserID)

	adv, err := svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{
		Name:     "Acme Coffee",
		AgencyID: agency.ID.String(),
	})
	require.NoError(t, err)
	assert.True(t, adv.IsActive)
	require.NotNil(t, adv.AgencyID)
	assert.Nil(t, adv.SellerID)

	_, err = svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{Name: "X", AgencyID: "424242"})
	assert.ErrorIs(t, err, domain.ErrAgencyNotFound)

	_, err = svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{Name: "X", SellerID: "424242"})
	assert.ErrorIs(t, err, domain.ErrSellerNotFound)

	_, err = svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{Name: "X", SellerID: "not-a-number"})
	assert.ErrorIs(t, err, domain.ErrInvalidSeller)

	inactive := false
	unassigned, err := svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{Name: "Floating", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, unassigned.IsActive)
}

func TestSalesAdvertiserOwnership(t *testing.T) {
	svc, f := newTestService(t)
	own := seedAgency(t, f, "Own Agency", f.Sales.UserID)
	foreign := seedAgency(t, f, "Foreign Agency", f.Sales2.UserID)

	direct, err := svc.Create(f.Ctx(f.Sales), domain.CreateAdvertiserRequest{Name: "Direct"})
	require.NoError(t, err)
	require.NotNil(t, direct.SellerID)
	assert.Equal(t, f.Sales.UserID, *direct.SellerID)

	viaAgency, err := svc.Create(f.Ctx(f.Sales), domain.CreateAdvertiserRequest{Name: "Via Agency", AgencyID: own.ID.String()})
	require.NoError(t, err)

	_, err = svc.Create(f.Ctx(f.Sales), domain.CreateAdvertiserRequest{Name: "Nope", AgencyID: foreign.ID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Create(f.Ctx(f.Sales), domain.CreateAdvertiserRequest{Name: "Nope", SellerID: f.Sales2.UserID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Create(f.Ctx(f.Sales), domain.CreateAdvertiserRequest{
		Name:     "Crossed",
		AgencyID: foreign.ID.String(),
		SellerID: f.Sales.UserID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSeller)

	_, err = svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{
		Name:     "Crossed",
		AgencyID: foreign.ID.String(),
		SellerID: f.Sales.UserID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSeller)

	matching, err := svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{
		Name:     "Matching",
		AgencyID: foreign.ID.String(),
		SellerID: f.Sales2.UserID.String(),
	})
	require.NoError(t, err)
	_, err = svc.GetByID(f.Ctx(f.Sales), matching.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	legacy := domain.Advertiser{ID: f.Node.Generate(), Name: "Legacy", AgencyID: &foreign.ID, SellerID: &f.Sales.UserID, IsActive: true}
	f.Seed(t, &legacy)
	_, err = svc.GetByID(f.Ctx(f.Sales), legacy.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	theirs, err := svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{Name: "Theirs", SellerID: f.Sales2.UserID.String()})
	require.NoError(t, err)

	_, err = svc.GetByID(f.Ctx(f.Sales), theirs.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	list, err := svc.List(f.Ctx(f.Sales), domain.ListAdvertiserRequest{})
	require.NoError(t, err)
	ids := []snowflake.ID{}
	for _, a := range list.Advertisers {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []snowflake.ID{direct.ID, viaAgency.ID}, ids)

	all, err := svc.List(f.Ctx(f.Master), domain.ListAdvertiserRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Advertisers, 5)
}

func TestUpdateAdvertiser(t *testing.T) {
	svc, f := newTestService(t)
	agency := seedAgency(t, f, "Blue", f.Sales.UserID)

	adv, err := svc.Create(f.Ctx(f.Master), domain.CreateAdvertiserRequest{Name: "Acme", SellerID: f.Sales.UserID.String()})
	require.NoError(t, err)

	agencyID := agency.ID.String()
	clear := ""
	inactive := false
	updated, err := svc.Update(f.Ctx(f.Sales), domain.UpdateAdvertiserRequest{
		ID:       adv.ID.String(),
		AgencyID: &agencyID,
		SellerID: &clear,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AgencyID)
	assert.Equal(t, agency.ID, *updated.AgencyID)
	assert.Nil(t, updated.SellerID)
	assert.False(t, updated.IsActive)

	active := true
	filtered, err := svc.List(f.Ctx(f.Master), domain.ListAdvertiserRequest{Active: &active})
	require.NoError(t, err)
	assert.Empty(t, filtered.Advertisers)

	_, err = svc.Update(f.Ctx(f.Sales2), domain.UpdateAdvertiserRequest{ID: adv.ID.String(), IsActive: &active})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Update(f.Ctx(f.Master), domain.UpdateAdvertiserRequest{ID: "999", IsActive: &active})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
