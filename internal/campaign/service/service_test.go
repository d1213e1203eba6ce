package service

import (
	"testing"

	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	advertiserrepo "github.com/smallbiznis/podbudget/internal/advertiser/repository"
	agencyrepo "github.com/smallbiznis/podbudget/internal/agency/repository"
	"github.com/smallbiznis/podbudget/internal/authorization"
	"github.com/smallbiznis/podbudget/internal/campaign/domain"
	"github.com/smallbiznis/podbudget/internal/campaign/repository"
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
	advertisers := advertiserrepo.Provide()
	agencies := agencyrepo.Provide()
	svc := New(Params{
		DB:             f.DB,
		Log:            zaptest.NewLogger(t),
		GenID:          f.Node,
		Repo:           repository.Provide(),
		AdvertiserRepo: advertisers,
		Ownership: ownership.New(ownership.Params{
			OrgRepo:        orgrepo.NewRepository(f.DB),
			AgencyRepo:     agencies,
			AdvertiserRepo: advertisers,
		}),
	})
	return svc, f
}

func seedAdvertiser(t *testing.T, f *testkit.Fixture, name string, seller *advertiserdomain.Advertiser) advertiserdomain.Advertiser {
	t.Helper()
	adv := advertiserdomain.Advertiser{ID: f.Node.Generate(), Name: name, IsActive: true}
	if seller != nil {
		adv.SellerID = seller.SellerID
	}
	f.Seed(t, &adv)
	return adv
}

func probability(p int) *int { return &p }

func TestCampaignProbabilityWorkflow(t *testing.T) {
	svc, f := newTestService(t)
	adv := seedAdvertiser(t, f, "Acme", &advertiserdomain.Advertiser{SellerID: &f.Sales.UserID})
	ctx := f.Ctx(f.Sales)

	campaign, err := svc.Create(ctx, domain.CreateCampaignRequest{
		Name:         "Spring flight",
		AdvertiserID: adv.ID.String(),
		BudgetAmount: 40000,
		StartDate:    "2024-03-01",
		EndDate:      "2024-05-31",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProbabilityProspect, campaign.Probability)
	assert.Equal(t, domain.StatusOpen, campaign.Status)
	assert.Equal(t, int64(4000), campaign.WeightedAmount())

	pitched, err := svc.UpdateProbability(ctx, domain.UpdateProbabilityRequest{ID: campaign.ID.String(), Probability: 65})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, pitched.Status)

	_, err = svc.UpdateProbability(ctx, domain.UpdateProbabilityRequest{ID: campaign.ID.String(), Probability: 50})
	assert.ErrorIs(t, err, domain.ErrInvalidProbability)

	won, err := svc.UpdateProbability(ctx, domain.UpdateProbabilityRequest{ID: campaign.ID.String(), Probability: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWon, won.Status)

	_, err = svc.UpdateProbability(ctx, domain.UpdateProbabilityRequest{ID: campaign.ID.String(), Probability: 90})
	assert.ErrorIs(t, err, domain.ErrCampaignClosed)

	lost, err := svc.Create(ctx, domain.CreateCampaignRequest{
		Name:         "Dead on arrival",
		AdvertiserID: adv.ID.String(),
		Probability:  probability(0),
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLost, lost.Status)

	got, err := svc.GetByID(ctx, campaign.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWon, got.Status)
	assert.Equal(t, 2024, got.StartDate.Year())
}

func TestCreateCampaignValidation(t *testing.T) {
	svc, f := newTestService(t)
	adv := seedAdvertiser(t, f, "Acme", nil)
	ctx := f.Ctx(f.Master)

	base := domain.CreateCampaignRequest{
		Name:         "Flight",
		AdvertiserID: adv.ID.String(),
		StartDate:    "2024-03-01",
		EndDate:      "2024-03-31",
	}

	req := base
	req.EndDate = "2024-02-01"
	_, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	req = base
	req.StartDate = "March 1st"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidStartDate)

	req = base
	req.BudgetAmount = -1
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidBudgetAmount)

	req = base
	req.Probability = probability(42)
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidProbability)

	req = base
	req.AdvertiserID = "777"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrAdvertiserNotFound)
}

func TestSalesSeeOwnCampaigns(t *testing.T) {
	svc, f := newTestService(t)
	mine := seedAdvertiser(t, f, "Mine", &advertiserdomain.Advertiser{SellerID: &f.Sales.UserID})
	theirs := seedAdvertiser(t, f, "Theirs", &advertiserdomain.Advertiser{SellerID: &f.Sales2.UserID})

	for _, adv := range []advertiserdomain.Advertiser{mine, theirs} {
		_, err := svc.Create(f.Ctx(f.Master), domain.CreateCampaignRequest{
			Name:         adv.Name + " flight",
			AdvertiserID: adv.ID.String(),
			StartDate:    "2024-06-01",
			EndDate:      "2024-06-30",
		})
		require.NoError(t, err)
	}

	list, err := svc.List(f.Ctx(f.Sales), domain.ListCampaignRequest{})
	require.NoError(t, err)
	require.Len(t, list.Campaigns, 1)
	assert.Equal(t, mine.ID, list.Campaigns[0].AdvertiserID)

	_, err = svc.Create(f.Ctx(f.Sales), domain.CreateCampaignRequest{
		Name:         "Poach",
		AdvertiserID: theirs.ID.String(),
		StartDate:    "2024-06-01",
		EndDate:      "2024-06-30",
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	all, err := svc.List(f.Ctx(f.Master), domain.ListCampaignRequest{Status: "open"})
	require.NoError(t, err)
	assert.Len(t, all.Campaigns, 2)

	_, err = svc.List(f.Ctx(f.Master), domain.ListCampaignRequest{Status: "pending"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
