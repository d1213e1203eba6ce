package report

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	advertiserrepo "github.com/smallbiznis/podbudget/internal/advertiser/repository"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	agencyrepo "github.com/smallbiznis/podbudget/internal/agency/repository"
	"github.com/smallbiznis/podbudget/internal/authorization"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	budgetrepo "github.com/smallbiznis/podbudget/internal/budget/repository"
	"github.com/smallbiznis/podbudget/internal/budget/rollup"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
	campaignrepo "github.com/smallbiznis/podbudget/internal/campaign/repository"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/smallbiznis/podbudget/internal/observability/metrics"
	orgrepo "github.com/smallbiznis/podbudget/internal/organization/repository"
	"github.com/smallbiznis/podbudget/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type reportFixture struct {
	*testkit.Fixture
	svc    *Service
	agency agencydomain.Agency
	direct advertiserdomain.Advertiser
	viaAg  advertiserdomain.Advertiser
	other  advertiserdomain.Advertiser
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	f := testkit.New(t)
	log := zaptest.NewLogger(t)

	loader := rollup.NewLoader(rollup.LoaderParams{
		DB:             f.DB,
		Log:            log,
		OrgRepo:        orgrepo.NewRepository(f.DB),
		AgencyRepo:     agencyrepo.Provide(),
		AdvertiserRepo: advertiserrepo.Provide(),
		BudgetRepo:     budgetrepo.Provide(),
		CampaignRepo:   campaignrepo.Provide(),
		Metrics:        metrics.NewNoop(),
	})
	rf := &reportFixture{
		Fixture: f,
		svc: New(Params{
			Log:          log,
			Loader:       loader,
			BudgetConfig: config.NewStaticBudgetConfigHolder(config.DefaultBudgetConfig()),
		}),
	}

	rf.agency = agencydomain.Agency{ID: f.Node.Generate(), Name: "Blue Agency", SellerID: &f.Sales.UserID}
	rf.direct = advertiserdomain.Advertiser{ID: f.Node.Generate(), Name: "Direct Co", SellerID: &f.Sales.UserID, IsActive: true}
	rf.viaAg = advertiserdomain.Advertiser{ID: f.Node.Generate(), Name: "Agency Co", AgencyID: &rf.agency.ID, IsActive: true}
	rf.other = advertiserdomain.Advertiser{ID: f.Node.Generate(), Name: "Other Co", SellerID: &f.Sales2.UserID, IsActive: true}
	f.Seed(t, &rf.agency, &rf.direct, &rf.viaAg, &rf.other)

	f.Seed(t,
		rf.budget(budgetdomain.EntityAdvertiser, rf.direct.ID, 2024, 1, 50000, 45000),
		rf.budget(budgetdomain.EntityAdvertiser, rf.viaAg.ID, 2024, 1, 100000, 95000),
		rf.budget(budgetdomain.EntityAdvertiser, rf.other.ID, 2024, 1, 10000, 5000),
		rf.budget(budgetdomain.EntityAgency, rf.agency.ID, 2024, 1, 120000, 0),
		rf.budget(budgetdomain.EntityAdvertiser, rf.direct.ID, 2023, 1, 40000, 40000),
		rf.budget(budgetdomain.EntityAdvertiser, rf.viaAg.ID, 2023, 1, 80000, 100000),
		rf.budget(budgetdomain.EntityAdvertiser, 31337, 2024, 1, 1, 1),
		&campaigndomain.Campaign{
			ID:           f.Node.Generate(),
			Name:         "Q1 flight",
			AdvertiserID: rf.viaAg.ID,
			BudgetAmount: 20000,
			Probability:  65,
			Status:       campaigndomain.StatusOpen,
			StartDate:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			EndDate:      time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
	)
	return rf
}

func (rf *reportFixture) budget(entityType budgetdomain.EntityType, id snowflake.ID, year, month int, budget, actual int64) *budgetdomain.HierarchicalBudget {
	return &budgetdomain.HierarchicalBudget{
		ID:           rf.Node.Generate(),
		EntityType:   entityType,
		EntityID:     id,
		Year:         year,
		Month:        month,
		BudgetAmount: budget,
		ActualAmount: actual,
	}
}

func TestHierarchicalForSeller(t *testing.T) {
	rf := newReportFixture(t)

	resp, err := rf.svc.Hierarchical(rf.Ctx(rf.Sales), HierarchicalRequest{Year: 2024})
	require.NoError(t, err)

	require.Len(t, resp.Rollups, 1)
	seller := resp.Rollups[0]
	assert.Equal(t, rf.Sales.UserID, seller.ID)
	assert.Equal(t, int64(150000), seller.BudgetAmount)
	assert.Equal(t, int64(140000), seller.ActualAmount)
	assert.Equal(t, int64(-10000), seller.Variance)
	assert.Equal(t, int64(13000), seller.WeightedPipeline)
	require.NotNil(t, seller.Growth)
	assert.InDelta(t, 0.0, *seller.Growth, 1e-9)
	assert.Equal(t, seller.Totals, resp.GrandTotal)
	assert.Equal(t, 2023, resp.CompareYear)

	names := make([]string, 0, len(resp.Budgets))
	for _, b := range resp.Budgets {
		names = append(names, b.EntityName)
	}
	assert.Equal(t, []string{"Agency Co", "Direct Co", "Blue Agency"}, names)
	assert.Empty(t, resp.Anomalies)

	_, err = rf.svc.Hierarchical(rf.Ctx(rf.Sales), HierarchicalRequest{Year: 2024, SellerID: rf.Sales2.UserID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestHierarchicalForManager(t *testing.T) {
	rf := newReportFixture(t)
	month := 1

	resp, err := rf.svc.Hierarchical(rf.Ctx(rf.Master), HierarchicalRequest{Year: 2024, Month: &month, EntityType: "agency"})
	require.NoError(t, err)

	assert.Len(t, resp.Rollups, 4)
	assert.Equal(t, int64(160000), resp.GrandTotal.BudgetAmount)
	require.Len(t, resp.Budgets, 1)
	assert.Equal(t, "Blue Agency", resp.Budgets[0].EntityName)
	require.Len(t, resp.Anomalies, 1)
	assert.Equal(t, rollup.AnomalyDanglingEntity, resp.Anomalies[0].Kind)

	bad := 13
	_, err = rf.svc.Hierarchical(rf.Ctx(rf.Master), HierarchicalRequest{Year: 2024, Month: &bad})
	assert.ErrorIs(t, err, budgetdomain.ErrInvalidMonth)

	_, err = rf.svc.Hierarchical(rf.Ctx(rf.Master), HierarchicalRequest{Year: 2024, EntityType: "campaign"})
	assert.ErrorIs(t, err, budgetdomain.ErrInvalidEntityType)
}

func TestComparisonByAdvertiser(t *testing.T) {
	rf := newReportFixture(t)

	resp, err := rf.svc.Comparison(rf.Ctx(rf.Admin), ComparisonRequest{
		Year:     2024,
		GroupBy:  "advertiser",
		SellerID: rf.Sales.UserID.String(),
	})
	require.NoError(t, err)

	sellerID := rf.Sales.UserID
	growthDirect := 0.125
	growthAgency := -0.05
	varDirect := -10.0
	varAgency := -5.0
	want := []ComparisonRow{
		{
			ID: rf.viaAg.ID, Name: "Agency Co", EntityType: "advertiser", SellerID: &sellerID, SellerName: "Sam Seller",
			BudgetAmount: 100000, ActualAmount: 95000, CompareBudgetAmount: 80000, CompareActualAmount: 100000,
			Variance: -5000, VariancePercent: &varAgency, Growth: &growthAgency, WeightedPipeline: 13000, Status: StatusOnTrack,
		},
		{
			ID: rf.direct.ID, Name: "Direct Co", EntityType: "advertiser", SellerID: &sellerID, SellerName: "Sam Seller",
			BudgetAmount: 50000, ActualAmount: 45000, CompareBudgetAmount: 40000, CompareActualAmount: 40000,
			Variance: -5000, VariancePercent: &varDirect, Growth: &growthDirect, Status: StatusAtRisk,
		},
	}
	if diff := cmp.Diff(want, resp.Rows, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, GroupByAdvertiser, resp.GroupBy)
	assert.Equal(t, 1, resp.Summary.StatusCounts[StatusOnTrack])
	assert.Equal(t, 1, resp.Summary.StatusCounts[StatusAtRisk])
	assert.Equal(t, int64(150000), resp.Summary.BudgetAmount)
	assert.Equal(t, int64(140000), resp.Summary.CompareActualAmount)
}

func TestComparisonDefaultsAndValidation(t *testing.T) {
	rf := newReportFixture(t)

	resp, err := rf.svc.Comparison(rf.Ctx(rf.Master), ComparisonRequest{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, GroupBySeller, resp.GroupBy)
	assert.Equal(t, 2023, resp.CompareYear)
	require.Len(t, resp.Rows, 4)
	assert.Equal(t, "Ada Admin", resp.Rows[0].Name)
	assert.Equal(t, StatusNoBudget, resp.Rows[0].Status)
	assert.Nil(t, resp.Rows[0].Growth)
	assert.Nil(t, resp.Rows[0].VariancePercent)
	assert.Equal(t, 2, resp.Summary.StatusCounts[StatusNoBudget])

	agencies, err := rf.svc.Comparison(rf.Ctx(rf.Master), ComparisonRequest{Year: 2024, GroupBy: "agency"})
	require.NoError(t, err)
	require.Len(t, agencies.Rows, 1)
	assert.Equal(t, "Blue Agency", agencies.Rows[0].Name)
	assert.Equal(t, int64(100000), agencies.Rows[0].BudgetAmount)

	same := 2024
	_, err = rf.svc.Comparison(rf.Ctx(rf.Master), ComparisonRequest{Year: 2024, CompareYear: &same})
	assert.ErrorIs(t, err, ErrInvalidCompareYear)

	_, err = rf.svc.Comparison(rf.Ctx(rf.Master), ComparisonRequest{Year: 2024, GroupBy: "campaign"})
	assert.ErrorIs(t, err, ErrInvalidGroupBy)

	_, err = rf.svc.Comparison(rf.Ctx(rf.Master), ComparisonRequest{Year: 1500})
	assert.ErrorIs(t, err, budgetdomain.ErrInvalidYear)

	_, err = rf.svc.Comparison(rf.Ctx(rf.Master), ComparisonRequest{Year: 2024, SellerID: "abc"})
	assert.ErrorIs(t, err, ErrInvalidSeller)
}

func TestClassify(t *testing.T) {
	cfg := config.DefaultBudgetConfig()
	assert.Equal(t, StatusNoBudget, Classify(0, 100, cfg))
	assert.Equal(t, StatusOnTrack, Classify(100, 95, cfg))
	assert.Equal(t, StatusOnTrack, Classify(100, 150, cfg))
	assert.Equal(t, StatusAtRisk, Classify(100, 80, cfg))
	assert.Equal(t, StatusBehind, Classify(100, 79, cfg))

	assert.Nil(t, VariancePercent(10, 0))
	p := VariancePercent(-25, 100)
	require.NotNil(t, p)
	assert.InDelta(t, -25.0, *p, 1e-9)
}
