package rollup

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(v int64) *snowflake.ID {
	out := snowflake.ID(v)
	return &out
}

func row(entityType budgetdomain.EntityType, entityID int64, year, month int, budget, actual int64) budgetdomain.HierarchicalBudget {
	return budgetdomain.HierarchicalBudget{
		ID:           snowflake.ID(entityID*1000 + int64(year%100)*10 + int64(month)),
		EntityType:   entityType,
		EntityID:     snowflake.ID(entityID),
		Year:         year,
		Month:        month,
		BudgetAmount: budget,
		ActualAmount: actual,
	}
}

func baseInput() Input {
	return Input{
		Year:        2024,
		CompareYear: 2023,
		Sellers:     []Seller{{ID: 1, Name: "Sam Seller"}},
		Agencies:    []agencydomain.Agency{{ID: 10, Name: "Blue Agency", SellerID: id(1)}},
		Advertisers: []advertiserdomain.Advertiser{
			{ID: 100, Name: "Direct Co", SellerID: id(1), IsActive: true},
			{ID: 101, Name: "Agency Co", AgencyID: id(10), IsActive: true},
		},
	}
}

func TestComputeSellerRollup(t *testing.T) {
	in := baseInput()
	in.Budgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2024, 1, 50000, 45000),
		row(budgetdomain.EntityAdvertiser, 101, 2024, 1, 100000, 95000),
	}

	res := Compute(in)

	require.Len(t, res.Sellers, 1)
	seller := res.Sellers[0]
	assert.Equal(t, int64(150000), seller.BudgetAmount)
	assert.Equal(t, int64(140000), seller.ActualAmount)
	assert.Equal(t, int64(-10000), seller.Variance)
	require.Len(t, seller.DirectAdvertisers, 1)
	assert.Equal(t, int64(50000), seller.DirectAdvertisers[0].BudgetAmount)
	require.Len(t, seller.Agencies, 1)
	assert.Equal(t, int64(100000), seller.Agencies[0].BudgetAmount)
	assert.Equal(t, int64(-5000), seller.Agencies[0].Variance)
	assert.Equal(t, seller.Totals, res.GrandTotal)
	assert.Empty(t, res.Anomalies)
}

func TestComputeTargetsAreNotSummed(t *testing.T) {
	in := baseInput()
	in.Sellers = append(in.Sellers, Seller{ID: 2, Name: "Other Seller"})
	// The agency path wins over the advertiser's own seller.
	in.Advertisers[1].SellerID = id(2)
	in.Budgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2024, 3, 1000, 900),
		row(budgetdomain.EntityAdvertiser, 101, 2024, 3, 2000, 2500),
		row(budgetdomain.EntityAgency, 10, 2024, 3, 9999, 1),
		row(budgetdomain.EntitySeller, 1, 2024, 3, 50000, 10),
	}

	res := Compute(in)

	require.Len(t, res.Sellers, 2)
	other, sam := res.Sellers[0], res.Sellers[1]
	assert.Equal(t, "Other Seller", other.Name)
	assert.Zero(t, other.BudgetAmount)
	assert.Empty(t, other.DirectAdvertisers)
	assert.Nil(t, other.Target)

	assert.Equal(t, int64(3000), sam.BudgetAmount)
	assert.Equal(t, int64(3400), sam.ActualAmount)
	require.NotNil(t, sam.Target)
	assert.Equal(t, int64(50000), sam.Target.BudgetAmount)
	require.NotNil(t, sam.Agencies[0].Target)
	assert.Equal(t, int64(9999), sam.Agencies[0].Target.BudgetAmount)
	assert.Equal(t, int64(2000), sam.Agencies[0].BudgetAmount)
	assert.Equal(t, int64(3000), res.GrandTotal.BudgetAmount)
}

func TestComputeGrowth(t *testing.T) {
	in := baseInput()
	in.Budgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2024, 1, 1000, 1200),
		row(budgetdomain.EntityAdvertiser, 101, 2024, 1, 1000, 500),
	}
	in.PreviousBudgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2023, 1, 1000, 1000),
	}

	res := Compute(in)
	seller := res.Sellers[0]

	require.NotNil(t, seller.DirectAdvertisers[0].Growth)
	assert.InDelta(t, 0.2, *seller.DirectAdvertisers[0].Growth, 1e-9)
	assert.Nil(t, seller.Agencies[0].Advertisers[0].Growth)
	assert.Nil(t, seller.Agencies[0].Growth)
	require.NotNil(t, seller.Growth)
	assert.InDelta(t, 0.7, *seller.Growth, 1e-9)
	assert.Equal(t, int64(1000), seller.PreviousActual)
}

func TestGrowth(t *testing.T) {
	assert.Nil(t, Growth(100, 0))
	g := Growth(50, 100)
	require.NotNil(t, g)
	assert.InDelta(t, -0.5, *g, 1e-9)
}

func TestComputeWholeYearSumsMonths(t *testing.T) {
	in := baseInput()
	in.Budgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2024, 1, 100, 10),
		row(budgetdomain.EntityAdvertiser, 100, 2024, 2, 200, 20),
		row(budgetdomain.EntityAdvertiser, 100, 2024, 12, 300, 30),
	}

	res := Compute(in)

	assert.Equal(t, int64(600), res.GrandTotal.BudgetAmount)
	assert.Equal(t, int64(60), res.GrandTotal.ActualAmount)
}

func TestComputeAnomaliesContributeZero(t *testing.T) {
	in := baseInput()
	in.Agencies = append(in.Agencies,
		agencydomain.Agency{ID: 11, Name: "Ghost Seller Agency", SellerID: id(99)},
		agencydomain.Agency{ID: 12, Name: "Orphan Agency"},
	)
	in.Advertisers = append(in.Advertisers,
		advertiserdomain.Advertiser{ID: 102, Name: "Lost Agency Co", AgencyID: id(77), SellerID: id(1), IsActive: true},
		advertiserdomain.Advertiser{ID: 103, Name: "Lost Seller Co", SellerID: id(98), IsActive: true},
		advertiserdomain.Advertiser{ID: 104, Name: "Nobody Co", IsActive: true},
		advertiserdomain.Advertiser{ID: 105, Name: "Under Ghost", AgencyID: id(11), IsActive: true},
		advertiserdomain.Advertiser{ID: 106, Name: "Dormant Co", SellerID: id(1), IsActive: false},
	)
	in.Budgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2024, 1, 50000, 45000),
		row(budgetdomain.EntityAdvertiser, 101, 2024, 1, 100000, 95000),
		row(budgetdomain.EntityAdvertiser, 102, 2024, 1, 7, 7),
		row(budgetdomain.EntityAdvertiser, 103, 2024, 1, 7, 7),
		row(budgetdomain.EntityAdvertiser, 104, 2024, 1, 7, 7),
		row(budgetdomain.EntityAdvertiser, 105, 2024, 1, 7, 7),
		row(budgetdomain.EntityAdvertiser, 106, 2024, 1, 7, 7),
		row(budgetdomain.EntityAdvertiser, 555, 2024, 1, 7, 7),
	}

	res := Compute(in)

	assert.Equal(t, int64(150000), res.GrandTotal.BudgetAmount)
	assert.Equal(t, int64(140000), res.GrandTotal.ActualAmount)

	counts := res.AnomalyCounts()
	assert.Equal(t, 1, counts[AnomalyDanglingAgency])
	assert.Equal(t, 2, counts[AnomalyDanglingSeller])
	assert.Equal(t, 1, counts[AnomalyDanglingEntity])
	assert.Equal(t, 2, counts[AnomalyUnassigned])

	kinds := map[snowflake.ID]AnomalyKind{}
	for _, a := range res.Anomalies {
		kinds[a.EntityID] = a.Kind
	}
	assert.Equal(t, AnomalyDanglingAgency, kinds[102])
	assert.Equal(t, AnomalyDanglingSeller, kinds[103])
	assert.Equal(t, AnomalyUnassigned, kinds[104])
	assert.Equal(t, AnomalyDanglingSeller, kinds[11])
	assert.Equal(t, AnomalyUnassigned, kinds[12])
	assert.Equal(t, AnomalyDanglingEntity, kinds[555])
	assert.NotContains(t, kinds, snowflake.ID(106))
}

func TestComputeSellerFilter(t *testing.T) {
	in := baseInput()
	in.Sellers = append(in.Sellers, Seller{ID: 2, Name: "Other Seller"})
	in.Advertisers = append(in.Advertisers,
		advertiserdomain.Advertiser{ID: 200, Name: "Other Direct", SellerID: id(2), IsActive: true},
		advertiserdomain.Advertiser{ID: 201, Name: "Broken", AgencyID: id(404), SellerID: id(2), IsActive: true},
	)
	in.Budgets = []budgetdomain.HierarchicalBudget{
		row(budgetdomain.EntityAdvertiser, 100, 2024, 1, 10, 10),
		row(budgetdomain.EntityAdvertiser, 200, 2024, 1, 20, 20),
	}
	in.SellerID = id(2)

	res := Compute(in)

	require.Len(t, res.Sellers, 1)
	assert.Equal(t, snowflake.ID(2), res.Sellers[0].ID)
	assert.Equal(t, int64(20), res.GrandTotal.BudgetAmount)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, snowflake.ID(201), res.Anomalies[0].EntityID)
}

func TestComputeWeightedPipeline(t *testing.T) {
	month := 4
	in := baseInput()
	in.Month = &month
	in.Campaigns = []campaigndomain.Campaign{
		{ID: 1, AdvertiserID: 100, BudgetAmount: 10000, Probability: 35, Status: campaigndomain.StatusOpen, StartDate: date(2024, 4, 10)},
		{ID: 2, AdvertiserID: 101, BudgetAmount: 20000, Probability: 90, Status: campaigndomain.StatusOpen, StartDate: date(2024, 4, 1)},
		{ID: 3, AdvertiserID: 101, BudgetAmount: 50000, Probability: 100, Status: campaigndomain.StatusWon, StartDate: date(2024, 4, 1)},
		{ID: 4, AdvertiserID: 100, BudgetAmount: 50000, Probability: 65, Status: campaigndomain.StatusOpen, StartDate: date(2024, 5, 1)},
		{ID: 5, AdvertiserID: 999, BudgetAmount: 50000, Probability: 65, Status: campaigndomain.StatusOpen, StartDate: date(2024, 4, 2)},
	}

	res := Compute(in)
	seller := res.Sellers[0]

	assert.Equal(t, int64(3500), seller.DirectAdvertisers[0].WeightedPipeline)
	assert.Equal(t, int64(18000), seller.Agencies[0].WeightedPipeline)
	assert.Equal(t, int64(21500), res.GrandTotal.WeightedPipeline)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, "campaign", res.Anomalies[0].EntityType)
}

func TestComputeEmptyEntitiesStillAppear(t *testing.T) {
	res := Compute(baseInput())

	require.Len(t, res.Sellers, 1)
	assert.Len(t, res.Sellers[0].DirectAdvertisers, 1)
	assert.Len(t, res.Sellers[0].Agencies, 1)
	assert.Len(t, res.Sellers[0].Agencies[0].Advertisers, 1)
	assert.Zero(t, res.GrandTotal.BudgetAmount)
	assert.Nil(t, res.GrandTotal.Growth)
}

// With consistent data every active advertiser budget is counted exactly once.
func TestComputeGrandTotalMatchesLeafSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		in := Input{Year: 2024, CompareYear: 2023}
		for s := int64(1); s <= 3; s++ {
			in.Sellers = append(in.Sellers, Seller{ID: snowflake.ID(s), Name: "seller"})
		}
		for a := int64(10); a < 16; a++ {
			in.Agencies = append(in.Agencies, agencydomain.Agency{ID: snowflake.ID(a), Name: "agency", SellerID: id(1 + rng.Int63n(3))})
		}

		var want int64
		for adv := int64(100); adv < 140; adv++ {
			a := advertiserdomain.Advertiser{ID: snowflake.ID(adv), Name: "advertiser", IsActive: rng.Intn(5) != 0}
			if rng.Intn(2) == 0 {
				a.AgencyID = id(10 + rng.Int63n(6))
				if rng.Intn(2) == 0 {
					a.SellerID = id(1 + rng.Int63n(3))
				}
			} else {
				a.SellerID = id(1 + rng.Int63n(3))
			}
			in.Advertisers = append(in.Advertisers, a)

			for m := 1; m <= 12; m++ {
				if rng.Intn(3) != 0 {
					continue
				}
				amount := rng.Int63n(100000)
				in.Budgets = append(in.Budgets, row(budgetdomain.EntityAdvertiser, adv, 2024, m, amount, amount/2))
				if a.IsActive {
					want += amount
				}
			}
		}
		for _, agency := range in.Agencies {
			in.Budgets = append(in.Budgets, row(budgetdomain.EntityAgency, int64(agency.ID), 2024, 1, rng.Int63n(100000), 0))
		}

		res := Compute(in)

		var sellerSum int64
		for _, s := range res.Sellers {
			sellerSum += s.BudgetAmount
		}
		require.Empty(t, res.Anomalies)
		require.Equal(t, want, res.GrandTotal.BudgetAmount, "round %d", round)
		require.Equal(t, want, sellerSum, "round %d", round)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
