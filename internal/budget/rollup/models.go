package rollup

import (
	"time"

	"github.com/bwmarrin/snowflake"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
)

// Seller is an organization member that can own accounts.
type Seller struct {
	ID   snowflake.ID
	Name string
}

// Input is everything a rollup needs, already read from one tenant scope.
// Budgets holds the requested period and PreviousBudgets the same period of
// the comparison year.
type Input struct {
	Year        int
	Month       *int
	CompareYear int
	SellerID    *snowflake.ID

	Sellers         []Seller
	Agencies        []agencydomain.Agency
	Advertisers     []advertiserdomain.Advertiser
	Budgets         []budgetdomain.HierarchicalBudget
	PreviousBudgets []budgetdomain.HierarchicalBudget
	Campaigns       []campaigndomain.Campaign
}

// Period returns the half-open date range [from, to) the input covers.
func (in Input) Period() (time.Time, time.Time) {
	if in.Month != nil {
		from := time.Date(in.Year, time.Month(*in.Month), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0)
	}
	from := time.Date(in.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

// Totals are the rolled up figures of one node.
type Totals struct {
	BudgetAmount     int64    `json:"budgetAmount"`
	ActualAmount     int64    `json:"actualAmount"`
	Variance         int64    `json:"variance"`
	PreviousBudget   int64    `json:"previousBudget"`
	PreviousActual   int64    `json:"previousActual"`
	Growth           *float64 `json:"growth"`
	WeightedPipeline int64    `json:"weightedPipeline"`
}

func (t *Totals) add(o Totals) {
	t.BudgetAmount += o.BudgetAmount
	t.ActualAmount += o.ActualAmount
	t.PreviousBudget += o.PreviousBudget
	t.PreviousActual += o.PreviousActual
	t.WeightedPipeline += o.WeightedPipeline
}

func (t *Totals) finish() {
	t.Variance = t.ActualAmount - t.BudgetAmount
	t.Growth = Growth(t.ActualAmount, t.PreviousActual)
}

// Target is the sum of budget rows recorded directly on an agency or seller.
// It is reported next to the rollup and never added to it.
type Target struct {
	BudgetAmount int64 `json:"budgetAmount"`
	ActualAmount int64 `json:"actualAmount"`
	Variance     int64 `json:"variance"`
}

type AdvertiserRollup struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
	Totals
}

type AgencyRollup struct {
	ID          snowflake.ID       `json:"id"`
	Name        string             `json:"name"`
	Target      *Target            `json:"target"`
	Advertisers []AdvertiserRollup `json:"advertisers"`
	Totals
}

type SellerRollup struct {
	ID                snowflake.ID       `json:"id"`
	Name              string             `json:"name"`
	Target            *Target            `json:"target"`
	DirectAdvertisers []AdvertiserRollup `json:"directAdvertisers"`
	Agencies          []AgencyRollup     `json:"agencies"`
	Totals
}

type AnomalyKind string

const (
	// AnomalyDanglingAgency: an advertiser points at an agency that does not exist.
	AnomalyDanglingAgency AnomalyKind = "dangling_agency"
	// AnomalyDanglingSeller: an advertiser or agency points at a seller who is not a member.
	AnomalyDanglingSeller AnomalyKind = "dangling_seller"
	// AnomalyDanglingEntity: a budget row or campaign references a missing entity.
	AnomalyDanglingEntity AnomalyKind = "dangling_entity"
	// AnomalyUnassigned: an active advertiser or an agency has no owner.
	AnomalyUnassigned AnomalyKind = "unassigned"
)

type Anomaly struct {
	Kind        AnomalyKind   `json:"kind"`
	EntityType  string        `json:"entityType"`
	EntityID    snowflake.ID  `json:"entityId"`
	ReferenceID *snowflake.ID `json:"referenceId,omitempty"`
	Message     string        `json:"message"`
	// SellerID is the seller the entity is assigned to, when one is known.
	SellerID *snowflake.ID `json:"-"`
}

type Result struct {
	Year        int            `json:"year"`
	Month       *int           `json:"month"`
	CompareYear int            `json:"compareYear"`
	Sellers     []SellerRollup `json:"sellers"`
	GrandTotal  Totals         `json:"grandTotal"`
	Anomalies   []Anomaly      `json:"anomalies"`
}

// AnomalyCounts groups anomalies by kind.
func (r Result) AnomalyCounts() map[AnomalyKind]int {
	counts := make(map[AnomalyKind]int)
	for _, a := range r.Anomalies {
		counts[a.Kind]++
	}
	return counts
}
