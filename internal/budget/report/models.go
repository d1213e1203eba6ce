package report

import (
	"github.com/bwmarrin/snowflake"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/budget/rollup"
)

type HierarchicalRequest struct {
	Year       int
	Month      *int
	SellerID   string
	EntityType string
}

// BudgetView is a stored budget row with the name of the entity it belongs to.
type BudgetView struct {
	budgetdomain.HierarchicalBudget
	EntityName string        `json:"entityName"`
	SellerID   *snowflake.ID `json:"sellerId"`
}

type HierarchicalResponse struct {
	Year        int                   `json:"year"`
	Month       *int                  `json:"month"`
	CompareYear int                   `json:"compareYear"`
	Budgets     []BudgetView          `json:"budgets"`
	Rollups     []rollup.SellerRollup `json:"rollups"`
	GrandTotal  rollup.Totals         `json:"grandTotal"`
	Anomalies   []rollup.Anomaly      `json:"anomalies"`
}

type GroupBy string

const (
	GroupBySeller     GroupBy = "seller"
	GroupByAgency     GroupBy = "agency"
	GroupByAdvertiser GroupBy = "advertiser"
)

type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusAtRisk   Status = "at_risk"
	StatusBehind   Status = "behind"
	StatusNoBudget Status = "no_budget"
)

type ComparisonRequest struct {
	Year        int
	CompareYear *int
	Month       *int
	SellerID    string
	GroupBy     string
}

type ComparisonRow struct {
	ID                  snowflake.ID  `json:"id"`
	Name                string        `json:"name"`
	EntityType          string        `json:"entityType"`
	SellerID            *snowflake.ID `json:"sellerId,omitempty"`
	SellerName          string        `json:"sellerName,omitempty"`
	BudgetAmount        int64         `json:"budgetAmount"`
	ActualAmount        int64         `json:"actualAmount"`
	CompareBudgetAmount int64         `json:"compareBudgetAmount"`
	CompareActualAmount int64         `json:"compareActualAmount"`
	Variance            int64         `json:"variance"`
	VariancePercent     *float64      `json:"variancePercent"`
	Growth              *float64      `json:"growth"`
	WeightedPipeline    int64         `json:"weightedPipeline"`
	Status              Status        `json:"status"`
}

type ComparisonSummary struct {
	BudgetAmount        int64          `json:"budgetAmount"`
	ActualAmount        int64          `json:"actualAmount"`
	CompareBudgetAmount int64          `json:"compareBudgetAmount"`
	CompareActualAmount int64          `json:"compareActualAmount"`
	Variance            int64          `json:"variance"`
	VariancePercent     *float64       `json:"variancePercent"`
	Growth              *float64       `json:"growth"`
	Status              Status         `json:"status"`
	StatusCounts        map[Status]int `json:"statusCounts"`
}

type ComparisonResponse struct {
	Year        int               `json:"year"`
	CompareYear int               `json:"compareYear"`
	Month       *int              `json:"month"`
	GroupBy     GroupBy           `json:"groupBy"`
	Rows        []ComparisonRow   `json:"rows"`
	Summary     ComparisonSummary `json:"summary"`
	Anomalies   []rollup.Anomaly  `json:"anomalies"`
}
