package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EntityType string

const (
	EntityAdvertiser EntityType = "advertiser"
	EntityAgency     EntityType = "agency"
	EntitySeller     EntityType = "seller"
)

func (t EntityType) String() string { return string(t) }

func (t EntityType) Valid() bool {
	switch t {
	case EntityAdvertiser, EntityAgency, EntitySeller:
		return true
	default:
		return false
	}
}

// HierarchicalBudget is one budget/actual figure for an entity and month.
// Advertiser rows are the leaves of the rollup; agency and seller rows are
// targets reported next to it.
type HierarchicalBudget struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	EntityType   EntityType    `gorm:"type:text;not null;uniqueIndex:ux_hierarchical_budgets_key,priority:1" json:"entityType"`
	EntityID     snowflake.ID  `gorm:"not null;uniqueIndex:ux_hierarchical_budgets_key,priority:2" json:"entityId"`
	Year         int           `gorm:"not null;uniqueIndex:ux_hierarchical_budgets_key,priority:3;index:idx_hierarchical_budgets_period,priority:1" json:"year"`
	Month        int           `gorm:"not null;uniqueIndex:ux_hierarchical_budgets_key,priority:4;index:idx_hierarchical_budgets_period,priority:2" json:"month"`
	BudgetAmount int64         `gorm:"not null;default:0" json:"budgetAmount"`
	ActualAmount int64         `gorm:"not null;default:0" json:"actualAmount"`
	Notes        string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy    *snowflake.ID `json:"createdBy,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (HierarchicalBudget) TableName() string { return "hierarchical_budgets" }

// Key identifies the unique slot a budget row occupies.
type Key struct {
	EntityType EntityType
	EntityID   snowflake.ID
	Year       int
	Month      int
}

func (b HierarchicalBudget) Key() Key {
	return Key{EntityType: b.EntityType, EntityID: b.EntityID, Year: b.Year, Month: b.Month}
}
