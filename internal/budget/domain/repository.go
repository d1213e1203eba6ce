package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter selects rows for one year. A nil Month selects every month.
type ListFilter struct {
	Year       int
	Month      *int
	EntityType EntityType
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, budget *HierarchicalBudget) error
	Update(ctx context.Context, db *gorm.DB, budget *HierarchicalBudget) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*HierarchicalBudget, error)
	FindByKey(ctx context.Context, db *gorm.DB, key Key) (*HierarchicalBudget, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]HierarchicalBudget, error)
}
