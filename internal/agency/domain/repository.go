package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	SellerID *snowflake.ID
	Name     string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, agency *Agency) error
	Update(ctx context.Context, db *gorm.DB, agency *Agency) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Agency, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Agency, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Agency, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]Agency, error)
}
