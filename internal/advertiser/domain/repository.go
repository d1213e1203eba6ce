package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	SellerID *snowflake.ID
	AgencyID *snowflake.ID
	Active   *bool
	Name     string
	// OwnerID limits results to advertisers assigned to the seller directly
	// or through one of the seller's agencies.
	OwnerID *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, advertiser *Advertiser) error
	Update(ctx context.Context, db *gorm.DB, advertiser *Advertiser) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Advertiser, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Advertiser, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]Advertiser, error)
}
