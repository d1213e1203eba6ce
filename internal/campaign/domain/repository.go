package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	AdvertiserID *snowflake.ID
	Status       Status
	// OwnerID limits results to campaigns of advertisers the seller owns.
	OwnerID *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Campaign, error)
	UpdateProbability(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	// ListOpenStarting returns open campaigns whose start date falls in [from, to).
	ListOpenStarting(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Campaign, error)
}
