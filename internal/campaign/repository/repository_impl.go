package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/campaign/domain"
	"github.com/smallbiznis/podbudget/pkg/db/option"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return db.WithContext(ctx).Create(campaign).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ?", id).
		Limit(1).
		Find(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, nil
	}
	return &campaign, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Campaign, error) {
	var campaigns []*domain.Campaign
	stmt := db.WithContext(ctx).Model(&domain.Campaign{})
	if filter.AdvertiserID != nil {
		stmt = stmt.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.OwnerID != nil {
		stmt = stmt.Where(
			`advertiser_id IN (
				SELECT id FROM advertisers
				WHERE (agency_id IS NULL AND seller_id = ?) OR agency_id IN (SELECT id FROM agencies WHERE seller_id = ?)
			)`,
			*filter.OwnerID,
			*filter.OwnerID,
		)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id asc").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *repo) UpdateProbability(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return db.WithContext(ctx).Exec(
		`UPDATE campaigns SET probability = ?, status = ?, updated_at = ? WHERE id = ?`,
		campaign.Probability,
		campaign.Status,
		campaign.UpdatedAt,
		campaign.ID,
	).Error
}

func (r *repo) ListOpenStarting(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	err := db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("status = ? AND start_date >= ? AND start_date < ?", domain.StatusOpen, from, to).
		Order("id asc").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}
