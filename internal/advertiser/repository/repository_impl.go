package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/advertiser/domain"
	"github.com/smallbiznis/podbudget/pkg/db/option"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, advertiser *domain.Advertiser) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO advertisers (id, name, agency_id, seller_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		advertiser.ID,
		advertiser.Name,
		advertiser.AgencyID,
		advertiser.SellerID,
		advertiser.IsActive,
		advertiser.CreatedAt,
		advertiser.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, advertiser *domain.Advertiser) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advertisers
		 SET name = ?, agency_id = ?, seller_id = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		advertiser.Name,
		advertiser.AgencyID,
		advertiser.SellerID,
		advertiser.IsActive,
		advertiser.UpdatedAt,
		advertiser.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Advertiser, error) {
	var advertiser domain.Advertiser
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, agency_id, seller_id, is_active, created_at, updated_at
		 FROM advertisers WHERE id = ?`,
		id,
	).Scan(&advertiser).Error
	if err != nil {
		return nil, err
	}
	if advertiser.ID == 0 {
		return nil, nil
	}
	return &advertiser, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Advertiser, error) {
	var advertisers []*domain.Advertiser
	stmt := db.WithContext(ctx).Model(&domain.Advertiser{})
	if filter.SellerID != nil {
		stmt = stmt.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.AgencyID != nil {
		stmt = stmt.Where("agency_id = ?", *filter.AgencyID)
	}
	if filter.Active != nil {
		stmt = stmt.Where("is_active = ?", *filter.Active)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.OwnerID != nil {
		stmt = stmt.Where(
			"((agency_id IS NULL AND seller_id = ?) OR agency_id IN (SELECT id FROM agencies WHERE seller_id = ?))",
			*filter.OwnerID,
			*filter.OwnerID,
		)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id asc").Find(&advertisers).Error; err != nil {
		return nil, err
	}
	return advertisers, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Advertiser, error) {
	var advertisers []domain.Advertiser
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, agency_id, seller_id, is_active, created_at, updated_at
		 FROM advertisers ORDER BY id ASC`,
	).Scan(&advertisers).Error
	if err != nil {
		return nil, err
	}
	return advertisers, nil
}
