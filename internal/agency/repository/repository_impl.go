package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/agency/domain"
	"github.com/smallbiznis/podbudget/pkg/db/option"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, agency *domain.Agency) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO agencies (id, name, seller_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		agency.ID,
		agency.Name,
		agency.SellerID,
		agency.CreatedAt,
		agency.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, agency *domain.Agency) error {
	return db.WithContext(ctx).Exec(
		`UPDATE agencies SET name = ?, seller_id = ?, updated_at = ? WHERE id = ?`,
		agency.Name,
		agency.SellerID,
		agency.UpdatedAt,
		agency.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Agency, error) {
	var agency domain.Agency
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, seller_id, created_at, updated_at FROM agencies WHERE id = ?`,
		id,
	).Scan(&agency).Error
	if err != nil {
		return nil, err
	}
	if agency.ID == 0 {
		return nil, nil
	}
	return &agency, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Agency, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var agencies []domain.Agency
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, seller_id, created_at, updated_at FROM agencies WHERE id IN ?`,
		ids,
	).Scan(&agencies).Error
	if err != nil {
		return nil, err
	}
	return agencies, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Agency, error) {
	var agencies []*domain.Agency
	stmt := db.WithContext(ctx).Model(&domain.Agency{})
	if filter.SellerID != nil {
		stmt = stmt.Where("seller_id = ?", *filter.SellerID)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id asc").Find(&agencies).Error; err != nil {
		return nil, err
	}
	return agencies, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Agency, error) {
	var agencies []domain.Agency
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, seller_id, created_at, updated_at FROM agencies ORDER BY id ASC`,
	).Scan(&agencies).Error
	if err != nil {
		return nil, err
	}
	return agencies, nil
}
