package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/budget/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, entity_type, entity_id, year, month, budget_amount, actual_amount,
	notes, created_by, created_at, updated_at
	FROM hierarchical_budgets`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, budget *domain.HierarchicalBudget) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO hierarchical_budgets (
			id, entity_type, entity_id, year, month, budget_amount, actual_amount,
			notes, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		budget.ID,
		budget.EntityType,
		budget.EntityID,
		budget.Year,
		budget.Month,
		budget.BudgetAmount,
		budget.ActualAmount,
		budget.Notes,
		budget.CreatedBy,
		budget.CreatedAt,
		budget.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, budget *domain.HierarchicalBudget) error {
	return db.WithContext(ctx).Exec(
		`UPDATE hierarchical_budgets
		 SET budget_amount = ?, actual_amount = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		budget.BudgetAmount,
		budget.ActualAmount,
		budget.Notes,
		budget.UpdatedAt,
		budget.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM hierarchical_budgets WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.HierarchicalBudget, error) {
	var budget domain.HierarchicalBudget
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE id = ?`, id).Scan(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == 0 {
		return nil, nil
	}
	return &budget, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key domain.Key) (*domain.HierarchicalBudget, error) {
	var budget domain.HierarchicalBudget
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE entity_type = ? AND entity_id = ? AND year = ? AND month = ?`,
		key.EntityType,
		key.EntityID,
		key.Year,
		key.Month,
	).Scan(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == 0 {
		return nil, nil
	}
	return &budget, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.HierarchicalBudget, error) {
	var budgets []domain.HierarchicalBudget
	stmt := db.WithContext(ctx).Model(&domain.HierarchicalBudget{}).Where("year = ?", filter.Year)
	if filter.Month != nil {
		stmt = stmt.Where("month = ?", *filter.Month)
	}
	if filter.EntityType != "" {
		stmt = stmt.Where("entity_type = ?", filter.EntityType)
	}
	if err := stmt.Order("entity_type asc, entity_id asc, month asc").Find(&budgets).Error; err != nil {
		return nil, err
	}
	return budgets, nil
}
