package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/podbudget/internal/config"
)

type CreateBudgetRequest struct {
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	BudgetAmount int64  `json:"budgetAmount"`
	ActualAmount int64  `json:"actualAmount"`
	Notes        string `json:"notes"`
}

// UpdateBudgetRequest applies only the non-nil fields.
type UpdateBudgetRequest struct {
	ID           string  `json:"-"`
	BudgetAmount *int64  `json:"budgetAmount"`
	ActualAmount *int64  `json:"actualAmount"`
	Notes        *string `json:"notes"`
}

// BatchUpdateRequest upserts every item by its (entityType, entityId, year,
// month) key. Either all items are written or none.
type BatchUpdateRequest struct {
	Items []CreateBudgetRequest `json:"items"`
}

type BatchUpdateResponse struct {
	Created int                  `json:"created"`
	Updated int                  `json:"updated"`
	Budgets []HierarchicalBudget `json:"budgets"`
}

type Service interface {
	Create(ctx context.Context, req CreateBudgetRequest) (HierarchicalBudget, error)
	Update(ctx context.Context, req UpdateBudgetRequest) (HierarchicalBudget, error)
	BatchUpdate(ctx context.Context, req BatchUpdateRequest) (BatchUpdateResponse, error)
	Delete(ctx context.Context, id string) (HierarchicalBudget, error)
	GetByID(ctx context.Context, id string) (HierarchicalBudget, error)
}

const MaxBatchItems = 500

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidEntityType   = errors.New("invalid_entity_type")
	ErrInvalidEntityID     = errors.New("invalid_entity_id")
	ErrInvalidYear         = errors.New("invalid_year")
	ErrInvalidMonth        = errors.New("invalid_month")
	ErrInvalidBudgetAmount = errors.New("invalid_budget_amount")
	ErrInvalidActualAmount = errors.New("invalid_actual_amount")
	ErrInvalidItems        = errors.New("invalid_items")
	ErrEntityNotFound      = errors.New("entity_not_found")
	ErrNotFound            = errors.New("budget_not_found")
	ErrAlreadyExists       = errors.New("budget_already_exists")
)

// ItemError ties a batch failure to the position of the offending item.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("items[%d]: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ValidatePeriod checks a year against the configured range and, when
// present, a month against 1..12.
func ValidatePeriod(cfg config.BudgetConfig, year int, month *int) error {
	if year < cfg.MinYear || year > cfg.MaxYear {
		return ErrInvalidYear
	}
	if month != nil && (*month < 1 || *month > 12) {
		return ErrInvalidMonth
	}
	return nil
}
