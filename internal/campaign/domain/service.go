package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/podbudget/pkg/db/pagination"
)

type ListCampaignRequest struct {
	pagination.Pagination
	AdvertiserID string
	Status       string
}

type ListCampaignResponse struct {
	pagination.PageInfo
	Campaigns []Campaign `json:"campaigns"`
}

// CreateCampaignRequest dates use the YYYY-MM-DD layout.
type CreateCampaignRequest struct {
	Name         string
	AdvertiserID string
	BudgetAmount int64
	Probability  *int
	StartDate    string
	EndDate      string
}

type UpdateProbabilityRequest struct {
	ID          string
	Probability int
}

type Service interface {
	Create(ctx context.Context, req CreateCampaignRequest) (Campaign, error)
	GetByID(ctx context.Context, id string) (Campaign, error)
	List(ctx context.Context, req ListCampaignRequest) (ListCampaignResponse, error)
	UpdateProbability(ctx context.Context, req UpdateProbabilityRequest) (Campaign, error)
}

const DateLayout = "2006-01-02"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidAdvertiser   = errors.New("invalid_advertiser")
	ErrInvalidBudgetAmount = errors.New("invalid_budget_amount")
	ErrInvalidProbability  = errors.New("invalid_probability")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidStartDate    = errors.New("invalid_start_date")
	ErrInvalidEndDate      = errors.New("invalid_end_date")
	ErrAdvertiserNotFound  = errors.New("advertiser_not_found")
	ErrNotFound            = errors.New("campaign_not_found")
	ErrCampaignClosed      = errors.New("campaign_closed")
)
