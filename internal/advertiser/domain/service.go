package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/podbudget/pkg/db/pagination"
)

type ListAdvertiserRequest struct {
	pagination.Pagination
	SellerID string
	AgencyID string
	Active   *bool
	Name     string
}

type ListAdvertiserResponse struct {
	pagination.PageInfo
	Advertisers []Advertiser `json:"advertisers"`
}

type CreateAdvertiserRequest struct {
	Name     string
	AgencyID string
	SellerID string
	IsActive *bool
}

// UpdateAdvertiserRequest applies only the non-nil fields. An empty
// AgencyID or SellerID clears the assignment.
type UpdateAdvertiserRequest struct {
	ID       string
	Name     *string
	AgencyID *string
	SellerID *string
	IsActive *bool
}

type Service interface {
	Create(ctx context.Context, req CreateAdvertiserRequest) (Advertiser, error)
	Update(ctx context.Context, req UpdateAdvertiserRequest) (Advertiser, error)
	GetByID(ctx context.Context, id string) (Advertiser, error)
	List(ctx context.Context, req ListAdvertiserRequest) (ListAdvertiserResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidAgency       = errors.New("invalid_agency")
	ErrInvalidSeller       = errors.New("invalid_seller")
	ErrAgencyNotFound      = errors.New("agency_not_found")
	ErrSellerNotFound      = errors.New("seller_not_found")
	ErrNotFound            = errors.New("advertiser_not_found")
)
