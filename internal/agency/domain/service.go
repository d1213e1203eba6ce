package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/podbudget/pkg/db/pagination"
)

type ListAgencyRequest struct {
	pagination.Pagination
	SellerID string
	Name     string
}

type ListAgencyResponse struct {
	pagination.PageInfo
	Agencies []Agency `json:"agencies"`
}

type CreateAgencyRequest struct {
	Name     string
	SellerID string
}

// UpdateAgencyRequest applies only the non-nil fields.
type UpdateAgencyRequest struct {
	ID       string
	Name     *string
	SellerID *string
}

type Service interface {
	Create(ctx context.Context, req CreateAgencyRequest) (Agency, error)
	Update(ctx context.Context, req UpdateAgencyRequest) (Agency, error)
	GetByID(ctx context.Context, id string) (Agency, error)
	List(ctx context.Context, req ListAgencyRequest) (ListAgencyResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSeller       = errors.New("invalid_seller")
	ErrSellerNotFound      = errors.New("seller_not_found")
	ErrNotFound            = errors.New("agency_not_found")
)
