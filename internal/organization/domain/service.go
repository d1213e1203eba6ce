package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
)

const (
	RoleMaster = orgcontext.RoleMaster
	RoleAdmin  = orgcontext.RoleAdmin
	RoleSales  = orgcontext.RoleSales
)

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	List(ctx context.Context) ([]OrganizationResponse, error)
	EnsureUser(ctx context.Context, req EnsureUserRequest) (*UserResponse, error)
	AddMember(ctx context.Context, orgID string, req AddMemberRequest) error
	ResolveMember(ctx context.Context, orgID, userID snowflake.ID) (orgcontext.Member, error)
	ListSellers(ctx context.Context) ([]SellerResponse, error)
}

type CreateOrganizationRequest struct {
	Name string
}

type EnsureUserRequest struct {
	Name  string
	Email string
}

type AddMemberRequest struct {
	UserID string
	Role   string
}

type OrganizationResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	SchemaName string    `json:"schema_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

type SellerResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("not_found")
	ErrNotMember           = errors.New("not_member")
	ErrAlreadyExists       = errors.New("organization_exists")
	ErrMemberExists        = errors.New("member_exists")
)
