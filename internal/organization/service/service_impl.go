package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Provisioner domain.Provisioner `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	provisioner domain.Provisioner
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("organization.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		provisioner: p.Provisioner,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	orgSlug := slug.Make(name)
	schema, err := tenant.SchemaName(orgSlug)
	if err != nil {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:         s.genID.Generate(),
		Name:       name,
		Slug:       orgSlug,
		SchemaName: schema,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}

	if s.provisioner != nil {
		if err := s.provisioner.ProvisionTenant(ctx, schema); err != nil {
			s.log.Error("failed to provision tenant schema",
				zap.String("org_id", org.ID.String()),
				zap.String("schema", schema),
				zap.Error(err),
			)
			return nil, fmt.Errorf("provision tenant %s: %w", schema, err)
		}
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("schema", schema),
	)
	return toOrganizationResponse(org), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return toOrganizationResponse(*org), nil
}

func (s *Service) List(ctx context.Context) ([]domain.OrganizationResponse, error) {
	orgs, err := s.repo.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, *toOrganizationResponse(org))
	}
	return resp, nil
}

func (s *Service) EnsureUser(ctx context.Context, req domain.EnsureUserRequest) (*domain.UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return toUserResponse(*existing), nil
	}

	user := domain.User{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *Service) AddMember(ctx context.Context, orgID string, req domain.AddMemberRequest) error {
	parsedOrgID, err := snowflake.ParseString(strings.TrimSpace(orgID))
	if err != nil || parsedOrgID == 0 {
		return domain.ErrInvalidOrganization
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return domain.ErrInvalidUser
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !orgcontext.ValidRole(role) {
		return domain.ErrInvalidRole
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		org, err := repo.GetOrganization(ctx, parsedOrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domain.ErrNotFound
		}
		user, err := repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrInvalidUser
		}

		err = repo.AddMember(ctx, domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     parsedOrgID,
			UserID:    userID,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		})
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrMemberExists
		}
		return err
	})
}

// ResolveMember returns the role the user holds in the organization.
// Inactive users resolve as non-members.
func (s *Service) ResolveMember(ctx context.Context, orgID, userID snowflake.ID) (orgcontext.Member, error) {
	if orgID == 0 {
		return orgcontext.Member{}, domain.ErrInvalidOrganization
	}
	if userID == 0 {
		return orgcontext.Member{}, domain.ErrInvalidUser
	}
	member, err := s.repo.GetMember(ctx, orgID, userID)
	if err != nil {
		return orgcontext.Member{}, err
	}
	if member == nil {
		return orgcontext.Member{}, domain.ErrNotMember
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return orgcontext.Member{}, err
	}
	if user == nil || !user.IsActive {
		return orgcontext.Member{}, domain.ErrNotMember
	}
	return orgcontext.Member{UserID: userID, Role: strings.ToLower(member.Role)}, nil
}

func (s *Service) ListSellers(ctx context.Context) ([]domain.SellerResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	rows, err := s.repo.ListSellers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.SellerResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, domain.SellerResponse{
			ID:       row.UserID.String(),
			Name:     row.Name,
			Email:    row.Email,
			Role:     row.Role,
			IsActive: row.IsActive,
		})
	}
	return resp, nil
}

func toOrganizationResponse(org domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:         org.ID.String(),
		Name:       org.Name,
		Slug:       org.Slug,
		SchemaName: org.SchemaName,
		CreatedAt:  org.CreatedAt,
	}
}

func toUserResponse(user domain.User) *domain.UserResponse {
	return &domain.UserResponse{
		ID:       user.ID.String(),
		Name:     user.Name,
		Email:    user.Email,
		IsActive: user.IsActive,
	}
}
