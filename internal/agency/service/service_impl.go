package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/agency/domain"
	"github.com/smallbiznis/podbudget/internal/authorization"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/internal/ownership"
	"github.com/smallbiznis/podbudget/pkg/db/option"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Ownership *ownership.Resolver
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	ownership *ownership.Resolver
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("agency.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		ownership: p.Ownership,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAgencyRequest) (domain.Agency, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.Agency{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Agency{}, domain.ErrInvalidName
	}
	sellerID, err := parseRequiredID(req.SellerID, domain.ErrInvalidSeller)
	if err != nil {
		return domain.Agency{}, err
	}

	now := time.Now().UTC()
	agency := domain.Agency{
		ID:        s.genID.Generate(),
		Name:      name,
		SellerID:  &sellerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !s.ownership.OwnsAgency(member, agency) {
		return domain.Agency{}, authorization.ErrForbidden
	}

	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.requireSeller(ctx, tx, orgID, sellerID); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &agency)
	})
	if err != nil {
		return domain.Agency{}, err
	}
	return agency, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAgencyRequest) (domain.Agency, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.Agency{}, err
	}
	id, err := parseRequiredID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Agency{}, err
	}

	var updated domain.Agency
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		agency, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if agency == nil {
			return domain.ErrNotFound
		}
		if !s.ownership.OwnsAgency(member, *agency) {
			return authorization.ErrForbidden
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			agency.Name = name
		}
		if req.SellerID != nil {
			sellerID, err := parseRequiredID(*req.SellerID, domain.ErrInvalidSeller)
			if err != nil {
				return err
			}
			if err := s.requireSeller(ctx, tx, orgID, sellerID); err != nil {
				return err
			}
			agency.SellerID = &sellerID
			if !s.ownership.OwnsAgency(member, *agency) {
				return authorization.ErrForbidden
			}
		}
		agency.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, agency); err != nil {
			return err
		}
		updated = *agency
		return nil
	})
	if err != nil {
		return domain.Agency{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Agency, error) {
	_, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.Agency{}, err
	}
	agencyID, err := parseRequiredID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Agency{}, err
	}

	var agency *domain.Agency
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		agency, err = s.repo.FindByID(ctx, tx, agencyID)
		return err
	})
	if err != nil {
		return domain.Agency{}, err
	}
	if agency == nil {
		return domain.Agency{}, domain.ErrNotFound
	}
	if !s.ownership.OwnsAgency(member, *agency) {
		return domain.Agency{}, authorization.ErrForbidden
	}
	return *agency, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAgencyRequest) (domain.ListAgencyResponse, error) {
	_, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.ListAgencyResponse{}, err
	}

	filter := domain.ListFilter{Name: req.Name}
	if strings.TrimSpace(req.SellerID) != "" {
		sellerID, err := parseRequiredID(req.SellerID, domain.ErrInvalidSeller)
		if err != nil {
			return domain.ListAgencyResponse{}, err
		}
		filter.SellerID = &sellerID
	}
	if member.Restricted() {
		if filter.SellerID != nil && *filter.SellerID != member.UserID {
			return domain.ListAgencyResponse{}, authorization.ErrForbidden
		}
		filter.SellerID = &member.UserID
	}

	var items []*domain.Agency
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		items, err = s.repo.List(ctx, tx, filter, req.Pagination)
		return err
	})
	if err != nil {
		return domain.ListAgencyResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, option.PageSize(req.PageSize), func(a *domain.Agency) string {
		return a.ID.String()
	})
	agencies := make([]domain.Agency, 0, len(items))
	for _, item := range items {
		agencies = append(agencies, *item)
	}
	return domain.ListAgencyResponse{PageInfo: pageInfo, Agencies: agencies}, nil
}

func (s *Service) requireSeller(ctx context.Context, tx *gorm.DB, orgID, sellerID snowflake.ID) error {
	ok, err := s.ownership.IsSeller(ctx, tx, orgID, sellerID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSellerNotFound
	}
	return nil
}

func actorFromContext(ctx context.Context) (snowflake.ID, orgcontext.Member, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, orgcontext.Member{}, domain.ErrInvalidOrganization
	}
	member, ok := orgcontext.MemberFromContext(ctx)
	if !ok {
		return 0, orgcontext.Member{}, authorization.ErrForbidden
	}
	return orgID, member, nil
}

func parseRequiredID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
