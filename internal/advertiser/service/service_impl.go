package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
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

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	AgencyRepo agencydomain.Repository
	Ownership  *ownership.Resolver
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	agencyRepo agencydomain.Repository
	ownership  *ownership.Resolver
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("advertiser.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		agencyRepo: p.AgencyRepo,
		ownership:  p.Ownership,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAdvertiserRequest) (domain.Advertiser, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.Advertiser{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Advertiser{}, domain.ErrInvalidName
	}
	agencyID, err := parseOptionalID(req.AgencyID, domain.ErrInvalidAgency)
	if err != nil {
		return domain.Advertiser{}, err
	}
	sellerID, err := parseOptionalID(req.SellerID, domain.ErrInvalidSeller)
	if err != nil {
		return domain.Advertiser{}, err
	}
	if member.Restricted() && agencyID == nil && sellerID == nil {
		sellerID = &member.UserID
	}

	now := time.Now().UTC()
	advertiser := domain.Advertiser{
		ID:        s.genID.Generate(),
		Name:      name,
		AgencyID:  agencyID,
		SellerID:  sellerID,
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.validateAssignment(ctx, tx, orgID, member, advertiser); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &advertiser)
	})
	if err != nil {
		return domain.Advertiser{}, err
	}
	return advertiser, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAdvertiserRequest) (domain.Advertiser, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.Advertiser{}, err
	}
	id, err := parseRequiredID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Advertiser{}, err
	}

	var updated domain.Advertiser
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		advertiser, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if advertiser == nil {
			return domain.ErrNotFound
		}
		owned, err := s.ownership.OwnsAdvertiser(ctx, tx, member, *advertiser)
		if err != nil {
			return err
		}
		if !owned {
			return authorization.ErrForbidden
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			advertiser.Name = name
		}
		if req.AgencyID != nil {
			advertiser.AgencyID, err = parseOptionalID(*req.AgencyID, domain.ErrInvalidAgency)
			if err != nil {
				return err
			}
		}
		if req.SellerID != nil {
			advertiser.SellerID, err = parseOptionalID(*req.SellerID, domain.ErrInvalidSeller)
			if err != nil {
				return err
			}
		}
		if req.IsActive != nil {
			advertiser.IsActive = *req.IsActive
		}
		if req.AgencyID != nil || req.SellerID != nil {
			if err := s.validateAssignment(ctx, tx, orgID, member, *advertiser); err != nil {
				return err
			}
		}

		advertiser.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, advertiser); err != nil {
			return err
		}
		updated = *advertiser
		return nil
	})
	if err != nil {
		return domain.Advertiser{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Advertiser, error) {
	_, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.Advertiser{}, err
	}
	advertiserID, err := parseRequiredID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Advertiser{}, err
	}

	var result domain.Advertiser
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		advertiser, err := s.repo.FindByID(ctx, tx, advertiserID)
		if err != nil {
			return err
		}
		if advertiser == nil {
			return domain.ErrNotFound
		}
		owned, err := s.ownership.OwnsAdvertiser(ctx, tx, member, *advertiser)
		if err != nil {
			return err
		}
		if !owned {
			return authorization.ErrForbidden
		}
		result = *advertiser
		return nil
	})
	if err != nil {
		return domain.Advertiser{}, err
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAdvertiserRequest) (domain.ListAdvertiserResponse, error) {
	_, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.ListAdvertiserResponse{}, err
	}

	filter := domain.ListFilter{Active: req.Active, Name: req.Name}
	if filter.SellerID, err = parseOptionalID(req.SellerID, domain.ErrInvalidSeller); err != nil {
		return domain.ListAdvertiserResponse{}, err
	}
	if filter.AgencyID, err = parseOptionalID(req.AgencyID, domain.ErrInvalidAgency); err != nil {
		return domain.ListAdvertiserResponse{}, err
	}
	if member.Restricted() {
		filter.OwnerID = &member.UserID
	}

	var items []*domain.Advertiser
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		items, err = s.repo.List(ctx, tx, filter, req.Pagination)
		return err
	})
	if err != nil {
		return domain.ListAdvertiserResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, option.PageSize(req.PageSize), func(a *domain.Advertiser) string {
		return a.ID.String()
	})
	advertisers := make([]domain.Advertiser, 0, len(items))
	for _, item := range items {
		advertisers = append(advertisers, *item)
	}
	return domain.ListAdvertiserResponse{PageInfo: pageInfo, Advertisers: advertisers}, nil
}

// validateAssignment checks that the referenced agency and seller exist and
// that a restricted member keeps the advertiser inside their own book.
func (s *Service) validateAssignment(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, member orgcontext.Member, advertiser domain.Advertiser) error {
	if advertiser.AgencyID != nil {
		agency, err := s.agencyRepo.FindByID(ctx, tx, *advertiser.AgencyID)
		if err != nil {
			return err
		}
		if agency == nil {
			return domain.ErrAgencyNotFound
		}
		// The agency's seller takes the advertiser's figures; a different
		// direct seller would never see them.
		if advertiser.SellerID != nil && agency.SellerID != nil && *agency.SellerID != *advertiser.SellerID {
			return domain.ErrInvalidSeller
		}
	}
	if advertiser.SellerID != nil {
		ok, err := s.ownership.IsSeller(ctx, tx, orgID, *advertiser.SellerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSellerNotFound
		}
	}
	owned, err := s.ownership.OwnsAdvertiser(ctx, tx, member, advertiser)
	if err != nil {
		return err
	}
	if !owned {
		return authorization.ErrForbidden
	}
	if advertiser.AgencyID == nil && advertiser.SellerID == nil {
		s.log.Warn("advertiser has no agency or seller assignment",
			zap.String("org_id", orgID.String()),
			zap.String("advertiser_id", advertiser.ID.String()),
		)
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

func parseOptionalID(value string, invalid error) (*snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseRequiredID(value, invalid)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
