package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	"github.com/smallbiznis/podbudget/internal/authorization"
	"github.com/smallbiznis/podbudget/internal/campaign/domain"
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

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	AdvertiserRepo advertiserdomain.Repository
	Ownership      *ownership.Resolver
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	repo           domain.Repository
	advertiserRepo advertiserdomain.Repository
	ownership      *ownership.Resolver
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("campaign.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		advertiserRepo: p.AdvertiserRepo,
		ownership:      p.Ownership,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCampaignRequest) (domain.Campaign, error) {
	member, err := memberFromContext(ctx)
	if err != nil {
		return domain.Campaign{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Campaign{}, domain.ErrInvalidName
	}
	advertiserID, err := parseRequiredID(req.AdvertiserID, domain.ErrInvalidAdvertiser)
	if err != nil {
		return domain.Campaign{}, err
	}
	if req.BudgetAmount < 0 {
		return domain.Campaign{}, domain.ErrInvalidBudgetAmount
	}
	probability := domain.ProbabilityProspect
	if req.Probability != nil {
		probability = *req.Probability
	}
	if !domain.ValidProbability(probability) {
		return domain.Campaign{}, domain.ErrInvalidProbability
	}
	startDate, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.StartDate))
	if err != nil {
		return domain.Campaign{}, domain.ErrInvalidStartDate
	}
	endDate, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.EndDate))
	if err != nil || endDate.Before(startDate) {
		return domain.Campaign{}, domain.ErrInvalidEndDate
	}

	now := time.Now().UTC()
	createdBy := member.UserID
	campaign := domain.Campaign{
		ID:           s.genID.Generate(),
		Name:         name,
		AdvertiserID: advertiserID,
		BudgetAmount: req.BudgetAmount,
		Probability:  probability,
		Status:       domain.StatusForProbability(probability),
		StartDate:    startDate,
		EndDate:      endDate,
		CreatedBy:    &createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.requireAdvertiser(ctx, tx, member, advertiserID); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &campaign)
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return campaign, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	member, err := memberFromContext(ctx)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaignID, err := parseRequiredID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Campaign{}, err
	}

	var result domain.Campaign
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		campaign, err := s.loadOwned(ctx, tx, member, campaignID)
		if err != nil {
			return err
		}
		result = *campaign
		return nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCampaignRequest) (domain.ListCampaignResponse, error) {
	member, err := memberFromContext(ctx)
	if err != nil {
		return domain.ListCampaignResponse{}, err
	}

	var filter domain.ListFilter
	if strings.TrimSpace(req.AdvertiserID) != "" {
		advertiserID, err := parseRequiredID(req.AdvertiserID, domain.ErrInvalidAdvertiser)
		if err != nil {
			return domain.ListCampaignResponse{}, err
		}
		filter.AdvertiserID = &advertiserID
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.Status(status) {
		case domain.StatusOpen, domain.StatusWon, domain.StatusLost:
			filter.Status = domain.Status(status)
		default:
			return domain.ListCampaignResponse{}, domain.ErrInvalidStatus
		}
	}
	if member.Restricted() {
		filter.OwnerID = &member.UserID
	}

	var items []*domain.Campaign
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		items, err = s.repo.List(ctx, tx, filter, req.Pagination)
		return err
	})
	if err != nil {
		return domain.ListCampaignResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, option.PageSize(req.PageSize), func(c *domain.Campaign) string {
		return c.ID.String()
	})
	campaigns := make([]domain.Campaign, 0, len(items))
	for _, item := range items {
		campaigns = append(campaigns, *item)
	}
	return domain.ListCampaignResponse{PageInfo: pageInfo, Campaigns: campaigns}, nil
}

// UpdateProbability moves a campaign to another probability stage. Won and
// lost campaigns are closed and reject further changes.
func (s *Service) UpdateProbability(ctx context.Context, req domain.UpdateProbabilityRequest) (domain.Campaign, error) {
	member, err := memberFromContext(ctx)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaignID, err := parseRequiredID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !domain.ValidProbability(req.Probability) {
		return domain.Campaign{}, domain.ErrInvalidProbability
	}

	var updated domain.Campaign
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		campaign, err := s.loadOwned(ctx, tx, member, campaignID)
		if err != nil {
			return err
		}
		if campaign.Status.Terminal() {
			return domain.ErrCampaignClosed
		}

		previous := campaign.Probability
		campaign.Probability = req.Probability
		campaign.Status = domain.StatusForProbability(req.Probability)
		campaign.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateProbability(ctx, tx, campaign); err != nil {
			return err
		}
		s.log.Debug("campaign probability changed",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Int("from", previous),
			zap.Int("to", campaign.Probability),
			zap.String("status", string(campaign.Status)),
		)
		updated = *campaign
		return nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return updated, nil
}

func (s *Service) loadOwned(ctx context.Context, tx *gorm.DB, member orgcontext.Member, id snowflake.ID) (*domain.Campaign, error) {
	campaign, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, domain.ErrNotFound
	}
	if member.Restricted() {
		advertiser, err := s.advertiserRepo.FindByID(ctx, tx, campaign.AdvertiserID)
		if err != nil {
			return nil, err
		}
		if advertiser == nil {
			return nil, authorization.ErrForbidden
		}
		owned, err := s.ownership.OwnsAdvertiser(ctx, tx, member, *advertiser)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, authorization.ErrForbidden
		}
	}
	return campaign, nil
}

func (s *Service) requireAdvertiser(ctx context.Context, tx *gorm.DB, member orgcontext.Member, id snowflake.ID) error {
	advertiser, err := s.advertiserRepo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if advertiser == nil {
		return domain.ErrAdvertiserNotFound
	}
	owned, err := s.ownership.OwnsAdvertiser(ctx, tx, member, *advertiser)
	if err != nil {
		return err
	}
	if !owned {
		return authorization.ErrForbidden
	}
	return nil
}

func memberFromContext(ctx context.Context) (orgcontext.Member, error) {
	if _, ok := orgcontext.OrgIDFromContext(ctx); !ok {
		return orgcontext.Member{}, domain.ErrInvalidOrganization
	}
	member, ok := orgcontext.MemberFromContext(ctx)
	if !ok {
		return orgcontext.Member{}, authorization.ErrForbidden
	}
	return member, nil
}

func parseRequiredID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
