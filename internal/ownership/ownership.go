// Package ownership decides which hierarchy entities a member may act on.
// Masters and admins act on everything; sales members act on the agencies
// they own and on advertisers assigned to them. An advertiser placed under an
// agency belongs to the agency's seller, matching how the rollup attributes it.
package ownership

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	EntityAdvertiser = "advertiser"
	EntityAgency     = "agency"
	EntitySeller     = "seller"
)

var (
	ErrUnknownEntityType = errors.New("invalid_entity_type")
	ErrEntityNotFound    = errors.New("entity_not_found")
)

type Params struct {
	fx.In

	OrgRepo        orgdomain.Repository
	AgencyRepo     agencydomain.Repository
	AdvertiserRepo advertiserdomain.Repository
}

type Resolver struct {
	orgRepo        orgdomain.Repository
	agencyRepo     agencydomain.Repository
	advertiserRepo advertiserdomain.Repository
}

func New(p Params) *Resolver {
	return &Resolver{
		orgRepo:        p.OrgRepo,
		agencyRepo:     p.AgencyRepo,
		advertiserRepo: p.AdvertiserRepo,
	}
}

var Module = fx.Module("ownership", fx.Provide(New))

// IsSeller reports whether userID is a member of the organization who can own accounts.
func (r *Resolver) IsSeller(ctx context.Context, tx *gorm.DB, orgID, userID snowflake.ID) (bool, error) {
	member, err := r.orgRepo.WithTx(tx).GetMember(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	return member != nil && orgcontext.ValidRole(member.Role), nil
}

func (r *Resolver) OwnsAgency(member orgcontext.Member, agency agencydomain.Agency) bool {
	if !member.Restricted() {
		return true
	}
	return agency.SellerID != nil && *agency.SellerID == member.UserID
}

func (r *Resolver) OwnsAdvertiser(ctx context.Context, tx *gorm.DB, member orgcontext.Member, advertiser advertiserdomain.Advertiser) (bool, error) {
	if !member.Restricted() {
		return true, nil
	}
	if advertiser.AgencyID == nil {
		return advertiser.SellerID != nil && *advertiser.SellerID == member.UserID, nil
	}
	agency, err := r.agencyRepo.FindByID(ctx, tx, *advertiser.AgencyID)
	if err != nil {
		return false, err
	}
	return agency != nil && r.OwnsAgency(member, *agency), nil
}

// CheckEntity verifies that the entity exists and that the member may act on it.
// It returns ErrEntityNotFound for missing entities and (false, nil) when the
// entity exists but belongs to someone else.
func (r *Resolver) CheckEntity(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, member orgcontext.Member, entityType string, entityID snowflake.ID) (bool, error) {
	switch entityType {
	case EntityAdvertiser:
		advertiser, err := r.advertiserRepo.FindByID(ctx, tx, entityID)
		if err != nil {
			return false, err
		}
		if advertiser == nil {
			return false, ErrEntityNotFound
		}
		return r.OwnsAdvertiser(ctx, tx, member, *advertiser)
	case EntityAgency:
		agency, err := r.agencyRepo.FindByID(ctx, tx, entityID)
		if err != nil {
			return false, err
		}
		if agency == nil {
			return false, ErrEntityNotFound
		}
		return r.OwnsAgency(member, *agency), nil
	case EntitySeller:
		ok, err := r.IsSeller(ctx, tx, orgID, entityID)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, ErrEntityNotFound
		}
		return !member.Restricted() || member.UserID == entityID, nil
	default:
		return false, ErrUnknownEntityType
	}
}
