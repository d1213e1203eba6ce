package rollup

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
	"github.com/smallbiznis/podbudget/internal/observability/logger"
	"github.com/smallbiznis/podbudget/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Query selects the period to roll up. CompareYear defaults to Year - 1.
type Query struct {
	OrgID       snowflake.ID
	Year        int
	Month       *int
	CompareYear int
	SellerID    *snowflake.ID
}

type LoaderParams struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	OrgRepo        orgdomain.Repository
	AgencyRepo     agencydomain.Repository
	AdvertiserRepo advertiserdomain.Repository
	BudgetRepo     budgetdomain.Repository
	CampaignRepo   campaigndomain.Repository
	Metrics        *metrics.Metrics `optional:"true"`
}

// Loader reads rollup inputs from the tenant schema bound to the context.
type Loader struct {
	db             *gorm.DB
	log            *zap.Logger
	orgRepo        orgdomain.Repository
	agencyRepo     agencydomain.Repository
	advertiserRepo advertiserdomain.Repository
	budgetRepo     budgetdomain.Repository
	campaignRepo   campaigndomain.Repository
	metrics        *metrics.Metrics
}

func NewLoader(p LoaderParams) *Loader {
	return &Loader{
		db:             p.DB,
		log:            p.Log.Named("budget.rollup"),
		orgRepo:        p.OrgRepo,
		agencyRepo:     p.AgencyRepo,
		advertiserRepo: p.AdvertiserRepo,
		budgetRepo:     p.BudgetRepo,
		campaignRepo:   p.CampaignRepo,
		metrics:        p.Metrics,
	}
}

// Load reads sellers, the hierarchy, both budget periods and the open
// pipeline inside a single tenant transaction.
func (l *Loader) Load(ctx context.Context, q Query) (Input, error) {
	if q.CompareYear == 0 {
		q.CompareYear = q.Year - 1
	}
	in := Input{
		Year:        q.Year,
		Month:       q.Month,
		CompareYear: q.CompareYear,
		SellerID:    q.SellerID,
	}

	err := tenant.Scope(ctx, l.db, func(tx *gorm.DB) error {
		rows, err := l.orgRepo.WithTx(tx).ListSellers(ctx, q.OrgID)
		if err != nil {
			return err
		}
		in.Sellers = make([]Seller, 0, len(rows))
		for _, row := range rows {
			in.Sellers = append(in.Sellers, Seller{ID: row.UserID, Name: row.Name})
		}

		if in.Agencies, err = l.agencyRepo.ListAll(ctx, tx); err != nil {
			return err
		}
		if in.Advertisers, err = l.advertiserRepo.ListAll(ctx, tx); err != nil {
			return err
		}
		if in.Budgets, err = l.budgetRepo.List(ctx, tx, budgetdomain.ListFilter{Year: q.Year, Month: q.Month}); err != nil {
			return err
		}
		if in.PreviousBudgets, err = l.budgetRepo.List(ctx, tx, budgetdomain.ListFilter{Year: q.CompareYear, Month: q.Month}); err != nil {
			return err
		}
		from, to := in.Period()
		in.Campaigns, err = l.campaignRepo.ListOpenStarting(ctx, tx, from, to)
		return err
	})
	if err != nil {
		return Input{}, err
	}
	return in, nil
}

// Run loads and computes a rollup, then reports its anomalies.
func (l *Loader) Run(ctx context.Context, q Query) (Input, Result, error) {
	start := time.Now()
	in, err := l.Load(ctx, q)
	if err != nil {
		return Input{}, Result{}, err
	}
	res := Compute(in)

	orgID := q.OrgID.String()
	l.metrics.RecordRollup(ctx, orgID, time.Since(start))
	if len(res.Anomalies) > 0 {
		log := logger.WithContext(ctx, l.log)
		for _, a := range res.Anomalies {
			log.Warn("data integrity anomaly",
				zap.String("kind", string(a.Kind)),
				zap.String("entity_type", a.EntityType),
				zap.String("entity_id", a.EntityID.String()),
				zap.String("message", a.Message),
			)
		}
		for kind, count := range res.AnomalyCounts() {
			l.metrics.RecordAnomaly(ctx, orgID, string(kind), count)
		}
	}
	return in, res, nil
}
