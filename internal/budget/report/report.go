package report

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/authorization"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/budget/rollup"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidGroupBy     = errors.New("invalid_group_by")
	ErrInvalidCompareYear = errors.New("invalid_compare_year")
	ErrInvalidSeller      = errors.New("invalid_seller")
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Loader       *rollup.Loader
	BudgetConfig *config.BudgetConfigHolder
}

// Service shapes rollups into the hierarchical and comparison reports.
type Service struct {
	log          *zap.Logger
	loader       *rollup.Loader
	budgetConfig *config.BudgetConfigHolder
}

func New(p Params) *Service {
	return &Service{
		log:          p.Log.Named("budget.report"),
		loader:       p.Loader,
		budgetConfig: p.BudgetConfig,
	}
}

func (s *Service) Hierarchical(ctx context.Context, req HierarchicalRequest) (HierarchicalResponse, error) {
	cfg := s.budgetConfig.Get()
	if err := budgetdomain.ValidatePeriod(cfg, req.Year, req.Month); err != nil {
		return HierarchicalResponse{}, err
	}
	entityType := budgetdomain.EntityType(strings.ToLower(strings.TrimSpace(req.EntityType)))
	if entityType != "" && !entityType.Valid() {
		return HierarchicalResponse{}, budgetdomain.ErrInvalidEntityType
	}
	orgID, sellerID, err := scopeFromContext(ctx, req.SellerID)
	if err != nil {
		return HierarchicalResponse{}, err
	}

	in, res, err := s.loader.Run(ctx, rollup.Query{
		OrgID:    orgID,
		Year:     req.Year,
		Month:    req.Month,
		SellerID: sellerID,
	})
	if err != nil {
		return HierarchicalResponse{}, err
	}

	return HierarchicalResponse{
		Year:        res.Year,
		Month:       res.Month,
		CompareYear: res.CompareYear,
		Budgets:     budgetViews(in, entityType, sellerID),
		Rollups:     res.Sellers,
		GrandTotal:  res.GrandTotal,
		Anomalies:   res.Anomalies,
	}, nil
}

func (s *Service) Comparison(ctx context.Context, req ComparisonRequest) (ComparisonResponse, error) {
	cfg := s.budgetConfig.Get()
	if err := budgetdomain.ValidatePeriod(cfg, req.Year, req.Month); err != nil {
		return ComparisonResponse{}, err
	}
	compareYear := req.Year - 1
	if req.CompareYear != nil {
		compareYear = *req.CompareYear
	}
	if compareYear == req.Year || budgetdomain.ValidatePeriod(cfg, compareYear, nil) != nil {
		return ComparisonResponse{}, ErrInvalidCompareYear
	}
	groupBy := GroupBy(strings.ToLower(strings.TrimSpace(req.GroupBy)))
	if groupBy == "" {
		groupBy = GroupBy(cfg.DefaultGroupBy)
	}
	switch groupBy {
	case GroupBySeller, GroupByAgency, GroupByAdvertiser:
	default:
		return ComparisonResponse{}, ErrInvalidGroupBy
	}
	orgID, sellerID, err := scopeFromContext(ctx, req.SellerID)
	if err != nil {
		return ComparisonResponse{}, err
	}

	_, res, err := s.loader.Run(ctx, rollup.Query{
		OrgID:       orgID,
		Year:        req.Year,
		Month:       req.Month,
		CompareYear: compareYear,
		SellerID:    sellerID,
	})
	if err != nil {
		return ComparisonResponse{}, err
	}

	rows := comparisonRows(res, groupBy, cfg)
	return ComparisonResponse{
		Year:        res.Year,
		CompareYear: res.CompareYear,
		Month:       res.Month,
		GroupBy:     groupBy,
		Rows:        rows,
		Summary:     summarize(res.GrandTotal, rows, cfg),
		Anomalies:   res.Anomalies,
	}, nil
}

// scopeFromContext resolves the seller filter. Restricted members always
// see their own book and may not ask for another seller's.
func scopeFromContext(ctx context.Context, rawSellerID string) (snowflake.ID, *snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, nil, budgetdomain.ErrInvalidOrganization
	}
	member, ok := orgcontext.MemberFromContext(ctx)
	if !ok {
		return 0, nil, authorization.ErrForbidden
	}

	var sellerID *snowflake.ID
	if raw := strings.TrimSpace(rawSellerID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return 0, nil, ErrInvalidSeller
		}
		sellerID = &parsed
	}
	if member.Restricted() {
		if sellerID != nil && *sellerID != member.UserID {
			return 0, nil, authorization.ErrForbidden
		}
		self := member.UserID
		sellerID = &self
	}
	return orgID, sellerID, nil
}

func budgetViews(in rollup.Input, entityType budgetdomain.EntityType, sellerID *snowflake.ID) []BudgetView {
	names := make(map[budgetdomain.Key]string)
	owners := make(map[budgetdomain.Key]*snowflake.ID)
	agencySeller := make(map[snowflake.ID]*snowflake.ID, len(in.Agencies))

	for _, s := range in.Sellers {
		key := budgetdomain.Key{EntityType: budgetdomain.EntitySeller, EntityID: s.ID}
		names[key] = s.Name
		id := s.ID
		owners[key] = &id
	}
	for _, a := range in.Agencies {
		key := budgetdomain.Key{EntityType: budgetdomain.EntityAgency, EntityID: a.ID}
		names[key] = a.Name
		owners[key] = a.SellerID
		agencySeller[a.ID] = a.SellerID
	}
	for _, a := range in.Advertisers {
		key := budgetdomain.Key{EntityType: budgetdomain.EntityAdvertiser, EntityID: a.ID}
		names[key] = a.Name
		if a.AgencyID != nil {
			owners[key] = agencySeller[*a.AgencyID]
		} else {
			owners[key] = a.SellerID
		}
	}

	views := make([]BudgetView, 0, len(in.Budgets))
	for _, b := range in.Budgets {
		if entityType != "" && b.EntityType != entityType {
			continue
		}
		key := budgetdomain.Key{EntityType: b.EntityType, EntityID: b.EntityID}
		owner := owners[key]
		if sellerID != nil && (owner == nil || *owner != *sellerID) {
			continue
		}
		views = append(views, BudgetView{HierarchicalBudget: b, EntityName: names[key], SellerID: owner})
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		if na, nb := strings.ToLower(a.EntityName), strings.ToLower(b.EntityName); na != nb {
			return na < nb
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Month < b.Month
	})
	return views
}

func comparisonRows(res rollup.Result, groupBy GroupBy, cfg config.BudgetConfig) []ComparisonRow {
	rows := make([]ComparisonRow, 0)
	for _, seller := range res.Sellers {
		sellerID := seller.ID
		switch groupBy {
		case GroupBySeller:
			rows = append(rows, newRow(seller.ID, seller.Name, budgetdomain.EntitySeller, nil, "", seller.Totals, cfg))
		case GroupByAgency:
			for _, agency := range seller.Agencies {
				rows = append(rows, newRow(agency.ID, agency.Name, budgetdomain.EntityAgency, &sellerID, seller.Name, agency.Totals, cfg))
			}
		case GroupByAdvertiser:
			for _, adv := range seller.DirectAdvertisers {
				rows = append(rows, newRow(adv.ID, adv.Name, budgetdomain.EntityAdvertiser, &sellerID, seller.Name, adv.Totals, cfg))
			}
			for _, agency := range seller.Agencies {
				for _, adv := range agency.Advertisers {
					rows = append(rows, newRow(adv.ID, adv.Name, budgetdomain.EntityAdvertiser, &sellerID, seller.Name, adv.Totals, cfg))
				}
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].Name), strings.ToLower(rows[j].Name)
		if a != b {
			return a < b
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

func newRow(id snowflake.ID, name string, entityType budgetdomain.EntityType, sellerID *snowflake.ID, sellerName string, t rollup.Totals, cfg config.BudgetConfig) ComparisonRow {
	return ComparisonRow{
		ID:                  id,
		Name:                name,
		EntityType:          entityType.String(),
		SellerID:            sellerID,
		SellerName:          sellerName,
		BudgetAmount:        t.BudgetAmount,
		ActualAmount:        t.ActualAmount,
		CompareBudgetAmount: t.PreviousBudget,
		CompareActualAmount: t.PreviousActual,
		Variance:            t.Variance,
		VariancePercent:     VariancePercent(t.Variance, t.BudgetAmount),
		Growth:              t.Growth,
		WeightedPipeline:    t.WeightedPipeline,
		Status:              Classify(t.BudgetAmount, t.ActualAmount, cfg),
	}
}

func summarize(total rollup.Totals, rows []ComparisonRow, cfg config.BudgetConfig) ComparisonSummary {
	counts := map[Status]int{
		StatusOnTrack:  0,
		StatusAtRisk:   0,
		StatusBehind:   0,
		StatusNoBudget: 0,
	}
	for _, row := range rows {
		counts[row.Status]++
	}
	return ComparisonSummary{
		BudgetAmount:        total.BudgetAmount,
		ActualAmount:        total.ActualAmount,
		CompareBudgetAmount: total.PreviousBudget,
		CompareActualAmount: total.PreviousActual,
		Variance:            total.Variance,
		VariancePercent:     VariancePercent(total.Variance, total.BudgetAmount),
		Growth:              total.Growth,
		Status:              Classify(total.BudgetAmount, total.ActualAmount, cfg),
		StatusCounts:        counts,
	}
}

// Classify rates actual spend against budget using the configured ratios.
func Classify(budget, actual int64, cfg config.BudgetConfig) Status {
	if budget <= 0 {
		return StatusNoBudget
	}
	ratio := float64(actual) / float64(budget)
	switch {
	case ratio >= cfg.OnTrackRatio:
		return StatusOnTrack
	case ratio >= cfg.AtRiskRatio:
		return StatusAtRisk
	default:
		return StatusBehind
	}
}

// VariancePercent is variance as a percentage of budget, nil without a budget.
func VariancePercent(variance, budget int64) *float64 {
	if budget == 0 {
		return nil
	}
	p := float64(variance) / float64(budget) * 100
	return &p
}
