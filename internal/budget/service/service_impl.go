package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/podbudget/internal/authorization"
	"github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/smallbiznis/podbudget/internal/observability/metrics"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/internal/ownership"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	Ownership    *ownership.Resolver
	BudgetConfig *config.BudgetConfigHolder
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	ownership    *ownership.Resolver
	budgetConfig *config.BudgetConfigHolder
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("budget.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		ownership:    p.Ownership,
		budgetConfig: p.BudgetConfig,
		metrics:      p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBudgetRequest) (domain.HierarchicalBudget, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	budget, err := s.newBudget(member, req)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}

	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.checkEntity(ctx, tx, orgID, member, budget.EntityType, budget.EntityID); err != nil {
			return err
		}
		existing, err := s.repo.FindByKey(ctx, tx, budget.Key())
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyExists
		}
		return s.insert(ctx, tx, &budget)
	})
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	s.metrics.RecordBudgetWrite(ctx, orgID.String(), "create", 1)
	return budget, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateBudgetRequest) (domain.HierarchicalBudget, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	id, err := parseRequiredID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	if req.BudgetAmount != nil && *req.BudgetAmount < 0 {
		return domain.HierarchicalBudget{}, domain.ErrInvalidBudgetAmount
	}
	if req.ActualAmount != nil && *req.ActualAmount < 0 {
		return domain.HierarchicalBudget{}, domain.ErrInvalidActualAmount
	}

	var updated domain.HierarchicalBudget
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		budget, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if budget == nil {
			return domain.ErrNotFound
		}
		if err := s.authorizeRow(ctx, tx, orgID, member, *budget); err != nil {
			return err
		}
		if req.BudgetAmount != nil {
			budget.BudgetAmount = *req.BudgetAmount
		}
		if req.ActualAmount != nil {
			budget.ActualAmount = *req.ActualAmount
		}
		if req.Notes != nil {
			budget.Notes = strings.TrimSpace(*req.Notes)
		}
		budget.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, budget); err != nil {
			return err
		}
		updated = *budget
		return nil
	})
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	s.metrics.RecordBudgetWrite(ctx, orgID.String(), "update", 1)
	return updated, nil
}

// BatchUpdate validates every item before opening the tenant scope, then
// upserts them in one transaction. Any failure rolls back the whole batch.
func (s *Service) BatchUpdate(ctx context.Context, req domain.BatchUpdateRequest) (domain.BatchUpdateResponse, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.BatchUpdateResponse{}, err
	}
	if len(req.Items) == 0 || len(req.Items) > domain.MaxBatchItems {
		return domain.BatchUpdateResponse{}, domain.ErrInvalidItems
	}

	candidates := make([]domain.HierarchicalBudget, 0, len(req.Items))
	seen := make(map[domain.Key]int, len(req.Items))
	for i, item := range req.Items {
		budget, err := s.newBudget(member, item)
		if err != nil {
			return domain.BatchUpdateResponse{}, &domain.ItemError{Index: i, Err: err}
		}
		if _, dup := seen[budget.Key()]; dup {
			return domain.BatchUpdateResponse{}, &domain.ItemError{Index: i, Err: domain.ErrAlreadyExists}
		}
		seen[budget.Key()] = i
		candidates = append(candidates, budget)
	}

	var resp domain.BatchUpdateResponse
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		resp = domain.BatchUpdateResponse{Budgets: make([]domain.HierarchicalBudget, 0, len(candidates))}
		for i := range candidates {
			candidate := candidates[i]
			if err := s.checkEntity(ctx, tx, orgID, member, candidate.EntityType, candidate.EntityID); err != nil {
				return &domain.ItemError{Index: i, Err: err}
			}
			existing, err := s.repo.FindByKey(ctx, tx, candidate.Key())
			if err != nil {
				return err
			}
			if existing == nil {
				if err := s.insert(ctx, tx, &candidate); err != nil {
					return &domain.ItemError{Index: i, Err: err}
				}
				resp.Created++
				resp.Budgets = append(resp.Budgets, candidate)
				continue
			}

			existing.BudgetAmount = candidate.BudgetAmount
			existing.ActualAmount = candidate.ActualAmount
			existing.Notes = candidate.Notes
			existing.UpdatedAt = candidate.UpdatedAt
			if err := s.repo.Update(ctx, tx, existing); err != nil {
				return err
			}
			resp.Updated++
			resp.Budgets = append(resp.Budgets, *existing)
		}
		return nil
	})
	if err != nil {
		return domain.BatchUpdateResponse{}, err
	}

	s.metrics.RecordBudgetWrite(ctx, orgID.String(), "batch_create", resp.Created)
	s.metrics.RecordBudgetWrite(ctx, orgID.String(), "batch_update", resp.Updated)
	s.log.Info("budget batch applied",
		zap.String("org_id", orgID.String()),
		zap.Int("created", resp.Created),
		zap.Int("updated", resp.Updated),
	)
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) (domain.HierarchicalBudget, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	budgetID, err := parseRequiredID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}

	var deleted domain.HierarchicalBudget
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		budget, err := s.repo.FindByID(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return domain.ErrNotFound
		}
		if err := s.authorizeRow(ctx, tx, orgID, member, *budget); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, budget.ID); err != nil {
			return err
		}
		deleted = *budget
		return nil
	})
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	s.metrics.RecordBudgetWrite(ctx, orgID.String(), "delete", 1)
	return deleted, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.HierarchicalBudget, error) {
	orgID, member, err := actorFromContext(ctx)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	budgetID, err := parseRequiredID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}

	var result domain.HierarchicalBudget
	err = tenant.Scope(ctx, s.db, func(tx *gorm.DB) error {
		budget, err := s.repo.FindByID(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return domain.ErrNotFound
		}
		if err := s.authorizeRow(ctx, tx, orgID, member, *budget); err != nil {
			return err
		}
		result = *budget
		return nil
	})
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	return result, nil
}

func (s *Service) newBudget(member orgcontext.Member, req domain.CreateBudgetRequest) (domain.HierarchicalBudget, error) {
	entityType := domain.EntityType(strings.ToLower(strings.TrimSpace(req.EntityType)))
	if !entityType.Valid() {
		return domain.HierarchicalBudget{}, domain.ErrInvalidEntityType
	}
	entityID, err := parseRequiredID(req.EntityID, domain.ErrInvalidEntityID)
	if err != nil {
		return domain.HierarchicalBudget{}, err
	}
	if err := domain.ValidatePeriod(s.budgetConfig.Get(), req.Year, &req.Month); err != nil {
		return domain.HierarchicalBudget{}, err
	}
	if req.BudgetAmount < 0 {
		return domain.HierarchicalBudget{}, domain.ErrInvalidBudgetAmount
	}
	if req.ActualAmount < 0 {
		return domain.HierarchicalBudget{}, domain.ErrInvalidActualAmount
	}

	now := time.Now().UTC()
	createdBy := member.UserID
	return domain.HierarchicalBudget{
		ID:           s.genID.Generate(),
		EntityType:   entityType,
		EntityID:     entityID,
		Year:         req.Year,
		Month:        req.Month,
		BudgetAmount: req.BudgetAmount,
		ActualAmount: req.ActualAmount,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedBy:    &createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, budget *domain.HierarchicalBudget) error {
	if err := s.repo.Insert(ctx, tx, budget); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Service) checkEntity(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, member orgcontext.Member, entityType domain.EntityType, entityID snowflake.ID) error {
	owned, err := s.ownership.CheckEntity(ctx, tx, orgID, member, string(entityType), entityID)
	switch {
	case errors.Is(err, ownership.ErrEntityNotFound):
		return domain.ErrEntityNotFound
	case errors.Is(err, ownership.ErrUnknownEntityType):
		return domain.ErrInvalidEntityType
	case err != nil:
		return err
	case !owned:
		return authorization.ErrForbidden
	}
	return nil
}

// authorizeRow lets managers act on any row, including rows whose entity no
// longer exists. Restricted members need to own the entity.
func (s *Service) authorizeRow(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, member orgcontext.Member, budget domain.HierarchicalBudget) error {
	if !member.Restricted() {
		return nil
	}
	err := s.checkEntity(ctx, tx, orgID, member, budget.EntityType, budget.EntityID)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return authorization.ErrForbidden
	}
	return err
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
