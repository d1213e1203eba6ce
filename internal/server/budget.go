package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/budget/report"
	"github.com/smallbiznis/podbudget/internal/ownership"
)

type hierarchicalQuery struct {
	Year       string `form:"year"`
	Month      string `form:"month"`
	SellerID   string `form:"sellerId"`
	EntityType string `form:"entityType"`
}

type comparisonQuery struct {
	Year        string `form:"year"`
	CompareYear string `form:"compareYear"`
	Month       string `form:"month"`
	SellerID    string `form:"sellerId"`
	GroupBy     string `form:"groupBy"`
}

func (s *Server) GetHierarchicalBudgets(c *gin.Context) {
	var query hierarchicalQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	year, month, err := periodParams(query.Year, query.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.Hierarchical(c.Request.Context(), report.HierarchicalRequest{
		Year:       year,
		Month:      month,
		SellerID:   strings.TrimSpace(query.SellerID),
		EntityType: strings.TrimSpace(query.EntityType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBudgetComparison(c *gin.Context) {
	var query comparisonQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	year, month, err := periodParams(query.Year, query.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	compareYear, err := optionalParam(query.CompareYear, strconv.Atoi)
	if err != nil {
		AbortWithError(c, report.ErrInvalidCompareYear)
		return
	}

	resp, err := s.reportSvc.Comparison(c.Request.Context(), report.ComparisonRequest{
		Year:        year,
		CompareYear: compareYear,
		Month:       month,
		SellerID:    strings.TrimSpace(query.SellerID),
		GroupBy:     strings.TrimSpace(query.GroupBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetHierarchicalBudgetByID(c *gin.Context) {
	resp, err := s.budgetSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateHierarchicalBudget(c *gin.Context) {
	var req budgetdomain.CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.budgetSvc.Create(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "budget.create", "hierarchical_budget", resp.ID, budgetAuditMetadata(resp))
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateHierarchicalBudget(c *gin.Context) {
	var req budgetdomain.UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	ctx := c.Request.Context()
	resp, err := s.budgetSvc.Update(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "budget.update", "hierarchical_budget", resp.ID, budgetAuditMetadata(resp))
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BatchUpdateHierarchicalBudgets(c *gin.Context) {
	var req budgetdomain.BatchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.budgetSvc.BatchUpdate(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	for _, b := range resp.Budgets {
		meta := budgetAuditMetadata(b)
		meta["batch"] = true
		s.audit(ctx, "budget.batch_update", "hierarchical_budget", b.ID, meta)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteHierarchicalBudget(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := s.budgetSvc.Delete(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "budget.delete", "hierarchical_budget", resp.ID, budgetAuditMetadata(resp))
	c.Status(http.StatusNoContent)
}

func budgetAuditMetadata(b budgetdomain.HierarchicalBudget) map[string]any {
	return map[string]any{
		"entity_type":   b.EntityType.String(),
		"entity_id":     b.EntityID.String(),
		"year":          b.Year,
		"month":         b.Month,
		"budget_amount": b.BudgetAmount,
		"actual_amount": b.ActualAmount,
	}
}

func isBudgetValidationError(err error) bool {
	switch {
	case errors.Is(err, budgetdomain.ErrInvalidOrganization),
		errors.Is(err, budgetdomain.ErrInvalidID),
		errors.Is(err, budgetdomain.ErrInvalidEntityType),
		errors.Is(err, budgetdomain.ErrInvalidEntityID),
		errors.Is(err, budgetdomain.ErrInvalidYear),
		errors.Is(err, budgetdomain.ErrInvalidMonth),
		errors.Is(err, budgetdomain.ErrInvalidBudgetAmount),
		errors.Is(err, budgetdomain.ErrInvalidActualAmount),
		errors.Is(err, budgetdomain.ErrInvalidItems),
		errors.Is(err, ownership.ErrUnknownEntityType),
		errors.Is(err, report.ErrInvalidGroupBy),
		errors.Is(err, report.ErrInvalidCompareYear),
		errors.Is(err, report.ErrInvalidSeller):
		return true
	default:
		return false
	}
}
