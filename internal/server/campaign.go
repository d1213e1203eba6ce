package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
)

type createCampaignRequest struct {
	Name         string `json:"name"`
	AdvertiserID string `json:"advertiserId"`
	BudgetAmount int64  `json:"budgetAmount"`
	Probability  *int   `json:"probability"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
}

type updateProbabilityRequest struct {
	Probability *int `json:"probability"`
}

func (s *Server) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.campaignSvc.Create(ctx, campaigndomain.CreateCampaignRequest{
		Name:         strings.TrimSpace(req.Name),
		AdvertiserID: strings.TrimSpace(req.AdvertiserID),
		BudgetAmount: req.BudgetAmount,
		Probability:  req.Probability,
		StartDate:    strings.TrimSpace(req.StartDate),
		EndDate:      strings.TrimSpace(req.EndDate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "campaign.create", "campaign", resp.ID, map[string]any{
		"advertiser_id": resp.AdvertiserID.String(),
		"budget_amount": resp.BudgetAmount,
		"probability":   resp.Probability,
	})
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateCampaignProbability(c *gin.Context) {
	var req updateProbabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Probability == nil {
		AbortWithError(c, campaigndomain.ErrInvalidProbability)
		return
	}

	ctx := c.Request.Context()
	resp, err := s.campaignSvc.UpdateProbability(ctx, campaigndomain.UpdateProbabilityRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Probability: *req.Probability,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "campaign.update_probability", "campaign", resp.ID, map[string]any{
		"probability": resp.Probability,
		"status":      string(resp.Status),
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCampaigns(c *gin.Context) {
	var query struct {
		pagination.Pagination
		AdvertiserID string `form:"advertiserId"`
		Status       string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.campaignSvc.List(c.Request.Context(), campaigndomain.ListCampaignRequest{
		Pagination:   query.Pagination,
		AdvertiserID: strings.TrimSpace(query.AdvertiserID),
		Status:       strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Campaigns, "page_info": resp.PageInfo})
}

func (s *Server) GetCampaignByID(c *gin.Context) {
	resp, err := s.campaignSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isCampaignValidationError(err error) bool {
	switch {
	case errors.Is(err, campaigndomain.ErrInvalidOrganization),
		errors.Is(err, campaigndomain.ErrInvalidID),
		errors.Is(err, campaigndomain.ErrInvalidName),
		errors.Is(err, campaigndomain.ErrInvalidAdvertiser),
		errors.Is(err, campaigndomain.ErrInvalidBudgetAmount),
		errors.Is(err, campaigndomain.ErrInvalidProbability),
		errors.Is(err, campaigndomain.ErrInvalidStatus),
		errors.Is(err, campaigndomain.ErrInvalidStartDate),
		errors.Is(err, campaigndomain.ErrInvalidEndDate):
		return true
	default:
		return false
	}
}
