package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
)

type createAdvertiserRequest struct {
	Name     string `json:"name"`
	AgencyID string `json:"agencyId"`
	SellerID string `json:"sellerId"`
	IsActive *bool  `json:"isActive"`
}

type updateAdvertiserRequest struct {
	Name     *string `json:"name"`
	AgencyID *string `json:"agencyId"`
	SellerID *string `json:"sellerId"`
	IsActive *bool   `json:"isActive"`
}

func (s *Server) CreateAdvertiser(c *gin.Context) {
	var req createAdvertiserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.advertiserSvc.Create(ctx, advertiserdomain.CreateAdvertiserRequest{
		Name:     strings.TrimSpace(req.Name),
		AgencyID: strings.TrimSpace(req.AgencyID),
		SellerID: strings.TrimSpace(req.SellerID),
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "advertiser.create", "advertiser", resp.ID, map[string]any{
		"name":      resp.Name,
		"agency_id": idString(resp.AgencyID),
		"seller_id": idString(resp.SellerID),
	})
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateAdvertiser(c *gin.Context) {
	var req updateAdvertiserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.advertiserSvc.Update(ctx, advertiserdomain.UpdateAdvertiserRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Name:     req.Name,
		AgencyID: req.AgencyID,
		SellerID: req.SellerID,
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "advertiser.update", "advertiser", resp.ID, map[string]any{
		"name":      resp.Name,
		"agency_id": idString(resp.AgencyID),
		"seller_id": idString(resp.SellerID),
		"is_active": resp.IsActive,
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAdvertisers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		SellerID string `form:"sellerId"`
		AgencyID string `form:"agencyId"`
		Active   string `form:"active"`
		Name     string `form:"name"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := activeParam(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.advertiserSvc.List(c.Request.Context(), advertiserdomain.ListAdvertiserRequest{
		Pagination: query.Pagination,
		SellerID:   strings.TrimSpace(query.SellerID),
		AgencyID:   strings.TrimSpace(query.AgencyID),
		Active:     active,
		Name:       strings.TrimSpace(query.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Advertisers, "page_info": resp.PageInfo})
}

func (s *Server) GetAdvertiserByID(c *gin.Context) {
	resp, err := s.advertiserSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isAdvertiserValidationError(err error) bool {
	switch {
	case errors.Is(err, advertiserdomain.ErrInvalidOrganization),
		errors.Is(err, advertiserdomain.ErrInvalidID),
		errors.Is(err, advertiserdomain.ErrInvalidName),
		errors.Is(err, advertiserdomain.ErrInvalidAgency),
		errors.Is(err, advertiserdomain.ErrInvalidSeller):
		return true
	default:
		return false
	}
}
