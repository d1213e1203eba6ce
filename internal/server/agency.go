package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
)

type createAgencyRequest struct {
	Name     string `json:"name"`
	SellerID string `json:"sellerId"`
}

type updateAgencyRequest struct {
	Name     *string `json:"name"`
	SellerID *string `json:"sellerId"`
}

func (s *Server) CreateAgency(c *gin.Context) {
	var req createAgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.agencySvc.Create(ctx, agencydomain.CreateAgencyRequest{
		Name:     strings.TrimSpace(req.Name),
		SellerID: strings.TrimSpace(req.SellerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "agency.create", "agency", resp.ID, map[string]any{
		"name":      resp.Name,
		"seller_id": idString(resp.SellerID),
	})
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateAgency(c *gin.Context) {
	var req updateAgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	resp, err := s.agencySvc.Update(ctx, agencydomain.UpdateAgencyRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Name:     req.Name,
		SellerID: req.SellerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(ctx, "agency.update", "agency", resp.ID, map[string]any{
		"name":      resp.Name,
		"seller_id": idString(resp.SellerID),
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAgencies(c *gin.Context) {
	var query struct {
		pagination.Pagination
		SellerID string `form:"sellerId"`
		Name     string `form:"name"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.agencySvc.List(c.Request.Context(), agencydomain.ListAgencyRequest{
		Pagination: query.Pagination,
		SellerID:   strings.TrimSpace(query.SellerID),
		Name:       strings.TrimSpace(query.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Agencies, "page_info": resp.PageInfo})
}

func (s *Server) GetAgencyByID(c *gin.Context) {
	resp, err := s.agencySvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func idString(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func isAgencyValidationError(err error) bool {
	switch {
	case errors.Is(err, agencydomain.ErrInvalidOrganization),
		errors.Is(err, agencydomain.ErrInvalidID),
		errors.Is(err, agencydomain.ErrInvalidName),
		errors.Is(err, agencydomain.ErrInvalidSeller):
		return true
	default:
		return false
	}
}
