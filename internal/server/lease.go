package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	leasedomain "github.com/stayloop/stayloop/internal/lease/domain"
)

type createLeaseRequest struct {
	ListingID   string         `json:"listing_id"`
	TenantID    string         `json:"tenant_id"`
	MonthlyRent int64          `json:"monthly_rent"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) CreateLease(c *gin.Context) {
	var req createLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leaseSvc.Create(c.Request.Context(), leasedomain.CreateLeaseRequest{
		ListingID:   strings.TrimSpace(req.ListingID),
		TenantID:    strings.TrimSpace(req.TenantID),
		MonthlyRent: req.MonthlyRent,
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLeases(c *gin.Context) {
	var query struct {
		TenantID string `form:"tenant_id"`
		PageSize int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leaseSvc.List(c.Request.Context(), leasedomain.ListLeaseRequest{
		TenantID: strings.TrimSpace(query.TenantID),
		PageSize: query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLeaseByID(c *gin.Context) {
	resp, err := s.leaseSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isLeaseValidationError(err error) bool {
	switch err {
	case leasedomain.ErrInvalidListing,
		leasedomain.ErrInvalidTenant,
		leasedomain.ErrInvalidRent,
		leasedomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
