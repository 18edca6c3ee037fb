package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	listingdomain "github.com/stayloop/stayloop/internal/listing/domain"
)

type createListingRequest struct {
	OwnerID      string         `json:"owner_id"`
	Title        string         `json:"title"`
	City         string         `json:"city"`
	UnitType     string         `json:"unit_type"`
	Rooms        int            `json:"rooms"`
	Beds         int            `json:"beds"`
	BedroomLabel string         `json:"bedroom_label"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) CreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.listingSvc.Create(c.Request.Context(), listingdomain.CreateListingRequest{
		OwnerID:      strings.TrimSpace(req.OwnerID),
		Title:        strings.TrimSpace(req.Title),
		City:         strings.TrimSpace(req.City),
		UnitType:     strings.TrimSpace(req.UnitType),
		Rooms:        req.Rooms,
		Beds:         req.Beds,
		BedroomLabel: strings.TrimSpace(req.BedroomLabel),
		Metadata:     req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListListings(c *gin.Context) {
	var query struct {
		OwnerID  string `form:"owner_id"`
		PageSize int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.listingSvc.List(c.Request.Context(), listingdomain.ListListingRequest{
		OwnerID:  strings.TrimSpace(query.OwnerID),
		PageSize: query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetListingByID(c *gin.Context) {
	resp, err := s.listingSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isListingValidationError(err error) bool {
	switch err {
	case listingdomain.ErrInvalidTitle,
		listingdomain.ErrInvalidUnitType,
		listingdomain.ErrInvalidOwner,
		listingdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
