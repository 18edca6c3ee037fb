package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("listing_not_found")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidUnitType = errors.New("invalid_unit_type")
	ErrInvalidOwner    = errors.New("invalid_owner")
	ErrInvalidID       = errors.New("invalid_id")
)

type CreateListingRequest struct {
	OwnerID      string         `json:"owner_id"`
	Title        string         `json:"title"`
	City         string         `json:"city"`
	UnitType     string         `json:"unit_type"`
	Rooms        int            `json:"rooms"`
	Beds         int            `json:"beds"`
	BedroomLabel string         `json:"bedroom_label"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type ListListingRequest struct {
	OwnerID  string
	PageSize int32
}

type ListListingResponse struct {
	Listings []Listing `json:"listings"`
}

type Service interface {
	Create(ctx context.Context, req CreateListingRequest) (Listing, error)
	GetByID(ctx context.Context, id string) (Listing, error)
	List(ctx context.Context, req ListListingRequest) (ListListingResponse, error)
}
