package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("lease_not_found")
	ErrInvalidListing = errors.New("invalid_listing")
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidRent    = errors.New("invalid_rent")
	ErrInvalidID      = errors.New("invalid_id")
)

type CreateLeaseRequest struct {
	ListingID   string         `json:"listing_id"`
	TenantID    string         `json:"tenant_id"`
	MonthlyRent int64          `json:"monthly_rent"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ListLeaseRequest struct {
	TenantID string
	PageSize int32
}

type ListLeaseResponse struct {
	Leases []Lease `json:"leases"`
}

type Service interface {
	Create(ctx context.Context, req CreateLeaseRequest) (Lease, error)
	GetByID(ctx context.Context, id string) (Lease, error)
	List(ctx context.Context, req ListLeaseRequest) (ListLeaseResponse, error)
}
