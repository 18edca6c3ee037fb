// Package domain contains persistence models for rental listings and the
// service-charge obligation embedded in each one.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"gorm.io/datatypes"
)

// ServiceObligation is the recurring platform-fee tracker embedded in a
// listing. Status is a cached projection of DueAt against the clock;
// SuspendedAt is sticky until a payment clears it.
type ServiceObligation struct {
	RatePerPeriod     int64                            `gorm:"not null"`
	DueAt             time.Time                        `gorm:"not null;index"`
	Status            billingdomain.SubscriptionStatus `gorm:"type:text;not null"`
	GracePeriodEndsAt *time.Time                       `gorm:""`
	SuspendedAt       *time.Time                       `gorm:""`
	SuspensionReason  *string                          `gorm:"type:text"`
	LastPaymentAt     *time.Time                       `gorm:""`
}

// Listing is a rental unit listed by an owner.
type Listing struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	OwnerID      snowflake.ID `gorm:"not null;index"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex"`
	Title        string       `gorm:"type:text;not null"`
	City         string       `gorm:"type:text"`
	UnitType     string       `gorm:"type:text;not null"`
	Rooms        int          `gorm:"not null;default:0"`
	Beds         int          `gorm:"not null;default:0"`
	BedroomLabel string       `gorm:"type:text"`
	Active       bool         `gorm:"not null;default:true"`

	Obligation ServiceObligation `gorm:"embedded"`
	Ledger     []ServiceEntry    `gorm:"foreignKey:ListingID"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Listing) TableName() string { return "listings" }

// EntryStatusCompleted is the only entry status: records are appended after
// successful gateway verification and never mutated.
const EntryStatusCompleted = "completed"

// ServiceEntry is one applied service-charge payment. Immutable once created.
type ServiceEntry struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	ListingID         snowflake.ID `gorm:"not null;index"`
	Amount            int64        `gorm:"not null"`
	PeriodsCovered    int          `gorm:"not null"`
	ExternalPaymentID string       `gorm:"type:text;not null;uniqueIndex:ux_service_entries_payment"`
	ExternalOrderID   string       `gorm:"type:text;not null"`
	AppliedAt         time.Time    `gorm:"not null"`
	ValidUntil        time.Time    `gorm:"not null"`
	EntryStatus       string       `gorm:"type:text;not null;default:'completed'"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ServiceEntry) TableName() string { return "service_entries" }
