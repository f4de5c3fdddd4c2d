package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/freight-bidding/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BidStatus represents the lifecycle status of a carrier bid
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusCountered BidStatus = "countered"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

// EligibleBidStatuses are the statuses that compete for an award
var EligibleBidStatuses = []BidStatus{BidStatusPending, BidStatusCountered, BidStatusAccepted}

// String returns the string representation of the status
func (s BidStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s BidStatus) Valid() bool {
	switch s {
	case BidStatusPending, BidStatusCountered, BidStatusAccepted,
		BidStatusRejected, BidStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Eligible reports whether a bid in this status competes for the award
func (s BidStatus) Eligible() bool {
	for _, e := range EligibleBidStatuses {
		if s == e {
			return true
		}
	}
	return false
}

// Scan implements the sql.Scanner interface for BidStatus
func (s *BidStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = BidStatus(v)
	case []byte:
		*s = BidStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BidStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for BidStatus
func (s BidStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BidStatus: %s", s)
	}
	return string(s), nil
}

// DriverInfo is the driver/equipment metadata a carrier attaches after winning
type DriverInfo struct {
	DriverName    string `json:"driver_name,omitempty"`
	DriverPhone   string `json:"driver_phone,omitempty"`
	TruckNumber   string `json:"truck_number,omitempty"`
	TrailerNumber string `json:"trailer_number,omitempty"`
	EquipmentType string `json:"equipment_type,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// CarrierBid is one carrier's offer against one auction. At most one row exists per (auction, carrier).
type CarrierBid struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_carrier_bids_uuid" json:"uuid"`
	AuctionID          uint            `gorm:"not null;uniqueIndex:uk_carrier_bids_auction_carrier,priority:1" json:"auction_id"`
	CarrierID          string          `gorm:"size:64;not null;uniqueIndex:uk_carrier_bids_auction_carrier,priority:2;index:idx_carrier_bids_carrier_id" json:"carrier_id"`
	BidNumber          string          `gorm:"size:64;not null;index:idx_carrier_bids_bid_number" json:"bid_number"`
	AmountCents        int64           `gorm:"not null" json:"amount_cents"`
	CounterAmountCents *int64          `json:"counter_amount_cents,omitempty"`
	Status             BidStatus       `gorm:"size:16;not null;index:idx_carrier_bids_status" json:"status"`
	Notes              *string         `gorm:"type:text" json:"notes,omitempty"`
	DriverInfo         json.RawMessage `gorm:"type:jsonb" json:"driver_info,omitempty"`
	SubmittedAt        time.Time       `gorm:"not null" json:"submitted_at"`
	WithdrawnAt        *time.Time      `json:"withdrawn_at,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`

	// Relations
	Auction *Auction `gorm:"foreignKey:AuctionID;references:ID" json:"-"`
}

// TableName returns the table name for the model
func (CarrierBid) TableName() string {
	return "carrier_bids"
}

// BeforeCreate is called before creating a new record
func (b *CarrierBid) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BidStatusPending
	}
	now := utils.UTCNow()
	if b.SubmittedAt.IsZero() {
		b.SubmittedAt = now
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.SubmittedAt
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.SubmittedAt
	}
	return nil
}

// IsEligible reports whether the bid competes for the award
func (b *CarrierBid) IsEligible() bool {
	return b.Status.Eligible()
}

// IsLive reports whether the bid has not been withdrawn
func (b *CarrierBid) IsLive() bool {
	return b.Status != BidStatusWithdrawn
}

// Driver decodes the attached driver info, if any
func (b *CarrierBid) Driver() (*DriverInfo, error) {
	if len(b.DriverInfo) == 0 || string(b.DriverInfo) == "null" {
		return nil, nil
	}
	var info DriverInfo
	if err := json.Unmarshal(b.DriverInfo, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CarrierBidFilter represents filter criteria for bid queries
type CarrierBidFilter struct {
	ID        *uint
	AuctionID *uint
	BidNumber *string
	CarrierID *string
	Status    *BidStatus
	Statuses  []BidStatus
}
