package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ArchivedBid is the snapshot of one bid copied into an archive record
type ArchivedBid struct {
	ID                 uint       `json:"id"`
	CarrierID          string     `json:"carrier_id"`
	AmountCents        int64      `json:"amount_cents"`
	CounterAmountCents *int64     `json:"counter_amount_cents,omitempty"`
	Status             BidStatus  `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	SubmittedAt        time.Time  `json:"submitted_at"`
	WithdrawnAt        *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ArchivedBidList is the full bid history of an archived auction, stored as JSON
type ArchivedBidList []ArchivedBid

// Value implements the driver.Valuer interface for ArchivedBidList
func (l ArchivedBidList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ArchivedBid(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for ArchivedBidList
func (l *ArchivedBidList) Scan(value any) error {
	if value == nil {
		*l = ArchivedBidList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ArchivedBidList", value)
	}
	var bids []ArchivedBid
	if err := json.Unmarshal(bytes, &bids); err != nil {
		return err
	}
	*l = bids
	return nil
}

// ArchivedAuction is the denormalized long-term record of a closed auction
type ArchivedAuction struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	BidNumber          string          `gorm:"size:64;not null;uniqueIndex:uk_archived_auctions_bid_number" json:"bid_number"`
	AuctionID          uint            `gorm:"not null;index:idx_archived_auctions_auction_id" json:"auction_id"`
	DistanceMiles      *int            `gorm:"index:idx_archived_auctions_distance" json:"distance_miles,omitempty"`
	PickupAt           *time.Time      `json:"pickup_at,omitempty"`
	DeliveryAt         *time.Time      `json:"delivery_at,omitempty"`
	Stops              StopList        `gorm:"type:text;not null" json:"stops"`
	Tag                *string         `gorm:"size:32" json:"tag,omitempty"`
	StateTag           string          `gorm:"size:32;not null;index:idx_archived_auctions_state_tag" json:"state_tag"`
	SourceChannel      *string         `gorm:"size:128" json:"source_channel,omitempty"`
	ReceivedAt         time.Time       `gorm:"not null;index:idx_archived_auctions_received_at" json:"received_at"`
	WindowClosesAt     time.Time       `gorm:"not null" json:"window_closes_at"`
	ClosedAt           time.Time       `gorm:"not null" json:"closed_at"`
	Outcome            AuctionOutcome  `gorm:"size:16;not null" json:"outcome"`
	WinnerCarrierID    *string         `gorm:"size:64" json:"winner_carrier_id,omitempty"`
	WinnerAmountCents  *int64          `json:"winner_amount_cents,omitempty"`
	BidCount           int             `gorm:"not null" json:"bid_count"`
	TotalBidCount      int             `gorm:"not null" json:"total_bid_count"`
	LowestAmountCents  *int64          `json:"lowest_amount_cents,omitempty"`
	HighestAmountCents *int64          `json:"highest_amount_cents,omitempty"`
	AverageAmountCents *int64          `json:"average_amount_cents,omitempty"`
	HoursActive        float64         `gorm:"not null" json:"hours_active"`
	Bids               ArchivedBidList `gorm:"type:jsonb;not null" json:"bids"`
	ArchivedAt         time.Time       `gorm:"not null;index:idx_archived_auctions_archived_at" json:"archived_at"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName returns the table name for the model
func (ArchivedAuction) TableName() string {
	return "archived_auctions"
}

// ArchivedAuctionFilter represents filter criteria for archive queries
type ArchivedAuctionFilter struct {
	BidNumber      *string
	BidNumberLike  *string
	StateTag       *string
	City           *string // case-insensitive substring of any stop
	SourceChannel  *string
	Outcome        *AuctionOutcome
	WinnerCarrier  *string
	ReceivedFrom   *time.Time
	ReceivedTo     *time.Time
	MinDistance    *int
	MaxDistance    *int
	ArchivedAfter  *time.Time
	ArchivedBefore *time.Time
}
