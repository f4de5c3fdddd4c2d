package models

import (
	"encoding/json"
	"time"
)

// Auction event types recorded alongside each state change
const (
	AuctionEventCreated         = "auction_created"
	AuctionEventBidPlaced       = "bid_placed"
	AuctionEventBidUpdated      = "bid_updated"
	AuctionEventBidWithdrawn    = "bid_withdrawn"
	AuctionEventClaimed         = "auction_claimed"
	AuctionEventClaimReleased   = "claim_released"
	AuctionEventAwarded         = "auction_awarded"
	AuctionEventClosedUnawarded = "auction_closed_unawarded"
	AuctionEventArchived        = "auction_archived"
	AuctionEventDriverAttached  = "driver_attached"
)

// AuctionEvent is an append-only lifecycle entry for an auction
type AuctionEvent struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AuctionID   uint            `gorm:"not null;index:idx_auction_events_auction_id" json:"auction_id"`
	BidNumber   string          `gorm:"size:64;not null;index:idx_auction_events_bid_number" json:"bid_number"`
	Type        string          `gorm:"size:32;not null;index:idx_auction_events_type" json:"type"`
	CarrierID   *string         `gorm:"size:64" json:"carrier_id,omitempty"`
	AmountCents *int64          `json:"amount_cents,omitempty"`
	RequestID   *string         `gorm:"size:255" json:"request_id,omitempty"`
	Metadata    json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;index:idx_auction_events_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (AuctionEvent) TableName() string {
	return "auction_events"
}

// AuctionEventFilter represents filter criteria for event queries
type AuctionEventFilter struct {
	AuctionID *uint
	BidNumber *string
	Type      *string
	CarrierID *string
}

// AllModels lists every persisted model, in dependency order, for migrations and test setup
func AllModels() []any {
	return []any{
		&Auction{},
		&CarrierBid{},
		&AuctionAward{},
		&ArchivedAuction{},
		&AuctionEvent{},
	}
}
