package models

import (
	"time"
)

// AwardedByEngine marks awards produced by the expiration engine
const AwardedByEngine = "engine"

// AuctionAward is the resolved winner of a closed auction. One row per auction, never updated.
type AuctionAward struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	AuctionID         uint      `gorm:"not null;uniqueIndex:uk_auction_awards_auction_id" json:"auction_id"`
	BidNumber         string    `gorm:"size:64;not null;uniqueIndex:uk_auction_awards_bid_number" json:"bid_number"`
	BidID             uint      `gorm:"not null" json:"bid_id"`
	WinnerCarrierID   string    `gorm:"size:64;not null;index:idx_auction_awards_winner" json:"winner_carrier_id"`
	WinnerAmountCents int64     `gorm:"not null" json:"winner_amount_cents"`
	AwardedBy         string    `gorm:"size:32;not null" json:"awarded_by"`
	AwardedAt         time.Time `gorm:"not null;index:idx_auction_awards_awarded_at" json:"awarded_at"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for the model
func (AuctionAward) TableName() string {
	return "auction_awards"
}

// AuctionAwardFilter represents filter criteria for award queries
type AuctionAwardFilter struct {
	AuctionID       *uint
	BidNumber       *string
	WinnerCarrierID *string
	AwardedAfter    *time.Time
	AwardedBefore   *time.Time
}
