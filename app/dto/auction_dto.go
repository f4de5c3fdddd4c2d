package dto

import (
	"time"
)

// CreateAuctionRequest is sent by the ingestion collaborator for every new load posting
type CreateAuctionRequest struct {
	BidNumber     string     `json:"bid_number" validate:"required,max=64"`
	DistanceMiles *int       `json:"distance_miles,omitempty" validate:"omitempty,min=0"`
	PickupAt      *time.Time `json:"pickup_at,omitempty"`
	DeliveryAt    *time.Time `json:"delivery_at,omitempty"`
	Stops         []string   `json:"stops,omitempty" validate:"omitempty,max=50,dive,max=255"`
	Tag           *string    `json:"tag,omitempty" validate:"omitempty,max=32"`
	SourceChannel *string    `json:"source_channel,omitempty" validate:"omitempty,max=128"`
	ReceivedAt    *time.Time `json:"received_at,omitempty"`
}

// CreateAuctionResponse reports whether the posting created a new auction
type CreateAuctionResponse struct {
	Created bool       `json:"created"`
	Auction AuctionDTO `json:"auction"`
}

// AuctionDTO is the public view of an auction
type AuctionDTO struct {
	ID                uint     `json:"id"`
	BidNumber         string   `json:"bid_number"`
	DistanceMiles     *int     `json:"distance_miles,omitempty"`
	PickupAt          *string  `json:"pickup_at,omitempty"`
	DeliveryAt        *string  `json:"delivery_at,omitempty"`
	Stops             []string `json:"stops"`
	StopsCount        int      `json:"stops_count"`
	Tag               *string  `json:"tag,omitempty"`
	SourceChannel     *string  `json:"source_channel,omitempty"`
	ReceivedAt        string   `json:"received_at"`
	WindowClosesAt    string   `json:"window_closes_at"`
	Status            string   `json:"status"`
	Outcome           *string  `json:"outcome,omitempty"`
	IsOpen            bool     `json:"is_open"`
	TimeLeftSeconds   int64    `json:"time_left_seconds"`
	BidsCount         int64    `json:"bids_count"`
	LowestAmountCents *int64   `json:"lowest_amount_cents,omitempty"`
	LowestAmount      *string  `json:"lowest_amount,omitempty"`
	ClosedAt          *string  `json:"closed_at,omitempty"`
	ArchivedAt        *string  `json:"archived_at,omitempty"`
}

// ListOpenAuctionsRequest filters the open auction board
type ListOpenAuctionsRequest struct {
	Q        string `json:"q,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// ListOpenAuctionsResponse is one page of the auction board
type ListOpenAuctionsResponse struct {
	Auctions   []AuctionDTO   `json:"auctions"`
	Pagination PaginationInfo `json:"pagination"`
}

// SubmitBidRequest carries a bid in cents or in dollars; cents win when both are set
type SubmitBidRequest struct {
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Amount      *string `json:"amount,omitempty" validate:"omitempty,max=32"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// SubmitBidResponse returns the stored bid after an upsert
type SubmitBidResponse struct {
	Created bool   `json:"created"`
	Bid     BidDTO `json:"bid"`
}

// DriverInfoDTO is driver/equipment metadata attached to a winning bid
type DriverInfoDTO struct {
	DriverName    string `json:"driver_name" validate:"required,max=128"`
	DriverPhone   string `json:"driver_phone,omitempty" validate:"omitempty,max=32"`
	TruckNumber   string `json:"truck_number,omitempty" validate:"omitempty,max=32"`
	TrailerNumber string `json:"trailer_number,omitempty" validate:"omitempty,max=32"`
	EquipmentType string `json:"equipment_type,omitempty" validate:"omitempty,max=64"`
	Notes         string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// BidDTO is the view of a carrier bid
type BidDTO struct {
	ID                 uint           `json:"id"`
	UUID               string         `json:"uuid"`
	BidNumber          string         `json:"bid_number"`
	CarrierID          string         `json:"carrier_id"`
	AmountCents        int64          `json:"amount_cents"`
	Amount             string         `json:"amount"`
	CounterAmountCents *int64         `json:"counter_amount_cents,omitempty"`
	Status             string         `json:"status"`
	Notes              *string        `json:"notes,omitempty"`
	DriverInfo         *DriverInfoDTO `json:"driver_info,omitempty"`
	SubmittedAt        string         `json:"submitted_at"`
	WithdrawnAt        *string        `json:"withdrawn_at,omitempty"`
	CreatedAt          string         `json:"created_at"`
	UpdatedAt          string         `json:"updated_at"`
}

// AwardDTO is the view of an auction award
type AwardDTO struct {
	BidNumber         string `json:"bid_number"`
	BidID             uint   `json:"bid_id"`
	WinnerCarrierID   string `json:"winner_carrier_id"`
	WinnerAmountCents int64  `json:"winner_amount_cents"`
	WinnerAmount      string `json:"winner_amount"`
	AwardedBy         string `json:"awarded_by"`
	AwardedAt         string `json:"awarded_at"`
}

// BidStatsDTO aggregates eligible bids
type BidStatsDTO struct {
	BidsCount          int64   `json:"bids_count"`
	TotalBidsCount     int64   `json:"total_bids_count"`
	LowestAmountCents  *int64  `json:"lowest_amount_cents,omitempty"`
	LowestCarrierID    *string `json:"lowest_carrier_id,omitempty"`
	HighestAmountCents *int64  `json:"highest_amount_cents,omitempty"`
	AverageAmountCents *int64  `json:"average_amount_cents,omitempty"`
}

// BidSummaryResponse is the full bid list and statistics for one auction
type BidSummaryResponse struct {
	Auction AuctionDTO  `json:"auction"`
	Bids    []BidDTO    `json:"bids"`
	Stats   BidStatsDTO `json:"stats"`
	UserBid *BidDTO     `json:"user_bid,omitempty"`
	Award   *AwardDTO   `json:"award,omitempty"`
}

// ListMyBidsResponse is a page of the caller's bids
type ListMyBidsResponse struct {
	Bids       []BidDTO       `json:"bids"`
	Pagination PaginationInfo `json:"pagination"`
}

// ListMyAwardsResponse is a page of the caller's awards
type ListMyAwardsResponse struct {
	Awards     []AwardDTO     `json:"awards"`
	Pagination PaginationInfo `json:"pagination"`
}

// AuctionEventDTO is one lifecycle log entry
type AuctionEventDTO struct {
	ID          uint    `json:"id"`
	Type        string  `json:"type"`
	CarrierID   *string `json:"carrier_id,omitempty"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	RequestID   *string `json:"request_id,omitempty"`
	Metadata    any     `json:"metadata,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// ListAuctionEventsResponse is a page of an auction's lifecycle log
type ListAuctionEventsResponse struct {
	BidNumber  string            `json:"bid_number"`
	Events     []AuctionEventDTO `json:"events"`
	Pagination PaginationInfo    `json:"pagination"`
}
