package dto

import (
	"time"
)

// ListArchiveRequest filters archive records. Date bounds apply to received_at.
type ListArchiveRequest struct {
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	Tag           string     `json:"tag,omitempty"`
	Q             string     `json:"q,omitempty"`
	City          string     `json:"city,omitempty" validate:"omitempty,max=128"`
	SourceChannel string     `json:"source_channel,omitempty" validate:"omitempty,max=128"`
	Outcome       string     `json:"outcome,omitempty" validate:"omitempty,oneof=awarded unawarded"`
	MinDistance   *int       `json:"min_distance,omitempty" validate:"omitempty,min=0"`
	MaxDistance   *int       `json:"max_distance,omitempty" validate:"omitempty,min=0"`
	Page          int        `json:"page"`
	PageSize      int        `json:"page_size"`
}

// ArchivedBidDTO is one bid inside an archive record
type ArchivedBidDTO struct {
	CarrierID   string  `json:"carrier_id"`
	AmountCents int64   `json:"amount_cents"`
	Amount      string  `json:"amount"`
	Status      string  `json:"status"`
	Notes       *string `json:"notes,omitempty"`
	SubmittedAt string  `json:"submitted_at"`
	WithdrawnAt *string `json:"withdrawn_at,omitempty"`
}

// ArchivedAuctionDTO is the view of an archive record
type ArchivedAuctionDTO struct {
	BidNumber          string           `json:"bid_number"`
	DistanceMiles      *int             `json:"distance_miles,omitempty"`
	PickupAt           *string          `json:"pickup_at,omitempty"`
	DeliveryAt         *string          `json:"delivery_at,omitempty"`
	Stops              []string         `json:"stops"`
	Tag                *string          `json:"tag,omitempty"`
	StateTag           string           `json:"state_tag"`
	SourceChannel      *string          `json:"source_channel,omitempty"`
	ReceivedAt         string           `json:"received_at"`
	ClosedAt           string           `json:"closed_at"`
	ArchivedAt         string           `json:"archived_at"`
	HoursActive        float64          `json:"hours_active"`
	Outcome            string           `json:"outcome"`
	WinnerCarrierID    *string          `json:"winner_carrier_id,omitempty"`
	WinnerAmountCents  *int64           `json:"winner_amount_cents,omitempty"`
	BidCount           int              `json:"bid_count"`
	TotalBidCount      int              `json:"total_bid_count"`
	LowestAmountCents  *int64           `json:"lowest_amount_cents,omitempty"`
	HighestAmountCents *int64           `json:"highest_amount_cents,omitempty"`
	AverageAmountCents *int64           `json:"average_amount_cents,omitempty"`
	Bids               []ArchivedBidDTO `json:"bids,omitempty"`
}

// ListArchiveResponse is one page of archive records
type ListArchiveResponse struct {
	Records    []ArchivedAuctionDTO `json:"records"`
	Pagination PaginationInfo       `json:"pagination"`
}

// RunArchiveRequest triggers an archive pass; zero grace uses the configured default
type RunArchiveRequest struct {
	OlderThanMinutes *int `json:"older_than_minutes,omitempty" validate:"omitempty,min=0,max=100000"`
}

// RunArchiveResponse reports the outcome of an archive pass
type RunArchiveResponse struct {
	Archived int      `json:"archived"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// ArchiveStatisticsResponse summarizes the archive store
type ArchiveStatisticsResponse struct {
	TotalAuctions    int64   `json:"total_auctions"`
	ArchivedAuctions int64   `json:"archived_auctions"`
	ActiveAuctions   int64   `json:"active_auctions"`
	ArchiveDays      int64   `json:"archive_days"`
	EarliestArchive  *string `json:"earliest_archive,omitempty"`
	LatestArchive    *string `json:"latest_archive,omitempty"`
}

// ArchiveIntegrityResponse lists inconsistencies between auctions and the archive
type ArchiveIntegrityResponse struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
}
