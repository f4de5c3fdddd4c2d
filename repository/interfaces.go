// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/amirphl/freight-bidding/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

var (
	// ErrDuplicateAward is returned when an award already exists for the auction
	ErrDuplicateAward = errors.New("award already exists for auction")
	// ErrStaleClaim is returned when a closing claim is no longer held by the caller
	ErrStaleClaim = errors.New("auction claim is no longer held")
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AuctionRepository defines operations for auctions and their closing state machine
type AuctionRepository interface {
	Repository[models.Auction, models.AuctionFilter]
	ByBidNumber(ctx context.Context, bidNumber string) (*models.Auction, error)
	ByBidNumberLocked(ctx context.Context, bidNumber string, strength string) (*models.Auction, error)
	ByIDLocked(ctx context.Context, id uint, strength string) (*models.Auction, error)
	CreateIfAbsent(ctx context.Context, auction *models.Auction) (bool, error)
	ListOpen(ctx context.Context, now time.Time, filter models.AuctionFilter, limit, offset int) ([]*models.Auction, error)
	CountOpen(ctx context.Context, now time.Time, filter models.AuctionFilter) (int64, error)
	ListDueForClosing(ctx context.Context, now, staleBefore time.Time, excludeIDs []uint, limit int) ([]*models.Auction, error)
	Claim(ctx context.Context, id uint, token string, now, staleBefore time.Time) (bool, error)
	MarkClosed(ctx context.Context, id uint, token string, outcome models.AuctionOutcome, now time.Time) error
	ReleaseClaim(ctx context.Context, id uint, token string, now time.Time) (bool, error)
	ListClosedForArchive(ctx context.Context, closedBefore time.Time, limit int) ([]*models.Auction, error)
	MarkArchived(ctx context.Context, id uint, now time.Time) (bool, error)
}

// BidAggregate is the per-auction summary over eligible bids
type BidAggregate struct {
	AuctionID   uint
	BidsCount   int64
	LowestCents *int64
}

// CarrierBidRepository defines operations for carrier bids
type CarrierBidRepository interface {
	Repository[models.CarrierBid, models.CarrierBidFilter]
	Upsert(ctx context.Context, bid *models.CarrierBid) (bool, error)
	ByAuctionAndCarrier(ctx context.Context, auctionID uint, carrierID string) (*models.CarrierBid, error)
	LowestEligible(ctx context.Context, auctionID uint) (*models.CarrierBid, error)
	Withdraw(ctx context.Context, auctionID uint, carrierID string, now time.Time) (bool, error)
	ListByAuction(ctx context.Context, auctionID uint) ([]*models.CarrierBid, error)
	ListByCarrier(ctx context.Context, carrierID string, limit, offset int) ([]*models.CarrierBid, error)
	AggregateByAuctionIDs(ctx context.Context, auctionIDs []uint) (map[uint]BidAggregate, error)
	SetDriverInfo(ctx context.Context, id uint, info json.RawMessage, now time.Time) error
}

// AuctionAwardRepository defines operations for awards
type AuctionAwardRepository interface {
	Repository[models.AuctionAward, models.AuctionAwardFilter]
	Create(ctx context.Context, award *models.AuctionAward) error
	ByAuctionID(ctx context.Context, auctionID uint) (*models.AuctionAward, error)
	ByBidNumber(ctx context.Context, bidNumber string) (*models.AuctionAward, error)
	CountByAuctionID(ctx context.Context, auctionID uint) (int64, error)
}

// ArchiveStatistics summarizes the archive store against the live auctions
type ArchiveStatistics struct {
	TotalAuctions    int64
	ArchivedAuctions int64
	ActiveAuctions   int64
	ArchiveDays      int64
	EarliestArchive  *time.Time
	LatestArchive    *time.Time
}

// ArchiveIntegrity reports rows that disagree between auctions and archive records
type ArchiveIntegrity struct {
	MissingArchiveRecords int64
	UnmarkedArchived      int64
	DuplicateBidNumbers   int64
}

// ArchivedAuctionRepository defines operations for archive records
type ArchivedAuctionRepository interface {
	Repository[models.ArchivedAuction, models.ArchivedAuctionFilter]
	Upsert(ctx context.Context, record *models.ArchivedAuction) error
	ByBidNumber(ctx context.Context, bidNumber string) (*models.ArchivedAuction, error)
	Statistics(ctx context.Context) (*ArchiveStatistics, error)
	Integrity(ctx context.Context) (*ArchiveIntegrity, error)
}

// AuctionEventRepository defines operations for the auction lifecycle log
type AuctionEventRepository interface {
	Repository[models.AuctionEvent, models.AuctionEventFilter]
	ListByAuction(ctx context.Context, auctionID uint, limit, offset int) ([]*models.AuctionEvent, error)
}
