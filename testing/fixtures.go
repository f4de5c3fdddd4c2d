package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/google/uuid"
)

// BaseTime is a whole-second UTC instant tests build their clocks from
var BaseTime = time.Date(2025, time.March, 3, 14, 0, 0, 0, time.UTC)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// AuctionOption customizes a fixture auction
type AuctionOption func(*models.Auction)

func WithTag(tag string) AuctionOption {
	return func(a *models.Auction) { a.Tag = &tag }
}

func WithDistance(miles int) AuctionOption {
	return func(a *models.Auction) { a.DistanceMiles = &miles }
}

func WithStops(stops ...string) AuctionOption {
	return func(a *models.Auction) { a.Stops = models.StopList(stops) }
}

// CreateTestAuction inserts an open auction received at receivedAt
func (tf *TestFixtures) CreateTestAuction(bidNumber string, receivedAt time.Time, opts ...AuctionOption) (*models.Auction, error) {
	auction := &models.Auction{
		BidNumber:     bidNumber,
		DistanceMiles: utils.ToPtr(420),
		Stops:         models.StopList{"Dallas, TX", "Memphis, TN"},
		ReceivedAt:    receivedAt.UTC(),
		SourceChannel: utils.ToPtr("email"),
		CreatedAt:     receivedAt.UTC(),
		UpdatedAt:     receivedAt.UTC(),
	}
	for _, opt := range opts {
		opt(auction)
	}
	if err := tf.DB.DB.Create(auction).Error; err != nil {
		return nil, fmt.Errorf("failed to create auction %s: %w", bidNumber, err)
	}
	return auction, nil
}

// CreateTestBid inserts a pending bid directly, bypassing the bid flow
func (tf *TestFixtures) CreateTestBid(auction *models.Auction, carrierID string, amountCents int64, submittedAt time.Time) (*models.CarrierBid, error) {
	bid := &models.CarrierBid{
		UUID:        uuid.New(),
		AuctionID:   auction.ID,
		CarrierID:   carrierID,
		BidNumber:   auction.BidNumber,
		AmountCents: amountCents,
		Status:      models.BidStatusPending,
		SubmittedAt: submittedAt.UTC(),
		CreatedAt:   submittedAt.UTC(),
		UpdatedAt:   submittedAt.UTC(),
	}
	if err := tf.DB.DB.Create(bid).Error; err != nil {
		return nil, fmt.Errorf("failed to create bid for %s: %w", carrierID, err)
	}
	return bid, nil
}

// SetBidStatus forces a bid into status, for statuses no flow produces directly
func (tf *TestFixtures) SetBidStatus(bid *models.CarrierBid, status models.BidStatus) error {
	if err := tf.DB.DB.Model(&models.CarrierBid{}).Where("id = ?", bid.ID).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update bid %d: %w", bid.ID, err)
	}
	bid.Status = status
	return nil
}

// ReloadAuction reads the current row for auction
func (tf *TestFixtures) ReloadAuction(id uint) (*models.Auction, error) {
	var auction models.Auction
	if err := tf.DB.DB.First(&auction, id).Error; err != nil {
		return nil, err
	}
	return &auction, nil
}

// CountRows counts rows of model matching an optional where clause
func (tf *TestFixtures) CountRows(model any, query string, args ...any) (int64, error) {
	var n int64
	db := tf.DB.DB.Model(model)
	if query != "" {
		db = db.Where(query, args...)
	}
	err := db.Count(&n).Error
	return n, err
}
