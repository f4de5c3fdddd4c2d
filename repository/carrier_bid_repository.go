package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/amirphl/freight-bidding/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CarrierBidRepositoryImpl implements CarrierBidRepository
type CarrierBidRepositoryImpl struct {
	*BaseRepository[models.CarrierBid, models.CarrierBidFilter]
}

// NewCarrierBidRepository creates a new carrier bid repository
func NewCarrierBidRepository(db *gorm.DB) CarrierBidRepository {
	return &CarrierBidRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CarrierBid, models.CarrierBidFilter](db),
	}
}

func (r *CarrierBidRepositoryImpl) applyFilter(db *gorm.DB, f models.CarrierBidFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.AuctionID != nil {
		db = db.Where("auction_id = ?", *f.AuctionID)
	}
	if f.BidNumber != nil {
		db = db.Where("bid_number = ?", *f.BidNumber)
	}
	if f.CarrierID != nil {
		db = db.Where("carrier_id = ?", *f.CarrierID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	return db
}

func (r *CarrierBidRepositoryImpl) ByFilter(ctx context.Context, filter models.CarrierBidFilter, orderBy string, limit, offset int) ([]*models.CarrierBid, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.CarrierBid{}), filter), orderBy, limit, offset)
	var rows []*models.CarrierBid
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CarrierBidRepositoryImpl) Count(ctx context.Context, filter models.CarrierBidFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.CarrierBid{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CarrierBidRepositoryImpl) Exists(ctx context.Context, filter models.CarrierBidFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Upsert inserts the bid or, when the carrier already holds a row for the auction,
// overwrites amount and notes, resets the status to pending and clears any counter
// offer or withdrawal. created reports whether this call inserted the row; the
// (auction_id, carrier_id) unique index decides it for concurrent first submissions.
// The stored row is loaded back into bid.
func (r *CarrierBidRepositoryImpl) Upsert(ctx context.Context, bid *models.CarrierBid) (created bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	bid.Status = models.BidStatusPending
	bid.CounterAmountCents = nil
	bid.WithdrawnAt = nil

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auction_id"}, {Name: "carrier_id"}},
		DoNothing: true,
	}).Create(bid)
	if res.Error != nil {
		return false, res.Error
	}
	created = res.RowsAffected == 1

	if !created {
		err = db.Model(&models.CarrierBid{}).
			Where("auction_id = ? AND carrier_id = ?", bid.AuctionID, bid.CarrierID).
			Updates(map[string]any{
				"amount_cents":         bid.AmountCents,
				"notes":                bid.Notes,
				"status":               models.BidStatusPending,
				"counter_amount_cents": gorm.Expr("NULL"),
				"withdrawn_at":         gorm.Expr("NULL"),
				"submitted_at":         bid.SubmittedAt,
				"updated_at":           bid.UpdatedAt,
			}).Error
		if err != nil {
			return false, err
		}
	}

	var stored models.CarrierBid
	if err = db.Where("auction_id = ? AND carrier_id = ?", bid.AuctionID, bid.CarrierID).First(&stored).Error; err != nil {
		return false, err
	}
	*bid = stored
	return created, nil
}

func (r *CarrierBidRepositoryImpl) ByAuctionAndCarrier(ctx context.Context, auctionID uint, carrierID string) (*models.CarrierBid, error) {
	db := r.getDB(ctx)
	var row models.CarrierBid
	if err := db.Where("auction_id = ? AND carrier_id = ?", auctionID, carrierID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// LowestEligible returns the winning candidate: lowest amount among eligible bids,
// ties broken by earliest submission and then by id
func (r *CarrierBidRepositoryImpl) LowestEligible(ctx context.Context, auctionID uint) (*models.CarrierBid, error) {
	db := r.getDB(ctx)
	var row models.CarrierBid
	err := db.Where("auction_id = ? AND status IN ?", auctionID, models.EligibleBidStatuses).
		Order("amount_cents ASC, submitted_at ASC, id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Withdraw marks the carrier's live bid withdrawn; false means there was no live bid
func (r *CarrierBidRepositoryImpl) Withdraw(ctx context.Context, auctionID uint, carrierID string, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.CarrierBid{}).
		Where("auction_id = ? AND carrier_id = ? AND status <> ?", auctionID, carrierID, models.BidStatusWithdrawn).
		Updates(map[string]any{
			"status":       models.BidStatusWithdrawn,
			"withdrawn_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByAuction returns every bid of an auction including withdrawn ones, best offer first
func (r *CarrierBidRepositoryImpl) ListByAuction(ctx context.Context, auctionID uint) ([]*models.CarrierBid, error) {
	return r.ByFilter(ctx, models.CarrierBidFilter{AuctionID: &auctionID}, "amount_cents ASC, submitted_at ASC, id ASC", 0, 0)
}

func (r *CarrierBidRepositoryImpl) ListByCarrier(ctx context.Context, carrierID string, limit, offset int) ([]*models.CarrierBid, error) {
	return r.ByFilter(ctx, models.CarrierBidFilter{CarrierID: &carrierID}, "submitted_at DESC, id DESC", limit, offset)
}

// AggregateByAuctionIDs counts eligible bids and their minimum per auction
func (r *CarrierBidRepositoryImpl) AggregateByAuctionIDs(ctx context.Context, auctionIDs []uint) (map[uint]BidAggregate, error) {
	result := make(map[uint]BidAggregate, len(auctionIDs))
	if len(auctionIDs) == 0 {
		return result, nil
	}

	type aggRow struct {
		AuctionID   uint
		BidsCount   int64
		LowestCents *int64
	}
	var rows []aggRow
	db := r.getDB(ctx)
	err := db.Table(models.CarrierBid{}.TableName()).
		Select("auction_id, COUNT(*) AS bids_count, MIN(amount_cents) AS lowest_cents").
		Where("auction_id IN ? AND status IN ?", auctionIDs, models.EligibleBidStatuses).
		Group("auction_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.AuctionID] = BidAggregate(row)
	}
	return result, nil
}

func (r *CarrierBidRepositoryImpl) SetDriverInfo(ctx context.Context, id uint, info json.RawMessage, now time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.CarrierBid{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"driver_info": info,
			"updated_at":  now,
		}).Error
}
